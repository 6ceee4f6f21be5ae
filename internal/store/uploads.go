package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/courier/internal/ingest"
)

// UploadRow is one ledger entry for a file uploaded while serving a request.
type UploadRow struct {
	ID        uuid.UUID
	RequestID uuid.UUID
	Position  int
	URI       string
	MIMEType  string
	CreatedAt time.Time
}

// WriteUploadRecords stores the upload records of one request, keeping their
// order, in a single transaction.
func (s *Store) WriteUploadRecords(ctx context.Context, requestID uuid.UUID, records []ingest.UploadRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, rec := range records {
		_, err = tx.Exec(ctx, `
			INSERT INTO courier_uploads (id, request_id, position, uri, mime_type)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), requestID, i, rec.URI, rec.MIMEType,
		)
		if err != nil {
			return fmt.Errorf("insert upload %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListUploadRecords returns the uploads recorded for a request in order.
func (s *Store) ListUploadRecords(ctx context.Context, requestID uuid.UUID) ([]UploadRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, position, uri, mime_type, created_at
		FROM courier_uploads WHERE request_id = $1
		ORDER BY position`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (UploadRow, error) {
		var r UploadRow
		err := row.Scan(&r.ID, &r.RequestID, &r.Position, &r.URI, &r.MIMEType, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan uploads: %w", err)
	}
	return out, nil
}
