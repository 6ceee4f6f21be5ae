//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/courier/internal/ingest"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_WriteAndListUploads(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	requestID := uuid.New()

	records := []ingest.UploadRecord{
		{URI: "https://generativelanguage.googleapis.com/v1beta/files/first", MIMEType: "image/png"},
		{URI: "https://generativelanguage.googleapis.com/v1beta/files/second", MIMEType: "application/pdf"},
	}
	if err := s.WriteUploadRecords(ctx, requestID, records); err != nil {
		t.Fatalf("WriteUploadRecords failed: %v", err)
	}

	rows, err := s.ListUploadRecords(ctx, requestID)
	if err != nil {
		t.Fatalf("ListUploadRecords failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Position != i {
			t.Errorf("row %d has position %d", i, row.Position)
		}
		if row.URI != records[i].URI || row.MIMEType != records[i].MIMEType {
			t.Errorf("row %d = %+v, want %+v", i, row, records[i])
		}
		if row.RequestID != requestID {
			t.Errorf("row %d has request id %s", i, row.RequestID)
		}
	}
}

func TestIntegration_EmptyRecordsWriteNothing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	requestID := uuid.New()

	if err := s.WriteUploadRecords(ctx, requestID, nil); err != nil {
		t.Fatalf("WriteUploadRecords failed: %v", err)
	}
	rows, err := s.ListUploadRecords(ctx, requestID)
	if err != nil {
		t.Fatalf("ListUploadRecords failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}
