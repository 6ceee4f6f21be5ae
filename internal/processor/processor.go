package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/courier/internal/gemini"
	"github.com/MikeSquared-Agency/courier/internal/hermes"
	"github.com/MikeSquared-Agency/courier/internal/ingest"
)

// ErrGeneration marks failures of the model call, after ingestion succeeded.
var ErrGeneration = errors.New("generation failed")

type Ingestor interface {
	Ingest(ctx context.Context, history []json.RawMessage, turn ingest.Turn) (*ingest.Result, error)
}

type Generator interface {
	Generate(ctx context.Context, conv ingest.Conversation) (*gemini.Reply, error)
	Model() string
}

// Ledger persists the files uploaded for a request.
type Ledger interface {
	WriteUploadRecords(ctx context.Context, requestID uuid.UUID, records []ingest.UploadRecord) error
}

type Publisher interface {
	Publish(subject string, data any) error
}

// Request is one turn to answer: prior history plus the current turn.
type Request struct {
	RequestID string            `json:"requestId,omitempty"`
	History   []json.RawMessage `json:"history"`
	Turn      ingest.Turn       `json:"turn"`
}

// Reply is the model's answer together with the bookkeeping of the ingestion.
type Reply struct {
	RequestID    string                `json:"requestId"`
	Model        string                `json:"model"`
	Text         string                `json:"text"`
	FinishReason string                `json:"finishReason,omitempty"`
	Uploads      []ingest.UploadRecord `json:"uploads"`
	Diagnostics  []ingest.Diagnostic   `json:"diagnostics,omitempty"`
}

// Processor runs ingestion and generation for a request and records what it
// uploaded.
type Processor struct {
	ingestor  Ingestor
	generator Generator
	ledger    Ledger
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

// New builds a Processor. ledger and publisher may be nil.
func New(ing Ingestor, gen Generator, ledger Ledger, pub Publisher, timeout time.Duration, logger *slog.Logger) *Processor {
	return &Processor{
		ingestor:  ing,
		generator: gen,
		ledger:    ledger,
		publisher: pub,
		timeout:   timeout,
		logger:    logger,
	}
}

// Handle answers req. On failure the returned Reply is still non-nil and
// carries the diagnostics gathered so far.
func (p *Processor) Handle(ctx context.Context, req Request) (*Reply, error) {
	requestID := p.requestID(req.RequestID)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	reply := &Reply{RequestID: requestID.String(), Model: p.generator.Model()}
	logger := p.logger.With("request_id", reply.RequestID)

	res, err := p.ingestor.Ingest(ctx, req.History, req.Turn)
	if res != nil {
		reply.Uploads = res.Uploads
		reply.Diagnostics = res.Diagnostics
	}
	if err != nil {
		logger.Warn("ingestion failed", "error", err, "diagnostics", len(reply.Diagnostics))
		return reply, err
	}

	// Files uploaded before a failed generation are still recorded so they can
	// be cleaned up.
	p.record(ctx, logger, requestID, res.Uploads)

	out, err := p.generator.Generate(ctx, res.Context)
	if err != nil {
		logger.Error("generation failed", "error", err)
		return reply, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	reply.Text = out.Text
	reply.FinishReason = out.FinishReason

	logger.Info("turn completed",
		"blocks", len(res.Context),
		"uploads", len(reply.Uploads),
		"warnings", len(reply.Diagnostics),
		"output_tokens", out.OutputTokens,
	)
	return reply, nil
}

func (p *Processor) record(ctx context.Context, logger *slog.Logger, requestID uuid.UUID, uploads []ingest.UploadRecord) {
	if len(uploads) == 0 {
		return
	}
	if p.ledger != nil {
		if err := p.ledger.WriteUploadRecords(ctx, requestID, uploads); err != nil {
			logger.Error("failed to record uploads", "error", err)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Publish(hermes.SubjectUploadsRecorded, hermes.UploadsRecorded{
			RequestID: requestID.String(),
			Uploads:   uploads,
		}); err != nil {
			logger.Error("failed to publish uploads recorded", "error", err)
		}
	}
}

// requestID keeps a caller-supplied UUID and mints one otherwise.
func (p *Processor) requestID(raw string) uuid.UUID {
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err == nil {
			return id
		}
		p.logger.Warn("ignoring non-uuid request id", "request_id", raw)
	}
	return uuid.New()
}

// HandleTurnRequested is the NATS handler for swarm.courier.turn.requested.
func (p *Processor) HandleTurnRequested(subject string, data []byte) {
	var evt hermes.TurnRequested
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse turn request", "subject", subject, "error", err)
		return
	}

	reply, err := p.Handle(context.Background(), Request{
		RequestID: evt.RequestID,
		History:   evt.History,
		Turn:      evt.Turn,
	})
	if p.publisher == nil {
		return
	}

	if err != nil {
		if pubErr := p.publisher.Publish(hermes.SubjectTurnFailed, hermes.TurnFailed{
			RequestID:   reply.RequestID,
			Kind:        failureKind(err),
			Error:       err.Error(),
			Diagnostics: reply.Diagnostics,
		}); pubErr != nil {
			p.logger.Error("failed to publish turn failed", "error", pubErr)
		}
		return
	}

	if pubErr := p.publisher.Publish(hermes.SubjectTurnCompleted, hermes.TurnCompleted{
		RequestID:   reply.RequestID,
		Model:       reply.Model,
		Text:        reply.Text,
		Uploads:     reply.Uploads,
		Diagnostics: reply.Diagnostics,
	}); pubErr != nil {
		p.logger.Error("failed to publish turn completed", "error", pubErr)
	}
}

func failureKind(err error) string {
	if errors.Is(err, ErrGeneration) {
		return "generation_failed"
	}
	return string(ingest.KindOf(err))
}
