package hermes

import (
	"encoding/json"

	"github.com/MikeSquared-Agency/courier/internal/ingest"
)

const (
	SubjectTurnRequested   = "swarm.courier.turn.requested"
	SubjectTurnCompleted   = "swarm.courier.turn.completed"
	SubjectTurnFailed      = "swarm.courier.turn.failed"
	SubjectUploadsRecorded = "swarm.courier.uploads.recorded"
	SubjectRegistered      = "swarm.agent.courier.registered"
)

// TurnRequested asks courier to ingest a conversation and generate a reply.
// History items are kept raw so malformed entries can be reported per item.
type TurnRequested struct {
	RequestID string            `json:"request_id,omitempty"`
	History   []json.RawMessage `json:"history"`
	Turn      ingest.Turn       `json:"turn"`
}

type TurnCompleted struct {
	RequestID   string                `json:"request_id"`
	Model       string                `json:"model"`
	Text        string                `json:"text"`
	Uploads     []ingest.UploadRecord `json:"uploads"`
	Diagnostics []ingest.Diagnostic   `json:"diagnostics,omitempty"`
}

type TurnFailed struct {
	RequestID   string              `json:"request_id"`
	Kind        string              `json:"kind"`
	Error       string              `json:"error"`
	Diagnostics []ingest.Diagnostic `json:"diagnostics,omitempty"`
}

// UploadsRecorded announces files courier uploaded for a request so other
// services can reuse or clean them up.
type UploadsRecorded struct {
	RequestID string                `json:"request_id"`
	Uploads   []ingest.UploadRecord `json:"uploads"`
}
