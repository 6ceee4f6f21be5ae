package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/courier/internal/ingest"
	"github.com/MikeSquared-Agency/courier/internal/processor"
	"github.com/MikeSquared-Agency/courier/internal/remote"
	"github.com/MikeSquared-Agency/courier/internal/store"
)

type failureResponse struct {
	Error       string              `json:"error"`
	Kind        string              `json:"kind"`
	RequestID   string              `json:"requestId,omitempty"`
	Diagnostics []ingest.Diagnostic `json:"diagnostics,omitempty"`
}

// generate handles POST /api/v1/courier/generate
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req processor.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	reply, err := s.handler.Handle(r.Context(), req)
	if err != nil {
		resp := failureResponse{Error: err.Error(), Kind: string(ingest.KindOf(err))}
		if reply != nil {
			resp.RequestID = reply.RequestID
			resp.Diagnostics = reply.Diagnostics
		}
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, ingest.ErrNoContent):
			code = http.StatusBadRequest
		case errors.Is(err, processor.ErrGeneration):
			code = http.StatusBadGateway
			resp.Kind = "generation_failed"
		}
		writeJSON(w, code, resp)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// recordedUploads loads the ledger rows named by the requestID URL param,
// writing the error response itself when it cannot.
func (s *Server) recordedUploads(w http.ResponseWriter, r *http.Request) (uuid.UUID, []store.UploadRow, bool) {
	if s.uploads == nil {
		writeError(w, http.StatusServiceUnavailable, "upload ledger not configured")
		return uuid.Nil, nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return uuid.Nil, nil, false
	}

	rows, err := s.uploads.ListUploadRecords(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list uploads: "+err.Error())
		return uuid.Nil, nil, false
	}
	return id, rows, true
}

// listUploads handles GET /api/v1/courier/uploads/{requestID}
func (s *Server) listUploads(w http.ResponseWriter, r *http.Request) {
	id, rows, ok := s.recordedUploads(w, r)
	if !ok {
		return
	}
	records := make([]ingest.UploadRecord, len(rows))
	for i, row := range rows {
		records[i] = ingest.UploadRecord{URI: row.URI, MIMEType: row.MIMEType}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requestId": id.String(),
		"uploads":   records,
	})
}

// deleteUploads handles DELETE /api/v1/courier/uploads/{requestID}. It removes
// the recorded files from the remote store; the ledger rows are kept.
func (s *Server) deleteUploads(w http.ResponseWriter, r *http.Request) {
	if s.files == nil {
		writeError(w, http.StatusServiceUnavailable, "remote store not configured")
		return
	}
	id, rows, ok := s.recordedUploads(w, r)
	if !ok {
		return
	}

	deleted := 0
	var failed []string
	for _, row := range rows {
		fileID := remote.FileID(row.URI)
		if fileID == "" {
			continue
		}
		if err := s.files.Delete(r.Context(), fileID); err != nil {
			slog.Warn("failed to delete uploaded file", "request_id", id, "file_id", fileID, "error", err)
			failed = append(failed, fileID)
			continue
		}
		deleted++
	}

	code := http.StatusOK
	if len(failed) > 0 {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]any{
		"requestId": id.String(),
		"deleted":   deleted,
		"failed":    failed,
	})
}
