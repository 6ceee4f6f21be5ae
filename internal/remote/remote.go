package remote

import (
	"context"
	"errors"
	"io"
	"strings"
)

// URIPrefix identifies URIs already hosted by the Gemini Files API.
const URIPrefix = "https://generativelanguage.googleapis.com/v1beta/files/"

// ErrNotFound is wrapped by stores when the requested file no longer exists.
var ErrNotFound = errors.New("remote file not found")

// State is the activation state of a remote file.
type State int

const (
	StateProcessing State = iota
	StateActive
	StateFailed
	// StateTimedOut is never reported by a store; the activation waiter
	// uses it when the poll budget or the caller's deadline runs out.
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateProcessing:
		return "processing"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s != StateProcessing
}

// Handle is a file held by the remote store.
type Handle struct {
	ID       string
	URI      string
	MIMEType string
	State    State
}

// UploadOptions describe the bytes handed to Store.Upload.
type UploadOptions struct {
	MIMEType    string
	DisplayName string
}

// Store is the subset of the remote file service the ingestion pipeline needs.
type Store interface {
	Upload(ctx context.Context, r io.Reader, opts UploadOptions) (Handle, error)
	Status(ctx context.Context, id string) (Handle, error)
}

// IsRemoteURI reports whether uri is already hosted by the remote store.
func IsRemoteURI(uri string) bool {
	return strings.HasPrefix(uri, URIPrefix)
}

// FileID returns the store identifier ("files/<name>") for a remote URI.
// It returns "" when uri is not a remote URI or carries no name.
func FileID(uri string) string {
	if !IsRemoteURI(uri) {
		return ""
	}
	name := strings.TrimPrefix(uri, URIPrefix)
	if i := strings.IndexAny(name, "?#/"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return ""
	}
	return "files/" + name
}
