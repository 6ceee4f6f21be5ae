package ingest

import "errors"

var (
	// ErrFetchFailure indicates the source URL could not be downloaded.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrUploadProtocol indicates the remote store rejected the upload or answered
	// without an id or uri.
	ErrUploadProtocol = errors.New("upload protocol failure")
	// ErrActivationFailed indicates the remote store reported a terminal failure
	// or lost the file while it was being activated.
	ErrActivationFailed = errors.New("activation failed")
	// ErrActivationTimedOut indicates the file was still processing when the poll
	// budget or the caller's deadline ran out.
	ErrActivationTimedOut = errors.New("activation timed out")
	// ErrMalformedInput indicates a history item or file descriptor with a bad shape.
	ErrMalformedInput = errors.New("malformed input item")
	// ErrNoContent indicates the whole call produced no content block.
	ErrNoContent = errors.New("no content")
)

// Kind names an error class so callers and tests can match on it without
// parsing messages.
type Kind string

const (
	KindFetchFailure       Kind = "fetch_failure"
	KindUploadProtocol     Kind = "upload_protocol_failure"
	KindActivationFailed   Kind = "activation_failed"
	KindActivationTimedOut Kind = "activation_timed_out"
	KindMalformedInput     Kind = "malformed_input_item"
	KindNoContent          Kind = "no_content"
	KindUnknown            Kind = "unknown"
)

// KindOf maps err onto the ingestion error taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFetchFailure):
		return KindFetchFailure
	case errors.Is(err, ErrUploadProtocol):
		return KindUploadProtocol
	case errors.Is(err, ErrActivationFailed):
		return KindActivationFailed
	case errors.Is(err, ErrActivationTimedOut):
		return KindActivationTimedOut
	case errors.Is(err, ErrMalformedInput):
		return KindMalformedInput
	case errors.Is(err, ErrNoContent):
		return KindNoContent
	default:
		return KindUnknown
	}
}
