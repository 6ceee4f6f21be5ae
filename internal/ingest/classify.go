package ingest

import (
	"strings"

	"github.com/MikeSquared-Agency/courier/internal/remote"
)

// Origin says whether a locator must be fetched and uploaded before use.
type Origin int

const (
	NeedsUpload Origin = iota
	AlreadyRemote
)

func (o Origin) String() string {
	if o == AlreadyRemote {
		return "already_remote"
	}
	return "needs_upload"
}

// FileReference is a file locator with its classification.
type FileReference struct {
	Origin   Origin
	Locator  string
	MIMEType string
}

// Classify reports AlreadyRemote when locator is a remote store URI.
// AlreadyRemote references are used verbatim and never re-uploaded.
func Classify(locator string) Origin {
	if remote.IsRemoteURI(strings.TrimSpace(locator)) {
		return AlreadyRemote
	}
	return NeedsUpload
}

// NewFileReference classifies locator. mimeType may be empty.
func NewFileReference(locator, mimeType string) FileReference {
	locator = strings.TrimSpace(locator)
	return FileReference{
		Origin:   Classify(locator),
		Locator:  locator,
		MIMEType: strings.TrimSpace(mimeType),
	}
}
