package ingest

import "github.com/MikeSquared-Agency/courier/internal/remote"

// RoleUser is the role given to the current turn.
const RoleUser = "user"

// Part is one segment of a content block. The set is closed: TextPart or FilePart.
type Part interface{ isPart() }

// TextPart is plain text.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// FilePart references an activated remote file.
type FilePart struct {
	URI      string
	MIMEType string
}

func (FilePart) isPart() {}

// Block is one role-tagged turn. A Block always has at least one part.
type Block struct {
	Role  string
	Parts []Part
}

// Conversation is the ordered context sent to the generation call:
// history blocks in input order, then the current turn.
type Conversation []Block

// UploadRecord describes a file uploaded and activated during one call.
type UploadRecord struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
}

// Turn is the current user input.
type Turn struct {
	Text         string   `json:"text"`
	FileLocators Locators `json:"fileLocators"`
}

// FileDescriptor is a file entry embedded in a history item.
type FileDescriptor struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
}

// Result is the outcome of Orchestrator.Ingest.
type Result struct {
	Context     Conversation
	Uploads     []UploadRecord
	Diagnostics []Diagnostic
}

func filePartFromHandle(h remote.Handle) FilePart {
	return FilePart{URI: h.URI, MIMEType: h.MIMEType}
}
