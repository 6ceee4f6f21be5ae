package ingest

import "strings"

// Assemble builds the block for one turn: the text part first when text is
// not blank, then one file part per activated file in the order supplied.
// It returns false when the turn contributes nothing.
func Assemble(role, text string, files []FilePart) (Block, bool) {
	parts := make([]Part, 0, len(files)+1)
	if strings.TrimSpace(text) != "" {
		parts = append(parts, TextPart{Text: text})
	}
	for _, f := range files {
		if f.URI == "" {
			continue
		}
		parts = append(parts, f)
	}
	if len(parts) == 0 {
		return Block{}, false
	}
	return Block{Role: role, Parts: parts}, true
}
