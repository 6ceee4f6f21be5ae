package ingest

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Locators is a list of file locators that decodes from any of the accepted
// encodings: a JSON array of strings, a single string, a JSON-encoded array
// inside a string, or a comma-separated string.
type Locators []string

func (l *Locators) UnmarshalJSON(data []byte) error {
	*l = ParseLocators(data)
	return nil
}

// locatorParser tries one encoding. ok is false when the encoding does not
// apply, which hands the input to the next parser in the chain.
type locatorParser func(raw json.RawMessage, s string) (out []string, ok bool)

// locatorChain is ordered by precedence.
var locatorChain = []locatorParser{
	parseNativeArray,
	parseEmbeddedJSONArray,
	parseCommaSeparated,
	parseLiteral,
}

// ParseLocators decodes raw with the first parser in the chain that applies.
// null, an empty string and unknown shapes yield no locators.
func ParseLocators(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}

	for _, parse := range locatorChain {
		if out, ok := parse(raw, s); ok {
			return out
		}
	}
	return nil
}

func parseNativeArray(raw json.RawMessage, _ string) ([]string, bool) {
	if raw[0] != '[' {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return cleanLocators(items), true
}

func parseEmbeddedJSONArray(_ json.RawMessage, s string) ([]string, bool) {
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, false
	}
	return cleanLocators(items), true
}

func parseCommaSeparated(_ json.RawMessage, s string) ([]string, bool) {
	if !strings.Contains(s, ",") {
		return nil, false
	}
	fields := strings.Split(s, ",")
	items := make([]any, len(fields))
	for i, f := range fields {
		items[i] = f
	}
	return cleanLocators(items), true
}

func parseLiteral(_ json.RawMessage, s string) ([]string, bool) {
	if s == "" {
		return nil, false
	}
	return []string{s}, true
}

// cleanLocators keeps non-blank strings in order.
func cleanLocators(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
