// Package extract locates and parses a single JSON value inside
// otherwise unstructured model output. Generative text is not
// guaranteed to omit explanatory prose or markdown fences despite
// instructions, so parsing is tolerant: absence of usable JSON is
// "no data", never an error.
package extract

import (
	"encoding/json"
	"strings"
)

// Object extracts a JSON object from raw text into v. It slices from
// the first '{' to the last '}' and parses that substring; if the
// brackets are missing or parsing fails, it falls back to parsing the
// trimmed raw text directly. Returns false when no object could be
// parsed.
func Object(raw string, v interface{}) bool {
	return extract(raw, "{", "}", v)
}

// Array extracts a JSON array from raw text into v, with the same
// tolerance rules as Object.
func Array(raw string, v interface{}) bool {
	return extract(raw, "[", "]", v)
}

func extract(raw, open, closing string, v interface{}) bool {
	start := strings.Index(raw, open)
	end := strings.LastIndex(raw, closing)
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), v); err == nil {
			return true
		}
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	return json.Unmarshal([]byte(trimmed), v) == nil
}
