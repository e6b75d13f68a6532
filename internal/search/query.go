// Package search implements the hybrid retrieval pipeline: query
// normalization, local structured matching, salt-based substitute
// ranking and the generative-fallback orchestration.
package search

import "strings"

// Query is a normalized search query. A raw string wrapped in quotes
// requests exact-field matching; everything else is fuzzy.
type Query struct {
	Raw     string
	Clean   string
	IsExact bool
}

// quoteChars accepted as exact-match markers.
var quoteChars = []byte{'"', '\''}

// ParseQuery classifies a raw search string. The trimmed string must
// start and end with the same quote character and be longer than two
// characters to count as exact; malformed quoting falls back to fuzzy.
func ParseQuery(raw string) Query {
	trimmed := strings.TrimSpace(raw)

	if len(trimmed) > 2 {
		for _, q := range quoteChars {
			if trimmed[0] == q && trimmed[len(trimmed)-1] == q {
				return Query{
					Raw:     raw,
					Clean:   trimmed[1 : len(trimmed)-1],
					IsExact: true,
				}
			}
		}
	}

	return Query{Raw: raw, Clean: trimmed}
}

// SubstituteQuery identifies the source record for a substitute
// lookup: a catalog identity, or salt plus reference price for an
// AI-origin source that was never persisted.
type SubstituteQuery struct {
	MedicineID      string
	SaltComposition string
	ReferencePrice  *float64
}
