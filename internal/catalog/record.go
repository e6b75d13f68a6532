// Package catalog provides the medicine catalog store and the record
// normalization rules shared by search and substitute lookups.
package catalog

import (
	"strings"
)

// AIRecordPrefix marks records synthesized from a generative provider.
// Such records are request-scoped and never persisted.
const AIRecordPrefix = "AI_GENERATED_"

// Record represents a single medicine, either catalog-origin or
// AI-origin. AI-origin records carry a synthetic ID and the
// IsAIGenerated flag.
type Record struct {
	ID                string  `json:"name"`
	BrandName         string  `json:"brand_name"`
	SaltComposition   string  `json:"salt_composition"`
	ShortComposition1 string  `json:"short_composition1,omitempty"`
	ShortComposition2 string  `json:"short_composition2,omitempty"`
	Strength          string  `json:"strength,omitempty"`
	Type              string  `json:"type,omitempty"`
	DosageForm        string  `json:"dosage_form"`
	ManufacturerName  string  `json:"manufacturer_name"`
	Manufacturer      string  `json:"manufacturer"`
	PackSizeLabel     string  `json:"pack_size_label"`
	Price             float64 `json:"price"`
	IsGeneric         bool    `json:"is_generic"`
	IsDiscontinued    bool    `json:"is_discontinued"`
	Image             string  `json:"image,omitempty"`
	Description       string  `json:"description,omitempty"`
	AffiliateLink     string  `json:"affiliate_link,omitempty"`
	HasSubstitutes    bool    `json:"has_substitutes"`
	IsAIGenerated     bool    `json:"is_ai_generated"`
}

// BaseSalt strips a trailing strength annotation from a composition
// string so that chemically identical products sold at different
// strengths share a match key. "Paracetamol (500mg)" -> "Paracetamol".
// The operation is idempotent.
func BaseSalt(composition string) string {
	trimmed := strings.TrimSpace(composition)
	if idx := strings.Index(trimmed, "("); idx >= 0 {
		if base := strings.TrimSpace(trimmed[:idx]); base != "" {
			return base
		}
	}
	return trimmed
}

// Normalize applies the record post-processing rules: the salt
// composition is derived from the short-composition fields when empty,
// the manufacturer display field mirrors manufacturer_name, and the
// dosage form falls back to the generic type field.
func (r *Record) Normalize() {
	if r.SaltComposition == "" {
		var comps []string
		if r.ShortComposition1 != "" {
			comps = append(comps, strings.TrimSpace(r.ShortComposition1))
		}
		if r.ShortComposition2 != "" {
			comps = append(comps, strings.TrimSpace(r.ShortComposition2))
		}
		r.SaltComposition = strings.Join(comps, " + ")
	}
	if r.Manufacturer == "" {
		r.Manufacturer = r.ManufacturerName
	}
	if r.DosageForm == "" {
		r.DosageForm = r.Type
	}
}

// IsEphemeralID reports whether an identity belongs to an AI-origin
// record.
func IsEphemeralID(id string) bool {
	return strings.HasPrefix(id, AIRecordPrefix)
}
