// Copyright 2025 Medsearch Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package search

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/medsearch/internal/catalog"
	"github.com/your-org/medsearch/internal/config"
	"github.com/your-org/medsearch/internal/extract"
	"github.com/your-org/medsearch/internal/prompt"
)

// Catalog is the read surface of the medicine store used by the
// pipeline.
type Catalog interface {
	Search(ctx context.Context, query string, exact bool) ([]catalog.Record, error)
	GetByID(ctx context.Context, id string) (catalog.Record, error)
	Substitutes(ctx context.Context, baseSalt string, maxPrice float64, excludeID string) ([]catalog.Record, error)
}

// Completer runs one generative call. An empty string means the
// provider had no answer; failures never surface here.
type Completer interface {
	Complete(ctx context.Context, promptText string, imageB64 string) string
}

// Options are the pipeline policy knobs.
type Options struct {
	// AugmentPolicy controls when the AI is queried during search:
	// config.AugmentOnEmpty or config.AugmentAlways.
	AugmentPolicy string
	// DedupeAIResults suppresses an AI record whose brand name already
	// exists in the local results.
	DedupeAIResults bool
}

// Service orchestrates local matching and the generative fallback.
type Service struct {
	store  Catalog
	ai     Completer
	logger *zap.Logger
	opts   Options
}

// NewService creates the search service.
func NewService(store Catalog, ai Completer, logger *zap.Logger, opts Options) *Service {
	if opts.AugmentPolicy == "" {
		opts.AugmentPolicy = config.AugmentOnEmpty
	}
	return &Service{store: store, ai: ai, logger: logger, opts: opts}
}

// aiMedicine is the fixed record shape expected from the
// identify-medicine and find-substitutes prompts. Absent fields
// default; downstream code never branches on presence.
type aiMedicine struct {
	BrandName        string  `json:"brand_name"`
	SaltComposition  string  `json:"salt_composition"`
	Strength         string  `json:"strength"`
	DosageForm       string  `json:"dosage_form"`
	ManufacturerName string  `json:"manufacturer_name"`
	PackSizeLabel    string  `json:"pack_size_label"`
	Price            float64 `json:"price"`
	IsGeneric        bool    `json:"is_generic"`
	Description      string  `json:"description"`
	AffiliateLink    string  `json:"affiliate_link"`
}

// toRecord stamps an AI answer with a fresh synthetic identity and the
// provenance flag.
func (m aiMedicine) toRecord() catalog.Record {
	r := catalog.Record{
		ID:               catalog.AIRecordPrefix + uuid.NewString(),
		BrandName:        m.BrandName,
		SaltComposition:  m.SaltComposition,
		Strength:         m.Strength,
		DosageForm:       m.DosageForm,
		ManufacturerName: m.ManufacturerName,
		PackSizeLabel:    m.PackSizeLabel,
		Price:            m.Price,
		IsGeneric:        m.IsGeneric,
		Description:      m.Description,
		AffiliateLink:    m.AffiliateLink,
		IsAIGenerated:    true,
	}
	r.Normalize()
	return r
}

// SearchMedicines answers "what is this medicine?". Local results
// always precede the at-most-one AI-derived record. An empty query
// yields an empty list; provider trouble degrades to local results.
func (s *Service) SearchMedicines(ctx context.Context, raw string) ([]catalog.Record, error) {
	query := ParseQuery(raw)
	if query.Clean == "" {
		return []catalog.Record{}, nil
	}

	local, err := s.store.Search(ctx, query.Clean, query.IsExact)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Local search completed",
		zap.String("query", query.Clean),
		zap.Bool("exact", query.IsExact),
		zap.Int("local_results", len(local)))

	if s.opts.AugmentPolicy == config.AugmentOnEmpty && len(local) > 0 {
		return local, nil
	}

	if aiRecord, ok := s.identifyWithAI(ctx, query.Clean); ok {
		if s.opts.DedupeAIResults && brandExists(local, aiRecord.BrandName) {
			s.logger.Debug("Suppressing duplicate AI result",
				zap.String("brand_name", aiRecord.BrandName))
			return local, nil
		}
		local = append(local, aiRecord)
	}

	if local == nil {
		local = []catalog.Record{}
	}
	return local, nil
}

// identifyWithAI asks the provider to describe an unknown medicine.
// Returns false when there is no usable AI contribution.
func (s *Service) identifyWithAI(ctx context.Context, name string) (catalog.Record, bool) {
	raw := s.ai.Complete(ctx, prompt.IdentifyMedicine(name), "")
	if raw == "" {
		return catalog.Record{}, false
	}

	var answer aiMedicine
	if !extract.Object(raw, &answer) {
		s.logger.Warn("Unparseable AI identify response",
			zap.String("query", name),
			zap.String("response", truncate(raw, 300)))
		return catalog.Record{}, false
	}

	if answer.BrandName == "" {
		// The model declined: null sentinel or empty object.
		return catalog.Record{}, false
	}

	return answer.toRecord(), true
}

// GetSubstitutes ranks cheaper equivalents for a source record. The
// source is either a catalog identity (NotFound surfaces) or an
// ephemeral AI-origin record described by salt and reference price.
func (s *Service) GetSubstitutes(ctx context.Context, q SubstituteQuery) ([]catalog.Record, error) {
	var (
		name      string
		salt      string
		price     float64
		excludeID string
	)

	if catalog.IsEphemeralID(q.MedicineID) {
		if q.SaltComposition == "" {
			// Cannot rank without knowing the salt.
			s.logger.Info("Ephemeral substitute lookup without salt, returning empty",
				zap.String("medicine_id", q.MedicineID))
			return []catalog.Record{}, nil
		}
		salt = q.SaltComposition
		price = math.MaxFloat64
		if q.ReferencePrice != nil {
			price = *q.ReferencePrice
		}
	} else {
		source, err := s.store.GetByID(ctx, q.MedicineID)
		if err != nil {
			return nil, err
		}
		name = source.BrandName
		salt = source.SaltComposition
		price = source.Price
		excludeID = source.ID
	}

	base := catalog.BaseSalt(salt)
	subs, err := s.store.Substitutes(ctx, base, price, excludeID)
	if err != nil {
		return nil, err
	}

	if len(subs) > 0 {
		return subs, nil
	}

	return s.substitutesFromAI(ctx, name, salt, price), nil
}

// substitutesFromAI asks the provider for cheaper equivalents when the
// catalog has none. Failures yield an empty list.
func (s *Service) substitutesFromAI(ctx context.Context, name, salt string, price float64) []catalog.Record {
	raw := s.ai.Complete(ctx, prompt.FindSubstitutes(name, salt, price), "")
	if raw == "" {
		return []catalog.Record{}
	}

	var answers []aiMedicine
	if !extract.Array(raw, &answers) {
		s.logger.Warn("Unparseable AI substitutes response",
			zap.String("salt", salt),
			zap.String("response", truncate(raw, 300)))
		return []catalog.Record{}
	}

	records := make([]catalog.Record, 0, len(answers))
	for _, answer := range answers {
		if answer.BrandName == "" {
			continue
		}
		record := answer
		record.IsGeneric = true
		records = append(records, record.toRecord())
	}
	return records
}

// TranslateText translates text to the target language, defaulting to
// Hindi. Empty input or provider trouble yields an empty string.
func (s *Service) TranslateText(ctx context.Context, text, targetLanguage string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if targetLanguage == "" {
		targetLanguage = "Hindi"
	}

	return strings.TrimSpace(s.ai.Complete(ctx, prompt.Translate(text, targetLanguage), ""))
}

// AnalyzePrescription extracts legible medicine names from a
// prescription image. Failures yield an empty list.
func (s *Service) AnalyzePrescription(ctx context.Context, imageB64 string) []string {
	if imageB64 == "" {
		return []string{}
	}

	raw := s.ai.Complete(ctx, prompt.ReadPrescription(), imageB64)
	if raw == "" {
		return []string{}
	}

	var names []string
	if !extract.Array(raw, &names) {
		s.logger.Warn("Unparseable AI prescription response",
			zap.String("response", truncate(raw, 300)))
		return []string{}
	}

	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if trimmed := strings.TrimSpace(n); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func brandExists(records []catalog.Record, brand string) bool {
	for _, r := range records {
		if strings.EqualFold(r.BrandName, brand) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
