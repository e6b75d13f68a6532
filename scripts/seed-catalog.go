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

// Seeds a local catalog database for development and demos. Loads
// records from a JSON file when given one, otherwise writes a small
// built-in sample set.
//
// Usage:
//
//	go run scripts/seed-catalog.go [-db ./medicines.db] [-file records.json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/your-org/medsearch/internal/catalog"
)

func main() {
	dbPath := flag.String("db", "./medicines.db", "path to the catalog database")
	filePath := flag.String("file", "", "optional JSON file with an array of medicine records")
	flag.Parse()

	log.Println("🌱 Starting catalog seeding...")

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("❌ Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := catalog.NewStore(*dbPath, logger)
	if err != nil {
		log.Fatalf("❌ Failed to open catalog store: %v", err)
	}
	defer func() { _ = store.Close() }()

	records, err := loadRecords(*filePath)
	if err != nil {
		log.Fatalf("❌ Failed to load records: %v", err)
	}
	log.Printf("📄 Loaded %d medicine records", len(records))

	ctx := context.Background()
	seeded := 0
	for _, record := range records {
		if err := store.Upsert(ctx, record); err != nil {
			log.Printf("⚠️ Skipping record %s: %v", record.ID, err)
			continue
		}
		seeded++
	}

	total, err := store.Count(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to count records: %v", err)
	}

	log.Println("✅ Catalog seeding completed successfully!")
	log.Printf("📊 Seeded %d records; catalog '%s' now holds %d medicines", seeded, *dbPath, total)
}

func loadRecords(filePath string) ([]catalog.Record, error) {
	if filePath == "" {
		return sampleRecords(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var records []catalog.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// sampleRecords is a small, representative slice of the Indian retail
// medicine market: branded and generic paracetamol, a capsule, and a
// combination drug described only by its short compositions.
func sampleRecords() []catalog.Record {
	return []catalog.Record{
		{
			ID:               "MED-0001",
			BrandName:        "Dolo 650 Tablet",
			SaltComposition:  "Paracetamol (650mg)",
			Strength:         "650mg",
			DosageForm:       "Tablet",
			Type:             "allopathy",
			ManufacturerName: "Micro Labs Ltd",
			PackSizeLabel:    "strip of 15 tablets",
			Price:            33.60,
			Description:      "Dolo 650 Tablet is used to relieve pain and reduce fever.",
		},
		{
			ID:               "MED-0002",
			BrandName:        "Calpol 650mg Tablet",
			SaltComposition:  "Paracetamol (650mg)",
			Strength:         "650mg",
			DosageForm:       "Tablet",
			Type:             "allopathy",
			ManufacturerName: "GlaxoSmithKline Pharmaceuticals Ltd",
			PackSizeLabel:    "strip of 15 tablets",
			Price:            30.20,
			Description:      "Calpol 650mg Tablet helps relieve pain and fever.",
		},
		{
			ID:               "MED-0003",
			BrandName:        "P 650 Tablet",
			SaltComposition:  "Paracetamol (650mg)",
			Strength:         "650mg",
			DosageForm:       "Tablet",
			Type:             "allopathy",
			ManufacturerName: "Apex Laboratories Pvt Ltd",
			PackSizeLabel:    "strip of 15 tablets",
			Price:            20.50,
			IsGeneric:        true,
			Description:      "P 650 Tablet is a generic paracetamol preparation.",
		},
		{
			ID:               "MED-0004",
			BrandName:        "AB Phylline Capsule",
			SaltComposition:  "Acebrophylline (100mg)",
			Strength:         "100mg",
			DosageForm:       "Capsule",
			Type:             "allopathy",
			ManufacturerName: "Sun Pharmaceutical Industries Ltd",
			PackSizeLabel:    "strip of 10 capsules",
			Price:            50.00,
			Description:      "AB Phylline Capsule is used to treat asthma and COPD.",
		},
		{
			ID:                "MED-0005",
			BrandName:         "Augmentin 625 Duo Tablet",
			ShortComposition1: "Amoxycillin (500mg)",
			ShortComposition2: "Clavulanic Acid (125mg)",
			Strength:          "625mg",
			DosageForm:        "Tablet",
			Type:              "allopathy",
			ManufacturerName:  "GlaxoSmithKline Pharmaceuticals Ltd",
			PackSizeLabel:     "strip of 10 tablets",
			Price:             201.90,
			Description:       "Augmentin 625 Duo Tablet is a penicillin-type antibiotic combination.",
		},
	}
}
