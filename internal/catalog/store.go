package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	// MaxSearchResults caps the number of records returned by Search.
	MaxSearchResults = 20
	// MaxSubstitutes caps the number of records returned by Substitutes.
	MaxSubstitutes = 10
)

// ErrNotFound is returned when a catalog identity does not exist.
var ErrNotFound = errors.New("medicine not found")

// exactMatchFields are compared with equality for quoted queries.
var exactMatchFields = []string{
	"brand_name",
	"salt_composition",
	"short_composition1",
	"short_composition2",
	"manufacturer_name",
}

// fuzzyMatchFields extend the exact set with containment matching.
var fuzzyMatchFields = append(exactMatchFields,
	"type",
	"strength",
	"dosage_form",
	"pack_size_label",
	"description",
)

// Store handles queries to the SQLite medicine catalog.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens the catalog database and ensures the schema exists.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, logger: logger}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// initSchema creates the medicine table if it doesn't exist.
func (s *Store) initSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS medicine (
			name TEXT PRIMARY KEY,
			brand_name TEXT NOT NULL,
			salt_composition TEXT,
			short_composition1 TEXT,
			short_composition2 TEXT,
			strength TEXT,
			type TEXT,
			dosage_form TEXT,
			manufacturer_name TEXT,
			pack_size_label TEXT,
			price REAL,
			is_generic INTEGER DEFAULT 0,
			is_discontinued INTEGER DEFAULT 0,
			image TEXT,
			description TEXT
		)
	`

	if _, err := s.db.Exec(query); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_medicine_brand ON medicine(brand_name)`,
		`CREATE INDEX IF NOT EXISTS idx_medicine_salt ON medicine(salt_composition)`,
		`CREATE INDEX IF NOT EXISTS idx_medicine_price ON medicine(price)`,
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}

const recordColumns = `name, brand_name, COALESCE(salt_composition, ''),
	COALESCE(short_composition1, ''), COALESCE(short_composition2, ''),
	COALESCE(strength, ''), COALESCE(type, ''), COALESCE(dosage_form, ''),
	COALESCE(manufacturer_name, ''), COALESCE(pack_size_label, ''),
	COALESCE(price, 0), COALESCE(is_generic, 0), COALESCE(is_discontinued, 0),
	COALESCE(image, ''), COALESCE(description, '')`

// scanRecord scans one row into a Record, coercing the integer flags
// to strict booleans.
func scanRecord(scanner interface{ Scan(...interface{}) error }) (Record, error) {
	var r Record
	var isGeneric, isDiscontinued int
	err := scanner.Scan(
		&r.ID, &r.BrandName, &r.SaltComposition,
		&r.ShortComposition1, &r.ShortComposition2,
		&r.Strength, &r.Type, &r.DosageForm,
		&r.ManufacturerName, &r.PackSizeLabel,
		&r.Price, &isGeneric, &isDiscontinued,
		&r.Image, &r.Description,
	)
	if err != nil {
		return r, err
	}
	r.IsGeneric = isGeneric != 0
	r.IsDiscontinued = isDiscontinued != 0
	return r, nil
}

// Search finds records matching the cleaned query text. Exact mode
// compares the enumerated field set with equality; fuzzy mode uses
// case-insensitive containment over the extended set. Matching is a
// logical OR across fields, capped at MaxSearchResults.
func (s *Store) Search(ctx context.Context, query string, exact bool) ([]Record, error) {
	fields := fuzzyMatchFields
	if exact {
		fields = exactMatchFields
	}

	var conditions []string
	var args []interface{}
	for _, field := range fields {
		if exact {
			conditions = append(conditions, field+" = ?")
			args = append(args, query)
		} else {
			conditions = append(conditions, "LOWER("+field+") LIKE ? ESCAPE '\\'")
			args = append(args, "%"+escapeLike(strings.ToLower(query))+"%")
		}
	}

	stmt := fmt.Sprintf(
		"SELECT %s FROM medicine WHERE %s LIMIT %d",
		recordColumns, strings.Join(conditions, " OR "), MaxSearchResults,
	)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search medicines: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medicine: %w", err)
		}
		record.Normalize()
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medicines: %w", err)
	}

	for i := range records {
		hasSubs, err := s.hasSubstitutes(ctx, records[i])
		if err != nil {
			s.logger.Warn("Failed to check substitutes",
				zap.String("medicine_id", records[i].ID),
				zap.Error(err))
			continue
		}
		records[i].HasSubstitutes = hasSubs
	}

	return records, nil
}

// escapeLike neutralizes LIKE pattern metacharacters in user-supplied
// text so they match literally. Queries using it must carry ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// hasSubstitutes reports whether any other priced record shares the
// normalized base salt.
func (s *Store) hasSubstitutes(ctx context.Context, record Record) (bool, error) {
	base := BaseSalt(record.SaltComposition)
	if base == "" {
		return false, nil
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM medicine WHERE salt_composition LIKE ? ESCAPE '\\' AND price > 0 AND name != ?",
		"%"+escapeLike(base)+"%", record.ID,
	).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// GetByID fetches a single catalog record. Returns ErrNotFound when
// the identity does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM medicine WHERE name = ?", recordColumns), id)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("failed to fetch medicine %q: %w", id, err)
	}

	record.Normalize()
	return record, nil
}

// Substitutes finds records whose composition contains the base salt
// with a real price strictly below maxPrice, excluding excludeID,
// ordered ascending by price and capped at MaxSubstitutes. Zero-priced
// rows are unpriced, not free, and never rank.
func (s *Store) Substitutes(ctx context.Context, baseSalt string, maxPrice float64, excludeID string) ([]Record, error) {
	if baseSalt == "" {
		return nil, nil
	}

	stmt := fmt.Sprintf(`
		SELECT %s FROM medicine
		WHERE salt_composition LIKE ? ESCAPE '\' AND price > 0 AND price < ? AND name != ?
		ORDER BY price ASC
		LIMIT %d`, recordColumns, MaxSubstitutes)

	rows, err := s.db.QueryContext(ctx, stmt, "%"+escapeLike(baseSalt)+"%", maxPrice, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query substitutes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan substitute: %w", err)
		}
		record.Normalize()
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating substitutes: %w", err)
	}

	return records, nil
}

// Upsert inserts or replaces a catalog record. The core pipeline never
// mutates the catalog; this exists for admin tooling and tests.
func (s *Store) Upsert(ctx context.Context, record Record) error {
	if record.BrandName == "" {
		return fmt.Errorf("brand name is required")
	}
	record.Normalize()

	query := `
		INSERT OR REPLACE INTO medicine (
			name, brand_name, salt_composition, short_composition1,
			short_composition2, strength, type, dosage_form,
			manufacturer_name, pack_size_label, price, is_generic,
			is_discontinued, image, description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.BrandName, record.SaltComposition,
		record.ShortComposition1, record.ShortComposition2,
		record.Strength, record.Type, record.DosageForm,
		record.ManufacturerName, record.PackSizeLabel,
		record.Price, boolToInt(record.IsGeneric), boolToInt(record.IsDiscontinued),
		record.Image, record.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert medicine: %w", err)
	}

	return nil
}

// Count returns the number of catalog records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM medicine").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count medicines: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
