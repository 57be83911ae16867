// Package catalog loads job postings from a tabular dataset.
package catalog

import (
	"crypto/sha256"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const skillsDelimiter = ";"

// RequiredColumns must be present in every dataset header.
var RequiredColumns = []string{"id", "title", "company", "location", "type", "skills", "description"}

// OptionalColumns are read when present and left empty otherwise.
var OptionalColumns = []string{"apply_url", "apply_by"}

var (
	ErrDatasetNotFound = errors.New("job dataset not found")
	ErrSchema          = errors.New("dataset schema error")
)

// SchemaError lists the required columns missing from a dataset header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset missing required columns: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// JobRecord is a single normalized posting. Records are treated as immutable once loaded.
type JobRecord struct {
	ID          string   `csv:"id" json:"id"`
	Title       string   `csv:"title" json:"title"`
	Company     string   `csv:"company" json:"company"`
	Location    string   `csv:"location" json:"location"`
	Type        string   `csv:"type" json:"type"`
	Skills      string   `csv:"skills" json:"skills"`
	SkillsList  []string `csv:"-" json:"skills_list"`
	Description string   `csv:"description" json:"description"`
	ApplyURL    string   `csv:"apply_url" json:"apply_url,omitempty"`
	ApplyBy     string   `csv:"apply_by" json:"apply_by,omitempty"`
}

// Load reads the dataset at path. No partial catalog is returned on error.
func Load(path string, logger *zap.Logger) ([]JobRecord, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w at %s", ErrDatasetNotFound, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrDatasetNotFound, path, err)
	}
	defer file.Close()

	records, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	logger.Info("loaded job records", zap.Int("count", len(records)), zap.String("path", path))

	return records, nil
}

// Parse reads CSV content with a header row into job records.
func Parse(r io.Reader) ([]JobRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Missing: append([]string(nil), RequiredColumns...)}
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, exists := columns[name]; !exists {
			columns[name] = i
		}
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	wanted := append(append([]string(nil), RequiredColumns...), OptionalColumns...)

	var records []JobRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}

		cells := make(map[string]string, len(wanted))
		for _, name := range wanted {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				cells[name] = ""
				continue
			}
			cells[name] = strings.TrimSpace(row[idx])
		}

		record, err := decodeRow(cells)
		if err != nil {
			return nil, fmt.Errorf("decoding row %d: %w", line, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func decodeRow(cells map[string]string) (JobRecord, error) {
	var record JobRecord

	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &record,
		TagName:  "csv",
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return JobRecord{}, err
	}

	if err := decoder.Decode(cells); err != nil {
		return JobRecord{}, err
	}

	record.SkillsList = NormalizeSkills(record.Skills)
	return record, nil
}

// NormalizeSkills splits a raw skills cell on ';', trims and lower-cases tokens
// and drops empty ones. Order is kept and duplicates are not removed.
func NormalizeSkills(raw string) []string {
	parts := strings.Split(raw, skillsDelimiter)
	skills := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			continue
		}
		skills = append(skills, token)
	}
	return skills
}

// Fingerprint returns a stable digest of the catalog content.
func Fingerprint(records []JobRecord) string {
	h := sha256.New()
	for _, r := range records {
		for _, field := range []string{r.ID, r.Title, r.Company, r.Location, r.Type, r.Skills, r.Description, r.ApplyURL, r.ApplyBy} {
			h.Write([]byte(field))
			h.Write([]byte{0})
		}
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
