package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"crypto-market-etl/internal/domain"
)

// CSVFile reads a flat file of records. Each row becomes one opaque JSON
// payload keyed by the header columns; all type coercion and validation
// is left to the transformer.
type CSVFile struct {
	path string
	now  func() time.Time
}

// NewCSVFile creates a CSV adapter for the given file path.
func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path, now: time.Now}
}

// Source identifies the provider.
func (c *CSVFile) Source() domain.Source {
	return domain.SourceCSV
}

// Compile-time interface check.
var _ Adapter = (*CSVFile)(nil)

// FetchBatch reads the whole file. A missing or malformed file is a fatal
// (non-retryable) error; an empty file yields an empty batch.
func (c *CSVFile) FetchBatch(_ context.Context) ([]*domain.RawRecord, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv file %s: %w", c.path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	fetchedAt := c.now()
	records := make([]*domain.RawRecord, 0, len(rows)-1)

	for _, row := range rows[1:] {
		doc := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				doc[col] = row[i]
			}
		}

		payload, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode csv row: %w", err)
		}

		records = append(records, &domain.RawRecord{
			Source:     domain.SourceCSV,
			ExternalID: doc["coin_id"],
			FetchedAt:  fetchedAt,
			Payload:    payload,
		})
	}

	return records, nil
}
