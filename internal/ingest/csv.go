// Package ingest reads raw donation CSV exports into pipeline records.
// Columns are located by header name so exports with reordered or extra
// columns still load.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ncboe-donors/internal/engine"
)

// Header synonyms seen across county election-board exports.
var columnSynonyms = map[string][]string{
	"name":   {"name", "contributor name", "full name", "donor name"},
	"street": {"street", "street address", "street line 1", "address", "address line 1"},
	"city":   {"city"},
	"state":  {"state", "st"},
	"zip":    {"zip", "zip code", "zipcode", "postal code"},
	"county": {"county"},
	"amount": {"amount", "contribution amount", "total"},
	"ref":    {"ref", "source ref", "transaction id", "receipt id"},
}

// RowError describes one CSV row that could not be loaded. Bad rows are
// skipped, never aborting the file.
type RowError struct {
	Line   int
	Reason string
}

// Result carries the loaded records and the skipped rows.
type Result struct {
	Records []engine.RawRecord
	Skipped []RowError
}

// CSVReader loads donation CSV files.
type CSVReader struct{}

// NewCSVReader creates a reader.
func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

// ReadFile loads one CSV file. Rows missing both a name and an address are
// skipped and reported; a row without an explicit ref gets file:line.
func (cr *CSVReader) ReadFile(filename string) (*Result, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	defer file.Close()
	return cr.Read(file, filename)
}

// Read loads donation records from r. The name parameter labels generated
// source refs.
func (cr *CSVReader) Read(r io.Reader, name string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Line: line, Reason: err.Error()})
			continue
		}

		rec := engine.RawRecord{
			SourceRef: cols.get(row, "ref"),
			Name:      cols.get(row, "name"),
			Street:    cols.get(row, "street"),
			City:      cols.get(row, "city"),
			State:     cols.get(row, "state"),
			Zip:       cols.get(row, "zip"),
			County:    cols.get(row, "county"),
		}
		if rec.Name == "" && rec.Street == "" {
			result.Skipped = append(result.Skipped, RowError{Line: line, Reason: "no name or address"})
			continue
		}
		if rec.SourceRef == "" {
			rec.SourceRef = fmt.Sprintf("%s:%d", name, line)
		}
		if raw := cols.get(row, "amount"); raw != "" {
			amount, err := parseAmount(raw)
			if err != nil {
				result.Skipped = append(result.Skipped, RowError{Line: line, Reason: fmt.Sprintf("bad amount %q", raw)})
				continue
			}
			rec.Amount = amount
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

type columnMap map[string]int

func (c columnMap) get(row []string, field string) string {
	idx, ok := c[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for field, synonyms := range columnSynonyms {
			if _, taken := cols[field]; taken {
				continue
			}
			for _, s := range synonyms {
				if h == s {
					cols[field] = i
					break
				}
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("no name column in header %v", header)
	}
	return cols, nil
}

// parseAmount strips currency formatting before decimal parsing.
func parseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	return decimal.NewFromString(cleaned)
}
