package validation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxImportRows bounds a single bulk import.
const MaxImportRows = 500

// CSVRow is one property line of a bulk import.
type CSVRow struct {
	Address   string `json:"address" validate:"required,min=1,max=500"`
	STROTier  int    `json:"stro_tier" validate:"min=1,max=4"`
	LicenseID string `json:"license_id" validate:"required,min=1,max=100"`
}

// RowError reports a rejected line; Line counts the header as line 1.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

var requiredColumns = []string{"address", "stro_tier", "license_id"}

var ErrTooManyRows = fmt.Errorf("import is limited to %d rows", MaxImportRows)

// ParseCSV reads a header row naming address, stro_tier and license_id in any
// order, then validates each data row independently.
func (v *Validator) ParseCSV(r io.Reader) ([]CSVRow, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("CSV file is empty")
		}
		return nil, nil, fmt.Errorf("reading CSV header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, nil, fmt.Errorf("CSV is missing the %q column", col)
		}
	}

	var (
		rows    []CSVRow
		rowErrs []RowError
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, nil, fmt.Errorf("reading CSV: %w", err)
			}
			rowErrs = append(rowErrs, RowError{Line: perr.StartLine, Message: perr.Err.Error()})
			continue
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		if len(rows)+len(rowErrs) >= MaxImportRows {
			return nil, nil, ErrTooManyRows
		}

		row, msg := v.row(rec, idx)
		if msg != "" {
			rowErrs = append(rowErrs, RowError{Line: line, Message: msg})
			continue
		}
		rows = append(rows, row)
	}

	return rows, rowErrs, nil
}

func (v *Validator) row(rec []string, idx map[string]int) (CSVRow, string) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	row := CSVRow{
		Address:   field("address"),
		LicenseID: field("license_id"),
	}
	tier, err := strconv.Atoi(field("stro_tier"))
	if err != nil {
		return CSVRow{}, "STRO tier must be between 1 and 4"
	}
	row.STROTier = tier

	if err := v.Struct(row); err != nil {
		if ve, ok := AsError(err); ok {
			return CSVRow{}, ve.First()
		}
		return CSVRow{}, err.Error()
	}
	return row, ""
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
