package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadCSV reads a header-driven CSV file into a Frame. Cell values are kept
// as strings; numeric and date coercion happens lazily via Float and Date so
// the same column can feed different encoders.
func LoadCSV(path string) (Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	frame, err := ReadCSV(f)
	if err != nil {
		return Frame{}, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return frame, nil
}

// ReadCSV parses CSV content from r. The first record is the header and
// defines the frame's schema. Ragged records are rejected.
func ReadCSV(r io.Reader) (Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return Frame{}, fmt.Errorf("empty input, expected a header row")
	}
	if err != nil {
		return Frame{}, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return Frame{}, fmt.Errorf("header column %d is empty", i)
		}
		if seen[name] {
			return Frame{}, fmt.Errorf("duplicate header column %q", name)
		}
		seen[name] = true
		columns[i] = name
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Frame{}, fmt.Errorf("line %d: %w", line, err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = record[i]
		}
		rows = append(rows, row)
	}

	return Frame{Columns: columns, Rows: rows}, nil
}
