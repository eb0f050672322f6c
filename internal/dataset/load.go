package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
)

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl":
		return FormatJSON
	default:
		return FormatCSV
	}
}

// Load reads a dataset file, detecting the format from its extension
func Load(filePath string) (*Dataset, error) {
	switch DetectFileFormat(filePath) {
	case FormatParquet:
		return LoadParquet(filePath)
	case FormatJSON:
		return LoadJSON(filePath)
	default:
		return LoadCSV(filePath)
	}
}

// LoadCSV reads a CSV file with a header row. Cells that parse as numbers
// become numeric values; empty cells become nulls.
func LoadCSV(filePath string) (*Dataset, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([][]Value, len(header))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		for i := range header {
			var cell Value
			if i < len(record) {
				cell = parseCell(record[i])
			} else {
				cell = Null()
			}
			columns[i] = append(columns[i], cell)
		}
	}

	ds := New(filepath.Base(filePath))
	for i, name := range header {
		if err := ds.AddColumn(name, columns[i]); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// LoadParquet reads a Parquet file using its own schema
func LoadParquet(filePath string) (*Dataset, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	fields := reader.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}

	columns := make([][]Value, len(fields))
	buf := make([]parquet.Row, 256)
	for {
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			cells := make([]Value, len(fields))
			for i := range cells {
				cells[i] = Null()
			}
			for _, pv := range row {
				idx := pv.Column()
				if idx < 0 || idx >= len(fields) {
					continue
				}
				cells[idx] = parquetValue(pv)
			}
			for i := range columns {
				columns[i] = append(columns[i], cells[i])
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}

	ds := New(filepath.Base(filePath))
	for i, name := range names {
		if err := ds.AddColumn(name, columns[i]); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// parquetValue converts a parquet cell to a dataset value
func parquetValue(pv parquet.Value) Value {
	if pv.IsNull() {
		return Null()
	}
	switch pv.Kind() {
	case parquet.Boolean:
		if pv.Boolean() {
			return Number(1)
		}
		return Number(0)
	case parquet.Int32, parquet.Int64:
		return Number(float64(pv.Int64()))
	case parquet.Float, parquet.Double:
		return Number(pv.Double())
	default:
		return String(pv.String())
	}
}

// LoadJSON reads a file of newline-delimited JSON objects. Keys become
// columns; objects may omit keys, which yields nulls.
func LoadJSON(filePath string) (*Dataset, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	var rows []map[string]interface{}
	seen := make(map[string]bool)
	var names []string

	for {
		var record map[string]interface{}
		err := decoder.Decode(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON record: %w", err)
		}

		rows = append(rows, record)
		for key := range record {
			if !seen[key] {
				seen[key] = true
				names = append(names, key)
			}
		}
	}

	// JSON object keys carry no order; keep columns stable
	sort.Strings(names)

	ds := New(filepath.Base(filePath))
	for _, name := range names {
		values := make([]Value, len(rows))
		for i, row := range rows {
			values[i] = jsonValue(row[name])
		}
		if err := ds.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// jsonValue converts a decoded JSON value to a dataset value
func jsonValue(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Null()
	case string:
		if v == "" {
			return Null()
		}
		return String(v)
	case float64:
		return Number(v)
	case bool:
		if v {
			return Number(1)
		}
		return Number(0)
	default:
		return String(fmt.Sprintf("%v", v))
	}
}

// parseCell converts one CSV cell into a typed value
func parseCell(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Null()
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Number(f)
	}
	return String(raw)
}
