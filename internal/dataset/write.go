package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
)

// WriteCSV writes the dataset to a CSV file with a header row. Nulls become
// empty cells.
func WriteCSV(ds *Dataset, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	names := ds.ColumnNames()
	if err := writer.Write(names); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	columns := make([]*Column, len(names))
	for i, name := range names {
		col, _ := ds.Column(name)
		columns[i] = col
	}

	record := make([]string, len(names))
	for row := 0; row < ds.RowCount(); row++ {
		for i, col := range columns {
			record[i] = col.Values[row].Text()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
