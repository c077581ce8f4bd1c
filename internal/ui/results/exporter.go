package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pheller/sqlpilot/internal/driver"
)

// Export writes columns and rows to path in the given format, returning
// the number of data rows written.
func Export(path, format string, columns []driver.ColumnMeta, rows [][]string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var n int64
	switch strings.ToLower(format) {
	case "csv":
		n, err = WriteCSV(f, columns, rows)
	case "json":
		n, err = WriteJSON(f, columns, rows)
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}
	return n, err
}

// WriteCSV writes a header row followed by the data rows.
func WriteCSV(w io.Writer, columns []driver.ColumnMeta, rows [][]string) (int64, error) {
	cw := csv.NewWriter(w)

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	var count int64
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return count, err
		}
		count++
	}

	cw.Flush()
	return count, cw.Error()
}

// WriteJSON writes the rows as a JSON array of objects mapping column
// names to string values.
func WriteJSON(w io.Writer, columns []driver.ColumnMeta, rows [][]string) (int64, error) {
	colNames := make([]string, len(columns))
	for i, c := range columns {
		colNames[i] = c.Name
	}

	objects := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]string, len(colNames))
		for j, name := range colNames {
			if j < len(row) {
				obj[name] = row[j]
			} else {
				obj[name] = ""
			}
		}
		objects = append(objects, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(objects); err != nil {
		return 0, err
	}
	return int64(len(objects)), nil
}
