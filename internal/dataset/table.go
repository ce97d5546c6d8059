package dataset

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is a schema-agnostic tabular dataset: a header plus string rows. Engines that
// accept producer-defined column names read Tables rather than typed records.
type Table struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

// NewTable builds a table, indexing columns case-insensitively.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, dup := t.index[key]; !dup {
			t.index[key] = i
		}
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[strings.ToLower(name)]
	return ok
}

// Index returns the position of the column, or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

// Value returns the cell at row for the named column, or "" when absent.
func (t *Table) Value(row int, name string) string {
	return t.cell(row, t.Index(name))
}

// Float parses the cell as a number. ok is false for absent, empty or non-numeric cells.
func (t *Table) Float(row int, name string) (float64, bool) {
	v := t.Value(row, name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Bool parses the cell as a boolean, accepting true/false, 1/0 and yes/no.
func (t *Table) Bool(row int, name string) (bool, bool) {
	switch strings.ToLower(t.Value(row, name)) {
	case "true", "1", "yes", "t":
		return true, true
	case "false", "0", "no", "f":
		return false, true
	default:
		return false, false
	}
}

func (t *Table) cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// ReadTable reads a CSV stream into a Table. The first record is the header.
func ReadTable(ctx context.Context, r io.Reader) (*Table, error) {
	rowCh, errCh := StreamRows(ctx, r)

	var (
		header []string
		rows   [][]string
	)
	for row := range rowCh {
		if header == nil {
			header = row
			continue
		}
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	if header == nil {
		return nil, eris.New("dataset: table has no header")
	}
	return NewTable(header, rows), nil
}

// ReadTableFile reads a .csv, .csv.zst or .xlsx file into a Table. Workbooks are read
// from their first sheet.
func ReadTableFile(ctx context.Context, path string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSX(path)
	}
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	t, err := ReadTable(ctx, rc)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	return t, nil
}

func readXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("dataset: workbook %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("dataset: table has no header")
	}
	var rows [][]string
	for _, row := range sheet.Rows[1:] {
		rows = append(rows, rowToStrings(row))
	}
	return NewTable(rowToStrings(sheet.Rows[0]), rows), nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}
