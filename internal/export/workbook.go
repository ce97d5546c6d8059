package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/mobility-cli/internal/dataset"
)

// Sheet is one worksheet: a header row followed by data rows.
type Sheet struct {
	Name    string
	Records [][]string
}

// NewSheet renders rows through their csv tags.
func NewSheet[T any](name string, rows []T) (Sheet, error) {
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, rows); err != nil {
		return Sheet{}, err
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		return Sheet{}, eris.Wrapf(err, "export: render sheet %s", name)
	}
	return Sheet{Name: name, Records: records}, nil
}

// textColumn reports whether a column holds identifiers that must stay text even when
// they look numeric.
func textColumn(name string) bool {
	return name == "id" || strings.HasSuffix(name, "_id") || strings.HasSuffix(name, "_cell")
}

// WriteWorkbook saves sheets to an xlsx file. Numeric cells are written as numbers.
func WriteWorkbook(path string, sheets []Sheet) error {
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.Name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", s.Name)
		}
		var header []string
		for i, record := range s.Records {
			if i == 0 {
				header = record
			}
			row := sheet.AddRow()
			for j, value := range record {
				cell := row.AddCell()
				if i > 0 && j < len(header) && !textColumn(header[j]) {
					if v, err := strconv.ParseFloat(value, 64); err == nil {
						cell.SetFloat(v)
						continue
					}
				}
				cell.SetString(value)
			}
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	return nil
}
