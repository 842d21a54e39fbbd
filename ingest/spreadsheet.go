package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/liamcoop/uecnrules/catalog"
	"github.com/xuri/excelize/v2"
)

// headerScanRows is how many rows from the top of a sheet are searched
// for the header and sample rows
const headerScanRows = 11

// ReadWorkbook reads every worksheet of an xlsx/xlsm workbook. Only the
// first sheet starts selected.
func ReadWorkbook(filename string, r io.Reader) (*catalog.File, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook %s: %w", filename, err)
	}
	defer f.Close()

	file := &catalog.File{Name: filename}
	for i, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}

		fields, descriptions := ExtractHeaders(rows)
		file.Sheets = append(file.Sheets, &catalog.Sheet{
			Name:         name,
			Fields:       fields,
			Descriptions: descriptions,
			Selected:     i == 0,
			Index:        i,
		})
	}

	if len(file.Sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", filename)
	}
	return file, nil
}

// ExtractHeaders finds the header row among the first rows of a sheet: the
// first row with at least two non-empty cells. The next such row supplies
// sample values. A sheet without a header row has no fields.
func ExtractHeaders(rows [][]string) ([]string, map[string]string) {
	fields := []string{}
	descriptions := make(map[string]string)

	start := 0
	for start < len(rows) && nonEmpty(rows[start]) == 0 {
		start++
	}
	end := min(start+headerScanRows, len(rows))

	header, sample := -1, -1
	for i := start; i < end; i++ {
		if nonEmpty(rows[i]) < 2 {
			continue
		}
		if header == -1 {
			header = i
			continue
		}
		sample = i
		break
	}
	if header == -1 {
		return fields, descriptions
	}

	for col, cell := range rows[header] {
		name := strings.TrimSpace(cell)
		if name == "" {
			continue
		}
		fields = append(fields, name)

		var value string
		if sample != -1 && col < len(rows[sample]) {
			value = rows[sample][col]
		}
		descriptions[name] = Describe(name, value)
	}

	return fields, descriptions
}

func nonEmpty(row []string) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}
