package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/doctriage/internal/document"
)

// csvRowsPerPage is how many data rows make up one page.
const csvRowsPerPage = 20

// CSVParser handles CSV files. The header row is repeated at the top of every
// page of up to csvRowsPerPage data rows.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	if len(records) == 0 {
		return numberPages(filename, nil), nil
	}

	headers := records[0]
	dataRows := records[1:]

	var pages []string
	for i := 0; i < len(dataRows) || i == 0; i += csvRowsPerPage {
		end := min(i+csvRowsPerPage, len(dataRows))

		var text strings.Builder
		text.WriteString(strings.Join(headers, ", "))
		for _, row := range dataRows[i:end] {
			text.WriteString("\n")
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
		}
		pages = append(pages, text.String())
	}

	return numberPages(filename, pages), nil
}
