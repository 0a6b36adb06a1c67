package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

// seedRow is the CSV shape for catalog seeding. gocsv matches by header name.
type seedRow struct {
	Name        string `csv:"name"`
	Brand       string `csv:"brand"`
	Category    string `csv:"category"`
	Subcategory string `csv:"subcategory"`
	UnitSize    string `csv:"unit_size"`
	CaseSize    string `csv:"case_size"`
}

// LoadCSV reads seed products from a CSV stream. Derived search fields
// (normalized name, phonetic key, search terms) are computed per row.
func LoadCSV(r io.Reader) ([]Product, error) {
	var rows []seedRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse seed CSV: %w", err)
	}

	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		p := Product{
			Name:        strings.TrimSpace(row.Name),
			Brand:       strings.TrimSpace(row.Brand),
			Category:    strings.TrimSpace(row.Category),
			Subcategory: strings.TrimSpace(row.Subcategory),
			UnitSize:    strings.TrimSpace(row.UnitSize),
			CaseSize:    strings.TrimSpace(row.CaseSize),
		}
		p.Derive()
		products = append(products, p)
	}
	return products, nil
}

// LoadXLSX reads seed products from the first sheet of an Excel workbook.
// Expects the same columns as LoadCSV, matched by header name.
func LoadXLSX(r io.Reader) ([]Product, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	colIdx := make(map[string]int)
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cell := func(row []string, name string) string {
		i, ok := colIdx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	products := make([]Product, 0, len(rows)-1)
	for _, row := range rows[1:] {
		name := cell(row, "name")
		if name == "" {
			continue
		}
		p := Product{
			Name:        name,
			Brand:       cell(row, "brand"),
			Category:    cell(row, "category"),
			Subcategory: cell(row, "subcategory"),
			UnitSize:    cell(row, "unit_size"),
			CaseSize:    cell(row, "case_size"),
		}
		p.Derive()
		products = append(products, p)
	}
	return products, nil
}
