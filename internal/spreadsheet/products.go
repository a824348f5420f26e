// Package spreadsheet reads and writes product catalogs as XLSX workbooks.
package spreadsheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/xuri/excelize/v2"
)

const sheetName = "productos"

// Header is the column layout shared by import and export.
var Header = []string{"id", "nombre", "descripcion", "precio", "stock", "imagen"}

// WriteProducts writes products as a single-sheet workbook.
func WriteProducts(w io.Writer, products []model.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, p := range products {
		image := ""
		if p.Image != nil {
			image = *p.Image
		}
		row := []interface{}{p.ID, p.Name, p.Description, p.Price.StringFixed(2), p.Stock, image}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// RowError describes a data row that could not be imported.
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// ReadProducts parses the first sheet of a workbook. Columns are located by
// header name, so an exported workbook (with its id column) reads back as-is.
// Rows that fail validation are skipped and reported.
func ReadProducts(r io.Reader) ([]model.Product, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no data found in XLSX file")
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"nombre", "precio", "stock"} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", required)
		}
	}

	get := func(row []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		products []model.Product
		skipped  []RowError
	)
	for i, row := range rows[1:] {
		rowNum := i + 2

		name := get(row, "nombre")
		if name == "" {
			skipped = append(skipped, RowError{Row: rowNum, Reason: "nombre vacío"})
			continue
		}

		price, err := decimal.NewFromString(get(row, "precio"))
		if err != nil || price.IsNegative() {
			skipped = append(skipped, RowError{Row: rowNum, Reason: "precio inválido"})
			continue
		}

		stock, err := strconv.Atoi(get(row, "stock"))
		if err != nil || stock < 0 {
			skipped = append(skipped, RowError{Row: rowNum, Reason: "stock inválido"})
			continue
		}

		product := model.Product{
			Name:        name,
			Description: get(row, "descripcion"),
			Price:       price.Round(2),
			Stock:       stock,
		}
		if image := get(row, "imagen"); image != "" {
			product.Image = &image
		}
		products = append(products, product)
	}

	return products, skipped, nil
}
