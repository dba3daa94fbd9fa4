package sheets

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/xuri/excelize/v2"
)

// ResultsSheet is the sheet name of exported workbooks
const ResultsSheet = "Results"

// ResultColumns is the column order of every export
var ResultColumns = []string{
	ColumnProductName,
	ColumnDescription,
	"generated_description_1",
	"generated_description_2",
	"generated_description_3",
	"meta_title",
	"meta_description",
	"keywords",
	"error",
}

// TemplateCSV is the sample upload file offered to users
const TemplateCSV = "product_name,description\nSmart Thermos Bottle,\"Keeps drinks hot for 12 hours, LED temperature display, 500ml capacity\"\n"

func resultRow(r models.BulkResult) []string {
	g := r.Generated
	if g == nil {
		g = &models.GeneratedFields{}
	}
	return []string{
		r.ProductName,
		r.Description,
		g.GeneratedDescription1,
		g.GeneratedDescription2,
		g.GeneratedDescription3,
		g.MetaTitle,
		g.MetaDescription,
		g.Keywords,
		r.Error,
	}
}

// WriteCSV renders results with a header row. No results renders an empty file.
func WriteCSV(results []models.BulkResult) ([]byte, error) {
	if len(results) == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ResultColumns); err != nil {
		return nil, err
	}
	for _, r := range results {
		if err := w.Write(resultRow(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteExcel renders results into a workbook with a single "Results" sheet
func WriteExcel(results []models.BulkResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ResultsSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(ResultColumns))
	for i, c := range ResultColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(ResultsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range results {
		values := resultRow(r)
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(ResultsSheet, cellName, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
