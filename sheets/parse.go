// Package sheets reads product rows from CSV and XLSX uploads and writes bulk results back out.
package sheets

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

const (
	ColumnProductName = "product_name"
	ColumnDescription = "description"
)

var (
	ErrInvalidFileType = models.ValidationError{Message: "Invalid file type. Please upload a CSV or XLSX file."}
	ErrCSVColumns      = models.ValidationError{Message: `CSV must contain "product_name" and "description" columns.`}
	ErrExcelColumns    = models.ValidationError{Message: `Excel file must contain "product_name" and "description" columns.`}
	ErrCSVParse        = models.ValidationError{Message: "Failed to parse CSV file."}
	ErrExcelParse      = models.ValidationError{Message: "Failed to parse Excel file."}
)

// IsSupported reports whether name has an extension ParseFile accepts
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ParseFile picks the parser from the file extension
func ParseFile(name string, data []byte) ([]models.BulkProductInfo, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ParseCSV(bytes.NewReader(data))
	case ".xlsx":
		return ParseExcel(bytes.NewReader(data))
	default:
		return nil, ErrInvalidFileType
	}
}

// ParseCSV reads a CSV with a header row. Columns may come in any order and
// extra columns are ignored. Rows without a product name are dropped.
func ParseCSV(r io.Reader) ([]models.BulkProductInfo, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrCSVColumns
	}
	if err != nil {
		return nil, ErrCSVParse
	}

	index, ok := columnIndex(headers)
	if !ok {
		return nil, ErrCSVColumns
	}

	var records []models.BulkProductInfo
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ErrCSVParse
		}
		if record, keep := toRecord(row, index); keep {
			records = append(records, record)
		}
	}
	return records, nil
}

// ParseExcel reads the first sheet of a workbook, using its first row as the header
func ParseExcel(r io.Reader) ([]models.BulkProductInfo, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ErrExcelParse
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, ErrExcelParse
	}

	// skip leading blank rows so the header is the first row with content
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, nil
	}

	index, ok := columnIndex(rows[0])
	if !ok {
		return nil, ErrExcelColumns
	}

	var records []models.BulkProductInfo
	for _, row := range rows[1:] {
		if record, keep := toRecord(row, index); keep {
			records = append(records, record)
		}
	}
	return records, nil
}

type columns struct {
	name        int
	description int
}

func columnIndex(headers []string) (columns, bool) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.ToLower(strings.TrimSpace(h))
		if _, seen := index[h]; !seen {
			index[h] = i
		}
	}
	name, okName := index[ColumnProductName]
	desc, okDesc := index[ColumnDescription]
	return columns{name: name, description: desc}, okName && okDesc
}

func toRecord(row []string, idx columns) (models.BulkProductInfo, bool) {
	name := strings.TrimSpace(cell(row, idx.name))
	if name == "" {
		return models.BulkProductInfo{}, false
	}
	return models.BulkProductInfo{
		ProductName: norm.NFC.String(name),
		Description: norm.NFC.String(strings.TrimSpace(cell(row, idx.description))),
	}, true
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
