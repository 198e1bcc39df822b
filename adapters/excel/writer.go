package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"demandcast/domain/core"
	"demandcast/domain/series"
)

// WriteFrame writes the entity, date and the given columns of f to cfg.Path as .xlsx or .csv.
// Missing values become empty cells, so the output loads back through DataReader.
func WriteFrame(cfg FileConfig, f *series.Frame, columns []string) error {
	header := append(append(append([]string{}, cfg.EntityColumns...), cfg.DateColumn), columns...)
	records := make([][]string, 0, f.Len()+1)
	records = append(records, header)
	for i := 0; i < f.Len(); i++ {
		parts := f.Entity(i).Parts()
		if len(parts) != len(cfg.EntityColumns) {
			return fmt.Errorf("entity %q does not have %d parts", f.Entity(i), len(cfg.EntityColumns))
		}
		rec := append(append([]string{}, parts...), core.FormatDate(f.Date(i)))
		for _, c := range columns {
			rec = append(rec, formatValue(f.Value(c, i)))
		}
		records = append(records, rec)
	}

	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".csv":
		return writeCSV(cfg.Path, records)
	case ".xlsx":
		sheet := cfg.Sheet
		if sheet == "" {
			sheet = "Sheet1"
		}
		return writeExcel(cfg.Path, sheet, records, len(cfg.EntityColumns)+1)
	}
	return core.NewValidationError("file", fmt.Sprintf("unsupported file type %q", filepath.Ext(cfg.Path)))
}

func formatValue(v float64) string {
	if series.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return file.Close()
}

// writeExcel stores every column after the first textColumns as numbers.
func writeExcel(path, sheet string, records [][]string, textColumns int) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			row[j] = v
			if i > 0 && j >= textColumns && v != "" {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					row[j] = n
				}
			}
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}
