package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"demandcast/domain/core"
	"demandcast/domain/series"
	"demandcast/ports"
)

// DataReader loads series from .xlsx and .csv files.
type DataReader struct {
	cfg      FileConfig
	fileType string // "xlsx" or "csv"
	log      logrus.FieldLogger
}

var (
	_ ports.SeriesLoader    = (*DataReader)(nil)
	_ ports.SourceVersioner = (*DataReader)(nil)
)

// NewDataReader creates a reader for cfg.Path; the file type follows the extension.
func NewDataReader(cfg FileConfig, log logrus.FieldLogger) (*DataReader, error) {
	if cfg.Path == "" {
		return nil, core.NewValidationError("file", "path is required")
	}
	if len(cfg.EntityColumns) == 0 {
		return nil, core.NewValidationError("file", "at least one entity column is required")
	}
	if cfg.DateColumn == "" {
		return nil, core.NewValidationError("file", "date column is required")
	}
	if cfg.Sheet == "" {
		cfg.Sheet = "Sheet1"
	}

	fileType := "xlsx"
	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".csv":
		fileType = "csv"
	case ".xlsx", ".xlsm":
	default:
		return nil, core.NewValidationError("file", fmt.Sprintf("unsupported file type %q", filepath.Ext(cfg.Path)))
	}
	return &DataReader{
		cfg:      cfg,
		fileType: fileType,
		log:      log.WithFields(logrus.Fields{"component": "file_loader", "path": cfg.Path}),
	}, nil
}

// SourceVersion identifies the file contents by absolute path, size and modification time.
func (r *DataReader) SourceVersion(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := filepath.Abs(r.cfg.Path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%s file not found: %w", strings.ToUpper(r.fileType), err)
	}
	return fmt.Sprintf("%s@%d:%d", path, info.Size(), info.ModTime().UnixNano()), nil
}

// LoadSeries reads the whole file and applies the query filters in memory.
func (r *DataReader) LoadSeries(ctx context.Context, q ports.SeriesQuery) (*series.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(r.cfg.Path); err != nil {
		return nil, fmt.Errorf("%s file not found: %w", strings.ToUpper(r.fileType), err)
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV()
	default:
		rows, err = r.readExcel()
	}
	if err != nil {
		return nil, err
	}

	table := newRawTable(rows)
	frame, err := r.toFrame(table, q)
	if err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"rows":         frame.Len(),
		"entity_count": len(frame.EntityKeys()),
		"elapsed":      time.Since(start),
	}).Debug("Loaded series file")
	return frame, nil
}

func (r *DataReader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	// Raw values keep date cells as serial numbers instead of locale-formatted text.
	rows, err := f.GetRows(r.cfg.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.cfg.Sheet, err)
	}
	return rows, nil
}

func (r *DataReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (r *DataReader) valueColumns(t *rawTable) []string {
	if len(r.cfg.ValueColumns) > 0 {
		return r.cfg.ValueColumns
	}
	skip := map[string]bool{r.cfg.DateColumn: true}
	for _, c := range r.cfg.EntityColumns {
		skip[c] = true
	}
	var cols []string
	for _, h := range t.headers {
		if h != "" && !skip[h] {
			cols = append(cols, h)
		}
	}
	return cols
}

func (r *DataReader) toFrame(t *rawTable, q ports.SeriesQuery) (*series.Frame, error) {
	required := append([]string{r.cfg.DateColumn}, r.cfg.EntityColumns...)
	valueCols := r.valueColumns(t)
	for _, c := range append(required, valueCols...) {
		if _, ok := t.index[c]; !ok {
			return nil, core.NewMissingColumnError(c)
		}
	}

	wanted := make(map[series.EntityKey]bool, len(q.EntityIDs))
	for _, k := range q.EntityIDs {
		wanted[k] = true
	}

	frame := series.NewFrame(valueCols...)
	for i := range t.rows {
		parts := make([]string, len(r.cfg.EntityColumns))
		for j, c := range r.cfg.EntityColumns {
			parts[j] = t.cell(i, c)
		}
		if allEmpty(parts) && t.cell(i, r.cfg.DateColumn) == "" {
			continue
		}
		key := series.NewEntityKey(parts...)
		if len(wanted) > 0 && !wanted[key] {
			continue
		}

		date, err := parseDateCell(t.cell(i, r.cfg.DateColumn))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", core.ErrData, i+2, err)
		}
		if (q.Start != nil && date.Before(core.TruncateDay(*q.Start))) || (q.End != nil && date.After(core.TruncateDay(*q.End))) {
			continue
		}

		values := make(map[string]float64, len(valueCols))
		for _, c := range valueCols {
			v, err := parseNumberCell(t.cell(i, c))
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %s: %v", core.ErrData, i+2, c, err)
			}
			values[c] = v
		}
		frame.AppendRow(series.Row{Entity: key, Date: date, Values: values})
	}
	return frame.SortByEntityDate(), nil
}

func allEmpty(parts []string) bool {
	for _, p := range parts {
		if p != "" {
			return false
		}
	}
	return true
}

// parseDateCell accepts ISO dates, RFC 3339 timestamps and Excel serial numbers.
func parseDateCell(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := core.ParseDate(s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return core.TruncateDay(t), nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return core.TruncateDay(t), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseNumberCell(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "", "na", "n/a", "nan", "null":
		return series.Missing(), nil
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
