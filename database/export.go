package database

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"feedback-triage/logging"
	"feedback-triage/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// ExportHeader is the fixed column order of an export.
var ExportHeader = []string{"id", "timestamp", "rating", "review_text", "user_response", "admin_summary", "recommended_actions"}

const xlsxSheet = "Feedback"

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

// ParseExportFormat accepts "csv" (the default when empty) or "xlsx".
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or xlsx)", s)
}

// ContentType 导出文件的 MIME 类型
func (f ExportFormat) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FormatFromPath returns FormatXLSX for a .xlsx path and FormatCSV otherwise.
func FormatFromPath(path string) ExportFormat {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Export writes every record as CSV (newest first) and returns the number of data rows.
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	return s.ExportAs(ctx, w, FormatCSV)
}

// ExportAs writes every record (newest first) in the given format.
func (s *Store) ExportAs(ctx context.Context, w io.Writer, format ExportFormat) (int, error) {
	recs, err := s.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	switch format {
	case FormatXLSX:
		err = writeXLSX(w, recs)
	default:
		err = writeCSV(w, recs)
	}
	if err != nil {
		return 0, storageErr("export", err)
	}
	return len(recs), nil
}

func exportRow(r models.FeedbackRecord) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Timestamp.Format(time.RFC3339Nano),
		strconv.Itoa(r.Rating),
		r.ReviewText,
		r.UserResponse,
		r.AdminSummary,
		r.RecommendedActions,
	}
}

func writeCSV(w io.Writer, recs []models.FeedbackRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, r := range recs {
		if err := cw.Write(exportRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// checkCellLimits rejects records whose text would be truncated by the XLSX per-cell limit.
func checkCellLimits(recs []models.FeedbackRecord) error {
	for _, r := range recs {
		for i, v := range []string{r.ReviewText, r.UserResponse, r.AdminSummary, r.RecommendedActions} {
			if n := utf8.RuneCountInString(v); n > excelize.TotalCellChars {
				return errors.Errorf("record %d: %s has %d characters, XLSX cells hold at most %d; export as csv instead",
					r.ID, ExportHeader[i+3], n, excelize.TotalCellChars)
			}
		}
	}
	return nil
}

func writeXLSX(w io.Writer, recs []models.FeedbackRecord) error {
	if err := checkCellLimits(recs); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return err
	}
	header := make([]interface{}, len(ExportHeader))
	for i, h := range ExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range recs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		// id 和 rating 写成数字，方便在表格里排序
		row := []interface{}{
			r.ID,
			r.Timestamp.Format(time.RFC3339Nano),
			r.Rating,
			r.ReviewText,
			r.UserResponse,
			r.AdminSummary,
			r.RecommendedActions,
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// ExportFile writes the export to path, creating parent directories.
// A .xlsx extension selects the workbook format; anything else is CSV.
func (s *Store) ExportFile(ctx context.Context, path string) (n int, err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, storageErr("export", errors.Wrapf(err, "创建导出目录 %s 失败", dir))
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, storageErr("export", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = storageErr("export", cerr)
		}
	}()

	format := FormatFromPath(path)
	n, err = s.ExportAs(ctx, f, format)
	if err != nil {
		// 不保留不完整的导出文件
		f.Close()
		os.Remove(path)
		return 0, err
	}
	logging.Info("Feedback exported", logrus.Fields{"path": path, "rows": n, "format": format})
	return n, nil
}
