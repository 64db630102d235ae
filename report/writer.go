package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"monitor-pricewatch/models"
	"monitor-pricewatch/snapshot"
)

// ComparisonPath returns the path of a comparison output, e.g. comparison_20240315.csv
func ComparisonPath(dir, date, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("comparison_%s.%s", date, ext))
}

// RetailerPath returns the per-retailer comparison CSV path
func RetailerPath(dir, retailer, date string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_comparison_%s.csv", retailer, date))
}

// CombinedPath returns the cross-retailer price table path
func CombinedPath(dir, date string) string {
	return filepath.Join(dir, fmt.Sprintf("combined_product_data_%s.csv", date))
}

// Writer saves report files under one directory
type Writer struct {
	dir  string
	xlsx bool
	log  logrus.FieldLogger
}

// NewWriter creates a new Writer instance
func NewWriter(dir string, xlsx bool, log logrus.FieldLogger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{dir: dir, xlsx: xlsx, log: log}
}

type outputFile struct {
	path string
	data []byte
}

// WriteReport renders every output for the report, then writes them.
// Nothing is written when rendering fails. Returns the written paths.
func (w *Writer) WriteReport(report *models.Report, resellers []string) ([]string, error) {
	var files []outputFile

	data, err := ComparisonCSV(report)
	if err != nil {
		return nil, fmt.Errorf("failed to render comparison CSV: %w", err)
	}
	files = append(files, outputFile{ComparisonPath(w.dir, report.Date, "csv"), data})

	if data, err = ComparisonJSON(report); err != nil {
		return nil, fmt.Errorf("failed to render comparison JSON: %w", err)
	}
	files = append(files, outputFile{ComparisonPath(w.dir, report.Date, "json"), data})

	for _, retailer := range resellers {
		if data, err = RetailerCSV(report, retailer); err != nil {
			return nil, fmt.Errorf("failed to render %s comparison CSV: %w", retailer, err)
		}
		files = append(files, outputFile{RetailerPath(w.dir, retailer, report.Date), data})
	}

	if w.xlsx {
		if data, err = XLSX(report); err != nil {
			return nil, fmt.Errorf("failed to render workbook: %w", err)
		}
		files = append(files, outputFile{ComparisonPath(w.dir, report.Date, "xlsx"), data})
	}

	return w.writeAll(files)
}

// WriteCombined saves the cross-retailer price table and returns its path
func (w *Writer) WriteCombined(table *models.CombinedTable) (string, error) {
	data, err := CombinedCSV(table)
	if err != nil {
		return "", fmt.Errorf("failed to render combined table: %w", err)
	}

	path := CombinedPath(w.dir, table.Date)
	if _, err := w.writeAll([]outputFile{{path, data}}); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) writeAll(files []outputFile) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		data := f.data
		err := snapshot.WriteFileAtomic(f.path, func(out io.Writer) error {
			_, err := out.Write(data)
			return err
		})
		if err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		w.log.WithField("path", f.path).Infof("Saved %s", filepath.Base(f.path))
		paths = append(paths, f.path)
	}
	return paths, nil
}
