// Package xlsx converts Excel workbooks into one CSV file per sheet.
package xlsx

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// lockPrefix marks the owner files Excel leaves next to open workbooks.
const lockPrefix = "~$"

// Result is what happened to one workbook.
type Result struct {
	Workbook string   `json:"workbook"`
	Files    []string `json:"files,omitempty"`
	Err      error    `json:"-"`
}

// Converter writes CSV files for the workbooks it is given.
type Converter struct {
	out    string
	logger logrus.FieldLogger
}

// NewConverter creates a converter that writes into out. An empty out writes each
// CSV next to its workbook.
func NewConverter(out string, logger logrus.FieldLogger) *Converter {
	return &Converter{out: out, logger: logger}
}

// Workbooks lists the .xlsx files directly inside dir, skipping Excel lock files.
func Workbooks(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "*.xlsx", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list workbooks in %s: %w", dir, err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.HasPrefix(m, lockPrefix) {
			continue
		}
		paths = append(paths, filepath.Join(dir, m))
	}
	slices.Sort(paths)
	return paths, nil
}

// ConvertDir converts every workbook in dir. A workbook that fails is recorded in
// its Result and the rest still run. The error is for listing failures and
// cancellation only.
func (c *Converter) ConvertDir(ctx context.Context, dir string) ([]Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	paths, err := Workbooks(dir)
	if err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{
		"dir":       dir,
		"workbooks": len(paths),
	}).Debug("Converting workbooks")

	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		files, err := c.Convert(path)
		if err != nil {
			c.logger.WithError(err).WithField("workbook", path).Error("Failed to convert workbook")
		}
		results = append(results, Result{Workbook: path, Files: files, Err: err})
	}
	return results, nil
}

// Convert writes {stem}_{sheet}.csv for every sheet of the workbook at path and
// returns the files written, in sheet order.
func (c *Converter) Convert(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &WorkbookError{Path: path, Err: fmt.Errorf("failed to open workbook: %w", err)}
	}
	defer func() {
		if err := f.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close workbook")
		}
	}()

	out := c.out
	if out == "" {
		out = filepath.Dir(path)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, &WorkbookError{Path: path, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var written []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return written, &WorkbookError{Path: path, Sheet: sheet, Err: fmt.Errorf("failed to read rows: %w", err)}
		}
		dimension, err := f.GetSheetDimension(sheet)
		if err != nil {
			return written, &WorkbookError{Path: path, Sheet: sheet, Err: fmt.Errorf("failed to read used range: %w", err)}
		}
		rows = fitDimension(rows, dimension)

		target := filepath.Join(out, fmt.Sprintf("%s_%s.csv", stem, sheet))
		if err := writeFile(target, rows); err != nil {
			return written, &WorkbookError{Path: path, Sheet: sheet, Err: err}
		}
		written = append(written, target)

		c.logger.WithFields(logrus.Fields{
			"sheet": sheet,
			"rows":  len(rows),
			"csv":   target,
		}).Debug("Wrote sheet")
	}
	return written, nil
}

// fitDimension grows rows to the sheet's recorded used range, such as "A1:C5".
// GetRows stops at the last row and column holding a value, but the used range also
// counts blank cells that carry formatting. A sheet with no values stays empty.
func fitDimension(rows [][]string, dimension string) [][]string {
	if len(rows) == 0 || dimension == "" {
		return rows
	}
	ref := dimension
	if _, end, ok := strings.Cut(dimension, ":"); ok {
		ref = end
	}
	cols, last, err := excelize.CellNameToCoordinates(strings.ReplaceAll(ref, "$", ""))
	if err != nil {
		return rows
	}

	for len(rows) < last {
		rows = append(rows, nil)
	}
	// WriteCSV pads every row to the widest, so widening one is enough.
	if len(rows[0]) < cols {
		first := make([]string, cols)
		copy(first, rows[0])
		rows[0] = first
	}
	return rows
}

func writeFile(path string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return WriteCSV(f, rows)
}

// WriteCSV writes rows as CSV, padding every row to the widest one so each
// record has the same number of fields.
func WriteCSV(w io.Writer, rows [][]string) error {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	cw := csv.NewWriter(w)
	record := make([]string, width)
	for _, row := range rows {
		n := copy(record, row)
		clear(record[n:])
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
