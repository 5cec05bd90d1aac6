package xlsx

import "fmt"

// WorkbookError ties a conversion failure to a workbook and, when known, a sheet.
type WorkbookError struct {
	Path  string
	Sheet string
	Err   error
}

func (e *WorkbookError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("workbook %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("workbook %s, sheet '%s': %v", e.Path, e.Sheet, e.Err)
}

func (e *WorkbookError) Unwrap() error {
	return e.Err
}
