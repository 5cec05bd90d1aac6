package paranoia

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongPassword is returned when the password does not unlock a locked document.
	ErrWrongPassword = errors.New("password did not unlock the document")

	// ErrEmptyOutput is returned when a transformed document has no pages.
	// Nothing is written in that case.
	ErrEmptyOutput = errors.New("output has no pages")

	// ErrOutputExists is returned when the output name is already taken by another file.
	ErrOutputExists = errors.New("output file already exists")

	// ErrVerificationFailed is returned when a freshly locked document does not check out.
	ErrVerificationFailed = errors.New("locked output failed verification")
)

// FileError ties a failure to the file and step it happened in.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// VerificationError explains why a locked output was rejected.
type VerificationError struct {
	Output string
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrVerificationFailed, e.Output, e.Reason)
}

func (e *VerificationError) Unwrap() error {
	return ErrVerificationFailed
}

// Skippable reports whether err only means the file was left alone, as opposed to
// something having gone wrong with it.
func Skippable(err error) bool {
	return errors.Is(err, ErrWrongPassword) ||
		errors.Is(err, ErrEmptyOutput) ||
		errors.Is(err, ErrOutputExists)
}
