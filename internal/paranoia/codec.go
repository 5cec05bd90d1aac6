package paranoia

import "io"

// Codec reads and rewrites documents. Every call gets a reader positioned at the
// start of the document.
type Codec interface {
	// State reports whether the document needs a password.
	State(rs io.ReadSeeker) (State, error)

	// Unlock writes an unprotected copy of a locked document to w.
	// A password that does not open the document yields ErrWrongPassword.
	Unlock(rs io.ReadSeeker, w io.Writer, password string) error

	// Lock writes a copy of the document protected by password to w.
	Lock(rs io.ReadSeeker, w io.Writer, password string) error

	// PageCount opens the document with password, which may be empty, and counts its pages.
	PageCount(rs io.ReadSeeker, password string) (int, error)
}
