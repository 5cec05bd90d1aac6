package paranoia

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeCodec stores documents as one line of text:
//
//	doc pages=N          an unlocked document
//	enc pw=P pages=N     a document locked with password P
type fakeCodec struct {
	// lockAs replaces what Lock writes, to simulate broken encryption.
	lockAs func(pages int, password string) string
}

type fakeDoc struct {
	locked   bool
	password string
	pages    int
}

func parseFake(rs io.ReadSeeker) (fakeDoc, error) {
	data, err := io.ReadAll(rs)
	if err != nil {
		return fakeDoc{}, err
	}
	var doc fakeDoc
	if _, err := fmt.Sscanf(string(data), "doc pages=%d", &doc.pages); err == nil {
		return doc, nil
	}
	if _, err := fmt.Sscanf(string(data), "enc pw=%s pages=%d", &doc.password, &doc.pages); err == nil {
		doc.locked = true
		return doc, nil
	}
	return fakeDoc{}, errors.New("not a document")
}

func (c *fakeCodec) State(rs io.ReadSeeker) (State, error) {
	doc, err := parseFake(rs)
	if err != nil {
		return Unlocked, err
	}
	if doc.locked {
		return Locked, nil
	}
	return Unlocked, nil
}

func (c *fakeCodec) Unlock(rs io.ReadSeeker, w io.Writer, password string) error {
	doc, err := parseFake(rs)
	if err != nil {
		return err
	}
	if doc.password != password {
		return ErrWrongPassword
	}
	_, err = fmt.Fprintf(w, "doc pages=%d", doc.pages)
	return err
}

func (c *fakeCodec) Lock(rs io.ReadSeeker, w io.Writer, password string) error {
	doc, err := parseFake(rs)
	if err != nil {
		return err
	}
	if c.lockAs != nil {
		_, err = io.WriteString(w, c.lockAs(doc.pages, password))
		return err
	}
	_, err = fmt.Fprintf(w, "enc pw=%s pages=%d", password, doc.pages)
	return err
}

func (c *fakeCodec) PageCount(rs io.ReadSeeker, password string) (int, error) {
	doc, err := parseFake(rs)
	if err != nil {
		return 0, err
	}
	if doc.locked && doc.password != password {
		return 0, ErrWrongPassword
	}
	return doc.pages, nil
}

// fakeDisposer moves disposed files into its own directory.
type fakeDisposer struct {
	dir      string
	disposed []string
	err      error
}

func (d *fakeDisposer) Dispose(path string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	dest := filepath.Join(d.dir, fmt.Sprintf("%d-%s", len(d.disposed), filepath.Base(path)))
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	d.disposed = append(d.disposed, path)
	return dest, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeDoc(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
}

func readDoc(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
