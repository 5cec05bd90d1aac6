// Package trash moves files somewhere the operator can still recover them from.
//
// On Linux and the BSDs this is the freedesktop.org home trash, so files show up in
// the desktop's own recycle bin. macOS uses ~/.Trash. Elsewhere, and whenever a
// directory is configured explicitly, the freedesktop layout is used in that directory.
package trash

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
)

const (
	infoSuffix   = ".trashinfo"
	deletionDate = "2006-01-02T15:04:05"

	// maxCollisions bounds the search for a free name in the trash.
	maxCollisions = 10000
)

// Trash disposes of files by moving them into a trash directory.
type Trash struct {
	dir       string
	writeInfo bool
	logger    *logrus.Logger
	now       func() time.Time
}

// New creates a trash rooted at dir, or at the platform's trash when dir is empty.
func New(dir string, logger *logrus.Logger) (*Trash, error) {
	writeInfo := true
	if dir == "" {
		var err error
		dir, writeInfo, err = defaultDir()
		if err != nil {
			return nil, err
		}
	} else {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand trash directory: %w", err)
		}
		dir = expanded
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve trash directory: %w", err)
	}

	return &Trash{dir: abs, writeInfo: writeInfo, logger: logger, now: time.Now}, nil
}

// Dir returns the trash directory.
func (t *Trash) Dir() string {
	return t.dir
}

// Dispose moves path into the trash and returns where it ended up.
func (t *Trash) Dispose(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	filesDir := t.dir
	if t.writeInfo {
		filesDir = filepath.Join(t.dir, "files")
	}
	if err := os.MkdirAll(filesDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create trash directory: %w", err)
	}

	name, infoPath, err := t.reserve(abs)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(filesDir, name)

	if err := move(abs, dest, info); err != nil {
		if infoPath != "" {
			if rmErr := os.Remove(infoPath); rmErr != nil {
				t.logger.WithError(rmErr).WithField("info", infoPath).Warn("Failed to remove orphaned trash info")
			}
		}
		return "", fmt.Errorf("failed to move %s to trash: %w", path, err)
	}

	t.logger.WithFields(logrus.Fields{
		"source": abs,
		"trash":  dest,
	}).Debug("Moved file to trash")

	return dest, nil
}

// reserve picks a free name for abs in the trash. With info files enabled the
// name is claimed by creating its .trashinfo exclusively, which is then filled in.
func (t *Trash) reserve(abs string) (name, infoPath string, err error) {
	infoDir := filepath.Join(t.dir, "info")
	if t.writeInfo {
		if err := os.MkdirAll(infoDir, 0700); err != nil {
			return "", "", fmt.Errorf("failed to create trash info directory: %w", err)
		}
	}

	for n := 1; n <= maxCollisions; n++ {
		name = candidateName(filepath.Base(abs), n)

		if !t.writeInfo {
			if _, err := os.Lstat(filepath.Join(t.dir, name)); errors.Is(err, os.ErrNotExist) {
				return name, "", nil
			}
			continue
		}

		if _, err := os.Lstat(filepath.Join(t.dir, "files", name)); err == nil {
			continue
		}

		infoPath = filepath.Join(infoDir, name+infoSuffix)
		f, err := os.OpenFile(infoPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("failed to create trash info: %w", err)
		}

		_, writeErr := io.WriteString(f, t.infoContent(abs))
		closeErr := f.Close()
		if err := errors.Join(writeErr, closeErr); err != nil {
			_ = os.Remove(infoPath)
			return "", "", fmt.Errorf("failed to write trash info: %w", err)
		}
		return name, infoPath, nil
	}

	return "", "", fmt.Errorf("no free name in trash for %s", filepath.Base(abs))
}

func (t *Trash) infoContent(abs string) string {
	escaped := (&url.URL{Path: filepath.ToSlash(abs)}).EscapedPath()
	return fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n", escaped, t.now().Format(deletionDate))
}

// candidateName returns base for the first attempt and "stem (n).ext" after that.
func candidateName(base string, n int) string {
	if n == 1 {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + " (" + strconv.Itoa(n) + ")" + ext
}

// move renames src to dest, copying across filesystems when a rename is impossible.
func move(src, dest string, info os.FileInfo) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !info.Mode().IsRegular() {
		return err
	}

	if copyErr := copyFile(src, dest, info.Mode().Perm()); copyErr != nil {
		return errors.Join(err, copyErr)
	}
	return os.Remove(src)
}

func copyFile(src, dest string, perm os.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func defaultDir() (dir string, writeInfo bool, err error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := homedir.Dir()
		if err != nil {
			return "", false, fmt.Errorf("failed to find home directory: %w", err)
		}
		return filepath.Join(home, ".Trash"), false, nil
	case "windows":
		return filepath.Join(xdg.DataHome, "deskchores", "Trash"), true, nil
	default:
		return filepath.Join(xdg.DataHome, "Trash"), true, nil
	}
}
