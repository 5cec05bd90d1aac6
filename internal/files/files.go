// Package files enumerates files by extension beneath a directory.
package files

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// errStop ends a walk early when the consumer stops ranging.
var errStop = errors.New("stop walking")

// Walk lazily yields every file beneath dir, at any depth, whose name ends in ext.
// The sequence is restartable only by ranging over it again, which walks the tree afresh.
// A failure to walk is yielded once as a non-nil error, after which the sequence ends.
func Walk(dir, ext string) iter.Seq2[string, error] {
	return walk(dir, "**/*"+ext)
}

// Shallow is Walk limited to the files directly inside dir.
func Shallow(dir, ext string) iter.Seq2[string, error] {
	return walk(dir, "*"+ext)
}

// List is Walk for callers that need a snapshot before they modify the tree.
func List(dir, ext string) ([]string, error) {
	return Collect(Walk(dir, ext))
}

// Collect drains seq, stopping at the first error.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var paths []string
	for path, err := range seq {
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func walk(dir, pattern string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		info, err := os.Stat(dir)
		if err != nil {
			yield("", err)
			return
		}
		if !info.IsDir() {
			yield("", &fs.PathError{Op: "walk", Path: dir, Err: errors.New("not a directory")})
			return
		}

		err = doublestar.GlobWalk(os.DirFS(dir), pattern, func(path string, d fs.DirEntry) error {
			full := filepath.Join(dir, filepath.FromSlash(path))
			if d.Type()&fs.ModeSymlink != 0 && isDir(full) {
				return nil
			}
			if !yield(full, nil) {
				return errStop
			}
			return nil
		}, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
		if err != nil && !errors.Is(err, errStop) {
			yield("", err)
		}
	}
}

// isDir reports whether path resolves to a directory. Symlinked directories are
// not descended into, and are not files either.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
