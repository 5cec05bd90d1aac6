// Package marker adds and strips the suffix that tags a file as locked by paranoia.
package marker

import (
	"path/filepath"
	"strings"
)

// Default is appended to the stem of every file paranoia locks.
const Default = "_paranoia_encrypted"

// Add inserts marker between the stem and extension of name.
// Markers must not contain a dot, otherwise the extension of the result moves.
func Add(name, marker string) string {
	if marker == "" {
		return name
	}
	stem, ext := split(name)
	return stem + marker + ext
}

// Remove strips marker from the end of the stem of name.
// The second return value is false, and name is returned unchanged, when the stem
// does not end in marker.
func Remove(name, marker string) (string, bool) {
	if marker == "" {
		return name, false
	}
	stem, ext := split(name)
	trimmed, found := strings.CutSuffix(stem, marker)
	if !found {
		return name, false
	}
	return trimmed + ext, true
}

// AddPath applies Add to the base name of path, keeping its directory.
func AddPath(path, marker string) string {
	return filepath.Join(filepath.Dir(path), Add(filepath.Base(path), marker))
}

// RemovePath applies Remove to the base name of path, keeping its directory.
func RemovePath(path, marker string) (string, bool) {
	name, found := Remove(filepath.Base(path), marker)
	return filepath.Join(filepath.Dir(path), name), found
}

func split(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
