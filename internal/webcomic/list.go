package webcomic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Entry is one comic to poll: the page that shows the latest strip and the CSS
// selector for its image.
type Entry struct {
	Page     string `json:"page"`
	Selector string `json:"selector"`
	Line     int    `json:"line"`
}

// ListError points at the line of the comics list that could not be used.
type ListError struct {
	Line int
	Err  error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ListError) Unwrap() error {
	return e.Err
}

// LoadListFile reads the comics list at path.
func LoadListFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open comics list: %w", err)
	}
	defer func() { _ = f.Close() }()

	entries, err := LoadList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// LoadList parses "page URL, CSS selector" rows. Blank lines and lines starting
// with # are ignored. The first bad row stops parsing.
func LoadList(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var entries []Entry
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &ListError{Line: perr.StartLine, Err: perr.Err}
			}
			return nil, fmt.Errorf("failed to read comics list: %w", err)
		}

		line, _ := cr.FieldPos(0)
		entry, err := parseEntry(record)
		if err != nil {
			return nil, &ListError{Line: line, Err: err}
		}
		entry.Line = line
		entries = append(entries, entry)
	}
}

func parseEntry(record []string) (Entry, error) {
	if len(record) != 2 {
		return Entry{}, fmt.Errorf("want 2 fields (page URL, CSS selector), got %d", len(record))
	}
	page := strings.TrimSpace(record[0])
	selector := strings.TrimSpace(record[1])

	u, err := url.Parse(page)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid page URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Entry{}, fmt.Errorf("page URL %q must be absolute http or https", page)
	}

	if selector == "" {
		return Entry{}, errors.New("CSS selector is empty")
	}
	if _, err := cascadia.Compile(selector); err != nil {
		return Entry{}, fmt.Errorf("invalid CSS selector %q: %w", selector, err)
	}

	return Entry{Page: page, Selector: selector}, nil
}
