// Package webcomic polls comic pages and saves any strip it has not seen before.
package webcomic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// Status is what polling a comic came to.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusUpToDate   Status = "up-to-date"
	StatusNoImage    Status = "no-image"
)

// Getter fetches a URL.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Result is the outcome of polling one Entry.
type Result struct {
	Entry
	Image  string `json:"image,omitempty"`
	Path   string `json:"path,omitempty"`
	Status Status `json:"status,omitempty"`
	Err    error  `json:"-"`
}

// Downloader saves new strips under out/<site>/.
type Downloader struct {
	client Getter
	out    string
	logger logrus.FieldLogger
}

// NewDownloader creates a downloader that fetches with client.
func NewDownloader(client Getter, out string, logger logrus.FieldLogger) *Downloader {
	return &Downloader{client: client, out: out, logger: logger}
}

// Run polls every entry in turn. Failures are recorded per entry. The error is
// only set when ctx ends the run early.
func (d *Downloader) Run(ctx context.Context, entries []Entry) ([]Result, error) {
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result := d.Fetch(ctx, entry)
		if result.Err != nil {
			d.logger.WithError(result.Err).WithField("page", entry.Page).Error("Failed to poll comic")
		}
		results = append(results, result)
	}
	return results, nil
}

// Fetch polls one comic page and downloads its image if it is new.
func (d *Downloader) Fetch(ctx context.Context, entry Entry) Result {
	result := Result{Entry: entry}
	log := d.logger.WithField("page", entry.Page)

	image, err := d.findImage(ctx, entry)
	if err != nil {
		result.Err = err
		return result
	}
	if image == nil {
		log.WithField("selector", entry.Selector).Debug("No image matched")
		result.Status = StatusNoImage
		return result
	}
	result.Image = image.String()

	name := path.Base(image.Path)
	if name == "" || name == "/" || name == "." {
		result.Err = fmt.Errorf("image URL %s has no file name", image)
		return result
	}

	dir := filepath.Join(d.out, SiteName(image))
	result.Path = filepath.Join(dir, name)

	if _, err := os.Stat(result.Path); err == nil {
		log.WithField("path", result.Path).Debug("Already have latest strip")
		result.Status = StatusUpToDate
		return result
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Err = fmt.Errorf("failed to create %s: %w", dir, err)
		return result
	}
	if err := d.download(ctx, result.Image, result.Path); err != nil {
		result.Err = err
		return result
	}

	log.WithField("path", result.Path).Debug("Downloaded strip")
	result.Status = StatusDownloaded
	return result
}

// findImage returns the absolute URL of the first element matching the entry's
// selector, or nil when nothing matches.
func (d *Downloader) findImage(ctx context.Context, entry Entry) (*url.URL, error) {
	resp, err := d.client.Get(ctx, entry.Page)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			d.logger.WithError(err).Warn("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", entry.Page, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", entry.Page, err)
	}

	src, ok := doc.Find(entry.Selector).First().Attr("src")
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return nil, nil
	}

	base, err := url.Parse(entry.Page)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", entry.Page, err)
	}
	if resp.Request != nil && resp.Request.URL != nil {
		// Relative to wherever redirects ended up.
		base = resp.Request.URL
	}
	image, err := base.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL %q: %w", src, err)
	}
	return image, nil
}

// download saves src to dest through a temp file, so an interrupted download
// never leaves a partial image under the final name.
func (d *Downloader) download(ctx context.Context, src, dest string) (err error) {
	resp, err := d.client.Get(ctx, src)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			d.logger.WithError(err).Warn("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %d", src, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			if rerr := os.Remove(tmp.Name()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				d.logger.WithError(rerr).Warn("Failed to remove partial download")
			}
		}
	}()

	if _, err = io.Copy(tmp, resp.Body); err != nil {
		return fmt.Errorf("failed to download %s: %w", src, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close download: %w", err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to save %s: %w", dest, err)
	}
	return nil
}

// SiteName picks the folder an image is filed under: the first label of its
// host once a leading www. is dropped.
func SiteName(image *url.URL) string {
	host := strings.TrimPrefix(image.Hostname(), "www.")
	if label, _, _ := strings.Cut(host, "."); label != "" {
		return label
	}
	return "unknown"
}
