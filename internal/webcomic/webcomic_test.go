package webcomic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sammcj/deskchores/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type comicSite struct {
	server      *httptest.Server
	imageHits   atomic.Int32
	imageStatus int
	userAgent   atomic.Value
}

func newComicSite(t *testing.T) *comicSite {
	t.Helper()
	site := &comicSite{imageStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/comics/today", func(w http.ResponseWriter, r *http.Request) {
		site.userAgent.Store(r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, `<html><body>
<div id="comic"><img src="strips/2026-10-15.png" alt="today"></div>
<img class="ad" src="/ads/banner.gif">
</body></html>`)
	})
	mux.HandleFunc("/comics/strips/2026-10-15.png", func(w http.ResponseWriter, r *http.Request) {
		site.imageHits.Add(1)
		w.WriteHeader(site.imageStatus)
		_, _ = io.WriteString(w, "PNGDATA")
	})
	site.server = httptest.NewServer(mux)
	t.Cleanup(site.server.Close)
	return site
}

func newTestDownloader(t *testing.T, site *comicSite, out string) *Downloader {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client := httpclient.NewRateLimited(site.server.Client(), 1000, "deskchores-test")
	return NewDownloader(client, out, logger)
}

func TestSiteName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.gunnerkrigg.com/comics/00000001.jpg", "gunnerkrigg"},
		{"https://imgs.xkcd.com/comics/tasks.png", "imgs"},
		{"http://example.org/strip.png", "example"},
		{"http://localhost:8080/strip.png", "localhost"},
		{"https://www.localhost/strip.png", "localhost"},
		{"http://127.0.0.1:9000/strip.png", "127"},
		{"https://www.my-comic.net/strip.png", "my-comic"},
		{"file:///tmp/strip.png", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, SiteName(u))
		})
	}
}

func TestFetchDownloadsThenIsUpToDate(t *testing.T) {
	site := newComicSite(t)
	out := t.TempDir()
	d := newTestDownloader(t, site, out)
	entry := Entry{Page: site.server.URL + "/comics/today", Selector: "#comic img"}

	first := d.Fetch(context.Background(), entry)
	require.NoError(t, first.Err)
	assert.Equal(t, StatusDownloaded, first.Status)
	assert.Equal(t, site.server.URL+"/comics/strips/2026-10-15.png", first.Image)

	u, err := url.Parse(first.Image)
	require.NoError(t, err)
	want := filepath.Join(out, SiteName(u), "2026-10-15.png")
	assert.Equal(t, want, first.Path)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
	assert.Equal(t, "deskchores-test", site.userAgent.Load())

	second := d.Fetch(context.Background(), entry)
	require.NoError(t, second.Err)
	assert.Equal(t, StatusUpToDate, second.Status)
	assert.Equal(t, int32(1), site.imageHits.Load())
}

func TestFetchNoImage(t *testing.T) {
	site := newComicSite(t)
	d := newTestDownloader(t, site, t.TempDir())

	result := d.Fetch(context.Background(), Entry{Page: site.server.URL + "/comics/today", Selector: ".missing"})
	require.NoError(t, result.Err)
	assert.Equal(t, StatusNoImage, result.Status)
	assert.Zero(t, site.imageHits.Load())
}

func TestFetchPageNotFound(t *testing.T) {
	site := newComicSite(t)
	d := newTestDownloader(t, site, t.TempDir())

	result := d.Fetch(context.Background(), Entry{Page: site.server.URL + "/nope", Selector: "img"})
	assert.ErrorContains(t, result.Err, "unexpected status 404")
	assert.Empty(t, result.Status)
}

func TestFetchFailedDownloadLeavesNothing(t *testing.T) {
	site := newComicSite(t)
	site.imageStatus = http.StatusInternalServerError
	out := t.TempDir()
	d := newTestDownloader(t, site, out)

	result := d.Fetch(context.Background(), Entry{Page: site.server.URL + "/comics/today", Selector: "#comic img"})
	require.Error(t, result.Err)
	assert.NoFileExists(t, result.Path)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(result.Path), ".download-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRunContinuesPastFailures(t *testing.T) {
	site := newComicSite(t)
	d := newTestDownloader(t, site, t.TempDir())

	results, err := d.Run(context.Background(), []Entry{
		{Page: site.server.URL + "/nope", Selector: "img"},
		{Page: site.server.URL + "/comics/today", Selector: "#comic img"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Error(t, results[0].Err)
	assert.Equal(t, StatusDownloaded, results[1].Status)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	site := newComicSite(t)
	d := newTestDownloader(t, site, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := d.Run(ctx, []Entry{{Page: site.server.URL + "/comics/today", Selector: "#comic img"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
