package folder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChooser struct {
	answer  string
	err     error
	calls   int
	options []string
}

func (f *fakeChooser) Choose(_ context.Context, _ string, options []string) (string, error) {
	f.calls++
	f.options = options
	return f.answer, f.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755))
	}
}

func TestResolveChoice(t *testing.T) {
	candidates := []string{"/home/u/docs/tax", "/home/u/work/tax"}

	tests := []struct {
		name       string
		input      string
		candidates []string
		want       string
		wantOK     bool
	}{
		{name: "first by index", input: "1", candidates: candidates, want: candidates[0], wantOK: true},
		{name: "second by index with spaces", input: " 2 ", candidates: candidates, want: candidates[1], wantOK: true},
		{name: "index too large", input: "3", candidates: candidates},
		{name: "index zero", input: "0", candidates: candidates},
		{name: "negative index", input: "-1", candidates: candidates},
		{name: "empty answer", input: "", candidates: candidates},
		{name: "whitespace answer", input: "   ", candidates: candidates},
		{name: "distinguishing segment", input: "work", candidates: candidates, want: candidates[1], wantOK: true},
		{name: "abbreviated segment", input: "wrk", candidates: candidates, want: candidates[1], wantOK: true},
		{name: "partial segment", input: "doc", candidates: candidates, want: candidates[0], wantOK: true},
		{name: "full path", input: "/home/u/docs/tax", candidates: candidates, want: candidates[0], wantOK: true},
		{name: "single letter", input: "t", candidates: candidates},
		{name: "letter from shared name", input: "x", candidates: candidates},
		{name: "letters scattered across path", input: "hut", candidates: candidates},
		{name: "subsequence too short", input: "wk", candidates: candidates},
		{name: "shared segment is ambiguous", input: "tax", candidates: candidates},
		{name: "close misspelling", input: "alpga", candidates: []string{"alpha", "beta"}, want: "alpha", wantOK: true},
		{name: "nothing close", input: "zzzzz", candidates: []string{"alpha", "beta"}},
		{name: "no candidates", input: "1", candidates: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveChoice(tt.input, tt.candidates)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "tax", "work/tax", "work/taxes", "archive/2020/tax")
	require.NoError(t, os.WriteFile(filepath.Join(root, "work", "tax.txt"), nil, 0o600))

	t.Run("recursive exact name", func(t *testing.T) {
		got, err := Find(root, "tax", true)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "archive", "2020", "tax"),
			filepath.Join(root, "tax"),
			filepath.Join(root, "work", "tax"),
		}, got)
	})

	t.Run("non-recursive", func(t *testing.T) {
		got, err := Find(root, "tax", false)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "tax")}, got)
	})

	t.Run("glob pattern matches directories only", func(t *testing.T) {
		got, err := Find(filepath.Join(root, "work"), "tax*", false)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "work", "tax"),
			filepath.Join(root, "work", "taxes"),
		}, got)
	})

	t.Run("rejects separators", func(t *testing.T) {
		_, err := Find(root, "work/tax", true)
		assert.Error(t, err)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := Find(root, "", true)
		assert.Error(t, err)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := Find(filepath.Join(root, "nope"), "tax", true)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestFindDoesNotFollowSymlinkLoops(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/tax")
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "tax", "r.pdf"), nil, 0o600))
	require.NoError(t, os.Symlink("..", filepath.Join(root, "a", "up")))

	got, err := Find(root, "tax", true)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a", "tax")}, got)
}

func TestResolveNoMatch(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "other")
	chooser := &fakeChooser{}

	r, err := NewResolver(root, true, chooser, testLogger())
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "tax")
	assert.ErrorIs(t, err, ErrFolderNotFound)
	assert.Zero(t, chooser.calls)
}

func TestResolveSingleMatchSkipsPrompt(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "deep/down/tax")
	chooser := &fakeChooser{}

	r, err := NewResolver(root, true, chooser, testLogger())
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), "tax")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "deep", "down", "tax"), got)
	assert.Zero(t, chooser.calls)
}

func TestResolveMultipleMatchesAsksOperator(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/tax", "b/tax")
	chooser := &fakeChooser{answer: filepath.Join(root, "b", "tax")}

	r, err := NewResolver(root, true, chooser, testLogger())
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), "tax")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b", "tax"), got)
	assert.Equal(t, 1, chooser.calls)
	assert.Equal(t, []string{filepath.Join(root, "a", "tax"), filepath.Join(root, "b", "tax")}, chooser.options)
}

func TestResolveOperatorAborts(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/tax", "b/tax")

	r, err := NewResolver(root, true, &fakeChooser{err: ErrNoSelection}, testLogger())
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "tax")
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestResolveRejectsForeignChoice(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/tax", "b/tax")

	r, err := NewResolver(root, true, &fakeChooser{answer: "/elsewhere"}, testLogger())
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "tax")
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestNewResolverDefaultsToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	r, err := NewResolver("", true, nil, testLogger())
	require.NoError(t, err)
	assert.NotEmpty(t, r.Root)
}
