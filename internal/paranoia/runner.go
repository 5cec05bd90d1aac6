package paranoia

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sammcj/deskchores/internal/files"
	"github.com/sirupsen/logrus"
)

// ErrBatchInProgress is returned when another batch already holds the folder.
var ErrBatchInProgress = errors.New("another batch is already running on this folder")

// Observer hears about each file as the batch goes.
type Observer interface {
	Processed(outcome *Outcome)
	Skipped(path string, err error)
	Failed(path string, err error)
}

// Options control a batch.
type Options struct {
	// Ext selects the files to process, e.g. ".pdf".
	Ext string

	// StopOnVerifyFailure halts the batch after a locked output fails verification.
	// By default the file is skipped and the batch continues.
	StopOnVerifyFailure bool

	// Shallow limits the batch to files directly inside the folder.
	Shallow bool

	// LockDir holds the per-folder lock files. Empty means the user's runtime directory.
	LockDir string
}

// Summary totals a batch.
type Summary struct {
	RunID    string     `json:"run_id"`
	Folder   string     `json:"folder"`
	Locked   int        `json:"locked"`
	Unlocked int        `json:"unlocked"`
	Skipped  int        `json:"skipped"`
	Failed   int        `json:"failed"`
	Stopped  bool       `json:"stopped,omitempty"`
	Outcomes []*Outcome `json:"outcomes"`
}

// Runner flips every matching file beneath a folder, one at a time.
type Runner struct {
	engine   *Engine
	opts     Options
	observer Observer
	logger   logrus.FieldLogger
}

// NewRunner creates a batch runner. observer may be nil.
func NewRunner(engine *Engine, opts Options, observer Observer, logger logrus.FieldLogger) *Runner {
	if opts.Ext == "" {
		opts.Ext = ".pdf"
	}
	return &Runner{engine: engine, opts: opts, observer: observer, logger: logger}
}

// Run processes every file under dir. Files are listed up front so outputs written
// during the run are not picked up again. Per-file failures are counted and the
// batch moves on; the returned error is only for problems with the batch itself,
// a cancelled context, or a verification failure when StopOnVerifyFailure is set.
func (r *Runner) Run(ctx context.Context, dir string) (*Summary, error) {
	runID := uuid.NewString()
	log := r.logger.WithFields(logrus.Fields{
		"run":    runID,
		"folder": dir,
	})
	summary := &Summary{RunID: runID, Folder: dir}

	lockPath, err := r.lockPath(dir)
	if err != nil {
		return summary, err
	}
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("failed to acquire folder lock: %w", err)
	}
	if !locked {
		return summary, fmt.Errorf("%w: %s", ErrBatchInProgress, dir)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			log.WithError(err).Warn("Failed to release folder lock")
		}
	}()

	seq := files.Walk(dir, r.opts.Ext)
	if r.opts.Shallow {
		seq = files.Shallow(dir, r.opts.Ext)
	}
	paths, err := files.Collect(seq)
	if err != nil {
		return summary, fmt.Errorf("failed to list files in %s: %w", dir, err)
	}
	log.WithField("files", len(paths)).Debug("Starting batch")

	engine := r.engine.withLogger(log)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			summary.Stopped = true
			log.WithError(err).Debug("Batch interrupted")
			return summary, err
		}

		outcome, err := engine.Process(ctx, path)
		switch {
		case err == nil:
			summary.Outcomes = append(summary.Outcomes, outcome)
			if outcome.To() == Locked {
				summary.Locked++
			} else {
				summary.Unlocked++
			}
			r.processed(outcome)
		case Skippable(err):
			summary.Skipped++
			log.WithError(err).WithField("file", path).Debug("Skipped file")
			r.skipped(path, err)
		case errors.Is(err, ErrVerificationFailed):
			summary.Skipped++
			log.WithError(err).WithField("file", path).Warn("Locked output failed verification")
			r.skipped(path, err)
			if r.opts.StopOnVerifyFailure {
				summary.Stopped = true
				return summary, err
			}
		default:
			summary.Failed++
			log.WithError(err).WithField("file", path).Error("Failed to process file")
			r.failed(path, err)
		}
	}

	log.WithFields(logrus.Fields{
		"locked":   summary.Locked,
		"unlocked": summary.Unlocked,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
	}).Debug("Finished batch")

	return summary, nil
}

// lockPath names the lock file for dir. The name is derived from the absolute path
// so the same folder always maps to the same lock.
func (r *Runner) lockPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	name := "paranoia-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String() + ".lock"

	if r.opts.LockDir != "" {
		return filepath.Join(r.opts.LockDir, name), nil
	}
	path, err := xdg.RuntimeFile(filepath.Join("deskchores", name))
	if err != nil {
		return "", fmt.Errorf("failed to locate lock file: %w", err)
	}
	return path, nil
}

func (r *Runner) processed(outcome *Outcome) {
	if r.observer != nil {
		r.observer.Processed(outcome)
	}
}

func (r *Runner) skipped(path string, err error) {
	if r.observer != nil {
		r.observer.Skipped(path, err)
	}
}

func (r *Runner) failed(path string, err error) {
	if r.observer != nil {
		r.observer.Failed(path, err)
	}
}
