// Package paranoia locks unlocked documents and unlocks locked ones with a single
// password, renaming them with a marker suffix so the two can be told apart.
package paranoia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sammcj/deskchores/internal/marker"
	"github.com/sirupsen/logrus"
)

// Disposer gets rid of a source file once its replacement is on disk.
type Disposer interface {
	Dispose(path string) (string, error)
}

// Plan is what will happen to one file, worked out before anything is touched.
type Plan struct {
	Source string `json:"source"`
	From   State  `json:"from"`
	Output string `json:"output"`

	// MarkerMissing is set when a locked file is being unlocked but its name
	// never carried the marker, so the output keeps the source's name.
	MarkerMissing bool `json:"marker_missing,omitempty"`
}

// NewPlan derives the output name for source in state from.
func NewPlan(source string, from State, suffix string) Plan {
	plan := Plan{Source: source, From: from}
	if from == Locked {
		output, found := marker.RemovePath(source, suffix)
		plan.Output = output
		plan.MarkerMissing = !found
		return plan
	}
	plan.Output = marker.AddPath(source, suffix)
	return plan
}

// To is the state the output will be in.
func (p Plan) To() State {
	return p.From.Toggle()
}

// InPlace reports whether the output replaces the source under the same name.
func (p Plan) InPlace() bool {
	return filepath.Clean(p.Output) == filepath.Clean(p.Source)
}

// Outcome describes a file that was processed.
type Outcome struct {
	Plan
	Pages   int    `json:"pages"`
	Trashed string `json:"trashed"`
}

// Engine processes one file at a time.
type Engine struct {
	codec    Codec
	disposer Disposer
	password string
	suffix   string
	logger   logrus.FieldLogger
}

// NewEngine creates an engine that flips files between states with password.
func NewEngine(codec Codec, disposer Disposer, password, suffix string, logger logrus.FieldLogger) *Engine {
	return &Engine{
		codec:    codec,
		disposer: disposer,
		password: password,
		suffix:   suffix,
		logger:   logger,
	}
}

func (e *Engine) withLogger(logger logrus.FieldLogger) *Engine {
	c := *e
	c.logger = logger
	return &c
}

// Process flips path to the opposite state. Locked files are unlocked and lose
// the marker, unlocked files are locked and gain it. The source goes to the
// disposer only after its replacement is written and, when locking, verified.
func (e *Engine) Process(ctx context.Context, path string) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &FileError{Op: "stat", Path: path, Err: err}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Op: "read", Path: path, Err: err}
	}

	from, err := e.codec.State(bytes.NewReader(src))
	if err != nil {
		return nil, &FileError{Op: "inspect", Path: path, Err: err}
	}

	plan := NewPlan(path, from, e.suffix)
	log := e.logger.WithFields(logrus.Fields{
		"source": plan.Source,
		"output": plan.Output,
		"from":   plan.From.String(),
	})
	log.Debug("Planned transform")

	if !plan.InPlace() {
		if _, err := os.Lstat(plan.Output); err == nil {
			return nil, &FileError{Op: "plan", Path: path, Err: fmt.Errorf("%w: %s", ErrOutputExists, plan.Output)}
		}
	}

	out, pages, err := e.transform(plan, src)
	if err != nil {
		return nil, err
	}

	tmp, err := writeTemp(filepath.Dir(plan.Output), out, info.Mode().Perm())
	if err != nil {
		return nil, &FileError{Op: "write", Path: plan.Output, Err: err}
	}

	trashed, err := e.commit(plan, tmp)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"to":      plan.To().String(),
		"pages":   pages,
		"trashed": trashed,
	}).Debug("Processed file")

	return &Outcome{Plan: plan, Pages: pages, Trashed: trashed}, nil
}

// transform produces the output bytes for plan and checks them.
func (e *Engine) transform(plan Plan, src []byte) ([]byte, int, error) {
	var out bytes.Buffer
	var srcPages int

	switch plan.From {
	case Locked:
		if err := e.codec.Unlock(bytes.NewReader(src), &out, e.password); err != nil {
			return nil, 0, &FileError{Op: "unlock", Path: plan.Source, Err: err}
		}
	case Unlocked:
		n, err := e.codec.PageCount(bytes.NewReader(src), "")
		if err != nil {
			return nil, 0, &FileError{Op: "count", Path: plan.Source, Err: err}
		}
		srcPages = n
		if srcPages == 0 {
			return nil, 0, &FileError{Op: "lock", Path: plan.Source, Err: ErrEmptyOutput}
		}
		if err := e.codec.Lock(bytes.NewReader(src), &out, e.password); err != nil {
			return nil, 0, &FileError{Op: "lock", Path: plan.Source, Err: err}
		}
	}

	password := ""
	if plan.To() == Locked {
		password = e.password
	}
	pages, err := e.codec.PageCount(bytes.NewReader(out.Bytes()), password)
	if err != nil {
		if plan.To() == Locked {
			return nil, 0, &FileError{Op: "verify", Path: plan.Source, Err: &VerificationError{
				Output: plan.Output,
				Reason: fmt.Sprintf("does not open with the password: %v", err),
			}}
		}
		return nil, 0, &FileError{Op: "count", Path: plan.Output, Err: err}
	}
	if pages == 0 {
		return nil, 0, &FileError{Op: "count", Path: plan.Output, Err: ErrEmptyOutput}
	}

	if plan.To() == Locked {
		if err := e.verify(plan, out.Bytes(), srcPages, pages); err != nil {
			return nil, 0, &FileError{Op: "verify", Path: plan.Source, Err: err}
		}
	}

	return out.Bytes(), pages, nil
}

// verify checks that a freshly locked document really is locked.
func (e *Engine) verify(plan Plan, out []byte, srcPages, pages int) error {
	state, err := e.codec.State(bytes.NewReader(out))
	if err != nil {
		return &VerificationError{Output: plan.Output, Reason: fmt.Sprintf("cannot be inspected: %v", err)}
	}
	if state != Locked {
		return &VerificationError{Output: plan.Output, Reason: "does not report as locked"}
	}
	if _, err := e.codec.PageCount(bytes.NewReader(out), ""); err == nil {
		return &VerificationError{Output: plan.Output, Reason: "opens without a password"}
	}
	if pages != srcPages {
		return &VerificationError{
			Output: plan.Output,
			Reason: fmt.Sprintf("has %d pages, source has %d", pages, srcPages),
		}
	}
	return nil
}

// commit moves the temp file into place and disposes of the source. When the
// output takes the source's name the source must leave first.
func (e *Engine) commit(plan Plan, tmp string) (string, error) {
	if plan.InPlace() {
		trashed, err := e.disposer.Dispose(plan.Source)
		if err != nil {
			removeTemp(tmp, e.logger)
			return "", &FileError{Op: "dispose", Path: plan.Source, Err: err}
		}
		if err := os.Rename(tmp, plan.Output); err != nil {
			return trashed, &FileError{
				Op:   "rename",
				Path: plan.Output,
				Err:  fmt.Errorf("%w (original is in the trash at %s, new copy left at %s)", err, trashed, tmp),
			}
		}
		return trashed, nil
	}

	if _, err := os.Lstat(plan.Output); err == nil {
		removeTemp(tmp, e.logger)
		return "", &FileError{Op: "rename", Path: plan.Source, Err: fmt.Errorf("%w: %s", ErrOutputExists, plan.Output)}
	}
	if err := os.Rename(tmp, plan.Output); err != nil {
		removeTemp(tmp, e.logger)
		return "", &FileError{Op: "rename", Path: plan.Output, Err: err}
	}

	trashed, err := e.disposer.Dispose(plan.Source)
	if err != nil {
		return "", &FileError{Op: "dispose", Path: plan.Source, Err: err}
	}
	return trashed, nil
}

// writeTemp writes data to a hidden file in dir, synced and closed, and returns its path.
func writeTemp(dir string, data []byte, perm os.FileMode) (path string, err error) {
	f, err := os.CreateTemp(dir, ".deskchores-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if _, err = f.Write(data); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = f.Chmod(perm); err != nil {
		return "", fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = f.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), nil
}

func removeTemp(path string, logger logrus.FieldLogger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).WithField("temp", path).Warn("Failed to remove temp file")
	}
}
