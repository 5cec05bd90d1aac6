// Package folder locates a target directory by name and disambiguates between
// several matches with the operator's help.
package folder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/mitchellh/go-homedir"
	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"
)

// SimilarityCutoff is the minimum similarity a free-text answer needs to select a
// candidate.
const SimilarityCutoff = 0.6

var (
	// ErrFolderNotFound is returned when no directory matches the requested name.
	ErrFolderNotFound = errors.New("no such folder")

	// ErrNoSelection is returned when several directories match and the operator
	// declines to pick one.
	ErrNoSelection = errors.New("no folder selected")
)

// Chooser asks the operator to pick one of several options.
// An empty answer must be reported as ErrNoSelection.
type Chooser interface {
	Choose(ctx context.Context, prompt string, options []string) (string, error)
}

// Resolver turns a folder name into exactly one directory.
type Resolver struct {
	Root      string
	Recursive bool
	Chooser   Chooser
	Logger    *logrus.Logger
}

// NewResolver creates a resolver searching root, or the user's home directory when root is empty.
func NewResolver(root string, recursive bool, chooser Chooser, logger *logrus.Logger) (*Resolver, error) {
	if root == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to find home directory: %w", err)
		}
		root = home
	}

	expanded, err := homedir.Expand(root)
	if err != nil {
		return nil, fmt.Errorf("failed to expand root %s: %w", root, err)
	}

	return &Resolver{
		Root:      filepath.Clean(expanded),
		Recursive: recursive,
		Chooser:   chooser,
		Logger:    logger,
	}, nil
}

// Resolve returns the single directory called name beneath the resolver's root.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	candidates, err := Find(r.Root, name, r.Recursive)
	if err != nil {
		return "", err
	}

	r.Logger.WithFields(logrus.Fields{
		"name":       name,
		"root":       r.Root,
		"recursive":  r.Recursive,
		"candidates": len(candidates),
	}).Debug("Folder search finished")

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: %s under %s", ErrFolderNotFound, name, r.Root)
	case 1:
		return candidates[0], nil
	}

	if r.Chooser == nil {
		return "", fmt.Errorf("%w: %d folders match %s", ErrNoSelection, len(candidates), name)
	}

	chosen, err := r.Chooser.Choose(ctx, "You have multiple folders with that name. Choose one of them.", candidates)
	if err != nil {
		return "", err
	}
	if !slices.Contains(candidates, chosen) {
		return "", fmt.Errorf("%w: %s is not one of the candidates", ErrNoSelection, chosen)
	}

	r.Logger.WithField("folder", chosen).Debug("Operator chose folder")
	return chosen, nil
}

// Find lists the directories beneath root whose name matches the glob pattern name.
// Without recursion only the immediate children of root are considered.
// Unreadable subdirectories are skipped. Results are sorted.
func Find(root, name string, recursive bool) ([]string, error) {
	if name == "" {
		return nil, fmt.Errorf("folder name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("folder name must not contain a path separator: %s", name)
	}
	if !doublestar.ValidatePattern(name) {
		return nil, fmt.Errorf("invalid folder pattern: %s", name)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read search root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("search root is not a directory: %s", root)
	}

	pattern := name
	if recursive {
		pattern = "**/" + name
	}

	var matches []string
	err = doublestar.GlobWalk(os.DirFS(root), pattern, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			matches = append(matches, filepath.Join(root, filepath.FromSlash(path)))
		}
		return nil
	}, doublestar.WithNoFollow())
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", root, err)
	}

	slices.Sort(matches)
	return matches, nil
}

// ResolveChoice maps an operator's answer onto one of candidates.
// A number selects by 1-based position. Free text must be close to the part of a
// path that tells it apart from the others, or to its full path, and must pick a
// single candidate. The second return value is false when nothing matches.
func ResolveChoice(input string, candidates []string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" || len(candidates) == 0 {
		return "", false
	}

	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(candidates) {
			return "", false
		}
		return candidates[n-1], true
	}

	labels := distinctLabels(candidates)
	if matches := fuzzy.Find(input, labels); len(matches) == 1 {
		i := matches[0].Index
		if similarity(input, candidates[i], labels[i]) >= SimilarityCutoff {
			return candidates[i], true
		}
	}

	return closest(input, candidates, labels)
}

// closest picks the single candidate most similar to input by edit distance.
// Nothing is picked below SimilarityCutoff or when the best score is shared.
func closest(input string, candidates, labels []string) (string, bool) {
	best, bestScore, tied := "", 0.0, false
	for i, candidate := range candidates {
		score := similarity(input, candidate, labels[i])
		switch {
		case score > bestScore:
			best, bestScore, tied = candidate, score, false
		case score == bestScore:
			tied = true
		}
	}

	if bestScore < SimilarityCutoff || tied {
		return "", false
	}
	return best, true
}

func similarity(input, candidate, label string) float64 {
	score := levenshtein.Similarity(input, candidate, nil)
	score = max(score, levenshtein.Similarity(input, filepath.Base(candidate), nil))
	score = max(score, levenshtein.Similarity(input, label, nil))
	for segment := range strings.SplitSeq(label, "/") {
		score = max(score, levenshtein.Similarity(input, segment, nil))
	}
	return score
}

// distinctLabels reduces each candidate to the path segments not shared by every
// candidate, so /home/u/docs/tax and /home/u/work/tax become "docs" and "work".
func distinctLabels(candidates []string) []string {
	split := make([][]string, len(candidates))
	seen := make(map[string]int)
	for i, candidate := range candidates {
		split[i] = strings.FieldsFunc(filepath.ToSlash(candidate), func(r rune) bool { return r == '/' })
		unique := make(map[string]struct{}, len(split[i]))
		for _, segment := range split[i] {
			if _, ok := unique[segment]; !ok {
				unique[segment] = struct{}{}
				seen[segment]++
			}
		}
	}

	labels := make([]string, len(candidates))
	for i, segments := range split {
		var own []string
		for _, segment := range segments {
			if seen[segment] < len(candidates) {
				own = append(own, segment)
			}
		}
		labels[i] = strings.Join(own, "/")
		if labels[i] == "" {
			labels[i] = candidates[i]
		}
	}
	return labels
}
