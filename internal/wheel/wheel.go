// Package wheel locates and inspects the wheel files produced by each stage.
package wheel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern matches wheel files in a stage directory.
const Pattern = "*.whl"

// pureSuffix marks a wheel with no compiled code and no platform restriction.
const pureSuffix = "none-any.whl"

var (
	// ErrNoWheel means a stage finished without producing a wheel.
	ErrNoWheel = errors.New("no wheel found")
	// ErrAmbiguous means a stage produced more than one wheel.
	ErrAmbiguous = errors.New("more than one wheel found")
)

// AmbiguousError lists the wheels found when exactly one was expected.
type AmbiguousError struct {
	Dir     string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s in %s: %s", ErrAmbiguous, e.Dir, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguous }

// FindOne returns the path of the only wheel in dir.
func FindOne(dir string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", fmt.Errorf("failed to search %s: %w", dir, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w in %s", ErrNoWheel, dir)
	case 1:
		return filepath.Join(dir, matches[0]), nil
	default:
		sort.Strings(matches)
		return "", &AmbiguousError{Dir: dir, Matches: matches}
	}
}

// IsPure reports whether the wheel is platform independent.
func IsPure(path string) bool {
	return strings.HasSuffix(filepath.Base(path), pureSuffix)
}

// ResetDir removes dir if present and creates it empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
