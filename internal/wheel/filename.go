package wheel

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Filename is a wheel file name split into its PEP 427 components:
// {distribution}-{version}(-{build})?-{python}-{abi}-{platform}.whl
type Filename struct {
	Distribution string
	Version      string
	Build        string
	Python       string
	ABI          string
	Platform     string
}

// ParseFilename parses the base name of path.
func ParseFilename(path string) (Filename, error) {
	base := filepath.Base(path)
	stem, ok := strings.CutSuffix(base, ".whl")
	if !ok {
		return Filename{}, fmt.Errorf("not a wheel file name: %s", base)
	}

	parts := strings.Split(stem, "-")
	var f Filename
	switch len(parts) {
	case 5:
		f = Filename{parts[0], parts[1], "", parts[2], parts[3], parts[4]}
	case 6:
		f = Filename{parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]}
	default:
		return Filename{}, fmt.Errorf("wheel file name %s has %d components, want 5 or 6", base, len(parts))
	}

	for _, p := range parts {
		if p == "" {
			return Filename{}, fmt.Errorf("wheel file name %s has an empty component", base)
		}
	}
	return f, nil
}

// Tag returns the python-abi-platform compatibility tag.
func (f Filename) Tag() string {
	return f.Python + "-" + f.ABI + "-" + f.Platform
}
