package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/dosanma1/wheelforge/internal/shell"
)

// Default tool names, resolved through PATH.
const (
	DefaultPython = "python3"
	DefaultPip    = "pip3"
)

// Options configure one pipeline run. They are not modified by Run.
type Options struct {
	// ProjectDir is the directory handed to the packaging tool.
	ProjectDir string
	// OutputDir receives the final wheel.
	OutputDir string

	// BeforeBuild runs through the shell before building. Placeholders: {project}.
	BeforeBuild string
	// RepairCommand runs through the shell to repair a platform wheel.
	// Placeholders: {wheel}, {dest_dir}.
	RepairCommand string
	// BuildVerbosity is translated to pip -v/-q flags.
	BuildVerbosity int
	// BuildSelector identifies the build; it is only logged.
	BuildSelector string
	// Environment overrides are applied, in order, to every command.
	Environment []shell.Assignment

	// TestCommand enables the test stage. Placeholders: {project}.
	TestCommand string
	// BeforeTest runs inside the test environment first. Placeholders: {project}.
	BeforeTest string
	// TestRequires are installed into the test environment.
	TestRequires []string
	// TestExtras is appended to the wheel path on install, e.g. "[test]".
	TestExtras string
	// TestCwd is where the test command runs. Empty means the root of the
	// project's volume, so tests import the installed wheel and not the
	// source tree.
	TestCwd string

	Python string
	Pip    string

	// TempDir is the parent of the temporary working root.
	TempDir string
	// BaseEnv is the starting environment. Nil means the host environment.
	BaseEnv []string
}

func (o Options) withDefaults() Options {
	if o.Python == "" {
		o.Python = DefaultPython
	}
	if o.Pip == "" {
		o.Pip = DefaultPip
	}
	return o
}

// FilesystemRoot returns the root of the volume holding path, "C:\" on
// Windows and "/" elsewhere.
func FilesystemRoot(path string) string {
	return filepath.VolumeName(path) + string(filepath.Separator)
}

// VerbosityFlags translates a verbosity level into pip flags: positive
// levels give -v, -vv, ...; negative levels give -q, -qq, ...
func VerbosityFlags(level int) []string {
	switch {
	case level > 0:
		return []string{"-" + strings.Repeat("v", level)}
	case level < 0:
		return []string{"-" + strings.Repeat("q", -level)}
	default:
		return nil
	}
}
