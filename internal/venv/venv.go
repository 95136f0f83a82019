// Package venv manages the throwaway virtual environment a built wheel is
// installed into for testing.
package venv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dosanma1/wheelforge/internal/shell"
)

// PathVariable is exported to test commands so they can locate the
// environment.
const PathVariable = "__CIBW_VIRTUALENV_PATH__"

// ErrToolNotFound means a tool has no copy inside the environment.
var ErrToolNotFound = errors.New("tool not found in virtualenv")

// Config selects the host tools used to bootstrap the environment.
type Config struct {
	Python string
	Pip    string

	// TempDir is the parent directory; empty means os.TempDir().
	TempDir string

	// Env is the environment used for the bootstrap commands.
	Env []string
}

// Env is a created virtual environment.
type Env struct {
	dir string
}

// Create installs virtualenv into the host interpreter and creates a new
// environment in a fresh temporary directory.
func Create(ctx context.Context, runner shell.Runner, cfg Config) (*Env, error) {
	if err := runner.Run(ctx, shell.Command{
		Args: []string{cfg.Pip, "install", "virtualenv"},
		Env:  cfg.Env,
	}); err != nil {
		return nil, fmt.Errorf("failed to install virtualenv: %w", err)
	}

	dir, err := os.MkdirTemp(cfg.TempDir, "wheelforge-venv")
	if err != nil {
		return nil, fmt.Errorf("failed to create virtualenv directory: %w", err)
	}

	if err := runner.Run(ctx, shell.Command{
		Args: []string{cfg.Python, "-m", "virtualenv", dir},
		Env:  cfg.Env,
	}); err != nil {
		return nil, fmt.Errorf("failed to create virtualenv in %s: %w", dir, err)
	}

	return &Env{dir: dir}, nil
}

// Dir returns the environment root.
func (e *Env) Dir() string {
	return e.dir
}

// ScriptDirs returns the executable directories, Scripts first. Some
// interpreters (PyPy) lay the environment out with bin/ on Windows; it
// is included when present.
func (e *Env) ScriptDirs() []string {
	dirs := []string{filepath.Join(e.dir, "Scripts")}
	if info, err := os.Stat(filepath.Join(e.dir, "bin")); err == nil && info.IsDir() {
		dirs = append(dirs, filepath.Join(e.dir, "bin"))
	}
	return dirs
}

// Environ returns a copy of base activated for this environment.
func (e *Env) Environ(base *shell.Environ) *shell.Environ {
	env := base.Clone()
	env.PrependPath(e.ScriptDirs()...)
	env.Set(PathVariable, e.dir)
	return env
}

// Tool resolves the base name of name inside the environment's script
// directories, so an argument-list command runs the environment's copy
// even when name is a host path. It never falls back to the host tool.
func (e *Env) Tool(name string) (string, error) {
	base := filepath.Base(name)
	for _, dir := range e.ScriptDirs() {
		// LookPath on a path with a separator checks that file directly,
		// trying PATHEXT extensions on Windows.
		if path, err := exec.LookPath(filepath.Join(dir, base)); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrToolNotFound, base, e.dir)
}

// Remove deletes the environment.
func (e *Env) Remove() error {
	if err := os.RemoveAll(e.dir); err != nil {
		return fmt.Errorf("failed to remove virtualenv %s: %w", e.dir, err)
	}
	return nil
}
