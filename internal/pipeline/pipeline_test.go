package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/wheelforge/internal/shell"
	"github.com/dosanma1/wheelforge/internal/venv"
	"github.com/dosanma1/wheelforge/internal/wheel"
)

const platformWheel = "pkg-1.0-cp311-cp311-win_amd64.whl"

// fakeRunner records commands and imitates the tools a run invokes:
// "pip wheel" writes wheels into its -w directory, "python -m virtualenv"
// lays out Scripts/ with a pip, and the repair script
// "repair --wheel=<path> --dest=<dir>" copies the wheel with new content.
type fakeRunner struct {
	wheels   []string
	commands []shell.Command
	failOn   string
	noPip    bool
}

func (f *fakeRunner) Run(_ context.Context, cmd shell.Command) error {
	f.commands = append(f.commands, cmd)
	if f.failOn != "" && strings.Contains(cmd.String(), f.failOn) {
		return &shell.ExitError{Command: cmd.String(), Code: 2}
	}

	if len(cmd.Args) > 1 && cmd.Args[1] == "wheel" {
		for i, a := range cmd.Args {
			if a == "-w" {
				for _, name := range f.wheels {
					if err := os.WriteFile(filepath.Join(cmd.Args[i+1], name), []byte("built"), 0o644); err != nil {
						return err
					}
				}
			}
		}
	}

	if len(cmd.Args) > 3 && cmd.Args[1] == "-m" && cmd.Args[2] == "virtualenv" {
		scripts := filepath.Join(cmd.Args[3], "Scripts")
		if err := os.MkdirAll(scripts, 0o755); err != nil {
			return err
		}
		if !f.noPip {
			return os.WriteFile(filepath.Join(scripts, executable(DefaultPip)), []byte("#!/bin/sh\n"), 0o755)
		}
	}

	if strings.HasPrefix(cmd.Script, "repair ") {
		var src, dest string
		for _, field := range strings.Fields(cmd.Script) {
			if v, ok := strings.CutPrefix(field, "--wheel="); ok {
				src = v
			}
			if v, ok := strings.CutPrefix(field, "--dest="); ok {
				dest = v
			}
		}
		return os.WriteFile(filepath.Join(dest, filepath.Base(src)), []byte("repaired"), 0o644)
	}
	return nil
}

func executable(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func (f *fakeRunner) scripts() []string {
	var out []string
	for _, c := range f.commands {
		if c.Script != "" {
			out = append(out, c.Script)
		}
	}
	return out
}

func (f *fakeRunner) ran(substr string) bool {
	for _, c := range f.commands {
		if strings.Contains(c.String(), substr) {
			return true
		}
	}
	return false
}

type recordingReporter struct {
	stages []string
}

func (r *recordingReporter) Stage(index, total int, name string) {
	r.stages = append(r.stages, fmt.Sprintf("%d/%d %s", index, total, name))
}

func newPipeline(runner shell.Runner, opts ...Option) *Pipeline {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(runner, opts...)
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		ProjectDir: t.TempDir(),
		OutputDir:  filepath.Join(t.TempDir(), "wheelhouse"),
		TempDir:    t.TempDir(),
		BaseEnv:    []string{"PATH=/usr/bin"},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_NoRepairCommandRelocatesBuiltWheel(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}}
	opts := testOptions(t)

	res, err := newPipeline(runner).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(opts.OutputDir, platformWheel), res.Wheel)
	assert.Equal(t, "built", readFile(t, res.Wheel))
	assert.False(t, res.Repaired)
	assert.False(t, res.Tested)
}

func TestRun_BuildCommand(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}}
	opts := testOptions(t)
	opts.BuildVerbosity = 2

	_, err := newPipeline(runner).Run(context.Background(), opts)
	require.NoError(t, err)

	build := runner.commands[0]
	require.Len(t, build.Args, 7)
	assert.Equal(t, []string{DefaultPip, "wheel", opts.ProjectDir, "-w"}, build.Args[:4])
	assert.Equal(t, builtWheelDir, filepath.Base(build.Args[4]))
	assert.Equal(t, []string{"--no-deps", "-vv"}, build.Args[5:])
}

func TestRun_PureWheelSkipsRepair(t *testing.T) {
	runner := &fakeRunner{wheels: []string{"pkg-1.0-py3-none-any.whl"}}
	opts := testOptions(t)
	opts.RepairCommand = "repair --wheel={wheel} --dest={dest_dir}"

	res, err := newPipeline(runner).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.False(t, runner.ran("repair"))
	assert.False(t, res.Repaired)
	assert.Equal(t, "built", readFile(t, res.Wheel))
}

func TestRun_RepairsPlatformWheel(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}}
	opts := testOptions(t)
	opts.RepairCommand = "repair --wheel={wheel} --dest={dest_dir}"

	res, err := newPipeline(runner).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.True(t, res.Repaired)
	assert.Equal(t, "repaired", readFile(t, res.Wheel))
}

func TestRun_SubstitutesPlaceholders(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}}
	opts := testOptions(t)
	opts.BeforeBuild = "prepare {project}"
	opts.RepairCommand = "repair --wheel={wheel} --dest={dest_dir}"
	opts.BeforeTest = "setup {project} {python}"
	opts.TestCommand = "pytest {project}/tests"

	_, err := newPipeline(runner).Run(context.Background(), opts)
	require.NoError(t, err)

	scripts := runner.scripts()
	require.Len(t, scripts, 4)
	assert.Equal(t, "prepare "+opts.ProjectDir, scripts[0])

	var tempRoot string
	for _, c := range runner.commands {
		if len(c.Args) > 4 && c.Args[1] == "wheel" {
			tempRoot = filepath.Dir(c.Args[4])
		}
	}
	require.NotEmpty(t, tempRoot)
	assert.Equal(t, fmt.Sprintf("repair --wheel=%s --dest=%s",
		filepath.Join(tempRoot, builtWheelDir, platformWheel),
		filepath.Join(tempRoot, repairedWheelDir)), scripts[1])
	assert.Equal(t, "setup "+opts.ProjectDir+" "+DefaultPython, scripts[2])
	assert.Equal(t, "pytest "+opts.ProjectDir+"/tests", scripts[3])
}

func TestRun_UnknownPlaceholderAborts(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}}
	opts := testOptions(t)
	opts.BeforeBuild = "prepare {wheel}"

	_, err := newPipeline(runner).Run(context.Background(), opts)
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageBeforeBuild, stageErr.Stage)
	assert.Empty(t, runner.commands)
}

func TestRun_NoBuiltWheelFailsBeforeRepair(t *testing.T) {
	runner := &fakeRunner{}
	opts := testOptions(t)
	opts.RepairCommand = "repair --wheel={wheel} --dest={dest_dir}"

	_, err := newPipeline(runner).Run(context.Background(), opts)
	require.ErrorIs(t, err, wheel.ErrNoWheel)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageBuild, stageErr.Stage)
	assert.False(t, runner.ran("repair"))
}

func TestRun_AmbiguousBuildOutput(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel, "pkg-1.0-cp311-cp311-win32.whl"}}

	_, err := newPipeline(runner).Run(context.Background(), testOptions(t))
	assert.ErrorIs(t, err, wheel.ErrAmbiguous)
}

func TestRun_CommandFailureAborts(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}, failOn: "prepare"}
	opts := testOptions(t)
	opts.BeforeBuild = "prepare {project}"

	_, err := newPipeline(runner).Run(context.Background(), opts)
	require.Error(t, err)

	var exitErr *shell.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
	assert.Len(t, runner.commands, 1)
	assert.NoDirExists(t, opts.OutputDir)
}

func TestRun_NoTestCommandSkipsTesting(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}}
	opts := testOptions(t)
	opts.BeforeTest = "setup {project}"
	opts.TestRequires = []string{"pytest"}

	res, err := newPipeline(runner).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.False(t, res.Tested)
	assert.False(t, runner.ran("virtualenv"))
	assert.False(t, runner.ran("setup"))
	assert.False(t, runner.ran("pytest"))
	assert.FileExists(t, res.Wheel)
}

func TestRun_TestStage(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}}
	opts := testOptions(t)
	opts.TestCommand = "pytest {project}"
	opts.TestExtras = "[test]"
	opts.TestRequires = []string{"pytest", "hypothesis"}
	opts.Environment = []shell.Assignment{
		{Name: "PKG_ROOT", Value: "/opt/pkg"},
		{Name: "PKG_MODE", Value: "ci:$PKG_ROOT"},
	}

	res, err := newPipeline(runner).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, res.Tested)

	var installs, creates []shell.Command
	var testCmd shell.Command
	for _, c := range runner.commands {
		switch {
		case len(c.Args) > 2 && c.Args[1] == "install" && c.Args[2] != "virtualenv":
			installs = append(installs, c)
		case len(c.Args) > 3 && c.Args[1] == "-m" && c.Args[2] == "virtualenv":
			creates = append(creates, c)
		case strings.HasPrefix(c.Script, "pytest"):
			testCmd = c
		}
	}

	require.Len(t, creates, 1)
	venvDir := creates[0].Args[3]
	assert.NoDirExists(t, venvDir, "virtualenv is removed after a passing test")

	require.Len(t, installs, 2)
	assert.Equal(t, filepath.Join(venvDir, "Scripts", executable(DefaultPip)), installs[0].Args[0])
	assert.True(t, strings.HasSuffix(installs[0].Args[2], platformWheel+"[test]"))
	assert.Equal(t, []string{"pytest", "hypothesis"}, installs[1].Args[2:])

	assert.Equal(t, FilesystemRoot(opts.ProjectDir), testCmd.Dir)
	env := shell.NewEnviron(testCmd.Env)
	path, _ := env.Get("PATH")
	assert.True(t, strings.HasPrefix(path, filepath.Join(venvDir, "Scripts")))
	mode, _ := env.Get("PKG_MODE")
	assert.Equal(t, "ci:/opt/pkg", mode)
	venvPath, _ := env.Get(venv.PathVariable)
	assert.Equal(t, venvDir, venvPath)
}

func TestRun_TestFailureLeavesVirtualenv(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}, failOn: "pytest"}
	opts := testOptions(t)
	opts.TestCommand = "pytest"
	opts.TestCwd = t.TempDir()

	_, err := newPipeline(runner).Run(context.Background(), opts)
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageTest, stageErr.Stage)

	var venvDir string
	for _, c := range runner.commands {
		if len(c.Args) > 3 && c.Args[2] == "virtualenv" {
			venvDir = c.Args[3]
		}
	}
	assert.DirExists(t, venvDir)
	assert.Contains(t, err.Error(), venvDir)
	assert.NoDirExists(t, opts.OutputDir)

	var envErr *TestEnvError
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, venvDir, envErr.Dir)
}

func TestRun_VirtualenvWithoutPipNeverUsesHostPip(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}, noPip: true}
	opts := testOptions(t)
	opts.TestCommand = "pytest"
	opts.TestCwd = t.TempDir()

	_, err := newPipeline(runner).Run(context.Background(), opts)
	require.ErrorIs(t, err, venv.ErrToolNotFound)

	var envErr *TestEnvError
	assert.True(t, errors.As(err, &envErr))
	for _, c := range runner.commands {
		if len(c.Args) > 2 && c.Args[1] == "install" {
			assert.Equal(t, "virtualenv", c.Args[2], "only the bootstrap install may use the host pip")
		}
	}
	assert.False(t, runner.ran("pytest"))
}

func TestRun_VirtualenvBootstrapFailureIsNotATestEnvError(t *testing.T) {
	runner := &fakeRunner{wheels: []string{platformWheel}, failOn: "install virtualenv"}
	opts := testOptions(t)
	opts.TestCommand = "pytest"

	_, err := newPipeline(runner).Run(context.Background(), opts)
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageTest, stageErr.Stage)

	var envErr *TestEnvError
	assert.False(t, errors.As(err, &envErr))
}

func TestRun_OverwritesExistingOutput(t *testing.T) {
	opts := testOptions(t)
	require.NoError(t, os.MkdirAll(opts.OutputDir, 0o755))
	existing := filepath.Join(opts.OutputDir, platformWheel)
	require.NoError(t, os.WriteFile(existing, []byte("stale"), 0o644))

	res, err := newPipeline(&fakeRunner{wheels: []string{platformWheel}}).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, existing, res.Wheel)
	assert.Equal(t, "built", readFile(t, existing))
	entries, err := os.ReadDir(opts.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_RemovesTempRootOnSuccess(t *testing.T) {
	opts := testOptions(t)

	_, err := newPipeline(&fakeRunner{wheels: []string{platformWheel}}).Run(context.Background(), opts)
	require.NoError(t, err)

	entries, err := os.ReadDir(opts.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_ReportsStages(t *testing.T) {
	reporter := &recordingReporter{}
	opts := testOptions(t)
	opts.BeforeBuild = "prepare"
	opts.TestCommand = "pytest"
	opts.TestCwd = t.TempDir()

	_, err := newPipeline(&fakeRunner{wheels: []string{platformWheel}}, WithReporter(reporter)).
		Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"1/5 before_build",
		"2/5 build",
		"3/5 repair",
		"4/5 test",
		"5/5 finalize",
	}, reporter.stages)
}

func TestVerbosityFlags(t *testing.T) {
	assert.Nil(t, VerbosityFlags(0))
	assert.Equal(t, []string{"-v"}, VerbosityFlags(1))
	assert.Equal(t, []string{"-vvv"}, VerbosityFlags(3))
	assert.Equal(t, []string{"-qq"}, VerbosityFlags(-2))
}

func TestFilesystemRoot(t *testing.T) {
	root := FilesystemRoot(t.TempDir())
	assert.Equal(t, string(filepath.Separator), root[len(root)-1:])
	assert.Equal(t, root, filepath.Dir(root))
}
