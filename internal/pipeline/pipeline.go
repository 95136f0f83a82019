// Package pipeline builds, repairs and tests a single wheel.
//
// A run is strictly sequential: before-build, build, repair, an optional
// test stage and finalize. The first failing step aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dosanma1/wheelforge/internal/logging"
	"github.com/dosanma1/wheelforge/internal/shell"
	"github.com/dosanma1/wheelforge/internal/template"
	"github.com/dosanma1/wheelforge/internal/venv"
	"github.com/dosanma1/wheelforge/internal/wheel"
	"github.com/dosanma1/wheelforge/pkg/xos"
)

// Stage names.
const (
	StageBeforeBuild = "before_build"
	StageBuild       = "build"
	StageRepair      = "repair"
	StageTest        = "test"
	StageFinalize    = "finalize"
)

const (
	builtWheelDir    = "built_wheel"
	repairedWheelDir = "repaired_wheel"
)

// StageReporter is notified as each stage starts.
type StageReporter interface {
	Stage(index, total int, name string)
}

// StageError attributes a failure to the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// TestEnvError is a test stage failure that happened after the
// virtualenv was created. The environment is left in place at Dir.
type TestEnvError struct {
	Dir string
	Err error
}

func (e *TestEnvError) Error() string {
	return fmt.Sprintf("%v (virtualenv left at %s)", e.Err, e.Dir)
}

func (e *TestEnvError) Unwrap() error { return e.Err }

// Result describes a successful run.
type Result struct {
	// Wheel is the path of the final wheel in the output directory.
	Wheel    string
	Repaired bool
	Tested   bool
	Duration time.Duration
}

// Pipeline runs builds with a given command runner.
type Pipeline struct {
	runner   shell.Runner
	logger   *slog.Logger
	reporter StageReporter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithReporter sets the stage reporter.
func WithReporter(r StageReporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// New creates a Pipeline.
func New(runner shell.Runner, opts ...Option) *Pipeline {
	p := &Pipeline{
		runner: runner,
		logger: logging.New("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run holds the state of one invocation.
type run struct {
	*Pipeline
	opts       Options
	projectDir string
	outputDir  string
	tempRoot   string
	env        *shell.Environ

	builtWheel    string
	repairedWheel string
	result        Result
}

// Run executes the pipeline and returns the final wheel location.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	opts = opts.withDefaults()

	projectDir, err := filepath.Abs(opts.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project dir: %w", err)
	}
	outputDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}

	tempRoot, err := os.MkdirTemp(opts.TempDir, "wheelforge")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	env := shell.HostEnviron()
	if opts.BaseEnv != nil {
		env = shell.NewEnviron(opts.BaseEnv)
	}
	env.ApplyOverrides(opts.Environment)

	r := &run{
		Pipeline:   p,
		opts:       opts,
		projectDir: projectDir,
		outputDir:  outputDir,
		tempRoot:   tempRoot,
		env:        env,
	}

	p.logger.Info("Starting build",
		slog.String("project", projectDir),
		slog.String("output", outputDir),
		slog.String("selector", opts.BuildSelector))

	type stage struct {
		name string
		fn   func(context.Context) error
	}
	var stages []stage
	if opts.BeforeBuild != "" {
		stages = append(stages, stage{StageBeforeBuild, r.beforeBuild})
	}
	stages = append(stages, stage{StageBuild, r.build}, stage{StageRepair, r.repair})
	if opts.TestCommand != "" {
		stages = append(stages, stage{StageTest, r.test})
	}
	stages = append(stages, stage{StageFinalize, r.finalize})

	for i, s := range stages {
		if p.reporter != nil {
			p.reporter.Stage(i+1, len(stages), s.name)
		}
		if err := r.stage(ctx, s.name, s.fn); err != nil {
			return nil, err
		}
	}

	if err := os.RemoveAll(tempRoot); err != nil {
		p.logger.Warn("Failed to remove temp dir", logging.Dir(tempRoot), logging.Error(err))
	}

	r.result.Duration = time.Since(start)
	p.logger.Info("Build finished", logging.Wheel(r.result.Wheel), logging.Duration(r.result.Duration))
	return &r.result, nil
}

func (r *run) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	r.logger.Debug("Stage started", logging.Stage(name))

	if err := fn(ctx); err != nil {
		r.logger.Error("Stage failed", logging.Stage(name), logging.Error(err))
		return &StageError{Stage: name, Err: err}
	}

	r.logger.Debug("Stage finished", logging.Stage(name), logging.Duration(time.Since(start)))
	return nil
}

// values returns the placeholder set for a template.
func (r *run) values(pairs ...string) map[string]string {
	return template.Values(r.opts.Python, r.opts.Pip, pairs...)
}

func (r *run) script(ctx context.Context, tmpl string, values map[string]string, env *shell.Environ, dir string) error {
	prepared, err := template.Prepare(tmpl, values)
	if err != nil {
		return err
	}
	return r.runner.Run(ctx, shell.Command{Script: prepared, Dir: dir, Env: env.Slice()})
}

func (r *run) beforeBuild(ctx context.Context) error {
	return r.script(ctx, r.opts.BeforeBuild, r.values(template.Project, r.projectDir), r.env, "")
}

func (r *run) build(ctx context.Context) error {
	dir := filepath.Join(r.tempRoot, builtWheelDir)
	if err := wheel.ResetDir(dir); err != nil {
		return err
	}

	args := []string{r.opts.Pip, "wheel", r.projectDir, "-w", dir, "--no-deps"}
	args = append(args, VerbosityFlags(r.opts.BuildVerbosity)...)
	if err := r.runner.Run(ctx, shell.Command{Args: args, Env: r.env.Slice()}); err != nil {
		return err
	}

	built, err := wheel.FindOne(dir)
	if err != nil {
		return err
	}
	r.builtWheel = built

	attrs := []any{logging.Wheel(filepath.Base(built))}
	if f, err := wheel.ParseFilename(built); err == nil {
		attrs = append(attrs, slog.String("tag", f.Tag()))
	}
	r.logger.Info("Built wheel", attrs...)
	return nil
}

func (r *run) repair(ctx context.Context) error {
	dir := filepath.Join(r.tempRoot, repairedWheelDir)
	if err := wheel.ResetDir(dir); err != nil {
		return err
	}

	if wheel.IsPure(r.builtWheel) || r.opts.RepairCommand == "" {
		r.logger.Info("Skipping repair", logging.Wheel(filepath.Base(r.builtWheel)))
		dst := filepath.Join(dir, filepath.Base(r.builtWheel))
		if err := xos.ReplaceFile(r.builtWheel, dst); err != nil {
			return fmt.Errorf("failed to move wheel: %w", err)
		}
	} else {
		values := r.values(template.Wheel, r.builtWheel, template.DestDir, dir)
		if err := r.script(ctx, r.opts.RepairCommand, values, r.env, ""); err != nil {
			return err
		}
		r.result.Repaired = true
	}

	repaired, err := wheel.FindOne(dir)
	if err != nil {
		return err
	}
	r.repairedWheel = repaired
	return nil
}

func (r *run) test(ctx context.Context) error {
	env, err := venv.Create(ctx, r.runner, venv.Config{
		Python:  r.opts.Python,
		Pip:     r.opts.Pip,
		TempDir: r.opts.TempDir,
		Env:     r.env.Slice(),
	})
	if err != nil {
		return err
	}

	if err := r.testIn(ctx, env); err != nil {
		return &TestEnvError{Dir: env.Dir(), Err: err}
	}

	return env.Remove()
}

func (r *run) testIn(ctx context.Context, env *venv.Env) error {
	venvEnv := env.Environ(r.env)
	projectValues := r.values(template.Project, r.projectDir)
	if r.opts.BeforeTest != "" {
		if err := r.script(ctx, r.opts.BeforeTest, projectValues, venvEnv, ""); err != nil {
			return err
		}
	}

	pip, err := env.Tool(r.opts.Pip)
	if err != nil {
		return err
	}

	if err := r.runner.Run(ctx, shell.Command{
		Args: []string{pip, "install", r.repairedWheel + r.opts.TestExtras},
		Env:  venvEnv.Slice(),
	}); err != nil {
		return err
	}

	if len(r.opts.TestRequires) > 0 {
		args := append([]string{pip, "install"}, r.opts.TestRequires...)
		if err := r.runner.Run(ctx, shell.Command{Args: args, Env: venvEnv.Slice()}); err != nil {
			return err
		}
	}

	cwd := r.opts.TestCwd
	if cwd == "" {
		cwd = FilesystemRoot(r.projectDir)
	}
	if err := r.script(ctx, r.opts.TestCommand, projectValues, venvEnv, cwd); err != nil {
		return err
	}

	r.result.Tested = true
	return nil
}

func (r *run) finalize(_ context.Context) error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	dst := filepath.Join(r.outputDir, filepath.Base(r.repairedWheel))
	if err := xos.ReplaceFile(r.repairedWheel, dst); err != nil {
		return fmt.Errorf("failed to move wheel to %s: %w", r.outputDir, err)
	}

	r.result.Wheel = dst
	return nil
}
