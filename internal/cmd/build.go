package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dosanma1/wheelforge/internal/config"
	"github.com/dosanma1/wheelforge/internal/logging"
	"github.com/dosanma1/wheelforge/internal/pipeline"
	"github.com/dosanma1/wheelforge/internal/shell"
	"github.com/dosanma1/wheelforge/internal/ui"
	"github.com/dosanma1/wheelforge/internal/watch"
)

var (
	buildConfigFile    string
	buildOutputDir     string
	buildBeforeBuild   string
	buildRepairCommand string
	buildVerbosity     int
	buildSelector      string
	buildEnvironment   []string
	buildTestCommand   string
	buildBeforeTest    string
	buildTestRequires  []string
	buildTestExtras    string
	buildTestCwd       string
	buildCI            bool
	buildProgress      bool
	buildWatch         bool
)

var buildCmd = &cobra.Command{
	Use:   "build [project-dir]",
	Short: "Build, repair and test a wheel",
	Long: `Build a wheel for the project in project-dir (default: the current
directory), repair it, test it in a fresh virtualenv and move it into
the output directory.

Command templates accept placeholders: {project} in before-build,
before-test and test-command; {wheel} and {dest_dir} in repair-command;
{python} and {pip} everywhere. Use {{ and }} for literal braces.

Examples:
  wheelforge build
  wheelforge build ./mypkg --output-dir dist
  wheelforge build --repair-command "delvewheel repair -w {dest_dir} {wheel}"
  wheelforge build --test-command "pytest {project}/tests" --test-requires pytest
  wheelforge build --environment CFLAGS=-O2 --build-verbosity 1
  wheelforge build --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	f := buildCmd.Flags()
	f.StringVarP(&buildConfigFile, "config", "c", "", "Config file (default: <project-dir>/"+config.FileName+")")
	f.StringVarP(&buildOutputDir, "output-dir", "o", "", "Directory that receives the final wheel")
	f.StringVar(&buildBeforeBuild, "before-build", "", "Shell command run before building")
	f.StringVar(&buildRepairCommand, "repair-command", "", "Shell command that repairs a platform wheel")
	f.IntVar(&buildVerbosity, "build-verbosity", 0, "pip verbosity, -3 to 3")
	f.StringVar(&buildSelector, "build", "", "Build selector, recorded in logs")
	f.StringArrayVarP(&buildEnvironment, "environment", "e", nil, "Environment override NAME=value, applied in order (repeatable)")
	f.StringVar(&buildTestCommand, "test-command", "", "Shell command that tests the installed wheel")
	f.StringVar(&buildBeforeTest, "before-test", "", "Shell command run in the test environment first")
	f.StringArrayVar(&buildTestRequires, "test-requires", nil, "Requirement installed for testing (repeatable)")
	f.StringVar(&buildTestExtras, "test-extras", "", "Extras installed with the wheel, e.g. test,docs")
	f.StringVar(&buildTestCwd, "test-cwd", "", "Working directory of the test command (default: volume root)")
	f.BoolVar(&buildCI, "ci", false, "CI mode (plain logs, no progress bar)")
	f.BoolVar(&buildProgress, "progress", true, "Show a stage progress bar")
	f.BoolVarP(&buildWatch, "watch", "w", false, "Rebuild whenever project files change")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
	}
	if info, err := os.Stat(projectDir); err != nil || !info.IsDir() {
		return fmt.Errorf("project directory %s does not exist", projectDir)
	}

	cfg, err := resolveConfig(cmd.Flags(), projectDir, os.LookupEnv)
	if err != nil {
		return err
	}

	if !buildWatch {
		return buildOnce(ctx, cmd, cfg, projectDir)
	}
	return watchAndBuild(ctx, cmd, cfg, projectDir)
}

// resolveConfig layers the config file, CIBW_* variables and changed flags.
func resolveConfig(flags *pflag.FlagSet, projectDir string, lookup config.LookupFunc) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if buildConfigFile != "" {
		cfg, err = config.Load(buildConfigFile)
	} else {
		cfg, err = config.LoadOrDefault(filepath.Join(projectDir, config.FileName))
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	if err := applyFlags(flags, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("output-dir") {
		cfg.OutputDir = buildOutputDir
	}
	if flags.Changed("before-build") {
		cfg.BeforeBuild = buildBeforeBuild
	}
	if flags.Changed("repair-command") {
		cfg.RepairCommand = buildRepairCommand
	}
	if flags.Changed("build-verbosity") {
		cfg.BuildVerbosity = buildVerbosity
	}
	if flags.Changed("build") {
		cfg.Build = buildSelector
	}
	if flags.Changed("environment") {
		for _, kv := range buildEnvironment {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return fmt.Errorf("--environment %q is not a NAME=value assignment", kv)
			}
			cfg.Environment.Set(name, value)
		}
	}
	if flags.Changed("test-command") {
		cfg.Test.Command = buildTestCommand
	}
	if flags.Changed("before-test") {
		cfg.Test.Before = buildBeforeTest
	}
	if flags.Changed("test-requires") {
		cfg.Test.Requires = buildTestRequires
	}
	if flags.Changed("test-extras") {
		cfg.Test.Extras = config.NormalizeExtras(buildTestExtras)
	}
	if flags.Changed("test-cwd") {
		cfg.Test.Cwd = buildTestCwd
	}
	return nil
}

func buildOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, projectDir string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	var opts []pipeline.Option
	var progress *ui.StageProgress
	if buildProgress && !buildCI {
		progress = ui.NewStageProgress(errOut)
		opts = append(opts, pipeline.WithReporter(progress))
	}

	p := pipeline.New(shell.NewExecutor(shell.WithOutput(out, errOut)), opts...)

	ui.Status(out, ui.IconRocket, "Building wheel for %s", projectDir)
	result, err := p.Run(ctx, cfg.Options(projectDir))
	if err != nil {
		ui.Status(errOut, ui.IconError, "Build failed: %v", err)
		if h := hint(err); h != "" {
			ui.Status(errOut, ui.IconTool, "%s", h)
		}
		return err
	}
	if progress != nil {
		progress.Finish()
	}

	if result.Tested {
		ui.Status(out, ui.IconTest, "Tests passed")
	}
	ui.Status(out, ui.IconSuccess, "Wheel written to %s (%s)", result.Wheel, result.Duration.Round(time.Millisecond))
	return nil
}

func watchAndBuild(ctx context.Context, cmd *cobra.Command, cfg *config.Config, projectDir string) error {
	out := cmd.OutOrStdout()
	logger := logging.New("build")

	var extra []string
	if ignore := outputIgnore(projectDir, cfg.OutputDir); ignore != "" {
		extra = append(extra, ignore)
	}

	// Register watches before the first build so its edits are not lost.
	w, err := watch.New(watch.DefaultConfig(projectDir, extra...))
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", projectDir, err)
	}

	if err := buildOnce(ctx, cmd, cfg, projectDir); err != nil {
		logger.Warn("Initial build failed", logging.Error(err))
	}

	ui.Status(out, ui.IconWatch, "Watching %s for changes (Ctrl+C to stop)", projectDir)
	build := func(ctx context.Context, cfg *config.Config) error {
		return buildOnce(ctx, cmd, cfg, projectDir)
	}
	return w.Run(ctx, rebuildOnChange(out, cmd.Flags(), projectDir, os.LookupEnv, build))
}

// rebuildOnChange re-resolves the configuration for every batch, so edits
// to wheelforge.yaml take effect on the next rebuild. A batch whose
// configuration does not resolve is skipped.
func rebuildOnChange(out io.Writer, flags *pflag.FlagSet, projectDir string, lookup config.LookupFunc,
	build func(context.Context, *config.Config) error,
) watch.ChangeFunc {
	logger := logging.New("build")
	return func(ctx context.Context, changed []string) {
		ui.Status(out, ui.IconTool, "%d file(s) changed, rebuilding", len(changed))
		logger.Debug("Rebuild triggered", slog.Any("files", changed))

		cfg, err := resolveConfig(flags, projectDir, lookup)
		if err != nil {
			ui.Status(out, ui.IconError, "Configuration error, skipping rebuild: %v", err)
			return
		}
		if err := build(ctx, cfg); err != nil {
			logger.Warn("Rebuild failed", logging.Error(err))
		}
	}
}

// outputIgnore returns the top-level entry of outputDir inside projectDir,
// or "" when the output lives elsewhere.
func outputIgnore(projectDir, outputDir string) string {
	absProject, err := filepath.Abs(projectDir)
	if err != nil {
		return ""
	}
	absOutput, err := filepath.Abs(outputDir)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(absProject, absOutput)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first
}
