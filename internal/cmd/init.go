package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dosanma1/wheelforge/internal/config"
	"github.com/dosanma1/wheelforge/internal/ui"
)

// DelvewheelRepair is the repair command offered by init.
const DelvewheelRepair = "delvewheel repair -w {dest_dir} {wheel}"

var (
	initDefaults bool
	initForce    bool
)

var repairChoices = []string{
	"delvewheel (bundle DLLs into the wheel)",
	"none",
	"custom",
}

var initCmd = &cobra.Command{
	Use:   "init [project-dir]",
	Short: "Create a wheelforge.yaml for a project",
	Long: `Interactively create a wheelforge.yaml in project-dir (default: the
current directory). Use --defaults to skip the prompts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "Accept every default without prompting")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	var prompter ui.Prompter = ui.TerminalPrompter{}
	if initDefaults {
		prompter = ui.DefaultPrompter{}
	}

	err := writeInitConfig(cmd.OutOrStdout(), prompter, filepath.Join(dir, config.FileName), initForce)
	if errors.Is(err, ui.ErrCancelled) {
		ui.Status(cmd.ErrOrStderr(), ui.IconWarning, "Cancelled")
		return nil
	}
	return err
}

func writeInitConfig(out io.Writer, p ui.Prompter, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		ok, err := p.Confirm(fmt.Sprintf("%s already exists. Overwrite", path), false)
		if err != nil {
			return err
		}
		if !ok {
			ui.Status(out, ui.IconWarning, "Keeping existing %s", path)
			return nil
		}
	}

	cfg := config.Default()

	outputDir, err := p.Text("Output directory", cfg.OutputDir)
	if err != nil {
		return err
	}
	if outputDir = strings.TrimSpace(outputDir); outputDir != "" {
		cfg.OutputDir = outputDir
	}

	choice, _, err := p.Select("Repair command", repairChoices)
	if err != nil {
		return err
	}
	switch choice {
	case 0:
		cfg.RepairCommand = DelvewheelRepair
	case 2:
		if cfg.RepairCommand, err = p.Text("Repair command ({wheel}, {dest_dir})", DelvewheelRepair); err != nil {
			return err
		}
	}

	if cfg.Test.Command, err = p.Text("Test command ({project}), empty to skip", ""); err != nil {
		return err
	}
	if cfg.Test.Command != "" {
		requires, err := p.Text("Test requirements (space separated)", "pytest")
		if err != nil {
			return err
		}
		cfg.Test.Requires = strings.Fields(requires)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	ui.Status(out, ui.IconSuccess, "Wrote %s", path)
	return nil
}
