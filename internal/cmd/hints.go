package cmd

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/dosanma1/wheelforge/internal/pipeline"
	"github.com/dosanma1/wheelforge/internal/shell"
	"github.com/dosanma1/wheelforge/internal/venv"
	"github.com/dosanma1/wheelforge/internal/wheel"
)

// hint suggests a next step for a failed build, or returns "".
func hint(err error) string {
	var envErr *pipeline.TestEnvError
	keptEnv := errors.As(err, &envErr)

	switch {
	case keptEnv && errors.Is(err, venv.ErrToolNotFound):
		return fmt.Sprintf("The virtualenv at %s has no copy of the installer. Check tools.pip in wheelforge.yaml.", envErr.Dir)
	case errors.Is(err, exec.ErrNotFound):
		return "A required tool is not on PATH. Check tools.python and tools.pip in wheelforge.yaml or install the missing command."
	case errors.Is(err, wheel.ErrNoWheel):
		return "The build finished without producing a wheel. Check that the project has a pyproject.toml or setup.py."
	case errors.Is(err, wheel.ErrAmbiguous):
		return "More than one wheel was produced. A build or repair step must leave exactly one .whl behind."
	}

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		return ""
	}

	var exitErr *shell.ExitError
	isExit := errors.As(err, &exitErr)

	switch stageErr.Stage {
	case pipeline.StageBuild:
		if isExit {
			return "The build failed. Re-run with --build-verbosity 1 for the full compiler output."
		}
	case pipeline.StageRepair:
		if isExit && exitErr.Code == 127 {
			return "The repair tool was not found. Install it, e.g. 'pip install delvewheel'."
		}
		return "The repair command failed. Check that it writes the repaired wheel into {dest_dir}."
	case pipeline.StageTest:
		if keptEnv {
			return fmt.Sprintf("Tests failed. The virtualenv at %s was kept so you can inspect it.", envErr.Dir)
		}
		return "The test virtualenv could not be created. Check that pip can install virtualenv and python can run it."
	}
	return ""
}
