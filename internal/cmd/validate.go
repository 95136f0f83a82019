package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dosanma1/wheelforge/internal/config"
	"github.com/dosanma1/wheelforge/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate wheelforge.yaml",
	Long: `Validates a wheelforge.yaml file against the JSON Schema and checks
that every command template only uses placeholders available to it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := config.FileName
	if len(args) == 1 {
		path = args[0]
	}
	return validateFile(cmd.OutOrStdout(), path)
}

func validateFile(out io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	fmt.Fprintf(out, "🔍 Validating %s...\n", path)

	if err := config.ValidateSchema(data); err != nil {
		var schemaErr *config.SchemaError
		if !errors.As(err, &schemaErr) {
			return err
		}

		fmt.Fprintln(out, "\n❌ Validation failed with the following errors:")
		fmt.Fprintln(out)
		for i, v := range schemaErr.Violations {
			fmt.Fprintf(out, "%d. %s\n", i+1, v.Message)
			fmt.Fprintf(out, "   Field: %s\n", v.Field)
			fmt.Fprintf(out, "   Type: %s\n\n", v.Type)
		}
		return fmt.Errorf("validation failed with %d errors", len(schemaErr.Violations))
	}

	if _, err := config.Parse(data); err != nil {
		ui.Status(out, ui.IconError, "%v", err)
		return err
	}

	ui.Status(out, ui.IconSuccess, "%s is valid!", path)
	return nil
}
