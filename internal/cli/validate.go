package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/config"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/engine"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Rules int    `json:"rules,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file without running",
		Long: `Validate a configuration file: schema check, rule pattern syntax,
semantic type names, and transform options.

No document is read and no mapping file is touched.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateConfig(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidateConfig(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(path)
	if err != nil {
		_ = formatter.Error(string(engine.CodeInvalidConfiguration), err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	formatter.VerboseLog("schema ok: %d rule(s)", len(cfg.Rules))

	// Build the engine to exercise rule compilation and transform
	// option checks, with no persister attached.
	if _, err := engine.New(cfg.EngineOptions()); err != nil {
		_ = formatter.Error(string(engine.CodeOf(err)), err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if _, err := cfg.CSVDelimiter(); err != nil {
		_ = formatter.Error(string(engine.CodeInvalidConfiguration), err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = string(engine.ModeStrict)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Rules: len(cfg.Rules), Mode: mode})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s valid: %d rule(s), mode %s\n", path, len(cfg.Rules), mode)
	return nil
}
