package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/docio"
)

// NewReverseCommand creates the reverse command.
func NewReverseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnonymizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "reverse <input> <output>",
		Aliases: []string{"deanonymize"},
		Short:   "Restore original values in an anonymized document",
		Long: `Reverse a previous anonymization run using its mapping file.

Tokens and epoch dates are replaced with the original values recorded
in the mapping. Redacted leaves cannot be recovered and are reported.
Unknown tokens are left in place and reported, never guessed.

Example:
  anonymizer reverse --config rules.yaml --mapping output.json.mapping.json output.json restored.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReverse(opts, args[0], args[1], cmd)
		},
	}

	addRunFlags(cmd, &opts.Config, &opts.Mapping, &opts.InputFormat, &opts.Delimiter)

	return cmd
}

func runReverse(opts *AnonymizeOptions, input, output string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	// The default mapping path is derived from the anonymize run's
	// output, which is this command's input.
	run, err := prepareRun(opts, input, input+".mapping.json")
	if err != nil {
		return err
	}

	if _, err := os.Stat(run.mappingPath); err != nil {
		return WrapExitError(ExitCommandError, "mapping file not found", err)
	}

	slog.Info("reading document", "path", input, "format", run.format)
	doc, err := docio.ReadFile(input, run.format, run.delimiter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read input document", err)
	}

	out, report, runErr := run.engine.Reverse(doc)
	if runErr != nil {
		reportFailure(opts.RootOptions, cmd, report, runErr)
		return WrapExitError(ExitFailure, "reversal failed", runErr)
	}

	if err := docio.WriteFile(output, out, docio.Detect(output, docio.FormatAuto), run.delimiter); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output document", err)
	}
	slog.Info("document written", "path", output)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Successf(report,
		"restored %s -> %s: %d leaves restored, %d not recoverable",
		input, output, report.Transformed, len(report.Issues))
}
