package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/config"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/docio"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/engine"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/mapping"
)

// AnonymizeOptions holds flags for the anonymize command.
type AnonymizeOptions struct {
	*RootOptions
	Config      string
	Mapping     string
	InputFormat string
	Delimiter   string
}

// NewAnonymizeCommand creates the anonymize command.
func NewAnonymizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnonymizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "anonymize <input> <output>",
		Short: "Anonymize a document",
		Long: `Anonymize a structured document using the classification rules from
the configuration file.

Sensitive values are replaced in place: names and identifiers become
sequence tokens, dates become epoch integers, and free-form sensitive
text is redacted. The mapping needed to reverse the run is written to
the mapping file (default: <output>.mapping.json).

Example:
  anonymizer anonymize --config rules.yaml input.json output.json
  anonymizer anonymize --config rules.yaml --mapping map.db data.csv out.csv`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnonymize(opts, args[0], args[1], cmd)
		},
	}

	addRunFlags(cmd, &opts.Config, &opts.Mapping, &opts.InputFormat, &opts.Delimiter)

	return cmd
}

// addRunFlags registers the flags shared by anonymize and reverse.
func addRunFlags(cmd *cobra.Command, cfg, mapping, inputFormat, delimiter *string) {
	cmd.Flags().StringVarP(cfg, "config", "c", "", "path to configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVarP(mapping, "mapping", "m", "", "path to mapping file (default: <output>.mapping.json)")
	cmd.Flags().StringVar(inputFormat, "input-format", "auto", "input format (auto|json|csv)")
	cmd.Flags().StringVar(delimiter, "delimiter", "", "delimiter for csv documents (default from config, then extension)")
}

func runAnonymize(opts *AnonymizeOptions, input, output string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	run, err := prepareRun(opts, input, output+".mapping.json")
	if err != nil {
		return err
	}

	slog.Info("reading document", "path", input, "format", run.format)
	doc, err := docio.ReadFile(input, run.format, run.delimiter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read input document", err)
	}

	out, report, runErr := run.engine.Run(doc)
	if runErr != nil {
		reportFailure(opts.RootOptions, cmd, report, runErr)
		return WrapExitError(ExitFailure, "anonymization failed", runErr)
	}

	if err := docio.WriteFile(output, out, docio.Detect(output, docio.FormatAuto), run.delimiter); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output document", err)
	}
	slog.Info("document written", "path", output)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Successf(report,
		"anonymized %s -> %s: %d leaves transformed, %d new mapping entries, %d redacted, %d skipped",
		input, output, report.Transformed, report.NewEntries, len(report.Redacted), report.SkippedCount())
}

// runContext bundles the wiring shared by anonymize and reverse.
type runContext struct {
	engine      *engine.Engine
	format      docio.Format
	delimiter   rune
	mappingPath string
}

// prepareRun loads the configuration and builds the engine with a
// persister on the resolved mapping path. Resolution order: flag,
// config file, then the command's fallback next to the document.
func prepareRun(opts *AnonymizeOptions, input, mappingFallback string) (*runContext, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	if !docio.Format(opts.InputFormat).Valid() {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid input format %q", opts.InputFormat))
	}
	format := docio.Detect(input, docio.Format(opts.InputFormat))

	delimiter, err := resolveDelimiter(cfg, opts.Delimiter, input)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid delimiter", err)
	}

	mappingPath := opts.Mapping
	if mappingPath == "" {
		mappingPath = cfg.MappingPath
	}
	if mappingPath == "" {
		mappingPath = mappingFallback
	}
	slog.Debug("mapping store resolved", "path", mappingPath)

	engOpts := cfg.EngineOptions()
	engOpts.Persister = mapping.OpenPersister(mappingPath)
	engOpts.Logger = slog.Default()

	eng, err := engine.New(engOpts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	return &runContext{engine: eng, format: format, delimiter: delimiter, mappingPath: mappingPath}, nil
}

// resolveDelimiter picks the CSV delimiter: the flag wins, then the
// config file, then the document extension.
func resolveDelimiter(cfg *config.Config, flag, path string) (rune, error) {
	if flag != "" {
		runes := []rune(flag)
		if len(runes) != 1 {
			return 0, fmt.Errorf("delimiter must be a single character, got %q", flag)
		}
		return runes[0], nil
	}
	d, err := cfg.CSVDelimiter()
	if err != nil {
		return 0, err
	}
	if cfg.CSV.Delimiter == "" {
		d = docio.DefaultDelimiter(path, d)
	}
	return d, nil
}

// setupLogging configures the default slog handler from the verbose flag.
func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// reportFailure writes the failed run's report so per-leaf issues reach
// the user even when the run aborts.
func reportFailure(rootOpts *RootOptions, cmd *cobra.Command, report *engine.Report, err error) {
	if report == nil {
		return
	}
	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
	_ = formatter.Error(string(engine.CodeOf(err)), err.Error(), report.Issues)
}
