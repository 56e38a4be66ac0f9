package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qsearch/internal/config"
)

// ValidationError is one problem found in a definition.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ProviderSummary describes one valid provider.
type ProviderSummary struct {
	Name     string `json:"name"`
	Table    string `json:"table"`
	Kind     string `json:"kind"`
	Fields   int    `json:"fields"`
	Mode     string `json:"pagination"`
	FullText string `json:"full_text,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Providers []ProviderSummary `json:"providers,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <definitions>",
		Short: "Validate provider definitions",
		Long: `Validate CUE provider definitions without touching a database.

Compiles every provider in the file or directory: field types, options,
keywords, text searches, sorts and full-text settings. All problems are
reported, each with its position.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	res, errs := config.Load(path, config.LoadModeCollectAll)
	if res == nil && len(errs) > 0 {
		var le *config.LoadError
		if errors.As(errs[0], &le) {
			return outputValidateError(formatter, le.Code, le.Message)
		}
		return outputValidateError(formatter, config.ErrCodeGeneric, errs[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, path)

	result := ValidationResult{Valid: len(errs) == 0}
	for _, d := range res.Definitions {
		formatter.VerboseLog("Compiled provider: %s", d.Name)
		result.Providers = append(result.Providers, summarize(d))
	}
	for _, err := range errs {
		result.Errors = append(result.Errors, validationError(err))
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

func summarize(d *config.Definition) ProviderSummary {
	s := ProviderSummary{
		Name:   d.Name,
		Table:  d.Table,
		Kind:   d.ProviderKind(),
		Fields: len(d.Schema.Fields()),
		Mode:   d.Engine.Options().Mode.String(),
	}
	if d.FullText != nil {
		s.FullText = fmt.Sprintf("%s (%s)", d.FullText.Table.Index, d.FullText.Mode)
	}
	return s
}

func validationError(err error) ValidationError {
	var le *config.LoadError
	if !errors.As(err, &le) {
		return ValidationError{Code: config.ErrCodeGeneric, Message: err.Error()}
	}
	ve := ValidationError{Code: le.Code, Message: le.Message}
	if le.Pos.IsValid() {
		ve.File = le.Pos.Filename()
		ve.Line = le.Pos.Line()
	}
	return ve
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d provider(s) valid\n", len(result.Providers))
	for _, p := range result.Providers {
		fmt.Fprintf(formatter.Writer, "  %s: table %s, %d field(s), %s, %s", p.Name, p.Table, p.Fields, p.Kind, p.Mode)
		if p.FullText != "" {
			fmt.Fprintf(formatter.Writer, ", full text %s", p.FullText)
		}
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}

// outputValidateError outputs a single load error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", err.File, err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
