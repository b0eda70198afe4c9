package cli

import (
	"fmt"
	"io"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/compiler"
	"github.com/roach88/txflow/internal/process"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Processes []string                   `json:"processes,omitempty"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <processes-dir>",
		Short: "Validate process definitions",
		Long: `Validate CUE process definitions.

Every .cue file in the directory is compiled and checked: header fields,
declared states, transition actors, reachability from the initial state,
an acyclic state graph, and a UI table whose buttons can actually be
pressed. Aliases must be unique across the directory.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadProcesses(dir, LoadModeCollectAll)
	if loadResult == nil {
		code, msg := loadErrorCode(loadErrors[0])
		return fail(formatter, code, msg, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		code, msg := loadErrorCode(err)
		ve := compiler.ValidationError{Field: "load", Message: msg, Code: code}
		if le, ok := err.(*LoadError); ok {
			ve.Line = lineOf(le.Pos)
		}
		validationErrors = append(validationErrors, ve)
	}
	validationErrors = append(validationErrors, validateAll(loadResult, formatter)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	names := make([]string, 0, len(loadResult.Processes))
	for _, p := range loadResult.Processes {
		names = append(names, p.Spec.Alias)
	}
	return formatter.Render(ValidationResult{Valid: true, Processes: names}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ All processes valid (%d)\n", len(names))
	})
}

// validateAll runs schema validation on every loaded process and, when
// each is valid on its own, checks that they form a registry.
func validateAll(result *LoadResult, formatter *OutputFormatter) []compiler.ValidationError {
	var errs []compiler.ValidationError
	var defs []*process.Definition

	for _, p := range result.Processes {
		formatter.VerboseLog("Validating process: %s (%s)", p.Spec.Name, p.File)

		specErrs := compiler.Validate(&p.Spec)
		for i := range specErrs {
			specErrs[i].Field = p.Spec.Name + "." + specErrs[i].Field
		}
		errs = append(errs, specErrs...)
		if len(specErrs) > 0 {
			continue
		}

		d, err := process.NewDefinition(p.Spec)
		if err != nil {
			errs = append(errs, compiler.ValidationError{Field: p.Spec.Name, Message: err.Error(), Code: ErrCodeRegistry})
			continue
		}
		defs = append(defs, d)
	}

	if len(errs) == 0 {
		if _, err := process.NewRegistry(defs...); err != nil {
			errs = append(errs, compiler.ValidationError{Field: "alias", Message: err.Error(), Code: ErrCodeRegistry})
		}
	}
	return errs
}

// lineOf extracts the line number from a CUE position.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	result := ValidationResult{Valid: false, Errors: errs}
	_ = formatter.Failure(errs[0].Code, errs[0].Message, result, func(w io.Writer) {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, err := range errs {
			if err.Line > 0 {
				fmt.Fprintf(w, "line %d\n", err.Line)
			}
			fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
		}
	})

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
