package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledProcess is one compiled definition and its content hash.
type CompiledProcess struct {
	Hash string         `json:"hash"`
	Spec ir.ProcessSpec `json:"spec"`
}

// CompilationResult holds the compiled processes.
type CompilationResult struct {
	Processes []CompiledProcess `json:"processes"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <processes-dir>",
		Short: "Compile CUE process definitions to canonical JSON",
		Long: `Compile CUE process definitions to canonical JSON.

Each definition is validated and hashed. The hash covers the canonical
form, so two directories that compile to the same hashes define the
same processes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadProcesses(dir, LoadModeCollectAll)
	if loadResult == nil {
		code, msg := loadErrorCode(loadErrors[0])
		return fail(formatter, code, msg, nil)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)

	errs := loadErrors
	var defs []*process.Definition
	for _, p := range loadResult.Processes {
		formatter.VerboseLog("Compiling process: %s", p.Spec.Name)
		d, err := process.NewDefinition(p.Spec)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()})
			continue
		}
		defs = append(defs, d)
	}
	if len(errs) == 0 {
		if _, err := process.NewRegistry(defs...); err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeRegistry, Message: err.Error()})
		}
	}
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	result := &CompilationResult{Processes: make([]CompiledProcess, 0, len(defs))}
	for _, d := range defs {
		result.Processes = append(result.Processes, CompiledProcess{Hash: d.Hash(), Spec: d.Spec()})
	}

	if opts.Output != "" {
		if err := writeCanonicalFile(result, opts.Output); err != nil {
			return fail(formatter, ErrCodeWriteFailed, "writing output file", err)
		}
	}

	return formatter.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Compiled %d process(es)\n\n", len(result.Processes))
		for _, p := range result.Processes {
			fmt.Fprintf(w, "  %s (%s, v%s): %d state(s), %d transition(s)\n",
				p.Spec.Alias, p.Spec.Kind, p.Spec.Version, len(p.Spec.States), len(p.Spec.Transitions))
			fmt.Fprintf(w, "    %s\n", p.Hash)
		}
		if opts.Output != "" {
			fmt.Fprintf(w, "\nWrote canonical JSON to %s\n", opts.Output)
		}
	})
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		code, message := loadErrorCode(err)
		cliErrors[i] = CLIError{Code: code, Message: message}
	}

	_ = formatter.Failure(cliErrors[0].Code, cliErrors[0].Message, cliErrors, func(w io.Writer) {
		fmt.Fprintln(w, "✗ Compilation failed")
		fmt.Fprintln(w)
		for _, err := range errs {
			var loadErr *LoadError
			if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
				fmt.Fprintf(w, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
			}
			code, message := loadErrorCode(err)
			fmt.Fprintf(w, "  %s: %s\n\n", code, message)
		}
	})

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// writeCanonicalFile writes v to filename as canonical JSON.
func writeCanonicalFile(v any, filename string) error {
	generic, err := ir.Canonicalize(v)
	if err != nil {
		return fmt.Errorf("canonicalizing: %w", err)
	}
	data, err := ir.MarshalCanonical(generic)
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
