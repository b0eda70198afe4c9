package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/txflow/internal/compiler"
	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/store"
)

// LoadMode controls how errors are handled during definition loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadedProcess is one compiled process and the file it came from.
type LoadedProcess struct {
	File string
	Spec ir.ProcessSpec
}

// LoadResult contains the processes compiled from a directory.
type LoadResult struct {
	Processes []LoadedProcess
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProcesses compiles every top-level .cue file in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
//
// A nil result means the directory itself could not be used.
func LoadProcesses(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("processes directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing processes directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindFiles(dir, ".cue")
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	result := &LoadResult{FileCount: len(files)}
	var errs []error
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", file, err)})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		specs, err := compiler.CompileFile(file, data)
		if err != nil {
			errs = append(errs, convertCompileError(err, file))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		for _, spec := range specs {
			result.Processes = append(result.Processes, LoadedProcess{File: file, Spec: spec})
		}
	}

	if len(result.Processes) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no processes found"})
	}
	return result, errs
}

// FindFiles returns the files directly inside dir whose extension is one
// of exts, sorted.
func FindFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && slices.Contains(exts, filepath.Ext(e.Name())) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, file string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeBuildFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeBuildFailed,
		Message: fmt.Sprintf("%s: %v", file, err),
	}
}

// Fixture is a YAML document seeding one transaction and its messages.
type Fixture struct {
	Transaction ir.Transaction `yaml:"transaction"`
	Messages    []ir.Message   `yaml:"messages,omitempty"`
}

// LoadFixture reads a fixture file. Unknown fields are rejected.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading fixture: %v", err)}
	}

	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing fixture: %v", err)}
	}
	if f.Transaction.ID == "" {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "fixture transaction.id is required"}
	}
	for i, m := range f.Messages {
		if m.ID == "" {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("fixture messages[%d]: id is required", i)}
		}
	}
	return &f, nil
}

// openStore opens the database named by --db.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, &LoadError{Code: ErrCodeInvalidArgs, Message: "--db is required (or set TXFLOW_DB)"}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Message: fmt.Sprintf("opening database: %v", err)}
	}
	return st, nil
}

// loadErrorCode returns the code of a LoadError, or ErrCodeGeneric.
func loadErrorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// Error code constants - unified across all CLI commands.
// Definition validation uses the compiler's E1xx-E3xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE or scenario files found
	ErrCodeLoadFailed  = "E004" // File could not be read or parsed
	ErrCodeNotFound    = "E005" // Path or transaction not found
	ErrCodeBuildFailed = "E006" // CUE compilation failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDatabase    = "E008" // Database error
	ErrCodeInvalidArgs = "E009" // Invalid flag or argument value
	ErrCodeRegistry    = "E010" // Process registry could not be built

	ErrCodeTestFailed  = "E_TEST_FAILED"
	ErrCodeRejected    = "E_REJECTED"
	ErrCodeAuditFailed = "E_AUDIT_FAILED"
)
