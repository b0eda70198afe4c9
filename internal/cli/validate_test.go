package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBuiltinProcesses(t *testing.T) {
	output, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), processesDir)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ All processes valid (4)")
}

func TestValidateBuiltinProcessesJSON(t *testing.T) {
	output, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), processesDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Contains(t, resp.Data.Processes, "default-booking/release-1")
	assert.Contains(t, resp.Data.Processes, "default-purchase/release-1")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	output, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "E005")
	assert.Contains(t, output, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	output, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "E003")
}

func TestValidateNotADirectory(t *testing.T) {
	file := writeFile(t, t.TempDir(), "mini.cue", miniInquiry)

	output, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), file)
	require.Error(t, err)
	assert.Contains(t, output, "not a directory")
}

func TestValidateSingleProcess(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mini.cue", miniInquiry)

	output, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ All processes valid (1)")
}

func TestValidateUnreachableState(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.cue", `
process: broken: {
	alias:   "broken/release-1"
	version: "1.0.0"
	kind:    "inquiry"
	initial: "state/initial"
	states: ["state/initial", "state/inquiry", "state/orphan"]
	transitions: [
		{name: "transition/inquire", from: ["state/initial"], to: "state/inquiry", actors: ["customer"]},
	]
}
`)

	output, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ Validation failed")
	assert.Contains(t, output, "E204")
	assert.Contains(t, output, "broken.states")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_syntax.cue", `process: { alias: `)
	writeFile(t, dir, "b_cycle.cue", `
process: loop: {
	alias:   "loop/release-1"
	version: "1.0.0"
	kind:    "inquiry"
	initial: "state/a"
	states: ["state/a", "state/b"]
	transitions: [
		{name: "transition/forth", from: ["state/a"], to: "state/b", actors: ["customer"]},
		{name: "transition/back", from: ["state/b"], to: "state/a", actors: ["provider"]},
	]
}
`)

	output, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)

	codes := make([]string, 0, len(resp.Data.Errors))
	for _, e := range resp.Data.Errors {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, ErrCodeBuildFailed)
	assert.Contains(t, codes, "E205")
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBuildFailed, resp.Error.Code)
}

func TestValidateDuplicateAlias(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.cue", miniInquiry)
	writeFile(t, dir, "two.cue", miniInquiry)

	output, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, ErrCodeRegistry)
	assert.Contains(t, output, "duplicate process alias")
}
