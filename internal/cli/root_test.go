package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "txflow", cmd.Use)
	assert.Contains(t, cmd.Long, "transition log")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"processes", "compile", "validate", "import", "derive", "feed", "perform",
		"review", "message", "dispute", "classify", "trace", "audit", "test",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	processesFlag := cmd.PersistentFlags().Lookup("processes")
	require.NotNil(t, processesFlag)
	assert.Equal(t, "", processesFlag.DefValue)
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestTransactionCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"import", []string{"db"}},
		{"derive", []string{"db", "tx", "role"}},
		{"feed", []string{"db", "tx", "latest", "hide-before-oldest-message"}},
		{"perform", []string{"db", "tx", "as", "transition"}},
		{"review", []string{"db", "tx", "role", "rating", "content"}},
		{"message", []string{"db", "tx", "role"}},
		{"dispute", []string{"db", "tx", "role", "reason"}},
		{"classify", []string{"process"}},
		{"trace", []string{"db", "tx"}},
		{"audit", []string{"db", "tx"}},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestRequiredFlags(t *testing.T) {
	cmd := NewRootCommand()
	performCmd, _, err := cmd.Find([]string{"perform"})
	require.NoError(t, err)

	for _, name := range []string{"tx", "as", "transition"} {
		f := performCmd.Flags().Lookup(name)
		require.NotNil(t, f)
		assert.Equal(t, []string{"true"}, f.Annotations[cobra.BashCompOneRequiredFlag], name)
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "compile", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootOptions_LoggerDefaultsToDiscard(t *testing.T) {
	opts := &RootOptions{}
	require.NotNil(t, opts.logger())
	opts.logger().Info("dropped")
}

func TestRootOptions_Registry(t *testing.T) {
	reg, err := (&RootOptions{}).registry()
	require.NoError(t, err)
	_, ok := reg.Lookup("default-booking")
	assert.True(t, ok)

	reg, err = (&RootOptions{Processes: processesDir}).registry()
	require.NoError(t, err)
	_, ok = reg.Lookup("default-purchase")
	assert.True(t, ok)

	_, err = (&RootOptions{Processes: t.TempDir()}).registry()
	assert.Error(t, err)
}
