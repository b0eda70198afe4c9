package process

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txflow/internal/ir"
)

// inquiryVersion builds a valid inquiry definition with the given version.
func inquiryVersion(t *testing.T, version, alias string) *Definition {
	t.Helper()
	def, err := NewDefinition(ir.ProcessSpec{
		Name:    "custom-inquiry",
		Alias:   alias,
		Version: version,
		Kind:    ir.KindInquiry,
		Initial: "state/initial",
		States:  []ir.StateID{"state/initial", "state/free-inquiry"},
		Transitions: []ir.TransitionSpec{{
			Name:   "transition/inquire-without-payment",
			From:   []ir.StateID{"state/initial"},
			To:     "state/free-inquiry",
			Actors: []ir.Actor{ir.ActorCustomer},
		}},
	})
	require.NoError(t, err)
	return def
}

func TestRegistryHighestVersionWins(t *testing.T) {
	v1 := inquiryVersion(t, "1.0.0", "custom-inquiry/release-1")
	v10 := inquiryVersion(t, "1.10.0", "custom-inquiry/release-3")
	v2 := inquiryVersion(t, "1.2.0", "custom-inquiry/release-2")

	reg, err := NewRegistry(v1, v10, v2)
	require.NoError(t, err)

	got, ok := reg.Lookup("custom-inquiry")
	require.True(t, ok)
	assert.Equal(t, "1.10.0", got.Version().String(), "semver ordering, not lexical")

	got, ok = reg.LookupAlias("custom-inquiry/release-1")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", got.Version().String())

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "custom-inquiry/release-3", defs[0].Alias())
	assert.Equal(t, "custom-inquiry/release-1", defs[2].Alias())
}

func TestRegistryResolve(t *testing.T) {
	v1 := inquiryVersion(t, "1.0.0", "custom-inquiry/release-1")
	v2 := inquiryVersion(t, "2.0.0", "custom-inquiry/release-2")
	reg, err := NewRegistry(v1, v2)
	require.NoError(t, err)

	d, ok := reg.Resolve("custom-inquiry", "custom-inquiry/release-1")
	require.True(t, ok)
	assert.Same(t, v1, d)

	d, ok = reg.Resolve("custom-inquiry", "custom-inquiry/release-9")
	require.True(t, ok)
	assert.Same(t, v2, d, "unknown alias falls back to newest version")

	d, ok = reg.Resolve("", "custom-inquiry/release-9")
	require.True(t, ok)
	assert.Same(t, v2, d, "name derived from alias")

	_, ok = reg.Resolve("other", "custom-inquiry/release-1")
	assert.False(t, ok, "alias of a different process does not match")

	d, ok = reg.For(&ir.Transaction{ProcessName: "custom-inquiry", ProcessAlias: "custom-inquiry/release-1"})
	require.True(t, ok)
	assert.Same(t, v1, d)
}

func TestRegistryDuplicateAlias(t *testing.T) {
	a := inquiryVersion(t, "1.0.0", "custom-inquiry/release-1")
	b := inquiryVersion(t, "1.1.0", "custom-inquiry/release-1")

	_, err := NewRegistry(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate process alias")
}

func TestRegistryUnknown(t *testing.T) {
	reg := builtin(t)

	_, ok := reg.Lookup("default-rental")
	assert.False(t, ok)
	_, ok = reg.Kind("default-rental")
	assert.False(t, ok)
}

func TestNameFromAlias(t *testing.T) {
	assert.Equal(t, "default-booking", NameFromAlias("default-booking/release-1"))
	assert.Equal(t, "plain", NameFromAlias("plain"))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `
process: "custom-inquiry": {
	alias:   "custom-inquiry/release-1"
	version: "0.1.0"
	kind:    "inquiry"
	initial: "state/initial"
	states: ["state/initial", "state/free-inquiry"]
	transitions: [
		{name: "transition/inquire-without-payment", from: ["state/initial"], to: "state/free-inquiry", actors: ["customer"], relevant: true},
	]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inquiry.cue"), []byte(src), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	reg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom-inquiry"}, reg.Names())
}

func TestLoadDirErrors(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .cue files")

	dir := t.TempDir()
	bad := `
process: "broken": {
	alias:   "broken/release-1"
	version: "1.0.0"
	kind:    "inquiry"
	initial: "state/initial"
	states: ["state/initial", "state/orphan"]
	transitions: [
		{name: "transition/noop", from: ["state/initial"], to: "state/initial", actors: ["system"]},
	]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.cue"), []byte(bad), 0o644))
	_, err = LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E204")
	assert.Contains(t, err.Error(), "E205")
}
