package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var processesDir = filepath.Join("..", "process", "defs")

const miniInquiry = `
process: "mini-inquiry": {
	alias:   "mini-inquiry/release-1"
	version: "1.0.0"
	kind:    "inquiry"
	initial: "state/initial"
	states: ["state/initial", "state/inquiry", "state/closed"]

	transitions: [
		{name: "transition/inquire", from: ["state/initial"], to: "state/inquiry", actors: ["customer"], relevant: true},
		{name: "transition/close", from: ["state/inquiry"], to: "state/closed", actors: ["provider"]},
	]

	successes: ["transition/close"]
	attention: provider: ["state/inquiry"]
	ui: "state/inquiry": provider: primary: transition: "transition/close"
}
`

// deliveredBooking is a booking the system has completed; the provider
// holds the first review slot.
const deliveredBooking = `
transaction:
  id: tx-1
  process_name: default-booking
  process_alias: default-booking/release-1
  customer: { id: customer-1 }
  provider: { id: provider-1 }
  listing: { id: listing-1 }
  transitions:
    - { transition: transition/request-payment, by: customer, at: 2024-03-01T12:00:00Z }
    - { transition: transition/confirm-payment, by: customer, at: 2024-03-01T12:01:00Z }
    - { transition: transition/accept, by: provider, at: 2024-03-01T12:05:00Z }
    - { transition: transition/complete, by: system, at: 2024-03-01T13:00:00Z }
messages:
  - { id: msg-1, sender_id: customer-1, content: "see you at noon", created_at: 2024-03-01T12:02:00Z }
  - { id: msg-2, sender_id: provider-1, content: "confirmed", created_at: 2024-03-01T12:06:00Z }
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// importFixture imports yaml into a fresh database and returns its path.
func importFixture(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "txflow.db")
	fixture := writeFile(t, dir, "fixture.yaml", yaml)

	_, err := execute(NewImportCommand(&RootOptions{Format: "text"}), "--db", db, fixture)
	require.NoError(t, err)
	return db
}
