package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAt(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	t.Run("creates the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "txflow.db")
		openAt(t, path)
		assert.FileExists(t, path)
	})

	t.Run("reopens existing data", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "txflow.db")
		first := openAt(t, path)
		saveTestTransaction(t, first, createTestTransaction("tx-1"))
		require.NoError(t, first.Close())

		second := openAt(t, path)
		var count int
		require.NoError(t, second.DB().QueryRow("SELECT COUNT(*) FROM transactions").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "absent", "txflow.db"))
		assert.Error(t, err)
	})
}

func TestClose(t *testing.T) {
	assert.NoError(t, (&Store{}).Close(), "zero store")

	s, err := Open(filepath.Join(t.TempDir(), "txflow.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.NotPanics(t, func() { _ = s.Close() })
}

func TestDBIsUsable(t *testing.T) {
	s := createTestStore(t)
	require.NotNil(t, s.DB())
	assert.NoError(t, s.DB().Ping())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"foreign_keys": "1",
	} {
		assert.NoError(t, s.verifyPragma(name, want), name)
	}
}

func TestSchemaColumns(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		table   string
		columns []string
	}{
		{"transactions", []string{
			"id", "process_name", "process_alias", "listing", "customer", "provider",
			"booking", "line_items", "protected_data", "engine_version", "ir_version",
		}},
		{"transitions", []string{"transaction_id", "seq", "name", "actor", "created_at"}},
		{"messages", []string{"id", "transaction_id", "sender_id", "content", "created_at"}},
		{"reviews", []string{"id", "transaction_id", "author_id", "rating", "content", "deleted", "created_at"}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			assert.Subset(t, columnNames(t, s.DB(), tt.table), tt.columns)
		})
	}
}

func TestConstraints(t *testing.T) {
	s := createTestStore(t)
	saveTestTransaction(t, s, createTestTransaction("tx-1"))

	_, err := s.DB().Exec(`
		INSERT INTO transitions (transaction_id, seq, name, actor, created_at)
		VALUES ('missing', 1, 'transition/inquire', 'customer', 0)`)
	assert.Error(t, err, "transition for an unknown transaction")

	_, err = s.DB().Exec(`
		INSERT INTO reviews (id, transaction_id, author_id, rating, content, created_at)
		VALUES ('r-1', 'tx-1', 'customer-1', 6, 'too good', 0)`)
	assert.Error(t, err, "rating above 5")

	dup := `
		INSERT INTO transitions (transaction_id, seq, name, actor, created_at)
		VALUES ('tx-1', 99, 'transition/inquire', 'customer', 0)`
	_, err = s.DB().Exec(dup)
	require.NoError(t, err)
	_, err = s.DB().Exec(dup)
	assert.Error(t, err, "duplicate seq")
}

func TestMigrations(t *testing.T) {
	t.Run("version after repeated opens", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "txflow.db")
		for i := 0; i < 3; i++ {
			s, err := Open(path)
			require.NoError(t, err)
			assert.Equal(t, currentSchemaVersion, userVersion(t, s.DB()), "open %d", i)
			require.NoError(t, s.Close())
		}
	})

	t.Run("upgrades an unversioned database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "txflow.db")
		db, err := sql.Open("sqlite3", path)
		require.NoError(t, err)
		_, err = db.Exec(schemaSQL)
		require.NoError(t, err)
		_, err = db.Exec("PRAGMA user_version = 0")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		s := openAt(t, path)
		assert.Equal(t, currentSchemaVersion, userVersion(t, s.DB()))

		var index string
		err = s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_messages_page'",
		).Scan(&index)
		assert.NoError(t, err)
	})
}

func userVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var v int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&v))
	return v
}

func columnNames(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}
