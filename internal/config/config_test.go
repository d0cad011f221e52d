package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matcherd.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsForUnsetAccountFields(t *testing.T) {
	path := writeConfig(t, `{"wal":{"dir":"/tmp/wal"}}`)
	loaded, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 200, loaded.Account.MaxActiveOrders)
	require.Equal(t, ":8080", loaded.Listen)
	require.True(t, loaded.Wal.Enabled)
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	path := writeConfig(t, `{
		"listen": ":9090",
		"account": {"maxActiveOrders": 50, "mailboxCapacity": 64},
		"wal": {"dir": "/tmp/wal", "segmentMaxSizeMiB": 16, "enabled": false},
		"postgres": {"host": "db", "port": 5432, "database": "matcher"}
	}`)
	loaded, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 50, loaded.Account.MaxActiveOrders)
	require.Equal(t, 64, loaded.Account.MailboxCapacity)
	require.Equal(t, ":9090", loaded.Listen)
	require.Equal(t, int64(16<<20), loaded.Wal.SegmentMaxSize)
	require.False(t, loaded.Wal.Enabled)
	require.Equal(t, "db", loaded.Postgres.Host)
	require.Equal(t, "matcher", loaded.Postgres.Database)
}

func TestLoadRequiresWalDir(t *testing.T) {
	path := writeConfig(t, `{}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `not json`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
