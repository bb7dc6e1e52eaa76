package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openmined/davsync/internal/client/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const card = "BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Alice\r\nUID:alice\r\nEND:VCARD\r\n"

// newTestRoot builds a root command with fresh flags and the given subcommands.
func newTestRoot(subs ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{Use: "davsync", SilenceUsage: true, SilenceErrors: true}
	addGlobalFlags(cmd)
	cmd.AddCommand(subs...)
	return cmd
}

func execute(t *testing.T, root *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLoadConfigJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{
	"data_dir": "/tmp/davsync-test-json",
	"interval": "30m",
	"accounts": [{
		"name": "alice",
		"base_url": "https://dav.example.com/",
		"username": "alice",
		"password": "secret",
		"collections": [{"url": "addressbooks/alice/contacts/", "kind": "addressbook"}]
	}]
}`), 0o600))

	root := newTestRoot()
	require.NoError(t, root.PersistentFlags().Set("config", configPath))

	cfg, err := loadConfig(root)
	require.NoError(t, err)

	assert.Equal(t, configPath, cfg.Path)
	assert.Equal(t, "/tmp/davsync-test-json", cfg.DataDir)
	assert.Equal(t, 30*time.Minute, cfg.Interval.Std())
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "secret", cfg.Accounts[0].Password)

	require.NoError(t, cfg.Validate())
	coll := cfg.Accounts[0].Collections[0]
	assert.Equal(t, "alice/contacts", coll.ID)
	assert.Equal(t, "https://dav.example.com/addressbooks/alice/contacts/", coll.URL)
}

func TestLoadConfigEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DAVSYNC_CONFIG_PATH", filepath.Join(dir, "missing.json"))
	t.Setenv("DAVSYNC_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("DAVSYNC_LOG_FILE", filepath.Join(dir, "davsync.log"))
	t.Setenv("DAVSYNC_INTERVAL", "5m")

	cfg, err := loadConfig(newTestRoot())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "missing.json"), cfg.Path)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "davsync.log"), cfg.LogFile)
	assert.Equal(t, 5*time.Minute, cfg.Interval.Std())
	assert.Empty(t, cfg.Accounts)
}

func TestLoadConfigFlagOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DAVSYNC_DATA_DIR", filepath.Join(dir, "env"))

	root := newTestRoot()
	require.NoError(t, root.PersistentFlags().Set("config", filepath.Join(dir, "config.json")))
	require.NoError(t, root.PersistentFlags().Set("datadir", filepath.Join(dir, "flag")))

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flag"), cfg.DataDir)
}

func TestLoadValidConfig_NoAccounts(t *testing.T) {
	root := newTestRoot()
	require.NoError(t, root.PersistentFlags().Set("config", filepath.Join(t.TempDir(), "config.json")))

	_, err := loadValidConfig(root)
	require.ErrorIs(t, err, config.ErrNoAccounts)
}
