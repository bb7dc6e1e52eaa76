package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	disabled := false
	return &Config{
		DataDir: t.TempDir(),
		Accounts: []*Account{
			{
				Name:     "alice",
				BaseURL:  "https://dav.example.com/dav/",
				Username: "alice",
				Password: "secret",
				Collections: []*CollectionConfig{
					{URL: "addressbooks/alice/contacts/", Kind: "AddressBook"},
					{URL: "https://cal.example.com/alice/personal", Kind: "calendar", ID: "alice/cal"},
					{URL: "calendars/alice/old/", Kind: "calendar", Enabled: &disabled},
				},
			},
		},
	}
}

func TestConfig_ValidateDefaults(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, DefaultInterval, cfg.Interval.Std())

	colls := cfg.Accounts[0].Collections
	assert.Equal(t, "https://dav.example.com/dav/addressbooks/alice/contacts/", colls[0].URL)
	assert.Equal(t, "addressbook", colls[0].Kind)
	assert.Equal(t, "alice/contacts", colls[0].ID)
	assert.Equal(t, "alice/cal", colls[1].ID)
	assert.Equal(t, "alice/old", colls[2].ID)

	enabled := cfg.Collections()
	require.Len(t, enabled, 2)
	assert.Equal(t, "alice", enabled[0].Account.Name)
	assert.Equal(t, "alice/cal", enabled[1].Collection.ID)
}

func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "no accounts", modify: func(c *Config) { c.Accounts = nil }, want: ErrNoAccounts},
		{
			name:   "duplicate account",
			modify: func(c *Config) { c.Accounts = append(c.Accounts, &Account{Name: "alice"}) },
			want:   ErrDuplicateAccount,
		},
		{
			name: "duplicate id",
			modify: func(c *Config) {
				c.Accounts[0].Collections[1].ID = "alice/contacts"
			},
			want: ErrDuplicateID,
		},
		{
			name:   "bad kind",
			modify: func(c *Config) { c.Accounts[0].Collections[0].Kind = "tasks" },
			want:   ErrInvalidKind,
		},
		{
			name:   "relative url without base",
			modify: func(c *Config) { c.Accounts[0].BaseURL = "" },
			want:   ErrInvalidURL,
		},
		{
			name:   "non http url",
			modify: func(c *Config) { c.Accounts[0].Collections[1].URL = "ftp://example.com/x" },
			want:   ErrInvalidURL,
		},
		{
			name:   "bad base url",
			modify: func(c *Config) { c.Accounts[0].BaseURL = "dav.example.com" },
			want:   ErrInvalidURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConfig_ValidateInterval(t *testing.T) {
	cfg := testConfig(t)
	cfg.Interval = Duration(10 * time.Second)
	assert.Error(t, cfg.Validate())

	cfg = testConfig(t)
	cfg.Interval = Duration(time.Hour)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Hour, cfg.Interval.Std())
}

func TestConfig_PasswordWithoutUsername(t *testing.T) {
	cfg := testConfig(t)
	cfg.Accounts[0].Username = ""
	assert.Error(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := testConfig(t)
	cfg.Interval = Duration(30 * time.Minute)
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"interval": "30m0s"`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Path)
	assert.Equal(t, cfg.Accounts, loaded.Accounts)
	assert.Equal(t, cfg.Interval, loaded.Interval)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"90s"`)))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, d.UnmarshalJSON([]byte(`600`)))
	assert.Equal(t, 10*time.Minute, d.Std())

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))

	raw, err := Duration(time.Minute).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m0s"`, string(raw))
}
