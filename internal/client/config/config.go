package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmined/davsync/internal/utils"
)

const (
	KindAddressBook = "addressbook"
	KindCalendar    = "calendar"

	DefaultInterval = 15 * time.Minute
	MinInterval     = time.Minute
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".davsync", "config.json")
	DefaultDataDir     = filepath.Join(home, ".davsync", "data")
	DefaultLogFilePath = filepath.Join(home, ".davsync", "logs", "davsync.log")
)

var (
	ErrNoAccounts       = errors.New("config: no accounts configured")
	ErrDuplicateAccount = errors.New("config: duplicate account")
	ErrDuplicateID      = errors.New("config: duplicate collection id")
	ErrInvalidURL       = errors.New("config: invalid url")
	ErrInvalidKind      = errors.New("config: invalid collection kind")
)

type Config struct {
	DataDir  string     `json:"data_dir"`
	LogFile  string     `json:"log_file,omitempty"`
	Interval Duration   `json:"interval,omitempty"`
	Accounts []*Account `json:"accounts"`
	Path     string     `json:"-"`
}

type Account struct {
	Name        string              `json:"name"`
	BaseURL     string              `json:"base_url,omitempty"`
	Username    string              `json:"username,omitempty"`
	Password    string              `json:"password,omitempty"`
	Token       string              `json:"token,omitempty"`
	Collections []*CollectionConfig `json:"collections"`
}

type CollectionConfig struct {
	// ID addresses the local replica and the notification slot.
	// Defaults to "<account>/<last url segment>".
	ID string `json:"id,omitempty"`
	// URL is absolute or relative to the account's base URL.
	URL     string `json:"url"`
	Kind    string `json:"kind"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (c *CollectionConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Validate normalizes paths, resolves collection URLs, fills defaults, and
// checks that accounts and collection IDs are unique.
func (c *Config) Validate() error {
	var err error

	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return fmt.Errorf("config: data dir: %w", err)
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config: path: %w", err)
		}
	}

	if c.LogFile != "" {
		if c.LogFile, err = utils.ResolvePath(c.LogFile); err != nil {
			return fmt.Errorf("config: log file: %w", err)
		}
	}

	switch {
	case c.Interval == 0:
		c.Interval = Duration(DefaultInterval)
	case c.Interval.Std() < MinInterval:
		return fmt.Errorf("config: interval %s is shorter than %s", c.Interval, MinInterval)
	}

	if len(c.Accounts) == 0 {
		return ErrNoAccounts
	}

	accounts := make(map[string]bool, len(c.Accounts))
	ids := make(map[string]bool)
	for _, acc := range c.Accounts {
		if err := acc.validate(); err != nil {
			return err
		}
		if accounts[acc.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateAccount, acc.Name)
		}
		accounts[acc.Name] = true

		for _, coll := range acc.Collections {
			if ids[coll.ID] {
				return fmt.Errorf("%w: %q", ErrDuplicateID, coll.ID)
			}
			ids[coll.ID] = true
		}
	}

	return nil
}

func (a *Account) validate() error {
	if a.Name = strings.TrimSpace(a.Name); a.Name == "" {
		return errors.New("config: account name missing")
	}
	if a.Password != "" && a.Username == "" {
		return fmt.Errorf("config: account %q: password without username", a.Name)
	}

	var base *url.URL
	if a.BaseURL != "" {
		var err error
		if base, err = parseHTTPURL(a.BaseURL); err != nil {
			return fmt.Errorf("config: account %q: base url: %w", a.Name, err)
		}
	}

	for _, coll := range a.Collections {
		if err := coll.validate(a.Name, base); err != nil {
			return fmt.Errorf("config: account %q: %w", a.Name, err)
		}
	}
	return nil
}

func (c *CollectionConfig) validate(account string, base *url.URL) error {
	if c.Kind = strings.ToLower(strings.TrimSpace(c.Kind)); c.Kind != KindAddressBook && c.Kind != KindCalendar {
		return fmt.Errorf("%w: %q", ErrInvalidKind, c.Kind)
	}

	ref, err := url.Parse(c.URL)
	if err != nil || c.URL == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, c.URL)
	}
	if !ref.IsAbs() {
		if base == nil {
			return fmt.Errorf("%w: %q is relative and no base url is set", ErrInvalidURL, c.URL)
		}
		ref = base.ResolveReference(ref)
	}
	resolved, err := parseHTTPURL(ref.String())
	if err != nil {
		return err
	}
	c.URL = resolved.String()

	if c.ID == "" {
		c.ID = account + "/" + path.Base(strings.TrimSuffix(resolved.Path, "/"))
	}
	return nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}

// Save writes the config as indented JSON. The file may hold credentials and
// is only readable by the owner.
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := utils.JSONMarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Load reads a config file. It is not validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := utils.JSONUnmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Path = path
	return &cfg, nil
}

// Collections returns every enabled collection with its account.
func (c *Config) Collections() []AccountCollection {
	var out []AccountCollection
	for _, acc := range c.Accounts {
		for _, coll := range acc.Collections {
			if coll.IsEnabled() {
				out = append(out, AccountCollection{Account: acc, Collection: coll})
			}
		}
	}
	return out
}

// AccountCollection pairs a collection with the account it belongs to.
type AccountCollection struct {
	Account    *Account
	Collection *CollectionConfig
}
