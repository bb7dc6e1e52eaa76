package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/openmined/davsync/internal/client/collections"
	"github.com/openmined/davsync/internal/client/config"
	"github.com/openmined/davsync/internal/client/notify"
	"github.com/openmined/davsync/internal/client/sync"
	"github.com/openmined/davsync/internal/davsdk"
	"github.com/openmined/davsync/internal/localstore"
	"github.com/openmined/davsync/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	lockFile  = "davsync.lock"
	storeFile = "replica.db"

	// collections synced at the same time
	maxParallelSyncs = 4
)

var (
	ErrDataDirLocked     = errors.New("data directory locked by another process")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Client syncs every configured collection against its server.
type Client struct {
	config   *config.Config
	flock    *flock.Flock
	store    *localstore.Store
	notices  *notify.Store
	notifier sync.Notifier
	sdks     map[string]*davsdk.DavSDK
	now      func() time.Time
}

func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		flock:  flock.New(filepath.Join(cfg.DataDir, lockFile)),
		sdks:   make(map[string]*davsdk.DavSDK),
		now:    time.Now,
	}, nil
}

// Open locks the data directory and opens the local replica.
func (c *Client) Open() error {
	if err := utils.EnsureDir(c.config.DataDir); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", c.config.DataDir, err)
	}

	locked, err := c.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock data dir: %w", err)
	}
	if !locked {
		return ErrDataDirLocked
	}

	store, notices, err := OpenStore(c.config.DataDir)
	if err != nil {
		c.flock.Unlock()
		return err
	}
	c.store = store
	c.notices = notices
	c.notifier = notify.Fanout{notices, notify.NewLogNotifier(slog.Default())}

	for _, acc := range c.config.Accounts {
		sdk, err := davsdk.New(&davsdk.DavSDKConfig{
			Username: acc.Username,
			Password: acc.Password,
			Token:    acc.Token,
		})
		if err != nil {
			c.Close()
			return fmt.Errorf("account %s: %w", acc.Name, err)
		}
		c.sdks[acc.Name] = sdk
	}

	return nil
}

// Close releases the replica, the transports, and the lock.
func (c *Client) Close() error {
	for name, sdk := range c.sdks {
		sdk.Close()
		delete(c.sdks, name)
	}

	var err error
	if c.store != nil {
		err = c.store.Close()
		c.store = nil
	}
	if unlockErr := c.flock.Unlock(); unlockErr != nil {
		err = errors.Join(err, unlockErr)
	}
	return err
}

// OpenStore opens the replica in dataDir without locking it, for tools that
// only inspect or edit local records.
func OpenStore(dataDir string) (*localstore.Store, *notify.Store, error) {
	store, err := localstore.Open(filepath.Join(dataDir, storeFile))
	if err != nil {
		return nil, nil, err
	}
	if _, err := store.DB().Exec(notify.Schema()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("init notifications: %w", err)
	}
	return store, notify.NewStore(store.DB()), nil
}

// Report is the outcome of syncing several collections.
type Report struct {
	Result   *sync.SyncResult
	Failures []*CollectionFailure
	Started  time.Time
	Took     time.Duration
}

// CollectionFailure is the fault that ended a collection's cycle.
type CollectionFailure struct {
	CollectionID string
	Failure      *sync.Failure
}

// SyncAll runs one cycle for every enabled collection, several at a time.
// A failing collection doesn't stop the others.
func (c *Client) SyncAll(ctx context.Context, manual bool) (*Report, error) {
	targets := c.config.Collections()
	report := &Report{Result: &sync.SyncResult{}, Started: c.now()}

	results := make([]*sync.SyncResult, len(targets))
	failures := make([]*sync.Failure, len(targets))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelSyncs)
	for i, target := range targets {
		eg.Go(func() error {
			result := &sync.SyncResult{}
			failure, err := c.syncCollection(egCtx, target, manual, result)
			if err != nil {
				return fmt.Errorf("collection %s: %w", target.Collection.ID, err)
			}
			results[i] = result
			failures[i] = failure
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i, target := range targets {
		report.Result.Merge(results[i])
		if failures[i] != nil {
			report.Failures = append(report.Failures, &CollectionFailure{
				CollectionID: target.Collection.ID,
				Failure:      failures[i],
			})
		}
	}
	report.Took = c.now().Sub(report.Started)
	return report, nil
}

// SyncCollection runs one cycle for a single collection, enabled or not.
func (c *Client) SyncCollection(ctx context.Context, id string, manual bool) (*Report, error) {
	for _, acc := range c.config.Accounts {
		for _, coll := range acc.Collections {
			if coll.ID != id {
				continue
			}
			report := &Report{Result: &sync.SyncResult{}, Started: c.now()}
			failure, err := c.syncCollection(ctx, config.AccountCollection{Account: acc, Collection: coll}, manual, report.Result)
			if err != nil {
				return nil, err
			}
			if failure != nil {
				report.Failures = []*CollectionFailure{{CollectionID: id, Failure: failure}}
			}
			report.Took = c.now().Sub(report.Started)
			return report, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, id)
}

// syncCollection wires the replica, the transport, and the kind for target
// and performs one cycle. Errors are setup errors; cycle faults are returned
// as *sync.Failure.
func (c *Client) syncCollection(ctx context.Context, target config.AccountCollection, manual bool, result *sync.SyncResult) (*sync.Failure, error) {
	if c.store == nil {
		return nil, errors.New("client not open")
	}

	coll := target.Collection
	format, err := collections.FormatFor(coll.Kind)
	if err != nil {
		return nil, err
	}

	sdk, ok := c.sdks[target.Account.Name]
	if !ok {
		return nil, fmt.Errorf("no transport for account %s", target.Account.Name)
	}
	remote, err := sdk.Collection(coll.URL)
	if err != nil {
		return nil, err
	}

	local, err := c.store.Collection(coll.ID, remote.URL(), format.Kind, format.FileExt)
	if err != nil {
		return nil, err
	}

	manager, err := sync.NewSyncManager(sync.Options{
		CollectionID: coll.ID,
		Account:      target.Account.Name,
		Local:        local,
		Remote:       remote,
		Kind:         collections.New(format, remote, local),
		Notifier:     c.notifier,
		Manual:       manual,
		Now:          c.now,
	})
	if err != nil {
		return nil, err
	}

	return manager.PerformSync(ctx, result), nil
}

// Notifications lists outstanding sync errors.
func (c *Client) Notifications() ([]*sync.Notification, error) {
	if c.notices == nil {
		return nil, errors.New("client not open")
	}
	return c.notices.List()
}

// CollectionIDs returns the IDs of the enabled collections, sorted.
func (c *Client) CollectionIDs() []string {
	var ids []string
	for _, t := range c.config.Collections() {
		ids = append(ids, t.Collection.ID)
	}
	sort.Strings(ids)
	return ids
}
