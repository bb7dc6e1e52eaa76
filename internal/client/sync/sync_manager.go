package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Options configures a SyncManager for one collection.
type Options struct {
	// CollectionID is unique per collection and addresses the notification slot.
	CollectionID string
	Account      string

	Local    LocalCollection
	Remote   RemoteCollection
	Kind     Kind
	Notifier Notifier

	// Manual marks a user-triggered sync; the CTag shortcut is skipped.
	Manual bool

	// Now is used for Retry-After arithmetic and notification timestamps.
	Now func() time.Time
}

// SyncManager runs the sync pipeline for one collection. PerformSync may be
// invoked any number of times; each call is an independent cycle.
type SyncManager struct {
	id       string
	account  string
	local    LocalCollection
	remote   RemoteCollection
	kind     Kind
	notifier Notifier
	manual   bool
	now      func() time.Time
	log      *slog.Logger
}

func NewSyncManager(opts Options) (*SyncManager, error) {
	if opts.CollectionID == "" {
		return nil, errors.New("sync: collection id missing")
	}
	if opts.Local == nil || opts.Remote == nil || opts.Kind == nil {
		return nil, errors.New("sync: local collection, remote collection and kind are required")
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &SyncManager{
		id:       opts.CollectionID,
		account:  opts.Account,
		local:    opts.Local,
		remote:   opts.Remote,
		kind:     opts.Kind,
		notifier: notifier,
		manual:   opts.Manual,
		now:      now,
		log:      slog.With("collection", opts.CollectionID, "kind", opts.Kind.Name()),
	}, nil
}

// CollectionID returns the ID the manager reports under.
func (m *SyncManager) CollectionID() string {
	return m.id
}

// PerformSync runs one cycle. Statistics are accumulated into result.
// Cancelling ctx ends the cycle at the next check without reporting an error.
// The returned Failure is nil unless the cycle ended with a fault.
func (m *SyncManager) PerformSync(ctx context.Context, result *SyncResult) *Failure {
	if result == nil {
		result = &SyncResult{}
	}

	// dismiss previous error notifications
	if err := m.notifier.Dismiss(m.id); err != nil {
		m.log.Warn("sync dismiss notification", "error", err)
	}

	c := &cycle{
		SyncManager: m,
		result:      result,
		downloads:   NewDownloadSet(),
	}

	tStart := time.Now()
	err := c.run(ctx)
	if err == nil {
		m.log.Debug("sync done", "took", time.Since(tStart), "result", result)
		return nil
	}

	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		m.log.Info("sync cancelled", "phase", c.phase)
		return nil
	}

	failure := Classify(err, m.now())
	failure.Phase = c.phase
	failure.Diagnostics = c.diag
	failure.apply(result)

	switch failure.Kind {
	case FaultIO:
		m.log.Warn("I/O error during sync, trying again later", "phase", c.phase, "error", err)
	case FaultServiceUnavailable:
		m.log.Warn("service unavailable, trying again later", "phase", c.phase, "retryAfter", failure.RetryAfter, "error", err)
	case FaultUnauthorized:
		m.log.Error("not authorized anymore", "phase", c.phase, "error", err)
	case FaultHTTP:
		m.log.Error("HTTP/DAV error during sync", "phase", c.phase, "error", err)
	case FaultStorage:
		m.log.Error("couldn't access local storage", "phase", c.phase, "error", err)
	default:
		m.log.Error("unknown sync error", "phase", c.phase, "error", err)
	}

	if err := m.notifier.Notify(m.notification(failure)); err != nil {
		m.log.Warn("sync notify", "error", err)
	}

	return failure
}

func (m *SyncManager) notification(f *Failure) *Notification {
	n := &Notification{
		CollectionID: m.id,
		Account:      m.account,
		Authority:    m.kind.Name(),
		Title:        m.kind.SyncErrorTitle(),
		Message:      f.Message(),
		Category:     f.Category,
		Retryable:    f.Retryable,
		RetryAfter:   f.RetryAfter,
		CreatedAt:    m.now(),
	}

	if f.Kind == FaultUnauthorized {
		n.Target = TargetAccountSettings
		return n
	}

	n.Target = TargetDebugInfo
	n.Phase = f.Phase.String()
	n.Error = f.Err.Error()
	n.LocalResource = f.Diagnostics.LocalResource
	n.RemoteResource = f.Diagnostics.RemoteResource
	return n
}

// cycle holds the transient state of one PerformSync invocation.
type cycle struct {
	*SyncManager

	result *SyncResult
	phase  Phase
	diag   Diagnostics

	// remote CTag as seen by checkSyncState
	remoteCTag string

	localResources  map[string]LocalResource
	remoteResources map[string]*RemoteResource
	downloads       *DownloadSet
}

func (c *cycle) enter(phase Phase) {
	c.phase = phase
	c.log.Info("sync", "phase", phase)
}

func (c *cycle) run(ctx context.Context) error {
	c.enter(PhasePrepare)
	ok, err := c.kind.Prepare(ctx)
	if err != nil {
		return err
	}
	if !ok {
		c.log.Info("no reason to synchronize, aborting")
		return nil
	}

	if cancelled(ctx) {
		return nil
	}
	c.enter(PhaseQueryCapabilities)
	if err := c.kind.QueryCapabilities(requestContext(ctx)); err != nil {
		return err
	}

	if cancelled(ctx) {
		return nil
	}
	c.enter(PhaseProcessLocallyDeleted)
	if err := c.processLocallyDeleted(ctx); err != nil {
		return err
	}

	if cancelled(ctx) {
		return nil
	}
	c.enter(PhasePrepareDirty)
	if err := c.prepareDirty(); err != nil {
		return err
	}

	c.enter(PhaseUploadDirty)
	if err := c.uploadDirty(ctx); err != nil {
		return err
	}

	if cancelled(ctx) {
		return nil
	}
	c.enter(PhaseCheckSyncState)
	changed, err := c.checkSyncState(ctx)
	if err != nil {
		return err
	}
	if !changed {
		c.log.Info("remote collection didn't change, skipping remote sync", "ctag", c.remoteCTag)
		return nil
	}

	c.enter(PhaseListLocal)
	if err := c.listLocal(); err != nil {
		return err
	}

	if cancelled(ctx) {
		return nil
	}
	c.enter(PhaseListRemote)
	if err := c.listRemote(ctx); err != nil {
		return err
	}

	if cancelled(ctx) {
		return nil
	}
	c.enter(PhaseCompareLocalRemote)
	if err := c.compareLocalRemote(); err != nil {
		return err
	}

	if cancelled(ctx) {
		return nil
	}
	c.enter(PhaseDownloadRemote)
	if err := c.downloadRemote(ctx); err != nil {
		return err
	}
	if cancelled(ctx) {
		// the download set was not fully processed, keep the old CTag
		return nil
	}

	c.enter(PhasePostProcess)
	if err := c.kind.PostProcess(ctx); err != nil {
		return err
	}

	c.enter(PhaseSaveSyncState)
	return c.saveSyncState()
}

func (c *cycle) downloadRemote(ctx context.Context) error {
	if c.downloads.Len() == 0 {
		return nil
	}
	n, err := c.kind.DownloadRemote(ctx, c.downloads, &c.diag)
	c.result.NumDownloads += int64(n)
	if err != nil {
		return fmt.Errorf("download remote: %w", err)
	}
	c.diag.Clear()
	return nil
}

// cancelled polls the interrupt signal.
func cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}

// requestContext detaches a single remote call from cancellation so it is
// never interrupted mid-request. The transport timeout still applies.
func requestContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
