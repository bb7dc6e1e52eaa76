package notify

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/davsync/internal/client/sync"
	"github.com/openmined/davsync/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
    collection_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    category TEXT NOT NULL,
    target TEXT NOT NULL,
    retryable INTEGER NOT NULL,
    created_at TEXT NOT NULL, -- RFC3339
    details TEXT NOT NULL -- JSON
);
`

// Schema creates the notifications table. Pass it to db.WithSchema.
func Schema() string {
	return schema
}

type dbNotification struct {
	CollectionID string `db:"collection_id"`
	Title        string `db:"title"`
	Message      string `db:"message"`
	Category     string `db:"category"`
	Target       string `db:"target"`
	Retryable    bool   `db:"retryable"`
	CreatedAt    string `db:"created_at"`
	Details      string `db:"details"`
}

// details are the fields which are only shown on request.
type details struct {
	Account        string        `json:"account,omitempty"`
	Authority      string        `json:"authority,omitempty"`
	RetryAfter     time.Duration `json:"retryAfter,omitempty"`
	Phase          string        `json:"phase,omitempty"`
	Error          string        `json:"error,omitempty"`
	LocalResource  string        `json:"localResource,omitempty"`
	RemoteResource string        `json:"remoteResource,omitempty"`
}

// Store keeps one notification slot per collection in SQLite.
type Store struct {
	db *sqlx.DB
}

var _ sync.Notifier = (*Store)(nil)

// NewStore uses conn, which must have been opened with Schema().
func NewStore(conn *sqlx.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) Dismiss(collectionID string) error {
	if _, err := s.db.Exec("DELETE FROM notifications WHERE collection_id = ?", collectionID); err != nil {
		return fmt.Errorf("dismiss notification: %w", err)
	}
	return nil
}

// Notify fills the slot of n.CollectionID, replacing what was there.
func (s *Store) Notify(n *sync.Notification) error {
	raw, err := utils.JSONMarshal(&details{
		Account:        n.Account,
		Authority:      n.Authority,
		RetryAfter:     n.RetryAfter,
		Phase:          n.Phase,
		Error:          n.Error,
		LocalResource:  n.LocalResource,
		RemoteResource: n.RemoteResource,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	row := &dbNotification{
		CollectionID: n.CollectionID,
		Title:        n.Title,
		Message:      n.Message,
		Category:     string(n.Category),
		Target:       string(n.Target),
		Retryable:    n.Retryable,
		CreatedAt:    n.CreatedAt.UTC().Format(time.RFC3339),
		Details:      string(raw),
	}
	_, err = s.db.NamedExec(`
		INSERT OR REPLACE INTO notifications (collection_id, title, message, category, target, retryable, created_at, details)
		VALUES (:collection_id, :title, :message, :category, :target, :retryable, :created_at, :details)`, row)
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// List returns the outstanding notifications ordered by collection.
func (s *Store) List() ([]*sync.Notification, error) {
	var rows []*dbNotification
	if err := s.db.Select(&rows, "SELECT * FROM notifications ORDER BY collection_id"); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	out := make([]*sync.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.notification()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *dbNotification) notification() (*sync.Notification, error) {
	var d details
	if err := utils.JSONUnmarshal([]byte(r.Details), &d); err != nil {
		return nil, fmt.Errorf("decode notification %s: %w", r.CollectionID, err)
	}
	createdAt, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode notification %s: %w", r.CollectionID, err)
	}

	return &sync.Notification{
		CollectionID:   r.CollectionID,
		Account:        d.Account,
		Authority:      d.Authority,
		Title:          r.Title,
		Message:        r.Message,
		Category:       sync.Category(r.Category),
		Target:         sync.NotificationTarget(r.Target),
		Retryable:      r.Retryable,
		RetryAfter:     d.RetryAfter,
		CreatedAt:      createdAt,
		Phase:          d.Phase,
		Error:          d.Error,
		LocalResource:  d.LocalResource,
		RemoteResource: d.RemoteResource,
	}, nil
}
