package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openmined/davsync/internal/client/sync"
)

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{log: logger}
}

func (l *LogNotifier) Dismiss(string) error { return nil }

func (l *LogNotifier) Notify(n *sync.Notification) error {
	attrs := []any{
		"collection", n.CollectionID,
		"category", n.Category,
		"retryable", n.Retryable,
	}
	if n.Target == sync.TargetAccountSettings {
		attrs = append(attrs, "hint", "check the account credentials")
	} else {
		attrs = append(attrs, "phase", n.Phase, "error", n.Error, "local", n.LocalResource, "remote", n.RemoteResource)
	}
	if n.RetryAfter > 0 {
		attrs = append(attrs, "retryAfter", n.RetryAfter)
	}

	level := slog.LevelError
	if n.Retryable {
		level = slog.LevelWarn
	}
	l.log.Log(context.Background(), level, n.Title+": "+n.Message, attrs...)
	return nil
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []sync.Notifier

func (f Fanout) Dismiss(collectionID string) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.Dismiss(collectionID))
	}
	return errors.Join(errs...)
}

func (f Fanout) Notify(notification *sync.Notification) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.Notify(notification))
	}
	return errors.Join(errs...)
}
