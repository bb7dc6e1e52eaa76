package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// retryInterval is the earliest retry after transient errors when the server
// proposed no delay.
const retryInterval = time.Minute

// Run syncs all collections now and then periodically until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	slog.Info("daemon start", "datadir", c.config.DataDir, "interval", c.config.Interval, "collections", len(c.config.Collections()))

	// a timer and not a ticker, so slow runs don't queue up ticks
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("daemon stop")
			return nil
		case <-timer.C:
			report, err := c.SyncAll(ctx, false)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("sync run", "error", err)
			}

			next := c.nextRun(report)
			if report != nil {
				LogReport(report)
			}
			slog.Info("next sync", "in", next, "at", humanize.Time(c.now().Add(next)))
			timer.Reset(next)
		}
	}
}

// nextRun is the regular interval, unless only transient errors occurred. Then
// the server's Retry-After, or retryInterval, decides.
func (c *Client) nextRun(report *Report) time.Duration {
	interval := c.config.Interval.Std()
	if report == nil || !report.Result.HasSoftErrors() {
		return interval
	}

	return max(report.Result.DelayUntil, retryInterval)
}

// LogReport writes a one-line summary of a sync run.
func LogReport(report *Report) {
	r := report.Result
	attrs := []any{
		"took", report.Took.Round(time.Millisecond),
		"uploads", humanize.Comma(r.NumUploads),
		"downloads", humanize.Comma(r.NumDownloads),
		"deletes", humanize.Comma(r.NumDeletes),
		"skipped", humanize.Comma(r.NumSkipped),
		"conflicts", humanize.Comma(r.NumConflicts),
	}
	if !r.HasErrors() {
		slog.Info("sync done", attrs...)
		return
	}

	attrs = append(attrs,
		"failed", len(report.Failures),
		"ioErrors", r.NumIOErrors,
		"authErrors", r.NumAuthErrors,
		"parseErrors", r.NumParseErrors,
		"dbError", r.DatabaseError,
	)
	if r.DelayUntil > 0 {
		attrs = append(attrs, "retryAfter", r.DelayUntil)
	}
	slog.Warn("sync done with errors", attrs...)
}
