package sync

import (
	"fmt"
	"time"
)

// SyncResult collects run statistics. A scheduler passes the same result to
// every collection it syncs in one run and inspects it afterwards.
type SyncResult struct {
	NumIOErrors    int64
	NumAuthErrors  int64
	NumParseErrors int64
	NumDeletes     int64
	NumSkipped     int64
	NumUploads     int64
	NumConflicts   int64
	NumDownloads   int64
	DatabaseError  bool

	// DelayUntil is the retry delay proposed by the server (503 Retry-After).
	DelayUntil time.Duration
}

// HasErrors reports whether any fault was recorded.
func (r *SyncResult) HasErrors() bool {
	return r.NumIOErrors > 0 || r.NumAuthErrors > 0 || r.NumParseErrors > 0 || r.DatabaseError
}

// HasSoftErrors reports whether only retryable faults were recorded.
func (r *SyncResult) HasSoftErrors() bool {
	return r.NumIOErrors > 0 && r.NumAuthErrors == 0 && r.NumParseErrors == 0 && !r.DatabaseError
}

// Merge adds other into r. The longer retry delay wins.
func (r *SyncResult) Merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.NumIOErrors += other.NumIOErrors
	r.NumAuthErrors += other.NumAuthErrors
	r.NumParseErrors += other.NumParseErrors
	r.NumDeletes += other.NumDeletes
	r.NumSkipped += other.NumSkipped
	r.NumUploads += other.NumUploads
	r.NumConflicts += other.NumConflicts
	r.NumDownloads += other.NumDownloads
	r.DatabaseError = r.DatabaseError || other.DatabaseError
	if other.DelayUntil > r.DelayUntil {
		r.DelayUntil = other.DelayUntil
	}
}

func (r *SyncResult) String() string {
	return fmt.Sprintf("uploads=%d downloads=%d deletes=%d skipped=%d conflicts=%d ioErrors=%d authErrors=%d parseErrors=%d dbError=%t delay=%s",
		r.NumUploads, r.NumDownloads, r.NumDeletes, r.NumSkipped, r.NumConflicts,
		r.NumIOErrors, r.NumAuthErrors, r.NumParseErrors, r.DatabaseError, r.DelayUntil)
}
