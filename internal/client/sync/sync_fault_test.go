package sync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/openmined/davsync/internal/davsdk"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		err        error
		kind       FaultKind
		category   Category
		retryable  bool
		retryAfter time.Duration
	}{
		{
			name:      "io",
			err:       &davsdk.IOError{Op: "put", Err: errors.New("connection reset by peer")},
			kind:      FaultIO,
			category:  CategoryIO,
			retryable: true,
		},
		{
			name:      "net error",
			err:       fmt.Errorf("dial: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}),
			kind:      FaultIO,
			category:  CategoryIO,
			retryable: true,
		},
		{
			name:       "service unavailable",
			err:        &davsdk.ServiceUnavailableError{Op: "propfind", RetryAfter: now.Add(time.Minute)},
			kind:       FaultServiceUnavailable,
			category:   CategoryIO,
			retryable:  true,
			retryAfter: time.Minute,
		},
		{
			name:      "service unavailable without hint",
			err:       &davsdk.ServiceUnavailableError{Op: "propfind"},
			kind:      FaultServiceUnavailable,
			category:  CategoryIO,
			retryable: true,
		},
		{
			name:      "service unavailable hint in the past",
			err:       &davsdk.ServiceUnavailableError{Op: "propfind", RetryAfter: now.Add(-time.Minute)},
			kind:      FaultServiceUnavailable,
			category:  CategoryIO,
			retryable: true,
		},
		{
			name:     "unauthorized",
			err:      fmt.Errorf("propfind: %w", davsdk.ErrUnauthorized),
			kind:     FaultUnauthorized,
			category: CategoryUnauthorized,
		},
		{
			name:     "http",
			err:      &davsdk.HTTPError{Op: "put", StatusCode: 500, Status: "500 Internal Server Error"},
			kind:     FaultHTTP,
			category: CategoryHTTPDav,
		},
		{
			name:     "dav",
			err:      &davsdk.DavError{Op: "propfind", Message: "invalid multistatus"},
			kind:     FaultHTTP,
			category: CategoryHTTPDav,
		},
		{
			name:     "missing etag",
			err:      fmt.Errorf("compare a.vcf: %w", ErrMissingETag),
			kind:     FaultHTTP,
			category: CategoryHTTPDav,
		},
		{
			name:     "storage",
			err:      &StorageError{Op: "set ctag", Err: errors.New("disk I/O error")},
			kind:     FaultStorage,
			category: CategoryLocalStorage,
		},
		{
			name:     "unknown",
			err:      errors.New("vcard: unexpected end of input"),
			kind:     FaultUnknown,
			category: CategoryGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(tt.err, now)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.category, f.Category)
			assert.Equal(t, tt.retryable, f.Retryable)
			assert.Equal(t, tt.retryAfter, f.RetryAfter)
			assert.ErrorIs(t, f, tt.err)
		})
	}
}

func TestFailure_Apply(t *testing.T) {
	now := time.Now()
	r := &SyncResult{}

	Classify(&davsdk.IOError{Op: "get", Err: context.DeadlineExceeded}, now).apply(r)
	Classify(&davsdk.ServiceUnavailableError{RetryAfter: now.Add(time.Hour)}, now).apply(r)
	Classify(&davsdk.ServiceUnavailableError{RetryAfter: now.Add(time.Minute)}, now).apply(r)
	Classify(davsdk.ErrUnauthorized, now).apply(r)
	Classify(ErrMissingETag, now).apply(r)
	Classify(errors.New("boom"), now).apply(r)
	Classify(&StorageError{Op: "all", Err: errors.New("locked")}, now).apply(r)

	assert.EqualValues(t, 3, r.NumIOErrors)
	assert.EqualValues(t, 1, r.NumAuthErrors)
	assert.EqualValues(t, 2, r.NumParseErrors)
	assert.True(t, r.DatabaseError)
	assert.Equal(t, time.Hour, r.DelayUntil)
}

func TestFailure_Message(t *testing.T) {
	f := Classify(&davsdk.ServiceUnavailableError{}, time.Now())
	f.Phase = PhaseListRemote
	assert.Equal(t, "Server temporarily unavailable while listing remote entries", f.Message())

	f = Classify(&davsdk.IOError{Err: errors.New("eof")}, time.Now())
	f.Phase = PhaseUploadDirty
	assert.Equal(t, "Network error while uploading locally changed entries", f.Message())
	assert.Contains(t, f.Error(), "io while uploading locally changed entries")
}

func TestPhase_Names(t *testing.T) {
	assert.Equal(t, "Prepare", PhasePrepare.String())
	assert.Equal(t, "SaveSyncState", PhaseSaveSyncState.String())
	assert.Equal(t, "Phase(42)", Phase(42).String())
	assert.Equal(t, "downloading remote entries", PhaseDownloadRemote.Label())
	assert.Equal(t, "synchronizing", Phase(-1).Label())
}
