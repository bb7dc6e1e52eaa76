package sync

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/openmined/davsync/internal/davsdk"
)

var (
	ErrMissingETag = errors.New("sync: server didn't provide ETag")
	ErrNoFileName  = errors.New("sync: dirty resource has no file name")
)

// StorageError marks a failure of the local store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// FaultKind is the classification of an error that ended a cycle.
type FaultKind int

const (
	FaultUnknown FaultKind = iota
	FaultIO
	FaultServiceUnavailable
	FaultUnauthorized
	FaultHTTP
	FaultStorage
)

func (k FaultKind) String() string {
	switch k {
	case FaultIO:
		return "io"
	case FaultServiceUnavailable:
		return "service-unavailable"
	case FaultUnauthorized:
		return "unauthorized"
	case FaultHTTP:
		return "http-dav"
	case FaultStorage:
		return "local-storage"
	default:
		return "unknown"
	}
}

// Category selects the user-facing message of a notification.
type Category string

const (
	CategoryIO           Category = "io"
	CategoryUnauthorized Category = "unauthorized"
	CategoryHTTPDav      Category = "http-dav"
	CategoryLocalStorage Category = "local-storage"
	CategoryGeneric      Category = "generic"
)

// Failure is a classified cycle fault.
type Failure struct {
	Kind      FaultKind
	Category  Category
	Retryable bool
	// RetryAfter is the server-proposed delay, zero if none.
	RetryAfter time.Duration
	Err        error

	Phase       Phase
	Diagnostics Diagnostics
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s while %s: %v", f.Kind, f.Phase.Label(), f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Message is the user-facing summary naming the failing phase.
func (f *Failure) Message() string {
	label := f.Phase.Label()
	switch f.Category {
	case CategoryIO:
		if f.Kind == FaultServiceUnavailable {
			return "Server temporarily unavailable while " + label
		}
		return "Network error while " + label
	case CategoryUnauthorized:
		return "Authentication failed while " + label
	case CategoryHTTPDav:
		return "Server error while " + label
	case CategoryLocalStorage:
		return "Database error while " + label
	default:
		return "Error while " + label
	}
}

// Classify maps err to exactly one fault kind.
func Classify(err error, now time.Time) *Failure {
	var (
		unavailable *davsdk.ServiceUnavailableError
		ioErr       *davsdk.IOError
		netErr      net.Error
		httpErr     *davsdk.HTTPError
		davErr      *davsdk.DavError
		storageErr  *StorageError
	)

	f := &Failure{Err: err}
	switch {
	case errors.As(err, &unavailable):
		f.Kind, f.Category, f.Retryable = FaultServiceUnavailable, CategoryIO, true
		if !unavailable.RetryAfter.IsZero() {
			if d := unavailable.RetryAfter.Sub(now); d > 0 {
				f.RetryAfter = d
			}
		}
	case errors.As(err, &ioErr), errors.As(err, &netErr):
		f.Kind, f.Category, f.Retryable = FaultIO, CategoryIO, true
	case errors.Is(err, davsdk.ErrUnauthorized):
		f.Kind, f.Category = FaultUnauthorized, CategoryUnauthorized
	case errors.As(err, &httpErr), errors.As(err, &davErr), errors.Is(err, ErrMissingETag):
		f.Kind, f.Category = FaultHTTP, CategoryHTTPDav
	case errors.As(err, &storageErr):
		f.Kind, f.Category = FaultStorage, CategoryLocalStorage
	default:
		f.Kind, f.Category = FaultUnknown, CategoryGeneric
	}
	return f
}

// apply records the failure in the run statistics.
func (f *Failure) apply(r *SyncResult) {
	switch f.Kind {
	case FaultIO:
		r.NumIOErrors++
	case FaultServiceUnavailable:
		r.NumIOErrors++
		if f.RetryAfter > r.DelayUntil {
			r.DelayUntil = f.RetryAfter
		}
	case FaultUnauthorized:
		r.NumAuthErrors++
	case FaultStorage:
		r.DatabaseError = true
	default:
		r.NumParseErrors++
	}
}
