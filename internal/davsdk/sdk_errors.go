package davsdk

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req/v3"
)

var (
	// sdk common
	ErrNoCollectionURL = errors.New("sdk: collection url missing")
	ErrInvalidURL      = errors.New("sdk: invalid url")
	ErrNoFileName      = errors.New("sdk: file name missing")

	// auth
	ErrUnauthorized = errors.New("sdk: unauthorized")
)

const maxErrorBody = 512

// HTTPError is returned for any HTTP-level failure that has no dedicated type.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func newHTTPError(op string, resp *req.Response) *HTTPError {
	body := resp.String()
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &HTTPError{
		Op:         op,
		StatusCode: resp.GetStatusCode(),
		Status:     resp.GetStatus(),
		Body:       body,
	}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s: %s", e.Op, e.Status)
}

// ServiceUnavailableError is a 503 response. RetryAfter is zero when the
// server did not send a usable Retry-After header.
type ServiceUnavailableError struct {
	Op         string
	RetryAfter time.Time
}

func (e *ServiceUnavailableError) Error() string {
	if e.RetryAfter.IsZero() {
		return fmt.Sprintf("service unavailable: %s", e.Op)
	}
	return fmt.Sprintf("service unavailable: %s (retry after %s)", e.Op, e.RetryAfter.Format(time.RFC3339))
}

// DavError reports a response that violates the WebDAV protocol, e.g. a
// malformed multistatus body or a missing required property.
type DavError struct {
	Op      string
	Message string
	Err     error
}

func (e *DavError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dav error: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("dav error: %s: %s", e.Op, e.Message)
}

func (e *DavError) Unwrap() error { return e.Err }

// IOError wraps transport failures (dial, TLS, timeouts, broken connections).
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// handleDavError maps a finished request onto the sdk error taxonomy.
// Callers handle 409/412 themselves before delegating here.
func handleDavError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return &IOError{Op: operation, Err: requestErr}
	}

	if !resp.IsErrorState() {
		return nil
	}

	switch resp.GetStatusCode() {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", operation, ErrUnauthorized)
	case http.StatusServiceUnavailable:
		return &ServiceUnavailableError{
			Op:         operation,
			RetryAfter: parseRetryAfter(resp.GetHeader("Retry-After"), time.Now()),
		}
	default:
		return newHTTPError(operation, resp)
	}
}

// parseRetryAfter accepts both forms allowed by RFC 9110: delay-seconds and HTTP-date.
func parseRetryAfter(value string, now time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return time.Time{}
		}
		return now.Add(time.Duration(secs) * time.Second)
	}

	if t, err := http.ParseTime(value); err == nil {
		return t
	}

	return time.Time{}
}
