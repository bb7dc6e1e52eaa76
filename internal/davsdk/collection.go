package davsdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/imroc/req/v3"
)

const (
	methodPropfind = "PROPFIND"
	methodOptions  = "OPTIONS"
	contentTypeXML = "application/xml; charset=utf-8"
)

// WriteOutcome is the result of a conditional write that reached the server.
type WriteOutcome int

const (
	// Written means the server accepted the request.
	Written WriteOutcome = iota
	// PreconditionFailed is a 412: the If-Match/If-None-Match guard did not hold.
	PreconditionFailed
	// Conflict is a 409 reported by the server for the write.
	Conflict
	// Gone is a 404/410 on delete: the resource was already removed.
	Gone
)

func (o WriteOutcome) String() string {
	switch o {
	case Written:
		return "written"
	case PreconditionFailed:
		return "precondition-failed"
	case Conflict:
		return "conflict"
	case Gone:
		return "gone"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// WriteResult carries the outcome of PUT/DELETE and, for a successful PUT,
// the version tag returned by the server ("" if none was sent).
type WriteResult struct {
	Outcome WriteOutcome
	ETag    string
}

// Precondition guards a write. IfMatch takes an unquoted tag; IfNoneMatch
// requests "only if the name does not exist yet".
type Precondition struct {
	IfMatch     string
	IfNoneMatch bool
}

// IfMatch guards against lost updates.
func IfMatch(eTag string) Precondition { return Precondition{IfMatch: eTag} }

// IfNoneExist guards against name collisions.
func IfNoneExist() Precondition { return Precondition{IfNoneMatch: true} }

// Member is one non-collection child of a collection.
type Member struct {
	URL         string
	FileName    string
	ETag        string
	ContentType string
}

// Entity is a downloaded member.
type Entity struct {
	Body        []byte
	ETag        string
	ContentType string
}

// Collection is a remote WebDAV collection.
type Collection struct {
	sdk *DavSDK
	url *url.URL
}

// URL returns the normalized collection URL.
func (c *Collection) URL() string {
	return c.url.String()
}

// MemberURL returns the address of fileName inside the collection. The name
// is a single path segment, so "/" and "%" are escaped.
func (c *Collection) MemberURL(fileName string) string {
	return c.url.JoinPath(url.PathEscape(fileName)).String()
}

// Options queries the DAV compliance classes. Results are cached per collection URL.
func (c *Collection) Options(ctx context.Context) (*Capabilities, error) {
	key := c.URL()
	if caps, ok := c.sdk.caps.Get(key); ok {
		return caps, nil
	}

	resp, err := c.sdk.client.R().
		SetContext(ctx).
		Send(methodOptions, key)
	if err := handleDavError(resp, err, "options"); err != nil {
		return nil, err
	}

	caps := parseCapabilities(resp.GetHeader(HeaderDAV), resp.GetHeader(HeaderAllow))
	c.sdk.caps.Add(key, caps)
	return caps, nil
}

// Properties retrieves the collection's own properties (Depth: 0).
func (c *Collection) Properties(ctx context.Context) (*Properties, error) {
	list, err := c.propfind(ctx, "0", "d:resourcetype", "d:displayname", "cs:getctag")
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, &DavError{Op: "propfind", Message: "no response for collection"}
	}
	return list[0], nil
}

// CTag returns the collection-wide version tag, "" if the server does not support it.
func (c *Collection) CTag(ctx context.Context) (string, error) {
	props, err := c.Properties(ctx)
	if err != nil {
		return "", err
	}
	return props.CTag, nil
}

// Members lists the direct non-collection children with their ETags (Depth: 1).
func (c *Collection) Members(ctx context.Context) ([]*Member, error) {
	list, err := c.propfind(ctx, "1", "d:resourcetype", "d:getetag", "d:getcontenttype")
	if err != nil {
		return nil, err
	}

	members := make([]*Member, 0, len(list))
	for _, props := range list {
		u, err := resolveHref(c.url, props.Href)
		if err != nil {
			return nil, &DavError{Op: "propfind", Message: "invalid member href", Err: err}
		}

		// skip the collection itself and sub-collections
		if props.IsCollection || strings.TrimSuffix(u.Path, "/") == strings.TrimSuffix(c.url.Path, "/") {
			continue
		}

		members = append(members, &Member{
			URL:         u.String(),
			FileName:    lastSegment(u),
			ETag:        props.ETag,
			ContentType: props.ContentType,
		})
	}

	return members, nil
}

// Get downloads a member.
func (c *Collection) Get(ctx context.Context, fileName string) (*Entity, error) {
	if fileName == "" {
		return nil, ErrNoFileName
	}

	resp, err := c.sdk.client.R().
		SetContext(ctx).
		Get(c.MemberURL(fileName))
	if err := handleDavError(resp, err, "get "+fileName); err != nil {
		return nil, err
	}

	return &Entity{
		Body:        resp.Bytes(),
		ETag:        UnquoteETag(resp.GetHeader(HeaderETag)),
		ContentType: resp.GetHeader(HeaderContentType),
	}, nil
}

// Put uploads body under fileName. 409 and 412 are reported as outcomes, not errors.
func (c *Collection) Put(ctx context.Context, fileName string, body []byte, contentType string, cond Precondition) (*WriteResult, error) {
	if fileName == "" {
		return nil, ErrNoFileName
	}

	r := c.sdk.client.R().
		SetContext(ctx).
		SetHeader(HeaderContentType, contentType).
		SetBodyBytes(body)
	applyPrecondition(r, cond)

	resp, err := r.Put(c.MemberURL(fileName))
	if result, ok := writeOutcome(resp, err); ok {
		slog.Debug("dav put", "file", fileName, "outcome", result.Outcome)
		return result, nil
	}
	if err := handleDavError(resp, err, "put "+fileName); err != nil {
		return nil, err
	}

	return &WriteResult{
		Outcome: Written,
		ETag:    UnquoteETag(resp.GetHeader(HeaderETag)),
	}, nil
}

// Delete removes fileName. ifMatch is an unquoted tag; "" sends no precondition.
func (c *Collection) Delete(ctx context.Context, fileName string, ifMatch string) (*WriteResult, error) {
	if fileName == "" {
		return nil, ErrNoFileName
	}

	r := c.sdk.client.R().SetContext(ctx)
	applyPrecondition(r, IfMatch(ifMatch))

	resp, err := r.Delete(c.MemberURL(fileName))
	if result, ok := writeOutcome(resp, err); ok {
		return result, nil
	}
	if err == nil && (resp.GetStatusCode() == http.StatusNotFound || resp.GetStatusCode() == http.StatusGone) {
		return &WriteResult{Outcome: Gone}, nil
	}
	if err := handleDavError(resp, err, "delete "+fileName); err != nil {
		return nil, err
	}

	return &WriteResult{Outcome: Written}, nil
}

func (c *Collection) propfind(ctx context.Context, depth string, props ...string) ([]*Properties, error) {
	op := "propfind " + c.URL()

	resp, err := c.sdk.client.R().
		SetContext(ctx).
		SetHeader(HeaderDepth, depth).
		SetHeader(HeaderContentType, contentTypeXML).
		SetBodyBytes(propfindBody(props...)).
		Send(methodPropfind, c.URL())
	if err := handleDavError(resp, err, op); err != nil {
		return nil, err
	}

	if resp.GetStatusCode() != http.StatusMultiStatus {
		return nil, &DavError{Op: op, Message: fmt.Sprintf("expected 207 multi-status, got %s", resp.GetStatus())}
	}

	return parseMultistatus(resp.Bytes(), op)
}

func applyPrecondition(r *req.Request, cond Precondition) {
	if cond.IfNoneMatch {
		r.SetHeader(HeaderIfNoneMatch, "*")
		return
	}
	if cond.IfMatch != "" {
		r.SetHeader(HeaderIfMatch, QuoteETag(cond.IfMatch))
	}
}

// writeOutcome recognizes the statuses that are outcomes rather than faults.
func writeOutcome(resp *req.Response, err error) (*WriteResult, bool) {
	if err != nil || resp == nil || resp.Response == nil {
		return nil, false
	}
	switch resp.GetStatusCode() {
	case http.StatusPreconditionFailed:
		return &WriteResult{Outcome: PreconditionFailed}, true
	case http.StatusConflict:
		return &WriteResult{Outcome: Conflict}, true
	}
	return nil, false
}

// lastSegment is the unescaped last segment of the escaped path, so an
// escaped "/" stays part of the name.
func lastSegment(u *url.URL) string {
	p := strings.TrimSuffix(u.EscapedPath(), "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	if name, err := url.PathUnescape(p); err == nil {
		return name
	}
	return p
}
