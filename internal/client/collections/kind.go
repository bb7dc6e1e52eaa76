package collections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/openmined/davsync/internal/client/sync"
	"github.com/openmined/davsync/internal/davsdk"
	"github.com/openmined/davsync/internal/localstore"
)

// Remote is the part of *davsdk.Collection a DavKind needs.
type Remote interface {
	sync.RemoteCollection
	Options(ctx context.Context) (*davsdk.Capabilities, error)
	Members(ctx context.Context) ([]*davsdk.Member, error)
	Get(ctx context.Context, fileName string) (*davsdk.Entity, error)
}

// Local is the part of *localstore.Collection a DavKind needs.
type Local interface {
	Upsert(fileName, uid, eTag, content string) error
}

// DavKind syncs one collection of vCards or iCalendar objects.
type DavKind struct {
	sync.BaseKind

	format Format
	remote Remote
	local  Local
	log    *slog.Logger
}

var _ sync.Kind = (*DavKind)(nil)

func New(format Format, remote Remote, local Local) *DavKind {
	return &DavKind{
		format: format,
		remote: remote,
		local:  local,
		log:    slog.With("kind", format.Kind, "url", remote.URL()),
	}
}

func NewAddressBook(remote Remote, local Local) *DavKind {
	return New(AddressBookFormat, remote, local)
}

func NewCalendar(remote Remote, local Local) *DavKind {
	return New(CalendarFormat, remote, local)
}

func (k *DavKind) Name() string           { return k.format.Kind }
func (k *DavKind) SyncErrorTitle() string { return k.format.ErrorTitle }
func (k *DavKind) Format() Format         { return k.format }

// QueryCapabilities probes the server with OPTIONS. Servers which don't
// announce the DAV class or refuse OPTIONS are still synced.
func (k *DavKind) QueryCapabilities(ctx context.Context) error {
	caps, err := k.remote.Options(ctx)

	var httpErr *davsdk.HTTPError
	if errors.As(err, &httpErr) {
		k.log.Warn("OPTIONS not supported", "status", httpErr.StatusCode)
		return nil
	}
	if err != nil {
		return err
	}

	if !caps.HasClass(k.format.DavClass) {
		k.log.Warn("server doesn't announce DAV class", "class", k.format.DavClass, "classes", caps.Classes)
	}
	for _, method := range []string{"PROPFIND", "PUT", "DELETE"} {
		if !caps.Allows(method) {
			k.log.Warn("server doesn't allow method", "method", method)
		}
	}
	return nil
}

// PrepareUpload serializes a local record. A UID matching the file name is
// added if the record has none.
func (k *DavKind) PrepareUpload(resource sync.LocalResource) (*sync.Payload, error) {
	r, ok := resource.(*localstore.Resource)
	if !ok {
		return nil, fmt.Errorf("prepare upload: unsupported resource %T", resource)
	}

	uid := r.UID
	if uid == "" {
		uid = strings.TrimSuffix(r.FileName(), k.format.FileExt)
	}
	body, err := k.format.EnsureUID(r.Content, uid)
	if err != nil {
		return nil, fmt.Errorf("prepare upload %s: %w", r, err)
	}

	return &sync.Payload{
		Body:        []byte(body),
		ContentType: k.format.ContentType + "; charset=utf-8",
	}, nil
}

// ListRemote lists the members of the collection. Members announcing a
// foreign content type are ignored.
func (k *DavKind) ListRemote(ctx context.Context) (map[string]*sync.RemoteResource, error) {
	members, err := k.remote.Members(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*sync.RemoteResource, len(members))
	for _, m := range members {
		if m.FileName == "" {
			continue
		}
		if !k.accepts(m.ContentType) {
			k.log.Debug("ignoring member", "file", m.FileName, "contentType", m.ContentType)
			continue
		}
		out[m.FileName] = &sync.RemoteResource{
			URL:         m.URL,
			FileName:    m.FileName,
			ETag:        m.ETag,
			ContentType: m.ContentType,
		}
	}
	return out, nil
}

// DownloadRemote GETs every member of the set and stores it. Cancellation is
// checked before every request.
func (k *DavKind) DownloadRemote(ctx context.Context, set *sync.DownloadSet, diag *sync.Diagnostics) (int, error) {
	n := 0
	for _, remote := range set.Resources() {
		if ctx.Err() != nil {
			return n, nil
		}
		diag.SetRemote(remote.URL)

		entity, err := k.remote.Get(context.WithoutCancel(ctx), remote.FileName)
		if err != nil {
			return n, err
		}

		eTag := entity.ETag
		if eTag == "" {
			eTag = remote.ETag
		}
		if eTag == "" {
			return n, fmt.Errorf("download %s: %w", remote.FileName, sync.ErrMissingETag)
		}

		content := string(entity.Body)
		if err := k.format.Validate(content); err != nil {
			return n, fmt.Errorf("download %s: %w", remote.FileName, err)
		}

		k.log.Debug("downloaded", "file", remote.FileName, "etag", eTag)
		if err := k.local.Upsert(remote.FileName, k.format.UID(content), eTag, content); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (k *DavKind) accepts(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	return strings.EqualFold(mediaType, k.format.ContentType)
}
