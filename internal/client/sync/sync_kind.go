package sync

import (
	"context"

	"github.com/openmined/davsync/internal/davsdk"
)

// RemoteCollection is the transport view of the remote collection the core needs.
// *davsdk.Collection implements it.
type RemoteCollection interface {
	URL() string
	MemberURL(fileName string) string
	CTag(ctx context.Context) (string, error)
	Put(ctx context.Context, fileName string, body []byte, contentType string, cond davsdk.Precondition) (*davsdk.WriteResult, error)
	Delete(ctx context.Context, fileName string, ifMatch string) (*davsdk.WriteResult, error)
}

// Payload is a serialized local resource ready for upload.
type Payload struct {
	Body        []byte
	ContentType string
}

// Kind is the capability set of one record kind (address book, calendar, ...).
// It is injected into the shared pipeline and supplies the phases that differ
// per record format.
type Kind interface {
	// Name identifies the kind in logs and notifications.
	Name() string
	// SyncErrorTitle is the notification title for failed cycles.
	SyncErrorTitle() string

	// Prepare returns false if the cycle should be skipped.
	Prepare(ctx context.Context) (bool, error)
	QueryCapabilities(ctx context.Context) error
	PrepareUpload(resource LocalResource) (*Payload, error)
	// ListRemote returns the remote members keyed by file name.
	ListRemote(ctx context.Context) (map[string]*RemoteResource, error)
	// DownloadRemote fetches and stores every member of set, keyed by file
	// name. It must return promptly once ctx is cancelled and keep diag
	// pointing at the resource being processed. It returns the number of
	// stored resources.
	DownloadRemote(ctx context.Context, set *DownloadSet, diag *Diagnostics) (int, error)
	PostProcess(ctx context.Context) error
}

// BaseKind provides the optional no-op phases. Embed it in a Kind.
type BaseKind struct{}

func (BaseKind) Prepare(context.Context) (bool, error)   { return true, nil }
func (BaseKind) QueryCapabilities(context.Context) error { return nil }
func (BaseKind) PostProcess(context.Context) error       { return nil }
