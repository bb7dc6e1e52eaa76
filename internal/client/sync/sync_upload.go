package sync

import (
	"context"
	"fmt"

	"github.com/openmined/davsync/internal/davsdk"
)

// prepareDirty assigns file names (and UIDs) to resources which don't have one
// yet so they can be addressed on the server.
func (c *cycle) prepareDirty() error {
	c.log.Debug("looking for resources without file name")

	resources, err := c.local.WithoutFileName()
	if err != nil {
		return err
	}
	for _, local := range resources {
		c.diag.SetLocal(local)
		c.log.Debug("generating file name", "id", local.ID())
		if err := local.PrepareForUpload(); err != nil {
			return err
		}
	}
	c.diag.Clear()
	return nil
}

// uploadDirty PUTs every dirty resource. New resources are guarded with
// If-None-Match: *, known ones with If-Match. Conflicts are resolved in favour
// of the server: the local change is dropped and the next compare downloads
// the server version.
func (c *cycle) uploadDirty(ctx context.Context) error {
	dirty, err := c.local.Dirty()
	if err != nil {
		return err
	}

	for _, local := range dirty {
		if cancelled(ctx) {
			return nil
		}
		if err := c.upload(ctx, local); err != nil {
			return err
		}
		c.diag.Clear()
	}
	return nil
}

func (c *cycle) upload(ctx context.Context, local LocalResource) error {
	c.diag.SetLocal(local)

	fileName := local.FileName()
	if fileName == "" {
		return fmt.Errorf("upload #%d: %w", local.ID(), ErrNoFileName)
	}
	c.diag.SetRemote(c.remote.MemberURL(fileName))

	payload, err := c.kind.PrepareUpload(local)
	if err != nil {
		return err
	}

	var cond davsdk.Precondition
	if eTag := local.ETag(); eTag == "" {
		c.log.Info("uploading new record", "file", fileName)
		cond = davsdk.IfNoneExist()
	} else {
		c.log.Info("uploading locally modified record", "file", fileName, "etag", eTag)
		cond = davsdk.IfMatch(eTag)
	}

	res, err := c.remote.Put(requestContext(ctx), fileName, payload.Body, payload.ContentType, cond)
	if err != nil {
		return err
	}

	var newETag string
	switch res.Outcome {
	case davsdk.Written:
		c.result.NumUploads++
		newETag = res.ETag
		if newETag == "" {
			c.log.Debug("didn't receive new ETag after uploading", "file", fileName)
		}
	case davsdk.Conflict:
		c.result.NumConflicts++
		c.log.Info("edit conflict, ignoring", "file", fileName)
	default:
		c.result.NumConflicts++
		c.log.Info("resource has been modified on the server before upload, ignoring", "file", fileName, "outcome", res.Outcome)
	}

	return local.ClearDirty(newETag)
}
