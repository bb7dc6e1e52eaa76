package sync

import (
	"context"
	"errors"

	"github.com/openmined/davsync/internal/davsdk"
)

// processLocallyDeleted removes locally deleted entries from the server, as
// long as they weren't changed there, and then drops the local tombstones.
// Entries without a file name never reached the server.
func (c *cycle) processLocallyDeleted(ctx context.Context) error {
	deleted, err := c.local.Deleted()
	if err != nil {
		return err
	}

	for _, local := range deleted {
		if cancelled(ctx) {
			return nil
		}
		c.diag.SetLocal(local)

		if fileName := local.FileName(); fileName != "" {
			c.diag.SetRemote(c.remote.MemberURL(fileName))
			c.log.Info("deleted locally, deleting from server", "file", fileName)
			if err := c.deleteRemote(ctx, local); err != nil {
				return err
			}
		} else {
			c.log.Info("removing local record which was never uploaded", "id", local.ID())
		}

		if err := local.Delete(); err != nil {
			return err
		}
		c.result.NumDeletes++
		c.diag.Clear()
	}
	return nil
}

// deleteRemote issues the conditional DELETE. Divergences (changed or already
// gone on the server, rejected by the server) are logged and ignored; the entry
// may be downloaded again by a later cycle.
//
// 401 and 503 are not HTTPErrors here: they say nothing about the resource,
// so like transport faults they abort the cycle and keep the tombstone for
// the next one.
func (c *cycle) deleteRemote(ctx context.Context, local LocalResource) error {
	res, err := c.remote.Delete(requestContext(ctx), local.FileName(), local.ETag())

	var httpErr *davsdk.HTTPError
	switch {
	case errors.As(err, &httpErr):
		c.log.Warn("couldn't delete from server, ignoring", "file", local.FileName(), "status", httpErr.StatusCode)
		return nil
	case err != nil:
		return err
	case res.Outcome != davsdk.Written:
		c.log.Info("couldn't delete from server, ignoring", "file", local.FileName(), "outcome", res.Outcome)
	}
	return nil
}
