package sync

import (
	"context"
)

// checkSyncState reports whether the remote collection may have changed since
// the last successful cycle. Servers without CTag support are always compared.
func (c *cycle) checkSyncState(ctx context.Context) (bool, error) {
	c.diag.SetRemote(c.remote.URL())
	remoteCTag, err := c.remote.CTag(requestContext(ctx))
	if err != nil {
		return false, err
	}
	c.remoteCTag = remoteCTag
	c.diag.Clear()

	if c.manual {
		c.log.Info("manual sync, ignoring CTag")
		return true, nil
	}

	localCTag, err := c.local.CTag()
	if err != nil {
		return false, err
	}
	if remoteCTag != "" && remoteCTag == localCTag {
		return false, nil
	}
	c.log.Debug("sync state", "localCTag", localCTag, "remoteCTag", remoteCTag)
	return true, nil
}

// saveSyncState stores the CTag seen in checkSyncState. If the collection
// changed again in between, the next cycle just lists it once more.
func (c *cycle) saveSyncState() error {
	c.log.Info("saving CTag", "ctag", c.remoteCTag)
	return c.local.SetCTag(c.remoteCTag)
}
