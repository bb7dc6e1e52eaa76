package sync

import (
	"context"
	"fmt"
)

// listLocal indexes the local resources by file name. Resources without a file
// name can't have a remote counterpart yet.
func (c *cycle) listLocal() error {
	all, err := c.local.All()
	if err != nil {
		return err
	}

	c.localResources = make(map[string]LocalResource, len(all))
	for _, local := range all {
		if fileName := local.FileName(); fileName != "" {
			c.localResources[fileName] = local
		}
	}
	c.log.Info("found local resources", "count", len(c.localResources))
	return nil
}

func (c *cycle) listRemote(ctx context.Context) error {
	c.diag.SetRemote(c.remote.URL())
	remote, err := c.kind.ListRemote(requestContext(ctx))
	if err != nil {
		return err
	}
	if remote == nil {
		remote = make(map[string]*RemoteResource)
	}
	c.remoteResources = remote
	c.diag.Clear()
	c.log.Info("found remote resources", "count", len(c.remoteResources))
	return nil
}

// compareLocalRemote fills the download set. Local resources gone from the
// server are removed locally; remote resources without a local counterpart are
// downloaded in full.
func (c *cycle) compareLocalRemote() error {
	for fileName, local := range c.localResources {
		c.diag.SetLocal(local)

		remote, ok := c.remoteResources[fileName]
		if !ok {
			c.log.Info("not on server anymore, deleting locally", "file", fileName)
			if err := local.Delete(); err != nil {
				return err
			}
			c.result.NumDeletes++
			continue
		}
		c.diag.SetRemote(remote.URL)

		if remote.ETag == "" {
			return fmt.Errorf("compare %s: %w", fileName, ErrMissingETag)
		}

		localETag := local.ETag()
		if localETag == remote.ETag {
			c.log.Debug("unchanged", "file", fileName, "etag", localETag)
			c.result.NumSkipped++
		} else {
			c.log.Debug("changed on server", "file", fileName, "localETag", localETag, "remoteETag", remote.ETag)
			c.downloads.Add(remote)
		}

		// remote entries left over afterwards are new
		delete(c.remoteResources, fileName)
	}
	c.diag.Clear()

	for fileName, remote := range c.remoteResources {
		c.log.Debug("new on server", "file", fileName)
		c.downloads.Add(remote)
	}

	c.log.Info("resources to download", "count", c.downloads.Len())
	return nil
}
