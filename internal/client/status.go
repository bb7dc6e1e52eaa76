package client

import (
	"github.com/openmined/davsync/internal/client/notify"
	"github.com/openmined/davsync/internal/client/sync"
	"github.com/openmined/davsync/internal/localstore"
)

// CollectionStatus is what the status command shows per collection.
type CollectionStatus struct {
	Info         *localstore.CollectionInfo
	Stats        *localstore.Stats
	Notification *sync.Notification
}

// Status reports every collection known to the replica and its outstanding
// notification, if any.
func Status(store *localstore.Store, notices *notify.Store) ([]*CollectionStatus, error) {
	infos, err := store.Collections()
	if err != nil {
		return nil, err
	}
	list, err := notices.List()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*sync.Notification, len(list))
	for _, n := range list {
		byID[n.CollectionID] = n
	}

	out := make([]*CollectionStatus, 0, len(infos))
	for _, info := range infos {
		coll, err := store.Collection(info.ID, info.URL, info.Kind, "")
		if err != nil {
			return nil, err
		}
		stats, err := coll.Stats()
		if err != nil {
			return nil, err
		}
		out = append(out, &CollectionStatus{Info: info, Stats: stats, Notification: byID[info.ID]})
	}
	return out, nil
}
