package sync

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// LocalResource is one record of the local replica.
//
// FileName is empty until the resource was prepared for upload; once set it is
// the join key with the remote side. ETag is the last known remote version tag
// and is empty when unknown. A resource without a file name never has an ETag.
type LocalResource interface {
	ID() int64
	FileName() string
	ETag() string

	// Delete removes the record (or its tombstone) from the local store.
	Delete() error
	// PrepareForUpload assigns a file name and any stable identifier the
	// record format needs. It is a no-op for resources that already have one.
	PrepareForUpload() error
	// ClearDirty resets the dirty flag and stores eTag ("" = unknown).
	ClearDirty(eTag string) error

	String() string
}

// LocalCollection is the local replica of one remote collection.
type LocalCollection interface {
	Deleted() ([]LocalResource, error)
	WithoutFileName() ([]LocalResource, error)
	Dirty() ([]LocalResource, error)
	All() ([]LocalResource, error)

	// CTag is the remote collection tag stored after the last complete cycle.
	CTag() (string, error)
	SetCTag(cTag string) error
}

// RemoteResource is a member of the remote collection.
type RemoteResource struct {
	URL         string
	FileName    string
	ETag        string
	ContentType string
}

func (r *RemoteResource) String() string {
	return r.URL
}

// DownloadSet is the set of remote resources to fetch in the current cycle.
// File names are unique: adding a resource replaces a member with the same
// file name.
type DownloadSet struct {
	members mapset.Set[*RemoteResource]
}

func NewDownloadSet() *DownloadSet {
	return &DownloadSet{members: mapset.NewThreadUnsafeSet[*RemoteResource]()}
}

func (d *DownloadSet) Add(r *RemoteResource) {
	if old := d.find(r.FileName); old != nil {
		d.members.Remove(old)
	}
	d.members.Add(r)
}

func (d *DownloadSet) Contains(fileName string) bool {
	return d.find(fileName) != nil
}

func (d *DownloadSet) Len() int {
	return d.members.Cardinality()
}

// FileNames returns the members' file names in lexical order.
func (d *DownloadSet) FileNames() []string {
	resources := d.Resources()
	names := make([]string, len(resources))
	for i, r := range resources {
		names[i] = r.FileName
	}
	return names
}

// Resources returns the members ordered by file name.
func (d *DownloadSet) Resources() []*RemoteResource {
	out := d.members.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

func (d *DownloadSet) find(fileName string) *RemoteResource {
	var found *RemoteResource
	d.members.Each(func(r *RemoteResource) bool {
		if r.FileName == fileName {
			found = r
			return true
		}
		return false
	})
	return found
}
