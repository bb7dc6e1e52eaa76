package sync

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/openmined/davsync/internal/davsdk"
	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	coll     *fakeLocal
	id       int64
	fileName string
	eTag     string
	dirty    bool
	deleted  bool
	body     string
}

func (r *fakeResource) ID() int64        { return r.id }
func (r *fakeResource) FileName() string { return r.fileName }
func (r *fakeResource) ETag() string     { return r.eTag }
func (r *fakeResource) String() string   { return fmt.Sprintf("#%d %s", r.id, r.fileName) }

func (r *fakeResource) Delete() error {
	if r.coll.failDelete != nil {
		return r.coll.failDelete
	}
	delete(r.coll.resources, r.id)
	return nil
}

func (r *fakeResource) PrepareForUpload() error {
	if r.fileName == "" {
		r.fileName = fmt.Sprintf("res-%d.vcf", r.id)
	}
	return nil
}

func (r *fakeResource) ClearDirty(eTag string) error {
	r.dirty = false
	r.eTag = eTag
	return nil
}

type fakeLocal struct {
	resources  map[int64]*fakeResource
	nextID     int64
	cTag       string
	setCTags   int
	failDirty  error
	failDelete error
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{resources: make(map[int64]*fakeResource)}
}

func (l *fakeLocal) add(fileName, eTag string, dirty bool) *fakeResource {
	l.nextID++
	r := &fakeResource{coll: l, id: l.nextID, fileName: fileName, eTag: eTag, dirty: dirty}
	l.resources[r.id] = r
	return r
}

func (l *fakeLocal) byFileName(fileName string) *fakeResource {
	for _, r := range l.resources {
		if r.fileName == fileName {
			return r
		}
	}
	return nil
}

func (l *fakeLocal) filter(fn func(*fakeResource) bool) []LocalResource {
	ids := make([]int64, 0, len(l.resources))
	for id := range l.resources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []LocalResource
	for _, id := range ids {
		if r := l.resources[id]; fn(r) {
			out = append(out, r)
		}
	}
	return out
}

func (l *fakeLocal) Deleted() ([]LocalResource, error) {
	return l.filter(func(r *fakeResource) bool { return r.deleted }), nil
}

func (l *fakeLocal) WithoutFileName() ([]LocalResource, error) {
	return l.filter(func(r *fakeResource) bool { return !r.deleted && r.fileName == "" }), nil
}

func (l *fakeLocal) Dirty() ([]LocalResource, error) {
	if l.failDirty != nil {
		return nil, l.failDirty
	}
	return l.filter(func(r *fakeResource) bool { return !r.deleted && r.dirty }), nil
}

func (l *fakeLocal) All() ([]LocalResource, error) {
	return l.filter(func(r *fakeResource) bool { return !r.deleted }), nil
}

func (l *fakeLocal) CTag() (string, error) { return l.cTag, nil }

func (l *fakeLocal) SetCTag(cTag string) error {
	l.cTag = cTag
	l.setCTags++
	return nil
}

type fakePut struct {
	fileName string
	cond     davsdk.Precondition
}

type fakeDelete struct {
	fileName string
	ifMatch  string
}

type fakeRemote struct {
	url     string
	members map[string]string // file name -> ETag
	cTag    string
	cTagErr error
	nextTag int

	puts    []fakePut
	deletes []fakeDelete

	putOutcome    map[string]davsdk.WriteOutcome
	putErr        error
	deleteOutcome davsdk.WriteOutcome
	deleteErr     error
	noETagOnPut   bool
	onPut         func(fileName string)
	onDelete      func(fileName string)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		url:        "https://dav.example.com/addressbooks/alice/default/",
		members:    make(map[string]string),
		putOutcome: make(map[string]davsdk.WriteOutcome),
		nextTag:    100,
	}
}

func (r *fakeRemote) URL() string { return r.url }

func (r *fakeRemote) MemberURL(fileName string) string { return r.url + fileName }

func (r *fakeRemote) CTag(context.Context) (string, error) {
	return r.cTag, r.cTagErr
}

func (r *fakeRemote) Put(ctx context.Context, fileName string, body []byte, contentType string, cond davsdk.Precondition) (*davsdk.WriteResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	r.puts = append(r.puts, fakePut{fileName: fileName, cond: cond})
	if r.onPut != nil {
		r.onPut(fileName)
	}
	if r.putErr != nil {
		return nil, r.putErr
	}
	if outcome, ok := r.putOutcome[fileName]; ok {
		return &davsdk.WriteResult{Outcome: outcome}, nil
	}

	r.nextTag++
	eTag := fmt.Sprintf("%d", r.nextTag)
	r.members[fileName] = eTag
	if r.noETagOnPut {
		eTag = ""
	}
	return &davsdk.WriteResult{Outcome: davsdk.Written, ETag: eTag}, nil
}

func (r *fakeRemote) Delete(ctx context.Context, fileName string, ifMatch string) (*davsdk.WriteResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	r.deletes = append(r.deletes, fakeDelete{fileName: fileName, ifMatch: ifMatch})
	if r.onDelete != nil {
		r.onDelete(fileName)
	}
	if r.deleteErr != nil {
		return nil, r.deleteErr
	}
	if r.deleteOutcome != davsdk.Written {
		return &davsdk.WriteResult{Outcome: r.deleteOutcome}, nil
	}
	delete(r.members, fileName)
	return &davsdk.WriteResult{Outcome: davsdk.Written}, nil
}

type fakeKind struct {
	BaseKind
	remote *fakeRemote
	local  *fakeLocal

	skip       bool
	listCalls  int
	downloaded []string
	onDownload func(fileName string)
	postCalls  int
}

func (k *fakeKind) Name() string           { return "test" }
func (k *fakeKind) SyncErrorTitle() string { return "Test sync failed" }

func (k *fakeKind) Prepare(context.Context) (bool, error) { return !k.skip, nil }

func (k *fakeKind) PrepareUpload(resource LocalResource) (*Payload, error) {
	return &Payload{Body: []byte("BEGIN:VCARD\r\nEND:VCARD\r\n"), ContentType: "text/vcard"}, nil
}

func (k *fakeKind) ListRemote(context.Context) (map[string]*RemoteResource, error) {
	k.listCalls++
	out := make(map[string]*RemoteResource, len(k.remote.members))
	for fileName, eTag := range k.remote.members {
		out[fileName] = &RemoteResource{URL: k.remote.MemberURL(fileName), FileName: fileName, ETag: eTag}
	}
	return out, nil
}

func (k *fakeKind) DownloadRemote(ctx context.Context, set *DownloadSet, diag *Diagnostics) (int, error) {
	n := 0
	for _, remote := range set.Resources() {
		if ctx.Err() != nil {
			return n, nil
		}
		diag.SetRemote(remote.URL)
		k.downloaded = append(k.downloaded, remote.FileName)
		if k.onDownload != nil {
			k.onDownload(remote.FileName)
		}
		if local := k.local.byFileName(remote.FileName); local != nil {
			local.eTag = remote.ETag
		} else {
			k.local.add(remote.FileName, remote.ETag, false)
		}
		n++
	}
	return n, nil
}

func (k *fakeKind) PostProcess(context.Context) error {
	k.postCalls++
	return nil
}

type fakeNotifier struct {
	dismissed     []string
	notifications []*Notification
}

func (n *fakeNotifier) Dismiss(collectionID string) error {
	n.dismissed = append(n.dismissed, collectionID)
	return nil
}

func (n *fakeNotifier) Notify(notification *Notification) error {
	n.notifications = append(n.notifications, notification)
	return nil
}

type fixture struct {
	local    *fakeLocal
	remote   *fakeRemote
	kind     *fakeKind
	notifier *fakeNotifier
	now      time.Time
}

func newFixture() *fixture {
	local := newFakeLocal()
	remote := newFakeRemote()
	return &fixture{
		local:    local,
		remote:   remote,
		kind:     &fakeKind{remote: remote, local: local},
		notifier: &fakeNotifier{},
		now:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) manager(t *testing.T, manual bool) *SyncManager {
	t.Helper()
	m, err := NewSyncManager(Options{
		CollectionID: "alice/contacts",
		Account:      "alice",
		Local:        f.local,
		Remote:       f.remote,
		Kind:         f.kind,
		Notifier:     f.notifier,
		Manual:       manual,
		Now:          func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return m
}
