package internal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// fakeListings serves newest-first listings whose ids the test controls.
type fakeListings struct {
	mu       sync.Mutex
	posts    []string
	comments []string
	fail     bool
	calls    map[string]int
	// during runs once, while the next request is in flight.
	during func()
}

func (f *fakeListings) set(posts, comments []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = posts
	f.comments = comments
}

func (f *fakeListings) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeListings) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeListings) duringNextRequest(fn func()) {
	f.mu.Lock()
	f.during = fn
	f.mu.Unlock()
}

// Do serves the listings. An id starting with "{" is served verbatim as the item.
func (f *fakeListings) Do(_ context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	during := f.during
	f.during = nil
	f.mu.Unlock()
	if during != nil {
		during()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[req.Path]++

	if req.Query.Get("sort") != types.SortNew {
		return jsonResponse(http.StatusBadRequest, `{"error":"bad sort"}`), nil
	}
	if f.fail {
		return jsonResponse(http.StatusServiceUnavailable, `{"error":"busy"}`), nil
	}

	var items []string
	switch req.Path {
	case postListingPath:
		for _, id := range f.posts {
			if strings.HasPrefix(id, "{") {
				items = append(items, id)
				continue
			}
			items = append(items, fmt.Sprintf(`{"id":%q,"title":"post %s","author":"alice","guild":"general"}`, id, id))
		}
	case commentListingPath:
		for _, id := range f.comments {
			if strings.HasPrefix(id, "{") {
				items = append(items, id)
				continue
			}
			items = append(items, fmt.Sprintf(`{"id":%q,"body":"comment %s","parent":"t2_p1"}`, id, id))
		}
	default:
		return jsonResponse(http.StatusNotFound, `{}`), nil
	}
	return jsonResponse(http.StatusOK, fmt.Sprintf(`{"data":[%s],"next_exists":false}`, strings.Join(items, ","))), nil
}

func newTestPoller(t *testing.T, scopes string) (*Poller, *Emitter, *fakeListings) {
	t.Helper()

	store := NewCredentialStore("id", "secret", "")
	store.Apply(GrantResult{AccessToken: "token", ExpiresAt: time.Now().Add(time.Hour), Scopes: types.ParseScopes(scopes)})

	listings := &fakeListings{}
	caller := NewCaller(listings, store, NewConnectionManager(), nil, nil)
	emitter := NewEmitter(nil, nil)
	poller := NewPoller(caller, NewParser(""), emitter, NewGate(store), 0, nil, nil)
	return poller, emitter, listings
}

func collectIDs(emitter *Emitter, kind types.EventKind) *[]string {
	var ids []string
	emitter.Subscribe(kind, func(ev types.Event) {
		ids = append(ids, eventItemID(ev))
	})
	return &ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPoller_PrimingPollEmitsNothing(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")
	got := collectIDs(emitter, types.EventPost)

	listings.set([]string{"3", "2", "1"}, nil)
	poller.RunOnce(context.Background())

	if len(*got) != 0 {
		t.Errorf("priming poll emitted %v", *got)
	}
	cache := poller.Cache(types.EventPost)
	if cache.Len() != 3 || cache.PollCount() != 1 {
		t.Errorf("cache len=%d polls=%d, want 3 and 1", cache.Len(), cache.PollCount())
	}
}

func TestPoller_EmitsOnlyNewItemsInServerOrder(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")
	got := collectIDs(emitter, types.EventPost)

	listings.set([]string{"3", "2", "1"}, nil)
	poller.RunOnce(context.Background())

	listings.set([]string{"4", "3", "2", "1"}, nil)
	poller.RunOnce(context.Background())
	if !equalIDs(*got, []string{"4"}) {
		t.Fatalf("emitted %v, want [4]", *got)
	}

	listings.set([]string{"6", "5", "4", "3"}, nil)
	poller.RunOnce(context.Background())
	if !equalIDs(*got, []string{"4", "6", "5"}) {
		t.Errorf("emitted %v, want [4 6 5]", *got)
	}
}

func TestPoller_AtMostOnce(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")
	got := collectIDs(emitter, types.EventComment)

	listings.set(nil, []string{"a"})
	poller.RunOnce(context.Background())

	listings.set(nil, []string{"b", "a"})
	for i := 0; i < 3; i++ {
		poller.RunOnce(context.Background())
	}

	if !equalIDs(*got, []string{"b"}) {
		t.Errorf("emitted %v, want [b]", *got)
	}
}

func TestPoller_EventCarriesFormattedItem(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")

	var events []types.Event
	emitter.Subscribe(types.EventComment, func(ev types.Event) { events = append(events, ev) })

	poller.RunOnce(context.Background())
	listings.set(nil, []string{"c9"})
	poller.RunOnce(context.Background())

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	c := events[0].Comment
	if c == nil || c.ID != "c9" || c.Fullname != "t3_c9" {
		t.Errorf("unexpected comment %+v", c)
	}
	if c.Parent.Post != "p1" {
		t.Errorf("parent post = %q, want p1", c.Parent.Post)
	}
}

func TestPoller_SkipsKindsWithoutSubscribers(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")
	collectIDs(emitter, types.EventPost)

	poller.RunOnce(context.Background())

	if listings.count(postListingPath) != 1 {
		t.Errorf("post listing polled %d times, want 1", listings.count(postListingPath))
	}
	if listings.count(commentListingPath) != 0 {
		t.Error("comment listing polled without subscribers")
	}
}

func TestPoller_SkipsWithoutReadScope(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "identity")
	collectIDs(emitter, types.EventPost)
	collectIDs(emitter, types.EventComment)

	poller.RunOnce(context.Background())

	if listings.count(postListingPath)+listings.count(commentListingPath) != 0 {
		t.Error("listings were polled without the read scope")
	}
	if poller.Cache(types.EventPost).PollCount() != 0 {
		t.Error("skipped poll must not count")
	}
}

func TestPoller_FailedPollLeavesCacheUntouched(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")
	got := collectIDs(emitter, types.EventPost)

	listings.set([]string{"1"}, nil)
	poller.RunOnce(context.Background())

	listings.setFail(true)
	listings.set([]string{"2", "1"}, nil)
	poller.RunOnce(context.Background())

	cache := poller.Cache(types.EventPost)
	if cache.PollCount() != 1 || cache.Seen("2") {
		t.Fatalf("failed poll changed the cache: polls=%d seen(2)=%v", cache.PollCount(), cache.Seen("2"))
	}

	listings.setFail(false)
	poller.RunOnce(context.Background())
	if !equalIDs(*got, []string{"2"}) {
		t.Errorf("emitted %v, want [2]", *got)
	}
}

func TestPoller_ResubscribeResetsPriming(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")

	var first []string
	unsubscribe := emitter.Subscribe(types.EventPost, func(ev types.Event) { first = append(first, ev.Post.ID) })

	listings.set([]string{"1"}, nil)
	poller.RunOnce(context.Background())
	unsubscribe()

	listings.set([]string{"3", "2", "1"}, nil)
	poller.RunOnce(context.Background())

	got := collectIDs(emitter, types.EventPost)
	if poller.Cache(types.EventPost).Primed() {
		t.Fatal("first subscriber should reset priming")
	}

	poller.RunOnce(context.Background())
	if len(*got) != 0 || len(first) != 0 {
		t.Fatalf("priming poll after re-subscribe emitted %v / %v", *got, first)
	}

	listings.set([]string{"4", "3", "2", "1"}, nil)
	poller.RunOnce(context.Background())
	if !equalIDs(*got, []string{"4"}) {
		t.Errorf("emitted %v, want [4]", *got)
	}
}

func TestPoller_StartStopsOnCancel(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")
	collectIDs(emitter, types.EventPost)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for listings.count(postListingPath) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}
	if listings.count(postListingPath) < 2 {
		t.Errorf("expected repeated polls, got %d", listings.count(postListingPath))
	}
}

func TestPoller_UnreadableItemDoesNotStallTheFeed(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")
	got := collectIDs(emitter, types.EventPost)

	listings.set([]string{"3", "2", "1"}, nil)
	poller.RunOnce(context.Background())

	// Item 2 changed shape and no longer formats; 5 is new and unreadable too.
	listings.set([]string{"4", `{"id":"5","score":"twelve"}`, "3", `{"id":"2","score":"12"}`, "1"}, nil)
	for i := 0; i < 3; i++ {
		poller.RunOnce(context.Background())
	}

	if !equalIDs(*got, []string{"4"}) {
		t.Errorf("emitted %v, want [4]", *got)
	}
	cache := poller.Cache(types.EventPost)
	if cache.PollCount() != 4 {
		t.Errorf("poll count = %d, want 4", cache.PollCount())
	}
	if !cache.Seen("4") || !cache.Seen("5") {
		t.Error("new ids should be remembered whether or not they format")
	}
}

func TestPoller_SkipsItemsWithoutUsableID(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")
	got := collectIDs(emitter, types.EventComment)

	poller.RunOnce(context.Background())
	listings.set(nil, []string{`{"body":"no id"}`, `{"id":42}`, `{"id":""}`, "c1"})
	poller.RunOnce(context.Background())

	if !equalIDs(*got, []string{"c1"}) {
		t.Errorf("emitted %v, want [c1]", *got)
	}
	if n := poller.Cache(types.EventComment).Len(); n != 1 {
		t.Errorf("cache holds %d ids, want 1", n)
	}
}

func TestPoller_ResubscribeDuringPollStillPrimes(t *testing.T) {
	poller, emitter, listings := newTestPoller(t, "read")

	unsubscribe := emitter.Subscribe(types.EventComment, func(types.Event) {})
	listings.set(nil, []string{"a"})
	poller.RunOnce(context.Background())

	var got *[]string
	listings.set(nil, []string{"b", "a"})
	listings.duringNextRequest(func() {
		unsubscribe()
		got = collectIDs(emitter, types.EventComment)
	})
	poller.RunOnce(context.Background())

	cache := poller.Cache(types.EventComment)
	if cache.Primed() {
		t.Fatal("a poll overlapping the re-subscription must not count as priming")
	}
	*got = nil

	listings.set(nil, []string{"c", "b", "a"})
	poller.RunOnce(context.Background())
	if len(*got) != 0 {
		t.Fatalf("priming poll emitted %v", *got)
	}

	listings.set(nil, []string{"d", "c", "b", "a"})
	poller.RunOnce(context.Background())
	if !equalIDs(*got, []string{"d"}) {
		t.Errorf("emitted %v, want [d]", *got)
	}
}
