package internal

import (
	"testing"

	"github.com/google/uuid"

	"github.com/jamesprial/go-ruqqus/pkg/types"
)

func TestEmitter_DeliversInOrder(t *testing.T) {
	e := NewEmitter(nil, nil)

	var got []string
	e.Subscribe(types.EventPost, func(ev types.Event) { got = append(got, "first:"+ev.Post.ID) })
	e.Subscribe(types.EventPost, func(ev types.Event) { got = append(got, "second:"+ev.Post.ID) })
	e.Subscribe(types.EventComment, func(ev types.Event) { got = append(got, "comment") })

	e.Emit(types.Event{Kind: types.EventPost, Post: &types.Post{ThingData: types.ThingData{ID: "a"}}})
	e.Emit(types.Event{Kind: types.EventPost, Post: &types.Post{ThingData: types.ThingData{ID: "b"}}})

	want := []string{"first:a", "second:a", "first:b", "second:b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEmitter_StampsDeliveryID(t *testing.T) {
	e := NewEmitter(nil, nil)

	var ev types.Event
	e.Subscribe(types.EventLogin, func(got types.Event) { ev = got })
	e.Emit(types.Event{Kind: types.EventLogin})

	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Errorf("delivery id %q is not a uuid: %v", ev.ID, err)
	}
	if ev.At.IsZero() {
		t.Error("expected event time to be set")
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	e := NewEmitter(nil, nil)

	calls := 0
	unsubscribe := e.Subscribe(types.EventComment, func(types.Event) { calls++ })
	e.Emit(types.Event{Kind: types.EventComment})
	unsubscribe()
	unsubscribe()
	e.Emit(types.Event{Kind: types.EventComment})

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
	if e.HasSubscribers(types.EventComment) {
		t.Error("expected no subscribers after unsubscribe")
	}
}

func TestEmitter_RecoversPanics(t *testing.T) {
	e := NewEmitter(nil, nil)

	after := false
	e.Subscribe(types.EventPost, func(types.Event) { panic("boom") })
	e.Subscribe(types.EventPost, func(types.Event) { after = true })

	e.Emit(types.Event{Kind: types.EventPost})

	if !after {
		t.Error("handler after a panicking handler should still run")
	}
}

func TestEmitter_OnFirstSubscriber(t *testing.T) {
	e := NewEmitter(nil, nil)

	var firsts []types.EventKind
	e.OnFirstSubscriber(func(k types.EventKind) { firsts = append(firsts, k) })

	unsub := e.Subscribe(types.EventPost, func(types.Event) {})
	e.Subscribe(types.EventPost, func(types.Event) {})
	if len(firsts) != 1 {
		t.Fatalf("expected one first-subscriber callback, got %v", firsts)
	}

	unsub()
	e.Subscribe(types.EventPost, func(types.Event) {})
	if len(firsts) != 1 {
		t.Fatalf("kind still had a subscriber, got %v", firsts)
	}

	e2 := NewEmitter(nil, nil)
	e2.OnFirstSubscriber(func(k types.EventKind) { firsts = append(firsts, k) })
	u := e2.Subscribe(types.EventComment, func(types.Event) {})
	u()
	e2.Subscribe(types.EventComment, func(types.Event) {})
	if len(firsts) != 3 {
		t.Fatalf("expected a callback per zero-to-one transition, got %v", firsts)
	}
}
