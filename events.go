package ruqqus

import "github.com/jamesprial/go-ruqqus/pkg/types"

// Event is delivered to subscribers.
type Event = types.Event

// EventKind names a session event.
type EventKind = types.EventKind

const (
	EventLogin   = types.EventLogin
	EventPost    = types.EventPost
	EventComment = types.EventComment
	EventRefresh = types.EventRefresh
)

// Subscribe registers h for events of kind and returns a function that removes it.
//
// Handlers for one kind run one after another in subscription order. A kind that
// gains its first subscriber treats its next poll as a priming poll, so only items
// published after subscribing are reported.
func (s *Session) Subscribe(kind EventKind, h func(Event)) (unsubscribe func()) {
	return s.emitter.Subscribe(kind, h)
}

// OnPost calls fn for each new post.
func (s *Session) OnPost(fn func(*types.Post)) (unsubscribe func()) {
	return s.Subscribe(EventPost, func(ev Event) { fn(ev.Post) })
}

// OnComment calls fn for each new comment.
func (s *Session) OnComment(fn func(*types.Comment)) (unsubscribe func()) {
	return s.Subscribe(EventComment, func(ev Event) { fn(ev.Comment) })
}

// OnLogin calls fn once the session is online. The user is nil without the identity scope.
func (s *Session) OnLogin(fn func(*types.User)) (unsubscribe func()) {
	return s.Subscribe(EventLogin, func(ev Event) { fn(ev.Identity) })
}

// OnRefresh calls fn with the new credentials after every successful exchange.
func (s *Session) OnRefresh(fn func(types.Credentials)) (unsubscribe func()) {
	return s.Subscribe(EventRefresh, func(ev Event) {
		if ev.Credentials != nil {
			fn(*ev.Credentials)
		}
	})
}
