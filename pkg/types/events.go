package types

import "time"

// EventKind names a session event.
type EventKind string

const (
	// EventLogin fires once, after the first successful credential exchange.
	EventLogin EventKind = "login"
	// EventPost fires for each newly observed post.
	EventPost EventKind = "post"
	// EventComment fires for each newly observed comment.
	EventComment EventKind = "comment"
	// EventRefresh fires after every successful credential exchange.
	EventRefresh EventKind = "refresh"
)

// Event is delivered to subscribers. Only the field matching Kind is set.
type Event struct {
	// ID uniquely identifies this delivery.
	ID   string
	Kind EventKind
	At   time.Time

	Post    *Post
	Comment *Comment
	// Identity is the session user on login, nil when the identity scope is missing.
	Identity *User
	// Credentials is a snapshot taken after a refresh.
	Credentials *Credentials
}
