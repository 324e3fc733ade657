package internal

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesprial/go-ruqqus/internal/metrics"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// Handler receives session events.
type Handler func(types.Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Emitter fans events out to subscribers. Handlers run one after another on the
// emitting goroutine, in subscription order.
type Emitter struct {
	mu     sync.RWMutex
	subs   map[types.EventKind][]subscription
	nextID uint64

	// onFirst is called when a kind goes from zero to one subscriber.
	onFirst func(types.EventKind)

	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewEmitter creates an Emitter. A nil recorder or logger disables that output.
func NewEmitter(rec metrics.Recorder, logger *slog.Logger) *Emitter {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Emitter{
		subs:    make(map[types.EventKind][]subscription),
		metrics: rec,
		logger:  logger,
		now:     time.Now,
	}
}

// OnFirstSubscriber installs fn to run whenever a kind gains its first subscriber.
func (e *Emitter) OnFirstSubscriber(fn func(types.EventKind)) {
	e.mu.Lock()
	e.onFirst = fn
	e.mu.Unlock()
}

// Subscribe registers h for kind and returns a function that removes it.
func (e *Emitter) Subscribe(kind types.EventKind, h Handler) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	first := len(e.subs[kind]) == 0
	e.subs[kind] = append(e.subs[kind], subscription{id: id, handler: h})
	onFirst := e.onFirst
	e.mu.Unlock()

	if first && onFirst != nil {
		onFirst(kind)
	}

	var once sync.Once
	return func() {
		once.Do(func() { e.unsubscribe(kind, id) })
	}
}

func (e *Emitter) unsubscribe(kind types.EventKind, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	subs := e.subs[kind]
	for i, s := range subs {
		if s.id == id {
			e.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// HasSubscribers reports whether kind has at least one subscriber.
func (e *Emitter) HasSubscribers(kind types.EventKind) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs[kind]) > 0
}

// Emit stamps ev with a delivery id and time and hands it to every subscriber of its kind.
func (e *Emitter) Emit(ev types.Event) {
	e.mu.RLock()
	subs := append([]subscription(nil), e.subs[ev.Kind]...)
	e.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	ev.ID = uuid.NewString()
	if ev.At.IsZero() {
		ev.At = e.now()
	}

	for _, s := range subs {
		e.deliver(s, ev)
	}
	e.metrics.RecordEvent(string(ev.Kind))
}

func (e *Emitter) deliver(s subscription, ev types.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				"kind", ev.Kind,
				"event_id", ev.ID,
				"panic", r,
			)
		}
	}()
	s.handler(ev)
}
