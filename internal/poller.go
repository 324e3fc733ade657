package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/jamesprial/go-ruqqus/internal/metrics"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// DefaultPollInterval is the time between two polls of the listing endpoints.
const DefaultPollInterval = 10 * time.Second

// Listing endpoints polled for new items, newest first.
const (
	postListingPath    = "all/listing"
	commentListingPath = "front/comments"
)

// Poller detects new posts and comments by polling the newest-first listings and
// comparing them against a per-kind recency cache. The first poll after a kind gains
// a subscriber only seeds the cache.
type Poller struct {
	caller  *Caller
	parser  *Parser
	emitter *Emitter
	gate    *Gate
	metrics metrics.Recorder
	logger  *slog.Logger

	caches map[types.EventKind]*RecencyCache

	// mu serialises ticks.
	mu sync.Mutex
}

// NewPoller creates a Poller and registers it with emitter so that a kind going from
// zero to one subscriber makes its next poll a priming poll again.
func NewPoller(caller *Caller, parser *Parser, emitter *Emitter, gate *Gate, cacheCapacity int, rec metrics.Recorder, logger *slog.Logger) *Poller {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Poller{
		caller:  caller,
		parser:  parser,
		emitter: emitter,
		gate:    gate,
		metrics: rec,
		logger:  logger,
		caches: map[types.EventKind]*RecencyCache{
			types.EventPost:    NewRecencyCache(cacheCapacity),
			types.EventComment: NewRecencyCache(cacheCapacity),
		},
	}
	emitter.OnFirstSubscriber(p.resubscribed)
	return p
}

// Cache returns the recency cache for kind, or nil for kinds that are not polled.
func (p *Poller) Cache(kind types.EventKind) *RecencyCache {
	return p.caches[kind]
}

func (p *Poller) resubscribed(kind types.EventKind) {
	if cache, ok := p.caches[kind]; ok {
		cache.ResetPriming()
	}
}

// Start polls once immediately and then every interval until ctx is cancelled.
// A failed poll is logged and does not stop later ones.
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("poller started", "interval", interval)

	p.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce polls every kind that has at least one subscriber.
func (p *Poller) RunOnce(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, kind := range []types.EventKind{types.EventPost, types.EventComment} {
		if ctx.Err() != nil {
			return
		}
		if !p.emitter.HasSubscribers(kind) {
			continue
		}
		if err := p.gate.Allow(types.ScopeRead); err != nil {
			p.logger.DebugContext(ctx, "skipping poll", "kind", kind, "error", err)
			continue
		}

		if err := p.poll(ctx, kind); err != nil {
			p.metrics.RecordPoll(string(kind), false)
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.WarnContext(ctx, "poll failed", "kind", kind, "error", err)
			continue
		}
		p.metrics.RecordPoll(string(kind), true)
	}
}

func (p *Poller) poll(ctx context.Context, kind types.EventKind) error {
	cache := p.caches[kind]
	path := postListingPath
	if kind == types.EventComment {
		path = commentListingPath
	}

	primed, generation := cache.BeginPoll()

	raw, err := p.caller.Get(ctx, path, url.Values{"sort": {types.SortNew}})
	if err != nil {
		return err
	}
	items, err := p.parser.ListingItems(raw)
	if err != nil {
		return err
	}

	emitted, unreadable := 0, 0
	for _, item := range items {
		id := ItemID(item)
		if id == "" || cache.Seen(id) {
			continue
		}
		if primed {
			ev, err := p.event(kind, item)
			if err != nil {
				unreadable++
				p.logger.WarnContext(ctx, "skipping unreadable item", "kind", kind, "id", id, "error", err)
			} else {
				p.emitter.Emit(ev)
				emitted++
			}
		}
		cache.Add(id)
	}

	if !cache.CompletePollOf(generation) {
		p.logger.DebugContext(ctx, "priming reset during poll", "kind", kind)
	}

	p.logger.DebugContext(ctx, "poll complete",
		"kind", kind,
		"items", len(items),
		"emitted", emitted,
		"unreadable", unreadable,
		"priming", !primed,
	)
	return nil
}

// event formats a listing item that is known to carry an id.
func (p *Poller) event(kind types.EventKind, item json.RawMessage) (types.Event, error) {
	ev := types.Event{Kind: kind}
	var err error
	switch kind {
	case types.EventPost:
		ev.Post, err = p.parser.ParsePost(item)
	case types.EventComment:
		ev.Comment, err = p.parser.ParseComment(item)
	}
	return ev, err
}

func eventItemID(ev types.Event) string {
	switch {
	case ev.Post != nil:
		return ev.Post.ID
	case ev.Comment != nil:
		return ev.Comment.ID
	default:
		return ""
	}
}
