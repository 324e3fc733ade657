package ruqqus

import (
	"context"

	"github.com/jamesprial/go-ruqqus/internal"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// ErrNoMoreItems is returned by Next once a listing is exhausted.
var ErrNoMoreItems = internal.ErrNoMoreItems

// FeedIterator provides an iterator for paginating through posts.
type FeedIterator struct {
	it *internal.PageIterator[*types.Post]
}

// CommentIterator provides an iterator for paginating through comments.
type CommentIterator struct {
	it *internal.PageIterator[*types.Comment]
}

// FrontPageIterator walks the session user's front page starting at req.Page.
func (s *Session) FrontPageIterator(ctx context.Context, req *types.ListingRequest) *FeedIterator {
	return s.feedIterator(ctx, req, func(ctx context.Context, r *types.ListingRequest) (*types.Feed, error) {
		return s.FrontPage(ctx, r)
	})
}

// AllIterator walks the listing across all guilds.
func (s *Session) AllIterator(ctx context.Context, req *types.ListingRequest) *FeedIterator {
	return s.feedIterator(ctx, req, s.All)
}

// GuildFeedIterator walks a guild's posts.
func (s *Session) GuildFeedIterator(ctx context.Context, guild string, req *types.ListingRequest) *FeedIterator {
	return s.feedIterator(ctx, req, func(ctx context.Context, r *types.ListingRequest) (*types.Feed, error) {
		return s.GuildFeed(ctx, guild, r)
	})
}

// UserFeedIterator walks a user's posts.
func (s *Session) UserFeedIterator(ctx context.Context, username string, req *types.ListingRequest) *FeedIterator {
	return s.feedIterator(ctx, req, func(ctx context.Context, r *types.ListingRequest) (*types.Feed, error) {
		return s.UserFeed(ctx, username, r)
	})
}

// GuildCommentsIterator walks a guild's comments.
func (s *Session) GuildCommentsIterator(ctx context.Context, guild string, req *types.ListingRequest) *CommentIterator {
	return s.commentIterator(ctx, req, func(ctx context.Context, r *types.ListingRequest) (*types.CommentPage, error) {
		return s.GuildComments(ctx, guild, r)
	})
}

// UserCommentsIterator walks a user's comments.
func (s *Session) UserCommentsIterator(ctx context.Context, username string, req *types.ListingRequest) *CommentIterator {
	return s.commentIterator(ctx, req, func(ctx context.Context, r *types.ListingRequest) (*types.CommentPage, error) {
		return s.UserComments(ctx, username, r)
	})
}

func (s *Session) feedIterator(ctx context.Context, req *types.ListingRequest, list func(context.Context, *types.ListingRequest) (*types.Feed, error)) *FeedIterator {
	base := pageRequest(req)
	fetch := func(ctx context.Context, page int) ([]*types.Post, bool, error) {
		r := base
		r.Page = page
		feed, err := list(ctx, &r)
		if err != nil {
			return nil, false, err
		}
		return compact(feed.Posts), feed.HasNext, nil
	}
	return &FeedIterator{it: internal.NewPageIterator(ctx, base.Page, fetch)}
}

func (s *Session) commentIterator(ctx context.Context, req *types.ListingRequest, list func(context.Context, *types.ListingRequest) (*types.CommentPage, error)) *CommentIterator {
	base := pageRequest(req)
	fetch := func(ctx context.Context, page int) ([]*types.Comment, bool, error) {
		r := base
		r.Page = page
		out, err := list(ctx, &r)
		if err != nil {
			return nil, false, err
		}
		return compact(out.Comments), out.HasNext, nil
	}
	return &CommentIterator{it: internal.NewPageIterator(ctx, base.Page, fetch)}
}

// pageRequest copies req without its limit, which would cut pages short.
func pageRequest(req *types.ListingRequest) types.ListingRequest {
	var r types.ListingRequest
	if req != nil {
		r = *req
	}
	r.Limit = 0
	return r
}

// compact drops items the formatter could not identify.
func compact[T any](items []*T) []*T {
	out := items[:0:0]
	for _, item := range items {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

// HasNext returns true if there may be more posts to iterate through.
func (it *FeedIterator) HasNext() bool { return it.it.HasNext() }

// Next returns the next post in the iteration.
func (it *FeedIterator) Next() (*types.Post, error) { return it.it.Next() }

// Error returns any error encountered during iteration.
func (it *FeedIterator) Error() error { return it.it.Err() }

// Collect fetches all remaining posts up to limit. A limit of zero or less collects everything.
func (it *FeedIterator) Collect(limit int) ([]*types.Post, error) {
	return collect(it.it, limit)
}

// HasNext returns true if there may be more comments to iterate through.
func (it *CommentIterator) HasNext() bool { return it.it.HasNext() }

// Next returns the next comment in the iteration.
func (it *CommentIterator) Next() (*types.Comment, error) { return it.it.Next() }

// Error returns any error encountered during iteration.
func (it *CommentIterator) Error() error { return it.it.Err() }

// Collect fetches all remaining comments up to limit.
func (it *CommentIterator) Collect(limit int) ([]*types.Comment, error) {
	return collect(it.it, limit)
}

func collect[T any](it *internal.PageIterator[T], limit int) ([]T, error) {
	var out []T
	for it.HasNext() && (limit <= 0 || len(out) < limit) {
		item, err := it.Next()
		if err == internal.ErrNoMoreItems {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
