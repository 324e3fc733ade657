package internal

import (
	"context"
	"errors"
)

// ErrNoMoreItems is returned by Next once the listing is exhausted.
var ErrNoMoreItems = errors.New("no more items available")

// PageFunc fetches one numbered page and reports whether another page follows.
type PageFunc[T any] func(ctx context.Context, page int) (items []T, hasNext bool, err error)

// PageIterator walks a page-numbered listing one item at a time, fetching the
// next page when the buffered one is used up.
type PageIterator[T any] struct {
	ctx       context.Context
	fetch     PageFunc[T]
	page      int
	buffer    []T
	bufferIdx int
	hasMore   bool
	err       error
}

// NewPageIterator creates an iterator starting at startPage. Pages below 1 start at 1.
func NewPageIterator[T any](ctx context.Context, startPage int, fetch PageFunc[T]) *PageIterator[T] {
	if startPage < 1 {
		startPage = 1
	}
	return &PageIterator[T]{
		ctx:     ctx,
		fetch:   fetch,
		page:    startPage,
		hasMore: true,
	}
}

// HasNext returns true if there may be more items to iterate through.
func (it *PageIterator[T]) HasNext() bool {
	if it.err != nil {
		return false
	}
	return it.bufferIdx < len(it.buffer) || it.hasMore
}

// Next returns the next item in the iteration.
func (it *PageIterator[T]) Next() (T, error) {
	var zero T
	if it.err != nil {
		return zero, it.err
	}

	if it.bufferIdx >= len(it.buffer) {
		if !it.hasMore {
			return zero, ErrNoMoreItems
		}

		items, hasNext, err := it.fetch(it.ctx, it.page)
		if err != nil {
			it.err = err
			return zero, err
		}

		it.buffer = items
		it.bufferIdx = 0
		it.page++
		it.hasMore = hasNext && len(items) > 0

		if len(it.buffer) == 0 {
			return zero, ErrNoMoreItems
		}
	}

	item := it.buffer[it.bufferIdx]
	it.bufferIdx++
	return item, nil
}

// Err returns the error that stopped the iteration, if any.
func (it *PageIterator[T]) Err() error {
	return it.err
}

// Page returns the number of the next page to be fetched.
func (it *PageIterator[T]) Page() int {
	return it.page
}
