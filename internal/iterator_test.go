package internal

import (
	"context"
	"errors"
	"testing"
)

func pagesOf(pages ...[]string) (PageFunc[string], *[]int) {
	var requested []int
	return func(_ context.Context, page int) ([]string, bool, error) {
		requested = append(requested, page)
		if page > len(pages) {
			return nil, false, nil
		}
		return pages[page-1], page < len(pages), nil
	}, &requested
}

func drain(t *testing.T, it *PageIterator[string]) []string {
	t.Helper()
	var out []string
	for it.HasNext() {
		item, err := it.Next()
		if errors.Is(err, ErrNoMoreItems) {
			break
		}
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		out = append(out, item)
	}
	return out
}

func TestPageIterator_WalksAllPages(t *testing.T) {
	fetch, requested := pagesOf([]string{"a", "b"}, []string{"c"}, []string{"d"})
	it := NewPageIterator(context.Background(), 0, fetch)

	got := drain(t, it)
	if !equalIDs(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("items = %v", got)
	}
	if len(*requested) != 3 {
		t.Errorf("requested pages %v, want 3 requests", *requested)
	}
	if _, err := it.Next(); !errors.Is(err, ErrNoMoreItems) {
		t.Errorf("Next after end = %v, want ErrNoMoreItems", err)
	}
}

func TestPageIterator_StartPage(t *testing.T) {
	fetch, requested := pagesOf([]string{"a"}, []string{"b"}, []string{"c"})
	it := NewPageIterator(context.Background(), 2, fetch)

	got := drain(t, it)
	if !equalIDs(got, []string{"b", "c"}) {
		t.Errorf("items = %v", got)
	}
	if (*requested)[0] != 2 {
		t.Errorf("first request for page %d, want 2", (*requested)[0])
	}
	if it.Page() != 4 {
		t.Errorf("Page() = %d, want 4", it.Page())
	}
}

func TestPageIterator_StopsOnEmptyPage(t *testing.T) {
	calls := 0
	it := NewPageIterator(context.Background(), 1, func(context.Context, int) ([]string, bool, error) {
		calls++
		return nil, true, nil
	})

	if got := drain(t, it); len(got) != 0 {
		t.Errorf("items = %v", got)
	}
	if it.HasNext() || calls != 1 {
		t.Errorf("HasNext=%v calls=%d, want false and 1", it.HasNext(), calls)
	}
}

func TestPageIterator_Error(t *testing.T) {
	boom := errors.New("boom")
	it := NewPageIterator(context.Background(), 1, func(context.Context, int) ([]string, bool, error) {
		return nil, false, boom
	})

	if _, err := it.Next(); !errors.Is(err, boom) {
		t.Fatalf("Next() = %v, want boom", err)
	}
	if it.HasNext() {
		t.Error("HasNext should be false after an error")
	}
	if !errors.Is(it.Err(), boom) {
		t.Errorf("Err() = %v", it.Err())
	}
}
