// Package pagination merges the pages of a provider listing into one sequence.
//
// Providers such as Listennotes return a podcast's episodes a page at a time,
// keyed by the publish date of the last episode seen, and do not number them.
// Accumulate walks the pages and assigns contiguous numbers locally.
package pagination

import (
	"context"
	"fmt"
	"time"
)

// Cursor positions the next fetch after the last accumulated item
type Cursor struct {
	// After is the timestamp of the last accumulated item
	After time.Time
	// Sequence is the number of items accumulated so far
	Sequence int
}

// Page is one provider response
type Page[T any] struct {
	Items []T
	// Total is the number of items the provider says exist
	Total int
}

// FetchFunc fetches one page. The first call gets a nil cursor.
type FetchFunc[T any] func(ctx context.Context, cursor *Cursor) (Page[T], error)

// Options tells Accumulate how to read and renumber items
type Options[T any] struct {
	// Timestamp returns the ordering timestamp of an item, used for the cursor
	Timestamp func(T) time.Time
	// Number stores the locally assigned sequence number on an item
	Number func(item *T, number int)
}

// Accumulate fetches pages until the declared total is reached or a page adds
// nothing. It returns the items, numbered 1..n, and the declared total.
func Accumulate[T any](ctx context.Context, fetch FetchFunc[T], opts Options[T]) ([]T, int, error) {
	if opts.Timestamp == nil {
		return nil, 0, fmt.Errorf("pagination: Timestamp option is required")
	}

	first, err := fetch(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch first page: %w", err)
	}

	total := first.Total
	if len(first.Items) == 0 {
		return []T{}, total, nil
	}
	items := make([]T, 0, max(total, len(first.Items)))
	items = appendNumbered(items, first.Items, opts.Number)

	for len(items) < total {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		cursor := &Cursor{
			After:    opts.Timestamp(items[len(items)-1]),
			Sequence: len(items),
		}
		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch page after item %d: %w", cursor.Sequence, err)
		}
		// A provider that under-delivers would otherwise be asked forever
		if len(page.Items) == 0 {
			break
		}
		items = appendNumbered(items, page.Items, opts.Number)
	}

	return items, total, nil
}

func appendNumbered[T any](items, page []T, number func(*T, int)) []T {
	for _, item := range page {
		if number != nil {
			number(&item, len(items)+1)
		}
		items = append(items, item)
	}
	return items
}
