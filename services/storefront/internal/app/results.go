package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"alexandria/internal/util"
	"alexandria/pkg/domain"
	"alexandria/pkg/stock"
)

const defaultResultCacheSize = 4096

// PatchAfterAdd returns a copy of results with the stock of isbn lowered
// after addedQty units went into the cart. serverAvailable, when the backend
// reported it, is used as is; otherwise the displayed stock is decremented.
// AvailableStock never goes below zero. StockQuantity is physical stock and
// is left alone because cart reservations do not consume it.
func PatchAfterAdd(results []domain.Book, isbn string, addedQty int, serverAvailable *int) ([]domain.Book, error) {
	if addedQty < 1 {
		return nil, ErrInvalidQuantity
	}
	idx, err := indexOf(results, isbn)
	if err != nil {
		return nil, err
	}
	next := cloneBooks(results)
	book := next[idx]

	var avail int
	if serverAvailable != nil {
		avail = *serverAvailable
	} else {
		avail = stock.DisplayStock(book) - addedQty
	}
	avail = max(avail, 0)
	book.AvailableStock = &avail
	next[idx] = book
	return next, nil
}

// indexOf finds isbn by key equality. More than one match is a precondition
// violation and nothing is patched.
func indexOf(results []domain.Book, isbn string) (int, error) {
	idx := -1
	for i, b := range results {
		if b.ISBN != isbn {
			continue
		}
		if idx >= 0 {
			return -1, fmt.Errorf("%w: %s", ErrDuplicateISBN, isbn)
		}
		idx = i
	}
	if idx < 0 {
		return -1, fmt.Errorf("%w: %s", ErrNotCached, isbn)
	}
	return idx, nil
}

// cloneBooks copies the slice. Patches always install a fresh AvailableStock
// pointer, so entries can share the remaining fields.
func cloneBooks(books []domain.Book) []domain.Book {
	out := make([]domain.Book, len(books))
	copy(out, books)
	return out
}

// Refetch loads one book from the backend.
type Refetch func(ctx context.Context, isbn string) (domain.Book, error)

// ResultCache keeps each session's last search results so a listing add can
// patch stock in place instead of reloading the search. It is a display
// projection only; the backend re-validates every write.
type ResultCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, []domain.Book]
}

func NewResultCache(size int) (*ResultCache, error) {
	if size <= 0 {
		size = defaultResultCacheSize
	}
	c, err := lru.New[string, []domain.Book](size)
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}
	return &ResultCache{cache: c}, nil
}

// Store replaces the session's results.
func (c *ResultCache) Store(sessionID string, books []domain.Book) {
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(sessionID, cloneBooks(books))
}

// Get returns a copy of the session's results.
func (c *ResultCache) Get(sessionID string) ([]domain.Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	books, ok := c.cache.Get(sessionID)
	if !ok {
		return nil, false
	}
	return cloneBooks(books), true
}

// Lookup returns the cached entry for isbn.
func (c *ResultCache) Lookup(sessionID, isbn string) (domain.Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	books, ok := c.cache.Get(sessionID)
	if !ok {
		return domain.Book{}, false
	}
	idx, err := indexOf(books, isbn)
	if err != nil {
		return domain.Book{}, false
	}
	return books[idx], true
}

// PatchAfterAdd applies PatchAfterAdd to the session's results and returns
// the patched entry.
func (c *ResultCache) PatchAfterAdd(sessionID, isbn string, addedQty int, serverAvailable *int) (domain.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	books, ok := c.cache.Get(sessionID)
	if !ok {
		return domain.Book{}, fmt.Errorf("%w: %s", ErrNotCached, isbn)
	}
	next, err := PatchAfterAdd(books, isbn, addedQty, serverAvailable)
	if err != nil {
		return domain.Book{}, err
	}
	c.cache.Add(sessionID, next)
	idx, _ := indexOf(next, isbn)
	return next[idx], nil
}

// Invalidate replaces the entry for isbn with a fresh single-item fetch.
// When the fetch fails the stale entry stays and the error is returned.
func (c *ResultCache) Invalidate(ctx context.Context, sessionID, isbn string, refetch Refetch) (domain.Book, error) {
	fresh, err := refetch(ctx, isbn)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("result refetch failed; keeping stale entry",
			slog.String("isbn", isbn),
			slog.String("err", err.Error()),
		)
		return domain.Book{}, fmt.Errorf("refetch %s: %w", isbn, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	books, ok := c.cache.Get(sessionID)
	if !ok {
		return fresh, nil
	}
	idx, err := indexOf(books, isbn)
	if err != nil {
		return fresh, nil
	}
	next := cloneBooks(books)
	next[idx] = fresh
	c.cache.Add(sessionID, next)
	return fresh, nil
}

// Drop forgets the session's results.
func (c *ResultCache) Drop(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(sessionID)
}
