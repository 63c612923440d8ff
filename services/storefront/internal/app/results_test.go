package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alexandria/pkg/domain"
)

func intPtr(n int) *int { return &n }

func listing() []domain.Book {
	return []domain.Book{
		{ISBN: "111", Title: "Dune", StockQuantity: 5, AvailableStock: intPtr(5)},
		{ISBN: "222", Title: "Emma", StockQuantity: 2},
	}
}

func TestPatchAfterAddDecrementsDisplayedStock(t *testing.T) {
	books := listing()
	next, err := PatchAfterAdd(books, "111", 2, nil)
	require.NoError(t, err)

	require.NotNil(t, next[0].AvailableStock)
	assert.Equal(t, 3, *next[0].AvailableStock)
	assert.Equal(t, 5, next[0].StockQuantity, "physical stock is untouched")
	assert.Equal(t, 5, *books[0].AvailableStock, "input is not mutated")
	assert.Equal(t, books[1], next[1])
}

func TestPatchAfterAddFallsBackToStockQuantity(t *testing.T) {
	next, err := PatchAfterAdd(listing(), "222", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, *next[1].AvailableStock)
}

func TestPatchAfterAddPrefersServerValue(t *testing.T) {
	next, err := PatchAfterAdd(listing(), "111", 1, intPtr(2))
	require.NoError(t, err)
	assert.Equal(t, 2, *next[0].AvailableStock)
}

func TestPatchAfterAddFloorsAtZero(t *testing.T) {
	next, err := PatchAfterAdd(listing(), "222", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, *next[1].AvailableStock)

	next, err = PatchAfterAdd(listing(), "111", 1, intPtr(-4))
	require.NoError(t, err)
	assert.Equal(t, 0, *next[0].AvailableStock)
}

func TestPatchAfterAddPreconditions(t *testing.T) {
	_, err := PatchAfterAdd(listing(), "111", 0, nil)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = PatchAfterAdd(listing(), "999", 1, nil)
	require.ErrorIs(t, err, ErrNotCached)

	dup := append(listing(), domain.Book{ISBN: "111", StockQuantity: 1})
	_, err = PatchAfterAdd(dup, "111", 1, nil)
	require.ErrorIs(t, err, ErrDuplicateISBN)
}

func TestResultCachePatchIsPerSession(t *testing.T) {
	c, err := NewResultCache(8)
	require.NoError(t, err)
	c.Store("s1", listing())
	c.Store("s2", listing())

	patched, err := c.PatchAfterAdd("s1", "111", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, *patched.AvailableStock)

	b, ok := c.Lookup("s1", "111")
	require.True(t, ok)
	assert.Equal(t, 3, *b.AvailableStock)
	b, ok = c.Lookup("s2", "111")
	require.True(t, ok)
	assert.Equal(t, 5, *b.AvailableStock)

	_, err = c.PatchAfterAdd("nobody", "111", 1, nil)
	require.ErrorIs(t, err, ErrNotCached)
}

func TestResultCacheInvalidateReplacesEntry(t *testing.T) {
	c, err := NewResultCache(8)
	require.NoError(t, err)
	c.Store("s1", listing())

	fresh, err := c.Invalidate(context.Background(), "s1", "111", func(ctx context.Context, isbn string) (domain.Book, error) {
		return domain.Book{ISBN: isbn, Title: "Dune", StockQuantity: 4, AvailableStock: intPtr(1)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, *fresh.AvailableStock)

	books, ok := c.Get("s1")
	require.True(t, ok)
	assert.Equal(t, 4, books[0].StockQuantity)
	assert.Equal(t, "222", books[1].ISBN)
}

func TestResultCacheInvalidateKeepsStaleOnFailure(t *testing.T) {
	c, err := NewResultCache(8)
	require.NoError(t, err)
	c.Store("s1", listing())

	_, err = c.Invalidate(context.Background(), "s1", "111", func(ctx context.Context, isbn string) (domain.Book, error) {
		return domain.Book{}, errors.New("backend down")
	})
	require.Error(t, err)

	b, ok := c.Lookup("s1", "111")
	require.True(t, ok)
	assert.Equal(t, 5, *b.AvailableStock)
}

func TestResultCacheDrop(t *testing.T) {
	c, err := NewResultCache(0)
	require.NoError(t, err)
	c.Store("s1", listing())
	c.Drop("s1")
	_, ok := c.Get("s1")
	assert.False(t, ok)
}
