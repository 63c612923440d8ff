package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alexandria/pkg/domain"
	"alexandria/services/storefront/internal/bookstoreclient"
)

type stubCart struct {
	mu       sync.Mutex
	lines    map[string]int
	adds     []int
	removes  []string
	reloads  int
	addErr   error
	cartErr  error
	rmErr    error
	addBlock chan struct{}
	entered  chan struct{}
}

func newStubCart(lines map[string]int) *stubCart {
	if lines == nil {
		lines = map[string]int{}
	}
	return &stubCart{lines: lines}
}

func (s *stubCart) AddToCart(ctx context.Context, userID int, isbn string, delta int) (bookstoreclient.AddResult, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.addBlock != nil {
		<-s.addBlock
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds = append(s.adds, delta)
	if s.addErr != nil {
		return bookstoreclient.AddResult{}, s.addErr
	}
	s.lines[isbn] += delta
	return bookstoreclient.AddResult{Message: "Item added to cart"}, nil
}

func (s *stubCart) GetCart(ctx context.Context, userID int) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	if s.cartErr != nil {
		return domain.Cart{}, s.cartErr
	}
	cart := domain.Cart{Items: []domain.CartLine{}}
	for isbn, qty := range s.lines {
		cart.Items = append(cart.Items, domain.CartLine{ISBN: isbn, Quantity: qty})
	}
	return cart, nil
}

func (s *stubCart) RemoveFromCart(ctx context.Context, userID int, isbn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes = append(s.removes, isbn)
	if s.rmErr != nil {
		return s.rmErr
	}
	delete(s.lines, isbn)
	return nil
}

func TestDelta(t *testing.T) {
	assert.Equal(t, -2, Delta(3, 1))
	assert.Equal(t, 4, Delta(1, 5))
	assert.Equal(t, 0, Delta(2, 2))
}

func TestSetLineQuantitySendsNegativeDelta(t *testing.T) {
	backend := newStubCart(map[string]int{"111": 3})
	m := NewCartMutator(backend)

	res, err := m.SetLineQuantity(context.Background(), 7, "111", 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{-2}, backend.adds)
	assert.Equal(t, LineCommitted, res.State)
	assert.True(t, res.Reloaded)
	assert.Equal(t, 1, res.Cart.Quantity("111"))
	assert.Equal(t, LineIdle, m.LineState(7, "111"))
}

func TestSetLineQuantityUnchangedIsNoOp(t *testing.T) {
	backend := newStubCart(map[string]int{"111": 2})
	m := NewCartMutator(backend)

	res, err := m.SetLineQuantity(context.Background(), 7, "111", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, LineIdle, res.State)
	assert.Empty(t, backend.adds)
	assert.Zero(t, backend.reloads)
}

func TestSetLineQuantityRejectsBelowOne(t *testing.T) {
	backend := newStubCart(map[string]int{"111": 2})
	m := NewCartMutator(backend)

	for _, desired := range []int{0, -3} {
		_, err := m.SetLineQuantity(context.Background(), 7, "111", 2, desired)
		require.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Empty(t, backend.adds)
}

func TestFailedWriteReloadsCartAndRollsBack(t *testing.T) {
	backend := newStubCart(map[string]int{"111": 1})
	backend.addErr = &bookstoreclient.Error{Kind: bookstoreclient.KindInsufficientStock, Detail: "Not enough stock for Dune"}
	m := NewCartMutator(backend)

	res, err := m.SetLineQuantity(context.Background(), 7, "111", 1, 9)
	require.Error(t, err)
	assert.True(t, bookstoreclient.IsKind(err, bookstoreclient.KindInsufficientStock))
	assert.Equal(t, LineRolledBack, res.State)
	assert.True(t, res.Reloaded)
	assert.Equal(t, 1, res.Cart.Quantity("111"), "cart reflects the server, not the requested quantity")
	assert.Equal(t, 1, backend.reloads)
}

func TestFailedWriteWithFailedReloadStillReportsWriteError(t *testing.T) {
	backend := newStubCart(nil)
	writeErr := errors.New("boom")
	backend.addErr = writeErr
	backend.cartErr = errors.New("backend down")
	m := NewCartMutator(backend)

	res, err := m.AddUnits(context.Background(), 7, "111", 1)
	require.ErrorIs(t, err, writeErr)
	assert.Equal(t, LineRolledBack, res.State)
	assert.False(t, res.Reloaded)
}

func TestReloadFailureAfterCommit(t *testing.T) {
	backend := newStubCart(nil)
	backend.cartErr = errors.New("backend down")
	m := NewCartMutator(backend)

	res, err := m.AddUnits(context.Background(), 7, "111", 2)
	require.ErrorIs(t, err, ErrReloadFailed)
	assert.Equal(t, LineCommitted, res.State)
	assert.True(t, committed(res, err))
}

func TestAddUnitsRejectsZero(t *testing.T) {
	m := NewCartMutator(newStubCart(nil))
	_, err := m.AddUnits(context.Background(), 7, "111", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSecondMutationOnBusyLineIsRejected(t *testing.T) {
	backend := newStubCart(nil)
	backend.addBlock = make(chan struct{})
	backend.entered = make(chan struct{}, 1)
	m := NewCartMutator(backend)

	done := make(chan error, 1)
	go func() {
		_, err := m.AddUnits(context.Background(), 7, "111", 1)
		done <- err
	}()

	select {
	case <-backend.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first write never reached the backend")
	}
	assert.Equal(t, LineSubmitting, m.LineState(7, "111"))

	_, err := m.SetLineQuantity(context.Background(), 7, "111", 1, 4)
	require.ErrorIs(t, err, ErrLineBusy)

	// Other lines and other users are independent.
	backend.entered = nil
	close(backend.addBlock)
	require.NoError(t, <-done)
	_, err = m.AddUnits(context.Background(), 8, "111", 1)
	require.NoError(t, err)
	assert.Equal(t, LineIdle, m.LineState(7, "111"))
}

func TestRemoveLineFailureKeepsLine(t *testing.T) {
	backend := newStubCart(map[string]int{"111": 2})
	backend.rmErr = &bookstoreclient.Error{Kind: bookstoreclient.KindNotFound, Detail: "Cart not found"}
	m := NewCartMutator(backend)

	res, err := m.RemoveLine(context.Background(), 7, "111")
	require.Error(t, err)
	assert.False(t, res.Reloaded)
	assert.Zero(t, backend.reloads)
	assert.Equal(t, 2, backend.lines["111"])
}

func TestRemoveLineReloads(t *testing.T) {
	backend := newStubCart(map[string]int{"111": 2, "222": 1})
	m := NewCartMutator(backend)

	res, err := m.RemoveLine(context.Background(), 7, "111")
	require.NoError(t, err)
	assert.True(t, res.Reloaded)
	_, ok := res.Cart.Line("111")
	assert.False(t, ok)
	assert.Equal(t, 1, res.Cart.Quantity("222"))
}
