package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"alexandria/internal/util"
	"alexandria/pkg/domain"
	"alexandria/services/storefront/internal/bookstoreclient"
)

var tracer = otel.Tracer("alexandria/storefront/app")

// CartBackend is the slice of the bookstore API the cart mutator writes through.
type CartBackend interface {
	AddToCart(ctx context.Context, userID int, isbn string, delta int) (bookstoreclient.AddResult, error)
	GetCart(ctx context.Context, userID int) (domain.Cart, error)
	RemoveFromCart(ctx context.Context, userID int, isbn string) error
}

// MutationResult describes the outcome of one cart-line mutation.
type MutationResult struct {
	// Cart is the authoritative cart reloaded after the write. It is the zero
	// value when no request was made or the reload failed.
	Cart     domain.Cart
	Reloaded bool
	Delta    int
	State    LineState
	// AvailableStock is the post-write stock the backend reported, if any.
	AvailableStock *int
}

// Delta is the additive change that moves a line from current to desired.
func Delta(currentQty, desiredQty int) int {
	return desiredQty - currentQty
}

// CartMutator turns target quantities into the backend's additive writes and
// reloads the cart after every write, successful or not.
type CartMutator struct {
	backend CartBackend
	gate    *lineGate
}

func NewCartMutator(backend CartBackend) *CartMutator {
	return &CartMutator{backend: backend, gate: newLineGate()}
}

// LineState reports whether a mutation is in flight for the line.
func (m *CartMutator) LineState(userID int, isbn string) LineState {
	return m.gate.state(userID, isbn)
}

// SetLineQuantity moves the line from currentQty to desiredQty. desiredQty
// below 1 is rejected without a request; an unchanged quantity is a no-op.
// On a failed write the cart is reloaded and the write error returned once.
func (m *CartMutator) SetLineQuantity(ctx context.Context, userID int, isbn string, currentQty, desiredQty int) (MutationResult, error) {
	if desiredQty < 1 || currentQty < 0 {
		return MutationResult{State: LineIdle}, ErrInvalidQuantity
	}
	delta := Delta(currentQty, desiredQty)
	if delta == 0 {
		return MutationResult{State: LineIdle}, nil
	}
	ctx, span := tracer.Start(ctx, "cart.set_line_quantity", trace.WithAttributes(
		attribute.String("cart.isbn", isbn),
		attribute.Int("cart.current_qty", currentQty),
		attribute.Int("cart.desired_qty", desiredQty),
	))
	defer span.End()
	return m.write(ctx, span, userID, isbn, delta)
}

// AddUnits adds qty units where no current quantity is known.
func (m *CartMutator) AddUnits(ctx context.Context, userID int, isbn string, qty int) (MutationResult, error) {
	if qty < 1 {
		return MutationResult{State: LineIdle}, ErrInvalidQuantity
	}
	ctx, span := tracer.Start(ctx, "cart.add_units", trace.WithAttributes(
		attribute.String("cart.isbn", isbn),
		attribute.Int("cart.qty", qty),
	))
	defer span.End()
	return m.write(ctx, span, userID, isbn, qty)
}

// RemoveLine deletes the line. A failed delete leaves local state alone and
// returns the error; a successful one reloads the cart.
func (m *CartMutator) RemoveLine(ctx context.Context, userID int, isbn string) (MutationResult, error) {
	ctx, span := tracer.Start(ctx, "cart.remove_line", trace.WithAttributes(attribute.String("cart.isbn", isbn)))
	defer span.End()

	release, err := m.gate.acquire(userID, isbn)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return MutationResult{State: LineSubmitting}, err
	}
	defer release()

	if err := m.backend.RemoveFromCart(ctx, userID, isbn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remove failed")
		return MutationResult{State: LineIdle}, fmt.Errorf("remove from cart: %w", err)
	}
	res := MutationResult{State: LineCommitted}
	return m.reload(ctx, span, userID, res)
}

func (m *CartMutator) write(ctx context.Context, span trace.Span, userID int, isbn string, delta int) (MutationResult, error) {
	span.SetAttributes(attribute.Int("cart.delta", delta))
	release, err := m.gate.acquire(userID, isbn)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return MutationResult{State: LineSubmitting, Delta: delta}, err
	}
	defer release()

	added, writeErr := m.backend.AddToCart(ctx, userID, isbn, delta)
	if writeErr != nil {
		span.RecordError(writeErr)
		span.SetStatus(codes.Error, "write rejected")
		res := MutationResult{State: LineRolledBack, Delta: delta}
		cart, reloadErr := m.backend.GetCart(ctx, userID)
		if reloadErr != nil {
			util.LoggerFromContext(ctx).Warn("compensating cart reload failed",
				slog.Int("user_id", userID),
				slog.String("isbn", isbn),
				slog.String("err", reloadErr.Error()),
			)
		} else {
			res.Cart = cart
			res.Reloaded = true
		}
		span.SetAttributes(attribute.String("cart.state", string(res.State)))
		return res, fmt.Errorf("add to cart: %w", writeErr)
	}

	res := MutationResult{State: LineCommitted, Delta: delta, AvailableStock: added.AvailableStock}
	return m.reload(ctx, span, userID, res)
}

func (m *CartMutator) reload(ctx context.Context, span trace.Span, userID int, res MutationResult) (MutationResult, error) {
	span.SetAttributes(attribute.String("cart.state", string(res.State)))
	cart, err := m.backend.GetCart(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("%w: %w", ErrReloadFailed, err)
	}
	res.Cart = cart
	res.Reloaded = true
	return res, nil
}

// committed reports whether the write reached the backend even if the
// follow-up reload failed.
func committed(res MutationResult, err error) bool {
	return res.State == LineCommitted && (err == nil || errors.Is(err, ErrReloadFailed))
}
