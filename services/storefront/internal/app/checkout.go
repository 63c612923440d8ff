package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alexandria/internal/validator"
	"alexandria/pkg/domain"
	"alexandria/services/storefront/internal/bookstoreclient"
)

const expiryLayout = "2006-01-02"

// CheckoutInput is the payment form.
type CheckoutInput struct {
	CardNumber string `json:"card_number"`
	CardExpiry string `json:"card_expiry"`
}

// Checkout validates the card, refuses an empty cart and places the order.
// Stock is re-checked by the backend.
func (a *App) Checkout(ctx context.Context, sess Session, in CheckoutInput) (bookstoreclient.CheckoutResult, error) {
	card := strings.ReplaceAll(strings.TrimSpace(in.CardNumber), " ", "")
	expiry := strings.TrimSpace(in.CardExpiry)

	v := validator.New()
	v.Check(card != "", "card_number", "is required")
	if card != "" {
		v.Check(validator.Matches(card, validator.DigitsRX), "card_number", "must contain digits only")
		v.Check(len(card) >= 13 && len(card) <= 16, "card_number", "must be 13 to 16 digits")
	}
	v.Check(expiry != "", "card_expiry", "is required")
	if expiry != "" {
		exp, err := time.Parse(expiryLayout, expiry)
		if err != nil {
			v.AddError("card_expiry", "must be a date (YYYY-MM-DD)")
		} else {
			now := a.now()
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			v.Check(!exp.Before(today), "card_expiry", "card has expired")
		}
	}
	if err := v.Err(); err != nil {
		return bookstoreclient.CheckoutResult{}, err
	}

	userID := sess.User().UserID
	cart, err := a.backend.GetCart(ctx, userID)
	if err != nil {
		return bookstoreclient.CheckoutResult{}, fmt.Errorf("get cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return bookstoreclient.CheckoutResult{}, ErrEmptyCart
	}

	res, err := a.backend.Checkout(ctx, bookstoreclient.CheckoutRequest{
		UserID:     userID,
		CardNumber: card,
		CardExpiry: expiry,
	})
	if err != nil {
		return bookstoreclient.CheckoutResult{}, fmt.Errorf("checkout: %w", err)
	}
	// Stock changed for everything that was in the cart.
	a.results.Drop(sess.ID())
	return res, nil
}

// Orders lists the viewer's past orders.
func (a *App) Orders(ctx context.Context, sess Session) ([]domain.Order, error) {
	orders, err := a.backend.ListOrders(ctx, sess.User().UserID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}
