package bookstoreclient

import (
	"context"
	"net/http"
	"strconv"

	"alexandria/pkg/domain"
)

type cartItem struct {
	ISBN     string `json:"ISBN"`
	Quantity int    `json:"Quantity"`
}

// AddResult is the backend's answer to an additive cart write.
// AvailableStock is set only when the backend reports the post-write value;
// the key is matched case-insensitively.
type AddResult struct {
	Message        string `json:"message"`
	AvailableStock *int   `json:"AvailableStock,omitempty"`
}

// AddToCart adds delta units of isbn to the user's cart. The endpoint is
// additive: a negative delta lowers the quantity.
func (c *Client) AddToCart(ctx context.Context, userID int, isbn string, delta int) (AddResult, error) {
	var resp AddResult
	err := c.do(ctx, http.MethodPost, "/cart/add", &resp,
		withQuery(map[string]string{"userID": strconv.Itoa(userID)}),
		withBody(cartItem{ISBN: isbn, Quantity: delta}))
	if err != nil {
		return AddResult{}, err
	}
	return resp, nil
}

func (c *Client) GetCart(ctx context.Context, userID int) (domain.Cart, error) {
	var cart domain.Cart
	err := c.do(ctx, http.MethodGet, "/cart/{userID}", &cart,
		withPath(map[string]string{"userID": strconv.Itoa(userID)}))
	if err != nil {
		return domain.Cart{}, err
	}
	if cart.Items == nil {
		cart.Items = []domain.CartLine{}
	}
	return cart, nil
}

func (c *Client) RemoveFromCart(ctx context.Context, userID int, isbn string) error {
	return c.do(ctx, http.MethodDelete, "/cart/remove", nil,
		withQuery(map[string]string{"userID": strconv.Itoa(userID), "isbn": isbn}))
}
