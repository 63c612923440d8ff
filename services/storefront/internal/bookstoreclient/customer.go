package bookstoreclient

import (
	"context"
	"net/http"
	"strconv"

	"alexandria/pkg/domain"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

type SignupResult struct {
	Message string `json:"message"`
	UserID  int    `json:"userID"`
}

// ProfileUpdate carries only the fields the customer changed; empty fields
// are omitted from the request.
type ProfileUpdate struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Password  string `json:"password,omitempty"`
}

// Empty reports whether no field was supplied.
func (p ProfileUpdate) Empty() bool {
	return p == ProfileUpdate{}
}

type CheckoutRequest struct {
	UserID     int    `json:"userID"`
	CardNumber string `json:"card_number"`
	CardExpiry string `json:"card_expiry"`
}

type CheckoutResult struct {
	Message string `json:"message"`
	OrderID int    `json:"orderID"`
}

// Login authenticates a user. Bad credentials surface as KindUnauthorized.
func (c *Client) Login(ctx context.Context, req LoginRequest) (domain.User, error) {
	var resp struct {
		Status string      `json:"status"`
		User   domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/login", &resp, withBody(req)); err != nil {
		return domain.User{}, err
	}
	return resp.User, nil
}

func (c *Client) SignUp(ctx context.Context, req SignupRequest) (SignupResult, error) {
	var resp SignupResult
	if err := c.do(ctx, http.MethodPost, "/customer/signup", &resp, withBody(req)); err != nil {
		return SignupResult{}, err
	}
	return resp, nil
}

// Logout ends the backend session; the backend also empties the cart.
func (c *Client) Logout(ctx context.Context, userID int) error {
	return c.do(ctx, http.MethodPost, "/customer/logout/{userID}", nil,
		withPath(map[string]string{"userID": strconv.Itoa(userID)}))
}

func (c *Client) UpdateProfile(ctx context.Context, userID int, update ProfileUpdate) (string, error) {
	var resp messageResponse
	err := c.do(ctx, http.MethodPut, "/customer/profile/{userID}", &resp,
		withPath(map[string]string{"userID": strconv.Itoa(userID)}),
		withBody(update))
	return resp.Message, err
}

func (c *Client) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	var resp CheckoutResult
	if err := c.do(ctx, http.MethodPost, "/customer/checkout", &resp, withBody(req)); err != nil {
		return CheckoutResult{}, err
	}
	return resp, nil
}

func (c *Client) ListOrders(ctx context.Context, userID int) ([]domain.Order, error) {
	var orders []domain.Order
	err := c.do(ctx, http.MethodGet, "/customer/orders/{userID}", &orders,
		withPath(map[string]string{"userID": strconv.Itoa(userID)}))
	if err != nil {
		return nil, err
	}
	return orders, nil
}
