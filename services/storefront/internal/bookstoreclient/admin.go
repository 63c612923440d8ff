package bookstoreclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"alexandria/pkg/domain"
)

// BookInput is the admin create/update payload.
type BookInput struct {
	ISBN          string          `json:"ISBN"`
	Title         string          `json:"Title"`
	PubYear       int             `json:"pubYear"`
	Price         decimal.Decimal `json:"Price"`
	StockQuantity int             `json:"StockQuantity"`
	Threshold     int             `json:"threshold"`
	Category      string          `json:"category"`
	PubID         int             `json:"PubID"`
	AuthorIDs     []int           `json:"authorIDs,omitempty"`
}

// MarshalJSON sends Price as a JSON number, which the backend expects.
func (b BookInput) MarshalJSON() ([]byte, error) {
	type plain BookInput
	return json.Marshal(struct {
		plain
		Price json.Number `json:"Price"`
	}{plain: plain(b), Price: json.Number(b.Price.String())})
}

type PublisherOrderRequest struct {
	ISBN     string `json:"ISBN"`
	PubID    int    `json:"PubID"`
	Quantity int    `json:"Quantity"`
}

type PublisherOrderResult struct {
	Message string `json:"message"`
	OrderID int    `json:"orderID"`
}

func (c *Client) AdminGetBook(ctx context.Context, isbn string) (domain.Book, error) {
	var book domain.Book
	if err := c.do(ctx, http.MethodGet, "/admin/books/{isbn}", &book, withPath(map[string]string{"isbn": isbn})); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

func (c *Client) AdminCreateBook(ctx context.Context, in BookInput) (string, error) {
	var resp messageResponse
	err := c.do(ctx, http.MethodPost, "/admin/books", &resp, withBody(in))
	return resp.Message, err
}

func (c *Client) AdminUpdateBook(ctx context.Context, isbn string, in BookInput) (string, error) {
	var resp messageResponse
	err := c.do(ctx, http.MethodPut, "/admin/books/{isbn}", &resp,
		withPath(map[string]string{"isbn": isbn}),
		withBody(in))
	return resp.Message, err
}

func (c *Client) ListAuthors(ctx context.Context) ([]domain.Author, error) {
	var authors []domain.Author
	if err := c.do(ctx, http.MethodGet, "/admin/authors", &authors); err != nil {
		return nil, err
	}
	return authors, nil
}

func (c *Client) CreateAuthor(ctx context.Context, name string) (string, error) {
	var resp messageResponse
	err := c.do(ctx, http.MethodPost, "/admin/authors", &resp, withBody(map[string]string{"author_name": name}))
	return resp.Message, err
}

func (c *Client) ListPublishers(ctx context.Context) ([]domain.Publisher, error) {
	var pubs []domain.Publisher
	if err := c.do(ctx, http.MethodGet, "/admin/publishers", &pubs); err != nil {
		return nil, err
	}
	return pubs, nil
}

func (c *Client) CreatePublisher(ctx context.Context, p domain.Publisher) (string, error) {
	var resp messageResponse
	body := map[string]string{"name": p.Name, "phone": p.Phone, "address": p.Address}
	err := c.do(ctx, http.MethodPost, "/admin/publishers", &resp, withBody(body))
	return resp.Message, err
}

func (c *Client) ListPublisherOrders(ctx context.Context) ([]domain.PublisherOrder, error) {
	var orders []domain.PublisherOrder
	if err := c.do(ctx, http.MethodGet, "/admin/publisher-orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) CreatePublisherOrder(ctx context.Context, req PublisherOrderRequest) (PublisherOrderResult, error) {
	var resp PublisherOrderResult
	if err := c.do(ctx, http.MethodPost, "/admin/publisher-orders", &resp, withBody(req)); err != nil {
		return PublisherOrderResult{}, err
	}
	return resp, nil
}

func (c *Client) ConfirmPublisherOrder(ctx context.Context, orderID int) (string, error) {
	var resp messageResponse
	err := c.do(ctx, http.MethodPut, "/admin/confirm-order/{orderID}", &resp,
		withPath(map[string]string{"orderID": strconv.Itoa(orderID)}))
	return resp.Message, err
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := c.do(ctx, http.MethodGet, "/admin/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) PromoteUser(ctx context.Context, userID int) (string, error) {
	var resp messageResponse
	err := c.do(ctx, http.MethodPut, "/admin/users/{userID}/promote", &resp,
		withPath(map[string]string{"userID": strconv.Itoa(userID)}))
	return resp.Message, err
}
