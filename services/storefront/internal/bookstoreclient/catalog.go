package bookstoreclient

import (
	"context"
	"net/http"
	"strconv"

	"alexandria/pkg/domain"
)

// SearchQuery filters the catalog. UserID, when set, makes the backend
// compute AvailableStock for that viewer.
type SearchQuery struct {
	Title    string
	Category string
	ISBN     string
	Author   string
	UserID   int
}

func (q SearchQuery) params() map[string]string {
	p := map[string]string{
		"title":    q.Title,
		"category": q.Category,
		"isbn":     q.ISBN,
		"author":   q.Author,
	}
	if q.UserID > 0 {
		p["userID"] = strconv.Itoa(q.UserID)
	}
	return p
}

func (c *Client) SearchBooks(ctx context.Context, q SearchQuery) ([]domain.Book, error) {
	var books []domain.Book
	if err := c.do(ctx, http.MethodGet, "/books/search", &books, withQuery(q.params())); err != nil {
		return nil, err
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, nil
}

// GetBook fetches one book with authors and publisher. userID may be zero.
func (c *Client) GetBook(ctx context.Context, isbn string, userID int) (domain.Book, error) {
	query := map[string]string{}
	if userID > 0 {
		query["userID"] = strconv.Itoa(userID)
	}
	var book domain.Book
	err := c.do(ctx, http.MethodGet, "/books/{isbn}", &book,
		withPath(map[string]string{"isbn": isbn}),
		withQuery(query))
	if err != nil {
		return domain.Book{}, err
	}
	return book, nil
}
