package bookstoreclient

import (
	"context"
	"net/http"

	"alexandria/pkg/domain"
)

// Report endpoints return null aggregates when no completed order matches;
// those decode as zero values.

func (c *Client) SalesPrevMonth(ctx context.Context) (domain.MonthlySales, error) {
	var out domain.MonthlySales
	err := c.do(ctx, http.MethodGet, "/admin/reports/sales-prev-month", &out)
	return out, err
}

// SalesDaily reports completed sales on date (YYYY-MM-DD).
func (c *Client) SalesDaily(ctx context.Context, date string) (domain.DailySales, error) {
	var out domain.DailySales
	err := c.do(ctx, http.MethodGet, "/admin/reports/sales-daily", &out,
		withQuery(map[string]string{"date_input": date}))
	out.Date = date
	return out, err
}

func (c *Client) TopCustomers(ctx context.Context) ([]domain.TopCustomer, error) {
	var out []domain.TopCustomer
	if err := c.do(ctx, http.MethodGet, "/admin/reports/top-customers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TopSellingBooks(ctx context.Context) ([]domain.TopBook, error) {
	var out []domain.TopBook
	if err := c.do(ctx, http.MethodGet, "/admin/reports/top-selling-books", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BookReplenishments(ctx context.Context, isbn string) (domain.Replenishment, error) {
	var out domain.Replenishment
	err := c.do(ctx, http.MethodGet, "/admin/reports/book-replenishments", &out,
		withQuery(map[string]string{"isbn": isbn}))
	return out, err
}
