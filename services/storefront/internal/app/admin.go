package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"alexandria/internal/validator"
	"alexandria/pkg/domain"
	"alexandria/services/storefront/internal/bookstoreclient"
)

const defaultPublisherOrderQuantity = 50

// TopReports pairs the two ranking reports of the admin console.
type TopReports struct {
	Customers []domain.TopCustomer `json:"topCustomers"`
	Books     []domain.TopBook     `json:"topBooks"`
}

func validateBook(in bookstoreclient.BookInput, requireISBN bool) error {
	v := validator.New()
	if requireISBN {
		v.Check(validator.NotBlank(in.ISBN), "ISBN", "is required")
	}
	v.Check(validator.NotBlank(in.Title), "Title", "is required")
	v.Check(!in.Price.IsNegative(), "Price", "must not be negative")
	v.Check(in.StockQuantity >= 0, "StockQuantity", "must not be negative")
	v.Check(in.Threshold >= 0, "threshold", "must not be negative")
	v.Check(validator.In(in.Category, domain.Categories...), "category", "is not a known category")
	v.Check(in.PubID > 0, "PubID", "select a publisher")
	v.Check(len(in.AuthorIDs) > 0, "authorIDs", "Select at least one author")
	return v.Err()
}

func (a *App) AdminBook(ctx context.Context, sess Session, isbn string) (domain.Book, error) {
	if err := requireAdmin(sess); err != nil {
		return domain.Book{}, err
	}
	return a.backend.AdminGetBook(ctx, isbn)
}

// CreateBook adds a catalog entry. At least one author is required.
func (a *App) CreateBook(ctx context.Context, sess Session, in bookstoreclient.BookInput) (string, error) {
	if err := requireAdmin(sess); err != nil {
		return "", err
	}
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Title = strings.TrimSpace(in.Title)
	if err := validateBook(in, true); err != nil {
		return "", err
	}
	msg, err := a.backend.AdminCreateBook(ctx, in)
	if err != nil {
		return "", fmt.Errorf("create book: %w", err)
	}
	return msg, nil
}

func (a *App) UpdateBook(ctx context.Context, sess Session, isbn string, in bookstoreclient.BookInput) (string, error) {
	if err := requireAdmin(sess); err != nil {
		return "", err
	}
	in.ISBN = isbn
	in.Title = strings.TrimSpace(in.Title)
	if err := validateBook(in, false); err != nil {
		return "", err
	}
	msg, err := a.backend.AdminUpdateBook(ctx, isbn, in)
	if err != nil {
		return "", fmt.Errorf("update book: %w", err)
	}
	return msg, nil
}

func (a *App) Authors(ctx context.Context, sess Session) ([]domain.Author, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return a.backend.ListAuthors(ctx)
}

func (a *App) CreateAuthor(ctx context.Context, sess Session, name string) (string, error) {
	if err := requireAdmin(sess); err != nil {
		return "", err
	}
	v := validator.New()
	v.Check(validator.NotBlank(name), "author_name", "Author name is required")
	if err := v.Err(); err != nil {
		return "", err
	}
	return a.backend.CreateAuthor(ctx, strings.TrimSpace(name))
}

func (a *App) Publishers(ctx context.Context, sess Session) ([]domain.Publisher, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return a.backend.ListPublishers(ctx)
}

func (a *App) CreatePublisher(ctx context.Context, sess Session, p domain.Publisher) (string, error) {
	if err := requireAdmin(sess); err != nil {
		return "", err
	}
	p.Name = strings.TrimSpace(p.Name)
	v := validator.New()
	v.Check(p.Name != "", "name", "Publisher name is required")
	if err := v.Err(); err != nil {
		return "", err
	}
	return a.backend.CreatePublisher(ctx, p)
}

func (a *App) PublisherOrders(ctx context.Context, sess Session) ([]domain.PublisherOrder, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return a.backend.ListPublisherOrders(ctx)
}

// PlacePublisherOrder orders stock from a publisher. A zero quantity means
// the standard order of 50.
func (a *App) PlacePublisherOrder(ctx context.Context, sess Session, req bookstoreclient.PublisherOrderRequest) (bookstoreclient.PublisherOrderResult, error) {
	if err := requireAdmin(sess); err != nil {
		return bookstoreclient.PublisherOrderResult{}, err
	}
	if req.Quantity == 0 {
		req.Quantity = defaultPublisherOrderQuantity
	}
	req.ISBN = strings.TrimSpace(req.ISBN)
	v := validator.New()
	v.Check(req.ISBN != "", "ISBN", "is required")
	v.Check(req.PubID > 0, "PubID", "select a publisher")
	v.Check(req.Quantity > 0, "Quantity", "must be at least 1")
	if err := v.Err(); err != nil {
		return bookstoreclient.PublisherOrderResult{}, err
	}
	res, err := a.backend.CreatePublisherOrder(ctx, req)
	if err != nil {
		return bookstoreclient.PublisherOrderResult{}, fmt.Errorf("publisher order: %w", err)
	}
	return res, nil
}

func (a *App) ConfirmPublisherOrder(ctx context.Context, sess Session, orderID int) (string, error) {
	if err := requireAdmin(sess); err != nil {
		return "", err
	}
	if orderID <= 0 {
		return "", &validator.Error{Fields: map[string]string{"orderID": "is required"}}
	}
	return a.backend.ConfirmPublisherOrder(ctx, orderID)
}

func (a *App) Users(ctx context.Context, sess Session) ([]domain.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return a.backend.ListUsers(ctx)
}

func (a *App) PromoteUser(ctx context.Context, sess Session, userID int) (string, error) {
	if err := requireAdmin(sess); err != nil {
		return "", err
	}
	if userID <= 0 {
		return "", &validator.Error{Fields: map[string]string{"userID": "is required"}}
	}
	return a.backend.PromoteUser(ctx, userID)
}

func (a *App) SalesPrevMonth(ctx context.Context, sess Session) (domain.MonthlySales, error) {
	if err := requireAdmin(sess); err != nil {
		return domain.MonthlySales{}, err
	}
	return a.backend.SalesPrevMonth(ctx)
}

func (a *App) SalesDaily(ctx context.Context, sess Session, date string) (domain.DailySales, error) {
	if err := requireAdmin(sess); err != nil {
		return domain.DailySales{}, err
	}
	date = strings.TrimSpace(date)
	v := validator.New()
	v.Check(date != "", "date", "Please select a date")
	if err := v.Err(); err != nil {
		return domain.DailySales{}, err
	}
	sales, err := a.backend.SalesDaily(ctx, date)
	if err != nil {
		return domain.DailySales{}, err
	}
	if sales.Date == "" {
		sales.Date = date
	}
	return sales, nil
}

// TopReports fetches both rankings concurrently; either failing fails both.
func (a *App) TopReports(ctx context.Context, sess Session) (TopReports, error) {
	if err := requireAdmin(sess); err != nil {
		return TopReports{}, err
	}
	var out TopReports
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		customers, err := a.backend.TopCustomers(gctx)
		if err != nil {
			return fmt.Errorf("top customers: %w", err)
		}
		out.Customers = customers
		return nil
	})
	g.Go(func() error {
		books, err := a.backend.TopSellingBooks(gctx)
		if err != nil {
			return fmt.Errorf("top books: %w", err)
		}
		out.Books = books
		return nil
	})
	if err := g.Wait(); err != nil {
		return TopReports{}, err
	}
	if out.Customers == nil {
		out.Customers = []domain.TopCustomer{}
	}
	if out.Books == nil {
		out.Books = []domain.TopBook{}
	}
	return out, nil
}

func (a *App) BookReplenishments(ctx context.Context, sess Session, isbn string) (domain.Replenishment, error) {
	if err := requireAdmin(sess); err != nil {
		return domain.Replenishment{}, err
	}
	isbn = strings.TrimSpace(isbn)
	v := validator.New()
	v.Check(isbn != "", "isbn", "Please enter an ISBN")
	if err := v.Err(); err != nil {
		return domain.Replenishment{}, err
	}
	return a.backend.BookReplenishments(ctx, isbn)
}
