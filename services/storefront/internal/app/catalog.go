package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"alexandria/internal/util"
	"alexandria/internal/validator"
	"alexandria/pkg/domain"
	"alexandria/pkg/stock"
	"alexandria/services/storefront/internal/bookstoreclient"
)

// SearchInput is the catalog search form. Empty fields are not filters.
type SearchInput struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	ISBN     string `json:"isbn"`
	Author   string `json:"author"`
}

// ListingAdd is the outcome of adding from the search results.
type ListingAdd struct {
	Book    domain.Book
	Cart    domain.Cart
	Message string
}

// Search queries the catalog. For a signed-in viewer the backend reports
// AvailableStock and the results are kept for in-place stock patches.
func (a *App) Search(ctx context.Context, sess *Session, in SearchInput) ([]domain.Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Author = strings.TrimSpace(in.Author)

	v := validator.New()
	if in.Category != "" {
		v.Check(validator.In(in.Category, domain.Categories...), "category", "is not a known category")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	q := bookstoreclient.SearchQuery{Title: in.Title, Category: in.Category, ISBN: in.ISBN, Author: in.Author}
	if sess != nil {
		q.UserID = sess.User().UserID
	}
	books, err := a.backend.SearchBooks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	if sess != nil {
		a.results.Store(sess.ID(), books)
	}
	return books, nil
}

// Results returns the session's last search results with any stock patches.
func (a *App) Results(sess Session) []domain.Book {
	books, ok := a.results.Get(sess.ID())
	if !ok {
		return []domain.Book{}
	}
	return books
}

// BookDetails loads one book with authors and publisher.
func (a *App) BookDetails(ctx context.Context, sess *Session, isbn string) (domain.Book, error) {
	userID := 0
	if sess != nil {
		userID = sess.User().UserID
	}
	book, err := a.backend.GetBook(ctx, isbn, userID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// AddFromListing adds qty units of a listed book. A request the displayed
// stock cannot cover is refused without a cart write; a cached entry is
// refetched once before refusing. After a committed add the cached entry is
// patched; after a failed one it is refetched.
func (a *App) AddFromListing(ctx context.Context, sess Session, isbn string, qty int) (ListingAdd, error) {
	if qty < 1 {
		return ListingAdd{}, ErrInvalidQuantity
	}
	userID := sess.User().UserID
	book, cached := a.results.Lookup(sess.ID(), isbn)
	if !cached {
		fetched, err := a.backend.GetBook(ctx, isbn, userID)
		if err != nil {
			return ListingAdd{}, fmt.Errorf("get book: %w", err)
		}
		book = fetched
	}
	refetch := a.refetcher(userID)
	if !stock.CanAdd(book, qty) && cached {
		// The cached entry may predate a restock; refuse only on fresh stock.
		if fresh, err := a.results.Invalidate(ctx, sess.ID(), isbn, refetch); err == nil {
			book = fresh
		}
	}
	if !stock.CanAdd(book, qty) {
		return ListingAdd{Book: book}, fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, qty, stock.DisplayStock(book))
	}

	res, err := a.cart.AddUnits(ctx, userID, isbn, qty)
	if committed(res, err) {
		out := ListingAdd{Cart: res.Cart, Message: "Item added to cart"}
		patched, patchErr := a.results.PatchAfterAdd(sess.ID(), isbn, qty, res.AvailableStock)
		switch {
		case patchErr == nil:
			out.Book = patched
		case errors.Is(patchErr, ErrNotCached):
			out.Book = patchLocal(book, qty, res.AvailableStock)
		default:
			util.LoggerFromContext(ctx).Warn("result patch failed; refetching",
				slog.String("isbn", isbn),
				slog.String("err", patchErr.Error()),
			)
			out.Book = book
			if fresh, ferr := a.results.Invalidate(ctx, sess.ID(), isbn, refetch); ferr == nil {
				out.Book = fresh
			}
		}
		return out, err
	}

	if res.State == LineRolledBack {
		if fresh, ferr := a.results.Invalidate(ctx, sess.ID(), isbn, refetch); ferr == nil {
			book = fresh
		}
	}
	return ListingAdd{Book: book, Cart: res.Cart}, err
}

// Cart loads the viewer's cart.
func (a *App) Cart(ctx context.Context, sess Session) (domain.Cart, error) {
	cart, err := a.backend.GetCart(ctx, sess.User().UserID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// SetCartQuantity moves a cart line to desired units. currentQty is the
// quantity the viewer last saw, which the additive write is computed from.
func (a *App) SetCartQuantity(ctx context.Context, sess Session, isbn string, currentQty, desiredQty int) (MutationResult, error) {
	res, err := a.cart.SetLineQuantity(ctx, sess.User().UserID, isbn, currentQty, desiredQty)
	if res.Delta != 0 {
		a.refreshListing(ctx, sess, isbn)
	}
	return res, err
}

// RemoveFromCart deletes a cart line.
func (a *App) RemoveFromCart(ctx context.Context, sess Session, isbn string) (MutationResult, error) {
	res, err := a.cart.RemoveLine(ctx, sess.User().UserID, isbn)
	if res.State == LineCommitted {
		a.refreshListing(ctx, sess, isbn)
	}
	return res, err
}

// LineState reports whether a mutation for the viewer's line is in flight.
func (a *App) LineState(sess Session, isbn string) LineState {
	return a.cart.LineState(sess.User().UserID, isbn)
}

// refreshListing refetches a cached listing entry after the cart changed
// its reservation elsewhere.
func (a *App) refreshListing(ctx context.Context, sess Session, isbn string) {
	if _, ok := a.results.Lookup(sess.ID(), isbn); !ok {
		return
	}
	_, _ = a.results.Invalidate(ctx, sess.ID(), isbn, a.refetcher(sess.User().UserID))
}

func (a *App) refetcher(userID int) Refetch {
	return func(ctx context.Context, isbn string) (domain.Book, error) {
		return a.backend.GetBook(ctx, isbn, userID)
	}
}

func patchLocal(book domain.Book, qty int, serverAvailable *int) domain.Book {
	patched, err := PatchAfterAdd([]domain.Book{book}, book.ISBN, qty, serverAvailable)
	if err != nil {
		return book
	}
	return patched[0]
}
