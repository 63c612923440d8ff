package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"alexandria/internal/validator"
	"alexandria/pkg/domain"
	"alexandria/services/storefront/internal/app"
)

type listingAddRequest struct {
	Quantity *int `json:"quantity"`
}

type listingAddResponse struct {
	Message string      `json:"message"`
	Warning string      `json:"warning,omitempty"`
	Book    bookView    `json:"book"`
	Cart    domain.Cart `json:"cart"`
}

// setQuantityRequest is the shown and the desired line quantity. Both are
// required; the write sent is Quantity - CurrentQuantity.
type setQuantityRequest struct {
	CurrentQuantity *int `json:"currentQuantity"`
	Quantity        *int `json:"quantity"`
}

type cartMutationResponse struct {
	Cart    domain.Cart   `json:"cart"`
	State   app.LineState `json:"state"`
	Delta   int           `json:"delta"`
	Warning string        `json:"warning,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	q := r.URL.Query()
	books, err := s.app.Search(r.Context(), sess, app.SearchInput{
		Title:    q.Get("title"),
		Category: q.Get("category"),
		ISBN:     q.Get("isbn"),
		Author:   q.Get("author"),
	})
	if err != nil {
		writeAppError(w, r, err, "Search failed. Please try again.", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": viewsOf(books),
		"count": len(books),
	})
}

func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request, sess app.Session) {
	books := s.app.Results(sess)
	writeJSON(w, http.StatusOK, map[string]any{
		"items": viewsOf(books),
		"count": len(books),
	})
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	book, err := s.app.BookDetails(r.Context(), sess, chi.URLParam(r, "isbn"))
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(book))
}

func (s *Server) handleAddFromListing(w http.ResponseWriter, r *http.Request, sess app.Session) {
	var req listingAddRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	out, err := s.app.AddFromListing(r.Context(), sess, chi.URLParam(r, "isbn"), qty)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, listingAddResponse{Message: out.Message, Book: viewOf(out.Book), Cart: out.Cart})
	case errors.Is(err, app.ErrReloadFailed):
		writeJSON(w, http.StatusOK, listingAddResponse{
			Message: out.Message,
			Warning: app.UserMessage(err),
			Book:    viewOf(out.Book),
			Cart:    out.Cart,
		})
	default:
		var cart *domain.Cart
		if out.Cart.Items != nil {
			cart = &out.Cart
		}
		writeAppError(w, r, err, "Failed to add to cart.", cart)
	}
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request, sess app.Session) {
	cart, err := s.app.Cart(r.Context(), sess)
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handleSetCartQuantity(w http.ResponseWriter, r *http.Request, sess app.Session) {
	var req setQuantityRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	v := validator.New()
	v.Check(req.CurrentQuantity != nil, "currentQuantity", "is required")
	v.Check(req.Quantity != nil, "quantity", "is required")
	if err := v.Err(); err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	res, err := s.app.SetCartQuantity(r.Context(), sess, chi.URLParam(r, "isbn"), *req.CurrentQuantity, *req.Quantity)
	s.writeMutation(w, r, sess, res, err, "Failed to update quantity.")
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request, sess app.Session) {
	res, err := s.app.RemoveFromCart(r.Context(), sess, chi.URLParam(r, "isbn"))
	s.writeMutation(w, r, sess, res, err, "Failed to remove item.")
}

func (s *Server) writeMutation(w http.ResponseWriter, r *http.Request, sess app.Session, res app.MutationResult, err error, fallback string) {
	resp := cartMutationResponse{Cart: res.Cart, State: res.State, Delta: res.Delta}
	switch {
	case err == nil:
		if !res.Reloaded {
			// Unchanged quantity: nothing was sent, so load the cart to answer.
			cart, cerr := s.app.Cart(r.Context(), sess)
			if cerr != nil {
				writeAppError(w, r, cerr, "", nil)
				return
			}
			resp.Cart = cart
		}
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, app.ErrReloadFailed):
		resp.Warning = app.UserMessage(err)
		writeJSON(w, http.StatusOK, resp)
	default:
		var cart *domain.Cart
		if res.Reloaded {
			cart = &res.Cart
		}
		writeAppError(w, r, err, fallback, cart)
	}
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, sess app.Session) {
	var req app.CheckoutInput
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	res, err := s.app.Checkout(r.Context(), sess, req)
	if err != nil {
		writeAppError(w, r, err, "Checkout failed. Please try again.", nil)
		return
	}
	s.audit(r, "storefront.checkout", "success", "user_id", sess.User().UserID, "order_id", res.OrderID)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request, sess app.Session) {
	orders, err := s.app.Orders(r.Context(), sess)
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": orders,
		"count": len(orders),
	})
}
