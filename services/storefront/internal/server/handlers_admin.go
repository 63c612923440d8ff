package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"alexandria/internal/validator"
	"alexandria/pkg/domain"
	"alexandria/services/storefront/internal/app"
	"alexandria/services/storefront/internal/bookstoreclient"
)

type messageResponse struct {
	Message string `json:"message"`
}

type authorRequest struct {
	Name string `json:"author_name"`
}

func (s *Server) handleAdminBook(w http.ResponseWriter, r *http.Request, sess app.Session) {
	book, err := s.app.AdminBook(r.Context(), sess, chi.URLParam(r, "isbn"))
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleAdminCreateBook(w http.ResponseWriter, r *http.Request, sess app.Session) {
	var req bookstoreclient.BookInput
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	msg, err := s.app.CreateBook(r.Context(), sess, req)
	if err != nil {
		writeAppError(w, r, err, "Failed to add book.", nil)
		return
	}
	s.audit(r, "storefront.admin.book.create", "success", "user_id", sess.User().UserID, "isbn", req.ISBN)
	writeJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

func (s *Server) handleAdminUpdateBook(w http.ResponseWriter, r *http.Request, sess app.Session) {
	var req bookstoreclient.BookInput
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	isbn := chi.URLParam(r, "isbn")
	msg, err := s.app.UpdateBook(r.Context(), sess, isbn, req)
	if err != nil {
		writeAppError(w, r, err, "Failed to update book.", nil)
		return
	}
	s.audit(r, "storefront.admin.book.update", "success", "user_id", sess.User().UserID, "isbn", isbn)
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleAdminAuthors(w http.ResponseWriter, r *http.Request, sess app.Session) {
	authors, err := s.app.Authors(r.Context(), sess)
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	if authors == nil {
		authors = []domain.Author{}
	}
	writeJSON(w, http.StatusOK, authors)
}

func (s *Server) handleAdminCreateAuthor(w http.ResponseWriter, r *http.Request, sess app.Session) {
	var req authorRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	msg, err := s.app.CreateAuthor(r.Context(), sess, req.Name)
	if err != nil {
		writeAppError(w, r, err, "Failed to add author.", nil)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

func (s *Server) handleAdminPublishers(w http.ResponseWriter, r *http.Request, sess app.Session) {
	pubs, err := s.app.Publishers(r.Context(), sess)
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	if pubs == nil {
		pubs = []domain.Publisher{}
	}
	writeJSON(w, http.StatusOK, pubs)
}

func (s *Server) handleAdminCreatePublisher(w http.ResponseWriter, r *http.Request, sess app.Session) {
	var req domain.Publisher
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	msg, err := s.app.CreatePublisher(r.Context(), sess, req)
	if err != nil {
		writeAppError(w, r, err, "Failed to add publisher.", nil)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

func (s *Server) handleAdminPublisherOrders(w http.ResponseWriter, r *http.Request, sess app.Session) {
	orders, err := s.app.PublisherOrders(r.Context(), sess)
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	if orders == nil {
		orders = []domain.PublisherOrder{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleAdminPlacePublisherOrder(w http.ResponseWriter, r *http.Request, sess app.Session) {
	var req bookstoreclient.PublisherOrderRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	res, err := s.app.PlacePublisherOrder(r.Context(), sess, req)
	if err != nil {
		writeAppError(w, r, err, "Failed to place order.", nil)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleAdminConfirmPublisherOrder(w http.ResponseWriter, r *http.Request, sess app.Session) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	msg, err := s.app.ConfirmPublisherOrder(r.Context(), sess, orderID)
	if err != nil {
		writeAppError(w, r, err, "Failed to confirm order.", nil)
		return
	}
	s.audit(r, "storefront.admin.order.confirm", "success", "user_id", sess.User().UserID, "order_id", orderID)
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, sess app.Session) {
	users, err := s.app.Users(r.Context(), sess)
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleAdminPromoteUser(w http.ResponseWriter, r *http.Request, sess app.Session) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	msg, err := s.app.PromoteUser(r.Context(), sess, userID)
	if err != nil {
		writeAppError(w, r, err, "Failed to promote user.", nil)
		return
	}
	s.audit(r, "storefront.admin.user.promote", "success", "user_id", sess.User().UserID, "target_user_id", userID)
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleReportSalesPrevMonth(w http.ResponseWriter, r *http.Request, sess app.Session) {
	sales, err := s.app.SalesPrevMonth(r.Context(), sess)
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *Server) handleReportSalesDaily(w http.ResponseWriter, r *http.Request, sess app.Session) {
	sales, err := s.app.SalesDaily(r.Context(), sess, r.URL.Query().Get("date"))
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *Server) handleReportTop(w http.ResponseWriter, r *http.Request, sess app.Session) {
	reports, err := s.app.TopReports(r.Context(), sess)
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleReportReplenishments(w http.ResponseWriter, r *http.Request, sess app.Session) {
	rep, err := s.app.BookReplenishments(r.Context(), sess, r.URL.Query().Get("isbn"))
	if err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeAppError(w, r, &validator.Error{Fields: map[string]string{name: "must be a positive integer"}}, "", nil)
		return 0, false
	}
	return id, true
}
