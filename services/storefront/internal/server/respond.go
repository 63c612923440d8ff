package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"alexandria/internal/util"
	"alexandria/internal/validator"
	"alexandria/pkg/domain"
	"alexandria/pkg/stock"
	"alexandria/services/storefront/internal/app"
	"alexandria/services/storefront/internal/bookstoreclient"
)

const maxBodyBytes = 1 << 20

var errInvalidJSON = errors.New("invalid JSON body")

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Cart   *domain.Cart      `json:"cart,omitempty"`
}

// bookView is a catalog record plus the stock the viewer may still add.
type bookView struct {
	domain.Book
	DisplayStock int `json:"displayStock"`
}

func viewOf(b domain.Book) bookView {
	return bookView{Book: b, DisplayStock: stock.DisplayStock(b)}
}

func viewsOf(books []domain.Book) []bookView {
	out := make([]bookView, 0, len(books))
	for _, b := range books {
		out = append(out, viewOf(b))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a bounded JSON body. An empty body leaves dst untouched
// when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return nil
	}
	return errInvalidJSON
}

// statusFor maps core and backend errors onto HTTP statuses.
func statusFor(err error) int {
	var verr *validator.Error
	switch {
	case errors.As(err, &verr),
		errors.Is(err, app.ErrInvalidQuantity),
		errors.Is(err, app.ErrEmptyCart),
		errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, app.ErrLineBusy), errors.Is(err, app.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, app.ErrNotCached):
		return http.StatusNotFound
	}
	switch bookstoreclient.KindOf(err) {
	case bookstoreclient.KindValidation:
		return http.StatusBadRequest
	case bookstoreclient.KindNotFound:
		return http.StatusNotFound
	case bookstoreclient.KindUnauthorized:
		return http.StatusUnauthorized
	case bookstoreclient.KindInsufficientStock, bookstoreclient.KindDuplicateField:
		return http.StatusConflict
	case bookstoreclient.KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeAppError reports err with its user-facing message. cart, when set,
// is the authoritative cart reloaded after a failed write.
func writeAppError(w http.ResponseWriter, r *http.Request, err error, fallback string, cart *domain.Cart) {
	status := statusFor(err)
	resp := errorResponse{Error: app.UserMessageOr(err, fallback), Cart: cart}
	if errors.Is(err, errInvalidJSON) {
		resp.Error = errInvalidJSON.Error()
	}
	var verr *validator.Error
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, resp)
}
