package app

import (
	"errors"

	"alexandria/internal/validator"
	"alexandria/services/storefront/internal/bookstoreclient"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrLineBusy          = errors.New("cart line update already in progress")
	ErrReloadFailed      = errors.New("cart changed but could not be reloaded")
	ErrInsufficientStock = errors.New("not enough stock available")
	ErrDuplicateISBN     = errors.New("result set holds the same ISBN more than once")
	ErrNotCached         = errors.New("book is not in the cached results")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// UserMessage turns an error into the text shown to the shopper.
func UserMessage(err error) string {
	return UserMessageOr(err, "Request failed. Please try again.")
}

// UserMessageOr is UserMessage with a caller-chosen text for backend
// rejections that carry no detail.
func UserMessageOr(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var verr *validator.Error
	if errors.As(err, &verr) {
		return "Please correct the highlighted fields."
	}
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return "Quantity must be at least 1."
	case errors.Is(err, ErrLineBusy):
		return "This item is already being updated."
	case errors.Is(err, ErrInsufficientStock):
		return "Not enough stock available."
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, ErrUnauthorized):
		return "Please login to continue."
	case errors.Is(err, ErrForbidden):
		return "Admin access required."
	case errors.Is(err, ErrReloadFailed):
		return "Your cart was updated but could not be refreshed. Please reload."
	}

	var apiErr *bookstoreclient.Error
	if !errors.As(err, &apiErr) {
		return "Something went wrong. Please try again."
	}
	switch apiErr.Kind {
	case bookstoreclient.KindDuplicateField:
		switch apiErr.Field {
		case "email":
			return "This email address is already registered. Please try logging in."
		case "username":
			return "This username is taken. Please choose another one."
		}
	case bookstoreclient.KindTransport:
		return "The bookstore is unavailable. Please try again."
	case bookstoreclient.KindNotFound:
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return "Not found."
	}
	if apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}
