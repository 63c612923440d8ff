// Package stock derives the quantity a viewer may still add to the cart
// from the last fetched catalog record.
package stock

import "alexandria/pkg/domain"

// DisplayStock returns the stock shown to the viewer: AvailableStock when the
// backend computed it, StockQuantity otherwise. The result is clamped to
// [0, StockQuantity].
func DisplayStock(book domain.Book) int {
	n := book.StockQuantity
	if book.AvailableStock != nil {
		n = *book.AvailableStock
	}
	if n > book.StockQuantity {
		n = book.StockQuantity
	}
	if n < 0 {
		return 0
	}
	return n
}

// CanAdd reports whether qty units may be added to the cart.
func CanAdd(book domain.Book, qty int) bool {
	return qty >= 1 && DisplayStock(book) >= qty
}

// Consistent reports whether the record honors AvailableStock <= StockQuantity.
func Consistent(book domain.Book) bool {
	if book.StockQuantity < 0 {
		return false
	}
	return book.AvailableStock == nil || *book.AvailableStock <= book.StockQuantity
}
