package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"alexandria/pkg/domain"
)

func intPtr(v int) *int { return &v }

func TestDisplayStock(t *testing.T) {
	tests := []struct {
		name string
		book domain.Book
		want int
	}{
		{name: "falls back to stock quantity", book: domain.Book{StockQuantity: 5}, want: 5},
		{name: "prefers available stock", book: domain.Book{StockQuantity: 5, AvailableStock: intPtr(3)}, want: 3},
		{name: "available stock zero", book: domain.Book{StockQuantity: 5, AvailableStock: intPtr(0)}, want: 0},
		{name: "negative available clamps to zero", book: domain.Book{StockQuantity: 5, AvailableStock: intPtr(-2)}, want: 0},
		{name: "negative stock clamps to zero", book: domain.Book{StockQuantity: -1}, want: 0},
		{name: "never exceeds authoritative stock", book: domain.Book{StockQuantity: 2, AvailableStock: intPtr(9)}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayStock(tt.book))
		})
	}
}

func TestDisplayStockNeverNegative(t *testing.T) {
	for stockQty := -3; stockQty <= 3; stockQty++ {
		for avail := -3; avail <= 3; avail++ {
			b := domain.Book{StockQuantity: stockQty, AvailableStock: intPtr(avail)}
			got := DisplayStock(b)
			if got < 0 {
				t.Fatalf("DisplayStock(%d, %d) = %d, want >= 0", stockQty, avail, got)
			}
			if stockQty >= 0 && got > stockQty {
				t.Fatalf("DisplayStock(%d, %d) = %d, want <= %d", stockQty, avail, got, stockQty)
			}
		}
	}
}

func TestCanAdd(t *testing.T) {
	book := domain.Book{StockQuantity: 5, AvailableStock: intPtr(2)}
	assert.True(t, CanAdd(book, 1))
	assert.True(t, CanAdd(book, 2))
	assert.False(t, CanAdd(book, 3))
	assert.False(t, CanAdd(book, 0))
	assert.False(t, CanAdd(book, -1))

	soldOut := domain.Book{StockQuantity: 4, AvailableStock: intPtr(0)}
	assert.False(t, CanAdd(soldOut, 1))
}

func TestConsistent(t *testing.T) {
	assert.True(t, Consistent(domain.Book{StockQuantity: 3}))
	assert.True(t, Consistent(domain.Book{StockQuantity: 3, AvailableStock: intPtr(3)}))
	assert.False(t, Consistent(domain.Book{StockQuantity: 3, AvailableStock: intPtr(4)}))
	assert.False(t, Consistent(domain.Book{StockQuantity: -1}))
}
