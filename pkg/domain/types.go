package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleCustomer UserRole = "Customer"
	RoleAdmin    UserRole = "Admin"
)

// Categories accepted by the catalog.
var Categories = []string{"Science", "Art", "Religion", "History", "Geography"}

type Author struct {
	AuthorID int    `json:"authorID"`
	Name     string `json:"author_name"`
}

type Publisher struct {
	PubID   int    `json:"PubID,omitempty"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Book is the backend's catalog record. StockQuantity is physical stock;
// AvailableStock is present only when the search was made on behalf of a
// user and excludes that user's own cart reservation.
type Book struct {
	ISBN           string          `json:"ISBN"`
	Title          string          `json:"Title"`
	Category       string          `json:"category,omitempty"`
	PubYear        int             `json:"pubYear,omitempty"`
	Price          decimal.Decimal `json:"Price"`
	StockQuantity  int             `json:"StockQuantity"`
	Threshold      int             `json:"threshold,omitempty"`
	PubID          int             `json:"PubID,omitempty"`
	AvailableStock *int            `json:"AvailableStock,omitempty"`
	Authors        []Author        `json:"authors,omitempty"`
	Publisher      *Publisher      `json:"publisher,omitempty"`
}

type CartLine struct {
	ISBN           string          `json:"ISBN"`
	Title          string          `json:"Title"`
	Quantity       int             `json:"Quantity"`
	Price          decimal.Decimal `json:"Price"`
	TotalItemPrice decimal.Decimal `json:"TotalItemPrice"`
}

// Cart is replaced wholesale on every fetch; the backend owns it.
type Cart struct {
	Items     []CartLine      `json:"items"`
	CartTotal decimal.Decimal `json:"cart_total"`
}

// Line returns the cart line for isbn.
func (c Cart) Line(isbn string) (CartLine, bool) {
	for _, line := range c.Items {
		if line.ISBN == isbn {
			return line, true
		}
	}
	return CartLine{}, false
}

// Quantity returns the quantity held for isbn, zero when absent.
func (c Cart) Quantity(isbn string) int {
	line, _ := c.Line(isbn)
	return line.Quantity
}

type User struct {
	UserID    int      `json:"userID"`
	Username  string   `json:"username"`
	Role      UserRole `json:"Role"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Address   string   `json:"address,omitempty"`
}

// IsAdmin reports whether the user may use the admin console.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Order struct {
	OrderID    int             `json:"orderID"`
	OrderDate  string          `json:"orderDate"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     string          `json:"status"`
	Items      string          `json:"items"`
}

type PublisherOrder struct {
	OrderID       int    `json:"orderID"`
	OrderDate     string `json:"orderDate"`
	ISBN          string `json:"ISBN"`
	Title         string `json:"Title"`
	PubID         int    `json:"PubID,omitempty"`
	PublisherName string `json:"publisher_name"`
	Quantity      int    `json:"Quantity"`
	StockQuantity int    `json:"StockQuantity"`
	Threshold     int    `json:"threshold"`
	Status        string `json:"status"`
}

type MonthlySales struct {
	TotalSalesPrevMonth decimal.Decimal `json:"TotalSalesPrevMonth"`
}

type DailySales struct {
	Date       string          `json:"date,omitempty"`
	DailyTotal decimal.Decimal `json:"DailyTotal"`
}

type TopCustomer struct {
	Username   string          `json:"username"`
	TotalSpent decimal.Decimal `json:"TotalSpent"`
}

type TopBook struct {
	Title           string          `json:"Title"`
	TotalCopiesSold decimal.Decimal `json:"TotalCopiesSold"`
}

type Replenishment struct {
	Title                   string          `json:"Title"`
	ReplenishmentOrderCount int             `json:"ReplenishmentOrderCount"`
	TotalRestocked          decimal.Decimal `json:"TotalRestocked"`
}

// SessionRecord is what the storefront persists for a signed-in viewer.
type SessionRecord struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
