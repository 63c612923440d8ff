// Package bookstoretest runs an in-memory bookstore backend for tests.
package bookstoretest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"alexandria/pkg/domain"
	"alexandria/services/storefront/internal/bookstoreclient"
)

type account struct {
	password string
	user     domain.User
}

type failure struct {
	status int
	detail string
}

// Server mimics the bookstore REST API: additive cart writes, per-user
// AvailableStock and detail-string errors.
type Server struct {
	URL string

	mu        sync.Mutex
	books     []domain.Book
	accounts  map[string]account
	carts     map[int]map[string]int
	orders    map[int][]domain.Order
	nextUser  int
	nextOrder int
	calls     map[string]int
	bodies    map[string][]byte
	failures  map[string]failure
}

// New starts a backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		accounts:  make(map[string]account),
		carts:     make(map[int]map[string]int),
		orders:    make(map[int][]domain.Order),
		nextUser:  100,
		nextOrder: 1,
		calls:     make(map[string]int),
		bodies:    make(map[string][]byte),
		failures:  make(map[string]failure),
	}
	mux := http.NewServeMux()
	s.handle(mux, "POST /login", s.login)
	s.handle(mux, "POST /customer/signup", s.signup)
	s.handle(mux, "POST /customer/logout/{userID}", s.logout)
	s.handle(mux, "PUT /customer/profile/{userID}", s.message("Profile updated successfully"))
	s.handle(mux, "POST /customer/checkout", s.checkout)
	s.handle(mux, "GET /customer/orders/{userID}", s.listOrders)
	s.handle(mux, "GET /books/search", s.search)
	s.handle(mux, "GET /books/{isbn}", s.getBook)
	s.handle(mux, "POST /cart/add", s.addToCart)
	s.handle(mux, "GET /cart/{userID}", s.getCart)
	s.handle(mux, "DELETE /cart/remove", s.removeFromCart)
	s.handle(mux, "GET /admin/authors", s.static(`[{"authorID":1,"author_name":"Frank Herbert"}]`))
	s.handle(mux, "POST /admin/authors", s.message("Author added successfully"))
	s.handle(mux, "POST /admin/books", s.message("Book added successfully"))
	s.handle(mux, "POST /admin/publisher-orders", s.static(`{"message":"Order placed","orderID":9}`))
	s.handle(mux, "PUT /admin/confirm-order/{orderID}", s.message("Order confirmed"))
	s.handle(mux, "PUT /admin/users/{userID}/promote", s.message("User promoted to Admin"))
	s.handle(mux, "GET /admin/reports/sales-prev-month", s.static(`{"TotalSalesPrevMonth":null}`))
	s.handle(mux, "GET /admin/reports/top-customers", s.static(`[{"username":"alice","TotalSpent":"40.00"}]`))
	s.handle(mux, "GET /admin/reports/top-selling-books", s.static(`[{"Title":"Dune","TotalCopiesSold":"3"}]`))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	s.URL = srv.URL
	return s
}

// Client returns a bookstore client pointed at the server.
func (s *Server) Client() *bookstoreclient.Client {
	return bookstoreclient.NewClient(s.URL)
}

func (s *Server) AddBook(b domain.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.AvailableStock = nil
	s.books = append(s.books, b)
}

func (s *Server) AddUser(u domain.User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	s.accounts[u.Username] = account{password: password, user: u}
}

// SetCart puts qty units of isbn in the user's cart.
func (s *Server) SetCart(userID int, isbn string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart(userID)[isbn] = qty
}

func (s *Server) CartQuantity(userID int, isbn string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carts[userID][isbn]
}

// SetStock changes the physical stock of isbn, as an admin restock would.
func (s *Server) SetStock(isbn string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(isbn); i >= 0 {
		s.books[i].StockQuantity = qty
	}
}

// StockQuantity returns the physical stock of isbn.
func (s *Server) StockQuantity(isbn string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(isbn); i >= 0 {
		return s.books[i].StockQuantity
	}
	return 0
}

// Fail makes every request to route (a mux pattern such as "POST /cart/add")
// answer status with detail.
func (s *Server) Fail(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, detail: detail}
}

// Heal clears a failure set with Fail.
func (s *Server) Heal(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Calls counts requests to route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// LastBody returns the body of the most recent request to route.
func (s *Server) LastBody(route string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[route]
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.calls[pattern]++
		s.bodies[pattern] = body
		f, failing := s.failures[pattern]
		s.mu.Unlock()

		if failing {
			writeDetail(w, f.status, f.detail)
			return
		}
		h(w, r)
	})
}

func (s *Server) message(msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": msg})
	}
}

func (s *Server) static(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req bookstoreclient.LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	acct, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "user": acct.user})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req bookstoreclient.SignupRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.user.Username == req.Username {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("1062 (23000): Duplicate entry '%s' for key 'users.username'", req.Username))
			return
		}
		if acct.user.Email == req.Email {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("1062 (23000): Duplicate entry '%s' for key 'users.email'", req.Email))
			return
		}
	}
	s.nextUser++
	s.accounts[req.Username] = account{password: req.Password, user: domain.User{
		UserID: s.nextUser, Username: req.Username, Role: domain.RoleCustomer,
		FirstName: req.FirstName, LastName: req.LastName, Email: req.Email,
	}}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User registered successfully", "userID": s.nextUser})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.PathValue("userID"))
	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req bookstoreclient.CheckoutRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[req.UserID]
	if len(cart) == 0 {
		writeDetail(w, http.StatusBadRequest, "Cart is empty")
		return
	}
	total := decimal.Zero
	var titles []string
	for isbn, qty := range cart {
		i := s.indexOf(isbn)
		if i < 0 || s.books[i].StockQuantity < qty {
			writeDetail(w, http.StatusBadRequest, "Not enough stock for "+isbn)
			return
		}
		total = total.Add(s.books[i].Price.Mul(decimal.NewFromInt(int64(qty))))
		titles = append(titles, s.books[i].Title)
	}
	for isbn, qty := range cart {
		s.books[s.indexOf(isbn)].StockQuantity -= qty
	}
	delete(s.carts, req.UserID)
	id := s.nextOrder
	s.nextOrder++
	slices.Sort(titles)
	s.orders[req.UserID] = append(s.orders[req.UserID], domain.Order{
		OrderID: id, OrderDate: "2026-01-01", TotalPrice: total, Status: "Completed", Items: strings.Join(titles, ", "),
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Order placed successfully", "orderID": id})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.PathValue("userID"))
	s.mu.Lock()
	orders := s.orders[userID]
	s.mu.Unlock()
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, _ := strconv.Atoi(q.Get("userID"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Book{}
	for _, b := range s.books {
		if t := q.Get("title"); t != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(t)) {
			continue
		}
		if c := q.Get("category"); c != "" && b.Category != c {
			continue
		}
		if isbn := q.Get("isbn"); isbn != "" && b.ISBN != isbn {
			continue
		}
		out = append(out, s.view(b, userID))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.URL.Query().Get("userID"))
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(r.PathValue("isbn"))
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Book not found")
		return
	}
	writeJSON(w, http.StatusOK, s.view(s.books[i], userID))
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.URL.Query().Get("userID"))
	var item struct {
		ISBN     string `json:"ISBN"`
		Quantity int    `json:"Quantity"`
	}
	_ = json.NewDecoder(r.Body).Decode(&item)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(item.ISBN)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Book not found")
		return
	}
	cart := s.cart(userID)
	next := cart[item.ISBN] + item.Quantity
	if next > s.books[i].StockQuantity {
		writeDetail(w, http.StatusBadRequest, "Not enough stock for "+s.books[i].Title)
		return
	}
	if next <= 0 {
		delete(cart, item.ISBN)
	} else {
		cart[item.ISBN] = next
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item added to cart"})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.PathValue("userID"))
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := domain.Cart{Items: []domain.CartLine{}, CartTotal: decimal.Zero}
	isbns := make([]string, 0, len(s.carts[userID]))
	for isbn := range s.carts[userID] {
		isbns = append(isbns, isbn)
	}
	slices.Sort(isbns)
	for _, isbn := range isbns {
		b := s.books[s.indexOf(isbn)]
		qty := s.carts[userID][isbn]
		line := domain.CartLine{
			ISBN: isbn, Title: b.Title, Quantity: qty, Price: b.Price,
			TotalItemPrice: b.Price.Mul(decimal.NewFromInt(int64(qty))),
		}
		cart.Items = append(cart.Items, line)
		cart.CartTotal = cart.CartTotal.Add(line.TotalItemPrice)
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, _ := strconv.Atoi(q.Get("userID"))
	isbn := q.Get("isbn")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[userID][isbn]; !ok {
		writeDetail(w, http.StatusNotFound, "Item not found in cart")
		return
	}
	delete(s.carts[userID], isbn)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item removed from cart"})
}

// view computes AvailableStock for userID; callers hold s.mu.
func (s *Server) view(b domain.Book, userID int) domain.Book {
	if userID > 0 {
		avail := b.StockQuantity - s.carts[userID][b.ISBN]
		b.AvailableStock = &avail
	}
	return b
}

func (s *Server) indexOf(isbn string) int {
	return slices.IndexFunc(s.books, func(b domain.Book) bool { return b.ISBN == isbn })
}

func (s *Server) cart(userID int) map[string]int {
	c, ok := s.carts[userID]
	if !ok {
		c = make(map[string]int)
		s.carts[userID] = c
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
