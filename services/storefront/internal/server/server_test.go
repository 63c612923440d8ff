package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alexandria/pkg/domain"
	"alexandria/services/storefront/internal/app"
	"alexandria/services/storefront/internal/bookstoretest"
	"alexandria/services/storefront/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv     *httptest.Server
	backend *bookstoretest.Server
}

func newTestEnv(t *testing.T, tweak func(*Config)) *testEnv {
	t.Helper()
	backend := bookstoretest.New(t)
	backend.AddBook(domain.Book{ISBN: "111", Title: "Dune", Category: "Science", Price: decimal.RequireFromString("10.00"), StockQuantity: 5})
	backend.AddBook(domain.Book{ISBN: "222", Title: "Emma", Category: "Art", Price: decimal.RequireFromString("7.50"), StockQuantity: 1})
	backend.AddUser(domain.User{UserID: 7, Username: "alice", Email: "alice@example.com"}, "secret1")
	backend.AddUser(domain.User{UserID: 1, Username: "root", Role: domain.RoleAdmin}, "rootpw")

	codec, err := store.NewTokenCodec(testSecret, "", time.Hour)
	require.NoError(t, err)
	core, err := app.New(app.Config{
		Backend:  backend.Client(),
		Sessions: store.NewMemorySessionStore(time.Hour),
		Tokens:   codec,
	})
	require.NoError(t, err)

	cfg := Config{App: core}
	if tweak != nil {
		tweak(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, backend: backend}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func firstItem(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, items)
	return items[0].(map[string]any)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestLoginSetsSessionCookie(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "alexandria_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/users/me", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	me, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)
	assert.Equal(t, "no-store", me.Header.Get("Cache-Control"))
}

func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid username or password", body["error"])
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/api/cart", "/api/orders", "/api/users/me", "/api/books/results"} {
		resp, _ := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
	resp, _ := env.do(t, http.MethodGet, "/api/cart", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	customer := env.login(t, "alice", "secret1")
	resp, _ := env.do(t, http.MethodGet, "/api/admin/users", customer, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := env.login(t, "root", "rootpw")
	resp, body := env.do(t, http.MethodGet, "/api/admin/reports/top", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["topCustomers"], 1)
}

func TestListingAddPatchesResults(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "alice", "secret1")

	resp, body := env.do(t, http.MethodGet, "/api/books/search?title=dune", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 5, firstItem(t, body)["displayStock"])

	resp, body = env.do(t, http.MethodPost, "/api/books/111/cart", token, map[string]int{"quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	book := body["book"].(map[string]any)
	assert.EqualValues(t, 3, book["displayStock"])
	assert.EqualValues(t, 5, book["StockQuantity"])

	resp, body = env.do(t, http.MethodGet, "/api/books/results", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, firstItem(t, body)["displayStock"])
	assert.Equal(t, 1, env.backend.Calls("GET /books/search"))
}

func TestListingAddBeyondStockIsRefused(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "alice", "secret1")
	env.do(t, http.MethodGet, "/api/books/search", token, nil)

	resp, body := env.do(t, http.MethodPost, "/api/books/222/cart", token, map[string]int{"quantity": 2})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Not enough stock available.", body["error"])
	assert.Zero(t, env.backend.Calls("POST /cart/add"))
}

func TestSetQuantityRollbackReturnsServerCart(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "alice", "secret1")
	env.backend.SetCart(7, "111", 1)
	env.backend.Fail("POST /cart/add", http.StatusBadRequest, "Not enough stock for Dune")

	resp, body := env.do(t, http.MethodPut, "/api/cart/111", token, map[string]int{"currentQuantity": 1, "quantity": 3})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Not enough stock for Dune", body["error"])
	cart, ok := body["cart"].(map[string]any)
	require.True(t, ok)
	items := cart["items"].([]any)
	require.Len(t, items, 1)
	assert.EqualValues(t, 1, items[0].(map[string]any)["Quantity"])
}

func TestSetQuantityBelowOneIsRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "alice", "secret1")
	resp, _ := env.do(t, http.MethodPut, "/api/cart/111", token, map[string]int{"currentQuantity": 1, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, env.backend.Calls("POST /cart/add"))
}

func TestSetQuantityRequiresCurrentQuantity(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "alice", "secret1")
	env.backend.SetCart(7, "111", 2)

	resp, body := env.do(t, http.MethodPut, "/api/cart/111", token, map[string]int{"quantity": 3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "currentQuantity")
	assert.Zero(t, env.backend.Calls("POST /cart/add"))
	assert.Equal(t, 2, env.backend.CartQuantity(7, "111"))

	resp, _ = env.do(t, http.MethodPut, "/api/cart/111", token, map[string]int{"currentQuantity": 2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, env.backend.Calls("POST /cart/add"))
}

func TestSetQuantityMovesLineToDesired(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "alice", "secret1")
	env.backend.SetCart(7, "111", 2)

	resp, body := env.do(t, http.MethodPut, "/api/cart/111", token, map[string]int{"currentQuantity": 2, "quantity": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["delta"])
	assert.Equal(t, 3, env.backend.CartQuantity(7, "111"))
}

func TestRemoveFromCart(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "alice", "secret1")
	env.backend.SetCart(7, "111", 2)

	resp, body := env.do(t, http.MethodDelete, "/api/cart/111", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(app.LineCommitted), body["state"])
	assert.Zero(t, env.backend.CartQuantity(7, "111"))
}

func TestCheckoutValidationFields(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "alice", "secret1")
	resp, body := env.do(t, http.MethodPost, "/api/checkout", token, map[string]string{"card_number": "123", "card_expiry": "2000-01-01"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "card_number")
	assert.Contains(t, fields, "card_expiry")
}

func TestSignupDuplicateUsername(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "alice", "password": "secret1", "confirmPassword": "secret1",
		"first_name": "A", "last_name": "L", "email": "other@example.com",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "This username is taken. Please choose another one.", body["error"])
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "alice", "secret1")
	resp, _ := env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	env := newTestEnv(t, func(c *Config) {
		c.Redis = rdb
		c.LoginRateLimitPerMinute = 1
	})

	body := map[string]string{"username": "alice", "password": "secret1"}
	resp, _ := env.do(t, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestNewRequiresRedisForRateLimits(t *testing.T) {
	codec, err := store.NewTokenCodec(testSecret, "", time.Hour)
	require.NoError(t, err)
	core, err := app.New(app.Config{
		Backend:  bookstoretest.New(t).Client(),
		Sessions: store.NewMemorySessionStore(time.Hour),
		Tokens:   codec,
	})
	require.NoError(t, err)
	_, err = New(Config{App: core, SignupRateLimitPerMinute: 1})
	require.Error(t, err)
}
