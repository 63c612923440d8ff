package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"alexandria/internal/ratelimit"
	"alexandria/internal/util"
	"alexandria/services/storefront/internal/app"
)

const rateWindow = time.Minute

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	Redis                    redis.UniversalClient
	LoginRateLimitPerMinute  int
	SignupRateLimitPerMinute int
	TrustedProxies           *util.TrustedProxies
	CORSOrigins              []string
	Cookie                   CookieConfig
}

// Server exposes the storefront API.
type Server struct {
	app           *app.App
	router        chi.Router
	loginLimiter  *ratelimit.FixedWindowLimiter
	signupLimiter *ratelimit.FixedWindowLimiter
	trusted       *util.TrustedProxies
	corsOrigins   []string
	cookie        CookieConfig
}

// New constructs the server with routes configured. A rate limit of zero
// disables that limiter; a positive one requires Redis.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		if limit <= 0 {
			return nil, nil
		}
		if cfg.Redis == nil {
			return nil, fmt.Errorf("init %s limiter: redis client is required", name)
		}
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "alexandria:storefront:ratelimit:"+name, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	loginLimiter, err := newLimiter("login", cfg.LoginRateLimitPerMinute)
	if err != nil {
		return nil, err
	}
	signupLimiter, err := newLimiter("signup", cfg.SignupRateLimitPerMinute)
	if err != nil {
		return nil, err
	}
	cookie := cfg.Cookie
	if strings.TrimSpace(cookie.Name) == "" {
		cookie.Name = "alexandria_session"
	}
	if cookie.SameSite == 0 {
		cookie.SameSite = http.SameSiteLaxMode
	}
	s := &Server{
		app:           cfg.App,
		router:        chi.NewRouter(),
		loginLimiter:  loginLimiter,
		signupLimiter: signupLimiter,
		trusted:       cfg.TrustedProxies,
		corsOrigins:   cfg.CORSOrigins,
		cookie:        cookie,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog("storefront",
			util.WithSecurityHeaders(
				util.WithCORS(s.corsOrigins, s.router))))
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// auth
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/logout", s.authenticated(s.handleLogout))
		r.Get("/users/me", s.authenticated(s.handleMe))
		r.Put("/users/me", s.authenticated(s.handleUpdateMe))

		// catalog
		r.Get("/books/search", s.optionalSession(s.handleSearch))
		r.Get("/books/results", s.authenticated(s.handleResults))
		r.Get("/books/{isbn}", s.optionalSession(s.handleBook))
		r.Post("/books/{isbn}/cart", s.authenticated(s.handleAddFromListing))

		// cart & orders
		r.Get("/cart", s.authenticated(s.handleCart))
		r.Put("/cart/{isbn}", s.authenticated(s.handleSetCartQuantity))
		r.Delete("/cart/{isbn}", s.authenticated(s.handleRemoveFromCart))
		r.Post("/checkout", s.authenticated(s.handleCheckout))
		r.Get("/orders", s.authenticated(s.handleOrders))

		r.Route("/admin", func(r chi.Router) {
			r.Post("/books", s.adminOnly(s.handleAdminCreateBook))
			r.Get("/books/{isbn}", s.adminOnly(s.handleAdminBook))
			r.Put("/books/{isbn}", s.adminOnly(s.handleAdminUpdateBook))
			r.Get("/authors", s.adminOnly(s.handleAdminAuthors))
			r.Post("/authors", s.adminOnly(s.handleAdminCreateAuthor))
			r.Get("/publishers", s.adminOnly(s.handleAdminPublishers))
			r.Post("/publishers", s.adminOnly(s.handleAdminCreatePublisher))
			r.Get("/publisher-orders", s.adminOnly(s.handleAdminPublisherOrders))
			r.Post("/publisher-orders", s.adminOnly(s.handleAdminPlacePublisherOrder))
			r.Put("/publisher-orders/{orderID}/confirm", s.adminOnly(s.handleAdminConfirmPublisherOrder))
			r.Get("/users", s.adminOnly(s.handleAdminUsers))
			r.Put("/users/{userID}/promote", s.adminOnly(s.handleAdminPromoteUser))
			r.Get("/reports/sales-prev-month", s.adminOnly(s.handleReportSalesPrevMonth))
			r.Get("/reports/sales-daily", s.adminOnly(s.handleReportSalesDaily))
			r.Get("/reports/top", s.adminOnly(s.handleReportTop))
			r.Get("/reports/replenishments", s.adminOnly(s.handleReportReplenishments))
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session wrappers
type sessionHandler func(http.ResponseWriter, *http.Request, app.Session)

type optionalHandler func(http.ResponseWriter, *http.Request, *app.Session)

func (s *Server) resolve(r *http.Request) (app.Session, bool) {
	token, ok := s.sessionToken(r)
	if !ok {
		return app.Session{}, false
	}
	sess, ok, err := s.app.Resolve(r.Context(), token)
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("session lookup failed", "err", err)
		return app.Session{}, false
	}
	return sess, ok
}

func (s *Server) authenticated(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.resolve(r)
		if !ok {
			s.audit(r, "storefront.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "Please login to continue.")
			return
		}
		next(w, r, sess)
	}
}

func (s *Server) adminOnly(next sessionHandler) http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, sess app.Session) {
		if !sess.User().IsAdmin() {
			s.audit(r, "storefront.admin.authorize", "fail", "user_id", sess.User().UserID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "Admin access required.")
			return
		}
		s.audit(r, "storefront.admin.authorize", "success", "user_id", sess.User().UserID)
		next(w, r, sess)
	})
}

func (s *Server) optionalSession(next optionalHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := s.resolve(r); ok {
			next(w, r, &sess)
			return
		}
		next(w, r, nil)
	}
}

// sessionToken reads the session cookie, falling back to a bearer token.
func (s *Server) sessionToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(s.cookie.Name); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value), true
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess app.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    sess.Token,
		Path:     "/",
		Domain:   s.cookie.Domain,
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: s.cookie.SameSite,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   s.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: s.cookie.SameSite,
	})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(limiter.RetryAfter().Seconds())))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
