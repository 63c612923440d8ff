package app

import (
	"errors"
	"time"

	"alexandria/services/storefront/internal/bookstoreclient"
	"alexandria/services/storefront/internal/store"
)

// Config wires the storefront core.
type Config struct {
	Backend         *bookstoreclient.Client
	Sessions        store.SessionStore
	Tokens          *store.TokenCodec
	ResultCacheSize int
}

// App is the storefront core: sessions, catalog views, cart reconciliation,
// checkout and the admin console, all backed by the bookstore API.
type App struct {
	backend  *bookstoreclient.Client
	sessions store.SessionStore
	tokens   *store.TokenCodec
	cart     *CartMutator
	results  *ResultCache
	now      func() time.Time
}

// New constructs the core with the given dependencies.
func New(cfg Config) (*App, error) {
	if cfg.Backend == nil {
		return nil, errors.New("app: backend client is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("app: session store is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("app: token codec is required")
	}
	results, err := NewResultCache(cfg.ResultCacheSize)
	if err != nil {
		return nil, err
	}
	return &App{
		backend:  cfg.Backend,
		sessions: cfg.Sessions,
		tokens:   cfg.Tokens,
		cart:     NewCartMutator(cfg.Backend),
		results:  results,
		now:      time.Now,
	}, nil
}
