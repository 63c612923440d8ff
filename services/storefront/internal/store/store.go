// Package store persists storefront sessions.
//
// A session is created on login, rewritten whenever the backend confirms a
// login or profile change, and deleted on logout. A stored record that no
// longer decodes is removed and reported as absent, so the caller is treated
// as signed out.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alexandria/pkg/domain"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidUser     = errors.New("session user is required")
)

// SessionStore persists session records keyed by session ID.
type SessionStore interface {
	Create(ctx context.Context, user domain.User) (domain.SessionRecord, error)
	// Get returns false when the session is absent, expired, or undecodable.
	Get(ctx context.Context, id string) (domain.SessionRecord, bool, error)
	Update(ctx context.Context, id string, user domain.User) (domain.SessionRecord, error)
	Delete(ctx context.Context, id string) error
}

func newRecord(id string, user domain.User, now time.Time) (domain.SessionRecord, error) {
	if user.UserID <= 0 {
		return domain.SessionRecord{}, ErrInvalidUser
	}
	return domain.SessionRecord{ID: id, User: user, CreatedAt: now, UpdatedAt: now}, nil
}

func encodeRecord(rec domain.SessionRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

// decodeRecord parses a stored record. A record without a user is as
// unusable as one that fails to parse.
func decodeRecord(data []byte) (domain.SessionRecord, error) {
	var rec domain.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("decode session: %w", err)
	}
	if rec.User.UserID <= 0 {
		return domain.SessionRecord{}, fmt.Errorf("decode session: %w", ErrInvalidUser)
	}
	return rec, nil
}
