package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alexandria/internal/util"
	"alexandria/internal/validator"
	"alexandria/pkg/domain"
	"alexandria/services/storefront/internal/bookstoreclient"
)

const minPasswordLength = 6

// Session is a signed-in viewer plus the token that identifies it.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Record    domain.SessionRecord
}

// User returns the signed-in user.
func (s Session) User() domain.User { return s.Record.User }

// ID returns the session ID.
func (s Session) ID() string { return s.Record.ID }

// SignupInput is the registration form.
type SignupInput struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
}

// Login authenticates against the backend and opens a session.
func (a *App) Login(ctx context.Context, username, password string) (Session, error) {
	v := validator.New()
	v.Check(validator.NotBlank(username), "username", "is required")
	v.Check(password != "", "password", "is required")
	if err := v.Err(); err != nil {
		return Session{}, err
	}
	user, err := a.backend.Login(ctx, bookstoreclient.LoginRequest{Username: strings.TrimSpace(username), Password: password})
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	rec, err := a.sessions.Create(ctx, user)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	token, exp, err := a.tokens.Issue(rec.ID)
	if err != nil {
		_ = a.sessions.Delete(ctx, rec.ID)
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, Record: rec}, nil
}

// SignUp validates the form locally and registers the account. It does not
// sign the user in.
func (a *App) SignUp(ctx context.Context, in SignupInput) (bookstoreclient.SignupResult, error) {
	v := validator.New()
	v.Check(validator.NotBlank(in.Username), "username", "is required")
	v.Check(in.Password != "", "password", "is required")
	v.Check(validator.NotBlank(in.FirstName), "first_name", "is required")
	v.Check(validator.NotBlank(in.LastName), "last_name", "is required")
	v.Check(validator.NotBlank(in.Email), "email", "is required")
	v.Check(in.Password == in.ConfirmPassword, "confirmPassword", "passwords do not match")
	v.Check(len(in.Password) >= minPasswordLength, "password", "must be at least 6 characters long")
	v.Check(validator.Matches(strings.TrimSpace(in.Email), validator.EmailRX), "email", "must be a valid email address")
	if err := v.Err(); err != nil {
		return bookstoreclient.SignupResult{}, err
	}
	res, err := a.backend.SignUp(ctx, bookstoreclient.SignupRequest{
		Username:  strings.TrimSpace(in.Username),
		Password:  in.Password,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
	})
	if err != nil {
		return bookstoreclient.SignupResult{}, fmt.Errorf("signup: %w", err)
	}
	return res, nil
}

// Resolve maps a token to its live session. Invalid tokens and missing or
// unreadable records resolve to no session.
func (a *App) Resolve(ctx context.Context, token string) (Session, bool, error) {
	id, err := a.tokens.Parse(token)
	if err != nil {
		return Session{}, false, nil
	}
	rec, ok, err := a.sessions.Get(ctx, id)
	if err != nil || !ok {
		return Session{}, false, err
	}
	return Session{Token: token, Record: rec}, true, nil
}

// Logout tells the backend (best effort; it also empties the cart) and
// always clears the local session.
func (a *App) Logout(ctx context.Context, sess Session) error {
	if err := a.backend.Logout(ctx, sess.User().UserID); err != nil {
		util.LoggerFromContext(ctx).Warn("backend logout failed",
			slog.Int("user_id", sess.User().UserID),
			slog.String("err", err.Error()),
		)
	}
	a.results.Drop(sess.ID())
	if err := a.sessions.Delete(ctx, sess.ID()); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// UpdateProfile sends only the supplied fields and rewrites the session.
func (a *App) UpdateProfile(ctx context.Context, sess Session, update bookstoreclient.ProfileUpdate) (Session, error) {
	update = trimProfile(update)
	v := validator.New()
	v.Check(!update.Empty(), "profile", "fill in at least one field to update")
	if update.Email != "" {
		v.Check(validator.Matches(update.Email, validator.EmailRX), "email", "must be a valid email address")
	}
	if update.Password != "" {
		v.Check(len(update.Password) >= minPasswordLength, "password", "must be at least 6 characters long")
	}
	if err := v.Err(); err != nil {
		return Session{}, err
	}
	user := sess.User()
	if _, err := a.backend.UpdateProfile(ctx, user.UserID, update); err != nil {
		return Session{}, fmt.Errorf("update profile: %w", err)
	}
	rec, err := a.sessions.Update(ctx, sess.ID(), mergeProfile(user, update))
	if err != nil {
		return Session{}, fmt.Errorf("update session: %w", err)
	}
	sess.Record = rec
	return sess, nil
}

func trimProfile(p bookstoreclient.ProfileUpdate) bookstoreclient.ProfileUpdate {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address = strings.TrimSpace(p.Address)
	return p
}

func mergeProfile(u domain.User, p bookstoreclient.ProfileUpdate) domain.User {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.Email, p.Email)
	set(&u.Phone, p.Phone)
	set(&u.Address, p.Address)
	return u
}

// requireAdmin fails unless the session belongs to an admin.
func requireAdmin(sess Session) error {
	if sess.Record.ID == "" {
		return ErrUnauthorized
	}
	if !sess.User().IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// IsAuthError reports whether err means the caller must sign in again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || bookstoreclient.IsKind(err, bookstoreclient.KindUnauthorized)
}
