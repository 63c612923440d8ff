package server

import (
	"net/http"
	"time"

	"alexandria/pkg/domain"
	"alexandria/services/storefront/internal/app"
	"alexandria/services/storefront/internal/bookstoreclient"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      domain.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "storefront.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.audit(r, "storefront.login", "fail", "reason", "invalid_json")
		writeAppError(w, r, err, "", nil)
		return
	}
	sess, err := s.app.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.audit(r, "storefront.login", "fail", "reason", err.Error())
		writeAppError(w, r, err, "Login failed. Please try again.", nil)
		return
	}
	s.audit(r, "storefront.login", "success", "user_id", sess.User().UserID)
	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, loginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: sess.User()})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "storefront.signup", "rate_limited")
		return
	}
	var req app.SignupInput
	if err := decodeJSON(r, &req, false); err != nil {
		s.audit(r, "storefront.signup", "fail", "reason", "invalid_json")
		writeAppError(w, r, err, "", nil)
		return
	}
	res, err := s.app.SignUp(r.Context(), req)
	if err != nil {
		s.audit(r, "storefront.signup", "fail", "reason", err.Error())
		writeAppError(w, r, err, "Signup failed. Please try again.", nil)
		return
	}
	s.audit(r, "storefront.signup", "success", "user_id", res.UserID)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess app.Session) {
	if err := s.app.Logout(r.Context(), sess); err != nil {
		s.audit(r, "storefront.logout", "fail", "user_id", sess.User().UserID, "reason", err.Error())
		writeAppError(w, r, err, "", nil)
		return
	}
	s.audit(r, "storefront.logout", "success", "user_id", sess.User().UserID)
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, sess app.Session) {
	writeJSON(w, http.StatusOK, sess.User())
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request, sess app.Session) {
	var req bookstoreclient.ProfileUpdate
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, r, err, "", nil)
		return
	}
	updated, err := s.app.UpdateProfile(r.Context(), sess, req)
	if err != nil {
		writeAppError(w, r, err, "Profile update failed. Please try again.", nil)
		return
	}
	writeJSON(w, http.StatusOK, updated.User())
}
