package handlers

import (
	"errors"
	"net/http"

	"github.com/sa/ottmwiki/internal/auth"
	"github.com/sa/ottmwiki/internal/middleware"
)

// handleLogin renders the login form.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if middleware.GetUser(r).IsAuthenticated() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	next := r.URL.Query().Get("next")
	if next == "" || next[0] != '/' {
		next = "/"
	}
	s.renderTemplate(w, r, http.StatusOK, "login.html", map[string]interface{}{
		"Title": "Log in",
		"Next":  next,
	})
}

// handleLoginPost handles login form submission.
func (s *Server) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, err)
		return
	}
	name := r.FormValue("name")
	next := r.FormValue("next")
	if next == "" || next[0] != '/' {
		next = "/"
	}

	user, err := s.Auth.Authenticate(r.Context(), name, r.FormValue("password"))
	if err != nil {
		s.renderTemplate(w, r, http.StatusOK, "login.html", map[string]interface{}{
			"Title":    "Log in",
			"Name":     name,
			"Next":     next,
			"LoginErr": "Invalid username or password.",
		})
		return
	}

	if err := s.SessionManager.Login(w, r, user.ID()); err != nil {
		s.Logger.Error("session login failed", "error", err)
		s.renderError(w, r, err)
		return
	}
	s.Logger.Info("user logged in", "user", user.Username())
	http.Redirect(w, r, next, http.StatusFound)
}

// handleLogout clears the session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.SessionManager.Logout(w, r); err != nil {
		s.Logger.Warn("session logout failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleRegister renders the registration form.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if middleware.GetUser(r).IsAuthenticated() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.renderTemplate(w, r, http.StatusOK, "register.html", map[string]interface{}{
		"Title": "Create account",
	})
}

// handleRegisterPost handles registration form submission.
func (s *Server) handleRegisterPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, err)
		return
	}
	name := r.FormValue("name")
	password := r.FormValue("password")

	fail := func(msg string) {
		s.renderTemplate(w, r, http.StatusOK, "register.html", map[string]interface{}{
			"Title":       "Create account",
			"Name":        name,
			"RegisterErr": msg,
		})
	}

	if password != r.FormValue("password2") {
		fail("Passwords do not match.")
		return
	}

	user, err := s.Auth.Register(r.Context(), name, password)
	switch {
	case errors.Is(err, auth.ErrNameExists):
		fail("That username is already taken.")
		return
	case errors.Is(err, auth.ErrBadName):
		fail("That username is not allowed.")
		return
	case errors.Is(err, auth.ErrPasswordTooShort):
		fail("Password must be at least 8 characters.")
		return
	case err != nil:
		s.renderError(w, r, err)
		return
	}

	if err := s.SessionManager.Login(w, r, user.ID()); err != nil {
		s.Logger.Error("session login failed", "error", err)
	}
	s.Logger.Info("account created", "user", user.Username())
	http.Redirect(w, r, "/", http.StatusFound)
}
