// Package middleware provides HTTP middleware for ottmwiki.
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/models"
)

// Context keys for request context.
type contextKey string

const (
	// UserKey is the context key for the acting principal.
	UserKey contextKey = "user"
	// SessionKey is the context key for the session.
	SessionKey contextKey = "session"
)

const (
	// SessionName is the name of the session cookie.
	SessionName = "ottmwiki_session"
	// UserIDKey is the session key for the user ID.
	UserIDKey = "user_id"
)

// SessionManager resolves the acting principal for every request: the
// session's account when logged in, else a transient anonymous user keyed
// by the remote IP.
type SessionManager struct {
	store   sessions.Store
	queries *db.Queries
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(secretKey string, queries *db.Queries) *SessionManager {
	store := sessions.NewCookieStore([]byte(secretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30, // 30 days
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store, queries: queries}
}

// Store exposes the cookie store for login handlers.
func (sm *SessionManager) Store() sessions.Store {
	return sm.store
}

// Login records the user id in the session.
func (sm *SessionManager) Login(w http.ResponseWriter, r *http.Request, userID int64) error {
	session, err := sm.store.Get(r, SessionName)
	if err != nil {
		session, err = sm.store.New(r, SessionName)
		if err != nil {
			return err
		}
	}
	session.Values[UserIDKey] = userID
	return session.Save(r, w)
}

// Logout clears the session.
func (sm *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	session, err := sm.store.Get(r, SessionName)
	if err != nil {
		return err
	}
	delete(session.Values, UserIDKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// Middleware returns the session middleware handler.
func (sm *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := sm.store.Get(r, SessionName)
		if err != nil {
			slog.Warn("session error, creating new", "error", err)
			session, err = sm.store.New(r, SessionName)
			if err != nil {
				slog.Warn("failed to create new session", "error", err)
			}
		}

		var user *models.User
		if userID, ok := session.Values[UserIDKey].(int64); ok && userID > 0 {
			dbUser, err := sm.queries.GetUserByID(r.Context(), userID)
			if err == nil && !dbUser.IsAnonymous {
				groups, gerr := sm.queries.ListGroupsForUser(r.Context(), dbUser.ID)
				if gerr != nil {
					slog.Warn("failed to load groups", "user_id", dbUser.ID, "error", gerr)
				}
				user = models.NewUser(&dbUser, groups)
			}
		}

		ip := RemoteIP(r)
		if user == nil {
			user = models.Anonymous(ip)
			// A materialized anonymous account carries its edit history
			// and any block placed on it.
			if dbUser, err := sm.queries.GetAnonymousUserByIP(r.Context(), ip); err == nil {
				groups, _ := sm.queries.ListGroupsForUser(r.Context(), dbUser.ID)
				user = models.NewUser(&dbUser, groups)
				user.IP = ip
			}
		} else {
			user.IP = ip
		}

		ctx := context.WithValue(r.Context(), SessionKey, session)
		ctx = context.WithValue(ctx, UserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSession returns the session from the request context.
func GetSession(r *http.Request) *sessions.Session {
	if session, ok := r.Context().Value(SessionKey).(*sessions.Session); ok {
		return session
	}
	return nil
}

// GetUser returns the acting principal from the request context.
func GetUser(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserKey).(*models.User); ok {
		return user
	}
	return models.Anonymous(RemoteIP(r))
}

// RemoteIP extracts the client IP, honoring X-Forwarded-For.
func RemoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
