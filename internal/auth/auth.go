// Package auth provides account creation and credential checks for ottmwiki.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sa/ottmwiki/internal/config"
	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/models"
	"github.com/sa/ottmwiki/internal/wiki"
)

// Common errors.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNameExists         = errors.New("username already taken")
	ErrBadName            = errors.New("invalid username")
	ErrPasswordTooShort   = errors.New("password is too short")
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// Auth provides authentication operations.
type Auth struct {
	config  *config.Config
	queries *db.Queries
}

// New creates a new Auth instance.
func New(cfg *config.Config, queries *db.Queries) *Auth {
	return &Auth{config: cfg, queries: queries}
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password against a hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateName checks that a username can also serve as a User: page title.
func ValidateName(name string) error {
	canonical, err := wiki.CanonicalizeTitle(name)
	if err != nil || canonical != name {
		return ErrBadName
	}
	if strings.ContainsAny(name, ":/") {
		return ErrBadName
	}
	return nil
}

// Authenticate validates credentials and returns the user with its groups.
func (a *Auth) Authenticate(ctx context.Context, name, password string) (*models.User, error) {
	name = strings.TrimSpace(name)

	dbUser, err := a.queries.GetUserByName(ctx, name)
	if err != nil || dbUser.IsAnonymous {
		return nil, ErrInvalidCredentials
	}
	if !dbUser.PasswordHash.Valid || !CheckPassword(password, dbUser.PasswordHash.String) {
		return nil, ErrInvalidCredentials
	}

	groups, err := a.queries.ListGroupsForUser(ctx, dbUser.ID)
	if err != nil {
		return nil, err
	}
	return models.NewUser(&dbUser, groups), nil
}

// Register creates a new account in the "users" group. The first registered
// account also becomes an admin.
func (a *Auth) Register(ctx context.Context, name, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if _, err := a.queries.GetUserByName(ctx, name); err == nil {
		return nil, ErrNameExists
	}

	existing, err := a.queries.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dbUser, err := a.queries.CreateUser(ctx, db.CreateUserParams{
		Name:         name,
		PasswordHash: db.NullString(hash),
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	if err := a.queries.InsertLog(ctx, db.Log{
		Kind:         db.LogUserCreation,
		Date:         now,
		TargetUserID: db.NullInt64(dbUser.ID),
	}); err != nil {
		return nil, err
	}

	groups := []string{wiki.GroupUsers}
	if existing == 0 {
		groups = append(groups, wiki.GroupAdmins)
	}
	for _, label := range groups {
		if err := a.queries.AddUserToGroup(ctx, dbUser.ID, label); err != nil {
			return nil, err
		}
	}

	loaded, err := a.queries.ListGroupsForUser(ctx, dbUser.ID)
	if err != nil {
		return nil, err
	}
	return models.NewUser(&dbUser, loaded), nil
}
