// Package testutil provides shared test setup for ottmwiki tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sa/ottmwiki/internal/config"
	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/handlers"
	"github.com/sa/ottmwiki/internal/metrics"
	"github.com/sa/ottmwiki/internal/middleware"
	"github.com/sa/ottmwiki/internal/models"
	"github.com/sa/ottmwiki/internal/parser"
	"github.com/sa/ottmwiki/internal/wiki"
)

// TestEnv bundles all test dependencies.
type TestEnv struct {
	Cfg    *config.Config
	DB     *db.Database
	Wiki   *wiki.Service
	Parser *parser.Parser
	Server *handlers.Server
	Router chi.Router
}

// SetupTestEnv creates a fully wired Server with:
// - in-memory SQLite (migrated, default groups created)
// - loaded templates (found via runtime.Caller)
// Returns TestEnv; cleanup is registered on t.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	database, err := db.Open("sqlite:///:memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	cfg := config.Default()
	cfg.SecretKey = "test-secret-key-1234567890"
	cfg.Testing = true
	cfg.ParseCacheTTLMinutes = 60

	svc := wiki.NewService(cfg, database, wiki.NewNamespaceRegistry())
	if err := svc.EnsureDefaultGroups(context.Background()); err != nil {
		t.Fatalf("failed to create default groups: %v", err)
	}

	p := parser.New(parser.NewRegistry())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := handlers.NewServer(cfg, database, svc, p, logger, metrics.New(), "test")

	templatesDir := findTemplatesDir(t)
	if err := srv.LoadTemplates(os.DirFS(templatesDir)); err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}
	srv.StaticFS = os.DirFS(filepath.Join(filepath.Dir(templatesDir), "static"))

	return &TestEnv{
		Cfg:    cfg,
		DB:     database,
		Wiki:   svc,
		Parser: p,
		Server: srv,
		Router: srv.Routes(),
	}
}

// findTemplatesDir locates the web/templates directory relative to the source file.
func findTemplatesDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to get caller info")
	}
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	return filepath.Join(projectRoot, "web", "templates")
}

// UserOpts configures test user properties.
type UserOpts struct {
	Name   string
	Groups []string
}

// CreateTestUser inserts a user into the DB, adds it to the requested groups
// (plus "users"), and returns the models.User.
func CreateTestUser(t *testing.T, database *db.Database, opts UserOpts) *models.User {
	t.Helper()

	if opts.Name == "" {
		opts.Name = "TestUser"
	}

	ctx := context.Background()
	dbUser, err := database.Queries.CreateUser(ctx, db.CreateUserParams{
		Name:      opts.Name,
		CreatedAt: time.Now().UTC().Add(-90 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	groups := append([]string{wiki.GroupUsers}, opts.Groups...)
	for _, label := range groups {
		if err := database.Queries.AddUserToGroup(ctx, dbUser.ID, label); err != nil {
			t.Fatalf("failed to add user to group %s: %v", label, err)
		}
	}

	loaded, err := database.Queries.ListGroupsForUser(ctx, dbUser.ID)
	if err != nil {
		t.Fatalf("failed to load groups: %v", err)
	}
	return models.NewUser(&dbUser, loaded)
}

// CreateTestAdmin inserts a user holding the admins group.
func CreateTestAdmin(t *testing.T, database *db.Database, name string) *models.User {
	t.Helper()
	return CreateTestUser(t, database, UserOpts{Name: name, Groups: []string{wiki.GroupAdmins}})
}

// SeedPage creates or updates a page through the normal edit path.
func SeedPage(t *testing.T, env *TestEnv, author *models.User, fullTitle, content string) db.Revision {
	t.Helper()
	ns, title, err := env.Wiki.Namespaces().ResolveTitle(fullTitle)
	if err != nil {
		t.Fatalf("bad title %q: %v", fullTitle, err)
	}
	if author == nil {
		author = models.Anonymous("127.0.0.1")
	}
	ctx := context.Background()
	var base int64
	if page, err := env.Wiki.Get(ctx, ns, title); err == nil && page.Exists {
		if latest, err := env.Wiki.LatestRevision(ctx, page); err == nil {
			base = latest.ID
		}
	}
	rev, err := env.Wiki.Edit(ctx, author, ns, title, content, wiki.EditParams{
		Comment:        "test edit",
		BaseRevisionID: base,
	})
	if err != nil {
		t.Fatalf("failed to seed page %q: %v", fullTitle, err)
	}
	return rev
}

// RequestWithUser creates an http.Request with the given user injected into
// context. Uses middleware.UserKey.
func RequestWithUser(method, path string, body io.Reader, user *models.User) *http.Request {
	req, _ := http.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:9999"
	if user == nil {
		user = models.Anonymous("127.0.0.1")
	}
	ctx := context.WithValue(req.Context(), middleware.UserKey, user)
	return req.WithContext(ctx)
}
