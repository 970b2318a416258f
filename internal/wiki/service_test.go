package wiki

import (
	"context"
	"testing"
	"time"

	"github.com/sa/ottmwiki/internal/config"
	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/models"
)

// newTestService creates a Service over a migrated in-memory database.
func newTestService(t *testing.T) *Service {
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
	cfg.Testing = true
	svc := NewService(cfg, database, NewNamespaceRegistry())
	if err := svc.EnsureDefaultGroups(context.Background()); err != nil {
		t.Fatalf("failed to create default groups: %v", err)
	}
	return svc
}

// newTestUser inserts an account and adds it to "users" plus any extra groups.
func newTestUser(t *testing.T, svc *Service, name string, extraGroups ...string) *models.User {
	t.Helper()
	ctx := context.Background()

	dbUser, err := svc.Queries().CreateUser(ctx, db.CreateUserParams{
		Name:      name,
		CreatedAt: time.Now().Add(-90 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	for _, label := range append([]string{GroupUsers}, extraGroups...) {
		if err := svc.Queries().AddUserToGroup(ctx, dbUser.ID, label); err != nil {
			t.Fatalf("failed to add %s to group %s: %v", name, label, err)
		}
	}
	groups, err := svc.Queries().ListGroupsForUser(ctx, dbUser.ID)
	if err != nil {
		t.Fatalf("failed to load groups: %v", err)
	}
	return models.NewUser(&dbUser, groups)
}

// mustEdit appends a revision, chaining BaseRevisionID from the page state.
func mustEdit(t *testing.T, svc *Service, author *models.User, fullTitle, content string) db.Revision {
	t.Helper()
	ctx := context.Background()
	ns, title, err := svc.Namespaces().ResolveTitle(fullTitle)
	if err != nil {
		t.Fatalf("bad title %q: %v", fullTitle, err)
	}
	var base int64
	page, err := svc.Get(ctx, ns, title)
	if err != nil {
		t.Fatalf("get %q: %v", fullTitle, err)
	}
	if page.Exists {
		if latest, err := svc.LatestRevision(ctx, page); err == nil {
			base = latest.ID
		}
	}
	rev, err := svc.Edit(ctx, author, ns, title, content, EditParams{
		Comment:        "test edit",
		BaseRevisionID: base,
	})
	if err != nil {
		t.Fatalf("edit %q: %v", fullTitle, err)
	}
	return rev
}

func TestGetMissingPageReturnsShadow(t *testing.T) {
	svc := newTestService(t)
	ns := svc.Namespaces().Main()

	page, err := svc.Get(context.Background(), ns, "Nothing Here")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if page.Exists {
		t.Error("expected shadow page with Exists=false")
	}
	if page.Title != "Nothing Here" {
		t.Errorf("shadow title = %q, want %q", page.Title, "Nothing Here")
	}
	if page.ContentType != ContentTypeWikipage {
		t.Errorf("shadow content type = %q, want %q", page.ContentType, ContentTypeWikipage)
	}
}

func TestParseRedirect(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		content string
		ok      bool
		title   string
	}{
		{"@REDIRECT[[Target Page]]", true, "Target Page"},
		{"  @REDIRECT[[Help:Editing]]  ", true, "Editing"},
		{"@REDIRECT[[Target]] plus trailing text", false, ""},
		{"Some content", false, ""},
		{"", false, ""},
	}
	for _, tt := range tests {
		ns, title, ok := svc.ParseRedirect(tt.content)
		if ok != tt.ok {
			t.Errorf("ParseRedirect(%q) ok = %v, want %v", tt.content, ok, tt.ok)
			continue
		}
		if ok && title != tt.title {
			t.Errorf("ParseRedirect(%q) title = %q (ns %d), want %q", tt.content, title, ns.ID, tt.title)
		}
	}
}

func TestExtractLinks(t *testing.T) {
	svc := newTestService(t)

	links := svc.ExtractLinks("See [[Alpha]] and [[Help:Beta|the beta page]], " +
		"again [[Alpha]], and [[Category:Things|sort me]].")

	if len(links) != 3 {
		t.Fatalf("got %d links, want 3: %+v", len(links), links)
	}
	if links[0].Title != "Alpha" || links[0].NamespaceID != NSMain {
		t.Errorf("first link = %+v, want Alpha in main", links[0])
	}
	if links[1].Title != "Beta" || links[1].NamespaceID != NSHelp {
		t.Errorf("second link = %+v, want Help:Beta", links[1])
	}
	if !links[2].IsCategory || links[2].SortKey != "sort me" {
		t.Errorf("category link = %+v, want sort key %q", links[2], "sort me")
	}
}

func TestStats(t *testing.T) {
	svc := newTestService(t)
	user := newTestUser(t, svc, "Author")

	mustEdit(t, svc, user, "First Article", "content one")
	mustEdit(t, svc, user, "First Article", "content two")
	mustEdit(t, svc, user, "Help:Guide", "not a content page")

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Pages != 2 {
		t.Errorf("Pages = %d, want 2", stats.Pages)
	}
	if stats.Articles != 1 {
		t.Errorf("Articles = %d, want 1", stats.Articles)
	}
	if stats.Edits != 3 {
		t.Errorf("Edits = %d, want 3", stats.Edits)
	}
	if stats.Users != 1 {
		t.Errorf("Users = %d, want 1", stats.Users)
	}
}
