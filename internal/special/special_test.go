package special

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/sa/ottmwiki/internal/config"
	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/models"
	"github.com/sa/ottmwiki/internal/wiki"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
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
	svc := wiki.NewService(cfg, database, wiki.NewNamespaceRegistry())
	if err := svc.EnsureDefaultGroups(context.Background()); err != nil {
		t.Fatalf("failed to create default groups: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(cfg, svc, logger)
}

func newTestUser(t *testing.T, d *Dispatcher, name string, extraGroups ...string) *models.User {
	t.Helper()
	ctx := context.Background()
	dbUser, err := d.svc.Queries().CreateUser(ctx, db.CreateUserParams{
		Name:      name,
		CreatedAt: time.Now().Add(-90 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	for _, label := range append([]string{wiki.GroupUsers}, extraGroups...) {
		if err := d.svc.Queries().AddUserToGroup(ctx, dbUser.ID, label); err != nil {
			t.Fatalf("failed to add %s to group %s: %v", name, label, err)
		}
	}
	groups, err := d.svc.Queries().ListGroupsForUser(ctx, dbUser.ID)
	if err != nil {
		t.Fatalf("failed to load groups: %v", err)
	}
	return models.NewUser(&dbUser, groups)
}

func seedPage(t *testing.T, d *Dispatcher, author *models.User, fullTitle, content string) {
	t.Helper()
	ctx := context.Background()
	ns, title, err := d.svc.Namespaces().ResolveTitle(fullTitle)
	if err != nil {
		t.Fatalf("bad title %q: %v", fullTitle, err)
	}
	if _, err := d.svc.Edit(ctx, author, ns, title, content, wiki.EditParams{Comment: "seed"}); err != nil {
		t.Fatalf("failed to seed %q: %v", fullTitle, err)
	}
}

func request(u *models.User, subTitle string) *Request {
	return &Request{
		Ctx:      context.Background(),
		User:     u,
		SubTitle: subTitle,
		Query:    url.Values{},
		Form:     url.Values{},
	}
}

func TestDispatchUnknownPage(t *testing.T) {
	d := newTestDispatcher(t)
	user := newTestUser(t, d, "Alice")
	if _, err := d.Dispatch("NoSuchPage", request(user, "")); !errors.Is(err, ErrSpecialPageDoesNotExist) {
		t.Errorf("error = %v, want ErrSpecialPageDoesNotExist", err)
	}
}

func TestDispatchPermissionGate(t *testing.T) {
	d := newTestDispatcher(t)
	user := newTestUser(t, d, "Alice")
	admin := newTestUser(t, d, "Root", wiki.GroupAdmins)
	seedPage(t, d, user, "Guarded", "content")

	_, err := d.Dispatch("DeletePage", request(user, "Guarded"))
	var missing *wiki.MissingPermissionError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingPermissionError", err)
	}

	resp, err := d.Dispatch("DeletePage", request(admin, "Guarded"))
	if err != nil {
		t.Fatalf("admin GET returned error: %v", err)
	}
	if resp.Data["target_title"] != "Guarded" {
		t.Errorf("data = %+v", resp.Data)
	}
}

func TestDispatchRequiresAuth(t *testing.T) {
	d := newTestDispatcher(t)
	anon := models.Anonymous("203.0.113.4")

	_, err := d.Dispatch("EditFollowList", request(anon, ""))
	var missing *wiki.MissingPermissionError
	if !errors.As(err, &missing) {
		t.Errorf("error = %v, want MissingPermissionError", err)
	}
}

func TestRandomPage(t *testing.T) {
	d := newTestDispatcher(t)
	user := newTestUser(t, d, "Alice")

	t.Run("empty wiki falls back to the main page", func(t *testing.T) {
		resp, err := d.Dispatch("RandomPage", request(user, ""))
		if err != nil {
			t.Fatalf("Dispatch returned error: %v", err)
		}
		if resp.Redirect == nil || resp.Redirect.PageTitle != d.cfg.MainPage {
			t.Errorf("response = %+v, want redirect to main page", resp)
		}
	})

	t.Run("redirects to an existing content page", func(t *testing.T) {
		seedPage(t, d, user, "Only Page", "content")
		resp, err := d.Dispatch("RandomPage", request(user, ""))
		if err != nil {
			t.Fatalf("Dispatch returned error: %v", err)
		}
		if resp.Redirect == nil || resp.Redirect.PageTitle != "Only Page" {
			t.Errorf("response = %+v, want redirect to Only Page", resp)
		}
	})
}

func TestRecentChangesFiltersMuted(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	alice := newTestUser(t, d, "Alice")
	bob := newTestUser(t, d, "Bob")

	seedPage(t, d, alice, "By Alice", "x")
	seedPage(t, d, bob, "By Bob", "y")

	resp, err := d.Dispatch("RecentChanges", request(alice, ""))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	revs := resp.Data["revisions"].([]db.Revision)
	if len(revs) != 2 {
		t.Fatalf("revisions = %d, want 2", len(revs))
	}

	if err := d.svc.Queries().MuteUser(ctx, alice.ID(), bob.ID()); err != nil {
		t.Fatalf("MuteUser returned error: %v", err)
	}
	resp, err = d.Dispatch("RecentChanges", request(alice, ""))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	revs = resp.Data["revisions"].([]db.Revision)
	if len(revs) != 1 || revs[0].AuthorID != alice.ID() {
		t.Errorf("revisions after mute = %+v, want only Alice's", revs)
	}
}

func TestContributions(t *testing.T) {
	d := newTestDispatcher(t)
	alice := newTestUser(t, d, "Alice")
	seedPage(t, d, alice, "One", "a")
	seedPage(t, d, alice, "Two", "b")

	resp, err := d.Dispatch("Contributions", request(alice, "Alice"))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if resp.Data["target_name"] != "Alice" {
		t.Errorf("target_name = %v", resp.Data["target_name"])
	}

	if _, err := d.Dispatch("Contributions", request(alice, "Nobody")); !errors.Is(err, wiki.ErrPageDoesNotExist) {
		t.Errorf("unknown target error = %v, want ErrPageDoesNotExist", err)
	}
}

func TestEditFollowList(t *testing.T) {
	d := newTestDispatcher(t)
	alice := newTestUser(t, d, "Alice")

	post := request(alice, "")
	post.IsPost = true
	post.Form.Set("titles", "Followed One\nUser:Bob\nSpecial:RecentChanges\n\n")

	resp, err := d.Dispatch("EditFollowList", post)
	if err != nil {
		t.Fatalf("POST returned error: %v", err)
	}
	if resp.Redirect == nil {
		t.Fatal("POST did not redirect")
	}

	get, err := d.Dispatch("EditFollowList", request(alice, ""))
	if err != nil {
		t.Fatalf("GET returned error: %v", err)
	}
	titles := get.Data["titles"].([]string)
	if len(titles) != 2 {
		t.Fatalf("titles = %v, want the two followable entries", titles)
	}

	clearReq := request(alice, "clear")
	if _, err := d.Dispatch("EditFollowList", clearReq); err != nil {
		t.Fatalf("clear returned error: %v", err)
	}
	get, err = d.Dispatch("EditFollowList", request(alice, ""))
	if err != nil {
		t.Fatalf("GET returned error: %v", err)
	}
	if titles := get.Data["titles"].([]string); len(titles) != 0 {
		t.Errorf("titles after clear = %v, want none", titles)
	}
}

func TestMaskRevisionsSubtitleParsing(t *testing.T) {
	ids, err := parseRevisionIDs("3/17/5")
	if err != nil {
		t.Fatalf("parseRevisionIDs returned error: %v", err)
	}
	if len(ids) != 3 || ids[0] != 3 || ids[2] != 5 {
		t.Errorf("ids = %v", ids)
	}
	if _, err := parseRevisionIDs(""); !errors.Is(err, wiki.ErrRevisionDoesNotExist) {
		t.Errorf("empty subtitle error = %v, want ErrRevisionDoesNotExist", err)
	}
	if _, err := parseRevisionIDs("abc"); !errors.Is(err, wiki.ErrRevisionDoesNotExist) {
		t.Errorf("bad subtitle error = %v, want ErrRevisionDoesNotExist", err)
	}
}

func TestSpecialPagesListing(t *testing.T) {
	d := newTestDispatcher(t)
	user := newTestUser(t, d, "Alice")
	resp, err := d.Dispatch("SpecialPages", request(user, ""))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	names := resp.Data["special_pages"].([]string)
	if len(names) == 0 {
		t.Fatal("no special pages listed")
	}
	for _, want := range []string{"RandomPage", "RecentChanges", "DeletePage", "Contributions"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("special page %s missing from %v", want, names)
		}
	}
}
