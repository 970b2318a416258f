package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/sa/ottmwiki/internal/testutil"
	"github.com/sa/ottmwiki/internal/wiki"
)

func get(t *testing.T, env *testutil.TestEnv, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, env *testutil.TestEnv, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	return rec
}

func body(rec *httptest.ResponseRecorder) string {
	b, _ := io.ReadAll(rec.Body)
	return string(b)
}

func TestRootRedirectsToMainPage(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	rec := get(t, env, "/")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/wiki/Main_Page" {
		t.Errorf("location = %q, want /wiki/Main_Page", loc)
	}
}

func TestEmptyWikiTitleRedirectsToMainPage(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	rec := get(t, env, "/wiki/")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/wiki/Main_Page" {
		t.Errorf("location = %q, want /wiki/Main_Page", loc)
	}
}

func TestReadPage(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	testutil.SeedPage(t, env, nil, "Hello World", "Some '''wiki''' text")

	rec := get(t, env, "/wiki/Hello_World")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(body(rec), "Some") {
		t.Error("page content missing from response")
	}
}

func TestReadMissingPage(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	rec := get(t, env, "/wiki/No_Such_Page")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestNonCanonicalURLRedirects(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	testutil.SeedPage(t, env, nil, "Hello World", "x")

	rec := get(t, env, "/wiki/Hello%20World")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/wiki/Hello_World" {
		t.Errorf("location = %q, want /wiki/Hello_World", loc)
	}

	t.Run("query string survives", func(t *testing.T) {
		rec := get(t, env, "/wiki/Hello%20World?action=history")
		if loc := rec.Header().Get("Location"); loc != "/wiki/Hello_World?action=history" {
			t.Errorf("location = %q", loc)
		}
	})
}

func TestBadTitle(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	rec := get(t, env, "/wiki/Bad%7CTitle")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRedirectPageForwards(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	testutil.SeedPage(t, env, nil, "Target", "content")
	testutil.SeedPage(t, env, nil, "Old Name", "@REDIRECT[[Target]]")

	rec := get(t, env, "/wiki/Old_Name")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/wiki/Target?redirects_from=") {
		t.Errorf("location = %q", loc)
	}

	t.Run("no_redirect shows the redirect page itself", func(t *testing.T) {
		rec := get(t, env, "/wiki/Old_Name?no_redirect=1")
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestRawAction(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	testutil.SeedPage(t, env, nil, "Raw Page", "raw *content*")

	rec := get(t, env, "/wiki/Raw_Page?action=raw")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := body(rec); got != "raw *content*" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
}

func TestAnonymousSubmitFlow(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	form := url.Values{
		"content":          {"written through the form"},
		"comment":          {"first edit"},
		"base_revision_id": {"0"},
	}
	rec := postForm(t, env, "/wiki/Form_Page?action=submit", form)
	if rec.Code != http.StatusFound {
		t.Fatalf("submit status = %d, want 302: %s", rec.Code, body(rec))
	}
	if loc := rec.Header().Get("Location"); loc != "/wiki/Form_Page" {
		t.Errorf("location = %q", loc)
	}

	read := get(t, env, "/wiki/Form_Page")
	if read.Code != http.StatusOK {
		t.Fatalf("read status = %d, want 200", read.Code)
	}
	if !strings.Contains(body(read), "written through the form") {
		t.Error("submitted content not shown")
	}
}

func TestSubmitConflictKeepsText(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	first := testutil.SeedPage(t, env, nil, "Contested", "v1")
	testutil.SeedPage(t, env, nil, "Contested", "v2")

	form := url.Values{
		"content":          {"my competing text"},
		"base_revision_id": {strconv.FormatInt(first.ID, 10)},
	}
	rec := postForm(t, env, "/wiki/Contested?action=submit", form)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want the edit form again", rec.Code)
	}
	if !strings.Contains(body(rec), "my competing text") {
		t.Error("conflicting text was lost")
	}
}

func TestHistoryAction(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	testutil.SeedPage(t, env, nil, "Storied", "v1")
	testutil.SeedPage(t, env, nil, "Storied", "v2")

	rec := get(t, env, "/wiki/Storied?action=history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSpecialPages(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	t.Run("listing", func(t *testing.T) {
		rec := get(t, env, "/wiki/Special:SpecialPages")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(body(rec), "RandomPage") {
			t.Error("listing does not mention RandomPage")
		}
	})

	t.Run("unknown special page", func(t *testing.T) {
		rec := get(t, env, "/wiki/Special:Bogus")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("permission gated page", func(t *testing.T) {
		rec := get(t, env, "/wiki/Special:DeletePage/Whatever")
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestWikiAPI(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateTestAdmin(t, env.DB, "Root")
	testutil.SeedPage(t, env, admin, "Interface:Common.css", "body { margin: 0 }")

	iface, _ := env.Wiki.Namespaces().ByID(wiki.NSInterface)
	if err := env.Wiki.SetContentType(ctx, admin, iface, "Common.css", wiki.ContentTypeCSS, ""); err != nil {
		t.Fatalf("SetContentType returned error: %v", err)
	}

	t.Run("serves static content", func(t *testing.T) {
		rec := get(t, env, "/wiki-api?action=query&query=static&title=Interface:Common.css")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
			t.Errorf("content type = %q, want text/css", ct)
		}
		if got := body(rec); got != "body { margin: 0 }" {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		rec := get(t, env, "/wiki-api?action=nope&query=static&title=X")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("wikitext pages are not served", func(t *testing.T) {
		testutil.SeedPage(t, env, nil, "Plain", "text")
		rec := get(t, env, "/wiki-api?action=query&query=static&title=Plain")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	rec := get(t, env, "/-/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := body(rec); got != "ok" {
		t.Errorf("body = %q, want ok", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	rec := get(t, env, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	register := postForm(t, env, "/-/register", url.Values{
		"name":      {"Alice"},
		"password":  {"long enough password"},
		"password2": {"long enough password"},
	})
	if register.Code != http.StatusFound {
		t.Fatalf("register status = %d, want 302: %s", register.Code, body(register))
	}
	cookies := register.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("registration set no session cookie")
	}

	t.Run("session is live", func(t *testing.T) {
		rec := get(t, env, "/-/login", cookies...)
		if rec.Code != http.StatusFound {
			t.Errorf("login page for an authenticated user: status = %d, want 302", rec.Code)
		}
	})

	t.Run("mismatched passwords re-render the form", func(t *testing.T) {
		rec := postForm(t, env, "/-/register", url.Values{
			"name":      {"Bob"},
			"password":  {"long enough password"},
			"password2": {"different password"},
		})
		if rec.Code != http.StatusOK || !strings.Contains(body(rec), "Passwords do not match") {
			t.Errorf("status = %d, body missing mismatch message", rec.Code)
		}
	})

	t.Run("login with wrong password fails", func(t *testing.T) {
		rec := postForm(t, env, "/-/login", url.Values{
			"name":     {"Alice"},
			"password": {"wrong"},
		})
		if rec.Code != http.StatusOK || !strings.Contains(body(rec), "Invalid username or password") {
			t.Errorf("status = %d, body missing failure message", rec.Code)
		}
	})

	t.Run("login and logout round trip", func(t *testing.T) {
		login := postForm(t, env, "/-/login", url.Values{
			"name":     {"Alice"},
			"password": {"long enough password"},
			"next":     {"/wiki/Main_Page"},
		})
		if login.Code != http.StatusFound {
			t.Fatalf("login status = %d, want 302", login.Code)
		}
		if loc := login.Header().Get("Location"); loc != "/wiki/Main_Page" {
			t.Errorf("location = %q", loc)
		}
		session := login.Result().Cookies()

		logout := get(t, env, "/-/logout", session...)
		if logout.Code != http.StatusFound {
			t.Errorf("logout status = %d, want 302", logout.Code)
		}
	})
}
