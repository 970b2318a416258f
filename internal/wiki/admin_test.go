package wiki

import (
	"context"
	"errors"
	"testing"
)

func TestDeletePage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	main := svc.Namespaces().Main()
	user := newTestUser(t, svc, "Alice")
	admin := newTestUser(t, svc, "Root", GroupAdmins)

	mustEdit(t, svc, user, "Doomed", "content")

	t.Run("requires wiki_delete", func(t *testing.T) {
		err := svc.Delete(ctx, user, main, "Doomed", "no reason")
		var missing *MissingPermissionError
		if !errors.As(err, &missing) {
			t.Errorf("error = %v, want MissingPermissionError", err)
		}
	})

	t.Run("soft-deletes and logs", func(t *testing.T) {
		if err := svc.Delete(ctx, admin, main, "Doomed", "cleanup"); err != nil {
			t.Fatalf("Delete returned error: %v", err)
		}
		exists, err := svc.PageExists(ctx, main.ID, "Doomed")
		if err != nil {
			t.Fatalf("PageExists returned error: %v", err)
		}
		if exists {
			t.Error("deleted page still reported as existing")
		}
		// Revisions survive the deletion.
		page, _ := svc.Queries().GetPage(ctx, main.ID, "Doomed")
		n, err := svc.Queries().CountRevisions(ctx, page.ID)
		if err != nil || n != 1 {
			t.Errorf("revisions after delete = %d (%v), want 1", n, err)
		}
	})

	t.Run("deleting again fails", func(t *testing.T) {
		err := svc.Delete(ctx, admin, main, "Doomed", "again")
		if !errors.Is(err, ErrPageDoesNotExist) {
			t.Errorf("error = %v, want ErrPageDoesNotExist", err)
		}
	})
}

func TestRenamePage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	main := svc.Namespaces().Main()
	user := newTestUser(t, svc, "Alice")
	admin := newTestUser(t, svc, "Root", GroupAdmins)

	mustEdit(t, svc, user, "Original", "the content")
	mustEdit(t, svc, user, "Occupied", "already here")

	t.Run("target must be free", func(t *testing.T) {
		err := svc.Rename(ctx, admin, main, "Original", main, "Occupied", RenameParams{})
		if !errors.Is(err, ErrTitleAlreadyExists) {
			t.Errorf("error = %v, want ErrTitleAlreadyExists", err)
		}
	})

	t.Run("moves page and leaves redirect", func(t *testing.T) {
		err := svc.Rename(ctx, admin, main, "Original", main, "Renamed", RenameParams{
			Reason:        "better name",
			LeaveRedirect: true,
		})
		if err != nil {
			t.Fatalf("Rename returned error: %v", err)
		}

		moved, err := svc.Get(ctx, main, "Renamed")
		if err != nil || !moved.Exists {
			t.Fatalf("renamed page missing: %v", err)
		}
		latest, err := svc.LatestRevision(ctx, moved)
		if err != nil || latest.Content != "the content" {
			t.Errorf("moved content = %q (%v), want original content", latest.Content, err)
		}

		old, err := svc.Get(ctx, main, "Original")
		if err != nil || !old.Exists {
			t.Fatalf("redirect page missing: %v", err)
		}
		if !old.IsRedirect() || old.RedirectsToTitle.String != "Renamed" {
			t.Errorf("old page redirect = %+v, want Renamed", old.RedirectsToTitle)
		}
	})

	t.Run("without redirect the old title is free", func(t *testing.T) {
		mustEdit(t, svc, user, "Short Lived", "x")
		if err := svc.Rename(ctx, admin, main, "Short Lived", main, "Long Lived", RenameParams{}); err != nil {
			t.Fatalf("Rename returned error: %v", err)
		}
		exists, _ := svc.PageExists(ctx, main.ID, "Short Lived")
		if exists {
			t.Error("old title still occupied after rename without redirect")
		}
	})
}

func TestMaskRevisions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	main := svc.Namespaces().Main()
	user := newTestUser(t, svc, "Alice")
	admin := newTestUser(t, svc, "Root", GroupAdmins)

	r1 := mustEdit(t, svc, user, "Masked Page", "v1")
	r2 := mustEdit(t, svc, user, "Masked Page", "v2")
	r3 := mustEdit(t, svc, user, "Masked Page", "v3")

	t.Run("requires wiki_mask", func(t *testing.T) {
		err := svc.MaskRevisions(ctx, user, main, "Masked Page", []int64{r1.ID}, MaskFully, "")
		var missing *MissingPermissionError
		if !errors.As(err, &missing) {
			t.Errorf("error = %v, want MissingPermissionError", err)
		}
	})

	t.Run("action flag matrix", func(t *testing.T) {
		tests := []struct {
			action        MaskAction
			hidden        bool
			commentHidden bool
		}{
			{MaskFully, true, true},
			{MaskCommentsOnly, false, true},
			{UnmaskAllButComment, false, true},
			{UnmaskAll, false, false},
		}
		for _, tt := range tests {
			if err := svc.MaskRevisions(ctx, admin, main, "Masked Page", []int64{r1.ID}, tt.action, "test"); err != nil {
				t.Fatalf("%s returned error: %v", tt.action, err)
			}
			rev, err := svc.Queries().GetRevision(ctx, r1.ID)
			if err != nil {
				t.Fatalf("GetRevision returned error: %v", err)
			}
			if rev.Hidden != tt.hidden || rev.CommentHidden != tt.commentHidden {
				t.Errorf("%s = (%v, %v), want (%v, %v)",
					tt.action, rev.Hidden, rev.CommentHidden, tt.hidden, tt.commentHidden)
			}
		}
	})

	t.Run("cannot hide the last visible revision", func(t *testing.T) {
		err := svc.MaskRevisions(ctx, admin, main, "Masked Page", []int64{r1.ID, r2.ID, r3.ID}, MaskFully, "")
		if !errors.Is(err, ErrCannotMaskLastRevision) {
			t.Errorf("error = %v, want ErrCannotMaskLastRevision", err)
		}
		// Hiding all but one is fine.
		if err := svc.MaskRevisions(ctx, admin, main, "Masked Page", []int64{r1.ID, r2.ID}, MaskFully, ""); err != nil {
			t.Errorf("partial mask returned error: %v", err)
		}
	})

	t.Run("foreign revision ids are rejected", func(t *testing.T) {
		other := mustEdit(t, svc, user, "Other Page", "elsewhere")
		err := svc.MaskRevisions(ctx, admin, main, "Masked Page", []int64{other.ID}, MaskCommentsOnly, "")
		if !errors.Is(err, ErrRevisionDoesNotExist) {
			t.Errorf("error = %v, want ErrRevisionDoesNotExist", err)
		}
	})
}

func TestSetContentType(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user := newTestUser(t, svc, "Alice")
	admin := newTestUser(t, svc, "Root", GroupAdmins)
	iface, _ := svc.Namespaces().ByID(NSInterface)

	mustEdit(t, svc, admin, "Interface:Common.css", "body { }")

	if err := svc.SetContentType(ctx, admin, iface, "Common.css", ContentTypeCSS, "style page"); err != nil {
		t.Fatalf("SetContentType returned error: %v", err)
	}
	page, _ := svc.Get(ctx, iface, "Common.css")
	if page.ContentType != ContentTypeCSS {
		t.Errorf("content type = %q, want css", page.ContentType)
	}

	if err := svc.SetContentType(ctx, admin, iface, "Common.css", "spreadsheet", ""); err == nil {
		t.Error("unknown content type accepted")
	}
	err := svc.SetContentType(ctx, user, iface, "Common.css", ContentTypeJS, "")
	var missing *MissingPermissionError
	if !errors.As(err, &missing) {
		t.Errorf("error = %v, want MissingPermissionError", err)
	}
}

func TestSetContentLanguage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	main := svc.Namespaces().Main()
	admin := newTestUser(t, svc, "Root", GroupAdmins)

	mustEdit(t, svc, admin, "Translated", "contenu")
	if err := svc.SetContentLanguage(ctx, admin, main, "Translated", "fr", "French page"); err != nil {
		t.Fatalf("SetContentLanguage returned error: %v", err)
	}
	page, _ := svc.Get(ctx, main, "Translated")
	if page.ContentLanguage != "fr" {
		t.Errorf("content language = %q, want fr", page.ContentLanguage)
	}
}
