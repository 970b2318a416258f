package wiki

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/models"
)

func TestCanEditPage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()
	reg := svc.Namespaces()

	user := newTestUser(t, svc, "Alice")
	admin := newTestUser(t, svc, "Root", GroupAdmins)
	anon := models.Anonymous("203.0.113.5")

	t.Run("special namespace is never editable", func(t *testing.T) {
		special, _ := reg.ByID(NSSpecial)
		err := svc.CanEditPage(ctx, user, special, "RecentChanges", now)
		if !errors.Is(err, ErrEditSpecialPage) {
			t.Errorf("error = %v, want ErrEditSpecialPage", err)
		}
	})

	t.Run("anonymous may edit through the all group", func(t *testing.T) {
		if err := svc.CanEditPage(ctx, anon, reg.Main(), "Open Page", now); err != nil {
			t.Errorf("anonymous edit rejected: %v", err)
		}
	})

	t.Run("interface namespace needs wiki_edit_interface", func(t *testing.T) {
		iface, _ := reg.ByID(NSInterface)
		err := svc.CanEditPage(ctx, user, iface, "Common.css", now)
		var missing *MissingPermissionError
		if !errors.As(err, &missing) {
			t.Fatalf("error = %v, want MissingPermissionError", err)
		}
		if err := svc.CanEditPage(ctx, admin, iface, "Common.css", now); err != nil {
			t.Errorf("admin edit rejected: %v", err)
		}
	})

	t.Run("foreign user pages need wiki_edit_user_pages", func(t *testing.T) {
		userNS, _ := reg.ByID(NSUser)
		if err := svc.CanEditPage(ctx, user, userNS, "Alice/Notes", now); err != nil {
			t.Errorf("own user page rejected: %v", err)
		}
		err := svc.CanEditPage(ctx, user, userNS, "Bob", now)
		var missing *MissingPermissionError
		if !errors.As(err, &missing) {
			t.Errorf("foreign user page error = %v, want MissingPermissionError", err)
		}
		if err := svc.CanEditPage(ctx, admin, userNS, "Bob", now); err != nil {
			t.Errorf("admin on foreign user page rejected: %v", err)
		}
	})
}

func TestCanEditPageBlocks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()
	main := svc.Namespaces().Main()
	admin := newTestUser(t, svc, "Root", GroupAdmins)

	t.Run("blocked account", func(t *testing.T) {
		target := newTestUser(t, svc, "Troublemaker")
		if err := svc.BlockUser(ctx, admin, target.User, nil, false, false, "spam"); err != nil {
			t.Fatalf("BlockUser returned error: %v", err)
		}
		err := svc.CanEditPage(ctx, target, main, "Any Page", now)
		if !errors.Is(err, ErrBlocked) {
			t.Errorf("error = %v, want ErrBlocked", err)
		}
	})

	t.Run("blocked IP", func(t *testing.T) {
		if err := svc.BlockIP(ctx, admin, "198.51.100.99", nil, false, "abuse"); err != nil {
			t.Fatalf("BlockIP returned error: %v", err)
		}
		err := svc.CanEditPage(ctx, models.Anonymous("198.51.100.99"), main, "Any Page", now)
		if !errors.Is(err, ErrBlocked) {
			t.Errorf("error = %v, want ErrBlocked", err)
		}
		if err := svc.CanEditPage(ctx, models.Anonymous("198.51.100.98"), main, "Any Page", now); err != nil {
			t.Errorf("unblocked IP rejected: %v", err)
		}
	})

	t.Run("expired block does not apply", func(t *testing.T) {
		target := newTestUser(t, svc, "Reformed")
		past := now.Add(-time.Hour)
		if err := svc.BlockUser(ctx, admin, target.User, &past, false, false, "old"); err != nil {
			t.Fatalf("BlockUser returned error: %v", err)
		}
		if err := svc.CanEditPage(ctx, target, main, "Any Page", now); err != nil {
			t.Errorf("expired block still applies: %v", err)
		}
	})
}

func TestCanEditPageProtections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()
	main := svc.Namespaces().Main()

	user := newTestUser(t, svc, "Alice")
	admin := newTestUser(t, svc, "Root", GroupAdmins)
	anon := models.Anonymous("203.0.113.9")

	if err := svc.Protect(ctx, admin, main, "Locked", ProtectParams{Level: GroupAdmins, Reason: "vandalism"}); err != nil {
		t.Fatalf("Protect returned error: %v", err)
	}

	if err := svc.CanEditPage(ctx, user, main, "Locked", now); !errors.Is(err, ErrProtected) {
		t.Errorf("user on admin-protected page: error = %v, want ErrProtected", err)
	}
	if err := svc.CanEditPage(ctx, anon, main, "Locked", now); !errors.Is(err, ErrProtected) {
		t.Errorf("anon on admin-protected page: error = %v, want ErrProtected", err)
	}
	if err := svc.CanEditPage(ctx, admin, main, "Locked", now); err != nil {
		t.Errorf("admin on admin-protected page rejected: %v", err)
	}

	t.Run("users-level protection excludes anonymous only", func(t *testing.T) {
		if err := svc.Protect(ctx, admin, main, "Semi", ProtectParams{Level: GroupUsers}); err != nil {
			t.Fatalf("Protect returned error: %v", err)
		}
		if err := svc.CanEditPage(ctx, user, main, "Semi", now); err != nil {
			t.Errorf("account on users-protected page rejected: %v", err)
		}
		if err := svc.CanEditPage(ctx, anon, main, "Semi", now); !errors.Is(err, ErrProtected) {
			t.Errorf("anon on users-protected page: error = %v, want ErrProtected", err)
		}
	})

	t.Run("removing the protection reopens the page", func(t *testing.T) {
		if err := svc.Protect(ctx, admin, main, "Locked", ProtectParams{Level: ""}); err != nil {
			t.Fatalf("unprotect returned error: %v", err)
		}
		if err := svc.CanEditPage(ctx, user, main, "Locked", now); err != nil {
			t.Errorf("page still protected after removal: %v", err)
		}
	})

	t.Run("expired protection does not apply", func(t *testing.T) {
		past := now.Add(-time.Minute)
		if err := svc.Protect(ctx, admin, main, "Was Locked", ProtectParams{Level: GroupAdmins, EndDate: &past}); err != nil {
			t.Fatalf("Protect returned error: %v", err)
		}
		if err := svc.CanEditPage(ctx, user, main, "Was Locked", now); err != nil {
			t.Errorf("expired protection still applies: %v", err)
		}
	})
}

func TestCanPostMessagesProtectTalks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()
	main := svc.Namespaces().Main()

	user := newTestUser(t, svc, "Alice")
	admin := newTestUser(t, svc, "Root", GroupAdmins)

	// Protection without protect_talks leaves talk open.
	if err := svc.Protect(ctx, admin, main, "Guarded", ProtectParams{Level: GroupAdmins}); err != nil {
		t.Fatalf("Protect returned error: %v", err)
	}
	if err := svc.CanPostMessages(ctx, user, main, "Guarded", now); err != nil {
		t.Errorf("talk blocked without protect_talks: %v", err)
	}

	if err := svc.Protect(ctx, admin, main, "Guarded", ProtectParams{Level: GroupAdmins, ProtectTalks: true}); err != nil {
		t.Fatalf("Protect returned error: %v", err)
	}
	if err := svc.CanPostMessages(ctx, user, main, "Guarded", now); !errors.Is(err, ErrProtected) {
		t.Errorf("error = %v, want ErrProtected", err)
	}
}

func TestBlockedUserMayPostOnOwnTalkWhenAllowed(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()
	userNS, _ := svc.Namespaces().ByID(NSUser)
	admin := newTestUser(t, svc, "Root", GroupAdmins)

	target := newTestUser(t, svc, "Blocked")
	if err := svc.BlockUser(ctx, admin, target.User, nil, true, false, "but may appeal"); err != nil {
		t.Fatalf("BlockUser returned error: %v", err)
	}

	if err := svc.CanPostMessages(ctx, target, userNS, "Blocked", now); err != nil {
		t.Errorf("own talk rejected despite allowance: %v", err)
	}
	main := svc.Namespaces().Main()
	if err := svc.CanPostMessages(ctx, target, main, "Elsewhere", now); !errors.Is(err, ErrBlocked) {
		t.Errorf("error = %v, want ErrBlocked", err)
	}
}

func TestCanReadRevisionMasks(t *testing.T) {
	svc := newTestService(t)
	user := newTestUser(t, svc, "Alice")
	admin := newTestUser(t, svc, "Root", GroupAdmins)

	visible := &db.Revision{}
	hidden := &db.Revision{Hidden: true, CommentHidden: true}

	if !svc.CanReadRevision(user, visible) {
		t.Error("visible revision should be readable by anyone")
	}
	if svc.CanReadRevision(user, hidden) {
		t.Error("hidden revision should not be readable without wiki_mask")
	}
	if !svc.CanReadRevision(admin, hidden) {
		t.Error("hidden revision should be readable with wiki_mask")
	}
	if svc.CanReadComment(user, hidden) {
		t.Error("hidden comment should not be readable without wiki_mask")
	}
	if !svc.CanReadComment(admin, hidden) {
		t.Error("hidden comment should be readable with wiki_mask")
	}
}
