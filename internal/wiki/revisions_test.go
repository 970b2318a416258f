package wiki

import (
	"context"
	"errors"
	"testing"

	"github.com/sa/ottmwiki/internal/db"
)

func revisionIDs(revs []db.Revision) []int64 {
	ids := make([]int64, len(revs))
	for i, r := range revs {
		ids[i] = r.ID
	}
	return ids
}

func TestRevisionTraversal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	main := svc.Namespaces().Main()
	user := newTestUser(t, svc, "Alice")
	admin := newTestUser(t, svc, "Root", GroupAdmins)

	r1 := mustEdit(t, svc, user, "Walked", "v1")
	r2 := mustEdit(t, svc, user, "Walked", "v2")
	r3 := mustEdit(t, svc, user, "Walked", "v3")

	page, err := svc.Get(ctx, main, "Walked")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	t.Run("latest and earliest", func(t *testing.T) {
		latest, err := svc.LatestRevision(ctx, page)
		if err != nil || latest.ID != r3.ID {
			t.Errorf("LatestRevision = %d (%v), want %d", latest.ID, err, r3.ID)
		}
		earliest, err := svc.EarliestRevision(ctx, page)
		if err != nil || earliest.ID != r1.ID {
			t.Errorf("EarliestRevision = %d (%v), want %d", earliest.ID, err, r1.ID)
		}
	})

	t.Run("next and previous", func(t *testing.T) {
		next, err := svc.NextRevision(ctx, &r1, false)
		if err != nil || next.ID != r2.ID {
			t.Errorf("NextRevision(r1) = %d (%v), want %d", next.ID, err, r2.ID)
		}
		prev, err := svc.PreviousRevision(ctx, &r3, false)
		if err != nil || prev.ID != r2.ID {
			t.Errorf("PreviousRevision(r3) = %d (%v), want %d", prev.ID, err, r2.ID)
		}
		if _, err := svc.NextRevision(ctx, &r3, false); !errors.Is(err, ErrRevisionDoesNotExist) {
			t.Errorf("NextRevision(r3) error = %v, want ErrRevisionDoesNotExist", err)
		}
		if _, err := svc.PreviousRevision(ctx, &r1, false); !errors.Is(err, ErrRevisionDoesNotExist) {
			t.Errorf("PreviousRevision(r1) error = %v, want ErrRevisionDoesNotExist", err)
		}
	})

	t.Run("skipHidden steps over masked revisions", func(t *testing.T) {
		if err := svc.MaskRevisions(ctx, admin, main, "Walked", []int64{r2.ID}, MaskFully, ""); err != nil {
			t.Fatalf("MaskRevisions returned error: %v", err)
		}
		next, err := svc.NextRevision(ctx, &r1, true)
		if err != nil || next.ID != r3.ID {
			t.Errorf("NextRevision(r1, skip) = %d (%v), want %d", next.ID, err, r3.ID)
		}
		prev, err := svc.PreviousRevision(ctx, &r3, true)
		if err != nil || prev.ID != r1.ID {
			t.Errorf("PreviousRevision(r3, skip) = %d (%v), want %d", prev.ID, err, r1.ID)
		}
	})

	t.Run("revision of another page is rejected", func(t *testing.T) {
		other := mustEdit(t, svc, user, "Unrelated", "x")
		if _, err := svc.RevisionOf(ctx, page, other.ID); !errors.Is(err, ErrRevisionDoesNotExist) {
			t.Errorf("error = %v, want ErrRevisionDoesNotExist", err)
		}
		got, err := svc.RevisionOf(ctx, page, r1.ID)
		if err != nil || got.ID != r1.ID {
			t.Errorf("RevisionOf(r1) = %d (%v), want %d", got.ID, err, r1.ID)
		}
	})

	t.Run("history is newest first", func(t *testing.T) {
		revs, err := svc.History(ctx, page, 10, 0)
		if err != nil {
			t.Fatalf("History returned error: %v", err)
		}
		if len(revs) != 3 || revs[0].ID != r3.ID || revs[2].ID != r1.ID {
			t.Errorf("history order = %+v, want r3..r1", revisionIDs(revs))
		}
		window, err := svc.History(ctx, page, 1, 1)
		if err != nil || len(window) != 1 || window[0].ID != r2.ID {
			t.Errorf("history window = %+v (%v), want [r2]", revisionIDs(window), err)
		}
	})
}

func TestLatestRevisionOnShadowPage(t *testing.T) {
	svc := newTestService(t)
	main := svc.Namespaces().Main()
	page, _ := svc.Get(context.Background(), main, "Nothing")
	if _, err := svc.LatestRevision(context.Background(), page); !errors.Is(err, ErrPageDoesNotExist) {
		t.Errorf("error = %v, want ErrPageDoesNotExist", err)
	}
}
