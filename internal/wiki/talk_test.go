package wiki

import (
	"context"
	"errors"
	"testing"

	"github.com/sa/ottmwiki/internal/models"
)

func TestOpenTopicCreatesAnchorPage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	main := svc.Namespaces().Main()
	user := newTestUser(t, svc, "Alice")

	topic, err := svc.OpenTopic(ctx, user, main, "Future Page", "First question", "Does this exist yet?")
	if err != nil {
		t.Fatalf("OpenTopic returned error: %v", err)
	}
	if topic.Title != "First question" {
		t.Errorf("topic title = %q", topic.Title)
	}

	// The anchor page row exists but carries no revisions.
	page, err := svc.Get(ctx, main, "Future Page")
	if err != nil || !page.Exists {
		t.Fatalf("anchor page missing: %v", err)
	}
	if _, err := svc.LatestRevision(ctx, page); !errors.Is(err, ErrNoRevisions) {
		t.Errorf("anchor page revisions error = %v, want ErrNoRevisions", err)
	}

	threads, err := svc.Threads(ctx, page)
	if err != nil {
		t.Fatalf("Threads returned error: %v", err)
	}
	if len(threads) != 1 || len(threads[0].Messages) != 1 {
		t.Fatalf("threads = %+v, want one topic with one message", threads)
	}
	if threads[0].Messages[0].Text != "Does this exist yet?" {
		t.Errorf("message text = %q", threads[0].Messages[0].Text)
	}
}

func TestOpenTopicValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	main := svc.Namespaces().Main()
	user := newTestUser(t, svc, "Alice")

	if _, err := svc.OpenTopic(ctx, user, main, "Page", "", "text"); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty title error = %v, want ErrEmptyMessage", err)
	}
	if _, err := svc.OpenTopic(ctx, user, main, "Page", "title", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty text error = %v, want ErrEmptyMessage", err)
	}
	special, _ := svc.Namespaces().ByID(NSSpecial)
	if _, err := svc.OpenTopic(ctx, user, special, "RecentChanges", "t", "x"); !errors.Is(err, ErrEditSpecialPage) {
		t.Errorf("special ns error = %v, want ErrEditSpecialPage", err)
	}
}

func TestPostMessage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	main := svc.Namespaces().Main()
	user := newTestUser(t, svc, "Alice")
	anon := models.Anonymous("203.0.113.77")

	topic, err := svc.OpenTopic(ctx, user, main, "Debated", "Thread", "opening post")
	if err != nil {
		t.Fatalf("OpenTopic returned error: %v", err)
	}

	t.Run("reply to topic", func(t *testing.T) {
		msg, err := svc.PostMessage(ctx, anon, topic.ID, nil, "anonymous reply")
		if err != nil {
			t.Fatalf("PostMessage returned error: %v", err)
		}
		if msg.TopicID != topic.ID || msg.ParentID.Valid {
			t.Errorf("message = %+v, want top-level in topic", msg)
		}
	})

	t.Run("reply to message", func(t *testing.T) {
		page, _ := svc.Get(ctx, main, "Debated")
		threads, _ := svc.Threads(ctx, page)
		first := threads[0].Messages[0]
		msg, err := svc.PostMessage(ctx, user, topic.ID, &first.ID, "threaded reply")
		if err != nil {
			t.Fatalf("PostMessage returned error: %v", err)
		}
		if !msg.ParentID.Valid || msg.ParentID.Int64 != first.ID {
			t.Errorf("parent = %+v, want %d", msg.ParentID, first.ID)
		}
	})

	t.Run("parent must be in the same topic", func(t *testing.T) {
		other, err := svc.OpenTopic(ctx, user, main, "Debated", "Another thread", "hello")
		if err != nil {
			t.Fatalf("OpenTopic returned error: %v", err)
		}
		page, _ := svc.Get(ctx, main, "Debated")
		threads, _ := svc.Threads(ctx, page)
		var foreignMsg int64
		for _, th := range threads {
			if th.Topic.ID != other.ID {
				foreignMsg = th.Messages[0].ID
			}
		}
		if _, err := svc.PostMessage(ctx, user, other.ID, &foreignMsg, "cross post"); err == nil {
			t.Error("reply across topics was accepted")
		}
	})

	t.Run("unknown topic", func(t *testing.T) {
		if _, err := svc.PostMessage(ctx, user, 99999, nil, "void"); !errors.Is(err, ErrTopicDoesNotExist) {
			t.Errorf("error = %v, want ErrTopicDoesNotExist", err)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if _, err := svc.PostMessage(ctx, user, topic.ID, nil, ""); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("error = %v, want ErrEmptyMessage", err)
		}
	})
}

func TestDeleteTopicAndMessage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	main := svc.Namespaces().Main()
	user := newTestUser(t, svc, "Alice")
	other := newTestUser(t, svc, "Bob")
	admin := newTestUser(t, svc, "Root", GroupAdmins)

	topic, err := svc.OpenTopic(ctx, user, main, "Moderated", "Thread", "first")
	if err != nil {
		t.Fatalf("OpenTopic returned error: %v", err)
	}
	msg, err := svc.PostMessage(ctx, user, topic.ID, nil, "second")
	if err != nil {
		t.Fatalf("PostMessage returned error: %v", err)
	}

	t.Run("authors may delete their own messages", func(t *testing.T) {
		if err := svc.DeleteMessage(ctx, other, msg.ID); err == nil {
			t.Error("foreign delete without wiki_delete was accepted")
		}
		if err := svc.DeleteMessage(ctx, user, msg.ID); err != nil {
			t.Errorf("own delete returned error: %v", err)
		}
	})

	t.Run("topic deletion needs wiki_delete", func(t *testing.T) {
		if err := svc.DeleteTopic(ctx, user, topic.ID); err == nil {
			t.Error("topic delete without wiki_delete was accepted")
		}
		if err := svc.DeleteTopic(ctx, admin, topic.ID); err != nil {
			t.Fatalf("DeleteTopic returned error: %v", err)
		}
		page, _ := svc.Get(ctx, main, "Moderated")
		threads, err := svc.Threads(ctx, page)
		if err != nil {
			t.Fatalf("Threads returned error: %v", err)
		}
		if len(threads) != 0 {
			t.Errorf("threads after delete = %d, want 0", len(threads))
		}
		if _, err := svc.PostMessage(ctx, user, topic.ID, nil, "too late"); !errors.Is(err, ErrTopicDoesNotExist) {
			t.Errorf("post on deleted topic error = %v, want ErrTopicDoesNotExist", err)
		}
	})
}
