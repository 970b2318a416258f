package wiki

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/models"
)

var (
	// ErrTopicDoesNotExist marks a reference to a missing or deleted topic.
	ErrTopicDoesNotExist = errors.New("topic does not exist")
	// ErrMessageDoesNotExist marks a reference to a missing message.
	ErrMessageDoesNotExist = errors.New("message does not exist")
	// ErrEmptyMessage marks an attempt to post blank text.
	ErrEmptyMessage = errors.New("empty message")
)

// Thread is a topic together with its messages in chronological order.
type Thread struct {
	Topic    db.Topic
	Messages []db.Message
}

// OpenTopic starts a new talk thread on (ns, title) with a first message.
// The page itself need not exist yet; it is created empty to anchor the
// thread.
func (s *Service) OpenTopic(ctx context.Context, author *models.User, ns *Namespace, title string, topicTitle, text string) (db.Topic, error) {
	now := time.Now()
	if topicTitle == "" || text == "" {
		return db.Topic{}, ErrEmptyMessage
	}
	if err := s.CanPostMessages(ctx, author, ns, title, now); err != nil {
		return db.Topic{}, err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return db.Topic{}, err
	}
	defer tx.Rollback()
	q := s.db.WithTx(tx)

	page, err := q.GetPage(ctx, ns.ID, title)
	if errors.Is(err, sql.ErrNoRows) {
		page, err = q.CreatePage(ctx, db.CreatePageParams{
			NamespaceID:     ns.ID,
			Title:           title,
			ContentLanguage: s.cfg.SiteLang,
		})
	}
	if err != nil {
		return db.Topic{}, err
	}

	authorID, err := s.materializeAuthor(ctx, q, author, now)
	if err != nil {
		return db.Topic{}, err
	}

	topic, err := q.CreateTopic(ctx, page.ID, authorID, topicTitle, now)
	if err != nil {
		return db.Topic{}, err
	}
	if _, err := q.CreateMessage(ctx, topic.ID, authorID, sql.NullInt64{}, text, now); err != nil {
		return db.Topic{}, err
	}
	if err := tx.Commit(); err != nil {
		return db.Topic{}, err
	}
	return topic, nil
}

// PostMessage appends a message to an existing topic, optionally replying to
// a parent message in the same topic.
func (s *Service) PostMessage(ctx context.Context, author *models.User, topicID int64, parentID *int64, text string) (db.Message, error) {
	now := time.Now()
	if text == "" {
		return db.Message{}, ErrEmptyMessage
	}

	topic, err := s.db.Queries.GetTopic(ctx, topicID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Message{}, ErrTopicDoesNotExist
	}
	if err != nil {
		return db.Message{}, err
	}
	if topic.Deleted {
		return db.Message{}, ErrTopicDoesNotExist
	}

	page, err := s.GetByID(ctx, topic.PageID)
	if err != nil {
		return db.Message{}, err
	}
	if err := s.CanPostMessages(ctx, author, page.Namespace, page.Title, now); err != nil {
		return db.Message{}, err
	}

	var parent sql.NullInt64
	if parentID != nil {
		p, err := s.db.Queries.GetMessage(ctx, *parentID)
		if errors.Is(err, sql.ErrNoRows) {
			return db.Message{}, ErrMessageDoesNotExist
		}
		if err != nil {
			return db.Message{}, err
		}
		if p.TopicID != topicID {
			return db.Message{}, fmt.Errorf("message %d belongs to another topic", *parentID)
		}
		parent = db.NullInt64(p.ID)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return db.Message{}, err
	}
	defer tx.Rollback()
	q := s.db.WithTx(tx)

	authorID, err := s.materializeAuthor(ctx, q, author, now)
	if err != nil {
		return db.Message{}, err
	}
	msg, err := q.CreateMessage(ctx, topicID, authorID, parent, text, now)
	if err != nil {
		return db.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return db.Message{}, err
	}
	return msg, nil
}

// Threads returns the talk threads of a page, newest topic first. Deleted
// topics and messages are filtered out.
func (s *Service) Threads(ctx context.Context, page *Page) ([]Thread, error) {
	if !page.Exists {
		return nil, nil
	}
	topics, err := s.db.Queries.ListTopics(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	out := make([]Thread, 0, len(topics))
	for _, t := range topics {
		msgs, err := s.db.Queries.ListMessages(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Thread{Topic: t, Messages: msgs})
	}
	return out, nil
}

// DeleteTopic soft-deletes a whole thread.
func (s *Service) DeleteTopic(ctx context.Context, performer *models.User, topicID int64) error {
	if !performer.HasPermission(PermWikiDelete) {
		return &MissingPermissionError{Perms: []string{PermWikiDelete}}
	}
	return s.db.Queries.SetTopicDeleted(ctx, topicID, true)
}

// DeleteMessage soft-deletes one message. Authors may delete their own.
func (s *Service) DeleteMessage(ctx context.Context, performer *models.User, messageID int64) error {
	msg, err := s.db.Queries.GetMessage(ctx, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMessageDoesNotExist
	}
	if err != nil {
		return err
	}
	if msg.AuthorID != performer.ID() && !performer.HasPermission(PermWikiDelete) {
		return &MissingPermissionError{Perms: []string{PermWikiDelete}}
	}
	return s.db.Queries.SetMessageDeleted(ctx, messageID, true)
}
