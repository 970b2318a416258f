package db

import (
	"context"
	"database/sql"
	"time"
)

// CreateTopic inserts a discussion topic and returns the stored row.
func (q *Queries) CreateTopic(ctx context.Context, pageID, authorID int64, title string, date time.Time) (Topic, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO topic (page_id, author_id, title, date) VALUES (?, ?, ?, ?)`,
		pageID, authorID, title, date)
	if err != nil {
		return Topic{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Topic{}, err
	}
	return q.GetTopic(ctx, id)
}

// GetTopic returns the topic with the given id.
func (q *Queries) GetTopic(ctx context.Context, id int64) (Topic, error) {
	var t Topic
	err := q.db.QueryRowContext(ctx, `
		SELECT id, page_id, author_id, title, date, deleted FROM topic WHERE id = ?`,
		id).Scan(&t.ID, &t.PageID, &t.AuthorID, &t.Title, &t.Date, &t.Deleted)
	return t, err
}

// ListTopics returns a page's non-deleted topics, newest first.
func (q *Queries) ListTopics(ctx context.Context, pageID int64) ([]Topic, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, page_id, author_id, title, date, deleted FROM topic
		WHERE page_id = ? AND NOT deleted ORDER BY date DESC`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.PageID, &t.AuthorID, &t.Title, &t.Date, &t.Deleted); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// SetTopicDeleted flips a topic's deletion flag.
func (q *Queries) SetTopicDeleted(ctx context.Context, id int64, deleted bool) error {
	_, err := q.db.ExecContext(ctx, `UPDATE topic SET deleted = ? WHERE id = ?`, deleted, id)
	return err
}

// CreateMessage inserts a message and returns the stored row.
func (q *Queries) CreateMessage(ctx context.Context, topicID, authorID int64, parentID sql.NullInt64, text string, date time.Time) (Message, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO message (topic_id, author_id, parent_id, text, date)
		VALUES (?, ?, ?, ?, ?)`, topicID, authorID, parentID, text, date)
	if err != nil {
		return Message{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Message{}, err
	}
	return q.GetMessage(ctx, id)
}

// GetMessage returns the message with the given id.
func (q *Queries) GetMessage(ctx context.Context, id int64) (Message, error) {
	var m Message
	err := q.db.QueryRowContext(ctx, `
		SELECT id, topic_id, author_id, parent_id, text, date, deleted
		FROM message WHERE id = ?`, id).Scan(&m.ID, &m.TopicID, &m.AuthorID,
		&m.ParentID, &m.Text, &m.Date, &m.Deleted)
	return m, err
}

// ListMessages returns a topic's non-deleted messages, oldest first.
func (q *Queries) ListMessages(ctx context.Context, topicID int64) ([]Message, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, topic_id, author_id, parent_id, text, date, deleted FROM message
		WHERE topic_id = ? AND NOT deleted ORDER BY date ASC`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TopicID, &m.AuthorID, &m.ParentID, &m.Text,
			&m.Date, &m.Deleted); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SetMessageDeleted flips a message's deletion flag.
func (q *Queries) SetMessageDeleted(ctx context.Context, id int64, deleted bool) error {
	_, err := q.db.ExecContext(ctx, `UPDATE message SET deleted = ? WHERE id = ?`, deleted, id)
	return err
}
