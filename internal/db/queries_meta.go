package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// escapeLike escapes LIKE metacharacters using backslash.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// inClause expands a %s placeholder into len(ids) question marks.
func inClause(query string, ids []int) (string, []interface{}) {
	if len(ids) == 0 {
		ids = []int{-1 << 30}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return fmt.Sprintf(query, placeholders), args
}

// UpsertProtection inserts or replaces a page protection.
func (q *Queries) UpsertProtection(ctx context.Context, p PageProtection) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO page_protection (namespace_id, title, end_date, protection_level,
			protect_talks, reason)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace_id, title) DO UPDATE SET
			end_date = excluded.end_date,
			protection_level = excluded.protection_level,
			protect_talks = excluded.protect_talks,
			reason = excluded.reason`,
		p.NamespaceID, p.Title, p.EndDate, p.ProtectionLevel, p.ProtectTalks, p.Reason)
	return err
}

// GetProtection returns the protection row for (namespace, title).
func (q *Queries) GetProtection(ctx context.Context, namespaceID int, title string) (PageProtection, error) {
	var p PageProtection
	err := q.db.QueryRowContext(ctx, `
		SELECT namespace_id, title, end_date, protection_level, protect_talks, reason
		FROM page_protection WHERE namespace_id = ? AND title = ?`,
		namespaceID, title).Scan(&p.NamespaceID, &p.Title, &p.EndDate,
		&p.ProtectionLevel, &p.ProtectTalks, &p.Reason)
	return p, err
}

// DeleteProtection removes a page protection.
func (q *Queries) DeleteProtection(ctx context.Context, namespaceID int, title string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM page_protection WHERE namespace_id = ? AND title = ?`,
		namespaceID, title)
	return err
}

// DeleteExpiredProtections removes protections whose end date has passed.
func (q *Queries) DeleteExpiredProtections(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM page_protection WHERE end_date IS NOT NULL AND end_date <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertFollow inserts or replaces a follow status.
func (q *Queries) UpsertFollow(ctx context.Context, f PageFollowStatus) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO page_follow_status (user_id, namespace_id, title, end_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, namespace_id, title) DO UPDATE SET
			end_date = excluded.end_date`,
		f.UserID, f.NamespaceID, f.Title, f.EndDate)
	return err
}

// GetFollow returns the follow status for (user, namespace, title).
func (q *Queries) GetFollow(ctx context.Context, userID int64, namespaceID int, title string) (PageFollowStatus, error) {
	var f PageFollowStatus
	err := q.db.QueryRowContext(ctx, `
		SELECT user_id, namespace_id, title, end_date FROM page_follow_status
		WHERE user_id = ? AND namespace_id = ? AND title = ?`,
		userID, namespaceID, title).Scan(&f.UserID, &f.NamespaceID, &f.Title, &f.EndDate)
	return f, err
}

// DeleteFollow removes a follow status.
func (q *Queries) DeleteFollow(ctx context.Context, userID int64, namespaceID int, title string) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM page_follow_status
		WHERE user_id = ? AND namespace_id = ? AND title = ?`, userID, namespaceID, title)
	return err
}

// ListFollows returns all follow statuses of a user.
func (q *Queries) ListFollows(ctx context.Context, userID int64) ([]PageFollowStatus, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT user_id, namespace_id, title, end_date FROM page_follow_status
		WHERE user_id = ? ORDER BY namespace_id, title`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var follows []PageFollowStatus
	for rows.Next() {
		var f PageFollowStatus
		if err := rows.Scan(&f.UserID, &f.NamespaceID, &f.Title, &f.EndDate); err != nil {
			return nil, err
		}
		follows = append(follows, f)
	}
	return follows, rows.Err()
}

// DeleteAllFollows removes every follow status of a user.
func (q *Queries) DeleteAllFollows(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM page_follow_status WHERE user_id = ?`, userID)
	return err
}

// DeleteExpiredFollows removes follow statuses whose end date has passed.
func (q *Queries) DeleteExpiredFollows(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM page_follow_status WHERE end_date IS NOT NULL AND end_date <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReplacePageCategories replaces a page's category rows.
func (q *Queries) ReplacePageCategories(ctx context.Context, pageID int64, cats []PageCategory) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM page_category WHERE page_id = ?`, pageID); err != nil {
		return err
	}
	for _, c := range cats {
		if _, err := q.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO page_category (page_id, cat_title, sort_key)
			VALUES (?, ?, ?)`, pageID, c.CatTitle, c.SortKey); err != nil {
			return err
		}
	}
	return nil
}

// ListPageCategories returns a page's categories.
func (q *Queries) ListPageCategories(ctx context.Context, pageID int64) ([]PageCategory, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT page_id, cat_title, sort_key FROM page_category
		WHERE page_id = ? ORDER BY cat_title`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []PageCategory
	for rows.Next() {
		var c PageCategory
		if err := rows.Scan(&c.PageID, &c.CatTitle, &c.SortKey); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// ListCategoryMembers returns the non-deleted pages carrying the category,
// ordered by sort key then title.
func (q *Queries) ListCategoryMembers(ctx context.Context, catTitle string) ([]Page, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+pageColumnsPrefixed("p.")+`
		FROM page p
		JOIN page_category c ON c.page_id = p.id
		WHERE c.cat_title = ? AND NOT p.deleted
		ORDER BY COALESCE(c.sort_key, p.title), p.title`, catTitle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPages(rows)
}

// CountPagesInCategoryByNamespace returns the number of category members in
// the given namespaces, or all members when namespaceIDs is nil.
func (q *Queries) CountPagesInCategoryByNamespace(ctx context.Context, catTitle string, namespaceIDs []int) (int64, error) {
	var n int64
	if namespaceIDs == nil {
		err := q.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM page_category c
			JOIN page p ON p.id = c.page_id
			WHERE c.cat_title = ? AND NOT p.deleted`, catTitle).Scan(&n)
		return n, err
	}
	query, args := inClause(`
		SELECT COUNT(*) FROM page_category c
		JOIN page p ON p.id = c.page_id
		WHERE c.cat_title = ? AND NOT p.deleted AND p.namespace_id IN (%s)`, namespaceIDs)
	allArgs := append([]interface{}{catTitle}, args...)
	err := q.db.QueryRowContext(ctx, query, allArgs...).Scan(&n)
	return n, err
}

// ReplacePageLinks replaces a page's outgoing link rows.
func (q *Queries) ReplacePageLinks(ctx context.Context, pageID int64, links []PageLink) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM page_link WHERE page_id = ?`, pageID); err != nil {
		return err
	}
	for _, l := range links {
		if _, err := q.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO page_link (page_id, target_namespace_id, target_title)
			VALUES (?, ?, ?)`, pageID, l.TargetNamespaceID, l.TargetTitle); err != nil {
			return err
		}
	}
	return nil
}

// ListBacklinks returns the pages linking to the given target.
func (q *Queries) ListBacklinks(ctx context.Context, namespaceID int, title string) ([]Page, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+pageColumnsPrefixed("p.")+`
		FROM page p
		JOIN page_link l ON l.page_id = p.id
		WHERE l.target_namespace_id = ? AND l.target_title = ? AND NOT p.deleted
		ORDER BY p.namespace_id, p.title`, namespaceID, title)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPages(rows)
}

// InsertLog appends a log entry.
func (q *Queries) InsertLog(ctx context.Context, l Log) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO log (kind, date, performer_id, namespace_id, title, target_user_id,
			reason, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Kind, l.Date, l.PerformerID, l.NamespaceID, l.Title, l.TargetUserID,
		l.Reason, l.Details)
	return err
}

// ListLogsForPage returns log entries for (namespace, title), newest first.
func (q *Queries) ListLogsForPage(ctx context.Context, namespaceID int, title string, limit int) ([]Log, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, kind, date, performer_id, namespace_id, title, target_user_id, reason, details
		FROM log WHERE namespace_id = ? AND title = ?
		ORDER BY date DESC LIMIT ?`, namespaceID, title, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

// ListLogsForUser returns log entries targeting a user, newest first.
func (q *Queries) ListLogsForUser(ctx context.Context, userID int64, limit int) ([]Log, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, kind, date, performer_id, namespace_id, title, target_user_id, reason, details
		FROM log WHERE target_user_id = ?
		ORDER BY date DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

func collectLogs(rows *sql.Rows) ([]Log, error) {
	var logs []Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.Kind, &l.Date, &l.PerformerID, &l.NamespaceID,
			&l.Title, &l.TargetUserID, &l.Reason, &l.Details); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
