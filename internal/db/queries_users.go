package db

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const userColumns = `id, name, password_hash, ip_address, is_anonymous, created_at,
	language, timezone, date_format, gender, dark_mode, follow_on_edit,
	follow_on_create, is_masked`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.PasswordHash, &u.IPAddress, &u.IsAnonymous,
		&u.CreatedAt, &u.Language, &u.Timezone, &u.DateFormat, &u.Gender,
		&u.DarkMode, &u.FollowOnEdit, &u.FollowOnCreate, &u.IsMasked)
	return u, err
}

// CreateUserParams holds the insertable columns of a user row.
type CreateUserParams struct {
	Name           string
	PasswordHash   sql.NullString
	IPAddress      sql.NullString
	IsAnonymous    bool
	CreatedAt      time.Time
	Language       string
	Timezone       string
	FollowOnEdit   bool
	FollowOnCreate bool
}

// CreateUser inserts a new user and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, p CreateUserParams) (User, error) {
	if p.Language == "" {
		p.Language = "en"
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO user (name, password_hash, ip_address, is_anonymous, created_at,
			language, timezone, follow_on_edit, follow_on_create)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.PasswordHash, p.IPAddress, p.IsAnonymous, p.CreatedAt,
		p.Language, p.Timezone, p.FollowOnEdit, p.FollowOnCreate)
	if err != nil {
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

// GetUserByID returns the user with the given id.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByName returns the user with the given name.
func (q *Queries) GetUserByName(ctx context.Context, name string) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user WHERE name = ?`, name)
	return scanUser(row)
}

// GetAnonymousUserByIP returns the anonymous account for the given IP.
func (q *Queries) GetAnonymousUserByIP(ctx context.Context, ip string) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM user WHERE ip_address = ? AND is_anonymous`, ip)
	return scanUser(row)
}

// RenameUser changes a user's name; the numeric id is stable across renames.
func (q *Queries) RenameUser(ctx context.Context, id int64, newName string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE user SET name = ? WHERE id = ?`, newName, id)
	return err
}

// SetUserMasked sets the mask flag on a user account.
func (q *Queries) SetUserMasked(ctx context.Context, id int64, masked bool) error {
	_, err := q.db.ExecContext(ctx, `UPDATE user SET is_masked = ? WHERE id = ?`, masked, id)
	return err
}

// CountUsers returns the total number of registered users.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user WHERE NOT is_anonymous`).Scan(&n)
	return n, err
}

// CountActiveUsers returns the number of users with at least one edit since
// the given instant.
func (q *Queries) CountActiveUsers(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT author_id) FROM revision WHERE date >= ?`, since).Scan(&n)
	return n, err
}

// CreateGroup inserts a user group.
func (q *Queries) CreateGroup(ctx context.Context, g UserGroup) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO user_group (label, permissions, assignable_by_users)
		VALUES (?, ?, ?)`, g.Label, g.Permissions, g.AssignableByUsers)
	return err
}

// GetGroup returns a group by label.
func (q *Queries) GetGroup(ctx context.Context, label string) (UserGroup, error) {
	var g UserGroup
	err := q.db.QueryRowContext(ctx, `
		SELECT label, permissions, assignable_by_users FROM user_group WHERE label = ?`,
		label).Scan(&g.Label, &g.Permissions, &g.AssignableByUsers)
	return g, err
}

// DeleteGroup removes a group. Unassignable groups cannot be deleted.
func (q *Queries) DeleteGroup(ctx context.Context, label string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM user_group WHERE label = ? AND assignable_by_users`, label)
	return err
}

// ListGroupsForUser returns the groups the user belongs to.
func (q *Queries) ListGroupsForUser(ctx context.Context, userID int64) ([]UserGroup, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT g.label, g.permissions, g.assignable_by_users
		FROM user_group g
		JOIN user_group_member m ON m.group_label = g.label
		WHERE m.user_id = ?
		ORDER BY g.label`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []UserGroup
	for rows.Next() {
		var g UserGroup
		if err := rows.Scan(&g.Label, &g.Permissions, &g.AssignableByUsers); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// AddUserToGroup adds the user to the group; idempotent.
func (q *Queries) AddUserToGroup(ctx context.Context, userID int64, label string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_group_member (user_id, group_label) VALUES (?, ?)`,
		userID, label)
	return err
}

// RemoveUserFromGroup removes the user from the group.
func (q *Queries) RemoveUserFromGroup(ctx context.Context, userID int64, label string) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM user_group_member WHERE user_id = ? AND group_label = ?`, userID, label)
	return err
}

// IsUserInGroup reports group membership.
func (q *Queries) IsUserInGroup(ctx context.Context, userID int64, label string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_group_member WHERE user_id = ? AND group_label = ?`,
		userID, label).Scan(&n)
	return n > 0, err
}

// CountUsersInGroup returns the number of members of a group.
func (q *Queries) CountUsersInGroup(ctx context.Context, label string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_group_member WHERE group_label = ?`, label).Scan(&n)
	return n, err
}

// PermissionList splits a group's comma-separated permission string.
func (g *UserGroup) PermissionList() []string {
	if g.Permissions == "" {
		return nil
	}
	parts := strings.Split(g.Permissions, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CreateUserBlock inserts a user block.
func (q *Queries) CreateUserBlock(ctx context.Context, b UserBlock) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO user_block (user_id, end_date, allow_messages_on_own_user_page,
			allow_editing_own_settings, reason)
		VALUES (?, ?, ?, ?, ?)`,
		b.UserID, b.EndDate, b.AllowMessagesOnOwnUserPage, b.AllowEditingOwnSettings, b.Reason)
	return err
}

// GetActiveUserBlock returns the active block for a user, if any.
func (q *Queries) GetActiveUserBlock(ctx context.Context, userID int64, now time.Time) (UserBlock, error) {
	var b UserBlock
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, end_date, allow_messages_on_own_user_page,
			allow_editing_own_settings, reason
		FROM user_block
		WHERE user_id = ? AND (end_date IS NULL OR end_date > ?)
		LIMIT 1`, userID, now).Scan(&b.ID, &b.UserID, &b.EndDate,
		&b.AllowMessagesOnOwnUserPage, &b.AllowEditingOwnSettings, &b.Reason)
	return b, err
}

// CreateIPBlock inserts an IP block.
func (q *Queries) CreateIPBlock(ctx context.Context, b IPBlock) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO ip_block (ip_address, end_date, allow_account_creation, reason)
		VALUES (?, ?, ?, ?)`,
		b.IPAddress, b.EndDate, b.AllowAccountCreation, b.Reason)
	return err
}

// GetActiveIPBlock returns the active block for an IP, if any.
func (q *Queries) GetActiveIPBlock(ctx context.Context, ip string, now time.Time) (IPBlock, error) {
	var b IPBlock
	err := q.db.QueryRowContext(ctx, `
		SELECT id, ip_address, end_date, allow_account_creation, reason
		FROM ip_block
		WHERE ip_address = ? AND (end_date IS NULL OR end_date > ?)
		LIMIT 1`, ip, now).Scan(&b.ID, &b.IPAddress, &b.EndDate,
		&b.AllowAccountCreation, &b.Reason)
	return b, err
}

// DeleteExpiredUserBlocks removes user blocks whose end date has passed.
func (q *Queries) DeleteExpiredUserBlocks(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM user_block WHERE end_date IS NOT NULL AND end_date <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredIPBlocks removes IP blocks whose end date has passed.
func (q *Queries) DeleteExpiredIPBlocks(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM ip_block WHERE end_date IS NOT NULL AND end_date <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MuteUser hides the target's edits from the caller's recent-changes view.
func (q *Queries) MuteUser(ctx context.Context, userID, targetID int64) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_mute (user_id, target_id) VALUES (?, ?)`,
		userID, targetID)
	return err
}

// UnmuteUser removes a mute.
func (q *Queries) UnmuteUser(ctx context.Context, userID, targetID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM user_mute WHERE user_id = ? AND target_id = ?`,
		userID, targetID)
	return err
}

// IsMuted reports whether userID has muted targetID.
func (q *Queries) IsMuted(ctx context.Context, userID, targetID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_mute WHERE user_id = ? AND target_id = ?`,
		userID, targetID).Scan(&n)
	return n > 0, err
}

// ListMutedUserIDs returns the ids the user has muted.
func (q *Queries) ListMutedUserIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT target_id FROM user_mute WHERE user_id = ? ORDER BY target_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
