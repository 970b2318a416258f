package db

import (
	"database/sql"
	"time"
)

// User is a row of the user table. Anonymous accounts are materialized on
// first edit and keyed by IP address.
type User struct {
	ID             int64
	Name           string
	PasswordHash   sql.NullString
	IPAddress      sql.NullString
	IsAnonymous    bool
	CreatedAt      time.Time
	Language       string
	Timezone       string
	DateFormat     string
	Gender         string
	DarkMode       bool
	FollowOnEdit   bool
	FollowOnCreate bool
	IsMasked       bool
}

// UserGroup is a row of the user_group table. Permissions is a
// comma-separated list of permission strings.
type UserGroup struct {
	Label             string
	Permissions       string
	AssignableByUsers bool
}

// Page is a row of the page table, including the parse cache columns.
type Page struct {
	ID                     int64
	NamespaceID            int
	Title                  string
	ContentType            string
	Deleted                bool
	ContentLanguage        string
	IsCategoryHidden       sql.NullBool
	RedirectsToNamespaceID sql.NullInt64
	RedirectsToTitle       sql.NullString
	CachedHTML             sql.NullString
	CachedRevisionID       sql.NullInt64
	CacheParseDurationMs   sql.NullInt64
	CacheParseDate         sql.NullTime
	CacheExpiryDate        sql.NullTime
	CacheSizeBefore        sql.NullInt64
	CacheSizeAfter         sql.NullInt64
}

// Revision is an immutable row of the revision table.
type Revision struct {
	ID            int64
	PageID        int64
	AuthorID      int64
	Date          time.Time
	Comment       string
	Hidden        bool
	CommentHidden bool
	Minor         bool
	Bot           bool
	Tags          string
	Content       string
	PageCreation  bool
}

// PageProtection is a row of the page_protection table.
type PageProtection struct {
	NamespaceID     int
	Title           string
	EndDate         sql.NullTime
	ProtectionLevel string
	ProtectTalks    bool
	Reason          string
}

// IsActive reports whether the protection is in force at the given instant.
func (p *PageProtection) IsActive(now time.Time) bool {
	return !p.EndDate.Valid || p.EndDate.Time.After(now)
}

// PageFollowStatus is a row of the page_follow_status table.
type PageFollowStatus struct {
	UserID      int64
	NamespaceID int
	Title       string
	EndDate     sql.NullTime
}

// PageCategory is a row of the page_category table.
type PageCategory struct {
	PageID   int64
	CatTitle string
	SortKey  sql.NullString
}

// PageLink is a row of the page_link table.
type PageLink struct {
	PageID            int64
	TargetNamespaceID int
	TargetTitle       string
}

// UserBlock is a row of the user_block table.
type UserBlock struct {
	ID                         int64
	UserID                     int64
	EndDate                    sql.NullTime
	AllowMessagesOnOwnUserPage bool
	AllowEditingOwnSettings    bool
	Reason                     string
}

// IsActive reports whether the block is in force at the given instant.
func (b *UserBlock) IsActive(now time.Time) bool {
	return !b.EndDate.Valid || b.EndDate.Time.After(now)
}

// IPBlock is a row of the ip_block table.
type IPBlock struct {
	ID                   int64
	IPAddress            string
	EndDate              sql.NullTime
	AllowAccountCreation bool
	Reason               string
}

// IsActive reports whether the block is in force at the given instant.
func (b *IPBlock) IsActive(now time.Time) bool {
	return !b.EndDate.Valid || b.EndDate.Time.After(now)
}

// Topic is a row of the topic table.
type Topic struct {
	ID       int64
	PageID   int64
	AuthorID int64
	Title    string
	Date     time.Time
	Deleted  bool
}

// Message is a row of the message table.
type Message struct {
	ID       int64
	TopicID  int64
	AuthorID int64
	ParentID sql.NullInt64
	Text     string
	Date     time.Time
	Deleted  bool
}

// Log is an append-only row of the log table.
type Log struct {
	ID           int64
	Kind         string
	Date         time.Time
	PerformerID  sql.NullInt64
	NamespaceID  sql.NullInt64
	Title        sql.NullString
	TargetUserID sql.NullInt64
	Reason       string
	Details      string
}

// Log kinds.
const (
	LogPageCreation        = "page_creation"
	LogPageDeletion        = "page_deletion"
	LogPageProtection      = "page_protection"
	LogPageRename          = "page_rename"
	LogPageContentLanguage = "page_content_language"
	LogPageContentType     = "page_content_type"
	LogPageRevisionMask    = "page_revision_mask"
	LogUserCreation        = "user_creation"
	LogUserMask            = "user_mask"
	LogUserRename          = "user_rename"
	LogUserGroupJoin       = "user_group_join"
	LogUserGroupLeave      = "user_group_leave"
	LogUserBlock           = "user_block"
	LogIPBlock             = "ip_block"
)
