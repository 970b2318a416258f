// Package db provides database access for ottmwiki.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the SQL database connection and queries.
type Database struct {
	conn    *sql.DB
	Queries *Queries
}

// Schema is the SQL schema for creating tables.
const Schema = `
CREATE TABLE IF NOT EXISTS user (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    ip_address TEXT,
    is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    language TEXT NOT NULL DEFAULT 'en',
    timezone TEXT NOT NULL DEFAULT 'UTC',
    date_format TEXT NOT NULL DEFAULT '',
    gender TEXT NOT NULL DEFAULT '',
    dark_mode BOOLEAN NOT NULL DEFAULT FALSE,
    follow_on_edit BOOLEAN NOT NULL DEFAULT FALSE,
    follow_on_create BOOLEAN NOT NULL DEFAULT TRUE,
    is_masked BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_user_ip ON user(ip_address) WHERE is_anonymous;

CREATE TABLE IF NOT EXISTS user_group (
    label TEXT PRIMARY KEY,
    permissions TEXT NOT NULL DEFAULT '',
    assignable_by_users BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS user_group_member (
    user_id INTEGER NOT NULL REFERENCES user(id),
    group_label TEXT NOT NULL REFERENCES user_group(label),
    PRIMARY KEY (user_id, group_label)
);

CREATE TABLE IF NOT EXISTS page (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    namespace_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    content_type TEXT NOT NULL DEFAULT 'wikipage',
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    content_language TEXT NOT NULL DEFAULT 'en',
    is_category_hidden BOOLEAN,
    redirects_to_namespace_id INTEGER,
    redirects_to_title TEXT,
    cached_html TEXT,
    cached_revision_id INTEGER,
    cache_parse_duration_ms INTEGER,
    cache_parse_date TIMESTAMP,
    cache_expiry_date TIMESTAMP,
    cache_size_before INTEGER,
    cache_size_after INTEGER,
    UNIQUE (namespace_id, title)
);

CREATE INDEX IF NOT EXISTS idx_page_ns_title ON page(namespace_id, title);

CREATE TABLE IF NOT EXISTS revision (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id INTEGER NOT NULL REFERENCES page(id),
    author_id INTEGER NOT NULL REFERENCES user(id),
    date TIMESTAMP NOT NULL,
    comment TEXT NOT NULL DEFAULT '',
    hidden BOOLEAN NOT NULL DEFAULT FALSE,
    comment_hidden BOOLEAN NOT NULL DEFAULT FALSE,
    minor BOOLEAN NOT NULL DEFAULT FALSE,
    bot BOOLEAN NOT NULL DEFAULT FALSE,
    tags TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    page_creation BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE (author_id, date)
);

CREATE INDEX IF NOT EXISTS idx_revision_page_date ON revision(page_id, date);

CREATE TABLE IF NOT EXISTS page_protection (
    namespace_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    end_date TIMESTAMP,
    protection_level TEXT NOT NULL REFERENCES user_group(label),
    protect_talks BOOLEAN NOT NULL DEFAULT FALSE,
    reason TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (namespace_id, title)
);

CREATE TABLE IF NOT EXISTS page_follow_status (
    user_id INTEGER NOT NULL REFERENCES user(id),
    namespace_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    end_date TIMESTAMP,
    PRIMARY KEY (user_id, namespace_id, title)
);

CREATE TABLE IF NOT EXISTS page_category (
    page_id INTEGER NOT NULL REFERENCES page(id),
    cat_title TEXT NOT NULL,
    sort_key TEXT,
    PRIMARY KEY (page_id, cat_title)
);

CREATE INDEX IF NOT EXISTS idx_page_category_title ON page_category(cat_title);

CREATE TABLE IF NOT EXISTS page_link (
    page_id INTEGER NOT NULL REFERENCES page(id),
    target_namespace_id INTEGER NOT NULL,
    target_title TEXT NOT NULL,
    PRIMARY KEY (page_id, target_namespace_id, target_title)
);

CREATE INDEX IF NOT EXISTS idx_page_link_target ON page_link(target_namespace_id, target_title);

CREATE TABLE IF NOT EXISTS user_block (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES user(id),
    end_date TIMESTAMP,
    allow_messages_on_own_user_page BOOLEAN NOT NULL DEFAULT TRUE,
    allow_editing_own_settings BOOLEAN NOT NULL DEFAULT TRUE,
    reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS ip_block (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ip_address TEXT NOT NULL,
    end_date TIMESTAMP,
    allow_account_creation BOOLEAN NOT NULL DEFAULT TRUE,
    reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS topic (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id INTEGER NOT NULL REFERENCES page(id),
    author_id INTEGER NOT NULL REFERENCES user(id),
    title TEXT NOT NULL,
    date TIMESTAMP NOT NULL,
    deleted BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_topic_page ON topic(page_id);

CREATE TABLE IF NOT EXISTS message (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id INTEGER NOT NULL REFERENCES topic(id),
    author_id INTEGER NOT NULL REFERENCES user(id),
    parent_id INTEGER REFERENCES message(id),
    text TEXT NOT NULL,
    date TIMESTAMP NOT NULL,
    deleted BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_message_topic ON message(topic_id);

CREATE TABLE IF NOT EXISTS log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    date TIMESTAMP NOT NULL,
    performer_id INTEGER,
    namespace_id INTEGER,
    title TEXT,
    target_user_id INTEGER,
    reason TEXT NOT NULL DEFAULT '',
    details TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_log_date ON log(date);

CREATE TABLE IF NOT EXISTS user_mute (
    user_id INTEGER NOT NULL REFERENCES user(id),
    target_id INTEGER NOT NULL REFERENCES user(id),
    PRIMARY KEY (user_id, target_id)
);
`

// Open opens a new database connection.
func Open(uri string) (*Database, error) {
	dbPath := uri
	if strings.HasPrefix(uri, "sqlite:///") {
		dbPath = strings.TrimPrefix(uri, "sqlite:///")
	} else if strings.HasPrefix(uri, "sqlite://") {
		dbPath = strings.TrimPrefix(uri, "sqlite://")
	}

	if dbPath == ":memory:" || dbPath == "" {
		dbPath = ":memory:"
	}

	connStr := dbPath
	if dbPath != ":memory:" {
		connStr = dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		conn:    conn,
		Queries: New(conn),
	}, nil
}

// Migrate runs the schema migrations.
func (d *Database) Migrate(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying database connection.
func (d *Database) Conn() *sql.DB {
	return d.conn
}

// BeginTx starts a new transaction.
func (d *Database) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return d.conn.BeginTx(ctx, nil)
}

// WithTx returns queries that use the given transaction.
func (d *Database) WithTx(tx *sql.Tx) *Queries {
	return d.Queries.WithTx(tx)
}

// DBTX is the interface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the prepared query methods.
type Queries struct {
	db DBTX
}

// New creates a Queries instance bound to the given connection.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
