package wiki

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sa/ottmwiki/internal/config"
	"github.com/sa/ottmwiki/internal/db"
)

// Page is a page row together with its resolved namespace. Non-existent
// pages are represented by shadow instances with Exists = false.
type Page struct {
	db.Page
	Namespace *Namespace
	Exists    bool
}

// FullTitle returns the namespaced title of the page.
func (p *Page) FullTitle() string {
	return p.Namespace.FullTitle(p.Title)
}

// IsRedirect reports whether the page redirects elsewhere.
func (p *Page) IsRedirect() bool {
	return p.RedirectsToTitle.Valid
}

// Service provides the repository operations over pages, revisions,
// protections, follow-statuses and talk threads.
type Service struct {
	cfg *config.Config
	db  *db.Database
	ns  *NamespaceRegistry
}

// NewService creates a Service.
func NewService(cfg *config.Config, database *db.Database, ns *NamespaceRegistry) *Service {
	return &Service{cfg: cfg, db: database, ns: ns}
}

// Namespaces returns the namespace registry.
func (s *Service) Namespaces() *NamespaceRegistry {
	return s.ns
}

// Queries exposes the underlying query layer.
func (s *Service) Queries() *db.Queries {
	return s.db.Queries
}

// Get returns the page at (ns, title). Pages that do not exist are returned
// as shadow instances with Exists = false.
func (s *Service) Get(ctx context.Context, ns *Namespace, title string) (*Page, error) {
	row, err := s.db.Queries.GetPage(ctx, ns.ID, title)
	if errors.Is(err, sql.ErrNoRows) {
		return &Page{
			Page:      db.Page{NamespaceID: ns.ID, Title: title, ContentType: ContentTypeWikipage, ContentLanguage: s.cfg.SiteLang},
			Namespace: ns,
			Exists:    false,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", ns.FullTitle(title), err)
	}
	return &Page{Page: row, Namespace: ns, Exists: true}, nil
}

// GetByID returns the page with the given id.
func (s *Service) GetByID(ctx context.Context, id int64) (*Page, error) {
	row, err := s.db.Queries.GetPageByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPageDoesNotExist
	}
	if err != nil {
		return nil, err
	}
	ns, ok := s.ns.ByID(row.NamespaceID)
	if !ok {
		return nil, fmt.Errorf("page %d has unknown namespace %d", id, row.NamespaceID)
	}
	return &Page{Page: row, Namespace: ns, Exists: true}, nil
}

// PageExists reports whether a non-deleted page exists at (nsID, title).
func (s *Service) PageExists(ctx context.Context, nsID int, title string) (bool, error) {
	row, err := s.db.Queries.GetPage(ctx, nsID, title)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !row.Deleted, nil
}

// redirectPattern matches content that is, in its entirety, a redirect.
var redirectPattern = regexp.MustCompile(`\A@REDIRECT\[\[(.+?)\]\]\z`)

// ParseRedirect returns the redirect target of content, or ok = false when
// the content is not a redirect.
func (s *Service) ParseRedirect(content string) (ns *Namespace, title string, ok bool) {
	m := redirectPattern.FindStringSubmatch(strings.TrimSpace(content))
	if m == nil {
		return nil, "", false
	}
	ns, title, err := s.ns.ResolveTitle(m[1])
	if err != nil {
		return nil, "", false
	}
	return ns, title, true
}

// linkPattern matches [[Target]] and [[Target|text]] occurrences.
var linkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]*))?\]\]`)

// ExtractedLink is one outgoing reference found in page content.
type ExtractedLink struct {
	NamespaceID int
	Title       string
	// SortKey is only meaningful for category references.
	SortKey string
	IsCategory bool
}

// ExtractLinks scans content for [[...]] references and splits them into
// links and category memberships. Targets need not exist.
func (s *Service) ExtractLinks(content string) []ExtractedLink {
	var out []ExtractedLink
	seen := make(map[string]bool)
	for _, m := range linkPattern.FindAllStringSubmatch(content, -1) {
		target := m[1]
		if idx := strings.Index(target, "#"); idx >= 0 {
			target = target[:idx]
		}
		ns, title, err := s.ns.ResolveTitle(target)
		if err != nil {
			continue
		}
		key := fmt.Sprintf("%d:%s", ns.ID, title)
		if seen[key] {
			continue
		}
		seen[key] = true
		link := ExtractedLink{NamespaceID: ns.ID, Title: title}
		if ns.ID == NSCategory {
			link.IsCategory = true
			link.SortKey = strings.TrimSpace(m[2])
		}
		out = append(out, link)
	}
	return out
}

// refreshDerivedIndexes recomputes link and category rows plus the redirect
// target from the new content. Runs inside the edit transaction.
func (s *Service) refreshDerivedIndexes(ctx context.Context, q *db.Queries, pageID int64, content string) error {
	extracted := s.ExtractLinks(content)
	var links []db.PageLink
	var cats []db.PageCategory
	for _, l := range extracted {
		if l.IsCategory {
			cats = append(cats, db.PageCategory{
				PageID:   pageID,
				CatTitle: l.Title,
				SortKey:  db.NullString(l.SortKey),
			})
		}
		links = append(links, db.PageLink{
			PageID:            pageID,
			TargetNamespaceID: l.NamespaceID,
			TargetTitle:       l.Title,
		})
	}
	if err := q.ReplacePageLinks(ctx, pageID, links); err != nil {
		return err
	}
	if err := q.ReplacePageCategories(ctx, pageID, cats); err != nil {
		return err
	}

	if ns, title, ok := s.ParseRedirect(content); ok {
		return q.SetPageRedirect(ctx, pageID,
			db.NullInt64(int64(ns.ID)), db.NullString(title))
	}
	return q.SetPageRedirect(ctx, pageID, sql.NullInt64{}, sql.NullString{})
}

// CacheParams carries the result of a successful parse into the page cache.
type CacheParams struct {
	RevisionID      int64
	HTML            string
	ParseDurationMs int64
	ParseDate       time.Time
	SizeBefore      int64
	SizeAfter       int64
}

// StoreParseCache records a parse result and its expiry on the page row.
func (s *Service) StoreParseCache(ctx context.Context, pageID int64, p CacheParams) error {
	ttl := time.Duration(s.cfg.ParseCacheTTLMinutes) * time.Minute
	return s.db.Queries.UpdatePageCache(ctx, db.UpdatePageCacheParams{
		ID:              pageID,
		CachedHTML:      p.HTML,
		RevisionID:      p.RevisionID,
		ParseDurationMs: p.ParseDurationMs,
		ParseDate:       p.ParseDate,
		ExpiryDate:      p.ParseDate.Add(ttl),
		SizeBefore:      p.SizeBefore,
		SizeAfter:       p.SizeAfter,
	})
}

// EnsureDefaultGroups creates the built-in groups if they are missing.
func (s *Service) EnsureDefaultGroups(ctx context.Context) error {
	defaults := []db.UserGroup{
		{Label: GroupAll, Permissions: PermWikiEdit, AssignableByUsers: false},
		{Label: GroupUsers, Permissions: PermWikiEdit, AssignableByUsers: false},
		{Label: GroupAutopatrolled, Permissions: PermWikiEdit, AssignableByUsers: true},
		{Label: GroupPatrollers, Permissions: strings.Join([]string{
			PermWikiEdit, PermWikiRevert}, ","), AssignableByUsers: true},
		{Label: GroupAdmins, Permissions: strings.Join([]string{
			PermWikiEdit, PermWikiDelete, PermWikiRename, PermWikiRevert,
			PermWikiProtect, PermWikiMask, PermWikiEditUserPages,
			PermWikiEditInterface, PermEditUserGroups, PermBlockUsers}, ","),
			AssignableByUsers: true},
	}
	for _, g := range defaults {
		if _, err := s.db.Queries.GetGroup(ctx, g.Label); err == nil {
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := s.db.Queries.CreateGroup(ctx, g); err != nil {
			return err
		}
	}
	return nil
}
