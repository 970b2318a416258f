package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/middleware"
	"github.com/sa/ottmwiki/internal/models"
	"github.com/sa/ottmwiki/internal/parser"
	"github.com/sa/ottmwiki/internal/wiki"
)

// handleWiki serves /wiki/<title> for every action.
func (s *Server) handleWiki(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, s.Config.WikiPath+"/")
	if raw == "" {
		http.Redirect(w, r,
			s.Config.WikiPath+"/"+wiki.URLEncodeTitle(s.Config.MainPage),
			http.StatusFound)
		return
	}
	canonical, err := wiki.CanonicalizeTitle(raw)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	ns, title := s.Wiki.Namespaces().SplitTitle(canonical)
	if title == "" {
		s.renderError(w, r, wiki.ErrEmptyTitle)
		return
	}

	// Non-canonical URLs redirect to their canonical form.
	if encoded := wiki.URLEncodeTitle(ns.FullTitle(title)); encoded != raw && r.Method == http.MethodGet {
		target := s.Config.WikiPath + "/" + encoded
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	if ns.ID == wiki.NSSpecial {
		s.handleSpecial(w, r, title)
		return
	}

	action := r.URL.Query().Get("action")
	if action == "" {
		action = "read"
	}
	switch action {
	case "read":
		s.handleRead(w, r, ns, title)
	case "raw":
		s.handleRaw(w, r, ns, title)
	case "edit":
		s.handleEdit(w, r, ns, title)
	case "submit":
		s.handleSubmit(w, r, ns, title)
	case "history":
		s.handleHistory(w, r, ns, title)
	case "talk":
		s.handleTalk(w, r, ns, title)
	case "info":
		s.handleInfo(w, r, ns, title)
	default:
		s.handleRead(w, r, ns, title)
	}
}

// resolveRevision picks the revision to display: revid when given, else the
// latest. The mask gate applies to explicit revision requests.
func (s *Server) resolveRevision(r *http.Request, user *models.User, page *wiki.Page) (*db.Revision, error) {
	if revidStr := r.URL.Query().Get("revid"); revidStr != "" {
		revid, err := strconv.ParseInt(revidStr, 10, 64)
		if err != nil {
			return nil, wiki.ErrRevisionDoesNotExist
		}
		rev, err := s.Wiki.RevisionOf(r.Context(), page, revid)
		if err != nil {
			return nil, err
		}
		if !s.Wiki.CanReadRevision(user, &rev) {
			return nil, &wiki.MissingPermissionError{Perms: []string{wiki.PermWikiMask}}
		}
		return &rev, nil
	}
	rev, err := s.Wiki.LatestRevision(r.Context(), page)
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request, ns *wiki.Namespace, title string) {
	user := middleware.GetUser(r)
	page, err := s.Wiki.Get(r.Context(), ns, title)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	if !page.Exists || page.Deleted {
		s.renderTemplate(w, r, http.StatusNotFound, "read.html", map[string]interface{}{
			"Title":  ns.FullTitle(title),
			"Page":   page,
			"Exists": false,
		})
		return
	}

	// Redirect pages forward the reader to their target.
	if page.IsRedirect() && r.URL.Query().Get("no_redirect") == "" && r.URL.Query().Get("revid") == "" {
		targetNS, ok := s.Wiki.Namespaces().ByID(int(page.RedirectsToNamespaceID.Int64))
		if ok {
			target := s.Config.WikiPath + "/" +
				wiki.URLEncodeTitle(targetNS.FullTitle(page.RedirectsToTitle.String)) +
				"?redirects_from=" + url.QueryEscape(page.FullTitle())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
	}

	rev, err := s.resolveRevision(r, user, page)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	html, result, err := s.renderRevision(r, user, page, rev)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	displayTitle := page.FullTitle()
	if result != nil && result.DisplayTitle != "" {
		displayTitle = result.DisplayTitle
	}
	s.renderTemplate(w, r, http.StatusOK, "read.html", map[string]interface{}{
		"Title":         page.FullTitle(),
		"DisplayTitle":  displayTitle,
		"Page":          page,
		"Exists":        true,
		"Revision":      rev,
		"Content":       html,
		"RedirectsFrom": r.URL.Query().Get("redirects_from"),
		"IsOldRevision": r.URL.Query().Get("revid") != "",
	})
}

// renderRevision produces the HTML of one revision, using the page cache
// for the latest revision of wikitext pages.
func (s *Server) renderRevision(r *http.Request, user *models.User, page *wiki.Page, rev *db.Revision) (string, *parser.Result, error) {
	if page.ContentType != wiki.ContentTypeWikipage {
		// Static resources display as preformatted source.
		return "<pre>" + htmlEscape(rev.Content) + "</pre>", nil, nil
	}

	isLatest := page.CachedRevisionID.Valid && page.CachedRevisionID.Int64 == rev.ID
	if isLatest && page.CachedHTML.Valid && page.CacheExpiryDate.Valid &&
		page.CacheExpiryDate.Time.After(time.Now()) {
		return page.CachedHTML.String, nil, nil
	}

	pc := &parser.Context{
		Ctx:        r.Context(),
		Cfg:        s.Config,
		Store:      s.Wiki,
		Namespaces: s.Wiki.Namespaces(),
		User:       user,
		Page:       page,
		Revision:   rev,
		Now:        time.Now(),
	}
	if author, err := s.DB.Queries.GetUserByID(r.Context(), rev.AuthorID); err == nil {
		pc.RevisionAuthor = author.Name
	}

	result, err := s.Parser.Parse(pc, rev.Content)
	if err != nil {
		return "", nil, err
	}
	if s.Metrics != nil {
		s.Metrics.ObserveParse(time.Duration(result.Metadata.ParseDurationMs)*time.Millisecond,
			result.Metadata.TemplateTagError)
	}

	latest, lerr := s.Wiki.LatestRevision(r.Context(), page)
	if lerr == nil && latest.ID == rev.ID {
		if err := s.Wiki.StoreParseCache(r.Context(), page.ID, wiki.CacheParams{
			RevisionID:      rev.ID,
			HTML:            result.HTML,
			ParseDurationMs: result.Metadata.ParseDurationMs,
			ParseDate:       result.Metadata.ParseDate,
			SizeBefore:      result.Metadata.SizeBefore,
			SizeAfter:       result.Metadata.SizeAfter,
		}); err != nil {
			s.Logger.Warn("failed to store parse cache", "page_id", page.ID, "error", err)
		}
	}
	return result.HTML, &result, nil
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request, ns *wiki.Namespace, title string) {
	user := middleware.GetUser(r)
	page, err := s.Wiki.Get(r.Context(), ns, title)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if !page.Exists || page.Deleted {
		s.renderError(w, r, wiki.ErrPageDoesNotExist)
		return
	}
	rev, err := s.resolveRevision(r, user, page)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", wiki.MimeType(page.ContentType)+"; charset=utf-8")
	w.Write([]byte(rev.Content))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, ns *wiki.Namespace, title string) {
	user := middleware.GetUser(r)
	page, err := s.Wiki.Get(r.Context(), ns, title)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	content := ""
	var baseRevisionID int64
	if page.Exists {
		rev, err := s.resolveRevision(r, user, page)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		content = rev.Content
		if latest, err := s.Wiki.LatestRevision(r.Context(), page); err == nil {
			baseRevisionID = latest.ID
		}
	}

	editErr := s.Wiki.CanEditPage(r.Context(), user, ns, title, time.Now())
	following, _ := s.Wiki.IsFollowing(r.Context(), user, ns, title)

	s.renderTemplate(w, r, http.StatusOK, "edit.html", map[string]interface{}{
		"Title":          ns.FullTitle(title),
		"Page":           page,
		"Content":        content,
		"BaseRevisionID": baseRevisionID,
		"CanEdit":        editErr == nil,
		"EditError":      errString(editErr),
		"Following":      following,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, ns *wiki.Namespace, title string) {
	if r.Method != http.MethodPost {
		s.handleEdit(w, r, ns, title)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, err)
		return
	}
	user := middleware.GetUser(r)

	baseRevisionID, _ := strconv.ParseInt(r.PostForm.Get("base_revision_id"), 10, 64)
	params := wiki.EditParams{
		Comment:        r.PostForm.Get("comment"),
		Minor:          r.PostForm.Get("minor") == "1",
		Follow:         r.PostForm.Get("follow") == "1",
		BaseRevisionID: baseRevisionID,
	}
	content := r.PostForm.Get("content")

	_, err := s.Wiki.Edit(r.Context(), user, ns, title, content, params)
	if s.Metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			if errors.Is(err, wiki.ErrConcurrentEdit) {
				outcome = "conflict"
			}
		}
		s.Metrics.EditsTotal.WithLabelValues(outcome).Inc()
	}
	if errors.Is(err, wiki.ErrConcurrentEdit) {
		// The page moved under the editor; re-show the form with their
		// text so nothing is lost.
		s.renderTemplate(w, r, http.StatusOK, "edit.html", map[string]interface{}{
			"Title":          ns.FullTitle(title),
			"Content":        content,
			"BaseRevisionID": baseRevisionID,
			"CanEdit":        true,
			"Conflict":       true,
		})
		return
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	http.Redirect(w, r,
		s.Config.WikiPath+"/"+wiki.URLEncodeTitle(ns.FullTitle(title)),
		http.StatusFound)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, ns *wiki.Namespace, title string) {
	user := middleware.GetUser(r)
	page, err := s.Wiki.Get(r.Context(), ns, title)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if !page.Exists {
		s.renderError(w, r, wiki.ErrPageDoesNotExist)
		return
	}

	limit, offset := s.pagination(r)
	revs, err := s.Wiki.History(r.Context(), page, limit, offset)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	type historyEntry struct {
		Revision      db.Revision
		ContentHidden bool
		CommentHidden bool
	}
	entries := make([]historyEntry, 0, len(revs))
	for _, rev := range revs {
		entries = append(entries, historyEntry{
			Revision:      rev,
			ContentHidden: !s.Wiki.CanReadRevision(user, &rev),
			CommentHidden: !s.Wiki.CanReadComment(user, &rev),
		})
	}

	total, err := s.Wiki.CountRevisions(r.Context(), page)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.renderTemplate(w, r, http.StatusOK, "history.html", map[string]interface{}{
		"Title":   page.FullTitle(),
		"Page":    page,
		"Entries": entries,
		"Total":   total,
		"Limit":   limit,
		"Offset":  offset,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request, ns *wiki.Namespace, title string) {
	page, err := s.Wiki.Get(r.Context(), ns, title)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if !page.Exists {
		s.renderError(w, r, wiki.ErrPageDoesNotExist)
		return
	}

	total, err := s.Wiki.CountRevisions(r.Context(), page)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	prot, err := s.Wiki.ActiveProtection(r.Context(), ns.ID, title)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	cats, err := s.DB.Queries.ListPageCategories(r.Context(), page.ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	backlinks, err := s.DB.Queries.ListBacklinks(r.Context(), ns.ID, title)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	logs, err := s.DB.Queries.ListLogsForPage(r.Context(), ns.ID, title, 50)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.renderTemplate(w, r, http.StatusOK, "info.html", map[string]interface{}{
		"Title":      page.FullTitle(),
		"Page":       page,
		"Revisions":  total,
		"Protection": prot,
		"Categories": cats,
		"Backlinks":  backlinks,
		"Logs":       logs,
	})
}

// pagination reads results_per_page and page, clamped to the configured
// window.
func (s *Server) pagination(r *http.Request) (limit, offset int) {
	limit = s.Config.DefaultResultsPerPage
	if v, err := strconv.Atoi(r.URL.Query().Get("results_per_page")); err == nil {
		limit = v
	}
	if limit < s.Config.MinResultsPerPage {
		limit = s.Config.MinResultsPerPage
	}
	if limit > s.Config.MaxResultsPerPage {
		limit = s.Config.MaxResultsPerPage
	}
	pageIndex := 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 1 {
		pageIndex = v
	}
	return limit, (pageIndex - 1) * limit
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
