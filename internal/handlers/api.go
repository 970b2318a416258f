package handlers

import (
	"net/http"

	"github.com/sa/ottmwiki/internal/wiki"
)

// handleWikiAPI serves /wiki-api?action=query&query=(static|gadget):
// the raw content of CSS/JS/JSON pages with their MIME type, for use as
// site styles and gadgets.
func (s *Server) handleWikiAPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("action") != "query" {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	queryKind := q.Get("query")
	if queryKind != "static" && queryKind != "gadget" {
		http.Error(w, "unknown query", http.StatusBadRequest)
		return
	}

	ns, title, err := s.Wiki.Namespaces().ResolveTitle(q.Get("title"))
	if err != nil {
		http.Error(w, "bad title", http.StatusBadRequest)
		return
	}
	page, err := s.Wiki.Get(r.Context(), ns, title)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !page.Exists || page.Deleted {
		http.NotFound(w, r)
		return
	}
	switch page.ContentType {
	case wiki.ContentTypeCSS, wiki.ContentTypeJS, wiki.ContentTypeJSON:
	default:
		http.NotFound(w, r)
		return
	}

	rev, err := s.Wiki.LatestRevision(r.Context(), page)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", wiki.MimeType(page.ContentType)+"; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write([]byte(rev.Content))
}
