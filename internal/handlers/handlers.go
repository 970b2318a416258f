// Package handlers provides the HTTP surface of ottmwiki.
package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"

	"github.com/sa/ottmwiki/internal/auth"
	"github.com/sa/ottmwiki/internal/config"
	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/metrics"
	"github.com/sa/ottmwiki/internal/middleware"
	"github.com/sa/ottmwiki/internal/parser"
	"github.com/sa/ottmwiki/internal/render"
	"github.com/sa/ottmwiki/internal/special"
	"github.com/sa/ottmwiki/internal/wiki"
)

// Server holds all dependencies for HTTP handlers.
type Server struct {
	Config         *config.Config
	DB             *db.Database
	Wiki           *wiki.Service
	Auth           *auth.Auth
	Parser         *parser.Parser
	Special        *special.Dispatcher
	Messages       *render.MessageRenderer
	Metrics        *metrics.Metrics
	SessionManager *middleware.SessionManager
	Logger         *slog.Logger
	TemplateMap    map[string]*template.Template
	StaticFS       fs.FS
	Version        string
}

// NewServer creates a Server wired to the given services.
func NewServer(cfg *config.Config, database *db.Database, svc *wiki.Service, p *parser.Parser, logger *slog.Logger, m *metrics.Metrics, version string) *Server {
	return &Server{
		Config:         cfg,
		DB:             database,
		Wiki:           svc,
		Auth:           auth.New(cfg, database.Queries),
		Parser:         p,
		Special:        special.NewDispatcher(cfg, svc, logger),
		Messages:       render.NewMessageRenderer(),
		Metrics:        m,
		SessionManager: middleware.NewSessionManager(cfg.SecretKey, database.Queries),
		Logger:         logger,
		Version:        version,
	}
}

// LoadTemplates parses every page template together with base.html.
func (s *Server) LoadTemplates(fsys fs.FS) error {
	baseContent, err := fs.ReadFile(fsys, "base.html")
	if err != nil {
		return fmt.Errorf("failed to read base.html: %w", err)
	}

	entries, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return fmt.Errorf("failed to glob templates: %w", err)
	}

	s.TemplateMap = make(map[string]*template.Template)
	for _, entry := range entries {
		name := path.Base(entry)
		if name == "base.html" {
			continue
		}
		tmpl := template.New("base").Funcs(s.templateFuncs())
		if tmpl, err = tmpl.Parse(string(baseContent)); err != nil {
			return fmt.Errorf("failed to parse base.html for %s: %w", name, err)
		}
		content, err := fs.ReadFile(fsys, entry)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if tmpl, err = tmpl.Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse %s: %w", name, err)
		}
		s.TemplateMap[name] = tmpl
		s.Logger.Debug("loaded template", "name", name)
	}
	return nil
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"safeHTML": func(v string) template.HTML { return template.HTML(v) },
		"wikiURL": func(fullTitle string) string {
			return s.Config.WikiPath + "/" + wiki.URLEncodeTitle(fullTitle)
		},
	}
}

// renderTemplate writes one page template with the shared fields filled in.
func (s *Server) renderTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]interface{}) {
	tmpl, ok := s.TemplateMap[name]
	if !ok {
		s.Logger.Error("missing template", "name", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["SiteName"] = s.Config.SiteName
	data["WikiPath"] = s.Config.WikiPath
	data["MainPage"] = s.Config.MainPage
	data["User"] = middleware.GetUser(r)
	data["Version"] = s.Version

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.Logger.Error("template execution failed", "name", name, "error", err)
	}
}

// renderError maps a domain error onto an HTTP status and renders the
// standard error page.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var badTitle *wiki.BadTitleError
	var missingPerm *wiki.MissingPermissionError
	var cannotEdit *wiki.CannotEditPageError
	switch {
	case errors.Is(err, wiki.ErrEmptyTitle), errors.As(err, &badTitle):
		status = http.StatusBadRequest
	case errors.As(err, &missingPerm), errors.As(err, &cannotEdit),
		errors.Is(err, wiki.ErrBlocked), errors.Is(err, wiki.ErrProtected),
		errors.Is(err, wiki.ErrEditSpecialPage):
		status = http.StatusForbidden
	case errors.Is(err, wiki.ErrPageDoesNotExist),
		errors.Is(err, wiki.ErrRevisionDoesNotExist),
		errors.Is(err, wiki.ErrNoRevisions),
		errors.Is(err, special.ErrSpecialPageDoesNotExist):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	s.renderTemplate(w, r, status, "error.html", map[string]interface{}{
		"Title":  "Error",
		"Status": status,
		"Error":  err.Error(),
	})
}
