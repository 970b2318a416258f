package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sa/ottmwiki/internal/middleware"
	"github.com/sa/ottmwiki/internal/wiki"
)

// Routes returns the chi router with all routes configured.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Observe(s.Logger, s.Metrics))
	r.Use(s.SessionManager.Middleware)

	if s.StaticFS != nil {
		staticHandler := http.StripPrefix(s.Config.StaticPath+"/",
			http.FileServer(http.FS(s.StaticFS)))
		r.Handle(s.Config.StaticPath+"/*", staticHandler)
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req,
			s.Config.WikiPath+"/"+wiki.URLEncodeTitle(s.Config.MainPage),
			http.StatusFound)
	})

	r.Get(s.Config.WikiPath+"/*", s.handleWiki)
	r.Post(s.Config.WikiPath+"/*", s.handleWiki)

	r.Get(s.Config.WikiAPIPath, s.handleWikiAPI)

	r.Get("/-/login", s.handleLogin)
	r.Post("/-/login", s.handleLoginPost)
	r.Get("/-/register", s.handleRegister)
	r.Post("/-/register", s.handleRegisterPost)
	r.Get("/-/logout", s.handleLogout)

	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler())
	}
	r.Get("/-/health", s.handleHealth)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.Conn().PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}
