package handlers

import (
	"net/http"
	"strings"

	"github.com/sa/ottmwiki/internal/middleware"
	"github.com/sa/ottmwiki/internal/special"
	"github.com/sa/ottmwiki/internal/wiki"
)

// handleSpecial dispatches Special:<Name>/<sub> titles.
func (s *Server) handleSpecial(w http.ResponseWriter, r *http.Request, title string) {
	name := title
	subTitle := ""
	if idx := strings.Index(title, "/"); idx >= 0 {
		name = title[:idx]
		subTitle = title[idx+1:]
	}

	req := &special.Request{
		Ctx:      r.Context(),
		User:     middleware.GetUser(r),
		SubTitle: subTitle,
		Query:    r.URL.Query(),
		IsPost:   r.Method == http.MethodPost,
	}
	if req.IsPost {
		if err := r.ParseForm(); err != nil {
			s.renderError(w, r, err)
			return
		}
		req.Form = r.PostForm
	}

	resp, err := s.Special.Dispatch(name, req)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	if resp.Redirect != nil {
		target := s.Config.WikiPath + "/" + wiki.URLEncodeTitle(resp.Redirect.PageTitle)
		if len(resp.Redirect.Params) > 0 {
			target += "?" + resp.Redirect.Params.Encode()
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	// Raw follow-list export is plain text, one title per line.
	if raw, _ := resp.Data["raw"].(bool); raw {
		titles, _ := resp.Data["titles"].([]string)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(strings.Join(titles, "\n")))
		return
	}

	data := map[string]interface{}{
		"Title":       "Special:" + name,
		"SpecialName": name,
		"SubTitle":    subTitle,
		"Done":        r.URL.Query().Get("done") == "true",
	}
	for k, v := range resp.Data {
		data[k] = v
	}
	s.renderTemplate(w, r, http.StatusOK, "special.html", data)
}
