package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/middleware"
	"github.com/sa/ottmwiki/internal/wiki"
)

// handleTalk serves the discussion threads of a page and accepts new
// topics and replies.
func (s *Server) handleTalk(w http.ResponseWriter, r *http.Request, ns *wiki.Namespace, title string) {
	user := middleware.GetUser(r)

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			s.renderError(w, r, err)
			return
		}
		var err error
		if topicTitle := r.PostForm.Get("topic_title"); topicTitle != "" {
			_, err = s.Wiki.OpenTopic(r.Context(), user, ns, title,
				topicTitle, r.PostForm.Get("text"))
		} else {
			topicID, perr := strconv.ParseInt(r.PostForm.Get("topic_id"), 10, 64)
			if perr != nil {
				s.renderError(w, r, wiki.ErrTopicDoesNotExist)
				return
			}
			var parentID *int64
			if p, perr := strconv.ParseInt(r.PostForm.Get("parent_id"), 10, 64); perr == nil {
				parentID = &p
			}
			_, err = s.Wiki.PostMessage(r.Context(), user, topicID, parentID,
				r.PostForm.Get("text"))
		}
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		http.Redirect(w, r,
			s.Config.WikiPath+"/"+wiki.URLEncodeTitle(ns.FullTitle(title))+"?action=talk",
			http.StatusFound)
		return
	}

	page, err := s.Wiki.Get(r.Context(), ns, title)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	threads, err := s.Wiki.Threads(r.Context(), page)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	type renderedMessage struct {
		Message db.Message
		Author  string
		HTML    string
	}
	type renderedThread struct {
		Topic    db.Topic
		Messages []renderedMessage
	}
	rendered := make([]renderedThread, 0, len(threads))
	for _, t := range threads {
		rt := renderedThread{Topic: t.Topic}
		for _, m := range t.Messages {
			html, err := s.Messages.Render(m.Text)
			if err != nil {
				s.Logger.Warn("message rendering failed", "message_id", m.ID, "error", err)
				html = "<p>" + htmlEscape(m.Text) + "</p>"
			}
			author := ""
			if u, err := s.DB.Queries.GetUserByID(r.Context(), m.AuthorID); err == nil {
				author = u.Name
			}
			rt.Messages = append(rt.Messages, renderedMessage{
				Message: m,
				Author:  author,
				HTML:    html,
			})
		}
		rendered = append(rendered, rt)
	}

	canPost := s.Wiki.CanPostMessages(r.Context(), user, ns, title, time.Now()) == nil
	s.renderTemplate(w, r, http.StatusOK, "talk.html", map[string]interface{}{
		"Title":   ns.FullTitle(title),
		"Page":    page,
		"Threads": rendered,
		"CanPost": canPost,
	})
}
