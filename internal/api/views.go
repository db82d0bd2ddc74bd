package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tasklist/internal/tasks"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	viewIndex  = "index.html"
	viewCreate = "create.html"
)

type taskView struct {
	ID        string
	Title     string
	CreatedAt int64
	Created   string
}

type indexPage struct {
	Tasks    []taskView
	Duration int64
}

type createPage struct {
	Duration int64
}

func parseViews() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

func toTaskViews(list []tasks.Task) []taskView {
	out := make([]taskView, 0, len(list))
	for _, t := range list {
		out = append(out, taskView{
			ID:        t.ID,
			Title:     t.Title,
			CreatedAt: t.CreatedAt,
			Created:   t.Created().Format(time.RFC3339),
		})
	}
	return out
}

// render executes the named view into a buffer so a failure can still produce a 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.views.ExecuteTemplate(&buf, name, data); err != nil {
		s.fail(w, r, "failed to render view", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log(r.Context()).Debug("write response failed", zap.Error(err))
	}
}
