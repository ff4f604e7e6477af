package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"

	"academy/internal/core"
	applog "academy/internal/log"
)

const layoutTemplate = "templates/layout.html"

var pages = []string{
	"login", "dashboard", "coaches", "leaves", "analytics", "settings", "backups",
}

var templateFuncs = template.FuncMap{
	"money": core.FormatAmount,
	"pct": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 1, 64)
	},
	"hasMonth": func(list []core.Month, m core.Month) bool {
		for _, x := range list {
			if x == m {
				return true
			}
		}
		return false
	},
	"salaryFor": func(grid map[int64]map[core.Month]float64, coachID int64, m core.Month) float64 {
		return grid[coachID][m]
	},
	"monthDays": func(hist [12]int, m core.Month) int {
		if !m.Valid() {
			return 0
		}
		return hist[m-1]
	},
	"bar": func(v, max float64) int {
		if max <= 0 || v <= 0 {
			return 0
		}
		w := int(v*100/max + 0.5)
		if w < 2 {
			w = 2
		}
		if w > 100 {
			w = 100
		}
		return w
	},
}

// parseTemplates builds one template set per page: the shared layout plus
// the page's own blocks.
func parseTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New("layout.html").Funcs(templateFuncs).
			ParseFS(fsys, layoutTemplate, "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		out[page] = t
	}
	return out, nil
}

type pageData struct {
	Title     string
	Nav       string
	Username  string
	CSRFField template.HTML
	CSRFToken string
	Flashes   []Flash
	Months    [12]core.Month
	Data      any
}

// render executes page into a buffer first so a template error never
// leaves a half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	t, ok := s.templates[page]
	if !ok {
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}

	pd := pageData{
		Title:     title,
		Nav:       page,
		Username:  sessionFrom(r.Context()).Username,
		CSRFField: csrf.TemplateField(r),
		CSRFToken: csrf.Token(r),
		Flashes:   s.takeFlashes(w, r),
		Months:    core.Months,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, pd); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender,
			"template", page,
			applog.FieldError, err)
		http.Error(w, genericError, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
