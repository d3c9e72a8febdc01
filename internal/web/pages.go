package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"plannerbot/internal/admin"
	"plannerbot/internal/model"
	"plannerbot/internal/telegram"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "dashboard", "users", "plans", "reminders", "broadcast"}

type pageData struct {
	Active string
	Flash  *Flash
	Error  string

	Bot      *telegram.BotInfo
	BotError string
	Stats    admin.Statistics

	Users     []model.User
	Plans     []model.PlanRow
	Reminders []model.ReminderRow

	Page    int
	HasNext bool
	Search  string
	UserID  string
}

type pages struct {
	byName map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "—"
		}
		return t.Local().Format("02.01.2006 15:04")
	},
	"maybeTime": func(t *time.Time) string {
		if t == nil {
			return "—"
		}
		return t.Local().Format("02.01.2006 15:04")
	},
}

func mustParsePages() *pages {
	p := &pages{byName: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		p.byName[name] = template.Must(template.New("layout.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return p
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	tmpl, ok := s.pages.byName[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.WithError(err).WithField("page", name).Error("render page")
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
