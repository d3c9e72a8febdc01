package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"plannerbot/internal/admin"
	"plannerbot/internal/model"
	"plannerbot/internal/telegram"
)

// PageSize is the number of rows on every listing page.
const PageSize = 20

// AdminService is what the panel needs from the admin core.
type AdminService interface {
	Statistics(ctx context.Context) (admin.Statistics, error)
	FreshStatistics(ctx context.Context) (admin.Statistics, error)
	BotInfo(ctx context.Context) (telegram.BotInfo, error)
	ListUsers(ctx context.Context, limit, offset int, search string) ([]model.User, error)
	ListPlans(ctx context.Context, limit, offset int, userID *int64) ([]model.PlanRow, error)
	ListReminders(ctx context.Context, limit, offset int) ([]model.ReminderRow, error)
	Broadcast(ctx context.Context, text string, recipients []int64) (admin.BroadcastResult, error)
	DeleteUser(ctx context.Context, id int64) error
	DeletePlan(ctx context.Context, id uint) error
}

// Server serves the admin panel pages, JSON API and stats socket.
type Server struct {
	admin    AdminService
	sessions *Sessions
	pages    *pages
	log      *logrus.Entry
}

func NewServer(svc AdminService, sessions *Sessions, log *logrus.Entry) *Server {
	return &Server{
		admin:    svc,
		sessions: sessions,
		pages:    mustParsePages(),
		log:      log,
	}
}

// Routes builds the chi router. Everything except login, logout and healthz requires a session.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/login", s.loginPage)
	r.Post("/login", s.login)
	r.Get("/logout", s.logout)

	r.Group(func(r chi.Router) {
		r.Use(s.requirePage)
		r.Get("/", s.dashboard)
		r.Get("/users", s.usersPage)
		r.Get("/plans", s.plansPage)
		r.Get("/reminders", s.remindersPage)
		r.Get("/broadcast", s.broadcastPage)
		r.Post("/broadcast", s.broadcast)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAPI)
		r.Get("/stats", s.apiStats)
		r.Delete("/delete_user/{id}", s.apiDeleteUser)
		r.Delete("/delete_plan/{id}", s.apiDeletePlan)
		r.Post("/send_message", s.apiSendMessage)
	})

	r.With(s.requireAPI).Get("/ws", s.statsSocket)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func (s *Server) requirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.Authenticated(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.Authenticated(r) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if s.sessions.Authenticated(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, "login", pageData{Flash: popFlash(w, r)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if !s.sessions.CheckPassword(r.PostForm.Get("password")) {
		s.log.WithField("remote", r.RemoteAddr).Warn("failed admin login")
		s.render(w, "login", pageData{Flash: &Flash{Kind: "error", Message: "Неправильний пароль!"}})
		return
	}
	if err := s.sessions.Issue(w, r); err != nil {
		s.log.WithError(err).Error("issue session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.log.WithField("remote", r.RemoteAddr).Info("admin logged in")
	setFlash(w, "success", "Успішний вхід!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	setFlash(w, "info", "Ви вийшли з системи")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	data := pageData{Active: "dashboard", Flash: popFlash(w, r)}
	stats, err := s.admin.Statistics(r.Context())
	if err != nil {
		s.log.WithError(err).Error("load statistics")
		data.Error = err.Error()
	}
	data.Stats = stats

	info, err := s.admin.BotInfo(r.Context())
	switch {
	case errors.Is(err, admin.ErrBotNotConfigured):
		data.BotError = "Токен бота не налаштований"
	case err != nil:
		data.BotError = err.Error()
	default:
		data.Bot = &info
	}
	s.render(w, "dashboard", data)
}

func (s *Server) usersPage(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	search := r.URL.Query().Get("search")
	users, err := s.admin.ListUsers(r.Context(), PageSize, (page-1)*PageSize, search)
	data := pageData{Active: "users", Flash: popFlash(w, r), Page: page, Search: search, Users: users, HasNext: len(users) == PageSize}
	if err != nil {
		s.log.WithError(err).Error("list users")
		data.Error = err.Error()
	}
	s.render(w, "users", data)
}

func (s *Server) plansPage(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	var userID *int64
	raw := r.URL.Query().Get("user_id")
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		userID = &id
	}
	plans, err := s.admin.ListPlans(r.Context(), PageSize, (page-1)*PageSize, userID)
	data := pageData{Active: "plans", Flash: popFlash(w, r), Page: page, UserID: raw, Plans: plans, HasNext: len(plans) == PageSize}
	if err != nil {
		s.log.WithError(err).Error("list plans")
		data.Error = err.Error()
	}
	s.render(w, "plans", data)
}

func (s *Server) remindersPage(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	reminders, err := s.admin.ListReminders(r.Context(), PageSize, (page-1)*PageSize)
	data := pageData{Active: "reminders", Flash: popFlash(w, r), Page: page, Reminders: reminders, HasNext: len(reminders) == PageSize}
	if err != nil {
		s.log.WithError(err).Error("list reminders")
		data.Error = err.Error()
	}
	s.render(w, "reminders", data)
}

func (s *Server) broadcastPage(w http.ResponseWriter, r *http.Request) {
	users, err := s.admin.ListUsers(r.Context(), 1000, 0, "")
	data := pageData{Active: "broadcast", Flash: popFlash(w, r), Users: users}
	if err != nil {
		s.log.WithError(err).Error("list broadcast recipients")
		data.Error = err.Error()
	}
	s.render(w, "broadcast", data)
}

func (s *Server) broadcast(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	recipients, err := parseRecipients(r.PostForm["user_ids"])
	if err != nil {
		setFlash(w, "error", "Помилка: "+err.Error())
		http.Redirect(w, r, "/broadcast", http.StatusSeeOther)
		return
	}

	result, err := s.admin.Broadcast(r.Context(), r.PostForm.Get("message"), recipients)
	if err != nil {
		s.log.WithError(err).Error("broadcast")
		setFlash(w, "error", "Помилка: "+err.Error())
	} else {
		setFlash(w, "success", "Повідомлення відправлено "+strconv.Itoa(result.Sent)+" з "+strconv.Itoa(result.Total)+" користувачів")
	}
	http.Redirect(w, r, "/broadcast", http.StatusSeeOther)
}

// parseRecipients maps the form selection to user ids; nothing selected or "all" means every user.
func parseRecipients(values []string) ([]int64, error) {
	if len(values) == 0 || values[0] == "all" {
		return nil, nil
	}
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.New("invalid user id " + strconv.Quote(v))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Server) apiStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.FreshStatistics(r.Context())
	if err != nil {
		s.log.WithError(err).Error("load statistics")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) apiDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := s.admin.DeleteUser(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) apiDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}
	if err := s.admin.DeletePlan(r.Context(), uint(id)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type sendMessageRequest struct {
	UserID  json.Number `json:"user_id"`
	Message string      `json:"message"`
}

func (s *Server) apiSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing user_id or message")
		return
	}
	if req.UserID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing user_id or message")
		return
	}
	userID, err := req.UserID.Int64()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	result, err := s.admin.Broadcast(r.Context(), req.Message, []int64{userID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
