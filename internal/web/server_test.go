package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"plannerbot/internal/admin"
	"plannerbot/internal/logger"
	"plannerbot/internal/model"
	"plannerbot/internal/repository"
	"plannerbot/internal/telegram"
)

// fakeAdmin records every call so tests can assert storage was never reached.
type fakeAdmin struct {
	mu    sync.Mutex
	calls []string

	broadcastTo []int64
	deleted     []int64
}

func (f *fakeAdmin) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeAdmin) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAdmin) lastBroadcast() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.broadcastTo
}

func (f *fakeAdmin) deletedUsers() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted
}

func (f *fakeAdmin) Statistics(context.Context) (admin.Statistics, error) {
	f.record("Statistics")
	return admin.Statistics{
		TotalUsers: 3, TotalPlans: 4, CompletedPlans: 1, CompletionRate: 25,
		TopUsers: []repository.TopUser{{ID: 1, Username: "alice", PlansCount: 4}},
	}, nil
}

func (f *fakeAdmin) FreshStatistics(ctx context.Context) (admin.Statistics, error) {
	return f.Statistics(ctx)
}

func (f *fakeAdmin) BotInfo(context.Context) (telegram.BotInfo, error) {
	f.record("BotInfo")
	return telegram.BotInfo{}, admin.ErrBotNotConfigured
}

func (f *fakeAdmin) ListUsers(_ context.Context, limit, offset int, search string) ([]model.User, error) {
	f.record("ListUsers")
	return []model.User{{ID: 1, Username: "alice", FirstName: "Alice", ReminderEnabled: true, ReminderTime: "07:00"}}, nil
}

func (f *fakeAdmin) ListPlans(context.Context, int, int, *int64) ([]model.PlanRow, error) {
	f.record("ListPlans")
	return []model.PlanRow{{Plan: model.Plan{ID: 9, UserID: 1, Text: "<script>x</script>", PlanDate: "2026-03-16"}, Username: "alice"}}, nil
}

func (f *fakeAdmin) ListReminders(context.Context, int, int) ([]model.ReminderRow, error) {
	f.record("ListReminders")
	return nil, nil
}

func (f *fakeAdmin) Broadcast(_ context.Context, text string, recipients []int64) (admin.BroadcastResult, error) {
	f.record("Broadcast")
	f.mu.Lock()
	f.broadcastTo = recipients
	f.mu.Unlock()
	return admin.BroadcastResult{Success: true, Sent: len(recipients), Total: len(recipients)}, nil
}

func (f *fakeAdmin) DeleteUser(_ context.Context, id int64) error {
	f.record("DeleteUser")
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeAdmin) DeletePlan(context.Context, uint) error {
	f.record("DeletePlan")
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeAdmin) {
	t.Helper()
	fake := &fakeAdmin{}
	return serveAdmin(t, fake), fake
}

func serveAdmin(t *testing.T, svc AdminService) *httptest.Server {
	t.Helper()
	sessions, err := NewSessions("secret-pass", "signing-key")
	if err != nil {
		t.Fatalf("NewSessions() error: %v", err)
	}
	srv := httptest.NewServer(NewServer(svc, sessions, logger.Discard()).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func noRedirectClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func loginCookie(t *testing.T, srv *httptest.Server) *http.Cookie {
	t.Helper()
	resp, err := noRedirectClient().PostForm(srv.URL+"/login", url.Values{"password": {"secret-pass"}})
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("login: status %d location %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func do(t *testing.T, method, target string, body io.Reader, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := noRedirectClient().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUnauthenticatedRequestsNeverReachStorage(t *testing.T) {
	srv, fake := newTestServer(t)

	api := []struct{ method, path string }{
		{http.MethodGet, "/api/stats"},
		{http.MethodDelete, "/api/delete_user/1"},
		{http.MethodDelete, "/api/delete_plan/1"},
		{http.MethodPost, "/api/send_message"},
		{http.MethodGet, "/ws"},
	}
	for _, tt := range api {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, strings.NewReader(`{"user_id":1,"message":"x"}`), nil)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != "Unauthorized" {
				t.Errorf("body = %v", body)
			}
		})
	}

	for _, path := range []string{"/", "/users", "/plans", "/reminders", "/broadcast"} {
		resp := do(t, http.MethodGet, srv.URL+path, nil, nil)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
			t.Errorf("GET %s: status %d location %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}

	forged := &http.Cookie{Name: sessionCookie, Value: "eyJhbGciOiJIUzI1NiJ9.e30.bad"}
	if resp := do(t, http.MethodGet, srv.URL+"/api/stats", nil, forged); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("forged cookie: status %d", resp.StatusCode)
	}

	if n := fake.callCount(); n != 0 {
		t.Errorf("admin service called %d times without a session", n)
	}
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := noRedirectClient().PostForm(srv.URL+"/login", url.Values{"password": {"wrong"}})
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Неправильний пароль!") {
		t.Errorf("wrong password: status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			t.Error("wrong password must not set a session")
		}
	}

	cookie := loginCookie(t, srv)
	if resp := do(t, http.MethodGet, srv.URL+"/api/stats", nil, cookie); resp.StatusCode != http.StatusOK {
		t.Errorf("stats with session: status %d", resp.StatusCode)
	}

	logout := do(t, http.MethodGet, srv.URL+"/logout", nil, cookie)
	if logout.StatusCode != http.StatusSeeOther || logout.Header.Get("Location") != "/login" {
		t.Errorf("logout: status %d", logout.StatusCode)
	}
}

func TestPagesRender(t *testing.T) {
	srv, fake := newTestServer(t)
	cookie := loginCookie(t, srv)

	tests := []struct {
		path string
		want string
	}{
		{"/", "Токен бота не налаштований"},
		{"/users?page=0&search=al", "alice"},
		{"/plans?user_id=1", "&lt;script&gt;x&lt;/script&gt;"},
		{"/reminders?page=3", "Сторінка 3"},
		{"/broadcast", "Всі користувачі"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := do(t, http.MethodGet, srv.URL+tt.path, nil, cookie)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tt.want) {
				t.Errorf("body does not contain %q", tt.want)
			}
		})
	}
	if fake.callCount() == 0 {
		t.Error("expected admin service calls")
	}
}

func TestSendMessage(t *testing.T) {
	srv, fake := newTestServer(t)
	cookie := loginCookie(t, srv)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing user", `{"message":"hi"}`, http.StatusBadRequest},
		{"missing message", `{"user_id":5}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
		{"ok", `{"user_id":5,"message":"hi"}`, http.StatusOK},
		{"string id", `{"user_id":"6","message":"hi"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/api/send_message", strings.NewReader(tt.body), cookie)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
	if got := fake.lastBroadcast(); len(got) != 1 || got[0] != 6 {
		t.Errorf("last broadcast recipients = %v", got)
	}
}

func TestDeleteEndpoints(t *testing.T) {
	srv, fake := newTestServer(t)
	cookie := loginCookie(t, srv)

	resp := do(t, http.MethodDelete, srv.URL+"/api/delete_user/42", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body["success"] {
		t.Errorf("body = %v err = %v", body, err)
	}
	if got := fake.deletedUsers(); len(got) != 1 || got[0] != 42 {
		t.Errorf("deleted = %v", got)
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/api/delete_plan/abc", nil, cookie); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad plan id: status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/api/delete_plan/7", nil, cookie); resp.StatusCode != http.StatusOK {
		t.Errorf("delete plan: status %d", resp.StatusCode)
	}
}

func TestBroadcastForm(t *testing.T) {
	srv, fake := newTestServer(t)
	cookie := loginCookie(t, srv)

	form := url.Values{"message": {"hello"}, "user_ids": {"3", "4"}}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/broadcast", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	resp, err := noRedirectClient().Do(req)
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := fake.lastBroadcast(); len(got) != 2 || got[0] != 3 {
		t.Errorf("recipients = %v", got)
	}
}

func TestParseRecipients(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    int
		wantErr bool
	}{
		{"nothing selected", nil, 0, false},
		{"all", []string{"all", "5"}, 0, false},
		{"explicit", []string{"1", "2"}, 2, false},
		{"garbage", []string{"1", "x"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRecipients(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

type statsSocketClient struct {
	t    *testing.T
	conn net.Conn
	rw   io.ReadWriter
}

func dialStatsSocket(t *testing.T, srv *httptest.Server, cookie *http.Cookie) *statsSocketClient {
	t.Helper()
	dialer := ws.Dialer{Header: ws.HandshakeHeaderHTTP(http.Header{"Cookie": {cookie.Name + "=" + cookie.Value}})}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, br, _, err := dialer.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var r io.Reader = conn
	if br != nil {
		r = io.MultiReader(br, conn)
		t.Cleanup(func() { ws.PutReader(br) })
	}
	return &statsSocketClient{t: t, conn: conn, rw: struct {
		io.Reader
		io.Writer
	}{r, conn}}
}

func (c *statsSocketClient) read() socketMessage {
	c.t.Helper()
	data, _, err := wsutil.ReadServerData(c.rw)
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	var msg socketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

// requestStats asks for a snapshot and returns its payload.
func (c *statsSocketClient) requestStats() map[string]interface{} {
	c.t.Helper()
	if err := wsutil.WriteClientText(c.conn, []byte(`{"event":"request_stats"}`)); err != nil {
		c.t.Fatalf("write: %v", err)
	}
	msg := c.read()
	if msg.Event != "stats_update" {
		c.t.Fatalf("event = %q, data = %v", msg.Event, msg.Data)
	}
	data, _ := msg.Data.(map[string]interface{})
	return data
}

func TestStatsSocket(t *testing.T) {
	srv, _ := newTestServer(t)
	client := dialStatsSocket(t, srv, loginCookie(t, srv))

	if msg := client.read(); msg.Event != "connected" {
		t.Fatalf("first event = %q", msg.Event)
	}
	if data := client.requestStats(); data["total_users"] != float64(3) {
		t.Errorf("stats data = %v", data)
	}
}

func TestStatsSocketReflectsNewRows(t *testing.T) {
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "panel.db"), nil)
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	svc := admin.NewService(admin.Repositories{
		Users:     repository.NewUserRepository(db),
		Plans:     repository.NewPlanRepository(db),
		Reminders: repository.NewReminderRepository(db),
		Stats:     repository.NewStatsRepository(db),
	}, nil, admin.NewStatsCache(time.Hour), admin.Options{}, logger.Discard())
	srv := serveAdmin(t, svc)
	cookie := loginCookie(t, srv)
	client := dialStatsSocket(t, srv, cookie)

	if msg := client.read(); msg.Event != "connected" {
		t.Fatalf("first event = %q", msg.Event)
	}
	if data := client.requestStats(); data["total_users"] != float64(0) || data["total_plans"] != float64(0) {
		t.Fatalf("initial stats = %v", data)
	}

	// Another process writes to the store between two polls.
	if err := db.Create(&model.User{ID: 42, Username: "dana", ReminderTime: "07:00"}).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := db.Create(&model.Plan{UserID: 42, Text: "gym", PlanDate: "2026-03-16"}).Error; err != nil {
		t.Fatalf("create plan: %v", err)
	}

	data := client.requestStats()
	if data["total_users"] != float64(1) || data["total_plans"] != float64(1) || data["active_users_week"] != float64(1) {
		t.Errorf("stats after write = %v", data)
	}

	resp := do(t, http.MethodGet, srv.URL+"/api/stats", nil, cookie)
	var api admin.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if api.TotalUsers != 1 || api.TotalPlans != 1 {
		t.Errorf("/api/stats = %+v", api)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
