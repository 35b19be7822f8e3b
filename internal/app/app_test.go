package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"online_exam_backend/internal/config"
	"online_exam_backend/pkg/database"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t   *testing.T
	app *App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithRedis(t, nil)
}

func newTestServerWithRedis(t *testing.T, rdb *redis.Client) *testServer {
	t.Helper()
	db, err := database.InitDB(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, true)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		JWT:       config.JWTConfig{Secret: "app-test-secret", ExpireTime: time.Hour},
		Storage:   config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		RateLimit: config.RateLimitConfig{MaxRequests: 10000, WindowMinutes: 1, PublicMaxRequests: 10000},
		Exam:      config.ExamConfig{LinkBaseURL: "https://exams.test/exam/"},
	}
	a := New(cfg, db, rdb)
	t.Cleanup(a.Close)
	return &testServer{t: t, app: a}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("%s %s: decode: %v\n%s", method, path, err, w.Body.String())
		}
	}
	return w, env
}

// expect 校验状态码并把 data 解码到 out
func (s *testServer) expect(status int, method, path, token string, body, out interface{}) envelope {
	s.t.Helper()
	w, env := s.do(method, path, token, body)
	if w.Code != status {
		s.t.Fatalf("%s %s = %d, want %d\n%s", method, path, w.Code, status, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			s.t.Fatalf("%s %s: decode data: %v", method, path, err)
		}
	}
	return env
}

func (s *testServer) register(name string) string {
	s.t.Helper()
	var res struct {
		AccessToken string `json:"access_token"`
	}
	s.expect(http.StatusCreated, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": name + "@example.com", "username": name, "password": "password123",
	}, &res)
	if res.AccessToken == "" {
		s.t.Fatal("no access token")
	}
	return res.AccessToken
}

type idOnly struct {
	ID uint `json:"id"`
}

func TestExamLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.register("alice")

	var exam idOnly
	s.expect(http.StatusCreated, http.MethodPost, "/api/exams", token, map[string]interface{}{
		"title": "Go basics", "duration_minutes": 30,
	}, &exam)

	var question struct {
		ID      uint `json:"id"`
		Options []struct {
			ID        uint `json:"id"`
			IsCorrect bool `json:"is_correct"`
		} `json:"options"`
	}
	s.expect(http.StatusCreated, http.MethodPost, "/api/questions", token, map[string]interface{}{
		"exam_id":       exam.ID,
		"text":          "2 + 2 = ?",
		"question_type": "single_choice",
		"points":        10,
		"options": []map[string]interface{}{
			{"text": "4", "is_correct": true},
			{"text": "5"},
		},
	}, &question)
	var correct uint
	for _, o := range question.Options {
		if o.IsCorrect {
			correct = o.ID
		}
	}

	var candidate struct {
		ID         uint   `json:"id"`
		UniqueLink string `json:"unique_link"`
	}
	s.expect(http.StatusCreated, http.MethodPost, "/api/candidates", token, map[string]interface{}{
		"exam_id": exam.ID, "name": "Bob", "email": "bob@example.com",
	}, &candidate)

	var bulk struct {
		Candidates []struct {
			UniqueLink string `json:"unique_link"`
		} `json:"candidates"`
		FailedEmails []struct {
			Email  string `json:"email"`
			Reason string `json:"reason"`
		} `json:"failed_emails"`
	}
	s.expect(http.StatusCreated, http.MethodPost, "/api/candidates", token, map[string]interface{}{
		"exam_id": exam.ID, "emails": []string{"carol@example.com", "bob@example.com", "bad"},
	}, &bulk)
	if len(bulk.Candidates) != 1 || len(bulk.FailedEmails) != 2 {
		t.Fatalf("bulk = %+v", bulk)
	}

	w, _ := s.do(http.MethodGet, "/api/candidates/access/"+candidate.UniqueLink, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("access = %d\n%s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "is_correct") {
		t.Errorf("access response leaks answers: %s", w.Body.String())
	}

	submitPath := "/api/candidates/submit/" + candidate.UniqueLink
	answers := map[string]interface{}{"answers": map[string]interface{}{fmt.Sprint(question.ID): correct}}
	var result struct {
		ID     uint    `json:"id"`
		Score  float64 `json:"score"`
		Passed bool    `json:"passed"`
	}
	s.expect(http.StatusCreated, http.MethodPost, submitPath, "", answers, &result)
	if result.Score != 100 || !result.Passed {
		t.Errorf("result = %+v", result)
	}
	s.expect(http.StatusForbidden, http.MethodPost, submitPath, "", answers, nil)
	s.expect(http.StatusForbidden, http.MethodGet, "/api/candidates/access/"+candidate.UniqueLink, "", nil, nil)
	s.expect(http.StatusBadRequest, http.MethodPost, "/api/candidates/submit/"+bulk.Candidates[0].UniqueLink, "", map[string]interface{}{}, nil)
	s.expect(http.StatusNotFound, http.MethodPost, "/api/candidates/submit/unknown", "", answers, nil)
	s.expect(http.StatusNotFound, http.MethodPost, "/api/candidates/submit/unknown", "", map[string]interface{}{}, nil)

	var detail struct {
		CandidateEmail string `json:"candidate_email"`
		ExamTitle      string `json:"exam_title"`
		Answers        []struct {
			EarnedPoints float64 `json:"earned_points"`
		} `json:"answers"`
	}
	s.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/results/%d", result.ID), token, nil, &detail)
	if detail.CandidateEmail != "bob@example.com" || detail.ExamTitle != "Go basics" || len(detail.Answers) != 1 {
		t.Errorf("detail = %+v", detail)
	}

	w, _ = s.do(http.MethodGet, fmt.Sprintf("/api/results/%d/export?format=csv", result.ID), token, nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "attachment") || !strings.Contains(w.Body.String(), "Go basics") {
		t.Errorf("export body:\n%s", w.Body.String())
	}
	s.expect(http.StatusNotImplemented, http.MethodGet, fmt.Sprintf("/api/results/%d/export?format=pdf", result.ID), token, nil, nil)

	// 归档文件只能通过鉴权接口由考试创建者下载
	var archived struct {
		Filename string `json:"filename"`
		URL      string `json:"url"`
	}
	s.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/results/%d/export?format=csv&archive=true", result.ID), token, nil, &archived)
	if archived.URL == "" {
		t.Fatalf("archive = %+v", archived)
	}
	s.expect(http.StatusUnauthorized, http.MethodGet, archived.URL, "", nil, nil)
	s.expect(http.StatusNotFound, http.MethodGet, archived.URL, s.register("mallory"), nil, nil)
	for _, leak := range []string{"/uploads/exports/" + archived.Filename, fmt.Sprintf("/uploads/exports/%d/%s", result.ID, archived.Filename)} {
		if w, _ := s.do(http.MethodGet, leak, "", nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", leak, w.Code)
		}
	}
	w, _ = s.do(http.MethodGet, archived.URL, token, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "bob@example.com") {
		t.Fatalf("archived download = %d\n%s", w.Code, w.Body.String())
	}

	s.expect(http.StatusConflict, http.MethodDelete, fmt.Sprintf("/api/exams/%d", exam.ID), token, nil, nil)
	s.expect(http.StatusConflict, http.MethodDelete, fmt.Sprintf("/api/candidates/%d", candidate.ID), token, nil, nil)

	var results []idOnly
	s.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/results/exams/%d", exam.ID), token, nil, &results)
	if len(results) != 1 || results[0].ID != result.ID {
		t.Errorf("exam results = %+v", results)
	}
}

func TestOwnershipAndAuth(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	mallory := s.register("mallory")

	var exam idOnly
	s.expect(http.StatusCreated, http.MethodPost, "/api/exams", alice, map[string]interface{}{"title": "Private"}, &exam)
	path := fmt.Sprintf("/api/exams/%d", exam.ID)

	s.expect(http.StatusUnauthorized, http.MethodGet, "/api/exams", "", nil, nil)
	s.expect(http.StatusUnauthorized, http.MethodGet, "/api/exams", "not-a-token", nil, nil)
	s.expect(http.StatusNotFound, http.MethodGet, path, mallory, nil, nil)
	s.expect(http.StatusNotFound, http.MethodDelete, path, mallory, nil, nil)
	s.expect(http.StatusOK, http.MethodGet, path, alice, nil, nil)
	s.expect(http.StatusBadRequest, http.MethodGet, "/api/exams/abc", alice, nil, nil)
	s.expect(http.StatusForbidden, http.MethodGet, "/api/admin/users", alice, nil, nil)

	var list []idOnly
	s.expect(http.StatusOK, http.MethodGet, "/api/exams", mallory, nil, &list)
	if len(list) != 0 {
		t.Errorf("mallory sees %d exams", len(list))
	}
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/ping", "/api/health", "/api/test/ping", "/api/test/version", "/api/test/system-info"} {
		s.expect(http.StatusOK, http.MethodGet, path, "", nil, nil)
	}

	s.register("alice")
	s.expect(http.StatusBadRequest, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "alice@example.com", "username": "alice2", "password": "x",
	}, nil)
	s.expect(http.StatusUnauthorized, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	}, nil)

	var login struct {
		AccessToken string `json:"access_token"`
	}
	s.expect(http.StatusOK, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "password123",
	}, &login)

	var me struct {
		Email string `json:"email"`
	}
	s.expect(http.StatusOK, http.MethodGet, "/api/auth/me", login.AccessToken, nil, &me)
	if me.Email != "alice@example.com" {
		t.Errorf("me = %+v", me)
	}
}

func TestHealthReportsRedis(t *testing.T) {
	var health struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}

	s := newTestServer(t)
	s.expect(http.StatusOK, http.MethodGet, "/api/health", "", nil, &health)
	if health.Status != "ok" || health.Components["redis"] != "disabled" {
		t.Fatalf("without redis: %+v", health)
	}

	mr := miniredis.RunT(t)
	s = newTestServerWithRedis(t, redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	s.expect(http.StatusOK, http.MethodGet, "/api/health", "", nil, &health)
	if health.Status != "ok" || health.Components["redis"] != "up" {
		t.Fatalf("with redis: %+v", health)
	}

	mr.Close()
	s.expect(http.StatusOK, http.MethodGet, "/api/health", "", nil, &health)
	if health.Status != "degraded" || health.Components["redis"] != "down" {
		t.Fatalf("redis stopped: %+v", health)
	}
}
