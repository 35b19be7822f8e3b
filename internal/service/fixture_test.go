package service

import (
	"context"
	"encoding/json"
	"online_exam_backend/internal/config"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/pkg/database"
	"online_exam_backend/pkg/mailer"
	"strconv"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *fakeMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

type fixture struct {
	db         *gorm.DB
	mailer     *fakeMailer
	dispatcher *DirectDispatcher
	storageDir string

	auth        *AuthService
	exams       *ExamService
	questions   *QuestionService
	candidates  *CandidateService
	submissions *SubmissionService
	evaluations *EvaluationService
	results     *ResultService
	exports     *ExportService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDB(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, true)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Exam: config.ExamConfig{
			LinkBaseURL:  "https://exams.test/exam/",
			AdminBaseURL: "https://exams.test/admin/results/",
		},
	}

	users := repository.NewUserRepository(db)
	exams := repository.NewExamRepository(db)
	questions := repository.NewQuestionRepository(db)
	candidates := repository.NewCandidateRepository(db)
	results := repository.NewResultRepository(db)

	m := &fakeMailer{}
	dispatcher := NewDirectDispatcher(m)
	access := NewAccessService(db)
	notifier := NewNotificationService(dispatcher, users, cfg.Exam.LinkBaseURL, cfg.Exam.AdminBaseURL)

	f := &fixture{
		db:          db,
		mailer:      m,
		dispatcher:  dispatcher,
		storageDir:  cfg.Storage.LocalPath,
		auth:        NewAuthService(users, cfg),
		exams:       NewExamService(db, exams, questions, access),
		questions:   NewQuestionService(db, questions, access),
		candidates:  NewCandidateService(db, candidates, exams, access, notifier),
		submissions: NewSubmissionService(db, exams, results, candidates, access, notifier),
		evaluations: NewEvaluationService(db, results, exams, candidates, access, notifier),
		results:     NewResultService(results, exams, candidates, access),
		exports:     NewExportService(results, exams, candidates, questions, access, NewStorageService(cfg)),
	}
	t.Cleanup(dispatcher.Wait)
	return f
}

func strPtr(s string) *string     { return &s }
func intPtr(i int) *int           { return &i }
func uintPtr(u uint) *uint        { return &u }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	res, err := f.auth.Register(context.Background(), RegisterReq{
		Email:    name + "@example.com",
		Username: name,
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return res.User
}

func (f *fixture) exam(t *testing.T, userID uint, req ExamReq) *model.Exam {
	t.Helper()
	if req.Title == nil {
		req.Title = strPtr("Go basics")
	}
	exam, err := f.exams.Create(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	return exam
}

// choiceQuestion 创建选择题，correct 为正确选项的下标
func (f *fixture) choiceQuestion(t *testing.T, userID, examID uint, qType string, points float64, options []string, correct ...int) *model.Question {
	t.Helper()
	isCorrect := make(map[int]bool)
	for _, i := range correct {
		isCorrect[i] = true
	}
	opts := make([]OptionReq, 0, len(options))
	for i, text := range options {
		opts = append(opts, OptionReq{Text: text, IsCorrect: isCorrect[i], Order: intPtr(i)})
	}
	q, err := f.questions.Create(context.Background(), userID, QuestionReq{
		ExamID:       uintPtr(examID),
		Text:         strPtr("Pick the right " + qType),
		QuestionType: strPtr(qType),
		Points:       floatPtr(points),
		Options:      &opts,
	})
	if err != nil {
		t.Fatalf("create %s question: %v", qType, err)
	}
	return q
}

func (f *fixture) textQuestion(t *testing.T, userID, examID uint, points float64) *model.Question {
	t.Helper()
	q, err := f.questions.Create(context.Background(), userID, QuestionReq{
		ExamID:       uintPtr(examID),
		Text:         strPtr("Explain goroutines"),
		QuestionType: strPtr(model.QuestionText),
		Points:       floatPtr(points),
	})
	if err != nil {
		t.Fatalf("create text question: %v", err)
	}
	return q
}

func (f *fixture) candidate(t *testing.T, userID, examID uint, email string) *model.Candidate {
	t.Helper()
	c, err := f.candidates.Create(context.Background(), userID, CandidateReq{
		ExamID: uintPtr(examID),
		Name:   strPtr("Candidate"),
		Email:  strPtr(email),
	})
	if err != nil {
		t.Fatalf("create candidate: %v", err)
	}
	return c
}

func correctOptionID(t *testing.T, q *model.Question) uint {
	t.Helper()
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	t.Fatalf("question %d has no correct option", q.ID)
	return 0
}

func wrongOptionID(t *testing.T, q *model.Question) uint {
	t.Helper()
	for _, o := range q.Options {
		if !o.IsCorrect {
			return o.ID
		}
	}
	t.Fatalf("question %d has no wrong option", q.ID)
	return 0
}

func answers(t *testing.T, kv map[uint]interface{}) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(kv))
	for id, v := range kv {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		out[strconv.FormatUint(uint64(id), 10)] = raw
	}
	return out
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}
