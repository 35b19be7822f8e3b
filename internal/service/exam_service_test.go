package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"
	"testing"
)

func TestCreateExamDefaults(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "alice")

	exam := f.exam(t, owner.ID, ExamReq{})
	if exam.DurationMinutes != model.DefaultDurationMinutes || exam.PassingScore != model.DefaultPassingScore {
		t.Errorf("defaults = %d min / %v, want %d / %v",
			exam.DurationMinutes, exam.PassingScore, model.DefaultDurationMinutes, model.DefaultPassingScore)
	}
	if !exam.IsActive || exam.CreatorID != owner.ID {
		t.Errorf("exam = %+v", exam)
	}
}

func TestCreateExamValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "alice")
	ctx := context.Background()

	tests := []struct {
		name string
		req  ExamReq
	}{
		{"missing title", ExamReq{}},
		{"blank title", ExamReq{Title: strPtr("   ")}},
		{"zero duration", ExamReq{Title: strPtr("t"), DurationMinutes: intPtr(0)}},
		{"passing score above 100", ExamReq{Title: strPtr("t"), PassingScore: floatPtr(101)}},
		{"negative passing score", ExamReq{Title: strPtr("t"), PassingScore: floatPtr(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.exams.Create(ctx, owner.ID, tt.req)
			if !errors.Is(err, util.ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestDeleteExamWithResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})
	f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionTrueFalse, 1, []string{"True", "False"}, 1)
	c := f.candidate(t, owner.ID, exam.ID, "bob@example.com")
	if _, err := f.submissions.Submit(ctx, c.UniqueLink, map[string]json.RawMessage{}); err != nil {
		t.Fatal(err)
	}

	err := f.exams.Delete(ctx, owner.ID, exam.ID)
	if !errors.Is(err, util.ErrExamHasResults) || util.StatusFor(err) != http.StatusConflict {
		t.Fatalf("err = %v, want 409 conflict", err)
	}
	if _, err := f.exams.Get(ctx, owner.ID, exam.ID); err != nil {
		t.Errorf("exam should still exist: %v", err)
	}
}

func TestDeleteExamCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})
	f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionSingleChoice, 2, []string{"a", "b", "c"}, 2)
	f.textQuestion(t, owner.ID, exam.ID, 3)
	f.candidate(t, owner.ID, exam.ID, "bob@example.com")

	if err := f.exams.Delete(ctx, owner.ID, exam.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, m := range []interface{}{&model.Exam{}, &model.Question{}, &model.Option{}, &model.Candidate{}} {
		if n := countRows(t, f.db, m); n != 0 {
			t.Errorf("%T rows = %d, want 0", m, n)
		}
	}
	if _, err := f.exams.Get(ctx, owner.ID, exam.ID); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("get after delete err = %v, want not found", err)
	}
}

func TestExamQuestionCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})
	f.textQuestion(t, owner.ID, exam.ID, 1)
	f.textQuestion(t, owner.ID, exam.ID, 1)

	got, err := f.exams.Get(ctx, owner.ID, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.QuestionCount != 2 {
		t.Errorf("question_count = %d, want 2", got.QuestionCount)
	}

	questions, err := f.exams.Questions(ctx, owner.ID, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(questions) != 2 {
		t.Errorf("questions = %d, want 2", len(questions))
	}
}
