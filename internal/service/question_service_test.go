package service

import (
	"context"
	"errors"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"
	"testing"
)

func TestCreateQuestionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})

	opts := func(correct ...bool) *[]OptionReq {
		out := make([]OptionReq, 0, len(correct))
		for i, c := range correct {
			out = append(out, OptionReq{Text: string(rune('a' + i)), IsCorrect: c})
		}
		return &out
	}

	tests := []struct {
		name string
		req  QuestionReq
	}{
		{"missing text", QuestionReq{QuestionType: strPtr(model.QuestionText)}},
		{"unknown type", QuestionReq{Text: strPtr("q"), QuestionType: strPtr("essay")}},
		{"negative points", QuestionReq{Text: strPtr("q"), QuestionType: strPtr(model.QuestionText), Points: floatPtr(-1)}},
		{"single choice with one option", QuestionReq{Text: strPtr("q"), QuestionType: strPtr(model.QuestionSingleChoice), Options: opts(true)}},
		{"multiple choice without correct", QuestionReq{Text: strPtr("q"), QuestionType: strPtr(model.QuestionMultipleChoice), Options: opts(false, false)}},
		{"true false with two correct", QuestionReq{Text: strPtr("q"), QuestionType: strPtr(model.QuestionTrueFalse), Options: opts(true, true)}},
		{"true false with three options", QuestionReq{Text: strPtr("q"), QuestionType: strPtr(model.QuestionTrueFalse), Options: opts(true, false, false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.ExamID = uintPtr(exam.ID)
			if _, err := f.questions.Create(ctx, owner.ID, tt.req); !errors.Is(err, util.ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestCreateQuestionNormalizesOpenEnded(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})

	q, err := f.questions.Create(context.Background(), owner.ID, QuestionReq{
		ExamID:       uintPtr(exam.ID),
		Text:         strPtr("Describe a deadlock"),
		QuestionType: strPtr("open_ended"),
		Options:      &[]OptionReq{{Text: "ignored"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if q.QuestionType != model.QuestionText || len(q.Options) != 0 || q.Points != 1 {
		t.Errorf("question = %+v", q)
	}
}

func TestBulkCreateQuestionsRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})

	_, err := f.questions.BulkCreate(ctx, owner.ID, BulkQuestionReq{
		ExamID: exam.ID,
		Questions: []QuestionReq{
			{Text: strPtr("ok"), QuestionType: strPtr(model.QuestionText)},
			{Text: strPtr("bad"), QuestionType: strPtr("essay")},
		},
	})
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if n := countRows(t, f.db, &model.Question{}); n != 0 {
		t.Errorf("questions = %d after rollback, want 0", n)
	}

	created, err := f.questions.BulkCreate(ctx, owner.ID, BulkQuestionReq{
		ExamID: exam.ID,
		Questions: []QuestionReq{
			{Text: strPtr("one"), QuestionType: strPtr(model.QuestionText), Points: floatPtr(2)},
			{Text: strPtr("two"), QuestionType: strPtr(model.QuestionTrueFalse),
				Options: &[]OptionReq{{Text: "True", IsCorrect: true}, {Text: "False"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 2 || len(created[1].Options) != 2 {
		t.Errorf("created = %+v", created)
	}
}

func TestUpdateQuestionToText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})
	q := f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionSingleChoice, 3, []string{"a", "b"}, 0)

	updated, err := f.questions.Update(ctx, owner.ID, q.ID, QuestionReq{QuestionType: strPtr(model.QuestionText)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.QuestionType != model.QuestionText || len(updated.Options) != 0 {
		t.Errorf("updated = %+v", updated)
	}
	if n := countRows(t, f.db, &model.Option{}); n != 0 {
		t.Errorf("options left = %d, want 0", n)
	}
}

func TestListQuestionsFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})
	f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionSingleChoice, 1, []string{"a", "b"}, 0)
	f.textQuestion(t, owner.ID, exam.ID, 1)

	texts, err := f.questions.List(ctx, owner.ID, QuestionListReq{ExamID: exam.ID, QuestionType: "open_ended"})
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != 1 || texts[0].QuestionType != model.QuestionText {
		t.Errorf("text questions = %+v", texts)
	}

	if _, err := f.questions.List(ctx, owner.ID, QuestionListReq{QuestionType: "essay"}); !errors.Is(err, util.ErrValidation) {
		t.Errorf("unknown type err = %v, want validation error", err)
	}
}
