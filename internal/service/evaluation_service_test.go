package service

import (
	"context"
	"errors"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"
	"testing"
)

// submittedTextExam 10 分选择题答对，10 分文本题待人工评分
func submittedTextExam(t *testing.T, f *fixture) (owner *model.User, result *model.Result, textAnswer, choiceAnswer uint) {
	t.Helper()
	owner = f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{PassingScore: floatPtr(75)})
	choice := f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionSingleChoice, 10, []string{"a", "b"}, 0)
	text := f.textQuestion(t, owner.ID, exam.ID, 10)
	c := f.candidate(t, owner.ID, exam.ID, "bob@example.com")

	result, err := f.submissions.Submit(context.Background(), c.UniqueLink, answers(t, map[uint]interface{}{
		choice.ID: correctOptionID(t, choice),
		text.ID:   "Goroutines are lightweight threads.",
	}))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	for _, a := range result.Answers {
		switch a.QuestionID {
		case text.ID:
			textAnswer = a.ID
		case choice.ID:
			choiceAnswer = a.ID
		}
	}
	if textAnswer == 0 || choiceAnswer == 0 {
		t.Fatalf("answers not stored: %+v", result.Answers)
	}
	return owner, result, textAnswer, choiceAnswer
}

func TestEvaluateClampsAndRecomputes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, result, textAnswer, _ := submittedTextExam(t, f)

	if result.Score != 50 || result.Passed {
		t.Fatalf("initial score=%v passed=%v, want 50 false", result.Score, result.Passed)
	}

	tests := []struct {
		name       string
		points     float64
		wantEarned float64
		wantScore  float64
		wantPassed bool
	}{
		{"above maximum", 15, 10, 100, true},
		{"negative", -5, 0, 50, false},
		{"partial", 6, 6, 80, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.evaluations.Evaluate(ctx, owner.ID, result.ID, ReviewReq{
				Evaluations: []EvaluationReq{{AnswerID: uintPtr(textAnswer), PointsAwarded: floatPtr(tt.points)}},
			}, true)
			if err != nil {
				t.Fatal(err)
			}
			if got.Score != tt.wantScore || got.Passed != tt.wantPassed {
				t.Errorf("score=%v passed=%v, want %v %v", got.Score, got.Passed, tt.wantScore, tt.wantPassed)
			}
			for _, a := range got.Answers {
				if a.ID == textAnswer && (a.EarnedPoints != tt.wantEarned || !a.ManuallyEvaluated) {
					t.Errorf("answer earned=%v manual=%v, want %v true", a.EarnedPoints, a.ManuallyEvaluated, tt.wantEarned)
				}
			}
		})
	}
}

func TestEvaluateIgnoresChoiceAndUnknownAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, result, _, choiceAnswer := submittedTextExam(t, f)

	got, err := f.evaluations.Evaluate(ctx, owner.ID, result.ID, ReviewReq{
		Feedback: strPtr("Solid answer on choice questions."),
		Evaluations: []EvaluationReq{
			{AnswerID: uintPtr(choiceAnswer), PointsAwarded: floatPtr(0)},
			{AnswerID: uintPtr(99999), PointsAwarded: floatPtr(10)},
			{AnswerID: nil, PointsAwarded: floatPtr(10)},
		},
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.EarnedPoints != 10 || got.Score != 50 {
		t.Errorf("earned=%v score=%v, want 10 50", got.EarnedPoints, got.Score)
	}
	if got.Feedback == nil || *got.Feedback != "Solid answer on choice questions." {
		t.Errorf("feedback = %v", got.Feedback)
	}
}

func TestEvaluateRequiresEvaluations(t *testing.T) {
	f := newFixture(t)
	owner, result, _, _ := submittedTextExam(t, f)

	_, err := f.evaluations.Evaluate(context.Background(), owner.ID, result.ID, ReviewReq{Feedback: strPtr("ok")}, true)
	if !errors.Is(err, util.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestEvaluateUsesSnapshotPassingScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, result, textAnswer, _ := submittedTextExam(t, f)

	if _, err := f.exams.Update(ctx, owner.ID, result.ExamID, ExamReq{PassingScore: floatPtr(100)}); err != nil {
		t.Fatal(err)
	}
	got, err := f.evaluations.Evaluate(ctx, owner.ID, result.ID, ReviewReq{
		Evaluations: []EvaluationReq{{AnswerID: uintPtr(textAnswer), PointsAwarded: floatPtr(6)}},
	}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Passed || got.PassingScore != 75 {
		t.Errorf("passed=%v passing_score=%v, want true 75", got.Passed, got.PassingScore)
	}
}

func TestEvaluateOtherUsersResult(t *testing.T) {
	f := newFixture(t)
	_, result, textAnswer, _ := submittedTextExam(t, f)
	mallory := f.user(t, "mallory")

	_, err := f.evaluations.Evaluate(context.Background(), mallory.ID, result.ID, ReviewReq{
		Evaluations: []EvaluationReq{{AnswerID: uintPtr(textAnswer), PointsAwarded: floatPtr(10)}},
	}, true)
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}
