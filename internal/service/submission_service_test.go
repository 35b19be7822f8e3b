package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"
	"strings"
	"testing"
)

func TestSubmitEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{DurationMinutes: intPtr(60)})
	q := f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionSingleChoice, 10, []string{"4", "5", "22"}, 0)
	c := f.candidate(t, owner.ID, exam.ID, "bob@example.com")

	access, err := f.candidates.AccessExam(ctx, c.UniqueLink)
	if err != nil {
		t.Fatalf("access: %v", err)
	}
	if access.RemainingSeconds <= 0 || access.RemainingSeconds > 3600 {
		t.Errorf("remaining_seconds = %d, want (0, 3600]", access.RemainingSeconds)
	}

	result, err := f.submissions.Submit(ctx, c.UniqueLink, answers(t, map[uint]interface{}{q.ID: correctOptionID(t, q)}))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 100 || !result.Passed {
		t.Errorf("score=%v passed=%v, want 100 true", result.Score, result.Passed)
	}
	if result.TotalPoints != 10 || result.EarnedPoints != 10 {
		t.Errorf("points=%v/%v, want 10/10", result.EarnedPoints, result.TotalPoints)
	}
	if len(result.Answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(result.Answers))
	}

	stored, err := f.candidates.Get(ctx, owner.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.IsTestCompleted || stored.TestEndTime == nil || stored.TestStartTime == nil {
		t.Errorf("candidate not marked completed: %+v", stored)
	}

	f.dispatcher.Wait()
	sent := f.mailer.messages()
	if len(sent) != 2 {
		t.Fatalf("sent %d emails, want result and completion notices", len(sent))
	}
	recipients := map[string]bool{}
	for _, m := range sent {
		recipients[m.To[0]] = true
	}
	if !recipients["bob@example.com"] || !recipients["alice@example.com"] {
		t.Errorf("recipients = %v", recipients)
	}
}

func TestSubmitTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})
	q := f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionTrueFalse, 5, []string{"True", "False"}, 0)
	c := f.candidate(t, owner.ID, exam.ID, "bob@example.com")

	payload := answers(t, map[uint]interface{}{q.ID: correctOptionID(t, q)})
	if _, err := f.submissions.Submit(ctx, c.UniqueLink, payload); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := f.submissions.Submit(ctx, c.UniqueLink, payload)
	if !errors.Is(err, util.ErrTestAlreadySubmitted) {
		t.Fatalf("second submit err = %v, want already submitted", err)
	}
	if util.StatusFor(err) != http.StatusForbidden {
		t.Errorf("status = %d, want 403", util.StatusFor(err))
	}
	if n := countRows(t, f.db, &model.Result{}); n != 1 {
		t.Errorf("results = %d, want 1", n)
	}
}

func TestSubmitWhenResultAlreadyRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})
	c := f.candidate(t, owner.ID, exam.ID, "bob@example.com")

	// 另一请求已写入结果但尚未标记完成
	if err := f.db.Create(&model.Result{CandidateID: c.ID, ExamID: exam.ID}).Error; err != nil {
		t.Fatal(err)
	}

	_, err := f.submissions.Submit(ctx, c.UniqueLink, map[string]json.RawMessage{})
	if !errors.Is(err, util.ErrResultExists) {
		t.Fatalf("err = %v, want result exists", err)
	}
	if util.StatusFor(err) != http.StatusConflict {
		t.Errorf("status = %d, want 409", util.StatusFor(err))
	}
	if n := countRows(t, f.db, &model.Result{}); n != 1 {
		t.Errorf("results = %d, want 1", n)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})
	c := f.candidate(t, owner.ID, exam.ID, "bob@example.com")

	tests := []struct {
		name    string
		link    string
		answers map[string]json.RawMessage
		want    error
		status  int
	}{
		{"missing answers", c.UniqueLink, nil, util.ErrAnswersRequired, http.StatusBadRequest},
		{"unknown link", "no-such-link", map[string]json.RawMessage{}, util.ErrNotFound, http.StatusNotFound},
		{"unknown link before missing answers", "no-such-link", nil, util.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.submissions.Submit(ctx, tt.link, tt.answers)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got := util.StatusFor(err); got != tt.status {
				t.Errorf("status = %d, want %d", got, tt.status)
			}
		})
	}

	// 已提交的链接即使缺少 answers 也先报已完成
	if _, err := f.submissions.Submit(ctx, c.UniqueLink, map[string]json.RawMessage{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.submissions.Submit(ctx, c.UniqueLink, nil); !errors.Is(err, util.ErrTestAlreadySubmitted) {
		t.Errorf("resubmit without answers err = %v, want already submitted", err)
	}
}

func TestSubmitEmptyAnswersScoresZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})
	f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionSingleChoice, 4, []string{"a", "b"}, 1)
	f.textQuestion(t, owner.ID, exam.ID, 6)
	c := f.candidate(t, owner.ID, exam.ID, "bob@example.com")

	result, err := f.submissions.Submit(ctx, c.UniqueLink, map[string]json.RawMessage{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.TotalPoints != 10 || result.EarnedPoints != 0 || result.Score != 0 || result.Passed {
		t.Errorf("got total=%v earned=%v score=%v passed=%v", result.TotalPoints, result.EarnedPoints, result.Score, result.Passed)
	}
	if len(result.Answers) != 2 {
		t.Errorf("answers = %d, want one row per question", len(result.Answers))
	}
}

func TestSubmitMalformedAnswersScoreZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{})
	q1 := f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionSingleChoice, 5, []string{"a", "b"}, 0)
	q2 := f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionMultipleChoice, 5, []string{"a", "b", "c"}, 0, 1)
	c := f.candidate(t, owner.ID, exam.ID, "bob@example.com")

	// q1 使用了 q2 的选项，q2 不是数组
	payload := answers(t, map[uint]interface{}{
		q1.ID: q2.Options[0].ID,
		q2.ID: "not-an-array",
		9999:  1,
	})
	payload["bogus"] = json.RawMessage(`1`)

	result, err := f.submissions.Submit(ctx, c.UniqueLink, payload)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.EarnedPoints != 0 || result.TotalPoints != 10 {
		t.Errorf("earned=%v total=%v, want 0/10", result.EarnedPoints, result.TotalPoints)
	}
}

func TestResultSnapshotSurvivesExamEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "alice")
	exam := f.exam(t, owner.ID, ExamReq{PassingScore: floatPtr(50)})
	q := f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionSingleChoice, 10, []string{"a", "b"}, 0)
	f.choiceQuestion(t, owner.ID, exam.ID, model.QuestionSingleChoice, 10, []string{"a", "b"}, 0)
	c := f.candidate(t, owner.ID, exam.ID, "bob@example.com")

	result, err := f.submissions.Submit(ctx, c.UniqueLink, answers(t, map[uint]interface{}{q.ID: correctOptionID(t, q)}))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.questions.Update(ctx, owner.ID, q.ID, QuestionReq{Points: floatPtr(100), Text: strPtr("Reworded")}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.exams.Update(ctx, owner.ID, exam.ID, ExamReq{PassingScore: floatPtr(90)}); err != nil {
		t.Fatal(err)
	}

	detail, err := f.results.Get(ctx, owner.ID, result.ID)
	if err != nil {
		t.Fatal(err)
	}
	if detail.TotalPoints != 20 || detail.Score != 50 || !detail.Passed || detail.PassingScore != 50 {
		t.Errorf("stored result changed: total=%v score=%v passed=%v passing=%v",
			detail.TotalPoints, detail.Score, detail.Passed, detail.PassingScore)
	}
	for _, a := range detail.Answers {
		if a.QuestionID == q.ID && (a.PointsPossible != 10 || strings.Contains(a.QuestionText, "Reworded")) {
			t.Errorf("answer snapshot changed: %+v", a)
		}
	}
	if detail.CandidateEmail != "bob@example.com" || detail.ExamTitle != exam.Title {
		t.Errorf("detail = %q %q", detail.CandidateEmail, detail.ExamTitle)
	}
}
