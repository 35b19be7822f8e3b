// Package scoring turns a submitted answer map into per-question credit and
// an aggregate percentage. It has no I/O; callers persist and log the outcome.
package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"online_exam_backend/internal/model"
)

// Reason 说明一道题的判分结果
const (
	ReasonCorrect      = "correct"
	ReasonWrong        = "wrong"
	ReasonUnanswered   = "unanswered"
	ReasonManualReview = "manual_review"
	ReasonMalformed    = "malformed_payload"
	ReasonUnknownType  = "unknown_question_type"
)

// AnswerOutcome 单题判分结果
type AnswerOutcome struct {
	QuestionID        uint
	QuestionText      string
	QuestionType      string
	PointsPossible    float64
	SelectedOptionID  *uint
	SelectedOptionIDs []uint
	TextResponse      *string
	// 文本题为 nil
	IsCorrect    *bool
	EarnedPoints float64
	Answered     bool
	Reason       string
	// Detail 非空时说明为何判为 malformed
	Detail string
}

func (a AnswerOutcome) Malformed() bool {
	return a.Reason == ReasonMalformed || a.Reason == ReasonUnknownType
}

// Outcome 整卷判分结果
type Outcome struct {
	Answers      []AnswerOutcome
	TotalPoints  float64
	EarnedPoints float64
	Percentage   float64
	Passed       bool
}

// ParseAnswerKeys 将 JSON 对象的 key 转为题目 ID，非数字 key 忽略
func ParseAnswerKeys(raw map[string]json.RawMessage) map[uint]json.RawMessage {
	out := make(map[uint]json.RawMessage, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseUint(strings.TrimSpace(k), 10, 32)
		if err != nil || id == 0 {
			continue
		}
		out[uint(id)] = v
	}
	return out
}

// ScoreExam 按题目定义给提交的答案判分。每道题都会产生一条结果，
// 未作答的题计入总分但不得分；多余的 key 忽略。
func ScoreExam(questions []model.Question, answers map[uint]json.RawMessage, passingScore float64) Outcome {
	out := Outcome{Answers: make([]AnswerOutcome, 0, len(questions))}

	for i := range questions {
		q := &questions[i]
		a := ScoreQuestion(q, answers[q.ID])
		out.TotalPoints += a.PointsPossible
		out.EarnedPoints += a.EarnedPoints
		out.Answers = append(out.Answers, a)
	}

	out.Percentage = Percentage(out.EarnedPoints, out.TotalPoints)
	out.Passed = Passed(out.Percentage, passingScore)
	return out
}

// ScoreQuestion 给单题判分；raw 为空或 null 视为未作答
func ScoreQuestion(q *model.Question, raw json.RawMessage) AnswerOutcome {
	points := q.Points
	if points < 0 {
		points = 0
	}
	a := AnswerOutcome{
		QuestionID:     q.ID,
		QuestionText:   q.Text,
		QuestionType:   model.NormalizeQuestionType(q.QuestionType),
		PointsPossible: points,
	}

	answered := !isNull(raw)

	switch a.QuestionType {
	case model.QuestionMultipleChoice:
		scoreMultiple(q, raw, answered, &a)
	case model.QuestionSingleChoice, model.QuestionTrueFalse:
		scoreSingle(q, raw, answered, &a)
	case model.QuestionText:
		scoreText(raw, answered, &a)
	default:
		a.QuestionType = q.QuestionType
		a.IsCorrect = boolPtr(false)
		a.Answered = answered
		a.Reason = ReasonUnknownType
		a.Detail = fmt.Sprintf("question type %q cannot be scored", q.QuestionType)
	}
	return a
}

func scoreSingle(q *model.Question, raw json.RawMessage, answered bool, a *AnswerOutcome) {
	a.IsCorrect = boolPtr(false)
	if !answered {
		a.Reason = ReasonUnanswered
		return
	}
	a.Answered = true

	id, err := parseOptionID(raw)
	if err != nil {
		a.Reason = ReasonMalformed
		a.Detail = err.Error()
		return
	}
	opt := findOption(q, id)
	if opt == nil {
		a.Reason = ReasonMalformed
		a.Detail = fmt.Sprintf("option %d does not belong to question %d", id, q.ID)
		return
	}

	selected := opt.ID
	a.SelectedOptionID = &selected
	if opt.IsCorrect {
		a.IsCorrect = boolPtr(true)
		a.EarnedPoints = a.PointsPossible
		a.Reason = ReasonCorrect
		return
	}
	a.Reason = ReasonWrong
}

func scoreMultiple(q *model.Question, raw json.RawMessage, answered bool, a *AnswerOutcome) {
	a.IsCorrect = boolPtr(false)
	if !answered {
		a.Reason = ReasonUnanswered
		return
	}
	a.Answered = true

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		a.Reason = ReasonMalformed
		a.Detail = "expected an array of option ids"
		return
	}

	selected := make(map[uint]bool, len(items))
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		id, err := parseOptionID(item)
		if err != nil {
			a.Reason = ReasonMalformed
			a.Detail = err.Error()
			return
		}
		if findOption(q, id) == nil {
			a.Reason = ReasonMalformed
			a.Detail = fmt.Sprintf("option %d does not belong to question %d", id, q.ID)
			return
		}
		// 重复的选项只计一次
		if !selected[id] {
			selected[id] = true
			ids = append(ids, id)
		}
	}
	a.SelectedOptionIDs = ids

	if sameSet(selected, correctSet(q)) {
		a.IsCorrect = boolPtr(true)
		a.EarnedPoints = a.PointsPossible
		a.Reason = ReasonCorrect
		return
	}
	a.Reason = ReasonWrong
}

func scoreText(raw json.RawMessage, answered bool, a *AnswerOutcome) {
	// 文本题等待人工评分
	a.Reason = ReasonManualReview
	if !answered {
		a.Reason = ReasonUnanswered
		return
	}
	a.Answered = true

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		a.Reason = ReasonMalformed
		a.Detail = "expected a text response"
		return
	}
	a.TextResponse = &text
}

// Aggregate 根据已持久化的答案重新计算总分与是否及格
func Aggregate(answers []model.Answer, passingScore float64) (total, earned, percentage float64, passed bool) {
	for _, a := range answers {
		total += a.PointsPossible
		earned += a.EarnedPoints
	}
	percentage = Percentage(earned, total)
	passed = Passed(percentage, passingScore)
	return total, earned, percentage, passed
}

// Percentage 不做四舍五入，展示时再格式化
func Percentage(earned, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return earned / total * 100
}

func Passed(percentage, passingScore float64) bool {
	return percentage >= passingScore
}

// ClampPoints 将人工给分限制在 [0, max]
func ClampPoints(points, max float64) float64 {
	if points < 0 {
		return 0
	}
	if points > max {
		return max
	}
	return points
}

// parseOptionID 接受 JSON 数字或数字字符串
func parseOptionID(raw json.RawMessage) (uint, error) {
	raw = bytes.TrimSpace(raw)
	var s string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("invalid option id")
		}
	} else {
		s = string(raw)
	}

	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("option id %s is not a positive integer", truncate(string(raw), 32))
	}
	return uint(id), nil
}

func findOption(q *model.Question, id uint) *model.Option {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i]
		}
	}
	return nil
}

func correctSet(q *model.Question) map[uint]bool {
	set := make(map[uint]bool)
	for _, o := range q.Options {
		if o.IsCorrect {
			set[o.ID] = true
		}
	}
	return set
}

func sameSet(a, b map[uint]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func boolPtr(b bool) *bool {
	return &b
}
