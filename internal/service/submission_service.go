package service

import (
	"context"
	"encoding/json"
	"net/http"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/scoring"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"
	"online_exam_backend/pkg/monitoring"
	"online_exam_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubmissionService struct {
	DB         *gorm.DB
	ExamRepo   *repository.ExamRepository
	ResultRepo *repository.ResultRepository
	Repo       *repository.CandidateRepository
	Access     *AccessService
	Notifier   *NotificationService
}

func NewSubmissionService(db *gorm.DB, examRepo *repository.ExamRepository, resultRepo *repository.ResultRepository, candidateRepo *repository.CandidateRepository, access *AccessService, notifier *NotificationService) *SubmissionService {
	return &SubmissionService{
		DB:         db,
		ExamRepo:   examRepo,
		ResultRepo: resultRepo,
		Repo:       candidateRepo,
		Access:     access,
		Notifier:   notifier,
	}
}

// SubmitReq answers 的 key 为题目 ID；缺失或 null 视为错误，空对象合法
type SubmitReq struct {
	Answers map[string]json.RawMessage `json:"answers"`
}

// Submit 判分并在一个事务中写入结果、答案和候选人完成状态
func (s *SubmissionService) Submit(ctx context.Context, link string, answers map[string]json.RawMessage) (*model.Result, error) {
	ctx, span := tracing.Tracer.Start(ctx, "SubmissionService.Submit")
	defer span.End()

	var (
		exam      *model.Exam
		candidate *model.Candidate
		result    *model.Result
		outcome   scoring.Outcome
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		candidate, err = s.Access.CandidateByLink(ctx, tx, link)
		if err != nil {
			return err
		}
		if candidate.IsTestCompleted {
			return util.ErrTestAlreadySubmitted
		}

		exam, err = s.ExamRepo.WithTx(tx).FindWithQuestions(ctx, candidate.ExamID)
		if err != nil {
			return notFound(err, "exam")
		}
		// 链接与状态校验在前，answers 缺失最后才报 400
		if answers == nil {
			return util.ErrAnswersRequired
		}

		outcome = scoring.ScoreExam(exam.Questions, scoring.ParseAnswerKeys(answers), exam.PassingScore)

		raw, err := json.Marshal(answers)
		if err != nil {
			return err
		}
		result = &model.Result{
			CandidateID:  candidate.ID,
			ExamID:       exam.ID,
			Score:        outcome.Percentage,
			Passed:       outcome.Passed,
			TotalPoints:  outcome.TotalPoints,
			EarnedPoints: outcome.EarnedPoints,
			PassingScore: exam.PassingScore,
			RawAnswers:   datatypes.JSON(raw),
			Answers:      newAnswers(outcome.Answers),
		}
		if err := s.ResultRepo.WithTx(tx).Create(ctx, result); err != nil {
			if repository.IsDuplicateKey(err) {
				return util.ErrResultExists
			}
			return err
		}

		completed, err := s.Repo.WithTx(tx).MarkCompleted(ctx, candidate.ID, time.Now())
		if err != nil {
			return err
		}
		if !completed {
			return util.ErrResultExists
		}
		return nil
	})
	if err != nil {
		monitoring.SubmissionCounter.WithLabelValues(submissionOutcome(err)).Inc()
		if util.StatusFor(err) >= http.StatusInternalServerError {
			tracing.RecordError(span, err)
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("exam.id", int64(exam.ID)),
		attribute.Int64("candidate.id", int64(candidate.ID)),
		attribute.Float64("result.score", result.Score),
		attribute.Bool("result.passed", result.Passed),
	)
	logMalformed(exam.ID, outcome.Answers)
	monitoring.SubmissionCounter.WithLabelValues("accepted").Inc()
	logger.Log.Info("Submission scored",
		zap.Uint("result_id", result.ID),
		zap.Uint("exam_id", exam.ID),
		zap.Uint("candidate_id", candidate.ID),
		zap.Float64("earned_points", result.EarnedPoints),
		zap.Float64("total_points", result.TotalPoints),
		zap.Float64("score", result.Score),
		zap.Bool("passed", result.Passed))

	s.Notifier.ResultReady(ctx, exam, candidate, result)
	s.Notifier.SubmissionCompleted(ctx, exam, candidate, result)
	return result, nil
}

func newAnswers(outcomes []scoring.AnswerOutcome) []model.Answer {
	answers := make([]model.Answer, 0, len(outcomes))
	for _, a := range outcomes {
		answers = append(answers, model.Answer{
			QuestionID:        a.QuestionID,
			QuestionText:      a.QuestionText,
			QuestionType:      a.QuestionType,
			PointsPossible:    a.PointsPossible,
			SelectedOptionID:  a.SelectedOptionID,
			SelectedOptionIDs: datatypes.JSONSlice[uint](a.SelectedOptionIDs),
			TextResponse:      a.TextResponse,
			IsCorrect:         a.IsCorrect,
			EarnedPoints:      a.EarnedPoints,
		})
	}
	return answers
}

// logMalformed 格式错误的答案按零分处理，这里只记录
func logMalformed(examID uint, outcomes []scoring.AnswerOutcome) {
	for _, a := range outcomes {
		if !a.Malformed() {
			continue
		}
		monitoring.MalformedAnswerCounter.WithLabelValues(a.QuestionType).Inc()
		logger.Log.Warn("Malformed answer scored as zero",
			zap.Uint("exam_id", examID),
			zap.Uint("question_id", a.QuestionID),
			zap.String("question_type", a.QuestionType),
			zap.String("reason", a.Reason),
			zap.String("detail", a.Detail))
	}
}

func submissionOutcome(err error) string {
	switch util.StatusFor(err) {
	case http.StatusForbidden:
		return "already_submitted"
	case http.StatusConflict:
		return "conflict"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "rejected"
	default:
		return "error"
	}
}
