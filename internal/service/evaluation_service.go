package service

import (
	"context"
	"net/http"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/scoring"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"
	"online_exam_backend/pkg/monitoring"
	"online_exam_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EvaluationService struct {
	DB            *gorm.DB
	ResultRepo    *repository.ResultRepository
	ExamRepo      *repository.ExamRepository
	CandidateRepo *repository.CandidateRepository
	Access        *AccessService
	Notifier      *NotificationService
}

func NewEvaluationService(db *gorm.DB, resultRepo *repository.ResultRepository, examRepo *repository.ExamRepository, candidateRepo *repository.CandidateRepository, access *AccessService, notifier *NotificationService) *EvaluationService {
	return &EvaluationService{
		DB:            db,
		ResultRepo:    resultRepo,
		ExamRepo:      examRepo,
		CandidateRepo: candidateRepo,
		Access:        access,
		Notifier:      notifier,
	}
}

// EvaluationReq 单个文本题的人工评分，缺少任一字段的条目被忽略
type EvaluationReq struct {
	AnswerID      *uint    `json:"answer_id"`
	PointsAwarded *float64 `json:"points_awarded"`
}

// ReviewReq review 与 evaluate 共用；evaluate 要求 evaluations 存在
type ReviewReq struct {
	Feedback    *string         `json:"feedback"`
	Evaluations []EvaluationReq `json:"evaluations"`
}

// Evaluate 写入人工评分并按快照及格线重新计算总分
func (s *EvaluationService) Evaluate(ctx context.Context, userID, resultID uint, req ReviewReq, requireEvaluations bool) (*model.Result, error) {
	ctx, span := tracing.Tracer.Start(ctx, "EvaluationService.Evaluate")
	defer span.End()

	if requireEvaluations && req.Evaluations == nil {
		return nil, util.Validationf("evaluations are required")
	}

	var result *model.Result
	applied := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.Access.Result(ctx, tx, userID, resultID)
		if err != nil {
			return err
		}

		repo := s.ResultRepo.WithTx(tx)
		for _, e := range req.Evaluations {
			if e.AnswerID == nil || e.PointsAwarded == nil {
				continue
			}
			answer, err := repo.FindAnswer(ctx, result.ID, *e.AnswerID)
			if err != nil {
				if repository.IsNotFound(err) {
					continue
				}
				return err
			}
			// 选择题由系统判分，不接受人工覆盖
			if !model.IsFreeText(answer.QuestionType) {
				continue
			}

			answer.EarnedPoints = scoring.ClampPoints(*e.PointsAwarded, answer.PointsPossible)
			answer.ManuallyEvaluated = true
			if err := repo.UpdateAnswerScore(ctx, answer); err != nil {
				return err
			}
			applied++
		}

		answers, err := repo.ListAnswers(ctx, result.ID)
		if err != nil {
			return err
		}
		result.TotalPoints, result.EarnedPoints, result.Score, result.Passed = scoring.Aggregate(answers, result.PassingScore)
		if req.Feedback != nil {
			result.Feedback = req.Feedback
		}
		if err := repo.UpdateScore(ctx, result); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, result.ID)
		return err
	})
	if err != nil {
		if util.StatusFor(err) >= http.StatusInternalServerError {
			tracing.RecordError(span, err)
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("result.id", int64(result.ID)),
		attribute.Int("evaluations.applied", applied),
	)
	monitoring.EvaluationCounter.Add(float64(applied))
	logger.Log.Info("Evaluation applied",
		zap.Uint("result_id", result.ID),
		zap.Uint("user_id", userID),
		zap.Int("applied", applied),
		zap.Float64("score", result.Score),
		zap.Bool("passed", result.Passed))

	s.notify(ctx, result)
	return result, nil
}

func (s *EvaluationService) notify(ctx context.Context, result *model.Result) {
	exam, err := s.ExamRepo.FindByID(ctx, result.ExamID)
	if err != nil {
		logger.Log.Warn("Exam not found for result notification", zap.Uint("result_id", result.ID), zap.Error(err))
		return
	}
	candidate, err := s.CandidateRepo.FindByID(ctx, result.CandidateID)
	if err != nil {
		logger.Log.Warn("Candidate not found for result notification", zap.Uint("result_id", result.ID), zap.Error(err))
		return
	}
	s.Notifier.ResultReady(ctx, exam, candidate, result)
}
