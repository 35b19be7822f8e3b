package service

import (
	"context"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ExamService struct {
	DB           *gorm.DB
	Repo         *repository.ExamRepository
	QuestionRepo *repository.QuestionRepository
	Access       *AccessService
}

func NewExamService(db *gorm.DB, repo *repository.ExamRepository, questionRepo *repository.QuestionRepository, access *AccessService) *ExamService {
	return &ExamService{DB: db, Repo: repo, QuestionRepo: questionRepo, Access: access}
}

// ExamReq 创建与部分更新共用，nil 字段表示未提供
type ExamReq struct {
	Title           *string  `json:"title"`
	Description     *string  `json:"description"`
	DurationMinutes *int     `json:"duration_minutes"`
	PassingScore    *float64 `json:"passing_score"`
	IsRandomized    *bool    `json:"is_randomized"`
	IsActive        *bool    `json:"is_active"`
}

func (req *ExamReq) apply(exam *model.Exam) error {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return util.Validationf("title is required")
		}
		exam.Title = title
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			return util.Validationf("duration_minutes must be greater than 0")
		}
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.PassingScore != nil {
		if *req.PassingScore < 0 || *req.PassingScore > 100 {
			return util.Validationf("passing_score must be between 0 and 100")
		}
		exam.PassingScore = *req.PassingScore
	}
	if req.IsRandomized != nil {
		exam.IsRandomized = *req.IsRandomized
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}
	return nil
}

func (s *ExamService) List(ctx context.Context, userID uint) ([]model.Exam, error) {
	return s.Repo.ListOwned(ctx, userID)
}

func (s *ExamService) Create(ctx context.Context, userID uint, req ExamReq) (*model.Exam, error) {
	if req.Title == nil {
		return nil, util.Validationf("title is required")
	}

	exam := &model.Exam{
		DurationMinutes: model.DefaultDurationMinutes,
		PassingScore:    model.DefaultPassingScore,
		IsActive:        true,
		CreatorID:       userID,
	}
	if err := req.apply(exam); err != nil {
		return nil, err
	}

	if err := s.Repo.Create(ctx, exam); err != nil {
		return nil, err
	}

	logger.Log.Info("Exam created", zap.Uint("exam_id", exam.ID), zap.Uint("creator_id", userID))
	return exam, nil
}

func (s *ExamService) Get(ctx context.Context, userID, examID uint) (*model.Exam, error) {
	exam, err := s.Access.Exam(ctx, nil, userID, examID)
	if err != nil {
		return nil, err
	}
	exam.QuestionCount, err = s.Repo.CountQuestions(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	return exam, nil
}

func (s *ExamService) Update(ctx context.Context, userID, examID uint, req ExamReq) (*model.Exam, error) {
	exam, err := s.Access.Exam(ctx, nil, userID, examID)
	if err != nil {
		return nil, err
	}
	if err := req.apply(exam); err != nil {
		return nil, err
	}
	if err := s.Repo.Update(ctx, exam); err != nil {
		return nil, err
	}

	exam.QuestionCount, err = s.Repo.CountQuestions(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	return exam, nil
}

// Delete 已有提交结果的考试不允许删除，以保留历史成绩
func (s *ExamService) Delete(ctx context.Context, userID, examID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exam, err := s.Access.Exam(ctx, tx, userID, examID)
		if err != nil {
			return err
		}

		repo := s.Repo.WithTx(tx)
		hasResults, err := repo.HasResults(ctx, exam.ID)
		if err != nil {
			return err
		}
		if hasResults {
			return util.ErrExamHasResults
		}

		if err := repo.Delete(ctx, exam.ID); err != nil {
			return err
		}

		logger.Log.Info("Exam deleted", zap.Uint("exam_id", exam.ID), zap.Uint("creator_id", userID))
		return nil
	})
}

// Questions 创建者视角的题目列表，包含正确答案
func (s *ExamService) Questions(ctx context.Context, userID, examID uint) ([]model.Question, error) {
	exam, err := s.Access.Exam(ctx, nil, userID, examID)
	if err != nil {
		return nil, err
	}
	return s.QuestionRepo.ListByExam(ctx, exam.ID)
}
