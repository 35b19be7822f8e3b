package repository

import (
	"context"
	"online_exam_backend/internal/model"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) WithTx(tx *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: tx}
}

// ResultFilter 结果列表过滤条件
type ResultFilter struct {
	ExamID      uint
	CandidateID uint
}

func preloadAnswers(db *gorm.DB) *gorm.DB {
	return db.Preload("Answers", func(db *gorm.DB) *gorm.DB {
		return db.Order("answers.id")
	})
}

// Create 写入结果及其全部答案
func (r *ResultRepository) Create(ctx context.Context, result *model.Result) error {
	return r.DB.WithContext(ctx).Create(result).Error
}

func (r *ResultRepository) FindByID(ctx context.Context, id uint) (*model.Result, error) {
	var result model.Result
	err := r.DB.WithContext(ctx).Scopes(preloadAnswers).First(&result, id).Error
	return &result, err
}

func (r *ResultRepository) FindOwned(ctx context.Context, userID, id uint) (*model.Result, error) {
	var result model.Result
	err := r.DB.WithContext(ctx).
		Scopes(OwnedByCreator("results", userID), preloadAnswers).
		Where("results.id = ?", id).
		First(&result).Error
	return &result, err
}

func (r *ResultRepository) FindByCandidate(ctx context.Context, candidateID uint) (*model.Result, error) {
	var result model.Result
	err := r.DB.WithContext(ctx).Where("candidate_id = ?", candidateID).First(&result).Error
	return &result, err
}

func (r *ResultRepository) ListOwned(ctx context.Context, userID uint, filter ResultFilter) ([]model.Result, error) {
	query := r.DB.WithContext(ctx).Scopes(OwnedByCreator("results", userID))
	if filter.ExamID != 0 {
		query = query.Where("results.exam_id = ?", filter.ExamID)
	}
	if filter.CandidateID != 0 {
		query = query.Where("results.candidate_id = ?", filter.CandidateID)
	}

	var results []model.Result
	err := query.Order("results.created_at DESC").Order("results.id DESC").Find(&results).Error
	return results, err
}

func (r *ResultRepository) CountByExam(ctx context.Context, examID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Result{}).Where("exam_id = ?", examID).Count(&count).Error
	return count, err
}

// FindAnswer 按 (id, result_id) 读取答案
func (r *ResultRepository) FindAnswer(ctx context.Context, resultID, answerID uint) (*model.Answer, error) {
	var answer model.Answer
	err := r.DB.WithContext(ctx).
		Where("id = ? AND result_id = ?", answerID, resultID).
		First(&answer).Error
	return &answer, err
}

func (r *ResultRepository) ListAnswers(ctx context.Context, resultID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.WithContext(ctx).Where("result_id = ?", resultID).Order("id").Find(&answers).Error
	return answers, err
}

func (r *ResultRepository) UpdateAnswerScore(ctx context.Context, answer *model.Answer) error {
	return r.DB.WithContext(ctx).Model(answer).
		Select("earned_points", "manually_evaluated").
		Updates(answer).Error
}

// UpdateScore 写回重新计算的分数与评语
func (r *ResultRepository) UpdateScore(ctx context.Context, result *model.Result) error {
	return r.DB.WithContext(ctx).Model(result).
		Select("score", "passed", "earned_points", "total_points", "feedback").
		Updates(result).Error
}
