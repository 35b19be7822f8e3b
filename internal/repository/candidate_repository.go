package repository

import (
	"context"
	"online_exam_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type CandidateRepository struct {
	DB *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{DB: db}
}

func (r *CandidateRepository) WithTx(tx *gorm.DB) *CandidateRepository {
	return &CandidateRepository{DB: tx}
}

func (r *CandidateRepository) Create(ctx context.Context, candidate *model.Candidate) error {
	return r.DB.WithContext(ctx).Create(candidate).Error
}

func (r *CandidateRepository) FindByID(ctx context.Context, id uint) (*model.Candidate, error) {
	var candidate model.Candidate
	err := r.DB.WithContext(ctx).First(&candidate, id).Error
	return &candidate, err
}

func (r *CandidateRepository) FindOwned(ctx context.Context, userID, id uint) (*model.Candidate, error) {
	var candidate model.Candidate
	err := r.DB.WithContext(ctx).
		Scopes(OwnedByCreator("candidates", userID)).
		Where("candidates.id = ?", id).
		First(&candidate).Error
	return &candidate, err
}

func (r *CandidateRepository) FindByLink(ctx context.Context, link string) (*model.Candidate, error) {
	var candidate model.Candidate
	err := r.DB.WithContext(ctx).Where("unique_link = ?", link).First(&candidate).Error
	return &candidate, err
}

// ListOwned 返回用户所有考试下的候选人，可选按考试过滤
func (r *CandidateRepository) ListOwned(ctx context.Context, userID, examID uint) ([]model.Candidate, error) {
	query := r.DB.WithContext(ctx).Scopes(OwnedByCreator("candidates", userID))
	if examID != 0 {
		query = query.Where("candidates.exam_id = ?", examID)
	}

	var candidates []model.Candidate
	if err := query.Order("candidates.created_at DESC").Order("candidates.id DESC").Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, r.fillExamTitles(ctx, candidates)
}

func (r *CandidateRepository) fillExamTitles(ctx context.Context, candidates []model.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}
	var ids []uint
	seen := make(map[uint]bool)
	for _, c := range candidates {
		if !seen[c.ExamID] {
			seen[c.ExamID] = true
			ids = append(ids, c.ExamID)
		}
	}

	var exams []model.Exam
	if err := r.DB.WithContext(ctx).Select("id", "title").Where("id IN ?", ids).Find(&exams).Error; err != nil {
		return err
	}
	titles := make(map[uint]string, len(exams))
	for _, e := range exams {
		titles[e.ID] = e.Title
	}
	for i := range candidates {
		candidates[i].ExamTitle = titles[candidates[i].ExamID]
	}
	return nil
}

// EmailTaken 检查同一考试下邮箱是否已被其他候选人使用
func (r *CandidateRepository) EmailTaken(ctx context.Context, examID uint, email string, excludeID uint) (bool, error) {
	var count int64
	query := r.DB.WithContext(ctx).Model(&model.Candidate{}).
		Where("exam_id = ? AND email = ?", examID, email)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

func (r *CandidateRepository) Update(ctx context.Context, candidate *model.Candidate) error {
	return r.DB.WithContext(ctx).Model(candidate).
		Select("exam_id", "name", "email", "unique_link", "invitation_sent", "last_invited_at").
		Updates(candidate).Error
}

// MarkStarted 仅在首次访问时记录开始时间
func (r *CandidateRepository) MarkStarted(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Candidate{}).
		Where("id = ? AND test_start_time IS NULL", id).
		Update("test_start_time", at)
	return res.RowsAffected > 0, res.Error
}

// MarkCompleted 条件更新，返回 false 表示已被其他请求标记完成
func (r *CandidateRepository) MarkCompleted(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Candidate{}).
		Where("id = ? AND is_test_completed = ?", id, false).
		Updates(map[string]interface{}{
			"is_test_completed": true,
			"test_end_time":     at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *CandidateRepository) MarkInvited(ctx context.Context, id uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.Candidate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"invitation_sent": true,
			"last_invited_at": at,
		}).Error
}

func (r *CandidateRepository) HasResult(ctx context.Context, candidateID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Result{}).Where("candidate_id = ?", candidateID).Count(&count).Error
	return count > 0, err
}

func (r *CandidateRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&model.Candidate{}, id).Error
}
