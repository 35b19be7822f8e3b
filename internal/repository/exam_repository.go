package repository

import (
	"context"
	"online_exam_backend/internal/model"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库
func (r *ExamRepository) WithTx(tx *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: tx}
}

func (r *ExamRepository) Create(ctx context.Context, exam *model.Exam) error {
	return r.DB.WithContext(ctx).Omit("Questions").Create(exam).Error
}

func (r *ExamRepository) FindByID(ctx context.Context, id uint) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.WithContext(ctx).First(&exam, id).Error
	return &exam, err
}

// FindOwned 仅返回 userID 创建的考试，他人的考试与不存在同样返回 ErrRecordNotFound
func (r *ExamRepository) FindOwned(ctx context.Context, userID, id uint) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.WithContext(ctx).
		Scopes(OwnedByCreator("exams", userID)).
		Where("exams.id = ?", id).
		First(&exam).Error
	return &exam, err
}

// FindWithQuestions 预加载有序的题目与选项
func (r *ExamRepository) FindWithQuestions(ctx context.Context, id uint) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Scopes(OrderedByPosition("questions"))
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Scopes(OrderedByPosition("options"))
		}).
		First(&exam, id).Error
	return &exam, err
}

func (r *ExamRepository) ListOwned(ctx context.Context, userID uint) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.WithContext(ctx).
		Scopes(OwnedByCreator("exams", userID)).
		Order("exams.created_at DESC").
		Order("exams.id DESC").
		Find(&exams).Error
	if err != nil {
		return nil, err
	}
	return exams, r.fillQuestionCounts(ctx, exams)
}

func (r *ExamRepository) CountQuestions(ctx context.Context, examID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Question{}).Where("exam_id = ?", examID).Count(&count).Error
	return count, err
}

type examCount struct {
	ExamID uint
	Total  int64
}

func (r *ExamRepository) fillQuestionCounts(ctx context.Context, exams []model.Exam) error {
	if len(exams) == 0 {
		return nil
	}
	ids := make([]uint, len(exams))
	for i, e := range exams {
		ids[i] = e.ID
	}

	var rows []examCount
	err := r.DB.WithContext(ctx).Model(&model.Question{}).
		Select("exam_id, COUNT(*) AS total").
		Where("exam_id IN ?", ids).
		Group("exam_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.ExamID] = row.Total
	}
	for i := range exams {
		exams[i].QuestionCount = counts[exams[i].ID]
	}
	return nil
}

// Update 只更新考试本身的列，creator_id 不可变
func (r *ExamRepository) Update(ctx context.Context, exam *model.Exam) error {
	return r.DB.WithContext(ctx).Model(exam).
		Select("title", "description", "duration_minutes", "passing_score", "is_randomized", "is_active").
		Updates(exam).Error
}

func (r *ExamRepository) HasResults(ctx context.Context, examID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Result{}).Where("exam_id = ?", examID).Count(&count).Error
	return count > 0, err
}

// Delete 删除考试及其题目、选项和尚未提交的候选人，需在事务中调用
func (r *ExamRepository) Delete(ctx context.Context, examID uint) error {
	db := r.DB.WithContext(ctx)

	questionIDs := db.Model(&model.Question{}).Select("id").Where("exam_id = ?", examID)
	if err := db.Where("question_id IN (?)", questionIDs).Delete(&model.Option{}).Error; err != nil {
		return err
	}
	if err := db.Where("exam_id = ?", examID).Delete(&model.Question{}).Error; err != nil {
		return err
	}

	withResult := db.Model(&model.Result{}).Select("candidate_id").Where("exam_id = ?", examID)
	if err := db.Where("exam_id = ? AND id NOT IN (?)", examID, withResult).Delete(&model.Candidate{}).Error; err != nil {
		return err
	}

	return db.Delete(&model.Exam{}, examID).Error
}
