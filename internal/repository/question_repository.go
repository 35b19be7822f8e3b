package repository

import (
	"context"
	"online_exam_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) WithTx(tx *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: tx}
}

// QuestionFilter 题目列表过滤条件，零值表示不过滤
type QuestionFilter struct {
	ExamID       uint
	QuestionType string
	Search       string
}

func preloadOptions(db *gorm.DB) *gorm.DB {
	return db.Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Scopes(OrderedByPosition("options"))
	})
}

// Create 同时写入题目和选项
func (r *QuestionRepository) Create(ctx context.Context, question *model.Question) error {
	return r.DB.WithContext(ctx).Create(question).Error
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var question model.Question
	err := r.DB.WithContext(ctx).Scopes(preloadOptions).First(&question, id).Error
	return &question, err
}

func (r *QuestionRepository) FindOwned(ctx context.Context, userID, id uint) (*model.Question, error) {
	var question model.Question
	err := r.DB.WithContext(ctx).
		Scopes(OwnedByCreator("questions", userID), preloadOptions).
		Where("questions.id = ?", id).
		First(&question).Error
	return &question, err
}

func (r *QuestionRepository) List(ctx context.Context, userID uint, filter QuestionFilter) ([]model.Question, error) {
	query := r.DB.WithContext(ctx).
		Scopes(OwnedByCreator("questions", userID), preloadOptions)

	if filter.ExamID != 0 {
		query = query.Where("questions.exam_id = ?", filter.ExamID)
	}
	if filter.QuestionType != "" {
		query = query.Where("questions.question_type = ?", filter.QuestionType)
	}
	if filter.Search != "" {
		query = query.Where("questions.text LIKE ?", "%"+filter.Search+"%")
	}

	var questions []model.Question
	if err := query.Scopes(OrderedByPosition("questions")).Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, r.fillExamTitles(ctx, questions)
}

func (r *QuestionRepository) ListByExam(ctx context.Context, examID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.WithContext(ctx).
		Scopes(preloadOptions, OrderedByPosition("questions")).
		Where("exam_id = ?", examID).
		Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) fillExamTitles(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	seen := make(map[uint]bool)
	var ids []uint
	for _, q := range questions {
		if !seen[q.ExamID] {
			seen[q.ExamID] = true
			ids = append(ids, q.ExamID)
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
	for i := range questions {
		questions[i].ExamTitle = titles[questions[i].ExamID]
	}
	return nil
}

// Update 只更新题目列，选项通过 ReplaceOptions 处理
func (r *QuestionRepository) Update(ctx context.Context, question *model.Question) error {
	return r.DB.WithContext(ctx).Model(question).
		Select("text", "question_type", "points", "order", "explanation").
		Updates(question).Error
}

// ReplaceOptions 整体替换题目的选项，需在事务中调用
func (r *QuestionRepository) ReplaceOptions(ctx context.Context, questionID uint, options []model.Option) error {
	db := r.DB.WithContext(ctx)
	if err := db.Where("question_id = ?", questionID).Delete(&model.Option{}).Error; err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}
	for i := range options {
		options[i].ID = 0
		options[i].QuestionID = questionID
	}
	return db.Create(&options).Error
}

// Delete 删除题目及其选项，需在事务中调用
func (r *QuestionRepository) Delete(ctx context.Context, id uint) error {
	db := r.DB.WithContext(ctx)
	if err := db.Where("question_id = ?", id).Delete(&model.Option{}).Error; err != nil {
		return err
	}
	return db.Delete(&model.Question{}, id).Error
}

// FindOptions 按 ID 批量读取选项，已被删除的选项不会返回
func (r *QuestionRepository) FindOptions(ctx context.Context, ids []uint) ([]model.Option, error) {
	var options []model.Option
	if len(ids) == 0 {
		return options, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&options).Error
	return options, err
}
