package service

import (
	"context"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/util"
	"strings"

	"gorm.io/gorm"
)

type QuestionService struct {
	DB     *gorm.DB
	Repo   *repository.QuestionRepository
	Access *AccessService
}

func NewQuestionService(db *gorm.DB, repo *repository.QuestionRepository, access *AccessService) *QuestionService {
	return &QuestionService{DB: db, Repo: repo, Access: access}
}

type OptionReq struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	Order     *int   `json:"order"`
}

// QuestionReq 创建与部分更新共用；Options 不为 nil 时整体替换选项
type QuestionReq struct {
	ExamID       *uint        `json:"exam_id"`
	Text         *string      `json:"text"`
	QuestionType *string      `json:"question_type"`
	Points       *float64     `json:"points"`
	Order        *int         `json:"order"`
	Explanation  *string      `json:"explanation"`
	Options      *[]OptionReq `json:"options"`
}

type BulkQuestionReq struct {
	ExamID    uint          `json:"exam_id"`
	Questions []QuestionReq `json:"questions"`
}

type QuestionListReq struct {
	ExamID       uint
	QuestionType string
	Search       string
}

func (req *QuestionReq) apply(q *model.Question) {
	if req.Text != nil {
		q.Text = strings.TrimSpace(*req.Text)
	}
	if req.QuestionType != nil {
		q.QuestionType = *req.QuestionType
	}
	if req.Points != nil {
		q.Points = *req.Points
	}
	if req.Order != nil {
		q.Order = req.Order
	}
	if req.Explanation != nil {
		q.Explanation = req.Explanation
	}
	if req.Options != nil {
		q.Options = make([]model.Option, 0, len(*req.Options))
		for _, o := range *req.Options {
			q.Options = append(q.Options, model.Option{
				Text:      strings.TrimSpace(o.Text),
				IsCorrect: o.IsCorrect,
				Order:     o.Order,
			})
		}
	}
}

// validateQuestion 校验并规范化题型；文本题的选项被清空
func validateQuestion(q *model.Question) error {
	if q.Text == "" {
		return util.Validationf("question text is required")
	}
	qType := model.NormalizeQuestionType(q.QuestionType)
	if qType == "" {
		return util.Validationf("unsupported question_type %q", q.QuestionType)
	}
	q.QuestionType = qType
	if q.Points < 0 {
		return util.Validationf("points must not be negative")
	}

	if qType == model.QuestionText {
		q.Options = nil
		return nil
	}

	correct := 0
	for _, o := range q.Options {
		if o.Text == "" {
			return util.Validationf("option text is required")
		}
		if o.IsCorrect {
			correct++
		}
	}

	switch qType {
	case model.QuestionTrueFalse:
		if len(q.Options) != 2 || correct != 1 {
			return util.Validationf("true_false questions need exactly two options with one marked correct")
		}
	default:
		if len(q.Options) < 2 {
			return util.Validationf("%s questions need at least two options", qType)
		}
		if correct == 0 {
			return util.Validationf("%s questions need at least one correct option", qType)
		}
	}
	return nil
}

func newQuestion(examID uint, req QuestionReq) (*model.Question, error) {
	if req.Text == nil || req.QuestionType == nil {
		return nil, util.Validationf("text and question_type are required")
	}
	q := &model.Question{ExamID: examID, Points: 1}
	req.apply(q)
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuestionService) List(ctx context.Context, userID uint, req QuestionListReq) ([]model.Question, error) {
	filter := repository.QuestionFilter{
		ExamID: req.ExamID,
		Search: strings.TrimSpace(req.Search),
	}
	if req.QuestionType != "" {
		filter.QuestionType = model.NormalizeQuestionType(req.QuestionType)
		if filter.QuestionType == "" {
			return nil, util.Validationf("unsupported question_type %q", req.QuestionType)
		}
	}
	return s.Repo.List(ctx, userID, filter)
}

func (s *QuestionService) Create(ctx context.Context, userID uint, req QuestionReq) (*model.Question, error) {
	var examID uint
	if req.ExamID != nil {
		examID = *req.ExamID
	}

	var question *model.Question
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exam, err := s.Access.TargetExam(ctx, tx, userID, examID)
		if err != nil {
			return err
		}
		question, err = newQuestion(exam.ID, req)
		if err != nil {
			return err
		}
		return s.Repo.WithTx(tx).Create(ctx, question)
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

// BulkCreate 批量创建，任意一题校验失败则整批回滚
func (s *QuestionService) BulkCreate(ctx context.Context, userID uint, req BulkQuestionReq) ([]model.Question, error) {
	if len(req.Questions) == 0 {
		return nil, util.Validationf("questions are required")
	}

	created := make([]model.Question, 0, len(req.Questions))
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exam, err := s.Access.TargetExam(ctx, tx, userID, req.ExamID)
		if err != nil {
			return err
		}

		repo := s.Repo.WithTx(tx)
		for i, qReq := range req.Questions {
			q, err := newQuestion(exam.ID, qReq)
			if err != nil {
				return util.Validationf("question %d: %v", i+1, strings.TrimPrefix(err.Error(), util.ErrValidation.Error()+": "))
			}
			if err := repo.Create(ctx, q); err != nil {
				return err
			}
			created = append(created, *q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *QuestionService) Get(ctx context.Context, userID, questionID uint) (*model.Question, error) {
	return s.Access.Question(ctx, nil, userID, questionID)
}

func (s *QuestionService) Update(ctx context.Context, userID, questionID uint, req QuestionReq) (*model.Question, error) {
	var question *model.Question
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := s.Access.Question(ctx, tx, userID, questionID)
		if err != nil {
			return err
		}

		wasText := model.IsFreeText(q.QuestionType)
		req.apply(q)
		if err := validateQuestion(q); err != nil {
			return err
		}

		repo := s.Repo.WithTx(tx)
		if err := repo.Update(ctx, q); err != nil {
			return err
		}
		// 选项被替换，或题型变为文本题时清空选项
		if req.Options != nil || (!wasText && model.IsFreeText(q.QuestionType)) {
			if err := repo.ReplaceOptions(ctx, q.ID, q.Options); err != nil {
				return err
			}
		}

		question, err = repo.FindByID(ctx, q.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuestionService) Delete(ctx context.Context, userID, questionID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := s.Access.Question(ctx, tx, userID, questionID)
		if err != nil {
			return err
		}
		return s.Repo.WithTx(tx).Delete(ctx, q.ID)
	})
}
