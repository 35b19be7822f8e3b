package service

import (
	"context"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/util"

	"gorm.io/gorm"
)

// AccessService 所有受保护资源的归属校验，统一沿 exam.creator_id 判断。
// 不属于当前用户的数据与不存在的数据一样返回 ErrNotFound。
// tx 为 nil 时使用默认连接。
type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

func (s *AccessService) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.DB
}

func (s *AccessService) Exam(ctx context.Context, tx *gorm.DB, userID, examID uint) (*model.Exam, error) {
	exam, err := repository.NewExamRepository(s.conn(tx)).FindOwned(ctx, userID, examID)
	if err != nil {
		return nil, notFound(err, "exam")
	}
	return exam, nil
}

// TargetExam 创建类请求中由请求体指定的考试
func (s *AccessService) TargetExam(ctx context.Context, tx *gorm.DB, userID, examID uint) (*model.Exam, error) {
	if examID == 0 {
		return nil, util.Validationf("exam_id is required")
	}
	return s.Exam(ctx, tx, userID, examID)
}

func (s *AccessService) Question(ctx context.Context, tx *gorm.DB, userID, questionID uint) (*model.Question, error) {
	question, err := repository.NewQuestionRepository(s.conn(tx)).FindOwned(ctx, userID, questionID)
	if err != nil {
		return nil, notFound(err, "question")
	}
	return question, nil
}

func (s *AccessService) Candidate(ctx context.Context, tx *gorm.DB, userID, candidateID uint) (*model.Candidate, error) {
	candidate, err := repository.NewCandidateRepository(s.conn(tx)).FindOwned(ctx, userID, candidateID)
	if err != nil {
		return nil, notFound(err, "candidate")
	}
	return candidate, nil
}

func (s *AccessService) Result(ctx context.Context, tx *gorm.DB, userID, resultID uint) (*model.Result, error) {
	result, err := repository.NewResultRepository(s.conn(tx)).FindOwned(ctx, userID, resultID)
	if err != nil {
		return nil, notFound(err, "result")
	}
	return result, nil
}

// CandidateByLink 凭访问链接定位候选人，链接本身即授权
func (s *AccessService) CandidateByLink(ctx context.Context, tx *gorm.DB, link string) (*model.Candidate, error) {
	if link == "" {
		return nil, util.NotFoundf("exam link")
	}
	candidate, err := repository.NewCandidateRepository(s.conn(tx)).FindByLink(ctx, link)
	if err != nil {
		return nil, notFound(err, "exam link")
	}
	return candidate, nil
}

// notFound 把 gorm 的未找到错误转换为 404 类错误，其余错误原样返回
func notFound(err error, resource string) error {
	if err == nil {
		return nil
	}
	if repository.IsNotFound(err) {
		return util.NotFoundf(resource)
	}
	return err
}
