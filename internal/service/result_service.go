package service

import (
	"context"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
)

type ResultService struct {
	Repo          *repository.ResultRepository
	ExamRepo      *repository.ExamRepository
	CandidateRepo *repository.CandidateRepository
	Access        *AccessService
}

func NewResultService(repo *repository.ResultRepository, examRepo *repository.ExamRepository, candidateRepo *repository.CandidateRepository, access *AccessService) *ResultService {
	return &ResultService{Repo: repo, ExamRepo: examRepo, CandidateRepo: candidateRepo, Access: access}
}

func (s *ResultService) List(ctx context.Context, userID uint) ([]model.Result, error) {
	return s.Repo.ListOwned(ctx, userID, repository.ResultFilter{})
}

func (s *ResultService) ListByExam(ctx context.Context, userID, examID uint) ([]model.Result, error) {
	exam, err := s.Access.Exam(ctx, nil, userID, examID)
	if err != nil {
		return nil, err
	}
	return s.Repo.ListOwned(ctx, userID, repository.ResultFilter{ExamID: exam.ID})
}

func (s *ResultService) ListByCandidate(ctx context.Context, userID, candidateID uint) ([]model.Result, error) {
	candidate, err := s.Access.Candidate(ctx, nil, userID, candidateID)
	if err != nil {
		return nil, err
	}
	return s.Repo.ListOwned(ctx, userID, repository.ResultFilter{CandidateID: candidate.ID})
}

// Get 返回结果及全部答案，附带候选人与考试信息
func (s *ResultService) Get(ctx context.Context, userID, resultID uint) (*model.ResultDetail, error) {
	result, err := s.Access.Result(ctx, nil, userID, resultID)
	if err != nil {
		return nil, err
	}

	detail := &model.ResultDetail{Result: *result}
	if candidate, err := s.CandidateRepo.FindByID(ctx, result.CandidateID); err == nil {
		detail.CandidateName = candidate.Name
		detail.CandidateEmail = candidate.Email
	} else if !repository.IsNotFound(err) {
		return nil, err
	}
	if exam, err := s.ExamRepo.FindByID(ctx, result.ExamID); err == nil {
		detail.ExamTitle = exam.Title
	} else if !repository.IsNotFound(err) {
		return nil, err
	}
	return detail, nil
}
