package service

import (
	"context"
	"hash/fnv"
	"math/rand"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	reasonInvalidEmail   = "Invalid email address"
	reasonDuplicateEmail = "Email already exists for this exam"
)

type CandidateService struct {
	DB       *gorm.DB
	Repo     *repository.CandidateRepository
	ExamRepo *repository.ExamRepository
	Access   *AccessService
	Notifier *NotificationService
}

func NewCandidateService(db *gorm.DB, repo *repository.CandidateRepository, examRepo *repository.ExamRepository, access *AccessService, notifier *NotificationService) *CandidateService {
	return &CandidateService{DB: db, Repo: repo, ExamRepo: examRepo, Access: access, Notifier: notifier}
}

// CandidateReq 单个创建与部分更新共用
type CandidateReq struct {
	ExamID         *uint   `json:"exam_id"`
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	SendInvitation bool    `json:"send_invitation"`
}

// BulkCandidateReq 按邮箱列表批量添加
type BulkCandidateReq struct {
	ExamID         uint     `json:"exam_id"`
	Emails         []string `json:"emails"`
	SendInvitation bool     `json:"send_invitation"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// nameFromEmail 取邮箱 @ 前的部分作为默认姓名
func nameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

func (s *CandidateService) Create(ctx context.Context, userID uint, req CandidateReq) (*model.Candidate, error) {
	if req.ExamID == nil {
		return nil, util.Validationf("exam_id is required")
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, util.Validationf("name is required")
	}
	if req.Email == nil {
		return nil, util.Validationf("email is required")
	}
	email := normalizeEmail(*req.Email)
	if !validEmail(email) {
		return nil, util.Validationf("invalid email address")
	}

	var exam *model.Exam
	candidate := &model.Candidate{
		ExamID: *req.ExamID,
		Name:   strings.TrimSpace(*req.Name),
		Email:  email,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		exam, err = s.Access.TargetExam(ctx, tx, userID, *req.ExamID)
		if err != nil {
			return err
		}

		repo := s.Repo.WithTx(tx)
		taken, err := repo.EmailTaken(ctx, exam.ID, email, 0)
		if err != nil {
			return err
		}
		if taken {
			return util.ErrCandidateEmailInUse
		}
		if err := repo.Create(ctx, candidate); err != nil {
			if repository.IsDuplicateKey(err) {
				return util.ErrCandidateEmailInUse
			}
			return err
		}
		if req.SendInvitation {
			return s.markInvited(ctx, repo, candidate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Candidate created",
		zap.Uint("candidate_id", candidate.ID),
		zap.Uint("exam_id", exam.ID))

	if req.SendInvitation {
		s.Notifier.Invitation(ctx, exam, candidate)
	}
	candidate.ExamTitle = exam.Title
	return candidate, nil
}

// BulkCreate 逐个校验邮箱，成功的候选人在同一事务中写入，
// 无效或重复的邮箱记录在 FailedEmails 中，不影响其他邮箱
func (s *CandidateService) BulkCreate(ctx context.Context, userID uint, req BulkCandidateReq) (*model.BulkCandidateResult, error) {
	if req.Emails == nil {
		return nil, util.Validationf("emails is required")
	}

	out := &model.BulkCandidateResult{
		Candidates:   []model.Candidate{},
		FailedEmails: []model.FailedEmail{},
	}
	var exam *model.Exam
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		exam, err = s.Access.TargetExam(ctx, tx, userID, req.ExamID)
		if err != nil {
			return err
		}

		repo := s.Repo.WithTx(tx)
		seen := make(map[string]bool, len(req.Emails))
		for _, raw := range req.Emails {
			email := normalizeEmail(raw)
			if email == "" {
				continue
			}
			if !validEmail(email) {
				out.FailedEmails = append(out.FailedEmails, model.FailedEmail{Email: email, Reason: reasonInvalidEmail})
				continue
			}
			if seen[email] {
				out.FailedEmails = append(out.FailedEmails, model.FailedEmail{Email: email, Reason: reasonDuplicateEmail})
				continue
			}
			seen[email] = true

			taken, err := repo.EmailTaken(ctx, exam.ID, email, 0)
			if err != nil {
				return err
			}
			if taken {
				out.FailedEmails = append(out.FailedEmails, model.FailedEmail{Email: email, Reason: reasonDuplicateEmail})
				continue
			}

			candidate := model.Candidate{ExamID: exam.ID, Name: nameFromEmail(email), Email: email}
			if err := repo.Create(ctx, &candidate); err != nil {
				return err
			}
			if req.SendInvitation {
				if err := s.markInvited(ctx, repo, &candidate); err != nil {
					return err
				}
			}
			candidate.ExamTitle = exam.Title
			out.Candidates = append(out.Candidates, candidate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Candidates bulk created",
		zap.Uint("exam_id", exam.ID),
		zap.Int("created", len(out.Candidates)),
		zap.Int("failed", len(out.FailedEmails)))

	if req.SendInvitation {
		for i := range out.Candidates {
			s.Notifier.Invitation(ctx, exam, &out.Candidates[i])
			out.InvitationsSent++
		}
	}
	return out, nil
}

func (s *CandidateService) Get(ctx context.Context, userID, candidateID uint) (*model.Candidate, error) {
	candidate, err := s.Access.Candidate(ctx, nil, userID, candidateID)
	if err != nil {
		return nil, err
	}
	if exam, err := s.ExamRepo.FindByID(ctx, candidate.ExamID); err == nil {
		candidate.ExamTitle = exam.Title
	}
	return candidate, nil
}

func (s *CandidateService) List(ctx context.Context, userID uint) ([]model.Candidate, error) {
	return s.Repo.ListOwned(ctx, userID, 0)
}

func (s *CandidateService) ListByExam(ctx context.Context, userID, examID uint) ([]model.Candidate, error) {
	exam, err := s.Access.Exam(ctx, nil, userID, examID)
	if err != nil {
		return nil, err
	}
	return s.Repo.ListOwned(ctx, userID, exam.ID)
}

func (s *CandidateService) Update(ctx context.Context, userID, candidateID uint, req CandidateReq) (*model.Candidate, error) {
	var candidate *model.Candidate
	var exam *model.Exam
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		candidate, err = s.Access.Candidate(ctx, tx, userID, candidateID)
		if err != nil {
			return err
		}
		repo := s.Repo.WithTx(tx)

		if req.ExamID != nil && *req.ExamID != candidate.ExamID {
			// 只能移到自己的考试，且候选人尚未提交
			if _, err := s.Access.TargetExam(ctx, tx, userID, *req.ExamID); err != nil {
				return err
			}
			hasResult, err := repo.HasResult(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if hasResult {
				return util.ErrCandidateHasResult
			}
			candidate.ExamID = *req.ExamID
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return util.Validationf("name is required")
			}
			candidate.Name = name
		}
		if req.Email != nil {
			email := normalizeEmail(*req.Email)
			if !validEmail(email) {
				return util.Validationf("invalid email address")
			}
			candidate.Email = email
		}
		if req.Email != nil || req.ExamID != nil {
			taken, err := repo.EmailTaken(ctx, candidate.ExamID, candidate.Email, candidate.ID)
			if err != nil {
				return err
			}
			if taken {
				return util.ErrCandidateEmailInUse
			}
		}

		if req.SendInvitation {
			if candidate.UniqueLink == "" {
				candidate.UniqueLink = model.GenerateUUID()
			}
			now := time.Now()
			candidate.InvitationSent = true
			candidate.LastInvitedAt = &now
		}
		if err := repo.Update(ctx, candidate); err != nil {
			if repository.IsDuplicateKey(err) {
				return util.ErrCandidateEmailInUse
			}
			return err
		}

		exam, err = s.ExamRepo.WithTx(tx).FindByID(ctx, candidate.ExamID)
		return notFound(err, "exam")
	})
	if err != nil {
		return nil, err
	}

	if req.SendInvitation {
		s.Notifier.Invitation(ctx, exam, candidate)
	}
	candidate.ExamTitle = exam.Title
	return candidate, nil
}

// Delete 已提交结果的候选人不能删除
func (s *CandidateService) Delete(ctx context.Context, userID, candidateID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate, err := s.Access.Candidate(ctx, tx, userID, candidateID)
		if err != nil {
			return err
		}
		repo := s.Repo.WithTx(tx)
		hasResult, err := repo.HasResult(ctx, candidate.ID)
		if err != nil {
			return err
		}
		if hasResult {
			return util.ErrCandidateHasResult
		}
		if err := repo.Delete(ctx, candidate.ID); err != nil {
			return err
		}
		logger.Log.Info("Candidate deleted", zap.Uint("candidate_id", candidate.ID), zap.Uint("user_id", userID))
		return nil
	})
}

func (s *CandidateService) SendInvitation(ctx context.Context, userID, candidateID uint) (*model.Candidate, error) {
	var candidate *model.Candidate
	var exam *model.Exam
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		candidate, err = s.Access.Candidate(ctx, tx, userID, candidateID)
		if err != nil {
			return err
		}
		exam, err = s.ExamRepo.WithTx(tx).FindByID(ctx, candidate.ExamID)
		if err != nil {
			return notFound(err, "exam")
		}
		return s.markInvited(ctx, s.Repo.WithTx(tx), candidate)
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Invitation(ctx, exam, candidate)
	candidate.ExamTitle = exam.Title
	return candidate, nil
}

func (s *CandidateService) markInvited(ctx context.Context, repo *repository.CandidateRepository, candidate *model.Candidate) error {
	now := time.Now()
	if candidate.UniqueLink == "" {
		candidate.UniqueLink = model.GenerateUUID()
	}
	candidate.InvitationSent = true
	candidate.LastInvitedAt = &now
	return repo.Update(ctx, candidate)
}

// AccessExam 候选人通过访问链接进入考试；首次访问记录开始时间
func (s *CandidateService) AccessExam(ctx context.Context, link string) (*model.ExamAccess, error) {
	candidate, err := s.Access.CandidateByLink(ctx, nil, link)
	if err != nil {
		return nil, err
	}
	if candidate.IsTestCompleted {
		return nil, util.ErrTestAlreadySubmitted
	}

	exam, err := s.ExamRepo.FindWithQuestions(ctx, candidate.ExamID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrExamNotAvailable
		}
		return nil, err
	}
	if !exam.IsActive {
		return nil, util.ErrExamNotAvailable
	}

	now := time.Now()
	if candidate.TestStartTime == nil {
		started, err := s.Repo.MarkStarted(ctx, candidate.ID, now)
		if err != nil {
			return nil, err
		}
		if started {
			candidate.TestStartTime = &now
			logger.Log.Info("Candidate started exam",
				zap.Uint("candidate_id", candidate.ID),
				zap.Uint("exam_id", exam.ID))
		} else if candidate, err = s.Repo.FindByID(ctx, candidate.ID); err != nil {
			// 并发的首次访问已经写入了开始时间
			return nil, notFound(err, "exam link")
		}
	}
	candidate.ExamTitle = exam.Title

	return &model.ExamAccess{
		Exam:             newPublicExam(exam, candidate.ID),
		Candidate:        candidate,
		RemainingSeconds: remainingSeconds(exam.DurationMinutes, candidate.TestStartTime, now),
	}, nil
}

func newPublicExam(exam *model.Exam, candidateID uint) model.PublicExam {
	questions := make([]model.PublicQuestion, 0, len(exam.Questions))
	for i := range exam.Questions {
		questions = append(questions, model.NewPublicQuestion(&exam.Questions[i]))
	}
	if exam.IsRandomized {
		shuffleQuestions(questions, exam.ID, candidateID)
	}
	return model.PublicExam{
		ID:              exam.ID,
		Title:           exam.Title,
		Description:     exam.Description,
		DurationMinutes: exam.DurationMinutes,
		IsRandomized:    exam.IsRandomized,
		Questions:       questions,
	}
}

// shuffleQuestions 以 (考试, 候选人) 为种子打乱题目和选项，同一候选人每次看到的顺序一致
func shuffleQuestions(questions []model.PublicQuestion, examID, candidateID uint) {
	h := fnv.New64a()
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(examID) >> (8 * i))
		buf[8+i] = byte(uint64(candidateID) >> (8 * i))
	}
	h.Write(buf[:])
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	for _, q := range questions {
		opts := q.Options
		rng.Shuffle(len(opts), func(i, j int) {
			opts[i], opts[j] = opts[j], opts[i]
		})
	}
}

func remainingSeconds(durationMinutes int, startedAt *time.Time, now time.Time) int64 {
	total := int64(durationMinutes) * 60
	if startedAt == nil {
		return total
	}
	remaining := total - int64(now.Sub(*startedAt)/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}
