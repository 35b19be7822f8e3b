package service

import (
	"context"
	"encoding/json"
	"fmt"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/pkg/logger"
	"online_exam_backend/pkg/mailer"
	"online_exam_backend/pkg/monitoring"
	"online_exam_backend/pkg/queue"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	NotifyInvitation = "invitation"
	NotifyResult     = "result"
	NotifyCompletion = "completion"
)

// NotificationJob 一封待发送的邮件
type NotificationJob struct {
	Kind    string         `json:"kind"`
	Message mailer.Message `json:"message"`
	Attempt int            `json:"attempt"`
}

// Dispatcher 负责把邮件交给发送方，不阻塞调用者
type Dispatcher interface {
	Dispatch(ctx context.Context, job NotificationJob) error
}

const sendTimeout = 30 * time.Second

// DirectDispatcher 在后台 goroutine 中直接发送
type DirectDispatcher struct {
	Mailer mailer.Mailer
	wg     sync.WaitGroup
}

func NewDirectDispatcher(m mailer.Mailer) *DirectDispatcher {
	return &DirectDispatcher{Mailer: m}
}

func (d *DirectDispatcher) Dispatch(_ context.Context, job NotificationJob) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// 请求结束后 ctx 会被取消，发送使用独立的超时
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		deliver(ctx, d.Mailer, job)
	}()
	return nil
}

// Wait 等待所有发送完成
func (d *DirectDispatcher) Wait() {
	d.wg.Wait()
}

// QueueDispatcher 写入 Redis 队列，由 NotificationWorker 消费
type QueueDispatcher struct {
	Queue *queue.Queue
}

func NewQueueDispatcher(q *queue.Queue) *QueueDispatcher {
	return &QueueDispatcher{Queue: q}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job NotificationJob) error {
	return d.Queue.Push(ctx, job)
}

const maxDeliveryAttempts = 3

// NotificationWorker 消费通知队列；发送失败的任务重新入队，最多尝试三次
type NotificationWorker struct {
	Queue  *queue.Queue
	Mailer mailer.Mailer
}

func NewNotificationWorker(q *queue.Queue, m mailer.Mailer) *NotificationWorker {
	return &NotificationWorker{Queue: q, Mailer: m}
}

func (w *NotificationWorker) Run(ctx context.Context) {
	logger.Log.Info("Notification worker started", zap.String("queue", w.Queue.Key()))
	w.Queue.Consume(ctx, w.Handle, func(err error) {
		logger.Log.Error("Notification queue error", zap.Error(err))
	})
	logger.Log.Info("Notification worker stopped")
}

func (w *NotificationWorker) Handle(ctx context.Context, payload []byte) error {
	var job NotificationJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode notification job: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if deliver(sendCtx, w.Mailer, job) {
		return nil
	}

	job.Attempt++
	if job.Attempt >= maxDeliveryAttempts {
		logger.Log.Error("Notification dropped after retries",
			zap.String("kind", job.Kind),
			zap.Strings("to", job.Message.To),
			zap.Int("attempts", job.Attempt))
		return nil
	}
	return w.Queue.Push(ctx, job)
}

// deliver 发送并记录结果，失败不向上传播
func deliver(ctx context.Context, m mailer.Mailer, job NotificationJob) bool {
	if err := m.Send(ctx, job.Message); err != nil {
		monitoring.NotificationCounter.WithLabelValues(job.Kind, "failed").Inc()
		logger.Log.Warn("Failed to send notification",
			zap.String("kind", job.Kind),
			zap.Strings("to", job.Message.To),
			zap.Error(err))
		return false
	}
	monitoring.NotificationCounter.WithLabelValues(job.Kind, "sent").Inc()
	return true
}

// NotificationService 渲染考试相关邮件并交给 Dispatcher。
// 调用方在事务提交后调用，通知失败只记录日志。
type NotificationService struct {
	Dispatcher   Dispatcher
	UserRepo     *repository.UserRepository
	LinkBaseURL  string
	AdminBaseURL string
}

func NewNotificationService(d Dispatcher, userRepo *repository.UserRepository, linkBaseURL, adminBaseURL string) *NotificationService {
	return &NotificationService{
		Dispatcher:   d,
		UserRepo:     userRepo,
		LinkBaseURL:  linkBaseURL,
		AdminBaseURL: adminBaseURL,
	}
}

type notificationData struct {
	Exam      *model.Exam
	Candidate *model.Candidate
	Result    *model.Result
	Link      string
}

// ExamLink 候选人的访问地址
func (s *NotificationService) ExamLink(c *model.Candidate) string {
	return joinURL(s.LinkBaseURL, c.UniqueLink)
}

func (s *NotificationService) Invitation(ctx context.Context, exam *model.Exam, c *model.Candidate) {
	data := notificationData{Exam: exam, Candidate: c, Link: s.ExamLink(c)}
	s.send(ctx, NotifyInvitation, invitationTemplate, c.Email, data)
}

func (s *NotificationService) ResultReady(ctx context.Context, exam *model.Exam, c *model.Candidate, r *model.Result) {
	data := notificationData{Exam: exam, Candidate: c, Result: r}
	s.send(ctx, NotifyResult, resultTemplate, c.Email, data)
}

// SubmissionCompleted 通知考试创建者
func (s *NotificationService) SubmissionCompleted(ctx context.Context, exam *model.Exam, c *model.Candidate, r *model.Result) {
	creator, err := s.UserRepo.FindByID(ctx, exam.CreatorID)
	if err != nil {
		logger.Log.Warn("Exam creator not found for completion notice",
			zap.Uint("exam_id", exam.ID), zap.Error(err))
		return
	}
	data := notificationData{
		Exam:      exam,
		Candidate: c,
		Result:    r,
		Link:      joinURL(s.AdminBaseURL, strconv.FormatUint(uint64(r.ID), 10)),
	}
	s.send(ctx, NotifyCompletion, completionTemplate, creator.Email, data)
}

func (s *NotificationService) send(ctx context.Context, kind string, tmpl emailTemplate, to string, data notificationData) {
	subject, text, html, err := tmpl.render(data)
	if err != nil {
		logger.Log.Error("Failed to render notification", zap.String("kind", kind), zap.Error(err))
		return
	}

	job := NotificationJob{
		Kind: kind,
		Message: mailer.Message{
			To:      []string{to},
			Subject: subject,
			Text:    text,
			HTML:    html,
		},
	}
	if err := s.Dispatcher.Dispatch(ctx, job); err != nil {
		monitoring.NotificationCounter.WithLabelValues(kind, "dispatch_failed").Inc()
		logger.Log.Warn("Failed to dispatch notification",
			zap.String("kind", kind), zap.String("to", to), zap.Error(err))
	}
}

func joinURL(base, tail string) string {
	if base == "" {
		return tail
	}
	return strings.TrimRight(base, "/") + "/" + tail
}

func formatPercent(score float64) string {
	return fmt.Sprintf("%.2f%%", score)
}

func passStatus(passed bool) string {
	if passed {
		return "Passed"
	}
	return "Failed"
}
