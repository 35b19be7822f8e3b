package model

// 面向候选人的视图，不包含正确答案

type PublicOption struct {
	ID    uint   `json:"id"`
	Text  string `json:"text"`
	Order *int   `json:"order"`
}

type PublicQuestion struct {
	ID           uint           `json:"id"`
	Text         string         `json:"text"`
	QuestionType string         `json:"question_type"`
	Points       float64        `json:"points"`
	Order        *int           `json:"order"`
	Options      []PublicOption `json:"options"`
}

type PublicExam struct {
	ID              uint             `json:"id"`
	Title           string           `json:"title"`
	Description     *string          `json:"description"`
	DurationMinutes int              `json:"duration_minutes"`
	IsRandomized    bool             `json:"is_randomized"`
	Questions       []PublicQuestion `json:"questions"`
}

func NewPublicQuestion(q *Question) PublicQuestion {
	options := make([]PublicOption, 0, len(q.Options))
	for _, o := range q.Options {
		options = append(options, PublicOption{ID: o.ID, Text: o.Text, Order: o.Order})
	}
	return PublicQuestion{
		ID:           q.ID,
		Text:         q.Text,
		QuestionType: q.QuestionType,
		Points:       q.Points,
		Order:        q.Order,
		Options:      options,
	}
}

type ExamAccess struct {
	Exam             PublicExam `json:"exam"`
	Candidate        *Candidate `json:"candidate"`
	RemainingSeconds int64      `json:"remaining_seconds"`
}

// FailedEmail 批量添加候选人时被拒绝的邮箱
type FailedEmail struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type BulkCandidateResult struct {
	Candidates      []Candidate   `json:"candidates"`
	FailedEmails    []FailedEmail `json:"failed_emails"`
	InvitationsSent int           `json:"invitations_sent"`
}

// ResultDetail 结果详情，附带候选人与考试信息
type ResultDetail struct {
	Result
	CandidateName  string `json:"candidate_name"`
	CandidateEmail string `json:"candidate_email"`
	ExamTitle      string `json:"exam_title"`
}
