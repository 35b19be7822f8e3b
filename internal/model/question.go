package model

import "strings"

const (
	QuestionSingleChoice   = "single_choice"
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionText           = "text"
	// QuestionOpenEnded 旧客户端使用的名称，与 text 等价
	QuestionOpenEnded = "open_ended"
)

// NormalizeQuestionType 返回规范化的题型，未知题型返回空串
func NormalizeQuestionType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case QuestionSingleChoice:
		return QuestionSingleChoice
	case QuestionMultipleChoice:
		return QuestionMultipleChoice
	case QuestionTrueFalse:
		return QuestionTrueFalse
	case QuestionText, QuestionOpenEnded:
		return QuestionText
	default:
		return ""
	}
}

// IsFreeText 文本题不自动评分
func IsFreeText(t string) bool {
	return NormalizeQuestionType(t) == QuestionText
}

// swagger:model Question
type Question struct {
	BaseModel
	ExamID       uint    `gorm:"index;not null" json:"exam_id"`
	Text         string  `gorm:"type:text;not null" json:"text"`
	QuestionType string  `gorm:"size:20;not null" json:"question_type"`
	Points       float64 `gorm:"not null" json:"points"`
	Order        *int    `json:"order"`
	Explanation  *string `gorm:"type:text" json:"explanation"`

	Options   []Option `gorm:"foreignKey:QuestionID" json:"options"`
	ExamTitle string   `gorm:"-" json:"exam_title,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model Option
type Option struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"question_id"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"not null" json:"is_correct"`
	Order      *int   `json:"order"`
}

func (Option) TableName() string {
	return "options"
}
