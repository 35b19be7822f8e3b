package model

import "gorm.io/datatypes"

// swagger:model Result
type Result struct {
	BaseModel
	// 唯一索引保证每个候选人最多一份结果
	CandidateID uint    `gorm:"not null;uniqueIndex" json:"candidate_id"`
	ExamID      uint    `gorm:"not null;index" json:"exam_id"`
	Score       float64 `gorm:"not null" json:"score"`
	Passed      bool    `gorm:"not null" json:"passed"`
	Feedback    *string `gorm:"type:text" json:"feedback"`
	// 以下为提交时的快照，之后修改考试不影响历史结果
	TotalPoints  float64        `gorm:"not null" json:"total_points"`
	EarnedPoints float64        `gorm:"not null" json:"earned_points"`
	PassingScore float64        `gorm:"not null" json:"passing_score"`
	RawAnswers   datatypes.JSON `json:"raw_answers,omitempty"`

	Answers []Answer `gorm:"foreignKey:ResultID" json:"answers,omitempty"`
}

func (Result) TableName() string {
	return "results"
}

// swagger:model Answer
type Answer struct {
	BaseModel
	ResultID   uint `gorm:"not null;uniqueIndex:idx_answers_result_question" json:"result_id"`
	QuestionID uint `gorm:"not null;uniqueIndex:idx_answers_result_question" json:"question_id"`
	// 题目快照
	QuestionText   string  `gorm:"type:text" json:"question_text"`
	QuestionType   string  `gorm:"size:20;not null" json:"question_type"`
	PointsPossible float64 `gorm:"not null" json:"points_possible"`

	SelectedOptionID  *uint                    `json:"selected_option_id"`
	SelectedOptionIDs datatypes.JSONSlice[uint] `json:"selected_option_ids,omitempty"`
	TextResponse      *string                  `gorm:"type:text" json:"text_response"`
	// 文本题为 nil
	IsCorrect         *bool   `json:"is_correct"`
	EarnedPoints      float64 `gorm:"not null" json:"earned_points"`
	ManuallyEvaluated bool    `gorm:"not null" json:"manually_evaluated"`
}

func (Answer) TableName() string {
	return "answers"
}
