package model

const (
	DefaultDurationMinutes = 60
	DefaultPassingScore    = 60.0
)

// swagger:model Exam
type Exam struct {
	BaseModel
	Title           string  `gorm:"size:200;not null" json:"title"`
	Description     *string `gorm:"type:text" json:"description"`
	DurationMinutes int     `gorm:"not null" json:"duration_minutes"`
	// 及格线，百分比 0-100
	PassingScore float64 `gorm:"not null" json:"passing_score"`
	IsRandomized bool    `gorm:"not null" json:"is_randomized"`
	IsActive     bool    `gorm:"not null" json:"is_active"`
	CreatorID    uint    `gorm:"index;not null" json:"creator_id"`

	Questions     []Question `gorm:"foreignKey:ExamID" json:"questions,omitempty"`
	QuestionCount int64      `gorm:"-" json:"question_count"`
}

func (Exam) TableName() string {
	return "exams"
}
