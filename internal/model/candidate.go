package model

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// swagger:model Candidate
type Candidate struct {
	BaseModel
	ExamID          uint       `gorm:"not null;uniqueIndex:idx_candidates_exam_email" json:"exam_id"`
	Name            string     `gorm:"size:100;not null" json:"name"`
	Email           string     `gorm:"size:120;not null;uniqueIndex:idx_candidates_exam_email" json:"email"`
	UniqueLink      string     `gorm:"size:100;uniqueIndex;not null" json:"unique_link"`
	IsTestCompleted bool       `gorm:"not null" json:"is_test_completed"`
	TestStartTime   *time.Time `json:"test_start_time"`
	TestEndTime     *time.Time `json:"test_end_time"`
	InvitationSent  bool       `gorm:"not null" json:"invitation_sent"`
	LastInvitedAt   *time.Time `json:"last_invited_at"`

	ExamTitle string `gorm:"-" json:"exam_title,omitempty"`
}

func (Candidate) TableName() string {
	return "candidates"
}

func (c *Candidate) BeforeCreate(tx *gorm.DB) error {
	if c.UniqueLink == "" {
		c.UniqueLink = GenerateUUID()
	}
	return nil
}

func (c *Candidate) HasStarted() bool {
	return c.TestStartTime != nil
}

func (c Candidate) MarshalJSON() ([]byte, error) {
	type candidate Candidate
	return json.Marshal(struct {
		candidate
		HasStarted   bool `json:"has_started"`
		HasCompleted bool `json:"has_completed"`
	}{
		candidate:    candidate(c),
		HasStarted:   c.TestStartTime != nil,
		HasCompleted: c.IsTestCompleted,
	})
}
