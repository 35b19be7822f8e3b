package model

// swagger:model User
type User struct {
	BaseModel
	Email        string `gorm:"size:120;uniqueIndex;not null" json:"email"`
	Username     string `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"size:128;not null" json:"-"`
	IsAdmin      bool   `gorm:"not null" json:"is_admin"`

	Exams []Exam `gorm:"foreignKey:CreatorID" json:"-"`
}

func (User) TableName() string {
	return "users"
}
