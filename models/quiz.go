package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuizQuestion là một câu trắc nghiệm 4 lựa chọn, CorrectAnswer là chỉ số 0-3
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	Concept       string   `json:"concept,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
}

type Quiz struct {
	ID          uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   uuid.UUID                         `gorm:"type:uuid;not null;index" json:"session_id"`
	CallID      string                            `gorm:"size:191;not null" json:"call_id"`
	CompanionID uuid.UUID                         `gorm:"type:uuid;not null;index" json:"companion_id"`
	UserID      string                            `gorm:"size:191;not null;index" json:"user_id"`
	Subject     string                            `gorm:"size:100;not null;default:'general'" json:"subject"`
	QuizTitle   string                            `gorm:"size:255;not null" json:"quiz_title"`
	Questions   datatypes.JSONSlice[QuizQuestion] `gorm:"not null" json:"questions"`
	CreatedAt   time.Time                         `gorm:"autoCreateTime" json:"created_at"`
}

func (Quiz) TableName() string { return "quizzes" }

func (q *Quiz) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
