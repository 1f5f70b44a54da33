package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuizAnswer struct {
	QuestionIndex  int     `json:"questionIndex"`
	Question       string  `json:"question"`
	SelectedAnswer string  `json:"selectedAnswer"`
	CorrectAnswer  string  `json:"correctAnswer"`
	IsCorrect      bool    `json:"isCorrect"`
	Explanation    string  `json:"explanation,omitempty"`
	TimeSpent      float64 `json:"timeSpent,omitempty"`
}

type QuizResult struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string    `gorm:"size:191;not null;index" json:"user_id"`
	QuizID      uuid.UUID `gorm:"type:uuid;not null;index" json:"quiz_id"`
	SessionID   uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	CompanionID uuid.UUID `gorm:"type:uuid;not null;index" json:"companion_id"`

	Answers        datatypes.JSONSlice[QuizAnswer] `gorm:"not null" json:"answers"`
	Score          int                             `gorm:"not null" json:"score"`
	TotalQuestions int                             `gorm:"not null" json:"total_questions"`
	Percentage     float64                         `gorm:"type:numeric(5,2);not null" json:"percentage"`
	TimeTaken      int                             `gorm:"not null;default:0" json:"time_taken"` // ms, do client báo
	FlagMismatches int                             `gorm:"not null;default:0" json:"flag_mismatches"`
	StartedAt      *time.Time                      `json:"started_at,omitempty"`
	CompletedAt    time.Time                       `gorm:"not null;index" json:"completed_at"`
	CreatedAt      time.Time                       `gorm:"autoCreateTime" json:"created_at"`

	Quiz      *Quiz           `gorm:"foreignKey:QuizID" json:"quiz,omitempty"`
	Companion *Companion      `gorm:"foreignKey:CompanionID" json:"companion,omitempty"`
	Session   *SessionHistory `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}

func (QuizResult) TableName() string { return "quiz_results" }

func (r *QuizResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
