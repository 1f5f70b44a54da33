package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionState string

const (
	SessionCreated SessionState = "created"
	SessionLinked  SessionState = "linked"
)

type SessionHistory struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CompanionID uuid.UUID  `gorm:"type:uuid;not null;index" json:"companion_id"`
	Companion   *Companion `gorm:"foreignKey:CompanionID" json:"companion,omitempty"`
	UserID      string     `gorm:"size:191;not null;index" json:"user_id"`
	CallID      *string    `gorm:"size:191;index" json:"call_id"`

	// đối soát call_id với nhà cung cấp voice
	ReconcileAttempts int        `gorm:"not null;default:0" json:"-"`
	NextReconcileAt   *time.Time `gorm:"index" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SessionHistory) TableName() string { return "session_history" }

func (s *SessionHistory) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *SessionHistory) State() SessionState {
	if s.CallID == nil || *s.CallID == "" {
		return SessionCreated
	}
	return SessionLinked
}
