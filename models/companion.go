package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ContentSourceGeneral = "general"
	ContentSourcePDF     = "pdf"
)

// Companion là cấu hình một gia sư AI do người dùng tạo
type Companion struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Author        string    `gorm:"size:191;not null;index" json:"author"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Subject       string    `gorm:"size:100;not null;index" json:"subject"`
	Topic         string    `gorm:"type:text;not null" json:"topic"`
	Voice         string    `gorm:"size:50;not null" json:"voice"`
	Style         string    `gorm:"size:50;not null" json:"style"`
	Language      string    `gorm:"size:20;not null;default:'en'" json:"language"`
	Duration      int       `gorm:"not null" json:"duration"` // phút
	ContentSource string    `gorm:"size:20;not null;default:'general'" json:"content_source"`

	PDFURL     *string `gorm:"column:pdf_url;type:text" json:"pdf_url,omitempty"`
	PDFName    *string `gorm:"column:pdf_name;size:255" json:"pdf_name,omitempty"`
	PDFContent *string `gorm:"column:pdf_content;type:text" json:"pdf_content,omitempty"`
	HasPDF     bool    `gorm:"column:has_pdf;not null;default:false" json:"has_pdf"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Companion) TableName() string { return "companions" }

func (c *Companion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CompanionSummary bỏ nội dung PDF khi trả danh sách công khai
type CompanionSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Subject  string    `json:"subject"`
	Topic    string    `json:"topic"`
	Duration int       `json:"duration"`
	HasPDF   bool      `json:"has_pdf"`
}

func (c *Companion) Summary() CompanionSummary {
	return CompanionSummary{
		ID:       c.ID,
		Name:     c.Name,
		Subject:  c.Subject,
		Topic:    c.Topic,
		Duration: c.Duration,
		HasPDF:   c.HasPDF,
	}
}
