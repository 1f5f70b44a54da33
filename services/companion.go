package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vnkhanh/companion-tutor-backend/config"
	"github.com/vnkhanh/companion-tutor-backend/models"
	"github.com/vnkhanh/companion-tutor-backend/utils"
)

type CompanionInput struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	Topic    string `json:"topic"`
	Voice    string `json:"voice"`
	Style    string `json:"style"`
	Language string `json:"language"`
	Duration int    `json:"duration"`
}

type CompanionFilter struct {
	Author  string
	Subject string
	Topic   string
	Limit   int
	Page    int
}

type CompanionPage struct {
	Data  []models.Companion `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

type CompanionService struct {
	db           *gorm.DB
	entitlements *EntitlementChecker
	storage      ObjectStorage
	log          *zap.Logger
}

func NewCompanionService(db *gorm.DB, entitlements *EntitlementChecker, storage ObjectStorage, log *zap.Logger) *CompanionService {
	return &CompanionService{db: db, entitlements: entitlements, storage: storage, log: log}
}

func (in *CompanionInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.ToLower(strings.TrimSpace(in.Subject))
	in.Topic = strings.TrimSpace(in.Topic)
	in.Voice = strings.ToLower(strings.TrimSpace(in.Voice))
	in.Style = strings.ToLower(strings.TrimSpace(in.Style))
	in.Language = strings.TrimSpace(in.Language)
	if in.Language == "" {
		in.Language = "en"
	}
}

func (in *CompanionInput) validate(maxMinutes int) error {
	required := []struct{ field, value string }{
		{"name", in.Name},
		{"subject", in.Subject},
		{"topic", in.Topic},
		{"voice", in.Voice},
		{"style", in.Style},
	}
	for _, r := range required {
		if r.value == "" {
			return NewValidationError(r.field, "is required")
		}
	}
	if in.Duration < 1 {
		return NewValidationError("duration", "must be at least 1 minute")
	}
	if maxMinutes != config.Unlimited && in.Duration > maxMinutes {
		return NewValidationError("duration", fmt.Sprintf("must be at most %d minutes on your plan", maxMinutes))
	}
	return nil
}

// Create kiểm tra quyền lợi gói trước, sau đó mới ghi companion với author là người gọi
func (s *CompanionService) Create(ctx context.Context, id Identity, in CompanionInput) (*models.Companion, error) {
	in.normalize()
	limits := s.entitlements.Limits(id)
	if err := in.validate(limits.MaxSessionMinutes); err != nil {
		return nil, err
	}
	if err := s.entitlements.CheckCreate(ctx, id); err != nil {
		return nil, err
	}

	companion := models.Companion{
		Author:        id.UserID,
		Name:          in.Name,
		Subject:       in.Subject,
		Topic:         in.Topic,
		Voice:         in.Voice,
		Style:         in.Style,
		Language:      in.Language,
		Duration:      in.Duration,
		ContentSource: models.ContentSourceGeneral,
	}
	if err := s.db.WithContext(ctx).Create(&companion).Error; err != nil {
		return nil, translateDBError("create companion", err)
	}
	s.log.Info("companion created",
		zap.String("companion_id", companion.ID.String()),
		zap.String("author", id.UserID),
		zap.String("plan", limits.Plan),
	)
	return &companion, nil
}

// Get trả ErrNotFound nếu không có bản ghi, ErrAccessDenied nếu thuộc người khác
func (s *CompanionService) Get(ctx context.Context, companionID uuid.UUID, requester string) (*models.Companion, error) {
	return getCompanion(ctx, s.db, companionID, requester)
}

func getCompanion(ctx context.Context, db *gorm.DB, companionID uuid.UUID, requester string) (*models.Companion, error) {
	var companion models.Companion
	err := db.WithContext(ctx).First(&companion, "id = ?", companionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("companion")
	}
	if err != nil {
		return nil, fmt.Errorf("load companion: %w", err)
	}
	if companion.Author != requester {
		return nil, ErrAccessDenied
	}
	return &companion, nil
}

// List lọc theo author, subject và topic (khớp trong topic hoặc name), không phân biệt hoa thường
func (s *CompanionService) List(ctx context.Context, f CompanionFilter) (*CompanionPage, error) {
	if f.Author == "" {
		return nil, NewValidationError("author", "is required")
	}
	page, limit := utils.NormalizePage(f.Page, f.Limit)

	q := s.db.WithContext(ctx).Model(&models.Companion{}).Where("author = ?", f.Author)
	if subject := strings.TrimSpace(f.Subject); subject != "" {
		q = q.Where("LOWER(subject) LIKE ?", likePattern(subject))
	}
	if topic := strings.TrimSpace(f.Topic); topic != "" {
		pattern := likePattern(topic)
		q = q.Where("(LOWER(topic) LIKE ? OR LOWER(name) LIKE ?)", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count companions: %w", err)
	}

	companions := []models.Companion{}
	if err := q.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&companions).Error; err != nil {
		return nil, fmt.Errorf("list companions: %w", err)
	}

	return &CompanionPage{Data: companions, Total: total, Page: page, Limit: limit}, nil
}

// Delete xác minh chủ sở hữu rồi xoá session_history và companion trong cùng một transaction
func (s *CompanionService) Delete(ctx context.Context, companionID uuid.UUID, requester string) error {
	companion, err := s.Get(ctx, companionID, requester)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("companion_id = ?", companion.ID).Delete(&models.SessionHistory{}).Error; err != nil {
			return fmt.Errorf("delete session history: %w", err)
		}
		if err := tx.Delete(&models.Companion{}, "id = ?", companion.ID).Error; err != nil {
			return fmt.Errorf("delete companion: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if companion.PDFURL != nil && s.storage != nil {
		if _, object, perr := utils.ObjectPathFromURL(*companion.PDFURL); perr == nil {
			if rerr := s.storage.Remove(ctx, object); rerr != nil {
				s.log.Warn("remove companion pdf failed", zap.String("object", object), zap.Error(rerr))
			}
		}
	}
	s.log.Info("companion deleted", zap.String("companion_id", companion.ID.String()), zap.String("author", requester))
	return nil
}

type PDFAttachment struct {
	URL     string
	Name    string
	Content string
}

// AttachPDF gắn tài liệu vào companion và chuyển content_source sang "pdf"
func (s *CompanionService) AttachPDF(ctx context.Context, companionID uuid.UUID, requester string, pdf PDFAttachment) (*models.Companion, error) {
	companion, err := s.Get(ctx, companionID, requester)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"pdf_url":        pdf.URL,
		"pdf_name":       pdf.Name,
		"pdf_content":    pdf.Content,
		"has_pdf":        true,
		"content_source": models.ContentSourcePDF,
	}
	if err := s.db.WithContext(ctx).Model(companion).Updates(updates).Error; err != nil {
		return nil, translateDBError("attach pdf", err)
	}
	return s.Get(ctx, companionID, requester)
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

// translateDBError đổi lỗi ràng buộc của Postgres thành ValidationError
func translateDBError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return NewValidationError(pgErr.ColumnName, "already exists")
		case "23502":
			return NewValidationError(pgErr.ColumnName, "is required")
		case "23514", "22001":
			return NewValidationError(pgErr.ColumnName, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
