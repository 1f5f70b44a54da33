package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vnkhanh/companion-tutor-backend/models"
)

const DefaultSessionLimit = 10

type RecentSession struct {
	ID        uuid.UUID               `json:"id"`
	CreatedAt time.Time               `json:"created_at"`
	Companion models.CompanionSummary `json:"companion"`
}

type SessionService struct {
	db          *gorm.DB
	transcripts TranscriptFetcher
	events      EventPublisher
	log         *zap.Logger
}

func NewSessionService(db *gorm.DB, transcripts TranscriptFetcher, events EventPublisher, log *zap.Logger) *SessionService {
	return &SessionService{db: db, transcripts: transcripts, events: publisherOrNop(events), log: log}
}

// Start ghi một phiên mới chưa có call_id cho companion của chính người dùng
func (s *SessionService) Start(ctx context.Context, companionID uuid.UUID, userID string) (*models.SessionHistory, error) {
	companion, err := getCompanion(ctx, s.db, companionID, userID)
	if err != nil {
		return nil, err
	}
	session := models.SessionHistory{
		CompanionID: companion.ID,
		UserID:      userID,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Companion = companion
	s.log.Info("session started",
		zap.String("session_id", session.ID.String()),
		zap.String("companion_id", companion.ID.String()),
		zap.String("user_id", userID),
	)
	return &session, nil
}

// Get tải phiên kèm companion, kiểm tra chủ sở hữu
func (s *SessionService) Get(ctx context.Context, sessionID uuid.UUID, userID string) (*models.SessionHistory, error) {
	var session models.SessionHistory
	err := s.db.WithContext(ctx).Preload("Companion").First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("session")
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.UserID != userID {
		return nil, ErrAccessDenied
	}
	return &session, nil
}

// LinkCallID gán call_id đúng một lần; gửi lại cùng call_id là no-op
func (s *SessionService) LinkCallID(ctx context.Context, sessionID uuid.UUID, userID, callID string) (*models.SessionHistory, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return nil, NewValidationError("call_id", "is required")
	}
	session, err := s.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.link(ctx, session, callID); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) link(ctx context.Context, session *models.SessionHistory, callID string) error {
	if session.State() == models.SessionLinked {
		if *session.CallID == callID {
			return nil
		}
		return ErrCallIDConflict
	}

	res := s.db.WithContext(ctx).Model(&models.SessionHistory{}).
		Where("id = ? AND (call_id IS NULL OR call_id = '')", session.ID).
		Updates(map[string]interface{}{"call_id": callID, "next_reconcile_at": nil})
	if res.Error != nil {
		return fmt.Errorf("link call id: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// một request khác đã gán trước, đọc lại để so sánh
		var current models.SessionHistory
		if err := s.db.WithContext(ctx).First(&current, "id = ?", session.ID).Error; err != nil {
			return fmt.Errorf("reload session: %w", err)
		}
		session.CallID = current.CallID
		if current.CallID != nil && *current.CallID == callID {
			return nil
		}
		return ErrCallIDConflict
	}

	session.CallID = &callID
	session.NextReconcileAt = nil
	s.events.Publish(session.UserID, Event{
		Type:      EventSessionLinked,
		SessionID: session.ID.String(),
		Data:      map[string]string{"call_id": callID},
		At:        time.Now().UTC(),
	})
	s.log.Info("session linked", zap.String("session_id", session.ID.String()), zap.String("call_id", callID))
	return nil
}

func (s *SessionService) ListByUser(ctx context.Context, userID string, limit int) ([]models.SessionHistory, error) {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	sessions := []models.SessionHistory{}
	err := s.db.WithContext(ctx).
		Preload("Companion").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Recent trả các phiên mới nhất của mọi người dùng, chỉ kèm tóm tắt companion
func (s *SessionService) Recent(ctx context.Context, limit int) ([]RecentSession, error) {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	var sessions []models.SessionHistory
	err := s.db.WithContext(ctx).
		Preload("Companion").
		Order("created_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}

	out := make([]RecentSession, 0, len(sessions))
	for _, sess := range sessions {
		if sess.Companion == nil {
			continue
		}
		out = append(out, RecentSession{ID: sess.ID, CreatedAt: sess.CreatedAt, Companion: sess.Companion.Summary()})
	}
	return out, nil
}

// ListWithCallIDs chỉ trả các phiên đã có call_id, tức là đủ điều kiện lấy transcript
func (s *SessionService) ListWithCallIDs(ctx context.Context, userID string) ([]models.SessionHistory, error) {
	sessions := []models.SessionHistory{}
	err := s.db.WithContext(ctx).
		Preload("Companion").
		Where("user_id = ? AND call_id IS NOT NULL AND call_id <> ''", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list linked sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionService) Transcript(ctx context.Context, sessionID uuid.UUID, userID string) (string, error) {
	session, err := s.Get(ctx, sessionID, userID)
	if err != nil {
		return "", err
	}
	if session.State() != models.SessionLinked {
		return "", ErrSessionNotLinked
	}
	return s.transcripts.FetchTranscript(ctx, *session.CallID)
}
