package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vnkhanh/companion-tutor-backend/config"
	"github.com/vnkhanh/companion-tutor-backend/models"
)

// Identity là người dùng đã xác thực cùng gói và feature flag lấy từ token
type Identity struct {
	UserID   string
	Plan     string
	Features []string
}

type Permissions struct {
	CanCreateCompanion       bool              `json:"can_create_companion"`
	CanCreateActiveCompanion bool              `json:"can_create_active_companion"`
	Limits                   config.PlanLimits `json:"limits"`
	Companions               int64             `json:"companions"`
	CompanionsThisMonth      int64             `json:"companions_this_month"`
}

type EntitlementChecker struct {
	db    *gorm.DB
	plans *config.PlanTable
	now   func() time.Time
}

func NewEntitlementChecker(db *gorm.DB, plans *config.PlanTable) *EntitlementChecker {
	return &EntitlementChecker{db: db, plans: plans, now: time.Now}
}

// Limits là điểm duy nhất quy đổi gói + feature thành giới hạn
func (e *EntitlementChecker) Limits(id Identity) config.PlanLimits {
	return e.plans.Resolve(id.Plan, id.Features)
}

// CanCreateCompanion so sánh tổng số companion đã tạo với giới hạn trọn đời của gói
func (e *EntitlementChecker) CanCreateCompanion(ctx context.Context, id Identity) (bool, error) {
	limits := e.Limits(id)
	if limits.MaxCompanions == config.Unlimited {
		return true, nil
	}
	count, err := e.countCompanions(ctx, id.UserID, time.Time{})
	if err != nil {
		return false, err
	}
	return config.Allows(limits.MaxCompanions, count), nil
}

// CanCreateActiveCompanion chỉ đếm companion tạo từ đầu tháng (UTC)
func (e *EntitlementChecker) CanCreateActiveCompanion(ctx context.Context, id Identity) (bool, error) {
	limits := e.Limits(id)
	if limits.MonthlyCompanions == config.Unlimited {
		return true, nil
	}
	count, err := e.countCompanions(ctx, id.UserID, StartOfMonth(e.now()))
	if err != nil {
		return false, err
	}
	return config.Allows(limits.MonthlyCompanions, count), nil
}

// CheckCreate trả về ErrLimitReached nếu một trong hai giới hạn đã chạm
func (e *EntitlementChecker) CheckCreate(ctx context.Context, id Identity) error {
	ok, err := e.CanCreateCompanion(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: companion limit for plan %q", ErrLimitReached, e.Limits(id).Plan)
	}
	ok, err = e.CanCreateActiveCompanion(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: monthly companion limit for plan %q", ErrLimitReached, e.Limits(id).Plan)
	}
	return nil
}

func (e *EntitlementChecker) Permissions(ctx context.Context, id Identity) (*Permissions, error) {
	limits := e.Limits(id)
	total, err := e.countCompanions(ctx, id.UserID, time.Time{})
	if err != nil {
		return nil, err
	}
	monthly, err := e.countCompanions(ctx, id.UserID, StartOfMonth(e.now()))
	if err != nil {
		return nil, err
	}
	return &Permissions{
		CanCreateCompanion:       config.Allows(limits.MaxCompanions, total),
		CanCreateActiveCompanion: config.Allows(limits.MonthlyCompanions, monthly),
		Limits:                   limits,
		Companions:               total,
		CompanionsThisMonth:      monthly,
	}, nil
}

func (e *EntitlementChecker) countCompanions(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	q := e.db.WithContext(ctx).Model(&models.Companion{}).Where("author = ?", userID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count companions: %w", err)
	}
	return count, nil
}

func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
