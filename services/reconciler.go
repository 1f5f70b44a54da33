package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vnkhanh/companion-tutor-backend/models"
)

type ReconcilerConfig struct {
	Schedule    string
	MaxAttempts int
	BaseDelay   time.Duration
	BatchSize   int
	RunTimeout  time.Duration
	// PageSize là số call mỗi lần gọi ListCalls, MaxPages chặn số trang mỗi lượt
	PageSize int
	MaxPages int
}

type ReconcileStats struct {
	Checked   int `json:"checked"`
	Linked    int `json:"linked"`
	Deferred  int `json:"deferred"`
	Exhausted int `json:"exhausted"`
}

// CallIDReconciler định kỳ tìm call_id cho các phiên mà client chưa báo về được
type CallIDReconciler struct {
	db       *gorm.DB
	sessions *SessionService
	calls    CallLister
	cfg      ReconcilerConfig
	cron     *cron.Cron
	log      *zap.Logger
	now      func() time.Time
}

func NewCallIDReconciler(db *gorm.DB, sessions *SessionService, calls CallLister, cfg ReconcilerConfig, log *zap.Logger) *CallIDReconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	return &CallIDReconciler{
		db:       db,
		sessions: sessions,
		calls:    calls,
		cfg:      cfg,
		cron:     cron.New(),
		log:      log,
		now:      time.Now,
	}
}

func (r *CallIDReconciler) Start() error {
	_, err := r.cron.AddFunc(r.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RunTimeout)
		defer cancel()
		stats, err := r.RunOnce(ctx)
		if err != nil {
			r.log.Warn("call id reconciliation failed", zap.Error(err))
			return
		}
		if stats.Checked > 0 {
			r.log.Info("call id reconciliation finished",
				zap.Int("checked", stats.Checked),
				zap.Int("linked", stats.Linked),
				zap.Int("deferred", stats.Deferred),
				zap.Int("exhausted", stats.Exhausted),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule call id reconciler: %w", err)
	}
	r.cron.Start()
	r.log.Info("call id reconciler started", zap.String("schedule", r.cfg.Schedule))
	return nil
}

// Stop chờ lượt chạy hiện tại (nếu có) kết thúc
func (r *CallIDReconciler) Stop() {
	<-r.cron.Stop().Done()
}

// Backoff = base·2^attempts, attempts là số lần thất bại trước đó
func (r *CallIDReconciler) Backoff(attempts int) time.Duration {
	if attempts > 20 {
		attempts = 20
	}
	return r.cfg.BaseDelay * time.Duration(1<<uint(attempts))
}

func (r *CallIDReconciler) RunOnce(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	now := r.now().UTC()

	var pending []models.SessionHistory
	err := r.db.WithContext(ctx).
		Where("(call_id IS NULL OR call_id = '')").
		Where("reconcile_attempts < ?", r.cfg.MaxAttempts).
		Where("(next_reconcile_at IS NULL OR next_reconcile_at <= ?)", now).
		Order("created_at ASC").
		Limit(r.cfg.BatchSize).
		Find(&pending).Error
	if err != nil {
		return stats, fmt.Errorf("load pending sessions: %w", err)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	since := pending[0].CreatedAt.Add(-time.Minute)
	bySession, err := r.matchCalls(ctx, pending, since)
	if err != nil {
		callReconciliations.WithLabelValues("provider_error").Inc()
		return stats, err
	}

	for i := range pending {
		session := &pending[i]
		stats.Checked++

		if callID, ok := bySession[session.ID.String()]; ok {
			if err := r.sessions.link(ctx, session, callID); err != nil {
				r.log.Warn("reconciler could not link call",
					zap.String("session_id", session.ID.String()),
					zap.String("call_id", callID),
					zap.Error(err),
				)
				continue
			}
			stats.Linked++
			callReconciliations.WithLabelValues("linked").Inc()
			continue
		}

		attempts := session.ReconcileAttempts + 1
		next := now.Add(r.Backoff(session.ReconcileAttempts))
		err := r.db.WithContext(ctx).Model(&models.SessionHistory{}).
			Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"reconcile_attempts": attempts,
				"next_reconcile_at":  next,
			}).Error
		if err != nil {
			return stats, fmt.Errorf("defer session %s: %w", session.ID, err)
		}
		if attempts >= r.cfg.MaxAttempts {
			stats.Exhausted++
			callReconciliations.WithLabelValues("exhausted").Inc()
			r.log.Info("session gave up waiting for call id", zap.String("session_id", session.ID.String()))
			continue
		}
		stats.Deferred++
		callReconciliations.WithLabelValues("deferred").Inc()
	}
	return stats, nil
}

// matchCalls lật từng trang call (mới trước) cho tới khi phủ hết khoảng từ since,
// hoặc đã tìm đủ call cho mọi phiên đang chờ
func (r *CallIDReconciler) matchCalls(ctx context.Context, pending []models.SessionHistory, since time.Time) (map[string]string, error) {
	wanted := make(map[string]struct{}, len(pending))
	for _, s := range pending {
		wanted[s.ID.String()] = struct{}{}
	}
	bySession := make(map[string]string, len(pending))

	var before time.Time
	for page := 0; page < r.cfg.MaxPages; page++ {
		calls, err := r.calls.ListCalls(ctx, since, before, r.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		var oldest time.Time
		for _, call := range calls {
			if oldest.IsZero() || (!call.CreatedAt.IsZero() && call.CreatedAt.Before(oldest)) {
				oldest = call.CreatedAt
			}
			sid := call.SessionID()
			if sid == "" || call.ID == "" {
				continue
			}
			if _, ok := wanted[sid]; ok {
				bySession[sid] = call.ID
			}
		}
		if len(calls) < r.cfg.PageSize || len(bySession) == len(wanted) {
			return bySession, nil
		}
		// trang kế phải lùi về quá khứ, nếu không sẽ lặp lại cùng một trang
		if oldest.IsZero() || !oldest.After(since) || (!before.IsZero() && !oldest.Before(before)) {
			return bySession, nil
		}
		before = oldest
	}
	r.log.Warn("call id reconciliation hit page limit",
		zap.Int("max_pages", r.cfg.MaxPages),
		zap.Time("since", since),
		zap.Time("before", before),
	)
	return bySession, nil
}
