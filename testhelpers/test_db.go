package testhelpers

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/companion-tutor-backend/config"
	"github.com/vnkhanh/companion-tutor-backend/models"
)

// SetupTestDB tạo một SQLite in-memory riêng cho mỗi test, đã migrate đủ bảng
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// SeedCompanion ghi một companion hợp lệ; mutate để chỉnh trường trước khi lưu
func SeedCompanion(t *testing.T, db *gorm.DB, author string, mutate ...func(*models.Companion)) *models.Companion {
	t.Helper()
	c := &models.Companion{
		Author:        author,
		Name:          "Algebra Tutor",
		Subject:       "maths",
		Topic:         "Linear Equations",
		Voice:         "female",
		Style:         "casual",
		Language:      "en",
		Duration:      15,
		ContentSource: models.ContentSourceGeneral,
	}
	for _, m := range mutate {
		m(c)
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed companion: %v", err)
	}
	return c
}

func SeedSession(t *testing.T, db *gorm.DB, companion *models.Companion, userID string, callID string) *models.SessionHistory {
	t.Helper()
	s := &models.SessionHistory{CompanionID: companion.ID, UserID: userID}
	if callID != "" {
		s.CallID = &callID
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return s
}

// SampleQuestions trả n câu hỏi, đáp án đúng của câu i là Options[i%4]
func SampleQuestions(n int) []models.QuizQuestion {
	out := make([]models.QuizQuestion, n)
	for i := range out {
		out[i] = models.QuizQuestion{
			Question:      fmt.Sprintf("Question %d?", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: i % 4,
			Explanation:   fmt.Sprintf("Because %d", i+1),
			Concept:       "equations",
			Difficulty:    "easy",
		}
	}
	return out
}

func SeedQuiz(t *testing.T, db *gorm.DB, session *models.SessionHistory, questions []models.QuizQuestion) *models.Quiz {
	t.Helper()
	callID := ""
	if session.CallID != nil {
		callID = *session.CallID
	}
	q := &models.Quiz{
		SessionID:   session.ID,
		CallID:      callID,
		CompanionID: session.CompanionID,
		UserID:      session.UserID,
		Subject:     "maths",
		QuizTitle:   "Quiz on Algebra Tutor",
		Questions:   questions,
	}
	if err := db.Create(q).Error; err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	return q
}
