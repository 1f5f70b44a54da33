package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vnkhanh/companion-tutor-backend/models"
)

type QuizSubmission struct {
	QuizID         string              `json:"quizId"`
	Answers        []models.QuizAnswer `json:"answers"`
	TotalTimeSpent float64             `json:"totalTimeSpent"`
	StartedAt      *time.Time          `json:"startedAt"`
	CompletedAt    *time.Time          `json:"completedAt"`
}

type QuizGrader struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewQuizGrader(db *gorm.DB, log *zap.Logger) *QuizGrader {
	return &QuizGrader{db: db, log: log, now: time.Now}
}

func (sub *QuizSubmission) validate() (uuid.UUID, error) {
	if strings.TrimSpace(sub.QuizID) == "" {
		return uuid.Nil, NewValidationError("quizId", "missing quiz ID")
	}
	quizID, err := uuid.Parse(sub.QuizID)
	if err != nil {
		return uuid.Nil, NewValidationError("quizId", "invalid quiz ID")
	}
	if len(sub.Answers) == 0 {
		return uuid.Nil, NewValidationError("answers", "no answers provided")
	}
	if sub.CompletedAt == nil || sub.CompletedAt.IsZero() {
		return uuid.Nil, NewValidationError("completedAt", "missing completion time")
	}
	if sub.TotalTimeSpent < 0 {
		return uuid.Nil, NewValidationError("totalTimeSpent", "must not be negative")
	}
	return quizID, nil
}

// Grade chấm lại từng câu dựa trên quiz đã lưu; cờ isCorrect của client chỉ dùng để đếm sai lệch
func Grade(quiz *models.Quiz, answers []models.QuizAnswer) ([]models.QuizAnswer, int, int, error) {
	seen := make(map[int]bool, len(answers))
	graded := make([]models.QuizAnswer, 0, len(answers))
	score, mismatches := 0, 0

	for _, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(quiz.Questions) {
			return nil, 0, 0, NewValidationError("answers", fmt.Sprintf("question index %d is out of range", a.QuestionIndex))
		}
		if seen[a.QuestionIndex] {
			return nil, 0, 0, NewValidationError("answers", fmt.Sprintf("question index %d answered twice", a.QuestionIndex))
		}
		seen[a.QuestionIndex] = true

		q := quiz.Questions[a.QuestionIndex]
		correct := ""
		if q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options) {
			correct = q.Options[q.CorrectAnswer]
		}
		selected := strings.TrimSpace(a.SelectedAnswer)
		isCorrect := selected != "" && selected == strings.TrimSpace(correct)
		if a.IsCorrect != isCorrect {
			mismatches++
		}
		if isCorrect {
			score++
		}

		graded = append(graded, models.QuizAnswer{
			QuestionIndex:  a.QuestionIndex,
			Question:       q.Question,
			SelectedAnswer: a.SelectedAnswer,
			CorrectAnswer:  correct,
			IsCorrect:      isCorrect,
			Explanation:    q.Explanation,
			TimeSpent:      a.TimeSpent,
		})
	}
	return graded, score, mismatches, nil
}

func Percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(100 * float64(score) / float64(total))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Submit xác minh quiz thuộc người dùng, chấm điểm phía server và lưu một QuizResult
func (g *QuizGrader) Submit(ctx context.Context, userID string, sub QuizSubmission) (*models.QuizResult, error) {
	quizID, err := sub.validate()
	if err != nil {
		return nil, err
	}
	quiz, err := loadQuiz(ctx, g.db, quizID, userID)
	if err != nil {
		return nil, err
	}

	answers, score, mismatches, err := Grade(quiz, sub.Answers)
	if err != nil {
		return nil, err
	}

	result := models.QuizResult{
		UserID:         userID,
		QuizID:         quiz.ID,
		SessionID:      quiz.SessionID,
		CompanionID:    quiz.CompanionID,
		Answers:        answers,
		Score:          score,
		TotalQuestions: len(answers),
		Percentage:     Percentage(score, len(answers)),
		TimeTaken:      int(math.Round(sub.TotalTimeSpent)),
		FlagMismatches: mismatches,
		StartedAt:      sub.StartedAt,
		CompletedAt:    sub.CompletedAt.UTC(),
	}
	if err := g.db.WithContext(ctx).Create(&result).Error; err != nil {
		return nil, fmt.Errorf("insert quiz result: %w", err)
	}

	if mismatches > 0 {
		quizFlagMismatches.Add(float64(mismatches))
		g.log.Warn("client correctness flags disagree with stored quiz",
			zap.String("user_id", userID),
			zap.String("quiz_id", quiz.ID.String()),
			zap.Int("mismatches", mismatches),
		)
	}
	g.log.Info("quiz submitted",
		zap.String("result_id", result.ID.String()),
		zap.Int("score", score),
		zap.Int("total", len(answers)),
	)
	return &result, nil
}

func (g *QuizGrader) ListResults(ctx context.Context, userID string, limit int) ([]models.QuizResult, error) {
	results := []models.QuizResult{}
	q := g.db.WithContext(ctx).
		Preload("Quiz").
		Preload("Companion").
		Preload("Session").
		Where("user_id = ?", userID).
		Order("completed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("list quiz results: %w", err)
	}
	return results, nil
}

func (g *QuizGrader) GetResult(ctx context.Context, resultID uuid.UUID, userID string) (*models.QuizResult, error) {
	var result models.QuizResult
	err := g.db.WithContext(ctx).
		Preload("Quiz").
		Preload("Companion").
		First(&result, "id = ?", resultID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("quiz result")
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz result: %w", err)
	}
	if result.UserID != userID {
		return nil, ErrAccessDenied
	}
	return &result, nil
}

func (g *QuizGrader) ResultsForSession(ctx context.Context, sessionID uuid.UUID, userID string) ([]models.QuizResult, error) {
	results := []models.QuizResult{}
	err := g.db.WithContext(ctx).
		Preload("Quiz").
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Order("completed_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("list session quiz results: %w", err)
	}
	return results, nil
}

func (g *QuizGrader) Progress(ctx context.Context, userID string) (*LearningProgress, error) {
	var results []models.QuizResult
	err := g.db.WithContext(ctx).
		Preload("Companion").
		Preload("Quiz").
		Where("user_id = ?", userID).
		Order("completed_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("load quiz results: %w", err)
	}
	progress := ComputeProgress(results, g.now())
	return &progress, nil
}
