package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vnkhanh/companion-tutor-backend/models"
)

const quizPromptTemplate = `
Analyze this educational transcript and create an engaging quiz. Follow these rules carefully:

GUIDELINES:
1. CONTEXT:
- Focus on the main educational content, not casual conversation
- Difficulty: Progressive (basic → advanced concepts)
- Style: Conceptual understanding > rote memorization

2. QUESTIONS:
- Generate 10-15 questions
- For each question:
  • Focus on 1 key concept
  • Phrase as application-based scenarios when possible
  • Include 1 distractor (plausible wrong answer)
  • Options should be mutually exclusive
  • Correct answer index (0-3) must be accurate

3. FORMAT:
- Return ONLY this JSON structure:
[
  {
    "question": "Application-based question?",
    "options": ["Option1", "Option2", "Option3", "Option4"],
    "correctAnswer": 1,
    "explanation": "Concise rationale (1-2 sentences)",
    "concept": "Underlying topic",
    "difficulty": "easy/medium/hard"
  }
]

4. QUALITY CHECKS:
- No duplicate questions
- No trivial/obvious questions
- Explanations should reference transcript content

TRANSCRIPT:
%s
`

func BuildQuizPrompt(transcript string) string {
	return fmt.Sprintf(quizPromptTemplate, transcript)
}

type generatedQuestion struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"len=4,dive,required"`
	CorrectAnswer *int     `json:"correctAnswer" validate:"required,min=0,max=3"`
	Explanation   string   `json:"explanation"`
	Concept       string   `json:"concept"`
	Difficulty    string   `json:"difficulty"`
}

var questionValidator = validator.New()

// StripCodeFences bỏ ```json ... ``` mà model hay bọc quanh JSON
func StripCodeFences(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```JSON", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// ParseQuizQuestions kiểm tra cấu trúc đầu ra của LLM; mọi lỗi đều kèm raw response
func ParseQuizQuestions(raw string) ([]models.QuizQuestion, error) {
	fail := func(reason string) error {
		return &ProviderError{Provider: "gemini", Message: "quiz generation failed: " + reason, Body: raw}
	}

	cleaned := StripCodeFences(raw)
	if !strings.HasPrefix(cleaned, "[") || !strings.HasSuffix(cleaned, "]") {
		return nil, fail("invalid JSON format, expected array")
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, fail("expected array of questions: " + err.Error())
	}
	if len(items) == 0 {
		return nil, fail("no questions returned")
	}

	questions := make([]models.QuizQuestion, 0, len(items))
	for i, item := range items {
		var q generatedQuestion
		if err := json.Unmarshal(item, &q); err != nil {
			return nil, fail(fmt.Sprintf("invalid question structure at index %d", i))
		}
		if err := questionValidator.Struct(q); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return nil, fail(fmt.Sprintf("question %d: field %s failed %q", i, verrs[0].Field(), verrs[0].Tag()))
			}
			return nil, fail(fmt.Sprintf("invalid question structure at index %d", i))
		}
		questions = append(questions, models.QuizQuestion{
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: *q.CorrectAnswer,
			Explanation:   q.Explanation,
			Concept:       q.Concept,
			Difficulty:    q.Difficulty,
		})
	}
	return questions, nil
}

// QuizView là quiz kèm tên companion để client hiển thị
type QuizView struct {
	models.Quiz
	CompanionName string `json:"companion_name,omitempty"`
}

type QuizGenerator struct {
	db          *gorm.DB
	sessions    *SessionService
	transcripts TranscriptFetcher
	llm         TextGenerator
	events      EventPublisher
	log         *zap.Logger
}

func NewQuizGenerator(db *gorm.DB, sessions *SessionService, transcripts TranscriptFetcher, llm TextGenerator, events EventPublisher, log *zap.Logger) *QuizGenerator {
	return &QuizGenerator{
		db:          db,
		sessions:    sessions,
		transcripts: transcripts,
		llm:         llm,
		events:      publisherOrNop(events),
		log:         log,
	}
}

// GenerateFromSession gọi LLM đúng một lần; mỗi lần gọi tạo một quiz mới
func (g *QuizGenerator) GenerateFromSession(ctx context.Context, sessionID uuid.UUID, userID string) (*QuizView, error) {
	session, err := g.sessions.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.State() != models.SessionLinked {
		return nil, ErrSessionNotLinked
	}
	callID := *session.CallID

	transcript, err := g.transcripts.FetchTranscript(ctx, callID)
	if err != nil {
		quizGenerations.WithLabelValues("transcript_error").Inc()
		return nil, err
	}

	raw, err := g.llm.GenerateText(ctx, BuildQuizPrompt(transcript))
	if err != nil {
		quizGenerations.WithLabelValues("provider_error").Inc()
		return nil, err
	}
	questions, err := ParseQuizQuestions(raw)
	if err != nil {
		quizGenerations.WithLabelValues("invalid_output").Inc()
		g.log.Error("quiz output rejected",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
			zap.String("raw_response", raw),
		)
		return nil, err
	}

	subject, name := "general", ""
	if c := session.Companion; c != nil {
		name = c.Name
		if c.Subject != "" {
			subject = c.Subject
		}
	}
	title := name
	if title == "" {
		title = "Session"
	}

	quiz := models.Quiz{
		SessionID:   session.ID,
		CallID:      callID,
		CompanionID: session.CompanionID,
		UserID:      userID,
		Subject:     subject,
		QuizTitle:   "Quiz on " + title,
		Questions:   questions,
	}
	if err := g.db.WithContext(ctx).Create(&quiz).Error; err != nil {
		quizGenerations.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("store quiz: %w", err)
	}
	quizGenerations.WithLabelValues("ok").Inc()

	g.events.Publish(userID, Event{
		Type:      EventQuizGenerated,
		SessionID: session.ID.String(),
		Data:      map[string]interface{}{"quiz_id": quiz.ID.String(), "questions": len(questions)},
		At:        time.Now().UTC(),
	})
	g.log.Info("quiz generated",
		zap.String("quiz_id", quiz.ID.String()),
		zap.String("session_id", session.ID.String()),
		zap.Int("questions", len(questions)),
	)
	return &QuizView{Quiz: quiz, CompanionName: name}, nil
}

func (g *QuizGenerator) GetQuiz(ctx context.Context, quizID uuid.UUID, userID string) (*QuizView, error) {
	quiz, err := loadQuiz(ctx, g.db, quizID, userID)
	if err != nil {
		return nil, err
	}
	view := &QuizView{Quiz: *quiz}
	var companion models.Companion
	err = g.db.WithContext(ctx).Select("name").First(&companion, "id = ?", quiz.CompanionID).Error
	switch {
	case err == nil:
		view.CompanionName = companion.Name
	case !errors.Is(err, gorm.ErrRecordNotFound):
		// companion đã xoá thì bỏ qua, lỗi khác chỉ ghi log vì quiz vẫn dùng được
		g.log.Warn("load quiz companion name failed",
			zap.String("quiz_id", quiz.ID.String()),
			zap.String("companion_id", quiz.CompanionID.String()),
			zap.Error(err),
		)
	}
	return view, nil
}

func loadQuiz(ctx context.Context, db *gorm.DB, quizID uuid.UUID, userID string) (*models.Quiz, error) {
	var quiz models.Quiz
	err := db.WithContext(ctx).First(&quiz, "id = ?", quizID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("quiz")
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	if quiz.UserID != userID {
		return nil, ErrAccessDenied
	}
	return &quiz, nil
}
