package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnkhanh/companion-tutor-backend/services"
	"github.com/vnkhanh/companion-tutor-backend/utils"
)

type QuizController struct {
	generator *services.QuizGenerator
	grader    *services.QuizGrader
	log       *zap.Logger
}

func NewQuizController(generator *services.QuizGenerator, grader *services.QuizGrader, log *zap.Logger) *QuizController {
	return &QuizController{generator: generator, grader: grader, log: log}
}

// GET /api/generate-quiz?sessionId=
func (ctl *QuizController) Generate(c *gin.Context) {
	raw := c.Query("sessionId")
	if raw == "" {
		badRequest(c, "sessionId is required")
		return
	}
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "invalid sessionId")
		return
	}
	quiz, err := ctl.generator.GenerateFromSession(c.Request.Context(), sessionID, currentUserID(c))
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

// GET /api/quizzes/:id
func (ctl *QuizController) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	quiz, err := ctl.generator.GetQuiz(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

// POST /api/submit-quiz
func (ctl *QuizController) Submit(c *gin.Context) {
	var sub services.QuizSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	result, err := ctl.grader.Submit(c.Request.Context(), currentUserID(c), sub)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// GET /api/quiz-results?limit=
func (ctl *QuizController) ListResults(c *gin.Context) {
	limit := utils.QueryLimit(c, 0)
	results, err := ctl.grader.ListResults(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": results})
}

func (ctl *QuizController) GetResult(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	result, err := ctl.grader.GetResult(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/progress
func (ctl *QuizController) Progress(c *gin.Context) {
	progress, err := ctl.grader.Progress(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
