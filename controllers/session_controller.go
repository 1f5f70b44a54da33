package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnkhanh/companion-tutor-backend/services"
	"github.com/vnkhanh/companion-tutor-backend/utils"
)

type SessionController struct {
	sessions *services.SessionService
	grader   *services.QuizGrader
	log      *zap.Logger
}

func NewSessionController(sessions *services.SessionService, grader *services.QuizGrader, log *zap.Logger) *SessionController {
	return &SessionController{sessions: sessions, grader: grader, log: log}
}

type startSessionRequest struct {
	CompanionID string `json:"companion_id" binding:"required"`
}

type linkCallRequest struct {
	CallID string `json:"call_id" binding:"required"`
}

// POST /api/sessions
func (ctl *SessionController) Start(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "companion_id is required")
		return
	}
	companionID, err := uuid.Parse(req.CompanionID)
	if err != nil {
		badRequest(c, "invalid companion_id")
		return
	}
	session, err := ctl.sessions.Start(c.Request.Context(), companionID, currentUserID(c))
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// PATCH /api/sessions/:id/call, client gọi lại nhiều lần với cùng call_id
func (ctl *SessionController) LinkCall(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req linkCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "call_id is required")
		return
	}
	session, err := ctl.sessions.LinkCallID(c.Request.Context(), id, currentUserID(c), req.CallID)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GET /api/sessions?limit=
func (ctl *SessionController) List(c *gin.Context) {
	limit := utils.QueryLimit(c, services.DefaultSessionLimit)
	sessions, err := ctl.sessions.ListByUser(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

// GET /api/sessions/recent?limit=
func (ctl *SessionController) Recent(c *gin.Context) {
	limit := utils.QueryLimit(c, services.DefaultSessionLimit)
	sessions, err := ctl.sessions.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

// GET /api/sessions/transcripts: các phiên đã có call_id
func (ctl *SessionController) Transcripts(c *gin.Context) {
	sessions, err := ctl.sessions.ListWithCallIDs(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

// GET /api/sessions/:id/transcript
func (ctl *SessionController) Transcript(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	transcript, err := ctl.sessions.Transcript(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "transcript": transcript})
}

// GET /api/sessions/:id/quiz-results
func (ctl *SessionController) QuizResults(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	results, err := ctl.grader.ResultsForSession(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": results})
}
