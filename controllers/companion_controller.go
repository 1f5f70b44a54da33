package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnkhanh/companion-tutor-backend/services"
	"github.com/vnkhanh/companion-tutor-backend/utils"
)

type CompanionController struct {
	companions   *services.CompanionService
	entitlements *services.EntitlementChecker
	sessions     *services.SessionService
	log          *zap.Logger
}

func NewCompanionController(companions *services.CompanionService, entitlements *services.EntitlementChecker, sessions *services.SessionService, log *zap.Logger) *CompanionController {
	return &CompanionController{companions: companions, entitlements: entitlements, sessions: sessions, log: log}
}

// POST /api/companions
func (ctl *CompanionController) Create(c *gin.Context) {
	var input services.CompanionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	companion, err := ctl.companions.Create(c.Request.Context(), currentIdentity(c), input)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusCreated, companion)
}

// GET /api/companions?subject=&topic=&page=&limit=
func (ctl *CompanionController) List(c *gin.Context) {
	page, limit := utils.ParsePagination(c)
	result, err := ctl.companions.List(c.Request.Context(), services.CompanionFilter{
		Author:  currentUserID(c),
		Subject: c.Query("subject"),
		Topic:   c.Query("topic"),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ctl *CompanionController) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	companion, err := ctl.companions.Get(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, companion)
}

func (ctl *CompanionController) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := ctl.companions.Delete(c.Request.Context(), id, currentUserID(c)); err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/companions/permissions
func (ctl *CompanionController) Permissions(c *gin.Context) {
	perms, err := ctl.entitlements.Permissions(c.Request.Context(), currentIdentity(c))
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, perms)
}

// GET /api/companions/:id/assistant?sessionId=
func (ctl *CompanionController) Assistant(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	userID := currentUserID(c)

	companion, err := ctl.companions.Get(ctx, id, userID)
	if err != nil {
		respondError(c, ctl.log, err)
		return
	}

	sessionID := ""
	if raw := c.Query("sessionId"); raw != "" {
		sid, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid sessionId")
			return
		}
		session, err := ctl.sessions.Get(ctx, sid, userID)
		if err != nil {
			respondError(c, ctl.log, err)
			return
		}
		if session.CompanionID != companion.ID {
			badRequest(c, "session belongs to another companion")
			return
		}
		sessionID = session.ID.String()
	}

	c.JSON(http.StatusOK, services.BuildAssistantConfig(companion, sessionID))
}
