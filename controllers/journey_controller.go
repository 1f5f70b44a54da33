package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnkhanh/companion-tutor-backend/models"
	"github.com/vnkhanh/companion-tutor-backend/services"
)

type JourneyController struct {
	companions *services.CompanionService
	sessions   *services.SessionService
	grader     *services.QuizGrader
	log        *zap.Logger
}

func NewJourneyController(companions *services.CompanionService, sessions *services.SessionService, grader *services.QuizGrader, log *zap.Logger) *JourneyController {
	return &JourneyController{companions: companions, sessions: sessions, grader: grader, log: log}
}

// GET /api/journey: companions, phiên gần đây và tiến độ được tải song song
func (ctl *JourneyController) Get(c *gin.Context) {
	userID := currentUserID(c)
	g, ctx := errgroup.WithContext(c.Request.Context())

	var (
		companions *services.CompanionPage
		sessions   []models.SessionHistory
		progress   *services.LearningProgress
	)
	g.Go(func() error {
		var err error
		companions, err = ctl.companions.List(ctx, services.CompanionFilter{Author: userID})
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = ctl.sessions.ListByUser(ctx, userID, services.DefaultSessionLimit)
		return err
	})
	g.Go(func() error {
		var err error
		progress, err = ctl.grader.Progress(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		respondError(c, ctl.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"companions": companions.Data,
		"sessions":   sessions,
		"progress":   progress,
	})
}
