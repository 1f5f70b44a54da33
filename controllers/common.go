package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnkhanh/companion-tutor-backend/middleware"
	"github.com/vnkhanh/companion-tutor-backend/services"
)

// respondError là nơi duy nhất đổi lỗi domain sang mã HTTP
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var (
		validation *services.ValidationError
		provider   *services.ProviderError
	)
	switch {
	case errors.As(err, &validation):
		abortJSON(c, http.StatusBadRequest, "invalid_input", validation.Error())
	case errors.Is(err, services.ErrNoReadableText):
		abortJSON(c, http.StatusBadRequest, "no_readable_text", err.Error())
	case errors.Is(err, services.ErrNotFound):
		abortJSON(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrTranscriptUnavailable):
		abortJSON(c, http.StatusNotFound, "transcript_unavailable", err.Error())
	case errors.Is(err, services.ErrAccessDenied):
		abortJSON(c, http.StatusForbidden, "access_denied", err.Error())
	case errors.Is(err, services.ErrLimitReached):
		abortJSON(c, http.StatusForbidden, "limit_reached", err.Error())
	case errors.Is(err, services.ErrCallIDConflict):
		abortJSON(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, services.ErrSessionNotLinked):
		abortJSON(c, http.StatusConflict, "session_not_linked", err.Error())
	case errors.As(err, &provider):
		log.Warn("provider call failed",
			zap.String("provider", provider.Provider),
			zap.Int("status", provider.StatusCode),
			zap.Error(err),
		)
		abortJSON(c, http.StatusInternalServerError, "provider_error", provider.Error())
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		abortJSON(c, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

func badRequest(c *gin.Context, message string) {
	abortJSON(c, http.StatusBadRequest, "invalid_input", message)
}

// currentIdentity đọc thông tin AuthMiddleware đã gắn vào context
func currentIdentity(c *gin.Context) services.Identity {
	return services.Identity{
		UserID:   c.GetString(middleware.ContextUserID),
		Plan:     c.GetString(middleware.ContextPlan),
		Features: c.GetStringSlice(middleware.ContextFeatures),
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
