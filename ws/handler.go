package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vnkhanh/companion-tutor-backend/models"
	"github.com/vnkhanh/companion-tutor-backend/services"
	"github.com/vnkhanh/companion-tutor-backend/utils"
)

type SessionLookup interface {
	Get(ctx context.Context, sessionID uuid.UUID, userID string) (*models.SessionHistory, error)
}

type Handler struct {
	hub      *Hub
	verifier *utils.TokenVerifier
	sessions SessionLookup
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler; allowedOrigins rỗng thì chấp nhận mọi origin (dev)
func NewHandler(hub *Hub, verifier *utils.TokenVerifier, sessions SessionLookup, allowedOrigins []string, log *zap.Logger) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		hub:      hub,
		verifier: verifier,
		sessions: sessions,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

// HandleSessionWebSocket: GET /ws/sessions/:id?token=
// trình duyệt không gửi được header khi mở websocket nên token nằm trên query
func (h *Handler) HandleSessionWebSocket(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id", "code": "invalid_input"})
		return
	}
	claims, err := h.verifier.Verify(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "unauthorized"})
		return
	}
	userID := claims.UserID()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	session, err := h.sessions.Get(ctx, sessionID, userID)
	cancel()
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "code": "not_found"})
		return
	case errors.Is(err, services.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied", "code": "access_denied"})
		return
	case err != nil:
		h.log.Error("ws session lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	key := session.ID.String()
	client := h.hub.Register(key, userID, conn)
	h.log.Debug("session ws connected", zap.String("session_id", key), zap.String("user_id", userID))

	hello := services.Event{
		Type:      "connected",
		SessionID: key,
		Data:      gin.H{"state": session.State()},
		At:        time.Now().UTC(),
	}
	h.hub.SendTo(client, hello)

	h.hub.readPump(key, conn)
	h.log.Debug("session ws disconnected", zap.String("session_id", key), zap.String("user_id", userID))
}
