package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vnkhanh/companion-tutor-backend/services"
	"github.com/vnkhanh/companion-tutor-backend/testhelpers"
	"github.com/vnkhanh/companion-tutor-backend/utils"
)

func setupServer(t *testing.T) (*httptest.Server, *Hub, *utils.TokenVerifier, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testhelpers.SetupTestDB(t)
	companion := testhelpers.SeedCompanion(t, db, "owner")
	session := testhelpers.SeedSession(t, db, companion, "owner", "")

	hub := NewHub(zap.NewNop())
	verifier := utils.NewTokenVerifier("test-secret", "")
	sessions := services.NewSessionService(db, nil, hub, zap.NewNop())
	h := NewHandler(hub, verifier, sessions, nil, zap.NewNop())

	r := gin.New()
	r.GET("/ws/sessions/:id", h.HandleSessionWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub, verifier, session.ID.String()
}

func wsURL(srv *httptest.Server, sessionID, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + sessionID + "?token=" + token
}

func TestSessionWebSocket_DeliversOwnerEvents(t *testing.T) {
	srv, hub, verifier, sessionID := setupServer(t)
	token, err := verifier.GenerateToken("owner", "basic", nil, time.Hour)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, sessionID, token), nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello services.Event
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello.Type)
	assert.Equal(t, sessionID, hello.SessionID)

	hub.Publish("someone-else", services.Event{Type: services.EventQuizGenerated, SessionID: sessionID})
	hub.Publish("owner", services.Event{Type: services.EventSessionLinked, SessionID: sessionID})

	var got services.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, services.EventSessionLinked, got.Type)
}

func TestSessionWebSocket_Rejects(t *testing.T) {
	srv, _, verifier, sessionID := setupServer(t)
	stranger, err := verifier.GenerateToken("stranger", "basic", nil, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		url    string
		status int
	}{
		{"missing token", wsURL(srv, sessionID, ""), http.StatusUnauthorized},
		{"bad session id", wsURL(srv, "nope", stranger), http.StatusBadRequest},
		{"not owner", wsURL(srv, sessionID, stranger), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(tt.url, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHub_UnregisterDropsEmptySession(t *testing.T) {
	hub := NewHub(zap.NewNop())
	assert.Equal(t, 0, hub.Connections("s1"))
	hub.Publish("u1", services.Event{SessionID: "s1"})
	hub.Unregister("s1", nil)
	assert.Equal(t, 0, hub.Connections("s1"))
}
