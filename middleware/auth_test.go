package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnkhanh/companion-tutor-backend/utils"
)

func newAuthRouter(verifier *utils.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(verifier))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  c.GetString(ContextUserID),
			"plan":     c.GetString(ContextPlan),
			"features": c.GetStringSlice(ContextFeatures),
		})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	verifier := utils.NewTokenVerifier("secret", "")
	r := newAuthRouter(verifier)

	good, err := verifier.GenerateToken("user_1", "pro", []string{"10_companion_limit"}, time.Hour)
	require.NoError(t, err)
	expired, err := verifier.GenerateToken("user_1", "pro", nil, -time.Minute)
	require.NoError(t, err)
	forged, err := utils.NewTokenVerifier("other", "").GenerateToken("user_1", "pro", nil, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"valid bearer", "Authorization", "Bearer " + good, http.StatusOK},
		{"lowercase scheme", "Authorization", "bearer " + good, http.StatusOK},
		{"ios header", "X-Auth-Token", "Bearer " + good, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"no scheme", "Authorization", good, http.StatusUnauthorized},
		{"expired", "Authorization", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Authorization", "Bearer " + forged, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":"user_1","plan":"pro","features":["10_companion_limit"]}`, w.Body.String())
			}
		})
	}
}
