package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vnkhanh/companion-tutor-backend/config"
	"github.com/vnkhanh/companion-tutor-backend/middleware"
	"github.com/vnkhanh/companion-tutor-backend/services"
	"github.com/vnkhanh/companion-tutor-backend/testhelpers"
	"github.com/vnkhanh/companion-tutor-backend/utils"
)

type stubStorage struct{}

func (stubStorage) Upload(_ context.Context, objectPath string, _ []byte, _ string) (string, error) {
	return "https://x.supabase.co/storage/v1/object/public/companion-pdfs/" + objectPath, nil
}

func (stubStorage) Remove(context.Context, string) error { return nil }

type stubTranscripts map[string]string

func (s stubTranscripts) FetchTranscript(_ context.Context, callID string) (string, error) {
	if t, ok := s[callID]; ok {
		return t, nil
	}
	return "", services.ErrTranscriptUnavailable
}

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) GenerateText(context.Context, string) (string, error) {
	return s.response, s.err
}

type testEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	verifier *utils.TokenVerifier
	llm      *stubLLM
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testhelpers.SetupTestDB(t)
	plans, err := config.LoadPlanTable()
	require.NoError(t, err)

	log := zap.NewNop()
	llm := &stubLLM{}
	transcripts := stubTranscripts{"call-1": "Teacher: two plus two is four."}
	verifier := utils.NewTokenVerifier("controller-secret", "")

	entitlements := services.NewEntitlementChecker(db, plans)
	companions := services.NewCompanionService(db, entitlements, stubStorage{}, log)
	pdfs := services.NewPDFService(stubStorage{}, companions, log)
	sessions := services.NewSessionService(db, transcripts, nil, log)
	generator := services.NewQuizGenerator(db, sessions, transcripts, llm, nil, log)
	grader := services.NewQuizGrader(db, log)

	companionCtl := NewCompanionController(companions, entitlements, sessions, log)
	pdfCtl := NewPDFController(pdfs, log)
	sessionCtl := NewSessionController(sessions, grader, log)
	quizCtl := NewQuizController(generator, grader, log)
	journeyCtl := NewJourneyController(companions, sessions, grader, log)

	r := gin.New()
	r.GET("/health", NewHealthController(db).Check)
	api := r.Group("/api", middleware.AuthMiddleware(verifier))
	api.POST("/companions", companionCtl.Create)
	api.GET("/companions", companionCtl.List)
	api.GET("/companions/permissions", companionCtl.Permissions)
	api.GET("/companions/:id", companionCtl.Get)
	api.DELETE("/companions/:id", companionCtl.Delete)
	api.GET("/companions/:id/assistant", companionCtl.Assistant)
	api.POST("/companions/:id/pdf", pdfCtl.UploadCompanionPDF)
	api.POST("/extract-pdf-text", pdfCtl.ExtractText)
	api.POST("/sessions", sessionCtl.Start)
	api.GET("/sessions", sessionCtl.List)
	api.PATCH("/sessions/:id/call", sessionCtl.LinkCall)
	api.GET("/sessions/:id/transcript", sessionCtl.Transcript)
	api.GET("/sessions/:id/quiz-results", sessionCtl.QuizResults)
	api.GET("/generate-quiz", quizCtl.Generate)
	api.GET("/quizzes/:id", quizCtl.Get)
	api.POST("/submit-quiz", quizCtl.Submit)
	api.GET("/quiz-results", quizCtl.ListResults)
	api.GET("/progress", quizCtl.Progress)
	api.GET("/journey", journeyCtl.Get)

	return &testEnv{db: db, router: r, verifier: verifier, llm: llm}
}

func (e *testEnv) token(t *testing.T, userID, plan string) string {
	t.Helper()
	tok, err := e.verifier.GenerateToken(userID, plan, nil, time.Hour)
	require.NoError(t, err)
	return tok
}

// do gửi request JSON; token rỗng thì không gắn Authorization
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	decode(t, w, &body)
	return body.Code
}

func sendRaw(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
