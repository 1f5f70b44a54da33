package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vnkhanh/companion-tutor-backend/config"
	"github.com/vnkhanh/companion-tutor-backend/controllers"
	"github.com/vnkhanh/companion-tutor-backend/middleware"
	"github.com/vnkhanh/companion-tutor-backend/routes"
	"github.com/vnkhanh/companion-tutor-backend/services"
	"github.com/vnkhanh/companion-tutor-backend/utils"
	"github.com/vnkhanh/companion-tutor-backend/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(cfg, logger)
	if err != nil {
		return err
	}
	plans, err := config.LoadPlanTable()
	if err != nil {
		return err
	}

	// client của bên thứ ba chỉ dựng một lần rồi inject
	storage := utils.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
	vapi := services.NewVapiClient(cfg.VapiBaseURL, cfg.VapiAPIKey, 30*time.Second)
	gemini, err := services.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return err
	}
	defer gemini.Close()

	hub := ws.NewHub(logger.Named("ws"))
	verifier := utils.NewTokenVerifier(cfg.AuthJWTSecret, cfg.AuthJWTIssuer)

	entitlements := services.NewEntitlementChecker(db, plans)
	companions := services.NewCompanionService(db, entitlements, storage, logger.Named("companions"))
	pdfs := services.NewPDFService(storage, companions, logger.Named("pdf"))
	sessions := services.NewSessionService(db, vapi, hub, logger.Named("sessions"))
	generator := services.NewQuizGenerator(db, sessions, vapi, gemini, hub, logger.Named("quiz"))
	grader := services.NewQuizGrader(db, logger.Named("grader"))

	reconciler := services.NewCallIDReconciler(db, sessions, vapi, services.ReconcilerConfig{
		Schedule:    cfg.ReconcileSchedule,
		MaxAttempts: cfg.ReconcileMaxAttempts,
		BaseDelay:   cfg.ReconcileBaseDelay,
		MaxPages:    cfg.ReconcileMaxPages,
	}, logger.Named("reconciler"))
	if err := reconciler.Start(); err != nil {
		return err
	}
	defer reconciler.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")), middleware.Metrics())

	//Bật CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Auth-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRouter(r, routes.Handlers{
		Verifier:   verifier,
		Health:     controllers.NewHealthController(db),
		Companions: controllers.NewCompanionController(companions, entitlements, sessions, logger),
		PDFs:       controllers.NewPDFController(pdfs, logger),
		Sessions:   controllers.NewSessionController(sessions, grader, logger),
		Quizzes:    controllers.NewQuizController(generator, grader, logger),
		Journey:    controllers.NewJourneyController(companions, sessions, grader, logger),
		WebSocket:  ws.NewHandler(hub, verifier, sessions, cfg.CORSOrigins, logger.Named("ws")),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
