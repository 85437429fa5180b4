package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/examprep-api/internal/config"
	"github.com/yourusername/examprep-api/internal/handler"
	"github.com/yourusername/examprep-api/internal/middleware"
	pgRepo "github.com/yourusername/examprep-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/examprep-api/internal/repository/redis"
	"github.com/yourusername/examprep-api/internal/service"
	"github.com/yourusername/examprep-api/internal/service/attemptmanager"
	ws "github.com/yourusername/examprep-api/internal/websocket"
	"github.com/yourusername/examprep-api/pkg/auth"
	"github.com/yourusername/examprep-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Repositories
	examRepo := pgRepo.NewExamRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	attemptRepo := pgRepo.NewAttemptRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Attempt engine configuration
	attemptConfig := attemptmanager.DefaultConfig()
	if cfg.Attempt.AutosaveDebounceMs > 0 {
		attemptConfig.AutosaveDebounce = time.Duration(cfg.Attempt.AutosaveDebounceMs) * time.Millisecond
	}
	if cfg.Attempt.AutosaveIntervalSec > 0 {
		attemptConfig.AutosaveInterval = time.Duration(cfg.Attempt.AutosaveIntervalSec) * time.Second
	}
	if cfg.Attempt.QuestionCacheTTLSec > 0 {
		attemptConfig.QuestionCacheTTL = time.Duration(cfg.Attempt.QuestionCacheTTLSec) * time.Second
	}

	// Websocket hub delivers attempt events to subscribed clients.
	hub := ws.NewHub()

	attemptManager := attemptmanager.NewManager(attemptConfig, &attemptmanager.Dependencies{
		ExamRepo:     examRepo,
		QuestionRepo: questionRepo,
		AttemptRepo:  attemptRepo,
		CacheRepo:    cacheRepo,
		Events:       hub,
	})

	// Email: Resend when configured, noop otherwise.
	var emailService service.EmailService = &service.NoopEmailService{}
	if cfg.Email.ResendAPIKey != "" {
		resendService, errEmail := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if errEmail != nil {
			log.Printf("Failed to initialize Resend email service, falling back to noop: %v", errEmail)
		} else {
			emailService = resendService
			log.Println("Resend email service initialized")
		}
	}

	// Services
	examService := service.NewExamService(examRepo, questionRepo, cacheRepo, attemptConfig.QuestionCacheTTL)
	attemptService := service.NewAttemptService(attemptManager, examRepo, questionRepo, attemptRepo, emailService)
	analyticsService := service.NewAnalyticsService(attemptRepo, examRepo, questionRepo)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	// Handlers
	examHandler := handler.NewExamHandler(examService)
	attemptHandler := handler.NewAttemptHandler(attemptService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)
	wsHandler := handler.NewWSHandler(hub, attemptService)

	isProduction := gin.Mode() == gin.ReleaseMode

	router := gin.Default()

	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		// Exam catalog
		exams := api.Group("/exams")
		exams.Use(authMiddleware.RequireAuth())
		{
			exams.GET("", examHandler.ListExams)
			exams.GET("/:id", middleware.ExtractUintParam("id", "examID"), examHandler.GetExam)
			exams.GET("/:id/questions", middleware.ExtractUintParam("id", "examID"), examHandler.GetExamQuestions)
			exams.GET("/:id/attempt", middleware.ExtractUintParam("id", "examID"), attemptHandler.GetActiveAttempt)
		}

		// Attempt lifecycle
		attempts := api.Group("/attempts")
		attempts.Use(authMiddleware.RequireAuth())
		{
			attempts.POST("", attemptHandler.StartAttempt)
			attempts.GET("", attemptHandler.ListAttempts)

			one := attempts.Group("/:attempt_id")
			one.Use(middleware.ExtractUUIDParam("attempt_id", "attemptID"))
			{
				one.GET("", attemptHandler.GetAttempt)
				one.PUT("/answers/:question_id", middleware.ExtractUintParam("question_id", "questionID"), attemptHandler.SelectAnswer)
				one.PUT("/flags/:question_id", middleware.ExtractUintParam("question_id", "questionID"), attemptHandler.ToggleFlag)
				one.PUT("/position", attemptHandler.SetPosition)
				one.PUT("/signals", attemptHandler.RecordSignals)
				one.POST("/submit", attemptHandler.SubmitAttempt)
				one.GET("/result", attemptHandler.GetResult)
				one.GET("/analytics", analyticsHandler.GetAttemptBreakdown)
			}
		}

		// Results analytics
		analytics := api.Group("/analytics")
		analytics.Use(authMiddleware.RequireAuth())
		{
			analytics.GET("/summary", analyticsHandler.GetSummary)
			analytics.GET("/export", analyticsHandler.ExportSummary)
		}
	}

	// Websocket event stream; the auth middleware also accepts ?token=
	// because browsers cannot set headers on upgrade requests.
	router.GET("/ws/attempts/:attempt_id",
		authMiddleware.RequireAuth(),
		middleware.ExtractUUIDParam("attempt_id", "attemptID"),
		wsHandler.SubscribeAttempt,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop live sessions first: in-progress attempts stay resumable because
	// remaining time derives from started_at.
	attemptService.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
