package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-api/internal/config"
	"github.com/codeclash/codeclash-api/internal/database"
	"github.com/codeclash/codeclash-api/internal/events"
	"github.com/codeclash/codeclash-api/internal/handler"
	"github.com/codeclash/codeclash-api/internal/middleware"
	"github.com/codeclash/codeclash-api/internal/models"
	"github.com/codeclash/codeclash-api/internal/repository"
	"github.com/codeclash/codeclash-api/internal/router"
	"github.com/codeclash/codeclash-api/internal/service"
	"github.com/codeclash/codeclash-api/pkg/judge"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Problem{},
		&models.TestCase{},
		&models.Submission{},
		&models.Contest{},
		&models.ContestProblem{},
		&models.ContestRegistration{},
		&models.ContestScore{},
		&models.Assessment{},
		&models.AssessmentQuestion{},
		&models.AssessmentSession{},
		&models.AssessmentAnswer{},
		&models.StreakState{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Close()

	judgeClient, err := judge.New(judge.Config{
		BaseURL: cfg.JudgeURL,
		Token:   cfg.JudgeToken,
		Timeout: cfg.JudgeTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create judge client: %v", err)
	}

	publisher := events.NewNATSPublisher(natsConn, logger)
	validate := validator.New(validator.WithRequiredStructEnabled())

	problemRepo := repository.NewProblemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	contestRepo := repository.NewContestRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	streakRepo := repository.NewStreakRepository(db)

	gradingService := service.NewGradingService(problemRepo, submissionRepo, judgeClient, publisher, logger, service.GradingConfig{
		MaxConcurrency: cfg.JudgeMaxConcurrency,
	})
	problemService := service.NewProblemService(problemRepo, logger)
	contestService := service.NewContestService(contestRepo, gradingService, redisClient, cfg.LeaderboardCacheTTL, logger)
	assessmentService := service.NewAssessmentService(assessmentRepo, gradingService, publisher, logger)
	rewardService := service.NewRewardService(streakRepo, natsConn, redisClient, logger)

	appCtx, stopRewards := context.WithCancel(context.Background())
	defer stopRewards()
	if err := rewardService.Start(appCtx); err != nil {
		log.Fatalf("failed to start reward consumer: %v", err)
	}

	problemHandler := handler.NewProblemHandler(problemService, logger)
	submissionHandler := handler.NewSubmissionHandler(gradingService, rewardService, submissionRepo, validate, logger)
	contestHandler := handler.NewContestHandler(contestService, validate, logger)
	assessmentHandler := handler.NewAssessmentHandler(assessmentService, validate, logger)
	streakHandler := handler.NewStreakHandler(rewardService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ProblemHandler:    problemHandler,
		SubmissionHandler: submissionHandler,
		ContestHandler:    contestHandler,
		AssessmentHandler: assessmentHandler,
		StreakHandler:     streakHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
