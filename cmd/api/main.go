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
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/talentscope-api/internal/config"
	"github.com/noah-isme/talentscope-api/internal/database"
	"github.com/noah-isme/talentscope-api/internal/handler"
	"github.com/noah-isme/talentscope-api/internal/middleware"
	"github.com/noah-isme/talentscope-api/internal/models"
	"github.com/noah-isme/talentscope-api/internal/repository"
	"github.com/noah-isme/talentscope-api/internal/router"
	"github.com/noah-isme/talentscope-api/internal/service"
	cloud "github.com/noah-isme/talentscope-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.Connect(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns: cfg.DatabaseMaxOpenConns,
		MaxIdleConns: cfg.DatabaseMaxIdleConns,
		ConnLifetime: cfg.DatabaseConnLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	var storage service.ArtifactStorage
	if cfg.HasStorage() {
		storage, err = cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
	} else {
		logger.Warn().Msg("artifact storage not configured; render status will not include download links")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	dimensionRepo := repository.NewDimensionRepository(db)
	scoreRepo := repository.NewDimensionScoreRepository(db)
	benchmarkRepo := repository.NewBenchmarkRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	cacheRepo := repository.NewReportCacheRepository(db)

	feedbackService := service.NewFeedbackService(feedbackRepo, answerRepo, logger)
	reportService := service.NewReportService(service.ReportServiceDeps{
		Assignments: assignmentRepo,
		Answers:     answerRepo,
		Scores:      scoreRepo,
		Caches:      cacheRepo,
		Resolver:    service.NewDimensionResolver(dimensionRepo),
		Benchmarks:  service.NewBenchmarkCalculator(assignmentRepo, answerRepo, benchmarkRepo, logger),
		Feedback:    feedbackService,
		Redis:       redisClient,
		RedisTTL:    cfg.ReportCacheTTL,
	}, logger)
	exportService := service.NewExportService(reportService, logger)
	queueService := service.NewRenderQueueService(assignmentRepo, cacheRepo, storage, cfg.SignedURLTTL, validate, logger)
	tokenService := service.NewPrintTokenService(cfg.PrintTokenSecret, cfg.PrintTokenTTL, redisClient, logger)
	eventService := service.NewRenderEventService(redisClient, cfg.EventChannel, natsConn, logger)

	eventsCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	eventService.Start(eventsCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ReportHandler: handler.NewReportHandler(reportService, exportService, logger),
		RenderHandler: handler.NewRenderHandler(queueService, eventService, validate, logger),
		PrintHandler:  handler.NewPrintHandler(reportService, tokenService, logger),
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret, service.PrintTokenAudience),
		HealthChecks: []handler.HealthDependency{
			{Name: "database", Check: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}},
			{Name: "redis", Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
		},
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
