package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/talentscope-api/internal/config"
	"github.com/noah-isme/talentscope-api/internal/database"
	"github.com/noah-isme/talentscope-api/internal/repository"
	"github.com/noah-isme/talentscope-api/internal/service"
	"github.com/noah-isme/talentscope-api/pkg/browser"
	cloud "github.com/noah-isme/talentscope-api/pkg/cloudinary"
	"github.com/noah-isme/talentscope-api/pkg/docker"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "render-worker").Logger()
	if cfg.RenderDebug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns: cfg.DatabaseMaxOpenConns,
		MaxIdleConns: cfg.DatabaseMaxIdleConns,
		ConnLifetime: cfg.DatabaseConnLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name("talentscope-render-worker"))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	storage, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	remoteURL := cfg.BrowserRemoteURL
	if cfg.BrowserMode == config.BrowserModeDocker {
		host, err := docker.NewBrowserHost(docker.Config{
			Host:          cfg.DockerHost,
			Image:         cfg.DockerBrowserImage,
			MemoryLimitMB: cfg.DockerMemoryMB,
			Logger:        logger,
		})
		if err != nil {
			log.Fatalf("failed to create browser host: %v", err)
		}
		defer func() {
			if err := host.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to stop browser host")
			}
		}()

		remoteURL, err = host.Start(ctx)
		if err != nil {
			log.Fatalf("failed to start browser container: %v", err)
		}
	}

	renderer, err := browser.NewRenderer(browser.Config{
		Mode:      cfg.BrowserMode,
		ExecPath:  cfg.BrowserExecPath,
		RemoteURL: remoteURL,
		Layout: browser.LayoutConfig{
			ContentTimeout: cfg.BrowserContentTimeout,
			PollInterval:   cfg.BrowserLayoutInterval,
			MaxPolls:       cfg.BrowserLayoutMaxPolls,
		},
		ImageTimeout:       cfg.BrowserImageTimeout,
		NetworkIdleTimeout: cfg.BrowserIdleTimeout,
		Debug:              cfg.RenderDebug,
		Logger:             logger,
	})
	if err != nil {
		log.Fatalf("failed to create browser renderer: %v", err)
	}

	events := service.NewRenderEventService(redisClient, cfg.EventChannel, natsConn, logger)
	worker := service.NewRenderWorker(
		repository.NewReportCacheRepository(db),
		service.NewPrintTokenService(cfg.PrintTokenSecret, cfg.PrintTokenTTL, nil, logger),
		renderer,
		storage,
		events,
		service.RenderWorkerConfig{
			PollInterval:  cfg.WorkerPollInterval,
			RenderTimeout: cfg.WorkerRenderTimeout,
			PrintBaseURL:  cfg.PrintBaseURL,
			Debug:         cfg.RenderDebug,
		},
		logger,
	)

	if err := worker.Run(ctx); err != nil {
		log.Fatalf("render worker stopped: %v", err)
	}
	logger.Info().Msg("worker stopped")
}
