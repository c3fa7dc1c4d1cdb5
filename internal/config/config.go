package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Browser hosting modes for the render worker.
const (
	BrowserModeLocal  = "local"
	BrowserModeRemote = "remote"
	BrowserModeDocker = "docker"
)

// Config holds runtime configuration values for the API service and the render worker.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	DatabaseMaxOpenConns   int
	DatabaseMaxIdleConns   int
	DatabaseConnLifetime   time.Duration
	RedisURL               string
	ReportCacheTTL         time.Duration
	NATSURL                string
	EventChannel           string
	JWTSecret              string
	PrintTokenSecret       string
	PrintTokenTTL          time.Duration
	PrintBaseURL           string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	SignedURLTTL           time.Duration
	WorkerPollInterval     time.Duration
	WorkerRenderTimeout    time.Duration
	BrowserMode            string
	BrowserExecPath        string
	BrowserRemoteURL       string
	BrowserContentTimeout  time.Duration
	BrowserImageTimeout    time.Duration
	BrowserIdleTimeout     time.Duration
	BrowserLayoutInterval  time.Duration
	BrowserLayoutMaxPolls  int
	DockerHost             string
	DockerBrowserImage     string
	DockerMemoryMB         int64
	RenderDebug            bool
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// HasStorage reports whether artifact storage credentials are configured.
func (c Config) HasStorage() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values for the API from environment variables and an optional .env file.
func Load() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}

// LoadWorker reads configuration for the render worker, which needs storage and print credentials.
func LoadWorker() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}

	if cfg.PrintTokenSecret == "" {
		return Config{}, fmt.Errorf("print token secret must be provided")
	}
	if !cfg.HasStorage() {
		return Config{}, fmt.Errorf("cloudinary credentials must be provided")
	}
	if cfg.PrintBaseURL == "" {
		return Config{}, fmt.Errorf("print base url must be provided")
	}

	switch cfg.BrowserMode {
	case BrowserModeLocal:
	case BrowserModeRemote:
		if cfg.BrowserRemoteURL == "" {
			return Config{}, fmt.Errorf("browser remote url must be provided in remote mode")
		}
	case BrowserModeDocker:
	default:
		return Config{}, fmt.Errorf("unsupported browser mode %q", cfg.BrowserMode)
	}

	return cfg, nil
}

func load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TALENTSCOPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "TalentScope API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_lifetime", "30m")
	v.SetDefault("report.cache_ttl", "10m")
	v.SetDefault("events.channel", "talentscope:reports")
	v.SetDefault("print.token_ttl", "2m")
	v.SetDefault("print.base_url", "http://localhost:8080")
	v.SetDefault("cloudinary.folder", "talentscope/reports")
	v.SetDefault("storage.signed_url_ttl", "15m")
	v.SetDefault("worker.poll_interval", "5s")
	v.SetDefault("worker.render_timeout", "2m")
	v.SetDefault("browser.mode", BrowserModeLocal)
	v.SetDefault("browser.content_timeout", "30s")
	v.SetDefault("browser.image_timeout", "10s")
	v.SetDefault("browser.idle_timeout", "10s")
	v.SetDefault("browser.layout_interval", "250ms")
	v.SetDefault("browser.layout_max_polls", 40)
	v.SetDefault("docker.browser_image", "chromedp/headless-shell:latest")
	v.SetDefault("docker.memory_mb", 1024)
	v.SetDefault("render.debug", false)

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"database.conn_lifetime",
		"report.cache_ttl",
		"print.token_ttl",
		"storage.signed_url_ttl",
		"worker.poll_interval",
		"worker.render_timeout",
		"browser.content_timeout",
		"browser.image_timeout",
		"browser.idle_timeout",
		"browser.layout_interval",
	} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", key)
		}
		durations[key] = parsed
	}

	maxPolls := v.GetInt("browser.layout_max_polls")
	if maxPolls <= 0 {
		maxPolls = 40
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		DatabaseMaxOpenConns:   v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:   v.GetInt("database.max_idle_conns"),
		DatabaseConnLifetime:   durations["database.conn_lifetime"],
		RedisURL:               v.GetString("redis.url"),
		ReportCacheTTL:         durations["report.cache_ttl"],
		NATSURL:                v.GetString("nats.url"),
		EventChannel:           v.GetString("events.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		PrintTokenSecret:       v.GetString("print.token_secret"),
		PrintTokenTTL:          durations["print.token_ttl"],
		PrintBaseURL:           strings.TrimRight(v.GetString("print.base_url"), "/"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		SignedURLTTL:           durations["storage.signed_url_ttl"],
		WorkerPollInterval:     durations["worker.poll_interval"],
		WorkerRenderTimeout:    durations["worker.render_timeout"],
		BrowserMode:            strings.ToLower(strings.TrimSpace(v.GetString("browser.mode"))),
		BrowserExecPath:        v.GetString("browser.exec_path"),
		BrowserRemoteURL:       v.GetString("browser.remote_url"),
		BrowserContentTimeout:  durations["browser.content_timeout"],
		BrowserImageTimeout:    durations["browser.image_timeout"],
		BrowserIdleTimeout:     durations["browser.idle_timeout"],
		BrowserLayoutInterval:  durations["browser.layout_interval"],
		BrowserLayoutMaxPolls:  maxPolls,
		DockerHost:             v.GetString("docker_host"),
		DockerBrowserImage:     v.GetString("docker.browser_image"),
		DockerMemoryMB:         v.GetInt64("docker.memory_mb"),
		RenderDebug:            v.GetBool("render.debug"),
	}

	return cfg, nil
}
