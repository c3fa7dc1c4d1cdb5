package docker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const devToolsPort = nat.Port("9222/tcp")

var (
	hostStartDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "talentscope",
		Subsystem: "browser_host",
		Name:      "start_duration_seconds",
		Help:      "Time until the browser container accepted DevTools connections",
		Buckets:   prometheus.DefBuckets,
	}, []string{"image"})

	hostFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talentscope",
		Subsystem: "browser_host",
		Name:      "start_failures_total",
		Help:      "Number of browser containers that failed to start",
	}, []string{"image"})
)

// Config groups browser container settings.
type Config struct {
	Host          string
	Image         string
	StartTimeout  time.Duration
	MemoryLimitMB int64
	ShmSizeMB     int64
	Logger        zerolog.Logger
}

// BrowserHost runs a headless Chrome container and exposes its DevTools endpoint.
type BrowserHost struct {
	client      *client.Client
	cfg         Config
	tracer      trace.Tracer
	logger      zerolog.Logger
	containerID string
	endpoint    string
	httpClient  *http.Client
}

// NewBrowserHost constructs a Docker backed browser host.
func NewBrowserHost(cfg Config) (*BrowserHost, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.Image == "" {
		cfg.Image = "chromedp/headless-shell:latest"
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 30 * time.Second
	}
	if cfg.ShmSizeMB <= 0 {
		cfg.ShmSizeMB = 256
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &BrowserHost{
		client:     cli,
		cfg:        cfg,
		tracer:     otel.Tracer("github.com/noah-isme/talentscope-api/pkg/docker"),
		logger:     logger.With().Str("component", "browser_host").Logger(),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}, nil
}

// Start launches the container and returns its DevTools endpoint once it answers.
func (h *BrowserHost) Start(parent context.Context) (string, error) {
	if h.endpoint != "" {
		return h.endpoint, nil
	}

	image := h.cfg.Image
	ctx, span := h.tracer.Start(parent, "docker.browser_host.start", trace.WithAttributes(
		attribute.String("docker.image", image),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.cfg.StartTimeout)
	defer cancel()

	config := &container.Config{
		Image:        image,
		ExposedPorts: nat.PortSet{devToolsPort: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		AutoRemove: true,
		PortBindings: nat.PortMap{
			devToolsPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
		},
		Resources: container.Resources{
			Memory: h.cfg.MemoryLimitMB * 1024 * 1024,
		},
		ShmSize:     h.cfg.ShmSizeMB * 1024 * 1024,
		NetworkMode: "bridge",
	}

	start := time.Now()
	resp, err := h.client.ContainerCreate(ctx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return "", h.fail(span, fmt.Errorf("container create: %w", err))
	}
	h.containerID = resp.ID

	if err := h.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", h.fail(span, fmt.Errorf("container start: %w", err))
	}

	inspect, err := h.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return "", h.fail(span, fmt.Errorf("container inspect: %w", err))
	}
	if inspect.NetworkSettings == nil || len(inspect.NetworkSettings.Ports[devToolsPort]) == 0 {
		return "", h.fail(span, errors.New("devtools port was not published"))
	}
	binding := inspect.NetworkSettings.Ports[devToolsPort][0]
	endpoint := fmt.Sprintf("http://127.0.0.1:%s", binding.HostPort)

	if err := h.waitReady(ctx, endpoint); err != nil {
		return "", h.fail(span, fmt.Errorf("devtools endpoint not ready: %w", err))
	}

	hostStartDuration.WithLabelValues(image).Observe(time.Since(start).Seconds())
	h.endpoint = endpoint
	h.logger.Info().Str("container_id", resp.ID).Str("endpoint", endpoint).Msg("browser container started")
	return endpoint, nil
}

func (h *BrowserHost) waitReady(ctx context.Context, endpoint string) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/json/version", nil)
		if err != nil {
			return err
		}
		if resp, err := h.httpClient.Do(req); err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *BrowserHost) fail(span trace.Span, err error) error {
	hostFailures.WithLabelValues(h.cfg.Image).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.removeContainer()
	return err
}

func (h *BrowserHost) removeContainer() {
	if h.containerID == "" {
		return
	}
	removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.client.ContainerRemove(removeCtx, h.containerID, container.RemoveOptions{Force: true}); err != nil {
		h.logger.Error().Err(err).Str("container_id", h.containerID).Msg("failed to remove browser container")
	}
	h.containerID = ""
	h.endpoint = ""
}

// Close stops the container and shuts down the Docker client.
func (h *BrowserHost) Close() error {
	h.removeContainer()
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}
