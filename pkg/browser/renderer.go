package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Browser hosting modes.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
	ModeDocker = "docker"
)

// Selectors the printable view exposes.
const (
	LoadedSelector  = "#report-loaded"
	PageSelector    = ".report-page"
	RootElementID   = "report-root"
	ExpectedPageKey = "expectedPages"
)

// Config groups browser automation settings.
type Config struct {
	Mode               string
	ExecPath           string
	RemoteURL          string
	Layout             LayoutConfig
	ImageTimeout       time.Duration
	NetworkIdleTimeout time.Duration
	NetworkQuiet       time.Duration
	Debug              bool
	Logger             zerolog.Logger
}

// Renderer prints pages to PDF through a headless Chrome instance.
type Renderer struct {
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewRenderer validates the configuration and constructs a renderer.
func NewRenderer(cfg Config) (*Renderer, error) {
	switch cfg.Mode {
	case "", ModeLocal:
		cfg.Mode = ModeLocal
	case ModeRemote, ModeDocker:
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("browser mode %s requires a remote url", cfg.Mode)
		}
	default:
		return nil, fmt.Errorf("unknown browser mode %q", cfg.Mode)
	}
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = 10 * time.Second
	}
	if cfg.NetworkIdleTimeout <= 0 {
		cfg.NetworkIdleTimeout = 10 * time.Second
	}
	if cfg.NetworkQuiet <= 0 {
		cfg.NetworkQuiet = 500 * time.Millisecond
	}
	cfg.Layout = cfg.Layout.withDefaults()

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Renderer{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/talentscope-api/pkg/browser"),
		logger: logger.With().Str("component", "browser_renderer").Logger(),
	}, nil
}

func (r *Renderer) allocate(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Mode == ModeLocal {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoSandbox,
			chromedp.DisableGPU,
			chromedp.Flag("font-render-hinting", "none"),
		)
		if r.cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
		}
		return chromedp.NewExecAllocator(ctx, opts...)
	}
	return chromedp.NewRemoteAllocator(ctx, r.cfg.RemoteURL)
}

// RenderPDF loads the printable view, waits for it to settle and prints it.
func (r *Renderer) RenderPDF(parent context.Context, pageURL string) ([]byte, error) {
	ctx, span := r.tracer.Start(parent, "browser.render_pdf", trace.WithAttributes(
		attribute.String("browser.mode", r.cfg.Mode),
	))
	defer span.End()

	allocCtx, cancelAlloc := r.allocate(ctx)
	defer cancelAlloc()

	var contextOpts []chromedp.ContextOption
	if r.cfg.Debug {
		contextOpts = append(contextOpts, chromedp.WithDebugf(func(format string, args ...interface{}) {
			r.logger.Debug().Msgf(format, args...)
		}))
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, contextOpts...)
	defer cancelTab()

	tracker := newNetworkTracker()
	chromedp.ListenTarget(tabCtx, tracker.handle)

	data, err := r.render(tabCtx, pageURL, tracker)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("browser.pdf_bytes", len(data)))
	return data, nil
}

func (r *Renderer) render(ctx context.Context, pageURL string, tracker *networkTracker) ([]byte, error) {
	if err := chromedp.Run(ctx, network.Enable(), chromedp.Navigate(pageURL)); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	loadedCtx, cancel := context.WithTimeout(ctx, r.cfg.Layout.ContentTimeout)
	err := chromedp.Run(loadedCtx, chromedp.WaitVisible(LoadedSelector, chromedp.ByQuery))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("wait for content signal: %w", err)
	}

	layout, err := waitForLayout(ctx, &chromeInspector{}, r.cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("wait for layout: %w", err)
	}
	logEvent := r.logger.Debug()
	if !layout.Settled {
		logEvent = r.logger.Warn()
	}
	logEvent.Int("pages", layout.Pages).Int("expected", layout.Expected).Int("polls", layout.Polls).Bool("settled", layout.Settled).Msg("layout wait finished")

	if pending, err := r.waitImages(ctx); err != nil {
		return nil, fmt.Errorf("wait for images: %w", err)
	} else if pending > 0 {
		r.logger.Warn().Int("images", pending).Msg("images did not finish loading before timeout")
	}

	idleCtx, cancelIdle := context.WithTimeout(ctx, r.cfg.NetworkIdleTimeout)
	err = tracker.waitIdle(idleCtx, r.cfg.NetworkQuiet)
	cancelIdle()
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, fmt.Errorf("wait for network idle: %w", err)
		}
		r.logger.Warn().Dur("timeout", r.cfg.NetworkIdleTimeout).Msg("network did not go idle before timeout")
	}

	var data []byte
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var printErr error
		data, _, printErr = page.PrintToPDF().
			WithPrintBackground(true).
			WithPreferCSSPageSize(true).
			Do(ctx)
		return printErr
	}))
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	return data, nil
}

// waitImages resolves once every image has loaded, errored or hit the per-image timeout.
// It returns how many images did not load.
func (r *Renderer) waitImages(ctx context.Context) (int, error) {
	script := fmt.Sprintf(`Promise.all(Array.from(document.images).map(function (img) {
		if (img.complete) { return img.naturalWidth > 0; }
		return new Promise(function (resolve) {
			var timer = setTimeout(function () { resolve(false); }, %d);
			img.addEventListener('load', function () { clearTimeout(timer); resolve(true); });
			img.addEventListener('error', function () { clearTimeout(timer); resolve(false); });
		});
	})).then(function (results) { return results.filter(function (ok) { return !ok; }).length; })`, r.cfg.ImageTimeout.Milliseconds())

	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.ImageTimeout+2*time.Second)
	defer cancel()

	var pending int
	err := chromedp.Run(waitCtx, chromedp.Evaluate(script, &pending, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	return pending, err
}

type chromeInspector struct{}

func (p *chromeInspector) PageCount(ctx context.Context) (int, error) {
	var count int
	err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%q).length`, PageSelector), &count))
	return count, err
}

func (p *chromeInspector) ExpectedPages(ctx context.Context) (int, error) {
	var expected int
	script := fmt.Sprintf(`(function () {
		var root = document.getElementById(%q);
		if (!root || !root.dataset.%s) { return 0; }
		var n = parseInt(root.dataset.%s, 10);
		return isNaN(n) ? 0 : n;
	})()`, RootElementID, ExpectedPageKey, ExpectedPageKey)
	err := chromedp.Run(ctx, chromedp.Evaluate(script, &expected))
	return expected, err
}
