package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyDocument is returned when the printable view produced no layout pages.
var ErrEmptyDocument = errors.New("printable view rendered no pages")

// layoutInspector inspects the printable view.
type layoutInspector interface {
	PageCount(ctx context.Context) (int, error)
	ExpectedPages(ctx context.Context) (int, error)
}

// LayoutConfig bounds the layout polling loop.
type LayoutConfig struct {
	ContentTimeout time.Duration
	PollInterval   time.Duration
	MaxPolls       int
	StablePolls    int
}

func (c LayoutConfig) withDefaults() LayoutConfig {
	if c.ContentTimeout <= 0 {
		c.ContentTimeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 40
	}
	if c.StablePolls <= 0 {
		c.StablePolls = 3
	}
	return c
}

// layoutResult describes how the layout wait ended.
type layoutResult struct {
	Pages    int
	Expected int
	Polls    int
	Settled  bool
}

// waitForLayout waits for at least one page, then either for the declared page count or for the
// count to stay unchanged across StablePolls consecutive polls. Every phase is bounded; running out
// of polls is not an error as long as some pages exist.
func waitForLayout(ctx context.Context, inspector layoutInspector, cfg LayoutConfig) (layoutResult, error) {
	cfg = cfg.withDefaults()

	firstCtx, cancel := context.WithTimeout(ctx, cfg.ContentTimeout)
	count, err := pollUntil(firstCtx, cfg.PollInterval, func() (bool, int, error) {
		n, err := inspector.PageCount(firstCtx)
		return n > 0, n, err
	})
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return layoutResult{}, ErrEmptyDocument
		}
		return layoutResult{}, err
	}

	expected, err := inspector.ExpectedPages(ctx)
	if err != nil {
		return layoutResult{}, fmt.Errorf("read expected page count: %w", err)
	}

	result := layoutResult{Pages: count, Expected: expected}
	stable := 0
	for result.Polls < cfg.MaxPolls {
		if expected > 0 && result.Pages >= expected {
			result.Settled = true
			break
		}
		if expected <= 0 && stable >= cfg.StablePolls {
			result.Settled = true
			break
		}

		if err := sleep(ctx, cfg.PollInterval); err != nil {
			return result, err
		}
		n, err := inspector.PageCount(ctx)
		if err != nil {
			return result, fmt.Errorf("count pages: %w", err)
		}
		result.Polls++
		if n == result.Pages {
			stable++
		} else {
			stable = 0
		}
		result.Pages = n
	}

	if result.Pages == 0 {
		return result, ErrEmptyDocument
	}
	return result, nil
}

func pollUntil(ctx context.Context, interval time.Duration, check func() (bool, int, error)) (int, error) {
	for {
		done, n, err := check()
		if err != nil && ctx.Err() == nil {
			return 0, err
		}
		if done {
			return n, nil
		}
		if err := sleep(ctx, interval); err != nil {
			return 0, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
