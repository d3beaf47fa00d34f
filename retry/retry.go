package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
	goretry "github.com/sethvargo/go-retry"
)

// ErrNoResult is returned once the failure budget is exhausted.
var ErrNoResult = errors.New("no result: provider failure budget exhausted")

// Defaults applied by New.
const (
	DefaultMaxFailures = 5
	DefaultBackoff     = 10 * time.Second
)

// Attempt renders and sends one prompt built with the given context depth.
type Attempt func(ctx context.Context, depth int) (string, error)

// Options configures a Controller.
type Options struct {
	MaxFailures int
	// Backoff is the fixed pause between attempts. Zero retries immediately.
	Backoff time.Duration
	Logger  logging.Logger
}

// Controller retries attempts until one succeeds or the instance-wide
// failure counter is exhausted. Successful calls never reset the counter.
type Controller struct {
	failures *core.FailureCounter
	opts     Options
	logger   logging.Logger
}

// New creates a Controller.
func New(optFns ...func(o *Options)) *Controller {
	opts := Options{
		MaxFailures: DefaultMaxFailures,
		Backoff:     DefaultBackoff,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Controller{
		failures: core.NewFailureCounter(opts.MaxFailures),
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Invoke runs attempt starting at depth and returns the first successful
// text together with the depth that produced it.
func (c *Controller) Invoke(ctx context.Context, depth int, attempt Attempt) (string, int, error) {
	if depth < 0 {
		depth = 0
	}

	var text string

	err := goretry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		out, err := attempt(ctx, depth)
		if err == nil {
			text = out
			return nil
		}

		limitErr := c.failures.Increment()

		c.logger.Warn("provider.call.failed",
			"depth", depth,
			"failures", c.failures.Count(),
			"remaining", c.failures.Remaining(),
			"error", err.Error(),
		)

		if limitErr != nil {
			return fmt.Errorf("%w: %v (last error: %v)", ErrNoResult, limitErr, err)
		}

		if depth > 0 {
			depth--
		}

		return goretry.RetryableError(err)
	})
	if err != nil {
		return "", depth, err
	}

	return text, depth, nil
}

func (c *Controller) backoff() goretry.Backoff {
	if c.opts.Backoff > 0 {
		return goretry.NewConstant(c.opts.Backoff)
	}

	return goretry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
}

// Failures returns the number of failures recorded so far.
func (c *Controller) Failures() int { return c.failures.Count() }

// Reset clears the failure counter, for pooled owners being reused.
func (c *Controller) Reset() { c.failures.Reset() }
