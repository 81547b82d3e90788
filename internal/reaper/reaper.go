// Package reaper purges rows whose retention has elapsed.
package reaper

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultInterval   = 5 * time.Minute
	defaultSampleRate = 100
	sweepTimeout      = time.Minute
)

var errNoSweepers = errors.New("reaper: at least one sweeper is required")

// Sweeper deletes one category of stale rows.
type Sweeper interface {
	Name() string
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// SweepFunc adapts a purge function into a Sweeper.
type SweepFunc struct {
	Label string
	Fn    func(ctx context.Context, now time.Time) (int64, error)
}

func (s SweepFunc) Name() string {
	return s.Label
}

func (s SweepFunc) Sweep(ctx context.Context, now time.Time) (int64, error) {
	return s.Fn(ctx, now)
}

// Config describes the reaper schedule.
type Config struct {
	Sweepers []Sweeper
	Interval time.Duration
	// SampleRate triggers a sweep on roughly one in SampleRate requests; zero disables sampling.
	SampleRate int
	Clock      func() time.Time
	Logger     *zap.Logger
	// Sample decides whether a request triggers a sweep. Defaults to a 1/SampleRate draw.
	Sample func() bool
}

// Reaper runs sweepers periodically and on sampled requests. Sweeps never overlap.
type Reaper struct {
	sweepers []Sweeper
	interval time.Duration
	clock    func() time.Time
	logger   *zap.Logger
	sample   func() bool
	running  atomic.Bool
	inflight sync.WaitGroup
}

// New validates the configuration.
func New(cfg Config) (*Reaper, error) {
	if len(cfg.Sweepers) == 0 {
		return nil, errNoSweepers
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sample := cfg.Sample
	if sample == nil {
		rate := cfg.SampleRate
		if rate < 0 {
			rate = defaultSampleRate
		}
		sample = func() bool {
			return rate > 0 && rand.Intn(rate) == 0
		}
	}
	return &Reaper{
		sweepers: cfg.Sweepers,
		interval: interval,
		clock:    clock,
		logger:   logger,
		sample:   sample,
	}, nil
}

// Start runs the periodic loop until the returned stop function is called.
// Stop waits for the loop and any sampled sweep to finish or ctx to end.
func (r *Reaper) Start() func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.loop(stop)
	}()
	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		finished := make(chan struct{})
		go func() {
			<-done
			r.inflight.Wait()
			close(finished)
		}()
		select {
		case <-finished:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reaper) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.RunOnce(context.Background())
		}
	}
}

// RunOnce runs every sweeper unless a sweep is already in progress, and
// reports whether it ran. Sweeper failures are logged and retried next time.
func (r *Reaper) RunOnce(ctx context.Context) bool {
	if !r.running.CompareAndSwap(false, true) {
		return false
	}
	defer r.running.Store(false)

	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	now := r.clock().UTC()
	for _, sweeper := range r.sweepers {
		removed, err := sweeper.Sweep(sweepCtx, now)
		if err != nil {
			r.logger.Warn("sweep failed", zap.String("sweeper", sweeper.Name()), zap.Error(err))
			continue
		}
		if removed > 0 {
			r.logger.Info("sweep removed rows", zap.String("sweeper", sweeper.Name()), zap.Int64("rows", removed))
		}
	}
	return true
}

// Middleware triggers a detached sweep on sampled requests.
func (r *Reaper) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if !r.sample() {
			return
		}
		r.inflight.Add(1)
		go func() {
			defer r.inflight.Done()
			r.RunOnce(context.Background())
		}()
	}
}

// RetentionSweep wraps a purge of rows older than now minus retention. A
// non-positive retention disables the sweep.
func RetentionSweep(label string, retention time.Duration, purge func(ctx context.Context, before time.Time) (int64, error)) Sweeper {
	return SweepFunc{
		Label: label,
		Fn: func(ctx context.Context, now time.Time) (int64, error) {
			if retention <= 0 {
				return 0, nil
			}
			return purge(ctx, now.Add(-retention))
		},
	}
}
