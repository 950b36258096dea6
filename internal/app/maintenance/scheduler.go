package maintenance

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/charlesng35/crmwarm/internal/warmer"
	"github.com/charlesng35/crmwarm/pkg/logger"
)

const defaultWarmSpec = "@every 15m"

// Runner performs one warm run.
type Runner interface {
	Run(ctx context.Context, out io.Writer) (warmer.Result, error)
}

// Scheduler repeats warm runs on a cron schedule for hosts without an external scheduler.
// Runs never overlap: a tick that fires while the previous run is still busy is skipped.
type Scheduler struct {
	runner   Runner
	cron     *cron.Cron
	spec     string
	out      io.Writer
	afterRun func(warmer.Result, error)
	log      *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSchedule overrides the cron specification, e.g. "*/10 * * * *" or "@every 5m".
func WithSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.spec = spec
		}
	}
}

// WithOutput sets where run summaries are written.
func WithOutput(out io.Writer) Option {
	return func(s *Scheduler) {
		if out != nil {
			s.out = out
		}
	}
}

// WithAfterRun registers a hook invoked after every run, successful or not.
func WithAfterRun(fn func(warmer.Result, error)) Option {
	return func(s *Scheduler) {
		s.afterRun = fn
	}
}

// NewScheduler constructs a Scheduler with the default 15 minute cadence.
func NewScheduler(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		spec:   defaultWarmSpec,
		out:    io.Discard,
		log:    logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(
			cron.WithLogger(cronLogger{log: s.log.Sugar()}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: s.log.Sugar()})),
		)
	}

	return s
}

// Start registers the warm job and launches the scheduler. Runs receive a context derived
// from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.runner == nil {
		return errors.New("maintenance: runner is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.spec, func() {
		_ = s.RunOnce(runCtx)
	}); err != nil {
		s.cancel()
		return err
	}

	s.log.Info("warm schedule started", zap.String("spec", s.spec))
	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler and cancels an in-flight run. The returned context
// is done once the running job has returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes a single warm run synchronously.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.runner == nil {
		return errors.New("maintenance: runner is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.runner.Run(ctx, s.out)
	if err != nil {
		s.log.Warn("scheduled warm run failed", zap.String("run_id", res.RunID), zap.Error(err))
	}
	if s.afterRun != nil {
		s.afterRun(res, err)
	}
	return err
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
