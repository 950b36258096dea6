// Package warmer refreshes the cached CRM client snapshots from the client database.
package warmer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/crmwarm/internal/cache"
	"github.com/charlesng35/crmwarm/internal/models"
	"github.com/charlesng35/crmwarm/internal/services"
	"github.com/charlesng35/crmwarm/internal/snapshot"
	apperrors "github.com/charlesng35/crmwarm/pkg/errors"
	"github.com/charlesng35/crmwarm/pkg/logger"
	"github.com/charlesng35/crmwarm/pkg/metrics"
	"github.com/charlesng35/crmwarm/pkg/validator"
)

// DefaultTTL is the snapshot expiry used when none is configured.
const DefaultTTL = 900 * time.Second

// MaxTTLSeconds is the largest TTL in seconds that fits a time.Duration.
const MaxTTLSeconds = math.MaxInt64 / int64(time.Second)

// TTLFromSeconds converts a TTL given in whole seconds, rejecting values outside
// 1..MaxTTLSeconds as invalid options.
func TTLFromSeconds(seconds int64) (time.Duration, error) {
	if seconds < 1 || seconds > MaxTTLSeconds {
		return 0, apperrors.InvalidOptions(fmt.Errorf("ttl must be between 1 and %d seconds, got %d", MaxTTLSeconds, seconds))
	}
	return time.Duration(seconds) * time.Second, nil
}

// ClientSource supplies the client rows to snapshot, in the order they should be cached.
type ClientSource interface {
	Fetch(ctx context.Context, filter services.ClientFilter) ([]models.Client, error)
}

// Options controls a single warm run.
type Options struct {
	// TTL is the expiry applied to every snapshot written. Zero or sub-second values are rejected.
	TTL time.Duration `flag:"ttl" validate:"gte=1s"`
	// ClientID restricts the run to one client when set.
	ClientID *int64 `flag:"client"`
	// Warmup only adds a confirmation line to the summary.
	Warmup bool `flag:"warmup"`
}

// Validate checks the options before any connection is made.
func (o Options) Validate() error {
	if err := validator.ValidateStruct(o); err != nil {
		return apperrors.InvalidOptions(err)
	}
	return nil
}

// Result summarises a run.
type Result struct {
	RunID    string
	Rows     int
	Written  int
	Failed   int
	TTL      time.Duration
	Duration time.Duration
}

// Warmer writes one snapshot per client row to the cache, sequentially.
type Warmer struct {
	source ClientSource
	store  cache.Store
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

// Option customises the Warmer.
type Option func(*Warmer)

// WithLogger overrides the module logger.
func WithLogger(log *zap.Logger) Option {
	return func(w *Warmer) {
		if log != nil {
			w.log = log
		}
	}
}

// WithNow overrides the clock used for run timing.
func WithNow(now func() time.Time) Option {
	return func(w *Warmer) {
		if now != nil {
			w.now = now
		}
	}
}

// New constructs a Warmer. Options are validated here so a bad TTL fails before any work.
func New(source ClientSource, store cache.Store, opts Options, options ...Option) (*Warmer, error) {
	if source == nil {
		return nil, errors.New("warmer: client source is required")
	}
	if store == nil {
		return nil, errors.New("warmer: cache store is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	w := &Warmer{
		source: source,
		store:  store,
		opts:   opts,
		log:    logger.WithModule("warmer"),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(w)
	}
	return w, nil
}

// Run fetches the client rows and caches a snapshot for each, in result order, then writes
// the summary to out. A failed write does not stop the run; failures are returned together
// as ErrPartialWrite after the summary has been printed. A fetch failure aborts before any write.
// Cancelling ctx stops the run before the next write.
func (w *Warmer) Run(ctx context.Context, out io.Writer) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	start := w.now()
	res := Result{RunID: uuid.NewString(), TTL: w.opts.TTL}
	log := w.log.With(zap.String("run_id", res.RunID))

	filter := services.ClientFilter{ID: w.opts.ClientID}
	if filter.ID != nil {
		log = log.With(zap.Int64("client_id", *filter.ID))
	}

	clients, err := w.source.Fetch(ctx, filter)
	if err != nil {
		metrics.WarmRuns.WithLabelValues("failure").Inc()
		log.Error("fetch clients failed", zap.Error(err))
		if services.IsUnavailable(err) {
			return res, apperrors.ErrSourceUnavailable.WithInternal(err)
		}
		return res, apperrors.Wrap(err, "fetch clients")
	}
	res.Rows = len(clients)
	log.Debug("clients fetched", zap.Int("rows", res.Rows))

	var errs, interrupted error
	for _, client := range clients {
		if err := ctx.Err(); err != nil {
			interrupted = err
			break
		}
		if err := w.write(ctx, client); err != nil {
			res.Failed++
			metrics.SnapshotWrites.WithLabelValues("failure").Inc()
			log.Warn("cache snapshot failed", zap.Int64("client_id", client.ID), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("client %d: %w", client.ID, err))
			continue
		}
		res.Written++
		metrics.SnapshotWrites.WithLabelValues("success").Inc()
	}

	res.Duration = w.now().Sub(start)
	metrics.RunDuration.Observe(res.Duration.Seconds())
	metrics.LastRunSnapshots.Set(float64(res.Written))

	if err := w.summarise(out, res, errs == nil && interrupted == nil); err != nil {
		errs = multierr.Append(errs, err)
	}

	log.Info("warm run finished",
		zap.Int("rows", res.Rows),
		zap.Int("written", res.Written),
		zap.Int("failed", res.Failed),
		zap.Duration("ttl", res.TTL),
		zap.Duration("duration", res.Duration),
	)

	if interrupted != nil {
		metrics.WarmRuns.WithLabelValues("interrupted").Inc()
		log.Warn("warm run interrupted", zap.Error(interrupted))
		return res, apperrors.Wrap(multierr.Append(interrupted, errs), "warm run interrupted")
	}
	if errs != nil {
		metrics.WarmRuns.WithLabelValues("partial").Inc()
		return res, apperrors.ErrPartialWrite.WithInternal(errs)
	}

	metrics.WarmRuns.WithLabelValues("success").Inc()
	metrics.LastSuccess.Set(float64(w.now().Unix()))
	return res, nil
}

func (w *Warmer) write(ctx context.Context, client models.Client) error {
	snap := snapshot.FromClient(client)
	payload, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	return w.store.Set(ctx, snapshot.Key(snap.ID), payload, w.opts.TTL)
}

func (w *Warmer) summarise(out io.Writer, res Result, ok bool) error {
	if _, err := fmt.Fprintf(out, "Cached %d client snapshot(s) with TTL %d seconds.\n", res.Written, int64(res.TTL/time.Second)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if w.opts.Warmup && ok {
		if _, err := fmt.Fprintln(out, "Warmup completed successfully."); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return nil
}
