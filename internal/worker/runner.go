package worker

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signalchat/internal/checkpoint"
	"signalchat/internal/config"
	"signalchat/internal/domain"
	"signalchat/internal/fetcher"
	"signalchat/internal/format"
	"signalchat/internal/notifier"
)

// Runner moves records from a fetcher to a notifier, one watermark window
// per run.
type Runner struct {
	fetcher  fetcher.Fetcher
	notifier notifier.Notifier
	store    checkpoint.Store
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewRunner(f fetcher.Fetcher, n notifier.Notifier, s checkpoint.Store, cfg config.RunConfig, logger *zap.Logger) *Runner {
	return &Runner{
		fetcher:  f,
		notifier: n,
		store:    s,
		interval: cfg.Interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start performs one run. With a positive interval it keeps running on a
// ticker until ctx is cancelled; failed runs are logged and the same window
// is retried on the next tick. On cancellation it returns the error of the
// last completed run, so a bridge that kept failing does not exit cleanly.
func (w *Runner) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return w.RunOnce(ctx)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	lastErr := w.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return lastErr
		case <-ticker.C:
			if err := w.runLogged(ctx); ctx.Err() == nil {
				lastErr = err
			}
		}
	}
}

func (w *Runner) runLogged(ctx context.Context) error {
	err := w.RunOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("run failed", zap.Error(err))
	}
	return err
}

// RunOnce fetches everything updated since the stored watermark, publishes
// every record that is not TLP:RED in id order, and advances the watermark
// to now when the source reported any update.
func (w *Runner) RunOnce(ctx context.Context) error {
	logger := w.logger.With(zap.String("run_id", uuid.NewString()))

	since, err := w.store.Read(ctx)
	if err != nil {
		return err
	}

	logger.Info("fetching", zap.String("since", since))

	res, err := w.fetcher.Fetch(ctx, since)
	if err != nil {
		return err
	}

	records := res.Records
	domain.SortByID(records)

	logger.Info("fetched", zap.Int("total", res.Total), zap.Int("records", len(records)))

	published, restricted := 0, 0
	for _, rec := range records {
		logger.Info("record",
			zap.Int64("id", rec.ID),
			zap.String("created_at", rec.CreatedAt),
			zap.Any("priority", rec.Priority),
			zap.Int("body_len", utf8.RuneCountInString(rec.Body)),
			zap.String("subject", rec.Heading()),
		)

		if rec.Restricted() {
			restricted++
			logger.Info("skipped TLP:RED record", zap.Int64("id", rec.ID))
			continue
		}

		if err := w.notifier.Publish(ctx, format.Caption(rec)); err != nil {
			return fmt.Errorf("record %d: %w", rec.ID, err)
		}
		published++
	}

	if res.Total <= 0 {
		logger.Info("no updates, watermark unchanged", zap.String("since", since))
		return nil
	}

	now := w.now()
	if err := w.store.Write(ctx, now); err != nil {
		return err
	}

	logger.Info("run complete",
		zap.Int("published", published),
		zap.Int("restricted", restricted),
		zap.Time("watermark", now),
	)
	return nil
}
