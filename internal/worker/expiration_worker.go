package worker

import (
	"context"
	"time"

	"app/internal/usecase"

	log "github.com/sirupsen/logrus"
)

const defaultSweepInterval = time.Minute

// SweepOptionsは期限切れ掃除ワーカーの設定。
type SweepOptions struct {
	Logger   *log.Entry
	Interval time.Duration
}

type SweepOption func(*SweepOptions)

func WithLogger(logger *log.Entry) SweepOption {
	return func(opts *SweepOptions) {
		opts.Logger = logger
	}
}

func WithInterval(interval time.Duration) SweepOption {
	return func(opts *SweepOptions) {
		opts.Interval = interval
	}
}

// ExpirationWorkerは一定間隔で未入金注文の掃除を回す。
// tick間で保持するリースやロックはない。毎回その時点の条件で選び直す。
type ExpirationWorker struct {
	sweeper  *usecase.ExpirationUsecase
	logger   *log.Entry
	interval time.Duration
}

func NewExpirationWorker(sweeper *usecase.ExpirationUsecase, options ...SweepOption) *ExpirationWorker {
	opts := SweepOptions{
		Interval: defaultSweepInterval,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "expiration-worker")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}

	return &ExpirationWorker{
		sweeper:  sweeper,
		logger:   logger,
		interval: opts.Interval,
	}
}

// Runはctxが終わるまで回り続ける。goroutineで呼ぶ。
func (w *ExpirationWorker) Run(ctx context.Context) {
	w.logger.WithField("interval", w.interval.String()).Info("expiration worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ExpirationWorker) runOnce(ctx context.Context) {
	result, err := w.sweeper.Sweep(ctx)
	if err != nil {
		w.logger.WithError(err).Error("expiration sweep failed")
		return
	}
	if result.CancelledCount > 0 {
		w.logger.WithFields(log.Fields{
			"cancelled_count": result.CancelledCount,
			"orders":          result.CancelledOrders,
		}).Info("expired unpaid orders cancelled")
	}
}
