package workers

import (
	"chat-relay/observability"
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const gcDiscardRatio = 0.5

// BadgerGCWorker periodically rewrites value log files of the message store.
type BadgerGCWorker struct {
	log      *slog.Logger
	db       *badger.DB
	interval time.Duration
	metrics  *observability.Metrics
}

func NewBadgerGCWorker(log *slog.Logger, db *badger.DB, interval time.Duration, metrics *observability.Metrics) *BadgerGCWorker {
	return &BadgerGCWorker{log: log, db: db, interval: interval, metrics: metrics}
}

func (w *BadgerGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping value log gc")
			return nil
		case <-ticker.C:
			if err := w.collect(); err != nil {
				return err
			}
		}
	}
}

// collect runs the gc until badger has nothing left to rewrite.
func (w *BadgerGCWorker) collect() error {
	rewritten := 0
	for {
		err := w.db.RunValueLogGC(gcDiscardRatio)
		if stdErrors.Is(err, badger.ErrNoRewrite) || stdErrors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			return err
		}
		rewritten++
		w.metrics.BadgerGCCollected.Inc()
	}
	if rewritten > 0 {
		w.log.Info("Value log gc done", "rewritten", rewritten)
	}
	return nil
}
