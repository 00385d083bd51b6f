// Package trade enforces the trade submission rules in front of a
// store.Store: versions never go backwards per trade id, and maturity dates
// are not in the past. It also exposes the expiry sweep.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atmx/tradestore/internal/metrics"
	"github.com/atmx/tradestore/internal/model"
	"github.com/atmx/tradestore/internal/store"
)

// Service validates trade writes against store state. SaveTrade serialises
// its read-max-then-write sequence per trade id within this process, so two
// concurrent saves of one id cannot both pass the version check against the
// same stored maximum. Multiple processes sharing a store are not
// coordinated.
type Service struct {
	store store.Store
	now   func() time.Time
	locks keyLock
}

// NewService creates a new trade service. now supplies the current date
// for the maturity check; nil selects time.Now.
func NewService(st store.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store: st,
		now:   now,
	}
}

// SaveTrade checks t against the stored maximum version and today's date,
// then upserts it. The version check runs first, so a stale trade with a
// past maturity fails with ErrStaleTrade.
func (s *Service) SaveTrade(ctx context.Context, t *model.Trade) (*model.Trade, error) {
	start := time.Now()
	defer func() {
		metrics.TradeSaveLatency.Observe(time.Since(start).Seconds())
	}()

	if err := t.Validate(); err != nil {
		metrics.TradeSavesTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}

	unlock := s.locks.Lock(t.TradeID)
	defer unlock()

	maxVersion, found, err := s.store.GetMaxVersion(ctx, t.TradeID)
	if err != nil {
		metrics.TradeSavesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("trade: load max version of %s: %w", t.TradeID, err)
	}
	if found && t.Version < maxVersion {
		metrics.TradeSavesTotal.WithLabelValues(metrics.OutcomeStale).Inc()
		slog.Warn("stale trade rejected",
			"trade_id", t.TradeID,
			"version", t.Version,
			"max_version", maxVersion,
		)
		return nil, fmt.Errorf("%w: %s v%d, stored v%d", ErrStaleTrade, t.TradeID, t.Version, maxVersion)
	}

	today := model.DateOf(s.now())
	if model.DateOf(t.MaturityDate).Before(today) {
		metrics.TradeSavesTotal.WithLabelValues(metrics.OutcomePastMaturity).Inc()
		slog.Warn("trade with past maturity rejected",
			"trade_id", t.TradeID,
			"version", t.Version,
			"maturity_date", model.FormatDate(t.MaturityDate),
			"today", model.FormatDate(today),
		)
		return nil, fmt.Errorf("%w: %s v%d matures %s", ErrPastMaturity,
			t.TradeID, t.Version, model.FormatDate(t.MaturityDate))
	}

	saved, err := s.store.Save(ctx, t)
	if err != nil {
		metrics.TradeSavesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("trade: save %s v%d: %w", t.TradeID, t.Version, err)
	}
	metrics.TradeSavesTotal.WithLabelValues(metrics.OutcomeSaved).Inc()

	slog.Info("trade saved",
		"trade_id", saved.TradeID,
		"version", saved.Version,
		"replaced", found && saved.Version == maxVersion,
		"maturity_date", model.FormatDate(saved.MaturityDate),
	)
	return saved, nil
}

// GetTradeByIDAndVersion returns the stored row, or ok=false when absent.
func (s *Service) GetTradeByIDAndVersion(ctx context.Context, tradeID string, version int) (*model.Trade, bool, error) {
	return s.store.GetByIDAndVersion(ctx, tradeID, version)
}

// UpdateExpireFlag marks every row maturing before cutoff as expired. The
// caller supplies the date; this is normally triggered once a day by an
// external scheduler.
func (s *Service) UpdateExpireFlag(ctx context.Context, cutoff time.Time) error {
	n, err := s.store.BulkExpire(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("trade: expire before %s: %w", model.FormatDate(cutoff), err)
	}
	metrics.ExpirySweepsTotal.Inc()
	metrics.TradesExpiredTotal.Add(float64(n))

	slog.Info("expiry sweep complete",
		"cutoff", model.FormatDate(cutoff),
		"expired", n,
	)
	return nil
}

// DeleteAll wipes the store. Administrative use only.
func (s *Service) DeleteAll(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("trade: delete all: %w", err)
	}
	slog.Warn("all trades deleted")
	return nil
}

// IsRejection reports whether err is one of the domain rejections rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrStaleTrade) ||
		errors.Is(err, ErrPastMaturity) ||
		errors.Is(err, ErrInvalidTrade)
}
