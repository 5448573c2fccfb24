package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/pos-register/internal/event"
	"github.com/utafrali/pos-register/internal/pricing"
	pkgkafka "github.com/utafrali/pos-register/pkg/kafka"
	"github.com/utafrali/pos-register/pkg/logger"
)

// HandleTaxRateChanged is the consumer handler for tax_rate_changed events.
// An event without a usable rate makes the service re-read it from the back
// office, which falls back to the configured default.
func (s *RegisterService) HandleTaxRateChanged(ctx context.Context, e *pkgkafka.Event) error {
	var data event.TaxRateChangedData
	if err := e.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode %s event %s: %w", e.EventType, e.EventID, err)
	}

	rate, ok := pricing.ParseTaxRate(data.RatePercent)
	if !ok {
		if data.RatePercent != nil {
			logger.WithContext(ctx, s.logger).WarnContext(ctx, "tax_rate_changed event has an unusable rate, re-reading it",
				slog.String("event_id", e.EventID),
				slog.Any("rate_percent", data.RatePercent),
			)
		}
		rate = s.fetchTaxRate(ctx)
	}

	updated := s.SetTaxRate(ctx, rate)
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "tax rate changed",
		slog.String("event_id", e.EventID),
		slog.String("rate_percent", rate.String()),
		slog.Int("terminals", updated),
	)
	return nil
}
