package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/journal"
)

// Watcher subscribes to the engine event channel and forwards lifecycle
// events to the notifier. The notifier's event filter decides which of them
// actually reach a channel.
type Watcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewWatcher creates a Watcher on the given bus and notifier.
func NewWatcher(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify-watcher")),
	}
}

// Run consumes the event channel until the context ends. Delivery failures
// are logged and never interrupt the loop.
func (w *Watcher) Run(ctx context.Context) error {
	msgCh, err := w.bus.Subscribe(ctx, journal.EventChannel)
	if err != nil {
		return fmt.Errorf("notify: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-msgCh:
			if !ok {
				return nil
			}

			var ev domain.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				w.logger.Warn("undecodable event payload",
					slog.String("error", err.Error()),
				)
				continue
			}

			title, message, notable := format(ev)
			if !notable {
				continue
			}
			if err := w.notifier.Notify(ctx, string(ev.Type), title, message); err != nil {
				w.logger.Error("notification failed",
					slog.String("type", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// format renders an operator-facing message for the event. Routine events
// (trades, claims) return notable=false and are never sent.
func format(ev domain.Event) (title, message string, notable bool) {
	switch ev.Type {
	case domain.EventMarketCreated:
		return "Market created",
			fmt.Sprintf("Market #%d created with %d initial liquidity.", ev.MarketID, ev.Amount),
			true
	case domain.EventMarketResolved:
		return "Market resolved",
			fmt.Sprintf("Market #%d resolved on option %d.", ev.MarketID, ev.Option),
			true
	case domain.EventMarketInvalidated:
		return "Market invalidated",
			fmt.Sprintf("Market #%d was invalidated; refunds are open and its fees were voided.", ev.MarketID),
			true
	case domain.EventMarketDisputed:
		return "Market disputed",
			fmt.Sprintf("Market #%d was disputed: %s", ev.MarketID, ev.Reason),
			true
	case domain.EventFeesWithdrawn:
		return "Fees withdrawn",
			fmt.Sprintf("%d platform fees were withdrawn to the fee collector.", ev.Amount),
			true
	default:
		return "", "", false
	}
}
