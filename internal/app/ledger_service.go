package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/echohue/internal/device"
	"github.com/dokzlo13/echohue/internal/eventbus"
	"github.com/dokzlo13/echohue/internal/ledger"
)

// LedgerService records bus events into the audit ledger and prunes old
// entries.
type LedgerService struct {
	ledger    *ledger.Ledger
	retention time.Duration
	interval  time.Duration
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(l *ledger.Ledger, retention, interval time.Duration) *LedgerService {
	return &LedgerService{ledger: l, retention: retention, interval: interval}
}

// Subscribe registers the recorder on the bus.
func (s *LedgerService) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeLightChanged, s.recordLightChange)
	bus.Subscribe(eventbus.EventTypeDiscovery, s.recordDiscovery)
}

func (s *LedgerService) recordLightChange(event eventbus.Event) {
	change, ok := event.Data.(device.Change)
	if !ok {
		return
	}

	results := make([]map[string]any, 0, len(change.Results))
	for _, r := range change.Results {
		entry := map[string]any{"attribute": r.Key, "ok": r.OK()}
		if r.OK() {
			entry["value"] = r.Value
		} else if r.Cause != nil {
			entry["error"] = r.Cause.Error()
		}
		results = append(results, entry)
	}

	payload := map[string]any{
		"name":    change.Name,
		"results": results,
		"state":   change.State.JSON(),
	}
	if err := s.ledger.AppendForLight(ledger.EventLightCommand, "api", change.Index+1, payload); err != nil {
		log.Error().Err(err).Int("light", change.Index+1).Msg("Failed to record light command")
	}
}

func (s *LedgerService) recordDiscovery(event eventbus.Event) {
	d, ok := event.Data.(eventbus.Discovery)
	if !ok {
		return
	}

	payload := map[string]any{
		"search_target": d.SearchTarget,
		"remote":        d.Remote,
	}
	if err := s.ledger.Append(ledger.EventDiscoveryReply, "ssdp", payload); err != nil {
		log.Error().Err(err).Msg("Failed to record discovery reply")
	}
}

// Start begins the periodic cleanup.
func (s *LedgerService) Start(ctx context.Context) {
	go s.runCleanup(ctx)
}

// runCleanup periodically cleans up old ledger entries.
func (s *LedgerService) runCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *LedgerService) cleanup() {
	deleted, err := s.ledger.DeleteOlderThan(s.retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", s.retention).Msg("Cleaned up old ledger entries")
	}
}
