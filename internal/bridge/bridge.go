// internal/bridge/bridge.go
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-client/internal/fault"
	"github.com/tamzrod/modbus-client/internal/ingest"
	"github.com/tamzrod/modbus-client/internal/poller"
	"github.com/tamzrod/modbus-client/internal/status"
)

// StateSource reports the client's own lifecycle view.
type StateSource interface {
	Snapshot() status.Snapshot
}

// Observer receives delivery outcomes. Optional.
type Observer interface {
	ObserveDelivery(err error)
}

// Config holds the bridge's runtime settings.
type Config struct {
	// WriteTimeout bounds each status mirror write. Zero means 2s.
	WriteTimeout time.Duration
	// Tick drives seconds_in_error. Zero means 1s.
	Tick time.Duration
}

// Bridge consumes poll results, delivers them to a sink and keeps the
// device-level health snapshot. Runner-owned state: only Run mutates it.
type Bridge struct {
	cfg    Config
	sink   ingest.Sink
	src    StateSource
	mirror *StatusMirror
	logger zerolog.Logger
	obs    Observer

	mu     sync.RWMutex
	snap   status.Snapshot
	latest *poller.PollResult
}

// New builds a bridge. mirror may be nil when the status block is disabled.
func New(cfg Config, sink ingest.Sink, src StateSource, mirror *StatusMirror, logger zerolog.Logger, obs Observer) *Bridge {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	return &Bridge{
		cfg:    cfg,
		sink:   sink,
		src:    src,
		mirror: mirror,
		logger: logger.With().Str("component", "bridge").Logger(),
		obs:    obs,
		snap:   status.Snapshot{Health: status.HealthUnknown},
	}
}

// Run blocks until ctx ends or in is closed.
func (b *Bridge) Run(ctx context.Context, in <-chan poller.PollResult) {
	ticker := time.NewTicker(b.cfg.Tick)
	defer ticker.Stop()

	// Full block write on start (identity re-assert).
	b.writeStatus(ctx, b.Health())

	for {
		select {
		case <-ctx.Done():
			return

		case res, ok := <-in:
			if !ok {
				return
			}
			b.Handle(ctx, res)

		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Handle delivers one result and folds its outcome into the snapshot.
func (b *Bridge) Handle(ctx context.Context, res poller.PollResult) {
	client := b.src.Snapshot()

	b.mu.Lock()
	prev := b.snap
	next := prev
	b.merge(&next, client)

	if res.Err == nil {
		next.Health = status.HealthOK
		next.LastErrorCode = 0
		next.SecondsInError = 0
	} else {
		next.Health = errorHealth(client.Health)
		next.LastErrorCode = errorCode(res.Err)
		// seconds_in_error advances on the tick only
	}
	b.snap = next
	b.latest = &res
	b.mu.Unlock()

	err := b.sink.Deliver(ctx, ingest.NewBatch(res, next))
	if b.obs != nil {
		b.obs.ObserveDelivery(err)
	}
	if err != nil {
		b.logger.Warn().Err(err).Str("device", res.Device).Msg("delivery failed")
	}

	if changed(prev, next) {
		b.writeStatus(ctx, next)
	}
}

// Tick advances seconds_in_error while the device is not healthy and
// refreshes lifecycle fields from the client.
func (b *Bridge) Tick(ctx context.Context) {
	client := b.src.Snapshot()

	b.mu.Lock()
	prev := b.snap
	next := prev
	b.merge(&next, client)
	if next.Health != status.HealthOK && next.Health != status.HealthUnknown && next.SecondsInError < 0xFFFF {
		next.SecondsInError++
	}
	b.snap = next
	b.mu.Unlock()

	if changed(prev, next) {
		b.writeStatus(ctx, next)
	}
}

// Health returns the current device-level snapshot.
func (b *Bridge) Health() status.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Latest returns the most recent poll result, if any.
func (b *Bridge) Latest() (poller.PollResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return poller.PollResult{}, false
	}
	return *b.latest, true
}

// merge copies lifecycle fields from the client. Health stays poll-driven
// except when the client itself is not connected.
func (b *Bridge) merge(s *status.Snapshot, client status.Snapshot) {
	s.ClientID = client.ClientID
	s.State = client.State
	s.Attempt = client.Attempt
	s.LastError = client.LastError
	s.LastChange = client.LastChange
	s.LastSuccess = client.LastSuccess

	if client.State != status.Connected && s.Health != status.HealthUnknown {
		s.Health = errorHealth(client.Health)
	}
}

func (b *Bridge) writeStatus(ctx context.Context, s status.Snapshot) {
	if b.mirror == nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, b.cfg.WriteTimeout)
	defer cancel()
	if err := b.mirror.Write(wctx, s); err != nil {
		b.logger.Debug().Err(err).Uint16("base", b.mirror.BaseAddr()).Msg("status write failed")
	}
}

// errorHealth picks the failure health code: Stale while reconnecting,
// Disabled when deliberately disconnected, Error otherwise.
func errorHealth(client uint16) uint16 {
	switch client {
	case status.HealthStale, status.HealthDisabled:
		return client
	}
	return status.HealthError
}

// errorCode extracts a best-effort code; 1 (generic) when none is exposed.
func errorCode(err error) uint16 {
	if code := fault.CodeOf(err); code != 0 {
		return code
	}
	return 1
}

func changed(a, b status.Snapshot) bool {
	return a.Health != b.Health ||
		a.LastErrorCode != b.LastErrorCode ||
		a.SecondsInError != b.SecondsInError ||
		a.State != b.State ||
		a.Attempt != b.Attempt
}
