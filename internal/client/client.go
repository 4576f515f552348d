// internal/client/client.go
package client

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tamzrod/modbus-client/internal/codec"
	"github.com/tamzrod/modbus-client/internal/config"
	"github.com/tamzrod/modbus-client/internal/events"
	"github.com/tamzrod/modbus-client/internal/fault"
	"github.com/tamzrod/modbus-client/internal/session"
	"github.com/tamzrod/modbus-client/internal/status"
)

const tracerName = "github.com/tamzrod/modbus-client/internal/client"

var errDisconnected = errors.New("client disconnected")

// Observer receives request level measurements. Implementations must not block.
type Observer interface {
	ObserveRequest(op string, took time.Duration, err error)
	ObserveRetry(attempt int, delay time.Duration)
	ObserveState(clientID string, s status.State)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, time.Duration, error) {}
func (nopObserver) ObserveRetry(int, time.Duration)             {}
func (nopObserver) ObserveState(string, status.State)           {}

// TransportFactory builds the transport for validated options.
type TransportFactory func(opts config.ClientOptions, logger zerolog.Logger) session.Transport

// Option customizes a Client.
type Option func(*Client)

func WithTransport(f TransportFactory) Option { return func(c *Client) { c.factory = f } }
func WithLogger(l zerolog.Logger) Option      { return func(c *Client) { c.logger = l } }
func WithObserver(o Observer) Option          { return func(c *Client) { c.observer = o } }
func WithTracer(t trace.Tracer) Option        { return func(c *Client) { c.tracer = t } }
func WithEventQueue(n int) Option             { return func(c *Client) { c.queueSize = n } }

// WithSleep replaces the backoff wait. It must return ctx.Err() when ctx ends first.
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = f }
}

// WithRand replaces the jitter source. f returns [0,1).
func WithRand(f func() float64) Option { return func(c *Client) { c.rand = f } }

// Client is a resilient Modbus TCP client. All methods are goroutine-safe.
//
// One request (including any reconnect it triggers) runs at a time; other
// callers queue on the request slot and give up when their context ends.
type Client struct {
	opts      config.ClientOptions
	codec     codec.Codec
	backoff   Backoff
	logger    zerolog.Logger
	bus       *events.Bus
	tracer    trace.Tracer
	observer  Observer
	factory   TransportFactory
	transport session.Transport
	sleep     func(ctx context.Context, d time.Duration) error
	rand      func() float64
	queueSize int

	// request slot
	sem chan struct{}

	mu          sync.Mutex
	state       status.State
	attempt     int
	gen         uint64
	life        context.Context
	cancel      context.CancelFunc
	lastErr     error
	lastChange  time.Time
	lastSuccess time.Time
	errSince    time.Time
	closed      bool
}

// New validates opts and builds a Disconnected client. It performs no IO.
func New(opts config.ClientOptions, options ...Option) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		opts:     opts,
		codec:    opts.Codec(),
		backoff:  backoffFrom(opts),
		logger:   zerolog.Nop(),
		observer: nopObserver{},
		sleep:    sleepContext,
		rand:     rand.Float64,
		sem:      make(chan struct{}, 1),
		state:    status.Disconnected,
	}
	for _, o := range options {
		o(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if c.factory == nil {
		c.factory = defaultTransport
	}

	c.logger = c.logger.With().
		Str("client_id", opts.ClientID).
		Str("address", opts.Address()).
		Logger()
	c.bus = events.NewBus(c.logger, c.queueSize)
	c.transport = c.factory(opts, c.logger)
	c.lastChange = time.Now()

	return c, nil
}

func defaultTransport(o config.ClientOptions, logger zerolog.Logger) session.Transport {
	return session.New(session.Config{
		Address:        o.Address(),
		SlaveID:        o.SlaveID,
		ConnectTimeout: o.ConnectTimeout,
		RequestTimeout: o.RequestTimeout,
		Logger:         logger,
	})
}

// Options returns the immutable options of the client.
func (c *Client) Options() config.ClientOptions { return c.opts }

// Codec returns the register codec derived from the options.
func (c *Client) Codec() codec.Codec { return c.codec }

// ---- lifecycle ----

// Connect opens the session. It is a no-op while Connected.
func (c *Client) Connect(ctx context.Context) error {
	const op = "connect"

	if err := c.acquire(ctx, op); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fault.Newf(fault.KindNotConnected, op, "client closed")
	}
	if c.state == status.Connected && c.transport.Ready() {
		c.mu.Unlock()
		return nil
	}
	if c.life == nil {
		c.life, c.cancel = context.WithCancel(context.Background())
	}
	gen, life, from := c.gen, c.life, c.state
	c.mu.Unlock()

	// a stale Connected session recovers through Reconnecting
	next := status.Connecting
	switch from {
	case status.Connected:
		next = status.Reconnecting
	case status.Reconnecting:
		next = from
	case status.Disconnected, status.Connecting, status.Faulted:
	}
	if next != from && !c.transition(gen, next, nil, 0, 0) {
		return fault.Newf(fault.KindCancelled, op, "client disconnected")
	}

	rctx, stop := mergeLife(ctx, life)
	defer stop()

	if err := c.transport.Open(rctx); err != nil {
		c.transition(gen, status.Faulted, err, 0, 0)
		return c.checkStale(gen, op, err)
	}
	if !c.transition(gen, status.Connected, nil, 0, 0) {
		// Disconnect ran while dialing; drop the socket it could not see
		_ = c.transport.Close()
		return fault.Newf(fault.KindCancelled, op, "client disconnected")
	}

	c.mu.Lock()
	c.attempt = 0
	c.mu.Unlock()
	return nil
}

// Disconnect moves any state to Disconnected, closes the session and fails
// in-flight requests with Cancelled. It does not wait for the request slot.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.life, c.cancel = nil, nil
	c.gen++
	from := c.state
	c.attempt = 0
	c.mu.Unlock()

	_ = c.transport.Close()

	if from != status.Disconnected {
		c.mu.Lock()
		c.setStateLocked(status.Disconnected, nil, 0, 0)
		c.mu.Unlock()
	}
}

// Close disconnects and stops event delivery. The client cannot be reused.
func (c *Client) Close() error {
	c.Disconnect()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.bus.Close()
	return nil
}

// State is non-blocking.
func (c *Client) State() status.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot reports the current health. It is non-blocking.
func (c *Client) Snapshot() status.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := status.Snapshot{
		ClientID:    c.opts.ClientID,
		State:       c.state,
		Health:      c.state.Health(),
		Attempt:     c.attempt,
		LastChange:  c.lastChange,
		LastSuccess: c.lastSuccess,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
		s.LastErrorCode = fault.CodeOf(c.lastErr)
	}
	if !c.errSince.IsZero() {
		secs := time.Since(c.errSince) / time.Second
		if secs > 0xFFFF {
			secs = 0xFFFF
		}
		s.SecondsInError = uint16(secs)
	}
	return s
}

// Subscribe registers h for state events. The returned func unsubscribes.
func (c *Client) Subscribe(h events.Handler) (unsubscribe func()) {
	return c.bus.Subscribe(h)
}

// DroppedEvents counts events evicted from slow subscriber queues.
func (c *Client) DroppedEvents() uint64 { return c.bus.Dropped() }

// ---- request path ----

func (c *Client) do(ctx context.Context, req session.Request) (session.Response, error) {
	op := req.Op()

	ctx, span := c.tracer.Start(ctx, "modbus."+op, trace.WithAttributes(
		attribute.String("modbus.client_id", c.opts.ClientID),
		attribute.String("modbus.address", c.opts.Address()),
		attribute.Int("modbus.register", int(req.Address)),
		attribute.Int("modbus.function_code", int(req.FunctionCode)),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.execute(ctx, req)
	took := time.Since(start)
	c.observer.ObserveRequest(op, took, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (c *Client) execute(ctx context.Context, req session.Request) (session.Response, error) {
	op := req.Op()

	if err := req.Validate(); err != nil {
		return session.Response{}, err
	}
	if err := c.acquire(ctx, op); err != nil {
		return session.Response{}, err
	}
	defer c.release()

	c.mu.Lock()
	gen, life, state := c.gen, c.life, c.state
	c.mu.Unlock()

	reconnect := false
	switch state {
	case status.Disconnected, status.Connecting:
		return session.Response{}, fault.Newf(fault.KindNotConnected, op, "client is %s", state)
	case status.Faulted:
		if !c.opts.AutoReconnect {
			return session.Response{}, fault.Newf(fault.KindNotConnected, op, "client is faulted")
		}
		reconnect = true
	case status.Reconnecting:
		reconnect = true
	case status.Connected:
		reconnect = !c.transport.Ready()
	}

	rctx, stop := mergeLife(ctx, life)
	defer stop()

	for cycle := 0; ; cycle++ {
		var err error
		if reconnect {
			err = c.reconnect(rctx, gen)
		}
		if err == nil {
			var resp session.Response
			resp, err = c.transport.Send(rctx, req)
			if err == nil {
				c.succeeded(gen)
				return resp, nil
			}
		}

		if err = c.checkStale(gen, op, err); fault.Is(err, fault.KindCancelled) {
			return session.Response{}, err
		}

		if !fault.Retryable(err) {
			if fault.Is(err, fault.KindProtocol) && !c.transport.Ready() {
				c.transition(gen, status.Faulted, err, 0, 0)
			}
			return session.Response{}, err
		}

		if !c.opts.AutoReconnect {
			c.logger.Warn().Err(err).Str("op", op).Msg("request failed, auto-reconnect disabled")
			c.transition(gen, status.Faulted, err, 0, 0)
			return session.Response{}, err
		}
		if cycle >= c.opts.MaxRetries {
			c.logger.Error().Err(err).Str("op", op).Int("retries", c.opts.MaxRetries).Msg("retries exhausted")
			c.transition(gen, status.Faulted, err, 0, 0)
			return session.Response{}, fault.New(fault.KindFaulted, op, err)
		}

		c.logger.Warn().Err(err).Str("op", op).Int("cycle", cycle+1).Msg("transient failure, reconnecting")
		c.recordErr(gen, err)
		reconnect = true
	}
}

// reconnect runs one backoff + close + open cycle.
func (c *Client) reconnect(ctx context.Context, gen uint64) error {
	const op = "reconnect"

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return fault.New(fault.KindCancelled, op, errDisconnected)
	}
	delay := c.backoff.Delay(c.attempt, c.rand)
	c.attempt++
	attempt := c.attempt
	cause := c.lastErr
	c.mu.Unlock()

	if !c.transition(gen, status.Reconnecting, cause, attempt, delay) {
		return fault.New(fault.KindCancelled, op, errDisconnected)
	}
	c.observer.ObserveRetry(attempt, delay)
	c.logger.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("backing off")

	if err := c.sleep(ctx, delay); err != nil {
		return fault.New(fault.KindCancelled, op, err)
	}

	_ = c.transport.Close()
	if err := c.transport.Open(ctx); err != nil {
		c.logger.Debug().Err(err).Int("attempt", attempt).Msg("reconnect failed")
		return err
	}
	if !c.transition(gen, status.Connected, nil, 0, 0) {
		_ = c.transport.Close()
		return fault.New(fault.KindCancelled, op, errDisconnected)
	}
	return nil
}

// ---- state helpers ----

// transition applies from->to when gen is still current. It reports
// whether the state was changed.
func (c *Client) transition(gen uint64, to status.State, err error, attempt int, delay time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return false
	}
	if terr := status.Transition(c.state, to); terr != nil {
		c.logger.Error().Err(terr).Msg("rejected state change")
		return false
	}
	c.setStateLocked(to, err, attempt, delay)
	return true
}

// setStateLocked records the change and emits the event. c.mu must be held
// so events leave in transition order.
func (c *Client) setStateLocked(to status.State, err error, attempt int, delay time.Duration) {
	now := time.Now()
	ev := status.Event{
		ClientID: c.opts.ClientID,
		Previous: c.state,
		Current:  to,
		Err:      err,
		Attempt:  attempt,
		Delay:    delay,
		At:       now,
	}

	c.state = to
	c.lastChange = now
	if err != nil {
		c.lastErr = err
	}
	switch to {
	case status.Connected, status.Disconnected:
		c.errSince = time.Time{}
	case status.Reconnecting, status.Faulted:
		if c.errSince.IsZero() {
			c.errSince = now
		}
	case status.Connecting:
	}

	l := c.logger.With().Str("from", ev.Previous.String()).Str("to", to.String()).Logger()
	switch to {
	case status.Faulted:
		l.Error().Err(err).Msg("client faulted")
	case status.Reconnecting:
		l.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")
	case status.Connected, status.Disconnected:
		l.Info().Msg("state changed")
	case status.Connecting:
		l.Debug().Msg("state changed")
	}

	c.observer.ObserveState(c.opts.ClientID, to)
	c.bus.Publish(ev)
}

func (c *Client) succeeded(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.attempt = 0
	c.lastSuccess = time.Now()
}

func (c *Client) recordErr(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.lastErr = err
	}
}

// checkStale turns any error observed after a Disconnect into Cancelled.
func (c *Client) checkStale(gen uint64, op string, err error) error {
	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale && !fault.Is(err, fault.KindCancelled) {
		return fault.New(fault.KindCancelled, op, errDisconnected)
	}
	return err
}

// ---- request slot ----

func (c *Client) acquire(ctx context.Context, op string) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fault.New(fault.KindCancelled, op, ctx.Err())
	}
}

func (c *Client) release() { <-c.sem }

// mergeLife derives a context that also ends when the connect generation
// is torn down by Disconnect.
func mergeLife(ctx, life context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancelCause(ctx)
	if life == nil {
		return merged, func() { cancel(nil) }
	}
	stop := context.AfterFunc(life, func() { cancel(errDisconnected) })
	return merged, func() {
		stop()
		cancel(nil)
	}
}
