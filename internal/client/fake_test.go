// internal/client/fake_test.go
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-client/internal/config"
	"github.com/tamzrod/modbus-client/internal/fault"
	"github.com/tamzrod/modbus-client/internal/session"
	"github.com/tamzrod/modbus-client/internal/status"
)

// fakeTransport scripts Open and Send outcomes.
type fakeTransport struct {
	mu sync.Mutex

	openErrs []error // consumed in order; exhausted => success
	sendFn   func(ctx context.Context, req session.Request) (session.Response, error)
	// readyAfterErr controls Ready() after a failed Send.
	readyAfterErr bool

	ready  bool
	opens  int
	closes int
	sends  []session.Request
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if err := ctx.Err(); err != nil {
		return fault.New(fault.KindCancelled, "connect", err)
	}
	if len(f.openErrs) > 0 {
		err := f.openErrs[0]
		f.openErrs = f.openErrs[1:]
		if err != nil {
			f.ready = false
			return err
		}
	}
	f.ready = true
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, req session.Request) (session.Response, error) {
	f.mu.Lock()
	if !f.ready {
		f.mu.Unlock()
		return session.Response{}, fault.Newf(fault.KindNotConnected, req.Op(), "session not open")
	}
	f.sends = append(f.sends, req)
	fn := f.sendFn
	f.mu.Unlock()

	if fn == nil {
		return session.Response{Registers: make([]uint16, req.Quantity)}, nil
	}
	resp, err := fn(ctx, req)
	if err != nil {
		f.mu.Lock()
		f.ready = f.readyAfterErr
		f.mu.Unlock()
	}
	return resp, err
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.ready = false
	return nil
}

func (f *fakeTransport) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

// gatedTransport holds the next armed Open until gate is closed. The dial
// then completes regardless of the caller's context.
type gatedTransport struct {
	*fakeTransport
	armed   atomic.Bool
	started chan struct{}
	gate    chan struct{}
}

func newGatedTransport() *gatedTransport {
	return &gatedTransport{
		fakeTransport: &fakeTransport{},
		started:       make(chan struct{}),
		gate:          make(chan struct{}),
	}
}

func (g *gatedTransport) Open(ctx context.Context) error {
	if g.armed.CompareAndSwap(true, false) {
		close(g.started)
		<-g.gate
		return g.fakeTransport.Open(context.Background())
	}
	return g.fakeTransport.Open(ctx)
}

// recorder captures backoff waits without sleeping.
type recorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recorder) got() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// eventLog collects published events.
type eventLog struct {
	mu  sync.Mutex
	evs []status.Event
}

func (l *eventLog) add(ev status.Event) {
	l.mu.Lock()
	l.evs = append(l.evs, ev)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []status.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]status.Event(nil), l.evs...)
}

func testOptions() config.ClientOptions {
	o := config.DefaultOptions("plc.test")
	o.ReconnectDelay = 100 * time.Millisecond
	o.MaxRetryDelay = time.Second
	o.RetryJitterFactor = 0
	o.MaxRetries = 3
	return o
}

func newTestClient(opts config.ClientOptions, ft *fakeTransport, rec *recorder) *Client {
	c, err := New(opts,
		WithTransport(func(config.ClientOptions, zerolog.Logger) session.Transport { return ft }),
		WithSleep(rec.sleep),
		WithRand(func() float64 { return 0.5 }),
	)
	if err != nil {
		panic(err)
	}
	return c
}

func timeoutErr() error {
	return fault.Newf(fault.KindRequestTimeout, "read_holding", "i/o timeout")
}
