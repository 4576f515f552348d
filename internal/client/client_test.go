// internal/client/client_test.go
package client

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/modbus-client/internal/codec"
	"github.com/tamzrod/modbus-client/internal/config"
	"github.com/tamzrod/modbus-client/internal/fault"
	"github.com/tamzrod/modbus-client/internal/session"
	"github.com/tamzrod/modbus-client/internal/status"
)

func TestNewRejectsInvalidOptions(t *testing.T) {
	o := testOptions()
	o.Port = 0

	c, err := New(o)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestRequestWhileDisconnected(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(testOptions(), ft, &recorder{})

	_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
	assert.ErrorIs(t, err, fault.ErrNotConnected)
	assert.Equal(t, status.Disconnected, c.State())
	assert.Zero(t, ft.sendCount())
	assert.Zero(t, ft.opens)
}

func TestLocalValidationBeforeIO(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(testOptions(), ft, &recorder{})

	_, err := c.ReadHoldingRegisters(context.Background(), 0, 0)
	assert.ErrorIs(t, err, fault.ErrInvalidAddress)

	require.NoError(t, c.Connect(context.Background()))
	_, err = c.ReadInputRegisters(context.Background(), 65535, 2)
	assert.ErrorIs(t, err, fault.ErrInvalidAddress)
	assert.Zero(t, ft.sendCount())
	assert.Equal(t, status.Connected, c.State())
}

func TestConnectAndRead(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(testOptions(), ft, &recorder{})
	log := &eventLog{}
	c.Subscribe(log.add)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, status.Connected, c.State())

	words, err := c.ReadHoldingRegisters(context.Background(), 10, 4)
	require.NoError(t, err)
	assert.Len(t, words, 4)

	// no-op when already connected
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, 1, ft.opens)

	require.Eventually(t, func() bool { return len(log.snapshot()) == 2 }, time.Second, time.Millisecond)
	evs := log.snapshot()
	assert.Equal(t, status.Disconnected, evs[0].Previous)
	assert.Equal(t, status.Connecting, evs[0].Current)
	assert.Equal(t, status.Connecting, evs[1].Previous)
	assert.Equal(t, status.Connected, evs[1].Current)
	assert.Equal(t, c.Options().ClientID, evs[1].ClientID)
}

func TestConnectFailureFaults(t *testing.T) {
	refused := fault.Newf(fault.KindConnectRefused, "connect", "connection refused")
	ft := &fakeTransport{openErrs: []error{refused}}
	c := newTestClient(testOptions(), ft, &recorder{})

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, fault.ErrConnectRefused)
	assert.Equal(t, status.Faulted, c.State())

	snap := c.Snapshot()
	assert.Equal(t, status.HealthError, snap.Health)
	assert.Equal(t, uint16(0x100)+uint16(fault.KindConnectRefused), snap.LastErrorCode)
	assert.Contains(t, snap.LastError, "refused")

	// explicit retry succeeds
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, status.Connected, c.State())
	assert.Equal(t, status.HealthOK, c.Snapshot().Health)
}

func TestRetriesExhaustedEndsFaulted(t *testing.T) {
	ft := &fakeTransport{
		sendFn: func(context.Context, session.Request) (session.Response, error) {
			return session.Response{}, timeoutErr()
		},
	}
	rec := &recorder{}
	c := newTestClient(testOptions(), ft, rec)
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
	require.Error(t, err)
	assert.Equal(t, fault.KindFaulted, fault.KindOf(err))
	assert.ErrorIs(t, err, fault.ErrRequestTimeout)

	assert.Equal(t, 4, ft.sendCount())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, rec.got())
	assert.Equal(t, status.Faulted, c.State())
	assert.Equal(t, 3, c.Snapshot().Attempt)
}

func TestAttemptResetAfterSuccess(t *testing.T) {
	var calls atomic.Int32
	ft := &fakeTransport{
		sendFn: func(_ context.Context, req session.Request) (session.Response, error) {
			n := calls.Add(1)
			if n == 1 || n == 3 {
				return session.Response{}, timeoutErr()
			}
			return session.Response{Registers: make([]uint16, req.Quantity)}, nil
		},
	}
	rec := &recorder{}
	c := newTestClient(testOptions(), ft, rec)
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Snapshot().Attempt)

	_, err = c.ReadHoldingRegisters(context.Background(), 0, 1)
	require.NoError(t, err)

	// second failure starts from the base delay again
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, rec.got())
	assert.Equal(t, status.Connected, c.State())
}

func TestAutoReconnectDisabled(t *testing.T) {
	ft := &fakeTransport{
		sendFn: func(context.Context, session.Request) (session.Response, error) {
			return session.Response{}, timeoutErr()
		},
	}
	opts := testOptions()
	opts.AutoReconnect = false
	rec := &recorder{}
	c := newTestClient(opts, ft, rec)
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
	assert.Equal(t, fault.KindRequestTimeout, fault.KindOf(err))
	assert.Equal(t, status.Faulted, c.State())
	assert.Empty(t, rec.got())
	assert.Equal(t, 1, ft.sendCount())

	_, err = c.ReadHoldingRegisters(context.Background(), 0, 1)
	assert.ErrorIs(t, err, fault.ErrNotConnected)
	assert.Equal(t, 1, ft.sendCount())
}

func TestFaultedRecoversOnNextRequest(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	ft := &fakeTransport{
		sendFn: func(_ context.Context, req session.Request) (session.Response, error) {
			if fail.Load() {
				return session.Response{}, timeoutErr()
			}
			return session.Response{Registers: make([]uint16, req.Quantity)}, nil
		},
	}
	opts := testOptions()
	opts.MaxRetries = 0
	rec := &recorder{}
	c := newTestClient(opts, ft, rec)
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
	assert.ErrorIs(t, err, fault.ErrFaulted)
	assert.Equal(t, status.Faulted, c.State())
	assert.Empty(t, rec.got())

	fail.Store(false)
	_, err = c.ReadHoldingRegisters(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, status.Connected, c.State())
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, rec.got())
	assert.Equal(t, 2, ft.opens)
}

func TestReconnectFailuresEmitAttempts(t *testing.T) {
	refused := fault.Newf(fault.KindConnectRefused, "connect", "connection refused")
	ft := &fakeTransport{
		openErrs: []error{nil, refused, refused},
		sendFn: func(context.Context, session.Request) (session.Response, error) {
			return session.Response{}, timeoutErr()
		},
	}
	opts := testOptions()
	opts.MaxRetries = 2
	c := newTestClient(opts, ft, &recorder{})
	require.NoError(t, c.Connect(context.Background()))

	log := &eventLog{}
	c.Subscribe(log.add)

	_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
	assert.ErrorIs(t, err, fault.ErrFaulted)
	assert.ErrorIs(t, err, fault.ErrConnectRefused)
	assert.Equal(t, 1, ft.sendCount())

	require.Eventually(t, func() bool { return len(log.snapshot()) == 3 }, time.Second, time.Millisecond)
	evs := log.snapshot()

	assert.Equal(t, status.Connected, evs[0].Previous)
	assert.Equal(t, status.Reconnecting, evs[0].Current)
	assert.Equal(t, 1, evs[0].Attempt)
	assert.Equal(t, 100*time.Millisecond, evs[0].Delay)
	assert.ErrorIs(t, evs[0].Err, fault.ErrRequestTimeout)

	assert.Equal(t, status.Reconnecting, evs[1].Previous)
	assert.Equal(t, status.Reconnecting, evs[1].Current)
	assert.Equal(t, 2, evs[1].Attempt)
	assert.Equal(t, 200*time.Millisecond, evs[1].Delay)

	assert.Equal(t, status.Faulted, evs[2].Current)
}

func TestProtocolErrorNotRetried(t *testing.T) {
	for _, ready := range []bool{false, true} {
		ft := &fakeTransport{
			readyAfterErr: ready,
			sendFn: func(context.Context, session.Request) (session.Response, error) {
				return session.Response{}, fault.Newf(fault.KindProtocol, "read_holding", "unit id mismatch")
			},
		}
		rec := &recorder{}
		c := newTestClient(testOptions(), ft, rec)
		require.NoError(t, c.Connect(context.Background()))

		_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
		assert.ErrorIs(t, err, fault.ErrProtocol)
		assert.Equal(t, 1, ft.sendCount())
		assert.Empty(t, rec.got())

		if ready {
			assert.Equal(t, status.Connected, c.State())
		} else {
			assert.Equal(t, status.Faulted, c.State())
		}
	}
}

func TestWriteRejectedSurfacesImmediately(t *testing.T) {
	rejected := fault.New(fault.KindWriteRejected, "write_single", errors.New("exception 4"))
	rejected.ExceptionCode = 4
	ft := &fakeTransport{
		readyAfterErr: true,
		sendFn: func(context.Context, session.Request) (session.Response, error) {
			return session.Response{}, rejected
		},
	}
	c := newTestClient(testOptions(), ft, &recorder{})
	require.NoError(t, c.Connect(context.Background()))

	err := c.WriteSingleRegister(context.Background(), 1, 2)
	assert.ErrorIs(t, err, fault.ErrWriteRejected)
	assert.Equal(t, status.Connected, c.State())
	assert.Equal(t, 1, ft.sendCount())
}

func TestCancelDuringBackoff(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	ft := &fakeTransport{
		sendFn: func(_ context.Context, req session.Request) (session.Response, error) {
			if fail.Load() {
				return session.Response{}, timeoutErr()
			}
			return session.Response{Registers: make([]uint16, req.Quantity)}, nil
		},
	}
	c, err := New(testOptions(),
		WithTransport(func(_ config.ClientOptions, _ zerolog.Logger) session.Transport { return ft }),
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			if fail.Load() {
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		}),
	)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.ReadHoldingRegisters(ctx, 0, 1)
		done <- err
	}()

	require.Eventually(t, func() bool { return c.State() == status.Reconnecting }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, fault.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("request did not observe cancellation")
	}
	assert.Equal(t, status.Reconnecting, c.State())

	// the next caller resumes the reconnect
	fail.Store(false)
	_, err = c.ReadHoldingRegisters(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, status.Connected, c.State())
}

func TestDisconnectCancelsInFlight(t *testing.T) {
	ft := &fakeTransport{
		sendFn: func(ctx context.Context, req session.Request) (session.Response, error) {
			<-ctx.Done()
			return session.Response{}, fault.New(fault.KindCancelled, req.Op(), ctx.Err())
		},
	}
	c := newTestClient(testOptions(), ft, &recorder{})
	require.NoError(t, c.Connect(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
		done <- err
	}()

	require.Eventually(t, func() bool { return ft.sendCount() == 1 }, time.Second, time.Millisecond)
	c.Disconnect()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, fault.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("in-flight request not cancelled")
	}
	assert.Equal(t, status.Disconnected, c.State())
	assert.GreaterOrEqual(t, ft.closes, 1)

	_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
	assert.ErrorIs(t, err, fault.ErrNotConnected)
}

func TestDisconnectDuringConnectClosesSession(t *testing.T) {
	gt := newGatedTransport()
	gt.armed.Store(true)
	c, err := New(testOptions(),
		WithTransport(func(config.ClientOptions, zerolog.Logger) session.Transport { return gt }),
		WithSleep((&recorder{}).sleep),
	)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()

	<-gt.started
	c.Disconnect()
	close(gt.gate)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, fault.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("connect did not return")
	}
	assert.Equal(t, status.Disconnected, c.State())
	assert.False(t, gt.Ready(), "session left open after disconnect")
	assert.Equal(t, 1, gt.opens)
}

func TestDisconnectDuringReconnectClosesSession(t *testing.T) {
	gt := newGatedTransport()
	var calls atomic.Int32
	gt.sendFn = func(_ context.Context, req session.Request) (session.Response, error) {
		if calls.Add(1) == 1 {
			return session.Response{}, timeoutErr()
		}
		return session.Response{Registers: make([]uint16, req.Quantity)}, nil
	}
	c, err := New(testOptions(),
		WithTransport(func(config.ClientOptions, zerolog.Logger) session.Transport { return gt }),
		WithSleep((&recorder{}).sleep),
	)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	gt.armed.Store(true)

	done := make(chan error, 1)
	go func() {
		_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
		done <- err
	}()

	<-gt.started
	c.Disconnect()
	close(gt.gate)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, fault.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("request did not return")
	}
	assert.Equal(t, status.Disconnected, c.State())
	assert.False(t, gt.Ready(), "session left open after disconnect")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCallersQueueDuringReconnect(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	ft := &fakeTransport{
		sendFn: func(_ context.Context, req session.Request) (session.Response, error) {
			if calls.Add(1) == 1 {
				return session.Response{}, timeoutErr()
			}
			return session.Response{Registers: []uint16{req.Address}}, nil
		},
	}
	c, err := New(testOptions(),
		WithTransport(func(_ config.ClientOptions, _ zerolog.Logger) session.Transport { return ft }),
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
	)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))

	first := make(chan []uint16, 1)
	go func() {
		w, _ := c.ReadHoldingRegisters(context.Background(), 1, 1)
		first <- w
	}()
	require.Eventually(t, func() bool { return c.State() == status.Reconnecting }, time.Second, time.Millisecond)

	// a caller with a short deadline gives up while queued
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ReadHoldingRegisters(ctx, 2, 1)
	assert.ErrorIs(t, err, fault.ErrCancelled)

	// a patient caller waits for the reconnect and then succeeds
	second := make(chan []uint16, 1)
	go func() {
		w, _ := c.ReadHoldingRegisters(context.Background(), 3, 1)
		second <- w
	}()

	close(release)
	assert.Equal(t, []uint16{1}, <-first)
	assert.Equal(t, []uint16{3}, <-second)
	assert.Equal(t, status.Connected, c.State())
}

func TestCloseStopsClient(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(testOptions(), ft, &recorder{})
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	assert.Equal(t, status.Disconnected, c.State())
	assert.ErrorIs(t, c.Connect(context.Background()), fault.ErrNotConnected)
}

func TestTypedReadsHonorWordOrder(t *testing.T) {
	opts := testOptions()
	opts.WordOrder = codec.CDAB
	enc := opts.Codec()

	ft := &fakeTransport{
		sendFn: func(_ context.Context, req session.Request) (session.Response, error) {
			switch req.Address {
			case 0:
				return session.Response{Registers: enc.PutFloat32(12.5)}, nil
			case 10:
				return session.Response{Registers: enc.PutInt32(-70000)}, nil
			case 20:
				return session.Response{Registers: enc.PutFloat64(-0.25)}, nil
			default:
				w, _ := enc.PutString("PUMP", 3)
				return session.Response{Registers: w}, nil
			}
		},
	}
	c := newTestClient(opts, ft, &recorder{})
	require.NoError(t, c.Connect(context.Background()))
	ctx := context.Background()

	f, err := c.ReadFloat32(ctx, Input, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(12.5), f)

	i, err := c.ReadInt32(ctx, Holding, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(-70000), i)

	v, err := c.ReadValue(ctx, Holding, 20, codec.TypeFloat64)
	require.NoError(t, err)
	assert.Equal(t, -0.25, v.Float())

	s, err := c.ReadString(ctx, Holding, 30, 3)
	require.NoError(t, err)
	assert.Equal(t, "PUMP", s)

	_, err = c.ReadValue(ctx, Holding, 30, codec.TypeString)
	assert.ErrorIs(t, err, fault.ErrDecoding)
}

func TestTypedReadsRejectOversizedQuantity(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(testOptions(), ft, &recorder{})
	require.NoError(t, c.Connect(context.Background()))
	ctx := context.Background()

	for _, n := range []int{0, session.MaxReadQuantity + 1, 65537} {
		_, err := c.ReadString(ctx, Holding, 0, n)
		assert.ErrorIs(t, err, fault.ErrInvalidAddress, "length %d", n)

		_, err = c.readWords(ctx, Holding, 0, n)
		assert.ErrorIs(t, err, fault.ErrInvalidAddress, "quantity %d", n)
	}
	assert.Zero(t, ft.sendCount())

	_, err := c.ReadString(ctx, Holding, 0, session.MaxReadQuantity)
	require.NoError(t, err)
	assert.Equal(t, uint16(session.MaxReadQuantity), ft.sends[0].Quantity)
}

func TestWritesChooseFunctionCode(t *testing.T) {
	ft := &fakeTransport{
		sendFn: func(context.Context, session.Request) (session.Response, error) {
			return session.Response{}, nil
		},
	}
	c := newTestClient(testOptions(), ft, &recorder{})
	require.NoError(t, c.Connect(context.Background()))
	ctx := context.Background()

	require.NoError(t, c.WriteValue(ctx, 5, codec.TypeInt16, codec.Int(-2)))
	require.NoError(t, c.WriteValue(ctx, 6, codec.TypeFloat32, codec.Float(1)))
	require.NoError(t, c.WriteUint64(ctx, 8, 1))
	require.NoError(t, c.WriteString(ctx, 12, "AB", 2))

	err := c.WriteValue(ctx, 5, codec.TypeUint16, codec.Int(-1))
	assert.ErrorIs(t, err, fault.ErrDecoding)

	require.Len(t, ft.sends, 4)
	assert.Equal(t, uint8(6), ft.sends[0].FunctionCode)
	assert.Equal(t, []uint16{0xFFFE}, ft.sends[0].Values)
	assert.Equal(t, uint8(16), ft.sends[1].FunctionCode)
	assert.Equal(t, []uint16{0x3F80, 0}, ft.sends[1].Values)
	assert.Len(t, ft.sends[2].Values, 4)
	assert.Equal(t, []uint16{0x4142, 0}, ft.sends[3].Values)
}
