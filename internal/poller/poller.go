// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-client/internal/client"
	"github.com/tamzrod/modbus-client/internal/codec"
	"github.com/tamzrod/modbus-client/internal/fault"
)

// Client abstracts the register reads needed by the poller.
type Client interface {
	ReadRegisters(ctx context.Context, table client.Table, addr, qty uint16) ([]uint16, error)
}

// Observer receives poll outcomes. Optional.
type Observer interface {
	ObservePoll(took time.Duration, err error)
	ObserveReading(quality string)
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Device    string
	MachineID string
	Interval  time.Duration
	MaxGap    int
	Codec     codec.Codec
	Tags      []Tag
}

// Poller is a clock-driven tag reader.
type Poller struct {
	cfg      Config
	blocks   []ReadBlock
	client   Client
	logger   zerolog.Logger
	observer Observer
}

// New creates a poller with immutable config.
func New(cfg Config, c Client, logger zerolog.Logger, obs Observer) (*Poller, error) {
	if cfg.Device == "" {
		return nil, errors.New("poller: device id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Tags) == 0 {
		return nil, errors.New("poller: at least one tag required")
	}
	for _, t := range cfg.Tags {
		if t.Words <= 0 {
			return nil, fmt.Errorf("poller: tag %q has no register width", t.Name)
		}
	}
	if c == nil {
		return nil, errors.New("poller: client required")
	}

	return &Poller{
		cfg:      cfg,
		blocks:   GroupBlocks(cfg.Tags, cfg.MaxGap),
		client:   c,
		logger:   logger.With().Str("component", "poller").Str("device", cfg.Device).Logger(),
		observer: obs,
	}, nil
}

// Blocks returns the read plan.
func (p *Poller) Blocks() []ReadBlock { return p.blocks }

// PollOnce performs exactly one poll cycle. A failed block degrades only the
// tags it covers; the error is reported on the result.
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	start := time.Now()
	res := PollResult{
		Device:    p.cfg.Device,
		MachineID: p.cfg.MachineID,
		At:        start,
		Readings:  make([]Reading, len(p.cfg.Tags)),
	}

	var errs []error
	for _, b := range p.blocks {
		regs, err := p.client.ReadRegisters(ctx, b.Table, b.Address, b.Quantity)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %d+%d: %w", b.Table, b.Address, b.Quantity, err))
			q := qualityOf(err)
			for _, i := range b.Tags {
				res.Readings[i] = p.reading(i, codec.Value{}, q, start)
			}
			continue
		}

		for _, i := range b.Tags {
			t := p.cfg.Tags[i]
			off := int(t.Address) - int(b.Address)
			v, err := p.decode(t, regs[off:off+t.Words])
			if err != nil {
				errs = append(errs, fmt.Errorf("tag %s: %w", t.Name, err))
				res.Readings[i] = p.reading(i, codec.Value{}, QualityBad, start)
				continue
			}
			res.Readings[i] = p.reading(i, v, QualityGood, start)
		}
	}

	res.Err = errors.Join(errs...)
	res.Took = time.Since(start)

	if p.observer != nil {
		p.observer.ObservePoll(res.Took, res.Err)
		for _, r := range res.Readings {
			p.observer.ObserveReading(string(r.Quality))
		}
	}

	ev := p.logger.Debug()
	if res.Err != nil {
		ev = p.logger.Warn().Err(res.Err)
	}
	ev.Int("good", res.Good()).Int("tags", len(res.Readings)).Dur("took", res.Took).Msg("poll")

	return res
}

func (p *Poller) decode(t Tag, words []uint16) (codec.Value, error) {
	v, err := p.cfg.Codec.Decode(t.Type, words)
	if err != nil {
		return codec.Value{}, err
	}
	if !t.scaled() {
		return v, nil
	}
	switch v.Kind() {
	case codec.KindInt, codec.KindUint, codec.KindFloat:
		f, _ := v.AsFloat()
		scale := t.Scale
		if scale == 0 {
			scale = 1
		}
		return codec.Float(f*scale + t.Offset), nil
	case codec.KindBool, codec.KindText, codec.KindStruct, codec.KindInvalid:
	}
	return v, nil
}

func (p *Poller) reading(i int, v codec.Value, q Quality, at time.Time) Reading {
	t := p.cfg.Tags[i]
	return Reading{
		Device:  p.cfg.Device,
		Tag:     t.Name,
		Table:   t.Table.String(),
		Address: t.Address,
		Value:   v,
		Unit:    t.Unit,
		Quality: q,
		At:      at,
	}
}

func qualityOf(err error) Quality {
	switch fault.KindOf(err) {
	case fault.KindRequestTimeout, fault.KindConnectTimeout:
		return QualityTimeout
	case fault.KindNotConnected, fault.KindFaulted, fault.KindCancelled,
		fault.KindConnectRefused, fault.KindConnectionLost:
		return QualityNotConnected
	default:
		return QualityBad
	}
}
