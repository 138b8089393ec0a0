package device

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"
)

// MaxAttempts bounds how many ids are drawn before allocation gives up.
const MaxAttempts = 50

// DrawFunc returns a candidate id value in [IDMin, IDMax).
type DrawFunc func() (uint64, error)

var idSpan = new(big.Int).SetUint64(IDMax - IDMin)

// RandomID draws a uniform value in [IDMin, IDMax) from crypto/rand.
func RandomID() (uint64, error) {
	n, err := rand.Int(rand.Reader, idSpan)
	if err != nil {
		return 0, err
	}
	return IDMin + n.Uint64(), nil
}

// Allocator hands out unused device ids against a Registry.
type Allocator struct {
	reg      Registry
	draw     DrawFunc
	attempts int
	log      *slog.Logger
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithDraw replaces the random source (tests use a scripted sequence).
func WithDraw(fn DrawFunc) Option {
	return func(a *Allocator) {
		if fn != nil {
			a.draw = fn
		}
	}
}

// WithAttempts overrides MaxAttempts.
func WithAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.attempts = n
		}
	}
}

// WithLogger sets the logger used for collision diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(a *Allocator) {
		if log != nil {
			a.log = log
		}
	}
}

// NewAllocator builds an Allocator over reg.
func NewAllocator(reg Registry, opts ...Option) *Allocator {
	a := &Allocator{
		reg:      reg,
		draw:     RandomID,
		attempts: MaxAttempts,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Allocate returns an id that was absent from the registry when checked.
// The id is not reserved; use Register to claim one atomically.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	const op = "device.Allocate"

	for i := 0; i < a.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		id, err := a.next(op)
		if err != nil {
			return "", err
		}

		exists, err := a.reg.Exists(ctx, id)
		if err != nil {
			return "", StoreError{Op: op, Err: err}
		}
		if !exists {
			return id, nil
		}
		a.log.Debug("device.allocate.collision", "attempt", i+1, "device_id", id)
	}

	return "", fmt.Errorf("%s: %w after %d attempts", op, ErrAllocationExhausted, a.attempts)
}

// Register draws ids and inserts a new online Record under the first id the
// registry accepts. Collisions retry with a fresh draw; other store failures
// abort. Exhaustion writes nothing.
func (a *Allocator) Register(ctx context.Context, in RegisterInput) (Record, error) {
	const op = "device.Register"

	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return Record{}, fmt.Errorf("%s: %w", op, err)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	for i := 0; i < a.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return Record{}, fmt.Errorf("%s: %w", op, err)
		}

		id, err := a.next(op)
		if err != nil {
			return Record{}, err
		}

		rec := Record{
			DeviceID:   id,
			DeviceName: in.DeviceName,
			MAC:        in.MAC,
			Online:     true,
			AddTime:    now,
			UpdateTime: now,
		}

		err = a.reg.Insert(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, ErrDeviceExists) {
			a.log.Debug("device.register.collision", "attempt", i+1, "device_id", id)
			continue
		}
		return Record{}, StoreError{Op: op, Err: err}
	}

	return Record{}, fmt.Errorf("%s: %w after %d attempts", op, ErrAllocationExhausted, a.attempts)
}

func (a *Allocator) next(op string) (string, error) {
	n, err := a.draw()
	if err != nil {
		return "", fmt.Errorf("%s: draw: %w", op, err)
	}
	if n < IDMin || n >= IDMax {
		return "", fmt.Errorf("%s: draw out of range: %d", op, n)
	}
	return FormatID(n), nil
}
