package coordkv

import (
	"crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// settings is the shared construction state for Lock and Queue: both
// accept the same Option values, built from a constructor-with-validation
// shape generalized to functional options.
type settings struct {
	timeout      time.Duration
	clockDrift   time.Duration
	fanOut       FanOutFunc
	timerFactory TimerFactory
	now          func() time.Time
	logger       *zap.Logger
	rng          *rand.Rand
	clientID     int64
	clientIDSet  bool
}

func defaultSettings() settings {
	return settings{
		timeout:      5 * time.Second,
		clockDrift:   0,
		fanOut:       DefaultFanOut,
		timerFactory: DefaultTimerFactory,
		now:          time.Now,
		logger:       zap.NewNop(),
		rng:          newDefaultRand(),
	}
}

func (s *settings) pollingInterval() time.Duration {
	return PollingInterval(s.timeout)
}

// Option configures a Lock or Queue at construction time.
type Option func(*settings)

// WithTimeout sets the lease timeout (default 5s). The polling interval
// used by the background extender and LockStillValid is always timeout/5.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithClockDrift sets the conservative bound on client/node clock
// divergence subtracted from a lease's usable lifetime (default 0).
func WithClockDrift(d time.Duration) Option {
	return func(s *settings) { s.clockDrift = d }
}

// WithFanOut overrides the concurrent dispatch primitive, e.g. with a
// bounded worker pool or a sequential implementation for tests.
func WithFanOut(f FanOutFunc) Option {
	return func(s *settings) { s.fanOut = f }
}

// WithTimerFactory overrides how the background extender schedules its
// recurring tick, e.g. with a fake clock in tests.
func WithTimerFactory(f TimerFactory) Option {
	return func(s *settings) { s.timerFactory = f }
}

// WithNow overrides the wall-clock source used for expiry computation.
func WithNow(f func() time.Time) Option {
	return func(s *settings) { s.now = f }
}

// WithLogger attaches a structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRand overrides the PRNG used for candidate shuffling and the score-
// decay randint argument, so tests can pin its sequence.
func WithRand(r *rand.Rand) Option {
	return func(s *settings) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithClientID pins the opaque client identity instead of drawing a random
// one, so tests can assert ownership deterministically (spec §9). 0 is a
// valid id and is honored exactly like any other value.
func WithClientID(id int64) Option {
	return func(s *settings) {
		s.clientID = id
		s.clientIDSet = true
	}
}

func newDefaultRand() *rand.Rand {
	var seed [16]byte
	_, _ = rand.Read(seed[:])
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	))
}

// randomClientID draws the per-instance opaque owner token: a random
// non-negative integer, matching spec §3 ("a per-process random
// non-negative integer"). Each Lock/Queue instance draws its own — there is
// no process-wide identity (spec §9).
func randomClientID(r *rand.Rand) int64 {
	return r.Int64N(1 << 62)
}
