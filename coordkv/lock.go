package coordkv

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lock implements a Redlock-style majority mutual-exclusion lock over a
// named path, ported from original_source/majorityredis/lock.py. A Lock
// instance owns one opaque client identity; unlock/extend operations on
// any given path only succeed for the identity that locked it.
type Lock struct {
	settings
	nodes     []Node
	n         int
	extenders extenderSet
}

// NewLock builds a Lock against nodes, an ensemble whose logical size is n
// (n may exceed len(nodes): some nodes may be permanently unreachable).
// Construction fails with ErrCannotObtainLock if fewer than a majority of n
// are connected.
func NewLock(nodes []Node, n int, opts ...Option) (*Lock, error) {
	if len(nodes) < n/2+1 {
		return nil, ErrCannotObtainLock
	}
	s := defaultSettings()
	for _, o := range opts {
		o(&s)
	}
	if !s.clientIDSet {
		s.clientID = randomClientID(s.rng)
	}
	return &Lock{settings: s, nodes: nodes, n: n}, nil
}

// Lock attempts to acquire path on a majority of nodes. On success it
// returns the absolute Unix expiry and true. On failure it returns (0,
// false); the caller should treat this as retryable. If extend is Extend()
// or ExtendWithCallback, a background goroutine keeps re-extending the
// lease until Unlock is called or extension fails.
func (l *Lock) Lock(ctx context.Context, path string, extend ExtendMode) (int64, bool) {
	log := l.opLogger("lock", path)
	_, tExpireat := Expireat(l.now(), l.timeout)

	outcomes := invokeScript(ctx, l.fanOut, l.nodes, ScriptLLock, []string{path}, l.clientID, tExpireat)
	n := 0
	for o := range outcomes {
		if o.Err != nil {
			continue
		}
		if v, ok := toInt64(o.Value); ok && v == 1 {
			n++
		}
	}

	majority := l.n/2 + 1
	if n < majority {
		log.Debug("lock: majority not reached, releasing partial locks", zap.Int("acquired", n), zap.Int("majority", majority))
		l.Unlock(ctx, path)
		return 0, false
	}
	if !LockStillValid(l.now(), tExpireat, l.clockDrift, l.pollingInterval()) {
		log.Warn("lock: round trip exceeded usable lease window")
		return 0, false
	}
	if extend.enabled {
		l.armExtender(path, extend.onFailure)
	}
	return tExpireat, true
}

// Unlock releases path on every node that still thinks this client owns
// it, returning the fraction of the ensemble (0..1) that acknowledged the
// release. Idempotent: unlocking an already-unlocked path counts as
// success on every node where it is absent.
func (l *Lock) Unlock(ctx context.Context, path string) float64 {
	l.extenders.cancel(path)
	outcomes := invokeScript(ctx, l.fanOut, l.nodes, ScriptLUnlock, []string{path}, l.clientID)
	cnt := 0
	for o := range outcomes {
		if o.Err != nil {
			continue
		}
		if v, ok := toInt64(o.Value); ok && v == 1 {
			cnt++
		}
	}
	return float64(cnt) / float64(l.n)
}

// ExtendLock re-extends path's lease for this client. It returns the new
// absolute expiry if a majority held the lock and the new lease is still
// within its usable validity window, or 0 if the lock was lost (either a
// majority no longer recognizes this client, or the round trip left too
// little headroom). A 0 return means the caller must stop treating the
// lock as held.
func (l *Lock) ExtendLock(ctx context.Context, path string) int64 {
	log := l.opLogger("extend_lock", path)
	_, tExpireat := Expireat(l.now(), l.timeout)

	outcomes := invokeScript(ctx, l.fanOut, l.nodes, ScriptLExtendLock, []string{path}, tExpireat, l.clientID)
	cnt := 0
	for o := range outcomes {
		if o.Err != nil {
			continue
		}
		if v, ok := toInt64(o.Value); ok && v == 1 {
			cnt++
		}
	}

	majority := l.n/2 + 1
	if cnt < majority {
		log.Warn("extend_lock: majority lost", zap.Int("acquired", cnt), zap.Int("majority", majority))
		return 0
	}

	// Majority already held; re-establish the key on nodes where it had
	// expired. We already have majority, so this is fire-and-forget.
	go func() {
		for range invokeScript(context.Background(), l.fanOut, l.nodes, ScriptLLock, []string{path}, l.clientID, tExpireat) {
		}
	}()

	if !LockStillValid(l.now(), tExpireat, l.clockDrift, l.pollingInterval()) {
		return 0
	}
	return tExpireat
}

func (l *Lock) armExtender(path string, onFailure func(string)) {
	l.extenders.arm(path, func(ctx context.Context, key string) bool {
		return l.ExtendLock(ctx, key) > 0
	}, l.pollingInterval(), l.timerFactory, onFailure)
}

func (l *Lock) opLogger(op, path string) *zap.Logger {
	return l.logger.With(zap.String("op", op), zap.String("path", path), zap.String("op_id", uuid.NewString()))
}
