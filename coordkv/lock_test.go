package coordkv

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coordkv/memnode"
)

func newMemNodes(n int) []Node {
	nodes := make([]Node, n)
	for i := range nodes {
		nodes[i] = memnode.New()
	}
	return nodes
}

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestLockAcquireHappyPath(t *testing.T) {
	nodes := newMemNodes(3)
	l, err := NewLock(nodes, 3, WithRand(testRand()))
	require.NoError(t, err)

	expireAt, ok := l.Lock(context.Background(), "/p", NoExtend())
	assert.True(t, ok)
	assert.Greater(t, expireAt, int64(0))
}

func TestLockAcquireMinorityFailureReleasesPartialLocks(t *testing.T) {
	good := memnode.New()
	bad := memnode.New()
	// Pre-lock "bad" under a different client so this Lock's attempt fails there.
	_, err := bad.Eval(context.Background(), ScriptLLock, []string{"/p"}, int64(999), time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)

	nodes := []Node{good, bad}
	l, err := NewLock(nodes, 3, WithRand(testRand())) // n=3 but only 2 nodes reachable; majority is 2
	require.NoError(t, err)

	_, ok := l.Lock(context.Background(), "/p", NoExtend())
	assert.False(t, ok, "only one of two nodes can be locked, which is below the majority of 2 for n=3")

	// good must have been released by the best-effort unlock.
	v, err := good.Eval(context.Background(), ScriptLLock, []string{"/p"}, int64(42), time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)
	n, ok := v.(int64)
	require.True(t, ok)
	assert.Equal(t, int64(1), n, "path should have been unlocked, so a fresh lock succeeds")
}

func TestLockLeaseExpiresWithoutExtension(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	nowFunc := func() time.Time { return now }
	// The nodes share the fake clock so that advancing it is what expires the lease.
	nodes := []Node{memnode.New(memnode.WithNow(nowFunc)), memnode.New(memnode.WithNow(nowFunc)), memnode.New(memnode.WithNow(nowFunc))}
	l, err := NewLock(nodes, 3, WithRand(testRand()), WithTimeout(5*time.Second), WithNow(nowFunc))
	require.NoError(t, err)

	_, ok := l.Lock(context.Background(), "/p", NoExtend())
	require.True(t, ok)

	now = now.Add(10 * time.Second) // advance past expiry
	other, err := NewLock(nodes, 3, WithRand(testRand()), WithTimeout(5*time.Second), WithNow(nowFunc), WithClientID(777))
	require.NoError(t, err)
	_, ok = other.Lock(context.Background(), "/p", NoExtend())
	assert.True(t, ok, "an expired lease must be re-acquirable by a different client")
}

func TestLockBackgroundExtenderInvokesCallbackExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	var fired int
	var lastTick func()
	factory := func(d time.Duration, f func()) Timer {
		mu.Lock()
		lastTick = f
		mu.Unlock()
		return stubTimer{}
	}

	nodes := newMemNodes(3)
	const clientID = int64(4242)
	l, err := NewLock(nodes, 3, WithClientID(clientID), WithTimerFactory(factory))
	require.NoError(t, err)

	done := make(chan struct{})
	_, ok := l.Lock(context.Background(), "/p", ExtendWithCallback(func(key string) {
		mu.Lock()
		fired++
		mu.Unlock()
		close(done)
	}))
	require.True(t, ok)

	// Release the lease out from under the extender so its next tick fails.
	for _, n := range nodes {
		_, _ = n.Eval(context.Background(), ScriptLUnlock, []string{"/p"}, clientID)
	}

	mu.Lock()
	tick := lastTick
	mu.Unlock()
	require.NotNil(t, tick)
	tick()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onFailure was never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fired)
}

type stubTimer struct{}

func (stubTimer) Stop() bool { return true }
