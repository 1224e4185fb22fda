package coordkv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coordkv/memnode"
)

func TestQueuePutGetRoundTripsPayloadWithEmbeddedColons(t *testing.T) {
	nodes := newMemNodes(3)
	q, err := NewQueue("/q", nodes, 3, WithRand(testRand()))
	require.NoError(t, err)

	payload := []byte("10.0.0.1:8080:extra:colons")
	frac := q.Put(context.Background(), payload, 100)
	assert.Equal(t, 1.0, frac)

	got, handle, ok := q.Get(context.Background(), NoExtend(), true)
	require.True(t, ok)
	assert.Equal(t, payload, got)
	assert.NotEmpty(t, handle)
}

func TestQueueLowerPriorityDequeuedFirst(t *testing.T) {
	// Literal scenario from spec §8 #3: put("a", 100), put("b", 50) — get()
	// must return "b" (the lower priority), not "a". With an unpadded
	// priority field this fails, since "100:...:a" < "50:...:b" lexically.
	nodes := newMemNodes(3)
	q, err := NewQueue("/q", nodes, 3, WithRand(testRand()))
	require.NoError(t, err)

	q.Put(context.Background(), []byte("a"), 100)
	q.Put(context.Background(), []byte("b"), 50)

	got, _, ok := q.Get(context.Background(), NoExtend(), true)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), got)
}

func TestQueueConsumeThenGetNeverReturnsSameHandleAgain(t *testing.T) {
	nodes := newMemNodes(3)
	q, err := NewQueue("/q", nodes, 3, WithRand(testRand()))
	require.NoError(t, err)

	q.Put(context.Background(), []byte("item"), 100)
	_, handle, ok := q.Get(context.Background(), NoExtend(), true)
	require.True(t, ok)

	pct, err := q.Consume(context.Background(), handle)
	require.NoError(t, err)
	assert.Greater(t, pct, 0.0)

	_, _, ok = q.Get(context.Background(), NoExtend(), true)
	assert.False(t, ok, "queue should be empty after the only item was consumed")
}

func TestQueueExtendLockByAnotherClientAfterConsumeReturnsMinusOne(t *testing.T) {
	nodes := newMemNodes(3)
	q, err := NewQueue("/q", nodes, 3, WithRand(testRand()))
	require.NoError(t, err)

	q.Put(context.Background(), []byte("item"), 100)
	_, handle, ok := q.Get(context.Background(), NoExtend(), true)
	require.True(t, ok)

	_, err = q.Consume(context.Background(), handle)
	require.NoError(t, err)

	// A second queue instance (simulating a different client/process)
	// trying to extend the now-completed handle must learn it's done, not
	// merely lost.
	other, err := NewQueue("/q", nodes, 3, WithRand(testRand()), WithClientID(999))
	require.NoError(t, err)
	result := other.ExtendLock(context.Background(), handle)
	assert.Equal(t, int64(-1), result, "extending a completed handle must return -1, not 0")
}

func TestQueueSizeAfterSequentialPutsAndGet(t *testing.T) {
	nodes := newMemNodes(3)
	q, err := NewQueue("/q", nodes, 3, WithRand(testRand()))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		q.Put(context.Background(), []byte("x"), 100)
	}
	size, err := q.Size(context.Background(), true, false)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, _, ok := q.Get(context.Background(), NoExtend(), true)
	require.True(t, ok)

	queued, err := q.Size(context.Background(), true, false)
	require.NoError(t, err)
	assert.Equal(t, int64(4), queued)

	taken, err := q.Size(context.Background(), false, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), taken)
}

func TestQueueSizeRequiresQueuedOrTaken(t *testing.T) {
	nodes := newMemNodes(3)
	q, err := NewQueue("/q", nodes, 3, WithRand(testRand()))
	require.NoError(t, err)

	_, err = q.Size(context.Background(), false, false)
	assert.ErrorIs(t, err, ErrInvalidSizeQuery)
}

func TestQueueGetOnEmptyQueueFails(t *testing.T) {
	nodes := newMemNodes(3)
	q, err := NewQueue("/q", nodes, 3, WithRand(testRand()))
	require.NoError(t, err)

	_, _, ok := q.Get(context.Background(), NoExtend(), true)
	assert.False(t, ok)
}

func TestQueueExtendLockExtendsOwnedHandle(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	nowFunc := func() time.Time { return now }
	// The nodes share the fake clock, so the lease Get took is still live on them.
	nodes := []Node{memnode.New(memnode.WithNow(nowFunc)), memnode.New(memnode.WithNow(nowFunc)), memnode.New(memnode.WithNow(nowFunc))}
	q, err := NewQueue("/q", nodes, 3, WithRand(testRand()), WithTimeout(5*time.Second), WithNow(nowFunc))
	require.NoError(t, err)

	q.Put(context.Background(), []byte("item"), 100)
	_, handle, ok := q.Get(context.Background(), NoExtend(), true)
	require.True(t, ok)

	result := q.ExtendLock(context.Background(), handle)
	assert.Greater(t, result, int64(0))
}
