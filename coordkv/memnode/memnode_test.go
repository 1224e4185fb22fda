package memnode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coordkv"
)

func TestLLockSetsNXWithExpiry(t *testing.T) {
	n := New()
	expireAt := time.Now().Add(time.Minute).Unix()

	v, err := n.Eval(context.Background(), coordkv.ScriptLLock, []string{"/p"}, int64(1), expireAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// A second attempt by a different client fails: key already present.
	v, err = n.Eval(context.Background(), coordkv.ScriptLLock, []string{"/p"}, int64(2), expireAt)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestLLockSucceedsAfterExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	n := New(WithNow(func() time.Time { return now }))

	_, err := n.Eval(context.Background(), coordkv.ScriptLLock, []string{"/p"}, int64(1), now.Add(time.Second).Unix())
	require.NoError(t, err)

	now = now.Add(10 * time.Second)
	v, err := n.Eval(context.Background(), coordkv.ScriptLLock, []string{"/p"}, int64(2), now.Add(time.Minute).Unix())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v, "expired entries must be treated as absent")
}

func TestLUnlockOnlyOwner(t *testing.T) {
	n := New()
	expireAt := time.Now().Add(time.Minute).Unix()
	_, err := n.Eval(context.Background(), coordkv.ScriptLLock, []string{"/p"}, int64(1), expireAt)
	require.NoError(t, err)

	v, err := n.Eval(context.Background(), coordkv.ScriptLUnlock, []string{"/p"}, int64(2))
	require.NoError(t, err)
	assert.Equal(t, int64(0), v, "a non-owner must not be able to unlock")

	v, err = n.Eval(context.Background(), coordkv.ScriptLUnlock, []string{"/p"}, int64(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestZAddReturnsRawAddedCount(t *testing.T) {
	n := New()
	added, err := n.ZAdd(context.Background(), "/q", 0, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), added)

	added, err = n.ZAdd(context.Background(), "/q", 5, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), added, "updating an existing member's score must report 0, matching ZADD")

	card, err := n.ZCard(context.Background(), "/q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)
}

func TestLqConsumeIsPermanentAndIdempotent(t *testing.T) {
	now := time.Now()
	n := New(WithNow(func() time.Time { return now }))
	_, err := n.ZAdd(context.Background(), "/q", 0, "100:1:item")
	require.NoError(t, err)

	v, err := n.Eval(context.Background(), coordkv.ScriptLQGet, []string{"/q"}, int64(1), time.Now().Add(time.Minute).Unix())
	require.NoError(t, err)
	h := v.(string)

	v, err = n.Eval(context.Background(), coordkv.ScriptLQConsume, []string{h, "/q"}, int64(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// A second consume by any client id must still report success
	// (idempotent tombstone), and the entry must never expire: an hour
	// past the original lease it is still there.
	now = now.Add(time.Hour)
	v, err = n.Eval(context.Background(), coordkv.ScriptLQConsume, []string{h, "/q"}, int64(999))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	card, err := n.ZCard(context.Background(), "/q")
	require.NoError(t, err)
	assert.Equal(t, int64(0), card)
}

func TestLqLockSignalsAlreadyCompleted(t *testing.T) {
	n := New()
	_, err := n.ZAdd(context.Background(), "/q", 0, "100:1:item")
	require.NoError(t, err)

	v, err := n.Eval(context.Background(), coordkv.ScriptLQGet, []string{"/q"}, int64(1), time.Now().Add(time.Minute).Unix())
	require.NoError(t, err)
	h := v.(string)

	_, err = n.Eval(context.Background(), coordkv.ScriptLQConsume, []string{h, "/q"}, int64(1))
	require.NoError(t, err)

	_, err = n.Eval(context.Background(), coordkv.ScriptLQLock, []string{h, "/q"}, time.Now().Add(time.Minute).Unix(), int64(42), int64(2))
	assert.ErrorIs(t, err, coordkv.ErrAlreadyCompleted)
}

func TestLqLockContentionDecaysScoreDeterministically(t *testing.T) {
	n := New()
	n.set("/q")["h"] = 3
	n.decayScore("/q", "h", 7)
	got := n.zsets["/q"]["h"]

	n2 := New()
	n2.set("/q")["h"] = 3
	n2.decayScore("/q", "h", 7)
	got2 := n2.zsets["/q"]["h"]

	assert.Equal(t, got, got2, "the same randint must decay the same starting score identically")
}
