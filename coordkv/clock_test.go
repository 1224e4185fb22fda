package coordkv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpireat(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	tStart, tExpireat := Expireat(now, 5*time.Second)
	assert.Equal(t, now, tStart)
	assert.Equal(t, int64(1_000_005), tExpireat)
}

func TestLockStillValid(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	_, tExpireat := Expireat(now, 5*time.Second)

	assert.True(t, LockStillValid(now, tExpireat, 0, 0))
	assert.False(t, LockStillValid(now, tExpireat, 0, 6*time.Second))
	assert.False(t, LockStillValid(now, tExpireat, 6*time.Second, 0))

	justUnder := time.Unix(1_000_004, 0)
	assert.True(t, LockStillValid(justUnder, tExpireat, 0, 0))
	justOver := time.Unix(1_000_005, 0)
	assert.False(t, LockStillValid(justOver, tExpireat, 0, 0))
}

func TestPollingInterval(t *testing.T) {
	assert.Equal(t, time.Second, PollingInterval(5*time.Second))
	assert.Equal(t, 2*time.Second, PollingInterval(10*time.Second))
}
