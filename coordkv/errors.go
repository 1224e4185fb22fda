package coordkv

import "errors"

// Errors returned at the public boundary. Callers receiving false/0/empty
// from Lock, Unlock, Put or Get should treat it as retryable; a 0 from
// ExtendLock means the lock is lost and a -1 from Queue.ExtendLock means the
// item was completed elsewhere. The errors below are returned only by
// construction, a zero-success Consume, and a Size call that asks for nothing.
var (
	// ErrCannotObtainLock is returned by NewLock/NewQueue when fewer than a
	// majority of the ensemble is reachable at construction time.
	ErrCannotObtainLock = errors.New("coordkv: cannot connect to a majority of nodes")

	// ErrConsumeFailed is returned by Queue.Consume when zero nodes
	// acknowledged the completion.
	ErrConsumeFailed = errors.New("coordkv: failed to mark item completed on any node")

	// ErrInvalidSizeQuery is returned by Queue.Size when both queued and
	// taken are false.
	ErrInvalidSizeQuery = errors.New("coordkv: size requires queued or taken (or both)")
)

// Script-level signals. A Node implementation's Eval returns one of these
// (possibly wrapped) to report a named script outcome that is not a plain
// count. They are internal to the coordination algorithm: Lock and Queue
// consume them via errors.Is and never let them escape the public API,
// except that Queue.ExtendLock surfaces ErrAlreadyCompleted as the -1
// sentinel described in spec §4.3/§7.
var (
	ErrQueueEmpty       = errors.New("coordkv: queue empty")
	ErrAlreadyLocked    = errors.New("coordkv: already locked")
	ErrAlreadyCompleted = errors.New("coordkv: already completed")
	ErrInvalidExpireat  = errors.New("coordkv: invalid expireat")
	ErrExpired          = errors.New("coordkv: expired")
)
