package coordkv

import "context"

// Script names the fixed set of server-side atomic scripts the coordination
// algorithm dispatches against a Node. A Node implementation owns how it
// maps a Script to actual wire work (an embedded Lua body, a Go closure
// under a mutex, an etcd transaction, ...) — coordkv only ever refers to
// scripts by name.
type Script int

const (
	// ScriptLLock sets path=client_id with an absolute expiry iff absent.
	ScriptLLock Script = iota
	// ScriptLUnlock deletes path iff its value equals client_id.
	ScriptLUnlock
	// ScriptLExtendLock refreshes path's expiry iff its value equals client_id.
	ScriptLExtendLock
	// ScriptLQGet claims the lowest-scored member of Q and locks it.
	ScriptLQGet
	// ScriptLQLock attempts to lock a known handle, decaying its score on contention.
	ScriptLQLock
	// ScriptLQExtendLock refreshes a handle's expiry iff owned by client_id.
	ScriptLQExtendLock
	// ScriptLQConsume marks a handle permanently completed and removes it from Q.
	ScriptLQConsume
	// ScriptLQUnlock deletes a handle iff its value equals client_id.
	ScriptLQUnlock
	// ScriptLQSize reports (taken, queued) counts across Q's members.
	ScriptLQSize
)

func (s Script) String() string {
	switch s {
	case ScriptLLock:
		return "l_lock"
	case ScriptLUnlock:
		return "l_unlock"
	case ScriptLExtendLock:
		return "l_extend_lock"
	case ScriptLQGet:
		return "lq_get"
	case ScriptLQLock:
		return "lq_lock"
	case ScriptLQExtendLock:
		return "lq_extend_lock"
	case ScriptLQConsume:
		return "lq_consume"
	case ScriptLQUnlock:
		return "lq_unlock"
	case ScriptLQSize:
		return "lq_qsize"
	default:
		return "unknown"
	}
}

// QSize is the result of ScriptLQSize: the number of handles in Q that are
// currently locked (taken) versus still unclaimed (queued).
type QSize struct {
	Taken  int64
	Queued int64
}

// Node is one independent key-value store in the ensemble. The core never
// talks to a concrete store directly — only through this interface, fanned
// out across every reachable node.
type Node interface {
	// Eval runs the named script atomically on this node, binding keys and
	// args in the positional order §4.3 declares for that script. It
	// returns the script's return value, or an error — which may be one of
	// the sentinels in errors.go when the script signals a named outcome
	// (queue empty, already locked, ...) rather than a transport failure.
	Eval(ctx context.Context, script Script, keys []string, args ...any) (any, error)

	// ZAdd adds member to set with score, returning 1 if the member was new
	// or 0 if an existing member's score was updated (matching Redis's ZADD
	// return contract — see the zadd-count open question in DESIGN.md).
	ZAdd(ctx context.Context, set string, score float64, member string) (int64, error)

	// ZCard returns the number of members in set.
	ZCard(ctx context.Context, set string) (int64, error)
}

// invokeScript fans script out across nodes via fanOut, binding keys/args
// identically at every node. This is the Script invoker component (§4.3):
// it does no counting or majority logic itself, just dispatch.
func invokeScript(ctx context.Context, fanOut FanOutFunc, nodes []Node, script Script, keys []string, args ...any) <-chan Outcome {
	return fanOut(ctx, nodes, func(ctx context.Context, n Node) (any, error) {
		return n.Eval(ctx, script, keys, args...)
	})
}

// toInt64 normalizes the handful of numeric types a Node.Eval might
// reasonably return (a real Redis client surfaces Lua integers as int64; an
// in-memory fake might use int) into a single int64.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}
