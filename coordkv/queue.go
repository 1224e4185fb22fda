package coordkv

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Queue implements a priority-ordered locking work queue on top of the
// per-item majority lock described in spec §4.6, ported method-for-method
// from original_source/majorityredis/lockingqueue.py's LockingQueue class.
type Queue struct {
	settings
	nodes     []Node
	n         int
	queuePath string
	extenders extenderSet
}

// NewQueue builds a Queue against nodes (an ensemble of logical size n)
// whose items live under queuePath. Construction fails with
// ErrCannotObtainLock if fewer than a majority of n are connected.
func NewQueue(queuePath string, nodes []Node, n int, opts ...Option) (*Queue, error) {
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
	return &Queue{settings: s, nodes: nodes, n: n, queuePath: queuePath}, nil
}

// Put adds item to the queue with the given priority (lower is earlier;
// defaults to 100 per spec §4.6 if callers want that convention). It
// returns the fraction of the ensemble (0..1) that acknowledged the add.
//
// Matching the original, this is the one operation that does NOT use the
// fan-out executor: it loops over nodes sequentially, swallowing per-node
// errors, because a failed add here is not a correctness issue (the item
// still exists wherever it succeeded) and there is nothing to race.
func (q *Queue) Put(ctx context.Context, item []byte, priority int) float64 {
	log := q.opLogger("put", "")
	h := buildHandle(priority, float64(q.now().UnixNano())/1e9, item)
	var cnt int64
	for _, node := range q.nodes {
		v, err := node.ZAdd(ctx, q.queuePath, 0, h)
		if err != nil {
			log.Warn("put: zadd failed on a node", zap.Error(err))
			continue
		}
		cnt += v
	}
	return float64(cnt) / float64(q.n)
}

// Get attempts to dequeue and lock an item. On success it returns the item
// payload, its handle (needed by Consume/ExtendLock), and true. On failure
// — including the documented case where check_all_servers is false and the
// single sampled node is unreachable (spec §9) — it returns (nil, "",
// false), which should be treated as retryable, not as proof the queue is
// empty. The one exception is a locked handle that does not split into
// priority:insert_time:payload: Get then returns (nil, h, false).
func (q *Queue) Get(ctx context.Context, extend ExtendMode, checkAllServers bool) ([]byte, string, bool) {
	_, tExpireat := Expireat(q.now(), q.timeout)

	node, h, found := q.getCandidate(ctx, tExpireat, checkAllServers)
	if !found {
		return nil, "", false
	}
	if !q.acquireLockMajority(ctx, node, h, tExpireat) {
		return nil, "", false
	}
	if extend.enabled {
		q.armExtender(h, extend.onFailure)
	}
	_, _, payload, ok := splitHandle(h)
	if !ok {
		return nil, h, false
	}
	return []byte(payload), h, true
}

// getCandidate chooses one server's lowest-priority item and locks it
// there (ScriptLQGet), then releases the speculative lock on every other
// sampled node — winner included only implicitly, since it's excluded from
// the unlock fan-out. Matches
// LockingQueue._get_candidate_keys.
func (q *Queue) getCandidate(ctx context.Context, tExpireat int64, checkAllServers bool) (Node, string, bool) {
	var candidates []Node
	if checkAllServers {
		candidates = append([]Node(nil), q.nodes...)
		q.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	} else {
		candidates = []Node{q.nodes[q.rng.IntN(len(q.nodes))]}
	}

	outcomes := invokeScript(ctx, q.fanOut, candidates, ScriptLQGet, []string{q.queuePath}, q.clientID, tExpireat)

	var winner Node
	var handle string
	found := false
	var losers []Node
	for o := range outcomes {
		if found {
			losers = append(losers, o.Node)
			continue
		}
		h, ok := o.Value.(string)
		if o.Err != nil || !ok {
			losers = append(losers, o.Node)
			continue
		}
		winner, handle, found = o.Node, h, true
	}
	if !found {
		return nil, "", false
	}
	if len(losers) > 0 {
		for range invokeScript(ctx, q.fanOut, losers, ScriptLQUnlock, []string{handle}, q.clientID) {
		}
	}
	return winner, handle, true
}

// acquireLockMajority locks h on every node but winner (which already owns
// it from getCandidate), then resolves the three possible outcomes: the
// item was already completed elsewhere, a majority could not be reached,
// or the window to use the lease shrank too far during the round trip.
// Matches LockingQueue._acquire_lock_majority.
func (q *Queue) acquireLockMajority(ctx context.Context, winner Node, h string, tExpireat int64) bool {
	log := q.opLogger("get", h)
	others := exceptNode(q.nodes, winner)
	randint := int64(q.rng.Uint64() >> 1)

	type result struct {
		node Node
		ok   bool
		err  error
	}
	results := make([]result, 0, len(q.nodes))
	results = append(results, result{node: winner, ok: true})

	outcomes := invokeScript(ctx, q.fanOut, others, ScriptLQLock, []string{h, q.queuePath}, tExpireat, randint, q.clientID)
	anyCompleted := false
	for o := range outcomes {
		if o.Err != nil {
			if errors.Is(o.Err, ErrAlreadyCompleted) {
				anyCompleted = true
			}
			results = append(results, result{node: o.Node, err: o.Err})
			continue
		}
		v, _ := toInt64(o.Value)
		results = append(results, result{node: o.Node, ok: v == 1})
	}

	if anyCompleted {
		var outdated []Node
		for _, r := range results {
			if errors.Is(r.err, ErrAlreadyCompleted) {
				continue
			}
			outdated = append(outdated, r.node)
		}
		for range invokeScript(ctx, q.fanOut, outdated, ScriptLQConsume, []string{h, q.queuePath}, q.clientID) {
		}
		return false
	}

	majority := q.n/2 + 1
	cnt := 0
	var locked []Node
	for _, r := range results {
		if r.err == nil && r.ok {
			cnt++
			locked = append(locked, r.node)
		}
	}
	if cnt < majority {
		log.Warn("get: majority not reached, releasing partial locks", zap.Int("acquired", cnt), zap.Int("majority", majority))
		for range invokeScript(ctx, q.fanOut, locked, ScriptLQUnlock, []string{h}, q.clientID) {
		}
		return false
	}
	return LockStillValid(q.now(), tExpireat, q.clockDrift, q.pollingInterval())
}

// Consume marks h permanently completed, removing it from the queue on
// every node that acknowledges. Returns the percentage (0..100) of the
// ensemble that did so, or ErrConsumeFailed if none did.
func (q *Queue) Consume(ctx context.Context, h string) (float64, error) {
	outcomes := invokeScript(ctx, q.fanOut, q.nodes, ScriptLQConsume, []string{h, q.queuePath}, q.clientID)
	cnt := 0
	for o := range outcomes {
		if o.Err != nil {
			continue
		}
		if v, ok := toInt64(o.Value); ok && v == 1 {
			cnt++
		}
	}
	if cnt == 0 {
		return 0, ErrConsumeFailed
	}
	q.extenders.cancel(h)
	return 100 * float64(cnt) / float64(q.n), nil
}

// ExtendLock re-extends h's lease for this client. It returns -1 if the
// item was found completed on any node (the caller must stop permanently),
// 0 if a majority no longer recognizes this client as owner or the lease's
// remaining validity window is too thin, or the new absolute expiry on
// success.
func (q *Queue) ExtendLock(ctx context.Context, h string) int64 {
	_, tExpireat := Expireat(q.now(), q.timeout)
	outcomes := invokeScript(ctx, q.fanOut, q.nodes, ScriptLQExtendLock, []string{h}, tExpireat, q.clientID)

	cnt := 0
	completed := false
	var nonCompleted []Node
	for o := range outcomes {
		if o.Err != nil {
			if errors.Is(o.Err, ErrAlreadyCompleted) {
				completed = true
				continue
			}
			nonCompleted = append(nonCompleted, o.Node)
			continue
		}
		nonCompleted = append(nonCompleted, o.Node)
		if v, ok := toInt64(o.Value); ok && v == 1 {
			cnt++
		}
	}

	if completed {
		for range invokeScript(ctx, q.fanOut, nonCompleted, ScriptLQConsume, []string{h, q.queuePath}, q.clientID) {
		}
		q.extenders.cancel(h)
		return -1
	}
	if cnt < q.n/2+1 {
		return 0
	}
	if !LockStillValid(q.now(), tExpireat, q.clockDrift, q.pollingInterval()) {
		return 0
	}
	return tExpireat
}

// Size reports the approximate number of items in the queue, maxed across
// all reachable nodes (we cannot lock every node simultaneously, so there
// is no single consistent count). At least one of queued/taken must be
// true.
func (q *Queue) Size(ctx context.Context, queued, taken bool) (int64, error) {
	if !queued && !taken {
		return 0, ErrInvalidSizeQuery
	}
	if queued && taken {
		outcomes := q.fanOut(ctx, q.nodes, func(ctx context.Context, n Node) (any, error) {
			v, err := n.ZCard(ctx, q.queuePath)
			return v, err
		})
		var max int64
		for o := range outcomes {
			if o.Err != nil {
				continue
			}
			if v, ok := toInt64(o.Value); ok && v > max {
				max = v
			}
		}
		return max, nil
	}

	outcomes := invokeScript(ctx, q.fanOut, q.nodes, ScriptLQSize, []string{q.queuePath})
	var max int64
	for o := range outcomes {
		if o.Err != nil {
			continue
		}
		qs, ok := o.Value.(QSize)
		if !ok {
			continue
		}
		v := qs.Queued
		if taken {
			v = qs.Taken
		}
		if v > max {
			max = v
		}
	}
	return max, nil
}

func (q *Queue) armExtender(h string, onFailure func(string)) {
	q.extenders.arm(h, func(ctx context.Context, key string) bool {
		return q.ExtendLock(ctx, key) > 0
	}, q.pollingInterval(), q.timerFactory, onFailure)
}

func (q *Queue) opLogger(op, handle string) *zap.Logger {
	return q.logger.With(zap.String("op", op), zap.String("handle", handle), zap.String("op_id", uuid.NewString()))
}

func exceptNode(nodes []Node, exclude Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != exclude {
			out = append(out, n)
		}
	}
	return out
}
