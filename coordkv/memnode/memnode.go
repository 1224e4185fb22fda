// Package memnode is an in-memory reference implementation of coordkv.Node,
// used by coordkv's own test suite and by the CLI's --inmemory demo
// ensemble. It reinterprets the Lua script bodies in coordkv/scripts.go
// directly as Go, rather than embedding an interpreter, but must match
// their semantics exactly — callers should not rely on anything about its
// internals beyond the coordkv.Node contract.
package memnode

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"coordkv"
)

const completed = "completed"

type entry struct {
	value      any // int64 client id, or the string "completed"
	expireAt   int64
	persistent bool // true once completed: never expires
}

// Node is a single in-memory store. The zero value is not usable; build
// one with New.
type Node struct {
	mu    sync.Mutex
	kv    map[string]*entry
	zsets map[string]map[string]float64
	now   func() time.Time
	name  string
}

// Option configures a Node.
type Option func(*Node)

// WithNow overrides the wall-clock source used for expiry checks.
func WithNow(f func() time.Time) Option {
	return func(n *Node) { n.now = f }
}

// WithName sets a label used only by String(), for logs and test output.
func WithName(name string) Option {
	return func(n *Node) { n.name = name }
}

// New builds an empty Node.
func New(opts ...Option) *Node {
	n := &Node{
		kv:    make(map[string]*entry),
		zsets: make(map[string]map[string]float64),
		now:   time.Now,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Node) String() string {
	if n.name != "" {
		return n.name
	}
	return fmt.Sprintf("memnode(%p)", n)
}

// load returns (value, true) if key is present and, for non-persistent
// entries, not yet past its expiry — expiring it in place otherwise, the
// way a real store's TTL would.
func (n *Node) load(key string) (any, bool) {
	e, ok := n.kv[key]
	if !ok {
		return nil, false
	}
	if !e.persistent && n.now().Unix() >= e.expireAt {
		delete(n.kv, key)
		return nil, false
	}
	return e.value, true
}

func (n *Node) Eval(ctx context.Context, script coordkv.Script, keys []string, args ...any) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch script {
	case coordkv.ScriptLLock:
		return n.lLock(keys[0], args[0].(int64), args[1].(int64))
	case coordkv.ScriptLUnlock:
		return n.lUnlock(keys[0], args[0].(int64))
	case coordkv.ScriptLExtendLock:
		return n.lExtendLock(keys[0], args[0].(int64), args[1].(int64))
	case coordkv.ScriptLQGet:
		return n.lqGet(keys[0], args[0].(int64), args[1].(int64))
	case coordkv.ScriptLQLock:
		return n.lqLock(keys[0], keys[1], args[0].(int64), args[1].(int64), args[2].(int64))
	case coordkv.ScriptLQExtendLock:
		return n.lqExtendLock(keys[0], args[0].(int64), args[1].(int64))
	case coordkv.ScriptLQConsume:
		return n.lqConsume(keys[0], keys[1], args[0].(int64))
	case coordkv.ScriptLQUnlock:
		return n.lqUnlock(keys[0], args[0].(int64))
	case coordkv.ScriptLQSize:
		return n.lqQSize(keys[0])
	default:
		return nil, fmt.Errorf("memnode: unknown script %v", script)
	}
}

func (n *Node) lLock(path string, clientID, expireAt int64) (any, error) {
	if _, ok := n.load(path); ok {
		return int64(0), nil
	}
	n.kv[path] = &entry{value: clientID, expireAt: expireAt}
	return int64(1), nil
}

func (n *Node) lUnlock(path string, clientID int64) (any, error) {
	v, ok := n.load(path)
	if !ok {
		return int64(1), nil
	}
	if id, isInt := v.(int64); isInt && id == clientID {
		delete(n.kv, path)
		return int64(1), nil
	}
	return int64(0), nil
}

func (n *Node) lExtendLock(path string, expireAt, clientID int64) (any, error) {
	v, ok := n.load(path)
	if !ok {
		return int64(0), nil
	}
	if id, isInt := v.(int64); isInt && id == clientID {
		n.kv[path].expireAt = expireAt
		return int64(1), nil
	}
	return int64(0), nil
}

func (n *Node) set(q string) map[string]float64 {
	s := n.zsets[q]
	if s == nil {
		s = make(map[string]float64)
		n.zsets[q] = s
	}
	return s
}

func (n *Node) lqGet(q string, clientID, expireAt int64) (any, error) {
	s := n.set(q)
	if len(s) == 0 {
		return nil, coordkv.ErrQueueEmpty
	}
	var h string
	haveBest := false
	bestScore := 0.0
	for m, score := range s {
		if !haveBest || score < bestScore || (score == bestScore && m < h) {
			bestScore, h, haveBest = score, m, true
		}
	}
	if _, ok := n.load(h); ok {
		return nil, coordkv.ErrAlreadyLocked
	}
	n.kv[h] = &entry{value: clientID, expireAt: expireAt}
	s[h]++
	return h, nil
}

func (n *Node) lqLock(h, q string, expireAt, randint, clientID int64) (any, error) {
	if val, ok := n.load(h); ok {
		if s, isStr := val.(string); isStr && s == completed {
			delete(n.set(q), h)
			return nil, coordkv.ErrAlreadyCompleted
		}
		n.decayScore(q, h, randint)
		return nil, coordkv.ErrAlreadyLocked
	}
	n.kv[h] = &entry{value: clientID, expireAt: expireAt}
	n.set(q)[h]++
	return int64(1), nil
}

// decayScore reproduces LuaLQLock's anti-starvation branch: seed a PRNG
// with randint, draw num uniformly from [1, floor(score)+1], and if num !=
// 1 increment the score by (num-1)/score. Deterministic given randint, per
// spec §9 — not claimed to match Lua's math.random sequence bit-for-bit,
// only to be equally deterministic and equally fair.
func (n *Node) decayScore(q, h string, randint int64) {
	set := n.set(q)
	score, ok := set[h]
	if !ok || score <= 0 {
		return
	}
	r := rand.New(rand.NewPCG(uint64(randint), uint64(randint)))
	num := r.Int64N(int64(math.Floor(score))+1) + 1
	if num != 1 {
		set[h] = score + float64(num-1)/score
	}
}

func (n *Node) lqExtendLock(h string, expireAt, clientID int64) (any, error) {
	v, ok := n.load(h)
	if !ok {
		return nil, coordkv.ErrExpired
	}
	if id, isInt := v.(int64); isInt && id == clientID {
		n.kv[h].expireAt = expireAt
		return int64(1), nil
	}
	if s, isStr := v.(string); isStr && s == completed {
		return nil, coordkv.ErrAlreadyCompleted
	}
	return nil, coordkv.ErrExpired
}

func (n *Node) lqConsume(h, q string, clientID int64) (any, error) {
	v, ok := n.load(h)
	owned := ok && func() bool {
		if id, isInt := v.(int64); isInt {
			return id == clientID
		}
		s, isStr := v.(string)
		return isStr && s == completed
	}()
	if !owned {
		return int64(0), nil
	}
	n.kv[h] = &entry{value: completed, persistent: true}
	delete(n.set(q), h)
	return int64(1), nil
}

func (n *Node) lqUnlock(h string, clientID int64) (any, error) {
	v, ok := n.load(h)
	if !ok {
		return int64(0), nil
	}
	if id, isInt := v.(int64); isInt && id == clientID {
		delete(n.kv, h)
		return int64(1), nil
	}
	return int64(0), nil
}

func (n *Node) lqQSize(q string) (any, error) {
	var taken, queued int64
	for h := range n.set(q) {
		if _, ok := n.load(h); ok {
			taken++
		} else {
			queued++
		}
	}
	return coordkv.QSize{Taken: taken, Queued: queued}, nil
}

func (n *Node) ZAdd(ctx context.Context, set string, score float64, member string) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.set(set)
	_, exists := s[member]
	s[member] = score
	if exists {
		return 0, nil
	}
	return 1, nil
}

func (n *Node) ZCard(ctx context.Context, set string) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return int64(len(n.set(set))), nil
}
