package coordkv

// Canonical Lua bodies for the scripts in node.go, carried over from
// original_source/majorityredis/{lock,lockingqueue}.py unchanged in
// semantics (string-literal escaping aside). These are the source of truth
// a Redis-backed Node (coordkv/redisnode) compiles into *redis.Script
// values; an in-memory Node (coordkv/memnode) reinterprets the same logic
// directly in Go instead of embedding Lua. The one difference is the seeded
// PRNG score decay in LuaLQLock: memnode's decay is deterministic given its
// randint argument, but its random sequence is not Lua's math.random one.
const (
	// LuaLLock: KEYS[1]=path, ARGV[1]=client_id, ARGV[2]=expireat.
	LuaLLock = `if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
  return 0
end
if redis.call("EXPIREAT", KEYS[1], ARGV[2]) == 0 then
  return {err="invalid expireat"}
end
return 1`

	// LuaLUnlock: KEYS[1]=path, ARGV[1]=client_id.
	LuaLUnlock = `local rv = redis.call("GET", KEYS[1])
if rv == ARGV[1] then
  return redis.call("DEL", KEYS[1])
elseif rv == false then
  return 1
else
  return 0
end`

	// LuaLExtendLock: KEYS[1]=path, ARGV[1]=expireat, ARGV[2]=client_id.
	LuaLExtendLock = `if ARGV[2] == redis.call("GET", KEYS[1]) then
  return redis.call("EXPIREAT", KEYS[1], ARGV[1])
else
  return 0
end`

	// LuaLQGet: KEYS[1]=Q, ARGV[1]=client_id, ARGV[2]=expireat.
	LuaLQGet = `local h_k = redis.call("ZRANGE", KEYS[1], 0, 0)[1]
if nil == h_k then return {err="queue empty"} end
if 1 ~= redis.call("SETNX", h_k, ARGV[1]) then
  return {err="already locked"}
end
if 1 ~= redis.call("EXPIREAT", h_k, ARGV[2]) then
  return {err="invalid expireat"}
end
redis.call("ZINCRBY", KEYS[1], 1, h_k)
return h_k`

	// LuaLQLock: KEYS[1]=h_k, KEYS[2]=Q, ARGV[1]=expireat, ARGV[2]=randint, ARGV[3]=client_id.
	LuaLQLock = `if 0 == redis.call("SETNX", KEYS[1], ARGV[3]) then
  if redis.call("GET", KEYS[1]) == "completed" then
    redis.call("ZREM", KEYS[2], KEYS[1])
    return {err="already completed"}
  else
    local score = redis.call("ZSCORE", KEYS[2], KEYS[1])
    math.randomseed(tonumber(ARGV[2]))
    local num = math.random(math.floor(score) + 1)
    if num ~= 1 then
      redis.call("ZINCRBY", KEYS[2], (num-1)/score, KEYS[1])
    end
    return {err="already locked"}
  end
else
  redis.call("EXPIREAT", KEYS[1], ARGV[1])
  redis.call("ZINCRBY", KEYS[2], 1, KEYS[1])
  return 1
end`

	// LuaLQExtendLock: KEYS[1]=h_k, ARGV[1]=expireat, ARGV[2]=client_id.
	LuaLQExtendLock = `local rv = redis.call("GET", KEYS[1])
if ARGV[2] == rv then
  redis.call("EXPIREAT", KEYS[1], ARGV[1])
  return 1
elseif "completed" == rv then
  return {err="already completed"}
else
  return {err="expired"}
end`

	// LuaLQConsume: KEYS[1]=h_k, KEYS[2]=Q, ARGV[1]=client_id.
	LuaLQConsume = `local rv = redis.call("GET", KEYS[1])
if ARGV[1] == rv or "completed" == rv then
  redis.call("SET", KEYS[1], "completed")
  redis.call("PERSIST", KEYS[1])
  redis.call("ZREM", KEYS[2], KEYS[1])
  return 1
else
  return 0
end`

	// LuaLQUnlock: KEYS[1]=h_k, ARGV[1]=client_id.
	LuaLQUnlock = `if ARGV[1] == redis.call("GET", KEYS[1]) then
  return redis.call("DEL", KEYS[1])
else
  return 0
end`

	// LuaLQSize: KEYS[1]=Q. O(n): iterates every member.
	LuaLQSize = `local taken = 0
local queued = 0
for _, k in ipairs(redis.call("ZRANGE", KEYS[1], 0, -1)) do
  local v = redis.call("GET", k)
  if v then taken = taken + 1 else queued = queued + 1 end
end
return {taken, queued}`
)
