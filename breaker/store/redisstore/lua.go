package redisstore

import "github.com/redis/go-redis/v9"

// recordScript atomically increments a bucket's success or failure field
// and refreshes its TTL, mirroring the single-round-trip Lua scripts used
// throughout the rest of the pack (token bucket, lock release).
//
// KEYS[1]: bucket key
// ARGV[1]: field name, "s" or "f"
// ARGV[2]: ttl in seconds
var recordScript = redis.NewScript(`
redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
redis.call("EXPIRE", KEYS[1], ARGV[2])
return 1
`)

// readWindowScript sums the s and f fields across an arbitrary number of
// bucket keys in one round trip. Missing buckets (expired or never
// written) contribute zero.
//
// KEYS: one entry per aligned epoch in the window
var readWindowScript = redis.NewScript(`
local sumS = 0
local sumF = 0
for i = 1, #KEYS do
  local vals = redis.call("HMGET", KEYS[i], "s", "f")
  if vals[1] then sumS = sumS + tonumber(vals[1]) end
  if vals[2] then sumF = sumF + tonumber(vals[2]) end
end
return {sumS, sumF}
`)

// acquireProbeScript implements store.Store.TryAcquireProbe: increment,
// set TTL on first use, roll back and fail over the cap.
//
// KEYS[1]: probe counter key
// ARGV[1]: max probes
// ARGV[2]: ttl in seconds
var acquireProbeScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
  redis.call("DECR", KEYS[1])
  return 0
end
return 1
`)
