package redisstore

import "github.com/redis/go-redis/v9"

// incrementScript increments KEYS[1] and arms its TTL only on the first
// increment of a cycle, the same one-round-trip shape as
// breaker/store/redisstore's probe semaphore script, minus the cap check.
//
// KEYS[1]: counter key
// ARGV[1]: period in seconds
var incrementScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return n
`)
