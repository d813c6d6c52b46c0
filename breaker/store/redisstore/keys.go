package redisstore

import "strconv"

// Key layout is normative per spec.md §6, so that independently built
// engines sharing a key namespace stay interoperable:
//
//	cb:{key}:b:{alignedEpoch}   hash with fields s, f ; ttl = window + bucket
//	cb:{key}:latch              string: "Closed" | "Open" | "HalfOpen"
//	cb:{key}:probes             integer
//	cb:{key}:ramp               integer 0..100

func bucketKey(key string, epoch int64) string {
	return "cb:" + key + ":b:" + strconv.FormatInt(epoch, 10)
}

func latchKey(key string) string {
	return "cb:" + key + ":latch"
}

func probesKey(key string) string {
	return "cb:" + key + ":probes"
}

func rampKey(key string) string {
	return "cb:" + key + ":ramp"
}
