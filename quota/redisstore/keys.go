package redisstore

// Key layout mirrors breaker/store/redisstore's cb:{key}:... namespace:
//
//	cb:quota:{key}   integer, ttl = period
func quotaKey(key string) string {
	return "cb:quota:" + key
}
