package kvstore

// New selects a Store backend: a RedisStore when redisURL is set, otherwise
// an in-process MemoryStore for single-node or test deployments.
func New(redisURL string) (Store, error) {
	if redisURL == "" {
		return NewMemoryStore(), nil
	}
	return NewRedisStore(redisURL)
}
