package cache

import "time"

// LayeredBytes is a two-level BytesCache: in-process TTL map in front of
// Redis. Reads fall through and backfill the memory layer; writes go to both.
type LayeredBytes struct {
	mem   *TTLCache
	redis *RedisCache
}

func NewLayeredBytes(mem *TTLCache, redis *RedisCache) *LayeredBytes {
	return &LayeredBytes{mem: mem, redis: redis}
}

func (l *LayeredBytes) GetBytes(key string) ([]byte, bool, error) {
	if b, ok, _ := l.mem.GetBytes(key); ok {
		return b, true, nil
	}
	b, ok, err := l.redis.GetBytes(key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = l.mem.SetBytes(key, b, time.Minute)
	return b, true, nil
}

func (l *LayeredBytes) SetBytes(key string, value []byte, ttl time.Duration) error {
	_ = l.mem.SetBytes(key, value, ttl)
	return l.redis.SetBytes(key, value, ttl)
}

func (l *LayeredBytes) Delete(key string) error {
	_ = l.mem.Delete(key)
	return l.redis.Delete(key)
}
