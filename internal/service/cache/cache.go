package cache

import "time"

// BytesCache is a minimal cache API storing raw bytes with TTL. Delete is the
// explicit invalidation path; deleting an absent key is not an error.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}
