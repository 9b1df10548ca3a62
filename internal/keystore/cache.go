package keystore

import "sync"

// UnlockCache holds decrypted secret keys for the lifetime of the process.
// It is an explicit object passed to the resolver rather than ambient
// state: unlock populates it, lock drops the entry, and Clear must run at
// process exit so decrypted secrets never outlive their session. Nothing
// in it is ever persisted.
//
// The mutex matters for bulk-send callers that resolve the same signing
// key from many goroutines.
type UnlockCache struct {
	mu   sync.Mutex
	keys map[string][]byte
}

// NewUnlockCache creates an empty cache.
func NewUnlockCache() *UnlockCache {
	return &UnlockCache{keys: make(map[string][]byte)}
}

// Put stores a copy of the secret key for an account name.
func (c *UnlockCache) Put(name string, secret []byte) {
	cp := make([]byte, len(secret))
	copy(cp, secret)

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.keys[name]; ok {
		zero(old)
	}
	c.keys[name] = cp
}

// Get returns a copy of the cached secret key, if present.
func (c *UnlockCache) Get(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	secret, ok := c.keys[name]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(secret))
	copy(cp, secret)
	return cp, true
}

// Has reports whether a secret is cached for the account name.
func (c *UnlockCache) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.keys[name]
	return ok
}

// Drop zeroes and removes the cached secret for one account.
func (c *UnlockCache) Drop(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if secret, ok := c.keys[name]; ok {
		zero(secret)
		delete(c.keys, name)
	}
}

// Clear zeroes and removes every cached secret. Callers defer this at
// process exit.
func (c *UnlockCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, secret := range c.keys {
		zero(secret)
		delete(c.keys, name)
	}
}
