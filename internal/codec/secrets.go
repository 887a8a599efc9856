package codec

import (
	"strings"
	"sync"
)

// SecretCache keeps plaintext passwords for the lifetime of the session
// so the user is not re-prompted on every save. Nothing in here is ever
// written to disk; only bcrypt hashes are persisted (see Vault).
type SecretCache struct {
	mu         sync.RWMutex
	global     string
	hasGlobal  bool
	byCategory map[string]string
}

func NewSecretCache() *SecretCache {
	return &SecretCache{byCategory: make(map[string]string)}
}

func (c *SecretCache) SetGlobal(password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global = password
	c.hasGlobal = true
}

func (c *SecretCache) Global() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global, c.hasGlobal
}

func (c *SecretCache) SetForCategory(categoryPath, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCategory[strings.ToLower(categoryPath)] = password
}

func (c *SecretCache) ForCategory(categoryPath string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pw, ok := c.byCategory[strings.ToLower(categoryPath)]
	return pw, ok
}

// RenameCategory re-keys a cached secret after a root category rename,
// so saves under the new name keep resolving without a re-unlock.
func (c *SecretCache) RenameCategory(oldPath, newPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pw, ok := c.byCategory[strings.ToLower(oldPath)]
	if !ok {
		return
	}
	delete(c.byCategory, strings.ToLower(oldPath))
	c.byCategory[strings.ToLower(newPath)] = pw
}

// Clear wipes every cached secret. Called on logout and shutdown.
func (c *SecretCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global = ""
	c.hasGlobal = false
	c.byCategory = make(map[string]string)
}
