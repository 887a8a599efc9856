package codec

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"katalog-linkow/internal/auth"
)

// VaultFileName holds only bcrypt hashes, used to verify passwords the
// user supplies at runtime. Plaintext never touches this file.
const VaultFileName = "secrets.json"

type vaultData struct {
	GlobalHash     string            `json:"global_hash,omitempty"`
	CategoryHashes map[string]string `json:"category_hashes,omitempty"`
}

type Vault struct {
	path string
	mu   sync.Mutex
	data vaultData
}

func NewVault(dir string) (*Vault, error) {
	v := &Vault{
		path: filepath.Join(dir, VaultFileName),
		data: vaultData{CategoryHashes: make(map[string]string)},
	}

	raw, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &v.data); err != nil {
		return nil, err
	}
	if v.data.CategoryHashes == nil {
		v.data.CategoryHashes = make(map[string]string)
	}
	return v, nil
}

func (v *Vault) save() error {
	raw, err := json.MarshalIndent(v.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(v.path, raw, 0o600)
}

func (v *Vault) HasGlobal() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.data.GlobalHash != ""
}

func (v *Vault) VerifyGlobal(password string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.data.GlobalHash == "" {
		return false
	}
	return auth.CheckPasswordHash(password, v.data.GlobalHash)
}

func (v *Vault) SetGlobal(password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data.GlobalHash = hash
	return v.save()
}

func (v *Vault) VerifyCategory(categoryPath, password string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	hash, ok := v.data.CategoryHashes[strings.ToLower(categoryPath)]
	if !ok {
		return false
	}
	return auth.CheckPasswordHash(password, hash)
}

func (v *Vault) HasCategory(categoryPath string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.data.CategoryHashes[strings.ToLower(categoryPath)]
	return ok
}

func (v *Vault) SetCategory(categoryPath, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data.CategoryHashes[strings.ToLower(categoryPath)] = hash
	return v.save()
}

// RenameCategory moves a stored hash under a new key. Used when a root
// category is renamed; the password itself does not change, so the hash
// is carried over as is. No-op when the old key is absent.
func (v *Vault) RenameCategory(oldPath, newPath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	hash, ok := v.data.CategoryHashes[strings.ToLower(oldPath)]
	if !ok {
		return nil
	}
	delete(v.data.CategoryHashes, strings.ToLower(oldPath))
	v.data.CategoryHashes[strings.ToLower(newPath)] = hash
	return v.save()
}

func (v *Vault) RemoveCategory(categoryPath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.data.CategoryHashes, strings.ToLower(categoryPath))
	return v.save()
}
