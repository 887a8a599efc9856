package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"katalog-linkow/internal/tree"
)

var ErrNotRootCategory = errors.New("only root categories are persisted as standalone files")

const (
	plainExt     = ".json"
	encryptedExt = ".json.enc"
)

// Store persists each root category as one JSON file in the data
// directory, optionally encrypted with a session-cached password.
type Store struct {
	dir     string
	secrets *SecretCache
}

func NewStore(dir string, secrets *SecretCache) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, secrets: secrets}, nil
}

func (s *Store) Dir() string { return s.dir }

// SanitizeName maps a category name onto a safe file name stem.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Store) plainPath(name string) string {
	return filepath.Join(s.dir, SanitizeName(name)+plainExt)
}

func (s *Store) encryptedPath(name string) string {
	return filepath.Join(s.dir, SanitizeName(name)+encryptedExt)
}

// resolvePassword picks the session secret matching the root's
// protection mode. Subcategories inherit the root's protection, so only
// the root is ever consulted.
func (s *Store) resolvePassword(root *tree.Node) (string, bool, error) {
	switch root.Category.PasswordProtection {
	case tree.ProtectionGlobal:
		pw, ok := s.secrets.Global()
		if !ok {
			return "", false, fmt.Errorf("category %q: %w", root.Name(), ErrMissingPassword)
		}
		return pw, true, nil
	case tree.ProtectionOwn:
		pw, ok := s.secrets.ForCategory(root.Name())
		if !ok {
			return "", false, fmt.Errorf("category %q: %w", root.Name(), ErrMissingPassword)
		}
		return pw, true, nil
	default:
		return "", false, nil
	}
}

// SaveCategory writes the root's whole subtree. Derived display paths
// are refreshed first so the persisted CategoryPath caches stay honest.
func (s *Store) SaveCategory(root *tree.Node) error {
	if !root.IsCategory() || root.Parent() != nil {
		return ErrNotRootCategory
	}
	tree.Refresh(root)

	raw, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return err
	}

	password, encrypted, err := s.resolvePassword(root)
	if err != nil {
		return err
	}

	target := s.plainPath(root.Name())
	stale := s.encryptedPath(root.Name())
	if encrypted {
		if raw, err = Encrypt(raw, password); err != nil {
			return err
		}
		target, stale = stale, target
	}

	if err := os.WriteFile(target, raw, 0o644); err != nil {
		return err
	}
	// Usuń plik w drugim wariancie, żeby nie zostały dwie kopie.
	if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: Failed to remove stale twin file %s: %v", stale, err)
	}
	return nil
}

// LoadCategory reads one root category by name, decrypting with the
// per-category secret first and the global secret second.
func (s *Store) LoadCategory(name string) (*tree.Node, error) {
	raw, err := os.ReadFile(s.plainPath(name))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		raw, err = os.ReadFile(s.encryptedPath(name))
		if err != nil {
			return nil, err
		}
	}
	return s.decode(name, raw)
}

func (s *Store) decode(name string, raw []byte) (*tree.Node, error) {
	if IsEncrypted(raw) {
		var plain []byte
		var lastErr error = ErrMissingPassword
		if pw, ok := s.secrets.ForCategory(name); ok {
			plain, lastErr = Decrypt(raw, pw)
		}
		if plain == nil {
			if pw, ok := s.secrets.Global(); ok {
				plain, lastErr = Decrypt(raw, pw)
			}
		}
		if plain == nil {
			return nil, fmt.Errorf("category %q: %w", name, lastErr)
		}
		raw = plain
	}

	var root tree.Node
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	tree.RebindParents(&root)
	return &root, nil
}

// LoadAll reads every persisted root category into a forest. Files that
// cannot be decrypted with the cached secrets are skipped with a
// warning; the caller can retry them after an unlock. The archive
// ledger has its own schema and is not touched here.
func (s *Store) LoadAll() (*tree.Forest, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	forest := tree.NewForest()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()
		if fileName == VaultFileName || fileName == "Archive.json" {
			continue
		}
		var stem string
		switch {
		case strings.HasSuffix(fileName, encryptedExt):
			stem = strings.TrimSuffix(fileName, encryptedExt)
		case strings.HasSuffix(fileName, plainExt):
			stem = strings.TrimSuffix(fileName, plainExt)
		default:
			continue
		}

		root, err := s.LoadCategory(stem)
		if err != nil {
			log.Printf("WARN: Skipping category file %s: %v", fileName, err)
			continue
		}
		if err := forest.AddRoot(root); err != nil {
			log.Printf("WARN: Skipping duplicate root category %q", root.Name())
		}
	}
	return forest, nil
}

// DeleteCategoryFile removes both persisted variants of a root
// category. Missing files are not an error.
func (s *Store) DeleteCategoryFile(name string) error {
	for _, path := range []string{s.plainPath(name), s.encryptedPath(name)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
