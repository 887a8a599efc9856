package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"katalog-linkow/internal/collab"
	"katalog-linkow/internal/tree"
)

var (
	ErrTargetMissing = errors.New("catalog target does not exist")
	ErrNotFolderLink = errors.New("link is not a directory link")
	ErrInvalidFilter = errors.New("invalid file filter pattern")
)

// Builder derives read-only catalog-entry nodes mirroring the contents
// of a directory or zip archive under a folder link.
type Builder struct {
	passwords collab.PasswordProvider
}

func New(passwords collab.PasswordProvider) *Builder {
	return &Builder{passwords: passwords}
}

// compileFilters parses the link's semicolon/comma-separated glob
// patterns. Matching is case-insensitive on the base name.
func compileFilters(filters string) ([]glob.Glob, error) {
	var globs []glob.Glob
	for _, raw := range strings.FieldsFunc(filters, func(r rune) bool { return r == ';' || r == ',' }) {
		pattern := strings.ToLower(strings.TrimSpace(raw))
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, raw)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchesAny(globs []glob.Glob, name string) bool {
	if len(globs) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, g := range globs {
		if g.Match(lower) {
			return true
		}
	}
	return false
}

// Create builds the catalog for a folder-link node. A LinkOnly folder
// produces nothing; FilteredCatalogue applies the link's FileFilters to
// files while directories are always traversed.
func (b *Builder) Create(node *tree.Node) error {
	link := node.Link
	if link == nil || !link.IsDirectory || link.IsCatalogEntry {
		return ErrNotFolderLink
	}
	if link.FolderType == tree.FolderLinkOnly || link.FolderType == "" {
		return nil
	}

	var filters []glob.Glob
	if link.FolderType == tree.FolderFilteredCatalogue {
		var err error
		if filters, err = compileFilters(link.FileFilters); err != nil {
			return err
		}
	}

	info, err := os.Stat(link.URL)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrTargetMissing, link.URL)
		}
		return err
	}

	var children []*tree.Node
	if info.IsDir() {
		children, err = b.catalogDirectory(link.URL, filters)
	} else {
		// A plain file target is treated as a zip archive.
		children, err = b.catalogZip(node, link.URL, filters)
	}
	if err != nil {
		return err
	}

	for _, child := range children {
		attachEntry(node, child)
	}
	now := time.Now()
	link.LastCatalogUpdate = &now
	return nil
}

// Refresh drops every existing catalog-entry child and re-enumerates.
// Catalog entries are fully derived state and are never mutated in
// place.
func (b *Builder) Refresh(node *tree.Node) error {
	RemoveEntries(node)
	return b.Create(node)
}

// RemoveEntries strips all catalog-entry children from node. Used both
// before re-cataloging and to release handles into a zip about to be
// rewritten.
func RemoveEntries(node *tree.Node) {
	kept := node.Children[:0]
	for _, child := range node.Children {
		if !child.IsCatalogEntry() {
			kept = append(kept, child)
		}
	}
	node.Children = kept
}

// IsStale reports whether the target directory changed after the last
// catalog run. Read-only; nothing is corrected here.
func (b *Builder) IsStale(node *tree.Node) (bool, error) {
	link := node.Link
	if link == nil || !link.IsDirectory {
		return false, ErrNotFolderLink
	}
	if link.FolderType == tree.FolderLinkOnly || link.FolderType == "" {
		return false, nil
	}
	info, err := os.Stat(link.URL)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%w: %s", ErrTargetMissing, link.URL)
		}
		return false, err
	}
	if link.LastCatalogUpdate == nil {
		return true, nil
	}
	return info.ModTime().After(*link.LastCatalogUpdate), nil
}

func newEntryNode(title, url string, isDir bool, size int64, modTime time.Time) *tree.Node {
	entry := tree.NewLinkNode(title, url)
	entry.Link.IsCatalogEntry = true
	entry.Link.IsDirectory = isDir
	entry.Link.ModifiedAt = modTime
	if !isDir {
		entry.Link.FileSize = &size
	}
	return entry
}

// attachEntry bypasses AddChild's category-name check; catalog entries
// mirror the filesystem verbatim.
func attachEntry(parent, entry *tree.Node) {
	parent.Children = append(parent.Children, entry)
	tree.RebindParents(parent)
}

func (b *Builder) catalogDirectory(dir string, filters []glob.Glob) ([]*tree.Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var nodes []*tree.Node
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		if entry.IsDir() {
			sub := newEntryNode(entry.Name(), full, true, 0, info.ModTime())
			children, err := b.catalogDirectory(full, filters)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				attachEntry(sub, child)
			}
			nodes = append(nodes, sub)
			continue
		}
		if !matchesAny(filters, entry.Name()) {
			continue
		}
		nodes = append(nodes, newEntryNode(entry.Name(), full, false, info.Size(), info.ModTime()))
	}
	return nodes, nil
}
