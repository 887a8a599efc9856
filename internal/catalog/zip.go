package catalog

import (
	stdzip "archive/zip"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/yeka/zip"

	"katalog-linkow/internal/manifest"
	"katalog-linkow/internal/tree"
)

type zipEntry struct {
	name     string // slash-separated path inside the archive
	isDir    bool
	size     int64
	modified time.Time
}

// catalogZip mirrors a zip archive's entries as catalog nodes. The
// manifest entry itself is not part of the catalog.
func (b *Builder) catalogZip(node *tree.Node, path string, filters []glob.Glob) ([]*tree.Node, error) {
	password := ""
	if b.passwords != nil {
		if pw, ok := b.passwords.PasswordForCategory(tree.RootOf(node)); ok {
			password = pw
		}
	}

	entries, err := listZipEntries(path, password)
	if err != nil {
		return nil, err
	}

	root := tree.NewLinkNode("", path)
	for _, e := range entries {
		if e.name == manifest.FileName {
			continue
		}
		placeZipEntry(root, path, e, filters)
	}

	children := root.Children
	for _, child := range children {
		tree.RebindParents(child)
	}
	return children, nil
}

// placeZipEntry walks/creates intermediate directory nodes for each
// path segment, then drops the leaf in place.
func placeZipEntry(root *tree.Node, zipPath string, e zipEntry, filters []glob.Glob) {
	segments := strings.Split(strings.Trim(e.name, "/"), "/")
	current := root
	for i, segment := range segments {
		last := i == len(segments)-1
		if last && !e.isDir {
			if !matchesAny(filters, segment) {
				return
			}
			leaf := newEntryNode(segment, zipPath+"!/"+e.name, false, e.size, e.modified)
			current.Children = append(current.Children, leaf)
			return
		}
		next := childDirNamed(current, segment)
		if next == nil {
			next = newEntryNode(segment, zipPath+"!/"+strings.Join(segments[:i+1], "/"), true, 0, e.modified)
			current.Children = append(current.Children, next)
		}
		current = next
	}
}

func childDirNamed(n *tree.Node, name string) *tree.Node {
	for _, child := range n.Children {
		if child.Link != nil && child.Link.IsDirectory && child.Link.Title == name {
			return child
		}
	}
	return nil
}

// listZipEntries reads the archive's central directory, standard reader
// first, password-aware reader on any failure.
func listZipEntries(path, password string) ([]zipEntry, error) {
	entries, stdErr := listStandard(path)
	if stdErr == nil {
		return entries, nil
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		// Zwróć pierwotny błąd, zwykle jest bardziej konkretny.
		return nil, stdErr
	}
	defer r.Close()

	for _, f := range r.File {
		if f.IsEncrypted() {
			f.SetPassword(password)
		}
		entries = append(entries, zipEntry{
			name:     f.Name,
			isDir:    strings.HasSuffix(f.Name, "/"),
			size:     int64(f.UncompressedSize64),
			modified: f.ModTime(),
		})
	}
	sortEntries(entries)
	return entries, nil
}

func listStandard(path string) ([]zipEntry, error) {
	r, err := stdzip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []zipEntry
	for _, f := range r.File {
		// Wpisy AES wyglądają dla stdlib jak nieznany algorytm;
		// wykryj je tutaj i wymuś czytnik z hasłem.
		if f.Method != stdzip.Store && f.Method != stdzip.Deflate {
			return nil, stdzip.ErrAlgorithm
		}
		entries = append(entries, zipEntry{
			name:     f.Name,
			isDir:    f.FileInfo().IsDir(),
			size:     int64(f.UncompressedSize64),
			modified: f.Modified,
		})
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []zipEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
}
