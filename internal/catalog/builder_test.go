package catalog

import (
	stdzip "archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"katalog-linkow/internal/manifest"
	"katalog-linkow/internal/tree"
)

func folderLink(t *testing.T, url string, folderType tree.FolderType, filters string) *tree.Node {
	t.Helper()
	node := tree.NewLinkNode("Moje pliki", url)
	node.Link.IsDirectory = true
	node.Link.FolderType = folderType
	node.Link.FileFilters = filters
	root := tree.NewCategoryNode("Media")
	require.NoError(t, root.AddChild(node))
	return node
}

func entryNames(node *tree.Node) []string {
	var names []string
	for _, child := range node.Children {
		if child.IsCatalogEntry() {
			names = append(names, child.Name())
		}
	}
	return names
}

func TestCreateCatalogsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.txt"), []byte("c"), 0o644))

	node := folderLink(t, dir, tree.FolderCatalogueFiles, "")
	b := New(nil)
	require.NoError(t, b.Create(node))

	// Posortowane po nazwie, katalogi rekurencyjnie.
	require.Equal(t, []string{"a.txt", "b.txt", "sub"}, entryNames(node))
	sub := node.Children[len(node.Children)-1]
	require.True(t, sub.Link.IsDirectory)
	require.Equal(t, []string{"c.txt"}, entryNames(sub))
	require.Equal(t, node, sub.Parent())
	require.NotNil(t, node.Link.LastCatalogUpdate)
}

func TestCreateAppliesFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"movie.mkv", "notes.txt", "Clip.MKV"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	node := folderLink(t, dir, tree.FolderFilteredCatalogue, "*.mkv")
	b := New(nil)
	require.NoError(t, b.Create(node))

	// Dopasowanie bez rozróżniania wielkości liter.
	require.Equal(t, []string{"Clip.MKV", "movie.mkv"}, entryNames(node))
}

func TestCreateRejectsBadInput(t *testing.T) {
	b := New(nil)

	plain := tree.NewLinkNode("WWW", "https://example.com")
	require.ErrorIs(t, b.Create(plain), ErrNotFolderLink)

	missing := folderLink(t, filepath.Join(t.TempDir(), "gone"), tree.FolderCatalogueFiles, "")
	require.ErrorIs(t, b.Create(missing), ErrTargetMissing)

	bad := folderLink(t, t.TempDir(), tree.FolderFilteredCatalogue, "[")
	require.ErrorIs(t, b.Create(bad), ErrInvalidFilter)
}

func TestCreateLinkOnlyIsNoop(t *testing.T) {
	node := folderLink(t, t.TempDir(), tree.FolderLinkOnly, "")
	b := New(nil)
	require.NoError(t, b.Create(node))
	require.Empty(t, node.Children)
	require.Nil(t, node.Link.LastCatalogUpdate)
}

func TestRefreshIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	node := folderLink(t, dir, tree.FolderCatalogueFiles, "")
	manual := tree.NewLinkNode("Ręczny link", "https://example.com")
	require.NoError(t, node.AddChild(manual))

	b := New(nil)
	require.NoError(t, b.Create(node))
	require.NoError(t, b.Refresh(node))
	require.NoError(t, b.Refresh(node))

	// Ręczne dzieci przeżywają, wpisy katalogowe się nie dublują.
	require.Equal(t, []string{"a.txt"}, entryNames(node))
	require.Contains(t, node.Children, manual)
	require.Len(t, node.Children, 2)
}

func TestIsStale(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	node := folderLink(t, dir, tree.FolderCatalogueFiles, "")
	b := New(nil)

	stale, err := b.IsStale(node)
	require.NoError(t, err)
	require.True(t, stale, "never cataloged means stale")

	require.NoError(t, b.Create(node))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(dir, past, past))
	stale, err = b.IsStale(node)
	require.NoError(t, err)
	require.False(t, stale)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(dir, future, future))
	stale, err = b.IsStale(node)
	require.NoError(t, err)
	require.True(t, stale)
}

func TestCreateCatalogsZipArchive(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "media.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	w := stdzip.NewWriter(out)
	for name, body := range map[string]string{
		manifest.FileName: "Root Category: Media\n",
		"movie.mkv":       "data",
		"sub/clip.mkv":    "data",
		"sub/notes.txt":   "text",
	} {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	node := folderLink(t, zipPath, tree.FolderCatalogueFiles, "")
	b := New(nil)
	require.NoError(t, b.Create(node))

	names := entryNames(node)
	require.Contains(t, names, "movie.mkv")
	require.Contains(t, names, "sub")
	require.NotContains(t, names, manifest.FileName, "manifest never shows up in the catalog")

	var sub *tree.Node
	for _, child := range node.Children {
		if child.Name() == "sub" {
			sub = child
		}
	}
	require.NotNil(t, sub)
	require.ElementsMatch(t, []string{"clip.mkv", "notes.txt"}, entryNames(sub))

	// Adresy wpisów wskazują do wnętrza archiwum.
	for _, child := range sub.Children {
		require.Contains(t, child.Link.URL, zipPath+"!/")
	}
}
