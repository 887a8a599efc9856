package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"katalog-linkow/internal/codec"
	"katalog-linkow/internal/tree"
)

func newTestService(t *testing.T) (*Service, *tree.Forest, *codec.Store) {
	t.Helper()
	store, _ := newStoreForTest(t)
	forest := tree.NewForest()
	svc := NewService(forest, store, nil, nil)
	return svc, forest, store
}

func newStoreForTest(t *testing.T) (*codec.Store, *codec.SecretCache) {
	t.Helper()
	secrets := codec.NewSecretCache()
	store, err := codec.NewStore(t.TempDir(), secrets)
	require.NoError(t, err)
	return store, secrets
}

// demoTree builds "Demo" with a "Sub" category holding one link.
func demoTree(t *testing.T, forest *tree.Forest) (demo, sub, link *tree.Node) {
	t.Helper()
	demo = tree.NewCategoryNode("Demo")
	sub = tree.NewCategoryNode("Sub")
	link = tree.NewLinkNode("Example", "https://example.com")
	require.NoError(t, forest.AddRoot(demo))
	require.NoError(t, demo.AddChild(sub))
	require.NoError(t, sub.AddChild(link))
	return demo, sub, link
}

func TestArchiveAndRestoreSubcategory(t *testing.T) {
	svc, forest, store := newTestService(t)
	demo, sub, link := demoTree(t, forest)
	require.NoError(t, store.SaveCategory(demo))

	require.NoError(t, svc.Archive(sub))

	require.Empty(t, demo.Children)
	require.Equal(t, forest.ArchiveRoot(), sub.Parent())
	require.NotNil(t, sub.Category.ArchivedAt)
	require.Equal(t, "Demo", *sub.Category.OriginalParentPath)
	require.Equal(t, sub, link.Parent(), "subtree travels with the node")
	require.FileExists(t, filepath.Join(store.Dir(), LedgerFileName))

	notice, err := svc.Restore(sub)
	require.NoError(t, err)
	require.Empty(t, notice)

	require.Equal(t, demo, sub.Parent())
	require.Nil(t, sub.Category.ArchivedAt)
	require.Nil(t, sub.Category.OriginalParentPath)
	require.Empty(t, svc.ListArchived())
}

func TestArchiveRootCategoryRemovesItsFile(t *testing.T) {
	svc, forest, store := newTestService(t)
	demo, _, _ := demoTree(t, forest)
	require.NoError(t, store.SaveCategory(demo))
	require.FileExists(t, filepath.Join(store.Dir(), "Demo.json"))

	require.NoError(t, svc.Archive(demo))

	require.NoFileExists(t, filepath.Join(store.Dir(), "Demo.json"))
	require.Nil(t, forest.FindRoot("Demo"))
	require.Len(t, svc.ListArchived(), 1)

	// Powrót jako korzeń.
	_, err := svc.Restore(demo)
	require.NoError(t, err)
	require.NotNil(t, forest.FindRoot("Demo"))
	require.FileExists(t, filepath.Join(store.Dir(), "Demo.json"))
}

func TestRestoreFallsBackWhenOriginalLocationGone(t *testing.T) {
	svc, forest, _ := newTestService(t)
	demo, sub, _ := demoTree(t, forest)

	require.NoError(t, svc.Archive(sub))
	require.NoError(t, forest.RemoveRoot(demo))

	notice, err := svc.Restore(sub)
	require.NoError(t, err)
	require.NotEmpty(t, notice)
	require.NotNil(t, forest.FindRoot("Sub"), "category falls back to the tree root")
}

func TestRestoreLinkFallsBackToFirstPlainRoot(t *testing.T) {
	svc, forest, _ := newTestService(t)
	demo, sub, link := demoTree(t, forest)

	require.NoError(t, svc.Archive(link))
	require.NoError(t, demo.RemoveChild(sub))

	notice, err := svc.Restore(link)
	require.NoError(t, err)
	require.NotEmpty(t, notice)
	require.Equal(t, demo, link.Parent(), "link lands in the first plain root")
}

func TestArchiveRejectsInvalidTargets(t *testing.T) {
	svc, forest, _ := newTestService(t)
	_, sub, _ := demoTree(t, forest)

	entry := tree.NewLinkNode("derived.txt", "C:/x/derived.txt")
	entry.Link.IsCatalogEntry = true
	require.ErrorIs(t, svc.Archive(entry), ErrNotArchivable)

	require.ErrorIs(t, svc.Archive(forest.ArchiveRoot()), ErrNotArchivable)

	require.NoError(t, svc.Archive(sub))
	require.ErrorIs(t, svc.Archive(sub), ErrNotArchivable, "already archived")
}

func TestPurgeRequiresConfirmation(t *testing.T) {
	store, _ := newStoreForTest(t)
	forest := tree.NewForest()
	declining := NewService(forest, store, decliningConfirm{}, nil)
	_, sub, _ := demoTree(t, forest)

	require.NoError(t, declining.Archive(sub))
	require.ErrorIs(t, declining.Purge(sub), ErrDeclined)
	require.Len(t, declining.ListArchived(), 1)

	accepting := NewService(forest, store, nil, nil)
	require.NoError(t, accepting.Purge(sub))
	require.Empty(t, accepting.ListArchived())
}

type decliningConfirm struct{}

func (decliningConfirm) Confirm(title, message string) bool { return false }

func TestLedgerSurvivesRestart(t *testing.T) {
	svc, forest, store := newTestService(t)
	_, sub, _ := demoTree(t, forest)
	require.NoError(t, svc.Archive(sub))

	freshForest := tree.NewForest()
	freshSvc := NewService(freshForest, store, nil, nil)
	require.NoError(t, freshSvc.LoadLedger())

	archived := freshSvc.ListArchived()
	require.Len(t, archived, 1)
	require.Equal(t, "Sub", archived[0].Name())
	require.Equal(t, "Demo", *archived[0].Category.OriginalParentPath)
	require.Equal(t, freshForest.ArchiveRoot(), archived[0].Parent())
}

func TestRestoreKeepsNodeArchivedWhenDestinationSaveFails(t *testing.T) {
	store, secrets := newStoreForTest(t)
	forest := tree.NewForest()
	svc := NewService(forest, store, nil, nil)
	demo, _, link := demoTree(t, forest)
	demo.Category.PasswordProtection = tree.ProtectionGlobal
	secrets.SetGlobal("sekret")
	require.NoError(t, store.SaveCategory(demo))
	require.NoError(t, svc.Archive(link))

	// Sesja traci hasło, więc korzeń docelowy nie da się zapisać.
	secrets.Clear()

	_, err := svc.Restore(link)
	require.Error(t, err)

	// Węzeł wraca do archiwum zamiast przepaść między plikami.
	require.Equal(t, forest.ArchiveRoot(), link.Parent())
	require.NotNil(t, link.Link.ArchivedAt)
	require.NotNil(t, link.Link.OriginalCategoryPath)
	require.Len(t, svc.ListArchived(), 1)

	freshForest := tree.NewForest()
	freshSvc := NewService(freshForest, store, nil, nil)
	require.NoError(t, freshSvc.LoadLedger())
	require.Len(t, freshSvc.ListArchived(), 1, "ledger on disk still lists the node")
	require.Equal(t, "Example", freshSvc.ListArchived()[0].Name())
}

func TestArchiveRollsBackWhenLedgerNotWritable(t *testing.T) {
	secrets := codec.NewSecretCache()
	dir := t.TempDir()
	store, err := codec.NewStore(dir, secrets)
	require.NoError(t, err)

	forest := tree.NewForest()
	svc := NewService(forest, store, nil, nil)
	demo, sub, _ := demoTree(t, forest)

	// Katalog w miejscu pliku ledger-a blokuje zapis.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, LedgerFileName), 0o755))

	err = svc.Archive(sub)
	require.Error(t, err)

	require.Equal(t, demo, sub.Parent(), "node returns to its original spot")
	require.Nil(t, sub.Category.ArchivedAt)
	require.Empty(t, svc.ListArchived())
}
