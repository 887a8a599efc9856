package tree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestForestAddRootRejectsDuplicates(t *testing.T) {
	f := NewForest()
	require.NoError(t, f.AddRoot(NewCategoryNode("Media")))
	require.ErrorIs(t, f.AddRoot(NewCategoryNode("media")), ErrDuplicateName)
}

func TestArchiveRootIsCreatedOnce(t *testing.T) {
	f := NewForest()
	first := f.ArchiveRoot()
	second := f.ArchiveRoot()

	require.Same(t, first, second)
	require.True(t, first.Category.IsArchiveNode)
	require.Equal(t, ArchiveRootName, first.Name())
	require.Len(t, f.Roots, 1)
}

func TestResolvePath(t *testing.T) {
	f := NewForest()
	media := NewCategoryNode("Media")
	movies := NewCategoryNode("Movies")
	require.NoError(t, f.AddRoot(media))
	require.NoError(t, media.AddChild(movies))

	node, err := f.ResolvePath("Media > Movies")
	require.NoError(t, err)
	require.Same(t, movies, node)

	// Sentinel i pusta ścieżka wskazują poziom korzeni.
	node, err = f.ResolvePath("Root")
	require.NoError(t, err)
	require.Nil(t, node)

	node, err = f.ResolvePath("")
	require.NoError(t, err)
	require.Nil(t, node)

	_, err = f.ResolvePath("Media > Missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.ResolvePath("Missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindByID(t *testing.T) {
	f := NewForest()
	media := NewCategoryNode("Media")
	link := NewLinkNode("Trailer", "https://example.com")
	require.NoError(t, f.AddRoot(media))
	require.NoError(t, media.AddChild(link))

	require.Same(t, link, f.FindByID(link.ID))
	require.Nil(t, f.FindByID("no-such-id"))
}

func TestSortChildren(t *testing.T) {
	parent := NewCategoryNode("Parent")
	b := NewCategoryNode("Banana")
	a := NewCategoryNode("apple")
	c := NewCategoryNode("Cherry")
	for _, n := range []*Node{b, a, c} {
		require.NoError(t, parent.AddChild(n))
	}
	a.Category.CreatedAt = time.Now().Add(-2 * time.Hour)
	b.Category.CreatedAt = time.Now().Add(-1 * time.Hour)
	c.Category.CreatedAt = time.Now()

	parent.Category.SortOrder = SortNameAsc
	SortChildren(parent)
	require.Equal(t, []*Node{a, b, c}, parent.Children)

	parent.Category.SortOrder = SortCreatedDesc
	SortChildren(parent)
	require.Equal(t, []*Node{c, b, a}, parent.Children)

	// Manual zostawia kolejność bez zmian.
	parent.Category.SortOrder = SortManual
	SortChildren(parent)
	require.Equal(t, []*Node{c, b, a}, parent.Children)
}
