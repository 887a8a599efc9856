package tree

import (
	"sort"
	"strings"
	"time"
)

// ArchiveRootName is the well-known name of the reserved archive root.
const ArchiveRootName = "Archive"

// Forest holds every root category, including the single reserved
// archive root that receives soft-deleted nodes.
type Forest struct {
	Roots []*Node
}

func NewForest() *Forest {
	return &Forest{}
}

func (f *Forest) AddRoot(root *Node) error {
	for _, r := range f.Roots {
		if strings.EqualFold(r.Name(), root.Name()) {
			return ErrDuplicateName
		}
	}
	f.Roots = append(f.Roots, root)
	return nil
}

func (f *Forest) RemoveRoot(root *Node) error {
	for i, r := range f.Roots {
		if r == root {
			f.Roots = append(f.Roots[:i], f.Roots[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *Forest) FindRoot(name string) *Node {
	for _, r := range f.Roots {
		if strings.EqualFold(r.Name(), name) {
			return r
		}
	}
	return nil
}

// ArchiveRoot returns the reserved archive root, creating it on first
// use. There is never more than one.
func (f *Forest) ArchiveRoot() *Node {
	for _, r := range f.Roots {
		if r.Category != nil && r.Category.IsArchiveNode {
			return r
		}
	}
	root := NewCategoryNode(ArchiveRootName)
	root.Category.IsArchiveNode = true
	f.Roots = append(f.Roots, root)
	return root
}

// FindCategoryByName walks the whole forest and returns the first
// category whose name matches, case-insensitively. O(tree size); tree
// sizes stay in the hundreds to low thousands, so a plain walk is fine.
func (f *Forest) FindCategoryByName(name string) *Node {
	for _, r := range f.Roots {
		if found := findCategory(r, name); found != nil {
			return found
		}
	}
	return nil
}

func findCategory(n *Node, name string) *Node {
	if n.Category != nil && strings.EqualFold(n.Category.Name, name) {
		return n
	}
	for _, child := range n.Children {
		if found := findCategory(child, name); found != nil {
			return found
		}
	}
	return nil
}

// FindByID walks the whole forest looking for a node ID.
func (f *Forest) FindByID(id string) *Node {
	for _, r := range f.Roots {
		if found := findByID(r, id); found != nil {
			return found
		}
	}
	return nil
}

func findByID(n *Node, id string) *Node {
	if n.ID == id {
		return n
	}
	for _, child := range n.Children {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// ResolvePath walks a " > "-joined path segment by segment from the
// forest roots. The "Root" sentinel (or an empty path) resolves to nil,
// meaning "attach at the top level".
func (f *Forest) ResolvePath(path string) (*Node, error) {
	if path == "" || path == RootSentinel {
		return nil, nil
	}
	segments := strings.Split(path, PathSeparator)
	current := f.FindRoot(segments[0])
	if current == nil {
		return nil, ErrNotFound
	}
	for _, segment := range segments[1:] {
		var next *Node
		for _, child := range current.Children {
			if strings.EqualFold(child.Name(), segment) {
				next = child
				break
			}
		}
		if next == nil {
			return nil, ErrNotFound
		}
		current = next
	}
	return current, nil
}

// RootOf follows parent pointers up to the tree root of a node.
func RootOf(n *Node) *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// SortChildren orders n's children according to the category's SortOrder.
// Manual order (the persisted insertion order) is left untouched.
func SortChildren(n *Node) {
	if n.Category == nil || n.Category.SortOrder == SortManual || n.Category.SortOrder == "" {
		return
	}
	order := n.Category.SortOrder
	sort.SliceStable(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		switch order {
		case SortNameAsc:
			return strings.ToLower(a.Name()) < strings.ToLower(b.Name())
		case SortNameDesc:
			return strings.ToLower(a.Name()) > strings.ToLower(b.Name())
		case SortCreatedAsc:
			return createdAt(a).Before(createdAt(b))
		case SortCreatedDesc:
			return createdAt(b).Before(createdAt(a))
		}
		return false
	})
}

func createdAt(n *Node) time.Time {
	if n.Category != nil {
		return n.Category.CreatedAt
	}
	return n.Link.CreatedAt
}
