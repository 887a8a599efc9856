package tree

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDuplicateName = errors.New("a node with the same name already exists in this category")
	ErrInvalidName   = errors.New("name is empty or contains a reserved path separator")
	ErrNotFound      = errors.New("node not found")
	ErrReadOnlyNode  = errors.New("catalog entries are derived and cannot be edited directly")
)

// PathSeparator is the display separator between ancestor names.
// StorageSeparator is used in rating-archive grouping keys.
const (
	PathSeparator    = " > "
	StorageSeparator = "/"
	RootSentinel     = "Root"
)

type SortOrder string

const (
	SortManual      SortOrder = "manual"
	SortNameAsc     SortOrder = "name_asc"
	SortNameDesc    SortOrder = "name_desc"
	SortCreatedAsc  SortOrder = "created_asc"
	SortCreatedDesc SortOrder = "created_desc"
)

type PasswordProtection string

const (
	ProtectionNone   PasswordProtection = "none"
	ProtectionGlobal PasswordProtection = "global"
	ProtectionOwn    PasswordProtection = "own"
)

type FolderType string

const (
	FolderLinkOnly          FolderType = "link_only"
	FolderCatalogueFiles    FolderType = "catalogue_files"
	FolderFilteredCatalogue FolderType = "filtered_catalogue"
)

type RatingValue struct {
	Rating     string    `json:"rating"`
	Score      int       `json:"score"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

type Category struct {
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	Icon               string             `json:"icon,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	ModifiedAt         time.Time          `json:"modified_at"`
	SortOrder          SortOrder          `json:"sort_order,omitempty"`
	Tags               []string           `json:"tags,omitempty"`
	TagIDs             []int64            `json:"tag_ids,omitempty"`
	Ratings            []RatingValue      `json:"ratings,omitempty"`
	PasswordProtection PasswordProtection `json:"password_protection,omitempty"`
	BackupDirectories  []string           `json:"backup_directories,omitempty"`
	ImportedFrom       string             `json:"imported_from,omitempty"`
	ImportedAt         *time.Time         `json:"imported_at,omitempty"`
	Keywords           string             `json:"keywords,omitempty"`
	ArchivedAt         *time.Time         `json:"archived_at,omitempty"`
	OriginalParentPath *string            `json:"original_parent_path,omitempty"`
	IsArchiveNode      bool               `json:"is_archive_node,omitempty"`
}

type Link struct {
	Title                  string        `json:"title"`
	URL                    string        `json:"url,omitempty"`
	Description            string        `json:"description,omitempty"`
	Keywords               string        `json:"keywords,omitempty"`
	IsDirectory            bool          `json:"is_directory,omitempty"`
	FolderType             FolderType    `json:"folder_type,omitempty"`
	FileFilters            string        `json:"file_filters,omitempty"`
	CategoryPath           string        `json:"category_path,omitempty"`
	CreatedAt              time.Time     `json:"created_at"`
	ModifiedAt             time.Time     `json:"modified_at"`
	FileSize               *int64        `json:"file_size,omitempty"`
	LastCatalogUpdate      *time.Time    `json:"last_catalog_update,omitempty"`
	IsCatalogEntry         bool          `json:"is_catalog_entry,omitempty"`
	IsZipPasswordProtected bool          `json:"is_zip_password_protected,omitempty"`
	Ratings                []RatingValue `json:"ratings,omitempty"`
	TagIDs                 []int64       `json:"tag_ids,omitempty"`
	ArchivedAt             *time.Time    `json:"archived_at,omitempty"`
	OriginalCategoryPath   *string       `json:"original_category_path,omitempty"`
}

// Node is one element of the category/link tree. Exactly one of Category
// or Link is set and the variant never changes after creation. The parent
// pointer is a lookup relation only; ownership lives in Children.
type Node struct {
	ID       string    `json:"id"`
	Category *Category `json:"category,omitempty"`
	Link     *Link     `json:"link,omitempty"`
	Children []*Node   `json:"children,omitempty"`

	parent *Node
}

func NewCategoryNode(name string) *Node {
	now := time.Now()
	return &Node{
		ID: uuid.NewString(),
		Category: &Category{
			Name:               name,
			CreatedAt:          now,
			ModifiedAt:         now,
			SortOrder:          SortManual,
			PasswordProtection: ProtectionNone,
		},
	}
}

func NewLinkNode(title, url string) *Node {
	now := time.Now()
	return &Node{
		ID: uuid.NewString(),
		Link: &Link{
			Title:      title,
			URL:        url,
			FolderType: FolderLinkOnly,
			CreatedAt:  now,
			ModifiedAt: now,
		},
	}
}

func (n *Node) IsCategory() bool { return n.Category != nil }
func (n *Node) IsLink() bool     { return n.Link != nil }

func (n *Node) Parent() *Node { return n.parent }

// Name returns the category name or the link title.
func (n *Node) Name() string {
	if n.Category != nil {
		return n.Category.Name
	}
	if n.Link != nil {
		return n.Link.Title
	}
	return ""
}

func (n *Node) IsCatalogEntry() bool {
	return n.Link != nil && n.Link.IsCatalogEntry
}

func (n *Node) Touch() {
	now := time.Now()
	if n.Category != nil {
		n.Category.ModifiedAt = now
	}
	if n.Link != nil {
		n.Link.ModifiedAt = now
	}
}

// ValidateName rejects empty names and names containing the display or
// storage path separators. Names with separators would corrupt path
// reconstruction on restore and rating-archive grouping keys.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrInvalidName
	}
	if strings.Contains(trimmed, PathSeparator) || strings.Contains(trimmed, StorageSeparator) {
		return ErrInvalidName
	}
	return nil
}

// HasChildNamed reports whether a direct child already uses the name,
// case-insensitively.
func (n *Node) HasChildNamed(name string) bool {
	for _, child := range n.Children {
		if strings.EqualFold(child.Name(), name) {
			return true
		}
	}
	return false
}

// AddChild appends child to n's ordered child sequence. Returns
// ErrDuplicateName when a sibling category already carries the name;
// links may repeat titles (catalog entries mirror the filesystem).
func (n *Node) AddChild(child *Node) error {
	if child.IsCategory() && n.HasChildNamed(child.Name()) {
		return ErrDuplicateName
	}
	n.Children = append(n.Children, child)
	child.parent = n
	return nil
}

// RemoveChild detaches child from n. The child keeps its own subtree.
func (n *Node) RemoveChild(child *Node) error {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.parent = nil
			return nil
		}
	}
	return ErrNotFound
}

// Move detaches node from its current parent and appends it to newParent.
// The node is never copied; its subtree moves with it.
func Move(node, newParent *Node) error {
	if node.IsCatalogEntry() {
		return ErrReadOnlyNode
	}
	if node.parent != nil {
		if err := node.parent.RemoveChild(node); err != nil {
			return err
		}
	}
	return newParent.AddChild(node)
}

// AncestorPath renders the " > "-joined path of node's category ancestors,
// or the "Root" sentinel when node sits at the top of a tree.
func (n *Node) AncestorPath() string {
	var parts []string
	for p := n.parent; p != nil; p = p.parent {
		parts = append([]string{p.Name()}, parts...)
	}
	if len(parts) == 0 {
		return RootSentinel
	}
	return strings.Join(parts, PathSeparator)
}

// DisplayPath is the node's own path including its name.
func (n *Node) DisplayPath() string {
	ancestors := n.AncestorPath()
	if ancestors == RootSentinel {
		return n.Name()
	}
	return ancestors + PathSeparator + n.Name()
}

// Refresh recomputes derived fields across the subtree: every descendant
// link's cached CategoryPath is rebuilt from its current ancestors.
func Refresh(n *Node) {
	if n.Link != nil && !n.Link.IsCatalogEntry {
		n.Link.CategoryPath = n.AncestorPath()
	}
	for _, child := range n.Children {
		Refresh(child)
	}
}

// RebindParents restores the parent back-references after JSON decoding.
func RebindParents(n *Node) {
	for _, child := range n.Children {
		child.parent = n
		RebindParents(child)
	}
}

// Validate checks that the subtree is structurally sound: exactly one
// content variant per node and consistent parent pointers.
func Validate(n *Node) error {
	if (n.Category == nil) == (n.Link == nil) {
		return fmt.Errorf("node %s: exactly one of category or link must be set", n.ID)
	}
	for _, child := range n.Children {
		if child.parent != n {
			return fmt.Errorf("node %s: child %s has a stale parent reference", n.ID, child.ID)
		}
		if err := Validate(child); err != nil {
			return err
		}
	}
	return nil
}
