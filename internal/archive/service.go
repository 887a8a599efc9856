package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"katalog-linkow/internal/codec"
	"katalog-linkow/internal/collab"
	"katalog-linkow/internal/tree"
)

// LedgerFileName is the archive root's own persisted state, independent
// of the per-category files.
const LedgerFileName = "Archive.json"

var (
	ErrNotArchivable  = errors.New("node cannot be archived")
	ErrNotArchived    = errors.New("node is not in the archive")
	ErrNoOriginalPath = errors.New("archived node has no original path recorded")
	ErrDeclined       = errors.New("operation declined by caller")
)

type ledgerFile struct {
	ArchivedCategories []*tree.Node `json:"ArchivedCategories,omitempty"`
	ArchivedLinks      []*tree.Node `json:"ArchivedLinks,omitempty"`
	LastModified       time.Time    `json:"LastModified"`
}

// Service implements soft delete: nodes move under the reserved archive
// root instead of being destroyed, and can be restored to their
// recorded original location or purged for good.
type Service struct {
	forest  *tree.Forest
	store   *codec.Store
	confirm collab.Confirmer
	status  collab.StatusReporter
}

func NewService(forest *tree.Forest, store *codec.Store, confirm collab.Confirmer, status collab.StatusReporter) *Service {
	if confirm == nil {
		confirm = collab.AutoConfirm{}
	}
	if status == nil {
		status = collab.NopReporter{}
	}
	return &Service{forest: forest, store: store, confirm: confirm, status: status}
}

func (s *Service) ledgerPath() string {
	return filepath.Join(s.store.Dir(), LedgerFileName)
}

// LoadLedger populates the archive root from Archive.json. A missing
// ledger just means nothing was ever archived.
func (s *Service) LoadLedger() error {
	raw, err := os.ReadFile(s.ledgerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var ledger ledgerFile
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return err
	}

	root := s.forest.ArchiveRoot()
	root.Children = nil
	root.Children = append(root.Children, ledger.ArchivedCategories...)
	root.Children = append(root.Children, ledger.ArchivedLinks...)
	tree.RebindParents(root)
	return nil
}

func (s *Service) saveLedger() error {
	root := s.forest.ArchiveRoot()
	ledger := ledgerFile{LastModified: time.Now()}
	for _, child := range root.Children {
		if child.IsCategory() {
			ledger.ArchivedCategories = append(ledger.ArchivedCategories, child)
		} else {
			ledger.ArchivedLinks = append(ledger.ArchivedLinks, child)
		}
	}

	raw, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.ledgerPath(), raw, 0o644)
}

func isUnderArchive(n *tree.Node) bool {
	root := tree.RootOf(n)
	return root.Category != nil && root.Category.IsArchiveNode
}

// Archive detaches node from its current position, stamps the archive
// metadata and moves it under the archive root. The operation is fail
// closed: if the ledger cannot be persisted, the node goes back where
// it was.
func (s *Service) Archive(node *tree.Node) error {
	if node == nil || node.IsCatalogEntry() {
		return ErrNotArchivable
	}
	if node.Category != nil && node.Category.IsArchiveNode {
		return ErrNotArchivable
	}
	if isUnderArchive(node) {
		return ErrNotArchivable
	}

	originalParent := node.Parent()
	originalPath := node.AncestorPath()
	wasRoot := originalParent == nil
	sourceRoot := tree.RootOf(node)
	now := time.Now()

	if wasRoot {
		if err := s.forest.RemoveRoot(node); err != nil {
			return err
		}
	} else {
		if err := originalParent.RemoveChild(node); err != nil {
			return err
		}
	}

	if node.Category != nil {
		node.Category.ArchivedAt = &now
		node.Category.OriginalParentPath = &originalPath
	} else {
		node.Link.ArchivedAt = &now
		node.Link.OriginalCategoryPath = &originalPath
	}

	archiveRoot := s.forest.ArchiveRoot()
	archiveRoot.Children = append(archiveRoot.Children, node)
	tree.RebindParents(archiveRoot)

	if err := s.saveLedger(); err != nil {
		// Cofnij: węzeł wraca na poprzednie miejsce.
		s.unarchiveInPlace(node, originalParent, wasRoot)
		return fmt.Errorf("archive ledger not persisted, operation rolled back: %w", err)
	}

	if wasRoot {
		if err := s.store.DeleteCategoryFile(node.Name()); err != nil {
			log.Printf("WARN: Archived root %q but its file was not removed: %v", node.Name(), err)
		}
	} else {
		if err := s.store.SaveCategory(sourceRoot); err != nil {
			log.Printf("WARN: Source category %q not re-persisted after archiving: %v", sourceRoot.Name(), err)
		}
	}

	s.status.ReportStatus(fmt.Sprintf("%q archived (was under %q)", node.Name(), originalPath))
	return nil
}

// unarchiveInPlace reverts a half-done Archive call.
func (s *Service) unarchiveInPlace(node *tree.Node, originalParent *tree.Node, wasRoot bool) {
	archiveRoot := s.forest.ArchiveRoot()
	if err := archiveRoot.RemoveChild(node); err != nil {
		log.Printf("ERROR: Rollback failed, node %q stuck in archive: %v", node.Name(), err)
		return
	}
	s.clearArchiveStamp(node)
	if wasRoot {
		if err := s.forest.AddRoot(node); err != nil {
			log.Printf("ERROR: Rollback failed for root %q: %v", node.Name(), err)
		}
		return
	}
	if err := originalParent.AddChild(node); err != nil {
		log.Printf("ERROR: Rollback failed for %q: %v", node.Name(), err)
	}
}

func (s *Service) archiveStamp(node *tree.Node) (*time.Time, *string) {
	if node.Category != nil {
		return node.Category.ArchivedAt, node.Category.OriginalParentPath
	}
	return node.Link.ArchivedAt, node.Link.OriginalCategoryPath
}

func (s *Service) restoreArchiveStamp(node *tree.Node, archivedAt *time.Time, originalPath *string) {
	if node.Category != nil {
		node.Category.ArchivedAt = archivedAt
		node.Category.OriginalParentPath = originalPath
	} else {
		node.Link.ArchivedAt = archivedAt
		node.Link.OriginalCategoryPath = originalPath
	}
}

func (s *Service) clearArchiveStamp(node *tree.Node) {
	if node.Category != nil {
		node.Category.ArchivedAt = nil
		node.Category.OriginalParentPath = nil
	} else if node.Link != nil {
		node.Link.ArchivedAt = nil
		node.Link.OriginalCategoryPath = nil
	}
}

// Restore moves an archived node back to its recorded original
// location, resolved segment by segment against the live tree. When the
// location no longer exists the node is restored at the tree root and a
// non-fatal notice is returned.
func (s *Service) Restore(node *tree.Node) (string, error) {
	if node == nil || node.Parent() != s.forest.ArchiveRoot() {
		return "", ErrNotArchived
	}

	var originalPath *string
	if node.Category != nil {
		originalPath = node.Category.OriginalParentPath
	} else {
		originalPath = node.Link.OriginalCategoryPath
	}
	if originalPath == nil {
		return "", ErrNoOriginalPath
	}

	dest, err := s.forest.ResolvePath(*originalPath)
	notice := ""
	if err != nil {
		if !errors.Is(err, tree.ErrNotFound) {
			return "", err
		}
		notice = fmt.Sprintf("original location %q no longer exists; restored at the tree root", *originalPath)
	}

	archiveRoot := s.forest.ArchiveRoot()
	if err := archiveRoot.RemoveChild(node); err != nil {
		return "", err
	}
	archivedAt, pathCopy := s.archiveStamp(node)
	s.clearArchiveStamp(node)
	rollback := func() {
		s.restoreArchiveStamp(node, archivedAt, pathCopy)
		s.reattachToArchive(node)
	}

	var destRoot *tree.Node
	var createdRoot bool
	var detach func() error
	switch {
	case dest != nil:
		if err := dest.AddChild(node); err != nil {
			rollback()
			return "", err
		}
		destRoot = tree.RootOf(dest)
		detach = func() error { return dest.RemoveChild(node) }
	case node.IsCategory():
		// Kategoria wraca jako korzeń.
		if err := s.forest.AddRoot(node); err != nil {
			rollback()
			return "", err
		}
		destRoot = node
		detach = func() error { return s.forest.RemoveRoot(node) }
	default:
		// Link potrzebuje rodzica, więc trafia do pierwszego zwykłego korzenia.
		destRoot = s.firstPlainRoot()
		if destRoot == nil {
			destRoot = tree.NewCategoryNode("Restored")
			if err := s.forest.AddRoot(destRoot); err != nil {
				rollback()
				return "", err
			}
			createdRoot = true
		}
		if err := destRoot.AddChild(node); err != nil {
			if createdRoot {
				_ = s.forest.RemoveRoot(destRoot)
			}
			rollback()
			return "", err
		}
		detach = func() error { return destRoot.RemoveChild(node) }
	}

	// undo reverts a half-done restore: the node goes back into the
	// archive with its stamps, so the still-unmodified ledger on disk
	// keeps matching the tree.
	undo := func() {
		if err := detach(); err != nil {
			log.Printf("ERROR: Rollback failed, node %q left outside the archive: %v", node.Name(), err)
			return
		}
		if createdRoot {
			_ = s.forest.RemoveRoot(destRoot)
		}
		rollback()
	}

	// Najpierw plik docelowy, ledger dopiero po udanym zapisie. W
	// odwrotnej kolejności błąd zapisu zostawiłby węzeł poza oboma
	// plikami.
	if err := s.store.SaveCategory(destRoot); err != nil {
		undo()
		return "", err
	}
	if err := s.saveLedger(); err != nil {
		undo()
		if destRoot != node && !createdRoot {
			if saveErr := s.store.SaveCategory(destRoot); saveErr != nil {
				log.Printf("WARN: Destination root %q not re-persisted after rollback: %v", destRoot.Name(), saveErr)
			}
		}
		return "", err
	}

	if notice != "" {
		s.status.ReportStatus(notice)
	} else {
		s.status.ReportStatus(fmt.Sprintf("%q restored to %q", node.Name(), *originalPath))
	}
	return notice, nil
}

func (s *Service) reattachToArchive(node *tree.Node) {
	root := s.forest.ArchiveRoot()
	root.Children = append(root.Children, node)
	tree.RebindParents(root)
}

func (s *Service) firstPlainRoot() *tree.Node {
	for _, r := range s.forest.Roots {
		if r.Category != nil && !r.Category.IsArchiveNode {
			return r
		}
	}
	return nil
}

// Purge permanently deletes an archived node. Irreversible, so the
// caller has to confirm through the collaborator contract.
func (s *Service) Purge(node *tree.Node) error {
	if node == nil || node.Parent() != s.forest.ArchiveRoot() {
		return ErrNotArchived
	}
	if !s.confirm.Confirm("Delete permanently",
		fmt.Sprintf("Permanently delete %q? This cannot be undone.", node.Name())) {
		return ErrDeclined
	}

	if err := s.forest.ArchiveRoot().RemoveChild(node); err != nil {
		return err
	}
	if err := s.saveLedger(); err != nil {
		return err
	}

	s.status.ReportStatus(fmt.Sprintf("%q deleted permanently", node.Name()))
	return nil
}

// ListArchived returns the archive root's direct children in ledger
// order, skipping rating groups.
func (s *Service) ListArchived() []*tree.Node {
	var out []*tree.Node
	for _, child := range s.forest.ArchiveRoot().Children {
		if isRatingGroup(child) {
			continue
		}
		out = append(out, child)
	}
	return out
}
