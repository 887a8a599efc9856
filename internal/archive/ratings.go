package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"katalog-linkow/internal/tree"
)

// RatingCategorySentinel marks a link node as a rating-archive entry
// rather than a real link; its URL field carries the JSON payload.
const RatingCategorySentinel = "ArchivedRating"

var (
	ErrNotRatingEntry   = errors.New("node is not an archived rating entry")
	ErrRatingTargetGone = errors.New("rated item no longer exists")
)

// RatingPayload is the JSON stored in an entry link's URL field.
type RatingPayload struct {
	CategoryPath string `json:"CategoryPath"`
	Title        string `json:"Title"`
	RatingName   string `json:"RatingName"`
	Score        int    `json:"Score"`
	Reason       string `json:"Reason"`
}

// Grouping keys use the storage separator, never the display one.
func groupKey(storagePath, itemTitle string) string {
	return storagePath + tree.StorageSeparator + itemTitle
}

// isRatingGroup distinguishes a synthetic grouping node from a normally
// archived category: groups carry a Keywords key but no archive stamp.
func isRatingGroup(n *tree.Node) bool {
	return n.Category != nil && n.Category.ArchivedAt == nil && n.Category.Keywords != ""
}

func (s *Service) findGroup(key string) *tree.Node {
	for _, child := range s.forest.ArchiveRoot().Children {
		if isRatingGroup(child) && strings.EqualFold(child.Category.Keywords, key) {
			return child
		}
	}
	return nil
}

// ArchiveRating records a rating value that is about to be overwritten.
// All historical ratings for one item nest under a single grouping
// node; within the group at most one entry per rating name survives,
// the newer overwrite evicting the older entry.
func (s *Service) ArchiveRating(storagePath, itemTitle string, old tree.RatingValue) error {
	key := groupKey(storagePath, itemTitle)

	group := s.findGroup(key)
	if group == nil {
		group = tree.NewCategoryNode(itemTitle)
		group.Category.Keywords = key
		root := s.forest.ArchiveRoot()
		root.Children = append(root.Children, group)
		tree.RebindParents(root)
	}

	// Eviction: jedna pozycja na nazwę oceny.
	for _, entry := range group.Children {
		if entry.Link != nil && strings.EqualFold(entry.Link.Title, old.Rating) {
			_ = group.RemoveChild(entry)
			break
		}
	}

	payload, err := json.Marshal(RatingPayload{
		CategoryPath: storagePath,
		Title:        itemTitle,
		RatingName:   old.Rating,
		Score:        old.Score,
		Reason:       old.Reason,
	})
	if err != nil {
		return err
	}

	entry := tree.NewLinkNode(old.Rating, string(payload))
	entry.Link.CategoryPath = RatingCategorySentinel
	entry.Link.CreatedAt = old.CreatedAt
	if err := group.AddChild(entry); err != nil {
		return err
	}

	return s.saveLedger()
}

// OverwriteRating assigns a rating value to a live node. A previous
// value under the same rating name goes to the archive ledger first,
// never straight to the bin.
func (s *Service) OverwriteRating(node *tree.Node, ratingName string, score int, reason string) error {
	ratings := targetRatings(node)
	now := time.Now()
	for i := range *ratings {
		if strings.EqualFold((*ratings)[i].Rating, ratingName) {
			if err := s.ArchiveRating(storagePathOf(node), node.Name(), (*ratings)[i]); err != nil {
				return err
			}
			(*ratings)[i].Score = score
			(*ratings)[i].Reason = reason
			(*ratings)[i].ModifiedAt = now
			return nil
		}
	}
	*ratings = append(*ratings, tree.RatingValue{
		Rating:     ratingName,
		Score:      score,
		Reason:     reason,
		CreatedAt:  now,
		ModifiedAt: now,
	})
	return nil
}

// storagePathOf renders a node's ancestor path in the storage form used
// by grouping keys.
func storagePathOf(n *tree.Node) string {
	return strings.ReplaceAll(n.AncestorPath(), tree.PathSeparator, tree.StorageSeparator)
}

// ListRatingGroups returns every grouping node currently in the ledger.
func (s *Service) ListRatingGroups() []*tree.Node {
	var groups []*tree.Node
	for _, child := range s.forest.ArchiveRoot().Children {
		if isRatingGroup(child) {
			groups = append(groups, child)
		}
	}
	return groups
}

// RestoreRating re-applies an archived rating to its original item. The
// item's current value for that rating name is archived first, so the
// ledger stays lossless (a rating-for-rating swap). The entry is
// removed afterwards and its group deleted once empty.
func (s *Service) RestoreRating(entry *tree.Node) error {
	if entry == nil || entry.Link == nil || entry.Link.CategoryPath != RatingCategorySentinel {
		return ErrNotRatingEntry
	}
	group := entry.Parent()
	if group == nil || !isRatingGroup(group) {
		return ErrNotRatingEntry
	}

	var payload RatingPayload
	if err := json.Unmarshal([]byte(entry.Link.URL), &payload); err != nil {
		return fmt.Errorf("corrupted rating payload: %w", err)
	}

	target, err := s.resolveRatedItem(payload.CategoryPath, payload.Title)
	if err != nil {
		return err
	}

	// The entry leaves the group before the swap; archiving the current
	// value below re-fills the same slot.
	if err := group.RemoveChild(entry); err != nil {
		return err
	}

	ratings := targetRatings(target)
	now := time.Now()
	replaced := false
	for i := range *ratings {
		if strings.EqualFold((*ratings)[i].Rating, payload.RatingName) {
			// Zamiana: bieżąca wartość trafia do archiwum.
			if err := s.ArchiveRating(payload.CategoryPath, payload.Title, (*ratings)[i]); err != nil {
				return err
			}
			(*ratings)[i].Score = payload.Score
			(*ratings)[i].Reason = payload.Reason
			(*ratings)[i].ModifiedAt = now
			replaced = true
			break
		}
	}
	if !replaced {
		*ratings = append(*ratings, tree.RatingValue{
			Rating:     payload.RatingName,
			Score:      payload.Score,
			Reason:     payload.Reason,
			CreatedAt:  now,
			ModifiedAt: now,
		})
	}

	if len(group.Children) == 0 {
		_ = s.forest.ArchiveRoot().RemoveChild(group)
	}

	if err := s.saveLedger(); err != nil {
		return err
	}
	return s.store.SaveCategory(tree.RootOf(target))
}

// resolveRatedItem converts a storage-separated path back into display
// segments and walks the live tree to the rated item.
func (s *Service) resolveRatedItem(storagePath, title string) (*tree.Node, error) {
	displayPath := strings.ReplaceAll(storagePath, tree.StorageSeparator, tree.PathSeparator)
	parent, err := s.forest.ResolvePath(displayPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRatingTargetGone, storagePath)
	}

	var siblings []*tree.Node
	if parent == nil {
		siblings = s.forest.Roots
	} else {
		siblings = parent.Children
	}
	for _, child := range siblings {
		if strings.EqualFold(child.Name(), title) {
			return child, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrRatingTargetGone, storagePath, title)
}

func targetRatings(n *tree.Node) *[]tree.RatingValue {
	if n.Category != nil {
		return &n.Category.Ratings
	}
	return &n.Link.Ratings
}
