package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"katalog-linkow/internal/collab"
	"katalog-linkow/internal/tree"
)

// findNode assumes s.mu is held.
func (s *Server) findNode(id string) *tree.Node {
	return s.forest.FindByID(id)
}

type CreateLinkRequest struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	ParentPath  string `json:"parent_path"`
	IsDirectory bool   `json:"is_directory"`
	FolderType  string `json:"folder_type"`
	FileFilters string `json:"file_filters"`
}

func (s *Server) CreateLinkHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.URL) == "" {
		http.Error(w, "Title and url are required", http.StatusBadRequest)
		return
	}
	if err := tree.ValidateName(req.Title); err != nil {
		http.Error(w, "Title contains a reserved separator", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.forest.ResolvePath(req.ParentPath)
	if err != nil || parent == nil || !parent.IsCategory() {
		http.Error(w, "Parent category does not exist", http.StatusBadRequest)
		return
	}

	node := tree.NewLinkNode(req.Title, req.URL)
	node.Link.Description = req.Description
	node.Link.IsDirectory = req.IsDirectory
	if req.FolderType != "" {
		node.Link.FolderType = tree.FolderType(req.FolderType)
	}
	node.Link.FileFilters = req.FileFilters

	if err := parent.AddChild(node); err != nil {
		http.Error(w, "Failed to add link", http.StatusConflict)
		return
	}

	if err := s.store.SaveCategory(tree.RootOf(node)); err != nil {
		http.Error(w, "Link created but not persisted: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, node)
}

type UpdateNodeRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	URL         *string  `json:"url,omitempty"`
	SortOrder   *string  `json:"sort_order,omitempty"`
	TagIDs      *[]int64 `json:"tag_ids,omitempty"`
}

func (s *Server) UpdateNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.findNode(nodeID)
	if node == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}
	if node.IsCatalogEntry() {
		http.Error(w, "Catalog entries are derived and cannot be edited", http.StatusForbidden)
		return
	}

	renamedRootFrom := ""
	if req.Name != nil {
		if err := tree.ValidateName(*req.Name); err != nil {
			http.Error(w, "Name is empty or contains a reserved separator", http.StatusBadRequest)
			return
		}
		if parent := node.Parent(); parent != nil && !strings.EqualFold(node.Name(), *req.Name) && parent.HasChildNamed(*req.Name) {
			http.Error(w, "A sibling with this name already exists", http.StatusConflict)
			return
		}
		oldName := node.Name()
		if node.Category != nil {
			if node.Parent() == nil && !strings.EqualFold(oldName, *req.Name) {
				// Root kategorii ma własny plik i klucze haseł pod starą
				// nazwą; trzeba je przenieść, inaczej stary plik wskrzesi
				// zduplikowany korzeń przy następnym starcie.
				renamedRootFrom = oldName
				s.secrets.RenameCategory(oldName, *req.Name)
				if err := s.vault.RenameCategory(oldName, *req.Name); err != nil {
					http.Error(w, "Failed to move category password: "+err.Error(), http.StatusInternalServerError)
					return
				}
			}
			node.Category.Name = *req.Name
		} else {
			node.Link.Title = *req.Name
		}
	}
	if req.Description != nil {
		if node.Category != nil {
			node.Category.Description = *req.Description
		} else {
			node.Link.Description = *req.Description
		}
	}
	if req.URL != nil && node.Link != nil {
		node.Link.URL = *req.URL
	}
	if req.SortOrder != nil && node.Category != nil {
		node.Category.SortOrder = tree.SortOrder(*req.SortOrder)
		tree.SortChildren(node)
	}
	if req.TagIDs != nil {
		if node.Category != nil {
			node.Category.TagIDs = *req.TagIDs
		} else {
			node.Link.TagIDs = *req.TagIDs
		}
	}
	node.Touch()

	if err := s.store.SaveCategory(tree.RootOf(node)); err != nil {
		http.Error(w, "Node updated but not persisted: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if renamedRootFrom != "" {
		if err := s.store.DeleteCategoryFile(renamedRootFrom); err != nil {
			log.Printf("WARN: Old category file %q not removed after rename: %v", renamedRootFrom, err)
		}
	}

	writeJSON(w, http.StatusOK, node)
}

// NodeTagsHandler resolves a node's tag IDs through the registry.
// Unknown IDs are silently dropped; the registry is external and may
// have forgotten them.
func (s *Server) NodeTagsHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.findNode(nodeID)
	if node == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}

	var ids []int64
	if node.Category != nil {
		ids = node.Category.TagIDs
	} else {
		ids = node.Link.TagIDs
	}

	tags := []collab.Tag{}
	for _, id := range ids {
		if tag, ok := s.tags.TagByID(id); ok {
			tags = append(tags, tag)
		}
	}
	writeJSON(w, http.StatusOK, tags)
}

type MoveNodeRequest struct {
	TargetPath string `json:"target_path"`
}

func (s *Server) MoveNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")

	var req MoveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.findNode(nodeID)
	if node == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}
	target, err := s.forest.ResolvePath(req.TargetPath)
	if err != nil || target == nil || !target.IsCategory() {
		http.Error(w, "Target category does not exist", http.StatusBadRequest)
		return
	}

	sourceRoot := tree.RootOf(node)
	if err := tree.Move(node, target); err != nil {
		if errors.Is(err, tree.ErrReadOnlyNode) {
			http.Error(w, "Catalog entries cannot be moved", http.StatusForbidden)
			return
		}
		http.Error(w, "Failed to move node: "+err.Error(), http.StatusConflict)
		return
	}

	// Oba korzenie mogły się zmienić.
	if err := s.store.SaveCategory(tree.RootOf(node)); err != nil {
		http.Error(w, "Move not fully persisted: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if sourceRoot != tree.RootOf(node) && sourceRoot.Parent() == nil {
		if err := s.store.SaveCategory(sourceRoot); err != nil {
			http.Error(w, "Move not fully persisted: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

type RateNodeRequest struct {
	Rating string `json:"rating"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// RateNodeHandler assigns a rating value. Overwriting an existing value
// for the same rating name sends the previous value to the
// rating-archive ledger instead of discarding it.
func (s *Server) RateNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")

	var req RateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Rating == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.findNode(nodeID)
	if node == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}
	if node.IsCatalogEntry() {
		http.Error(w, "Catalog entries cannot be rated", http.StatusForbidden)
		return
	}

	svc := s.archiveService(true)
	if err := svc.OverwriteRating(node, req.Rating, req.Score, req.Reason); err != nil {
		http.Error(w, "Failed to assign rating: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.store.SaveCategory(tree.RootOf(node)); err != nil {
		http.Error(w, "Rating assigned but not persisted: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteNodeHandler soft-deletes: the node moves to the archive with
// its original location recorded. Permanent deletion goes through the
// archive purge endpoint.
func (s *Server) DeleteNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.findNode(nodeID)
	if node == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}

	svc := s.archiveService(true)
	if err := svc.Archive(node); err != nil {
		http.Error(w, "Failed to archive node: "+err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
