package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"katalog-linkow/internal/catalog"
	"katalog-linkow/internal/tree"
)

func (s *Server) catalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFolderLink):
		http.Error(w, "Node is not a directory link", http.StatusBadRequest)
	case errors.Is(err, catalog.ErrTargetMissing):
		http.Error(w, "Catalog target does not exist", http.StatusConflict)
	case errors.Is(err, catalog.ErrInvalidFilter):
		http.Error(w, "Invalid file filter pattern", http.StatusBadRequest)
	default:
		http.Error(w, "Failed to build catalog: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) CreateCatalogHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.findNode(nodeID)
	if node == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}

	if err := s.builder.Create(node); err != nil {
		s.catalogError(w, err)
		return
	}

	if err := s.store.SaveCategory(tree.RootOf(node)); err != nil {
		http.Error(w, "Catalog built but not persisted: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

func (s *Server) RefreshCatalogHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.findNode(nodeID)
	if node == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}

	if err := s.builder.Refresh(node); err != nil {
		s.catalogError(w, err)
		return
	}

	if err := s.store.SaveCategory(tree.RootOf(node)); err != nil {
		http.Error(w, "Catalog rebuilt but not persisted: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

type StalenessResponse struct {
	Stale bool `json:"stale"`
}

// CatalogStaleHandler is a pure read for UI badges; nothing is
// corrected here.
func (s *Server) CatalogStaleHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.findNode(nodeID)
	if node == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}

	stale, err := s.builder.IsStale(node)
	if err != nil {
		s.catalogError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StalenessResponse{Stale: stale})
}
