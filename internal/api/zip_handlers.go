package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"katalog-linkow/internal/manifest"
	"katalog-linkow/internal/tree"
	"katalog-linkow/internal/zipper"
)

type RezipRequest struct {
	Category  string `json:"category"`
	FileName  string `json:"file_name"`
	TargetDir string `json:"target_dir"`
	Password  string `json:"password"`
}

// RezipHandler rebuilds a zip archive from the current state of a
// category's folder links. When the category is password protected and
// no explicit password is supplied, the session secret is used.
func (s *Server) RezipHandler(w http.ResponseWriter, r *http.Request) {
	var req RezipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileName == "" || req.TargetDir == "" {
		http.Error(w, "file_name and target_dir are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	categoryNode := s.forest.FindCategoryByName(req.Category)
	if categoryNode == nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	password := req.Password
	if password == "" {
		if pw, ok := s.passwordProvider().PasswordForCategory(tree.RootOf(categoryNode)); ok {
			password = pw
		}
	}

	if err := s.engine(true).Rezip(r.Context(), categoryNode, req.FileName, req.TargetDir, password); err != nil {
		if errors.Is(err, zipper.ErrTargetLocked) {
			http.Error(w, "Target file is locked by another process", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to create archive: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

type RefreshZipRequest struct {
	NodeID   string `json:"node_id"`
	Password string `json:"password"`
	Confirm  bool   `json:"confirm"`
}

type RefreshZipResponse struct {
	Degraded bool   `json:"degraded"`
	Notice   string `json:"notice,omitempty"`
}

// RefreshZipHandler rebuilds the archive a zip link points at from the
// category named in its embedded manifest, then re-catalogs it. A
// catalog failure after the bounded retries is reported as a degraded
// success: the archive is valid, only the catalog is stale.
func (s *Server) RefreshZipHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshZipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	zipNode := s.findNode(req.NodeID)
	if zipNode == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}

	password := req.Password
	if password == "" {
		if pw, ok := s.passwordProvider().PasswordForCategory(tree.RootOf(zipNode)); ok {
			password = pw
		}
	}

	err := s.engine(req.Confirm).RefreshFromManifest(r.Context(), s.forest, zipNode, password)
	switch {
	case err == nil:
		if saveErr := s.store.SaveCategory(tree.RootOf(zipNode)); saveErr != nil {
			http.Error(w, "Archive refreshed but catalog not persisted: "+saveErr.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, RefreshZipResponse{})
	case errors.Is(err, zipper.ErrCatalogStale):
		// Zip poprawny, katalog nieaktualny: sukces z zastrzeżeniem.
		writeJSON(w, http.StatusOK, RefreshZipResponse{Degraded: true, Notice: err.Error()})
	case errors.Is(err, zipper.ErrDeclined):
		http.Error(w, "Refresh requires confirmation", http.StatusConflict)
	case errors.Is(err, zipper.ErrCategoryNotFound):
		http.Error(w, "Category named by the manifest does not exist", http.StatusNotFound)
	case errors.Is(err, zipper.ErrNotZipLink):
		http.Error(w, "Node is not a zip folder link", http.StatusBadRequest)
	default:
		http.Error(w, "Failed to refresh archive: "+err.Error(), http.StatusInternalServerError)
	}
}

type ManifestRootResponse struct {
	RootCategory string `json:"root_category"`
}

// ManifestRootHandler reads the root-category name out of a zip's
// embedded manifest without touching the tree.
func (s *Server) ManifestRootHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path query parameter is required", http.StatusBadRequest)
		return
	}
	password := r.URL.Query().Get("password")

	name, err := manifest.ReadRootCategory(path, password)
	if err != nil {
		http.Error(w, "Failed to read manifest: "+err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, ManifestRootResponse{RootCategory: name})
}
