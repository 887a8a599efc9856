package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"katalog-linkow/internal/archive"
)

// @Summary      List archived nodes
// @Description  Retrieves every soft-deleted category and link currently held by the archive, with their original locations.
// @Tags         archive
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   tree.Node
// @Router       /archive [get]
func (s *Server) ListArchiveHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc := s.archiveService(true)
	writeJSON(w, http.StatusOK, svc.ListArchived())
}

type RestoreResponse struct {
	Notice string `json:"notice,omitempty"`
}

// @Summary      Restore an archived node
// @Description  Moves a node back to its recorded original location. If that location no longer exists the node is restored at the tree root and the response carries a notice.
// @Tags         archive
// @Produce      json
// @Security     BearerAuth
// @Param        nodeId   path      string  true  "Node ID to restore"
// @Success      200      {object}  RestoreResponse
// @Failure      404      {string}  string "Not Found"
// @Router       /archive/{nodeId}/restore [post]
func (s *Server) RestoreNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.findNode(nodeID)
	if node == nil {
		http.Error(w, "Node not found in archive", http.StatusNotFound)
		return
	}

	svc := s.archiveService(true)
	notice, err := svc.Restore(node)
	if err != nil {
		if errors.Is(err, archive.ErrNotArchived) {
			http.Error(w, "Node is not in the archive", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to restore node: "+err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, RestoreResponse{Notice: notice})
}

// @Summary      Permanently delete an archived node
// @Description  Irreversibly removes a node from the archive. Requires the confirm flag; the client is expected to have asked the user.
// @Tags         archive
// @Security     BearerAuth
// @Param        nodeId   path      string  true   "Node ID to purge"
// @Param        confirm  query     bool    true   "Must be true"
// @Success      204      {null}    nil "No Content"
// @Failure      409      {string}  string "Confirmation missing"
// @Router       /archive/{nodeId} [delete]
func (s *Server) PurgeNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")
	confirmed := r.URL.Query().Get("confirm") == "true"

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.findNode(nodeID)
	if node == nil {
		http.Error(w, "Node not found in archive", http.StatusNotFound)
		return
	}

	svc := s.archiveService(confirmed)
	if err := svc.Purge(node); err != nil {
		switch {
		case errors.Is(err, archive.ErrDeclined):
			http.Error(w, "Permanent deletion requires confirmation", http.StatusConflict)
		case errors.Is(err, archive.ErrNotArchived):
			http.Error(w, "Node is not in the archive", http.StatusNotFound)
		default:
			http.Error(w, "Failed to purge node", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListRatingGroupsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc := s.archiveService(true)
	writeJSON(w, http.StatusOK, svc.ListRatingGroups())
}

// RestoreRatingHandler swaps an archived rating value back onto its
// item; the item's current value takes the entry's place in the ledger.
func (s *Server) RestoreRatingHandler(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.findNode(entryID)
	if entry == nil {
		http.Error(w, "Rating entry not found", http.StatusNotFound)
		return
	}

	svc := s.archiveService(true)
	if err := svc.RestoreRating(entry); err != nil {
		switch {
		case errors.Is(err, archive.ErrNotRatingEntry):
			http.Error(w, "Node is not an archived rating entry", http.StatusBadRequest)
		case errors.Is(err, archive.ErrRatingTargetGone):
			http.Error(w, "The rated item no longer exists", http.StatusConflict)
		default:
			http.Error(w, "Failed to restore rating: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}
