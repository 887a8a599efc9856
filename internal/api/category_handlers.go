package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"katalog-linkow/internal/codec"
	"katalog-linkow/internal/tree"
)

type CategorySummary struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	PasswordProtection string `json:"password_protection"`
	IsArchiveNode      bool   `json:"is_archive_node,omitempty"`
	ChildCount         int    `json:"child_count"`
}

func (s *Server) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := []CategorySummary{}
	for _, root := range s.forest.Roots {
		summaries = append(summaries, CategorySummary{
			ID:                 root.ID,
			Name:               root.Name(),
			PasswordProtection: string(root.Category.PasswordProtection),
			IsArchiveNode:      root.Category.IsArchiveNode,
			ChildCount:         len(root.Children),
		})
	}

	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) GetCategoryTreeHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.forest.FindRoot(name)
	if root == nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, root)
}

type CreateCategoryRequest struct {
	Name       string `json:"name"`
	ParentPath string `json:"parent_path"` // empty or "Root" creates a root category
}

func (s *Server) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := tree.ValidateName(req.Name); err != nil {
		http.Error(w, "Category name is empty or contains a reserved separator", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := tree.NewCategoryNode(req.Name)

	parent, err := s.forest.ResolvePath(req.ParentPath)
	if err != nil {
		http.Error(w, "Parent category does not exist", http.StatusBadRequest)
		return
	}
	if parent == nil {
		if err := s.forest.AddRoot(node); err != nil {
			http.Error(w, "A category with this name already exists", http.StatusConflict)
			return
		}
	} else {
		if !parent.IsCategory() {
			http.Error(w, "Parent path does not point at a category", http.StatusBadRequest)
			return
		}
		if err := parent.AddChild(node); err != nil {
			http.Error(w, "A category with this name already exists here", http.StatusConflict)
			return
		}
	}

	if err := s.store.SaveCategory(tree.RootOf(node)); err != nil {
		http.Error(w, "Category created but not persisted: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, node)
}

// SaveCategoryHandler re-persists one root explicitly. Mutating
// endpoints already save; this exists for client-driven flushes.
func (s *Server) SaveCategoryHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.forest.FindRoot(name)
	if root == nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	if err := s.store.SaveCategory(root); err != nil {
		if errors.Is(err, codec.ErrMissingPassword) {
			http.Error(w, "No cached password for this category; unlock it first", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to save category", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type UnlockCategoryRequest struct {
	Password string `json:"password"`
}

// UnlockCategoryHandler verifies a per-category password and caches the
// plaintext for this session. For a category switching to OwnPassword
// protection for the first time, the supplied password becomes its
// password.
func (s *Server) UnlockCategoryHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req UnlockCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		http.Error(w, "Password is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vault.HasCategory(name) {
		if !s.vault.VerifyCategory(name, req.Password) {
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}
	} else {
		if err := s.vault.SetCategory(name, req.Password); err != nil {
			http.Error(w, "Failed to store password hash", http.StatusInternalServerError)
			return
		}
	}

	s.secrets.SetForCategory(name, req.Password)

	// Kategoria mogła zostać pominięta przy starcie; spróbuj doczytać.
	if s.forest.FindRoot(name) == nil {
		if root, err := s.store.LoadCategory(name); err == nil {
			_ = s.forest.AddRoot(root)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

type SetProtectionRequest struct {
	Mode string `json:"mode"` // none | global | own
}

// SetProtectionHandler switches a root category's protection mode and
// re-persists it under the matching secret.
func (s *Server) SetProtectionHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req SetProtectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	mode := tree.PasswordProtection(req.Mode)
	if mode != tree.ProtectionNone && mode != tree.ProtectionGlobal && mode != tree.ProtectionOwn {
		http.Error(w, "Unknown protection mode", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.forest.FindRoot(name)
	if root == nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	previous := root.Category.PasswordProtection
	root.Category.PasswordProtection = mode
	root.Touch()

	if err := s.store.SaveCategory(root); err != nil {
		root.Category.PasswordProtection = previous
		if errors.Is(err, codec.ErrMissingPassword) {
			http.Error(w, "No cached password for this mode; unlock or login first", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to re-persist category", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type ChangeGlobalPasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// @Summary      Change the global password
// @Description  Verifies the old global password and re-encrypts every root category using global protection. The batch continues past individual failures and reports them per category.
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Success      200  {object}  codec.ReencryptReport
// @Failure      401  {string}  string "Old password does not match"
// @Router       /password/global [post]
func (s *Server) ChangeGlobalPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ChangeGlobalPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.store.ChangeGlobalPassword(s.forest, s.vault, req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, codec.ErrGlobalPasswordMismatch) {
			http.Error(w, "Old password does not match", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Failed to change global password", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
