package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"katalog-linkow/internal/codec"
	"katalog-linkow/internal/config"
	"katalog-linkow/internal/tree"
	"katalog-linkow/internal/websocket"
)

func newTestAPI(t *testing.T) (*Server, *chi.Mux) {
	t.Helper()
	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: "test-secret"},
		Storage: config.StorageConfig{Path: t.TempDir()},
	}

	secrets := codec.NewSecretCache()
	store, err := codec.NewStore(cfg.Storage.Path, secrets)
	require.NoError(t, err)
	vault, err := codec.NewVault(cfg.Storage.Path)
	require.NoError(t, err)

	server := NewServer(cfg, tree.NewForest(), store, vault, secrets, websocket.NewHub())

	r := chi.NewRouter()
	r.Post("/api/v1/auth/login", server.LoginHandler)
	r.Post("/api/v1/auth/refresh", server.RefreshTokenHandler)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.AuthMiddleware)
		r.Post("/auth/logout", server.LogoutHandler)
		r.Get("/categories", server.ListCategoriesHandler)
		r.Post("/categories", server.CreateCategoryHandler)
		r.Get("/categories/{name}", server.GetCategoryTreeHandler)
		r.Post("/nodes/link", server.CreateLinkHandler)
		r.Patch("/nodes/{nodeId}", server.UpdateNodeHandler)
		r.Post("/nodes/{nodeId}/move", server.MoveNodeHandler)
		r.Post("/nodes/{nodeId}/rate", server.RateNodeHandler)
		r.Delete("/nodes/{nodeId}", server.DeleteNodeHandler)
		r.Get("/archive", server.ListArchiveHandler)
		r.Post("/archive/{nodeId}/restore", server.RestoreNodeHandler)
		r.Delete("/archive/{nodeId}", server.PurgeNodeHandler)
	})
	return server, r
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, r http.Handler) string {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Password: "haslo123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var tokens TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tokens))
	return tokens.AccessToken
}

func TestLoginFirstRunSetsGlobalPassword(t *testing.T) {
	_, r := newTestAPI(t)

	token := login(t, r)
	require.NotEmpty(t, token)

	// Kolejne logowanie złym hasłem jest odrzucane.
	rec := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Password: "inne"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Password: "haslo123"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareBlocksAnonymousRequests(t *testing.T) {
	_, r := newTestAPI(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/v1/categories", "zepsuty-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCategoryAndLinkLifecycle(t *testing.T) {
	server, r := newTestAPI(t)
	token := login(t, r)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/categories", token, CreateCategoryRequest{Name: "Media"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/v1/categories", token, CreateCategoryRequest{Name: "media"})
	require.Equal(t, http.StatusConflict, rec.Code, "duplicate root name")

	rec = doJSON(t, r, http.MethodPost, "/api/v1/categories", token, CreateCategoryRequest{Name: "a > b"})
	require.Equal(t, http.StatusBadRequest, rec.Code, "reserved separator in name")

	rec = doJSON(t, r, http.MethodPost, "/api/v1/nodes/link", token, CreateLinkRequest{
		Title: "Example", URL: "https://example.com", ParentPath: "Media",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created tree.Node
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = doJSON(t, r, http.MethodPatch, "/api/v1/nodes/"+created.ID, token, map[string]string{
		"description": "strona przykładowa",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	link := server.forest.FindByID(created.ID)
	require.NotNil(t, link)
	require.Equal(t, "strona przykładowa", link.Link.Description)
}

func TestDeleteRestorePurgeFlow(t *testing.T) {
	server, r := newTestAPI(t)
	token := login(t, r)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/categories", token, CreateCategoryRequest{Name: "Demo"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, r, http.MethodPost, "/api/v1/nodes/link", token, CreateLinkRequest{
		Title: "Example", URL: "https://example.com", ParentPath: "Demo",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var link tree.Node
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))

	// Usunięcie jest miękkie.
	rec = doJSON(t, r, http.MethodDelete, "/api/v1/nodes/"+link.ID, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/v1/archive", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var archived []tree.Node
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&archived))
	require.Len(t, archived, 1)

	rec = doJSON(t, r, http.MethodPost, "/api/v1/archive/"+link.ID+"/restore", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	restored := server.forest.FindByID(link.ID)
	require.NotNil(t, restored)
	require.Equal(t, "Demo", restored.AncestorPath())

	// Trwałe usunięcie wymaga flagi confirm.
	rec = doJSON(t, r, http.MethodDelete, "/api/v1/nodes/"+link.ID, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, r, http.MethodDelete, "/api/v1/archive/"+link.ID, token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	rec = doJSON(t, r, http.MethodDelete, "/api/v1/archive/"+link.ID+"?confirm=true", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, server.forest.FindByID(link.ID))
}

func TestRateNodeArchivesOverwrittenValue(t *testing.T) {
	server, r := newTestAPI(t)
	token := login(t, r)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/categories", token, CreateCategoryRequest{Name: "Demo"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, r, http.MethodPost, "/api/v1/nodes/link", token, CreateLinkRequest{
		Title: "Example", URL: "https://example.com", ParentPath: "Demo",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var link tree.Node
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))

	rec = doJSON(t, r, http.MethodPost, "/api/v1/nodes/"+link.ID+"/rate", token, RateNodeRequest{Rating: "quality", Score: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, r, http.MethodPost, "/api/v1/nodes/"+link.ID+"/rate", token, RateNodeRequest{Rating: "quality", Score: 5})
	require.Equal(t, http.StatusOK, rec.Code)

	node := server.forest.FindByID(link.ID)
	require.Len(t, node.Link.Ratings, 1)
	require.Equal(t, 5, node.Link.Ratings[0].Score)
	require.Len(t, server.archiveService(true).ListRatingGroups(), 1)
}

func TestMoveNodePersistsBothRoots(t *testing.T) {
	server, r := newTestAPI(t)
	token := login(t, r)

	for _, name := range []string{"Stara", "Nowa"} {
		rec := doJSON(t, r, http.MethodPost, "/api/v1/categories", token, CreateCategoryRequest{Name: name})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := doJSON(t, r, http.MethodPost, "/api/v1/nodes/link", token, CreateLinkRequest{
		Title: "Example", URL: "https://example.com", ParentPath: "Stara",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var link tree.Node
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))

	rec = doJSON(t, r, http.MethodPost, "/api/v1/nodes/"+link.ID+"/move", token, MoveNodeRequest{TargetPath: "Nowa"})
	require.Equal(t, http.StatusOK, rec.Code)

	moved := server.forest.FindByID(link.ID)
	require.Equal(t, "Nowa", moved.AncestorPath())
	require.Equal(t, "Nowa", moved.Link.CategoryPath, "persisted path cache follows the move")
}

func TestRenameRootCategoryRemovesOldFile(t *testing.T) {
	server, r := newTestAPI(t)
	token := login(t, r)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/categories", token, CreateCategoryRequest{Name: "Stara"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var root tree.Node
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&root))

	rec = doJSON(t, r, http.MethodPatch, "/api/v1/nodes/"+root.ID, token, map[string]string{"name": "Nowa"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Kolejny start czyta katalogi z dysku; plik po starej nazwie musi
	// zniknąć, inaczej odżyłby jako zduplikowany korzeń.
	loaded, err := server.store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Roots, 1)
	require.Equal(t, "Nowa", loaded.Roots[0].Name())
}

func TestRenameRootCategoryCarriesPasswordKeys(t *testing.T) {
	server, r := newTestAPI(t)
	token := login(t, r)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/categories", token, CreateCategoryRequest{Name: "Stara"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var root tree.Node
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&root))

	require.NoError(t, server.vault.SetCategory("Stara", "sekret"))
	server.secrets.SetForCategory("Stara", "sekret")
	server.forest.FindByID(root.ID).Category.PasswordProtection = tree.ProtectionOwn

	rec = doJSON(t, r, http.MethodPatch, "/api/v1/nodes/"+root.ID, token, map[string]string{"name": "Nowa"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.True(t, server.vault.VerifyCategory("Nowa", "sekret"))
	require.False(t, server.vault.HasCategory("Stara"))
	_, ok := server.secrets.ForCategory("Nowa")
	require.True(t, ok, "session secret follows the rename")

	loaded, err := server.store.LoadAll()
	require.NoError(t, err)
	require.Nil(t, loaded.FindRoot("Stara"))
}

func TestRefreshTokenRotation(t *testing.T) {
	_, r := newTestAPI(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Password: "haslo123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var tokens TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tokens))

	rec = doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rotated))
	require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// Zużyty refresh token przestaje działać.
	rec = doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
