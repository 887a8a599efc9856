// @title           Link Catalog API
// @version         1.0
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"log"
	"net/http"

	"katalog-linkow/internal/api"
	"katalog-linkow/internal/archive"
	"katalog-linkow/internal/codec"
	"katalog-linkow/internal/config"
	"katalog-linkow/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Nie można wczytać konfiguracji: %v", err)
	}

	secrets := codec.NewSecretCache()

	store, err := codec.NewStore(cfg.Storage.Path, secrets)
	if err != nil {
		log.Fatalf("Nie można zainicjować katalogu danych: %v", err)
	}
	log.Printf("Kategorie będą przechowywane w: %s", cfg.Storage.Path)

	vault, err := codec.NewVault(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Nie można wczytać magazynu haseł: %v", err)
	}

	// Zaszyfrowane kategorie bez hasła w sesji są pomijane przy starcie
	// i doczytywane po odblokowaniu.
	forest, err := store.LoadAll()
	if err != nil {
		log.Fatalf("Nie można wczytać kategorii: %v", err)
	}
	log.Printf("Wczytano %d kategorii", len(forest.Roots))

	ledger := archive.NewService(forest, store, nil, nil)
	if err := ledger.LoadLedger(); err != nil {
		log.Fatalf("Nie można wczytać archiwum: %v", err)
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()

	server := api.NewServer(cfg, forest, store, vault, secrets, wsHub)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(api.MetricsMiddleware)

	r.Get("/ws", server.ServeWsHandler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Katalog linków działa!"))
	})

	r.Post("/api/v1/auth/login", server.LoginHandler)
	r.Post("/api/v1/auth/refresh", server.RefreshTokenHandler)

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.AuthMiddleware)

		r.Post("/auth/logout", server.LogoutHandler)
		r.Post("/password/global", server.ChangeGlobalPasswordHandler)

		r.Get("/categories", server.ListCategoriesHandler)
		r.Post("/categories", server.CreateCategoryHandler)
		r.Get("/categories/{name}", server.GetCategoryTreeHandler)
		r.Post("/categories/{name}/save", server.SaveCategoryHandler)
		r.Post("/categories/{name}/unlock", server.UnlockCategoryHandler)
		r.Put("/categories/{name}/protection", server.SetProtectionHandler)

		r.Post("/nodes/link", server.CreateLinkHandler)
		r.Patch("/nodes/{nodeId}", server.UpdateNodeHandler)
		r.Get("/nodes/{nodeId}/tags", server.NodeTagsHandler)
		r.Post("/nodes/{nodeId}/move", server.MoveNodeHandler)
		r.Post("/nodes/{nodeId}/rate", server.RateNodeHandler)
		r.Delete("/nodes/{nodeId}", server.DeleteNodeHandler)

		r.Post("/nodes/{nodeId}/catalog", server.CreateCatalogHandler)
		r.Post("/nodes/{nodeId}/catalog/refresh", server.RefreshCatalogHandler)
		r.Get("/nodes/{nodeId}/catalog/stale", server.CatalogStaleHandler)

		r.Post("/zip/rezip", server.RezipHandler)
		r.Post("/zip/refresh", server.RefreshZipHandler)
		r.Get("/zip/manifest", server.ManifestRootHandler)

		r.Get("/archive", server.ListArchiveHandler)
		r.Post("/archive/{nodeId}/restore", server.RestoreNodeHandler)
		r.Delete("/archive/{nodeId}", server.PurgeNodeHandler)
		r.Get("/archive/ratings", server.ListRatingGroupsHandler)
		r.Post("/archive/ratings/{entryId}/restore", server.RestoreRatingHandler)
	})

	log.Println("Uruchamianie serwera na porcie :8080")
	if err := http.ListenAndServe(":8080", r); err != nil {
		log.Fatalf("Nie można uruchomić serwera: %v", err)
	}
}
