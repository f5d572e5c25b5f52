// internal/manifest/handler.go
package manifest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vestiva/pkg/config"
)

// RegisterRoutes serves the loader manifest. It is public and cacheable; it
// carries no client data.
func RegisterRoutes(r chi.Router, cfg config.Config) {
	m := BuildManifest(cfg)
	r.Options("/widget/manifest.json", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/widget/manifest.json", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "public, max-age=300")
		_ = json.NewEncoder(w).Encode(m)
	})
}
