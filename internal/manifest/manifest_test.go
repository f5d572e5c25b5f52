package manifest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vestiva/pkg/config"
)

func TestBuildManifest(t *testing.T) {
	m := BuildManifest(config.Config{EmbedURL: "https://embed.vestiva.io/app", PublicURL: "https://api.vestiva.io", HandshakeTimeout: 5 * time.Second})
	assert.EqualValues(t, 5000, m.HandshakeTimeoutMS)
	assert.Equal(t, "https://embed.vestiva.io", m.EmbedOrigin)
	assert.Equal(t, "https://api.vestiva.io/api/widget/auth", m.Endpoints.Auth)
	assert.Equal(t, "vestiva:", m.Messages.EventPrefix)
	assert.Contains(t, m.Messages.HostToEmbed, "config-update")
}

func TestManifestRoute(t *testing.T) {
	r := chi.NewRouter()
	RegisterRoutes(r, config.Config{EmbedURL: "http://localhost:5173", PublicURL: "http://localhost:3000"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widget/manifest.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var m Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, Version, m.Version)
	assert.Equal(t, "http://localhost:5173", m.EmbedOrigin)
}
