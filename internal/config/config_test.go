package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE_TYPE", "memory")
	t.Setenv("STORAGE_TYPE", "local")
	t.Setenv("JWT_ACCESS_EXPIRY", "not-a-duration")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, StoreTypeMemory, cfg.Database.Store)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
	assert.Equal(t, "http://localhost:9090/uploads", cfg.Storage.PublicBaseURL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("STORE_TYPE", "mongo")
	t.Setenv("STORAGE_TYPE", "local")

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_TYPE")
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("STORE_TYPE", "memory")
	t.Setenv("STORAGE_TYPE", "local")
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "change-me-in-production")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestParseCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseCSV(" a, ,b "))
	assert.Empty(t, parseCSV(""))
}

func TestGoogleWebFlowEnabled(t *testing.T) {
	assert.False(t, GoogleConfig{ClientIDs: []string{"id"}}.WebFlowEnabled())
	assert.False(t, GoogleConfig{ClientSecret: "s", RedirectURL: "https://api.example.com/cb"}.WebFlowEnabled())
	assert.True(t, GoogleConfig{
		ClientIDs:    []string{"id"},
		ClientSecret: "s",
		RedirectURL:  "https://api.example.com/cb",
	}.WebFlowEnabled())
}
