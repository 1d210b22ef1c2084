package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "excel", cfg.Store.Type)
	assert.Equal(t, "patrimonios", cfg.Store.ItemsSheet)
	assert.Equal(t, "users", cfg.Store.UsersSheet)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "local", cfg.Media.Type)
	assert.Equal(t, int64(5<<20), cfg.Media.MaxUploadBytes)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.False(t, cfg.OAuth.Enabled())
	assert.True(t, cfg.App.IsDevelopment())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("STORE_DB_HOST", "db")
	t.Setenv("STORE_DB_USER", "app")
	t.Setenv("STORE_DB_PASS", "pw")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://app:pw@db:5432/patrimonio?sslmode=disable", cfg.Store.PostgresDSN())
	assert.Equal(t, "app:pw@tcp(db:3306)/patrimonio?parseTime=true", cfg.Store.MySQLDSN())
	assert.True(t, cfg.OAuth.Enabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.AllowedOrigins)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{"port zero", map[string]string{"SERVER_PORT": "0"}, "SERVER_PORT"},
		{"port too large", map[string]string{"SERVER_PORT": "70000"}, "SERVER_PORT"},
		{"unknown store", map[string]string{"STORE_TYPE": "mongodb"}, "STORE_TYPE"},
		{"unknown media", map[string]string{"MEDIA_TYPE": "ftp"}, "MEDIA_TYPE"},
		{"unknown cache", map[string]string{"CACHE_TYPE": "memcached"}, "CACHE_TYPE"},
		{"default secret in production", map[string]string{"APP_ENV": "production", "SESSION_SECRET": DefaultSessionSecret}, "SESSION_SECRET"},
		{"short secret in production", map[string]string{"APP_ENV": "production", "SESSION_SECRET": "short"}, "SESSION_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoad_ProductionWithStrongSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("STORE_TYPE", "Sheets")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.App.IsProduction())
}

func TestValidate_DevelopmentAllowsDefaultSecret(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionSecret, cfg.Session.Secret)
	assert.NoError(t, cfg.Validate())
}
