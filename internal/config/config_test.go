package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "dashboard.yml", cfg.Editor.ConfigPath)
	assert.Equal(t, 300*time.Millisecond, cfg.Editor.Debounce)
	assert.Equal(t, 50, cfg.Editor.HistoryCapacity)
	assert.True(t, cfg.Editor.Watch)
	assert.False(t, cfg.Auth.Enabled())
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.OffsiteBackups())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 30, cfg.MinIO.RetentionDays)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("API_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DASHBOARD_CONFIG_PATH", "/etc/dash/glance.yml")
	t.Setenv("EDITOR_DEBOUNCE", "1s")
	t.Setenv("EDITOR_HISTORY_CAPACITY", "10")
	t.Setenv("EDITOR_WATCH", "false")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("MINIO_ENABLED", "true")
	t.Setenv("MINIO_ACCESS_KEY_ID", "key")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "secret")
	t.Setenv("MINIO_BACKUP_RETENTION_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.AllowedOrigins)
	assert.Equal(t, "/etc/dash/glance.yml", cfg.Editor.ConfigPath)
	assert.Equal(t, time.Second, cfg.Editor.Debounce)
	assert.Equal(t, 10, cfg.Editor.HistoryCapacity)
	assert.False(t, cfg.Editor.Watch)
	assert.True(t, cfg.OffsiteBackups())
	assert.Equal(t, 7, cfg.MinIO.RetentionDays)
}

func TestValidateConditionalSections(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "password gate without secret",
			env:  map[string]string{"EDITOR_PASSWORD_HASH": "$2a$10$abc"},
			want: "jwt secret is required",
		},
		{
			name: "database without password",
			env:  map[string]string{"DATABASE_ENABLED": "true"},
			want: "database password is required",
		},
		{
			name: "minio without credentials",
			env:  map[string]string{"MINIO_ENABLED": "true"},
			want: "minio access key id is required",
		},
		{
			name: "negative retention",
			env: map[string]string{
				"MINIO_ENABLED":               "true",
				"MINIO_ACCESS_KEY_ID":         "key",
				"MINIO_SECRET_ACCESS_KEY":     "secret",
				"MINIO_BACKUP_RETENTION_DAYS": "-1",
			},
			want: "retention days must not be negative",
		},
		{
			name: "zero history",
			env:  map[string]string{"EDITOR_HISTORY_CAPACITY": "0"},
			want: "history capacity must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMustLoadPanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("API_PORT", "-1")
	assert.Panics(t, func() { MustLoad() })
}
