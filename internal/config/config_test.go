package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
port = "9090"
admin_id = 7247710860
timezone = "Europe/Moscow"
sweep_interval = "30s"

[projects]
quizzes = "Квизы"

[directions]
media = "Медиа-направление (МН)"

[[users]]
id = 1311714242
name = "Ольга Храмцова"
handle = "@gavblya"
directions = ["СТН", "мн"]

[[users]]
id = 609995295
name = "Илья Колпаков"
directions = ["все"]
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeFile(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(7247710860), cfg.AdminID)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval.Duration)
	assert.Equal(t, map[string]string{"quizzes": "Квизы"}, cfg.Projects)
	require.Len(t, cfg.Users, 2)

	d := cfg.Directory()
	assert.True(t, d.Contains(1311714242))
	assert.False(t, d.Contains(7247710860))
	assert.Equal(t, []string{"stn", "media"}, d.Directions(1311714242))
	assert.True(t, d.InDirection(609995295, "media"))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Minute, cfg.SweepInterval.Duration)
	assert.Len(t, cfg.Projects, len(DefaultProjects))
	assert.True(t, cfg.Directory().Contains(7247710860))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://localhost/tbot")
	t.Setenv("TELEGRAM_ADMIN_ID", "5055233726")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("TBOT_CONFIG", writeFile(t, sample))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "postgres://localhost/tbot", cfg.DatabaseURL)
	assert.Equal(t, int64(5055233726), cfg.AdminID)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
}

func TestBadAdminID(t *testing.T) {
	t.Setenv("TELEGRAM_ADMIN_ID", "admin")
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidateRoster(t *testing.T) {
	_, err := Load(writeFile(t, `
[[users]]
id = 1
name = "a"
[[users]]
id = 1
name = "b"
`))
	assert.ErrorContains(t, err, "duplicate id 1")

	_, err = Load(writeFile(t, "[[users]]\nname = \"nobody\"\n"))
	assert.ErrorContains(t, err, "id is required")

	_, err = Load(writeFile(t, `sweep_interval = "soon"`))
	assert.Error(t, err)
}

func TestLocationFallback(t *testing.T) {
	cfg := Default()
	cfg.Timezone = "Mars/Olympus"
	loc := cfg.Location()
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 3*60*60, offset)
}
