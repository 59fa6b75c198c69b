package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
database:
  path: /tmp/docflow-test.db
logger:
  level: debug
  format: console
companies:
  - id: acme
    name: Acme Trading
    fiscal_years:
      - id: "1403"
        closed: true
      - id: "1404"
        active: true
        start_overrides:
          PAYMENT_ORDER: 1000
actors:
  - id: fin
    role: FINANCE
  - id: ceo
    role: CEO
cors:
  allowed_origins:
    - https://crm.example.com
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "ADMIN", cfg.Workflow.AdminRole)
	assert.Equal(t, 5, cfg.Sequence.MaxAttempts)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, []string{"https://crm.example.com"}, cfg.CORS.AllowedOrigins)

	require.Len(t, cfg.Companies, 1)
	require.Len(t, cfg.Companies[0].FiscalYears, 2)
	assert.True(t, cfg.Companies[0].FiscalYears[0].Closed)
	assert.True(t, cfg.Companies[0].FiscalYears[1].Active)
	assert.Len(t, cfg.Companies[0].FiscalYears[1].StartOverrides, 1)

	require.Len(t, cfg.Actors, 2)
	assert.Equal(t, ActorConfig{ID: "fin", Role: "FINANCE"}, cfg.Actors[0])
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig+`
auth:
  enabled: true
`)
	t.Setenv("DOCFLOW_JWT_SECRET", "env-secret")
	t.Setenv("DOCFLOW_SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig+`
lark:
  enabled: true
  app_id: cli_test
  receive_id: oc_chat
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LARK_APP_SECRET=from-dotenv\n"), 0o600))

	// Register restore of the original value, then clear it so the file applies
	t.Setenv("LARK_APP_SECRET", "")
	require.NoError(t, os.Unsetenv("LARK_APP_SECRET"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Lark.AppSecret)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "no companies",
			body: "database:\n  path: x.db\n",
		},
		{
			name: "postgres without dsn",
			body: "database:\n  driver: postgres\ncompanies:\n  - id: acme\n",
		},
		{
			name: "unknown driver",
			body: "database:\n  driver: mysql\ncompanies:\n  - id: acme\n",
		},
		{
			name: "auth without secret",
			body: sampleConfig + "auth:\n  enabled: true\n",
		},
		{
			name: "actor without role",
			body: "companies:\n  - id: acme\nactors:\n  - id: fin\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DOCFLOW_JWT_SECRET", "")
			t.Setenv("DATABASE_DSN", "")
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestToContainerConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	cc := cfg.ToContainerConfig()
	require.NoError(t, cc.Validate())

	assert.Equal(t, "sqlite", cc.Database.Driver)
	assert.Equal(t, 9090, cc.Server.Port)
	assert.Equal(t, []string{"https://crm.example.com"}, cc.Server.AllowedOrigins)
	assert.Equal(t, map[string]string{"fin": "FINANCE", "ceo": "CEO"}, cc.Actors)

	require.Len(t, cc.Companies, 1)
	assert.Equal(t, "acme", cc.Companies[0].ID)
	require.Len(t, cc.Companies[0].FiscalYears, 2)
	assert.Equal(t, "1404", cc.Companies[0].FiscalYears[1].ID)
	assert.True(t, cc.Companies[0].FiscalYears[1].Active)
}
