package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadYAMLOverridesOnlySetFields(t *testing.T) {
	p := writeFile(t, "config.yaml", `
env: staging
http_addr: ":9001"
mysql:
  host: db.internal
  db: auction
oracle:
  enable: true
  timeout: 3s
  workers: 8
pagination:
  max_limit: 50
redis:
  addr: ""
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, ":9001", cfg.HTTPAddr)
	require.Equal(t, "db.internal", cfg.MySQL.Host)
	require.Equal(t, "auction", cfg.MySQL.DBName)
	require.Equal(t, 3306, cfg.MySQL.Port)
	require.True(t, cfg.Oracle.Enable)
	require.Equal(t, 3*time.Second, cfg.Oracle.Timeout)
	require.Equal(t, 8, cfg.Oracle.Workers)
	require.Equal(t, "gpt-3.5-turbo", cfg.Oracle.Model)
	require.Equal(t, 50, cfg.Pagination.MaxLimit)
	require.Equal(t, 10, cfg.Pagination.DefaultLimit)
	require.Equal(t, "", cfg.Redis.Addr)
}

func TestLoadJSON(t *testing.T) {
	p := writeFile(t, "config.json", `{"jwt":{"secret":"s3cret","access_token_ttl":"10m"},"notify":{"enable":true}}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "s3cret", cfg.JWT.Secret)
	require.Equal(t, 10*time.Minute, cfg.JWT.AccessTokenTTL)
	require.True(t, cfg.Notify.Enable)
	require.Equal(t, "auction.events", cfg.Notify.Channel)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	p := writeFile(t, "config.toml", "env = 'x'")
	_, err := Load(p)
	require.Error(t, err)
}

func TestEnvSecretsWin(t *testing.T) {
	p := writeFile(t, "config.yaml", "jwt:\n  secret: from-file\n")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("ORACLE_API_KEY", "sk-test")
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.JWT.Secret)
	require.Equal(t, "sk-test", cfg.Oracle.APIKey)
}

func TestValidateProdBaseline(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.Env = "prod"
	require.Error(t, cfg.Validate())

	cfg.JWT.Secret = "a-long-random-secret"
	cfg.MySQL.Password = "strong-password"
	require.NoError(t, cfg.Validate())

	cfg.Oracle.Enable = true
	require.Error(t, cfg.Validate())
}

func TestDSNMasked(t *testing.T) {
	m := MySQLConfig{User: "svc", Password: "pw", Host: "h", Port: 3307, DBName: "auth"}
	require.Equal(t, "svc:pw@tcp(h:3307)/auth?parseTime=true&loc=Local&charset=utf8mb4,utf8", m.DSN())
	require.Equal(t, "svc:******@tcp(h:3307)/auth?parseTime=true&loc=Local&charset=utf8mb4,utf8", m.DSNMasked())
}
