package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/config"
)

const testConfigTOML = `
Title = "AffiliateAggregator"

[Webserver]
Port = 8080
URL = "http://localhost:8080"
Domain = "localhost"

[DB]
Host = "localhost"
Port = 3306
User = "app"
Password = "secret"
Name = "aggregator"
GormEngine = "mysql"

[TwoFactor]
EncryptionKey = "from-toml"
Issuer = "AffiliateAggregator"

[Log]
LogLevel = "info"
AppName = "affiliate-aggregator"
ServiceName = "webserver"
`

// writeTestConfig writes main.toml into a temp dir and returns the dir with
// a trailing slash, the way ReadConfig expects its path argument.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "main.toml"), []byte(content), 0o600)
	require.NoError(t, err)

	return dir + "/"
}

func TestReadConfig(t *testing.T) {
	cfg, err := config.ReadConfig(writeTestConfig(t, testConfigTOML))
	require.NoError(t, err)

	assert.Equal(t, "AffiliateAggregator", cfg.Title)
	assert.Equal(t, 8080, cfg.Webserver.Port)
	assert.Equal(t, "mysql", cfg.DB.GormEngine)
	assert.Equal(t, "from-toml", cfg.TwoFactor.EncryptionKey)
	assert.Equal(t, 5, cfg.Webserver.ShutDownTime, "shutdown time defaults to 5 seconds")
}

func TestReadConfig_MissingFile(t *testing.T) {
	_, err := config.ReadConfig(t.TempDir() + "/")
	assert.Error(t, err)
}

func TestReadConfig_EnvOverride(t *testing.T) {
	t.Setenv("AFFILIATE_AGGREGATOR_CONFIG_JSON", `{"Webserver":{"Port":9999},"DB":{"Password":"from-env"}}`)

	cfg, err := config.ReadConfig(writeTestConfig(t, testConfigTOML))
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Webserver.Port, "env json overrides toml")
	assert.Equal(t, "from-env", cfg.DB.Password)
	assert.Equal(t, "aggregator", cfg.DB.Name, "untouched toml values survive the merge")
}

func TestReadConfig_BrokenEnvOverride(t *testing.T) {
	t.Setenv("AFFILIATE_AGGREGATOR_CONFIG_JSON", `{not json`)

	_, err := config.ReadConfig(writeTestConfig(t, testConfigTOML))
	assert.Error(t, err)
}

func TestReadConfig_Validation(t *testing.T) {
	noPort := `
[Webserver]
URL = "http://localhost"
`
	_, err := config.ReadConfig(writeTestConfig(t, noPort))
	assert.ErrorIs(t, err, config.ErrWebServerPortCanNotBeZero)

	noURL := `
[Webserver]
Port = 8080
`
	_, err = config.ReadConfig(writeTestConfig(t, noURL))
	assert.ErrorIs(t, err, config.ErrEmptyURL)
}

func TestReadConfig_TwoFactorKeyFallbacks(t *testing.T) {
	withoutKey := `
[Webserver]
Port = 8080
URL = "http://localhost"
`

	t.Setenv("TWO_FACTOR_ENCRYPTION_KEY", "from-env-key")

	cfg, err := config.ReadConfig(writeTestConfig(t, withoutKey))
	require.NoError(t, err)
	assert.Equal(t, "from-env-key", cfg.TwoFactor.EncryptionKey)

	t.Setenv("TWO_FACTOR_ENCRYPTION_KEY", "")

	cfg, err = config.ReadConfig(writeTestConfig(t, withoutKey))
	require.NoError(t, err)
	assert.Equal(t, "default-key-change-in-production", cfg.TwoFactor.EncryptionKey)
}

func TestDumpConfig(t *testing.T) {
	cfg, err := config.ReadConfig(writeTestConfig(t, testConfigTOML))
	require.NoError(t, err)

	tomlOut, err := config.DumpConfig(cfg)
	require.NoError(t, err)
	assert.Contains(t, tomlOut, `Title = "AffiliateAggregator"`)

	jsonOut, err := config.DumpConfigJSON(cfg)
	require.NoError(t, err)
	assert.Contains(t, jsonOut, `"Title": "AffiliateAggregator"`)
}
