package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.InDelta(t, 3.0, cfg.PandaDoc.RateLimit, 0.001)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, 50, cfg.Import.PageSize)
	assert.Equal(t, 300, cfg.Import.PageDelayMs)
	assert.Equal(t, 500, cfg.Import.DocumentDelayMs)
	assert.Equal(t, 150, cfg.Import.RasterDPI)
	assert.Equal(t, 20, cfg.Import.RasterMaxPages)
	assert.Equal(t, 3, cfg.Import.FetchMaxAttempts)
	assert.Equal(t, 1000, cfg.Import.FetchBaseDelayMs)
	assert.Equal(t, 2, cfg.Import.DownloadMaxAttempts)
	assert.Equal(t, 2000, cfg.Import.DownloadBaseDelayMs)
	assert.Equal(t, 10, cfg.Vision.ClassifyMaxPages)
	assert.Equal(t, 90, cfg.Vision.CallTimeoutSecs)
	assert.Equal(t, "pdftoppm", cfg.PDF.PdfToPpmPath)
	assert.Equal(t, "pdftotext", cfg.PDF.PdfToTextPath)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
import:
  page_size: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 25, cfg.Import.PageSize)
	// Defaults still apply for unset values
	assert.Equal(t, 150, cfg.Import.RasterDPI)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PROPOSAL_STORE_DRIVER", "postgres")
	t.Setenv("PROPOSAL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PROPOSAL_IMPORT_PAGE_SIZE", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Import.PageSize)
}

func validDefaults() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite"},
		Import: ImportConfig{PageSize: 50, RasterDPI: 150},
	}
}

func TestValidatePipeline_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.PandaDoc.Key = "pd-key"

	assert.NoError(t, cfg.Validate("pipeline"))
}

func TestValidatePipeline_MissingKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("pipeline")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pandadoc.key is required")
}

func TestValidatePipeline_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.PandaDoc.Key = "pd-key"

	err := cfg.Validate("pipeline")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/proposals"
	assert.NoError(t, cfg.Validate("pipeline"))
}

func TestValidatePipeline_Bounds(t *testing.T) {
	cfg := validDefaults()
	cfg.PandaDoc.Key = "pd-key"

	cfg.Import.PageSize = 0
	err := cfg.Validate("pipeline")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "page_size must be between 1 and 100")

	cfg.Import.PageSize = 50
	cfg.Import.RasterDPI = 30
	err = cfg.Validate("pipeline")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "raster_dpi must be between 72 and 600")
}

func TestValidateMigrate(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("migrate"))

	cfg.Store.Driver = "mysql"
	err := cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be postgres or sqlite")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
