package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	PandaDoc  PandaDocConfig  `yaml:"pandadoc" mapstructure:"pandadoc"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
	Vision    VisionConfig    `yaml:"vision" mapstructure:"vision"`
	PDF       PDFConfig       `yaml:"pdf" mapstructure:"pdf"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PandaDocConfig holds PandaDoc API settings.
type PandaDocConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ImportConfig configures batch sync and document processing.
type ImportConfig struct {
	PageSize            int `yaml:"page_size" mapstructure:"page_size"`
	PageDelayMs         int `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	DocumentDelayMs     int `yaml:"document_delay_ms" mapstructure:"document_delay_ms"`
	RasterDPI           int `yaml:"raster_dpi" mapstructure:"raster_dpi"`
	RasterMaxPages      int `yaml:"raster_max_pages" mapstructure:"raster_max_pages"`
	FetchMaxAttempts    int `yaml:"fetch_max_attempts" mapstructure:"fetch_max_attempts"`
	FetchBaseDelayMs    int `yaml:"fetch_base_delay_ms" mapstructure:"fetch_base_delay_ms"`
	DownloadMaxAttempts int `yaml:"download_max_attempts" mapstructure:"download_max_attempts"`
	DownloadBaseDelayMs int `yaml:"download_base_delay_ms" mapstructure:"download_base_delay_ms"`
}

// VisionConfig configures the model extraction pipeline.
type VisionConfig struct {
	ClassifyMaxPages int `yaml:"classify_max_pages" mapstructure:"classify_max_pages"`
	CallTimeoutSecs  int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// PDFConfig configures the poppler binaries.
type PDFConfig struct {
	PdfToPpmPath  string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	PdfInfoPath   string `yaml:"pdfinfo_path" mapstructure:"pdfinfo_path"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPOSAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pandadoc.rate_limit", 3.0)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("import.page_size", 50)
	v.SetDefault("import.page_delay_ms", 300)
	v.SetDefault("import.document_delay_ms", 500)
	v.SetDefault("import.raster_dpi", 150)
	v.SetDefault("import.raster_max_pages", 20)
	v.SetDefault("import.fetch_max_attempts", 3)
	v.SetDefault("import.fetch_base_delay_ms", 1000)
	v.SetDefault("import.download_max_attempts", 2)
	v.SetDefault("import.download_base_delay_ms", 2000)
	v.SetDefault("vision.classify_max_pages", 10)
	v.SetDefault("vision.call_timeout_secs", 90)
	v.SetDefault("pdf.pdftoppm_path", "pdftoppm")
	v.SetDefault("pdf.pdfinfo_path", "pdfinfo")
	v.SetDefault("pdf.pdftotext_path", "pdftotext")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required for the given mode. Mode "pipeline"
// covers commands that talk to the provider; "migrate" only needs a store.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "pipeline":
		requireStore()
		if c.PandaDoc.Key == "" {
			problems = append(problems, "pandadoc.key is required")
		}
		if c.Import.PageSize < 1 || c.Import.PageSize > 100 {
			problems = append(problems, "import.page_size must be between 1 and 100")
		}
		if c.Import.RasterDPI < 72 || c.Import.RasterDPI > 600 {
			problems = append(problems, "import.raster_dpi must be between 72 and 600")
		}
	case "migrate":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
