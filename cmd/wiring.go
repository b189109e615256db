package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-intel/internal/importer"
	"github.com/sells-group/proposal-intel/internal/pdf"
	"github.com/sells-group/proposal-intel/internal/store"
	"github.com/sells-group/proposal-intel/internal/vision"
	"github.com/sells-group/proposal-intel/pkg/anthropic"
	"github.com/sells-group/proposal-intel/pkg/pandadoc"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "proposals.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initProvider() (pandadoc.Client, error) {
	var opts []pandadoc.Option
	if cfg.PandaDoc.BaseURL != "" {
		opts = append(opts, pandadoc.WithBaseURL(cfg.PandaDoc.BaseURL))
	}
	if cfg.PandaDoc.RateLimit > 0 {
		opts = append(opts, pandadoc.WithRateLimit(cfg.PandaDoc.RateLimit))
	}
	return pandadoc.NewClient(cfg.PandaDoc.Key, opts...)
}

// initImporter wires the full pipeline. The vision path is enabled only when
// an Anthropic key is configured; without one, extraction runs on provider
// fields plus the deterministic text parser.
func initImporter(ctx context.Context) (*importer.Importer, store.Store, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	provider, err := initProvider()
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	conv := pdf.NewConverter(cfg.PDF.PdfToPpmPath, cfg.PDF.PdfInfoPath, cfg.PDF.PdfToTextPath)

	var extractor importer.Extractor
	if cfg.Anthropic.Key != "" {
		ai := anthropic.NewClient(cfg.Anthropic.Key)
		extractor = vision.New(ai, vision.Config{
			Model:            cfg.Anthropic.Model,
			ClassifyMaxPages: cfg.Vision.ClassifyMaxPages,
			DPI:              cfg.Import.RasterDPI,
			CallTimeout:      time.Duration(cfg.Vision.CallTimeoutSecs) * time.Second,
		})
	}

	imp := importer.New(st, provider, extractor, conv, importerConfig())
	return imp, st, nil
}

func importerConfig() importer.Config {
	c := importer.DefaultConfig()
	c.PageSize = cfg.Import.PageSize
	c.PageDelay = time.Duration(cfg.Import.PageDelayMs) * time.Millisecond
	c.DocumentDelay = time.Duration(cfg.Import.DocumentDelayMs) * time.Millisecond
	c.RasterDPI = cfg.Import.RasterDPI
	c.RasterMaxPages = cfg.Import.RasterMaxPages
	c.FetchRetry.MaxAttempts = cfg.Import.FetchMaxAttempts
	c.FetchRetry.BaseDelay = time.Duration(cfg.Import.FetchBaseDelayMs) * time.Millisecond
	c.DownloadRetry.MaxAttempts = cfg.Import.DownloadMaxAttempts
	c.DownloadRetry.BaseDelay = time.Duration(cfg.Import.DownloadBaseDelayMs) * time.Millisecond
	return c
}
