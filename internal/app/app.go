// Package app wires configuration, stores, and the HTTP server into a
// runnable portal process.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/addonbay/portal/internal/catalog/draft"
	draftbbolt "github.com/addonbay/portal/internal/catalog/draft/bbolt"
	"github.com/addonbay/portal/internal/catalog/importer"
	"github.com/addonbay/portal/internal/catalog/storage/sqlite"
	"github.com/addonbay/portal/internal/catalog/wizard"
	"github.com/addonbay/portal/internal/identity"
	"github.com/addonbay/portal/internal/platform/config"
	"github.com/addonbay/portal/internal/web"
)

// Config holds portal process configuration.
type Config struct {
	HTTPAddr      string        `env:"ADDONBAY_HTTP_ADDR" envDefault:":8080"`
	DBPath        string        `env:"ADDONBAY_DB_PATH" envDefault:"data/catalog.db"`
	DraftDBPath   string        `env:"ADDONBAY_DRAFT_DB_PATH" envDefault:"data/drafts.db"`
	DraftTTL      time.Duration `env:"ADDONBAY_DRAFT_TTL" envDefault:"24h"`
	UploadBaseURL string        `env:"ADDONBAY_UPLOAD_BASE_URL" envDefault:"http://localhost:8080/uploads"`
	SessionKey    string        `env:"ADDONBAY_SESSION_KEY"`
	ImportTimeout time.Duration `env:"ADDONBAY_IMPORT_TIMEOUT" envDefault:"30s"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The catalog database path")
	fs.StringVar(&cfg.DraftDBPath, "draft-db", cfg.DraftDBPath, "The draft database path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the portal and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	if strings.TrimSpace(cfg.SessionKey) == "" {
		return errors.New("ADDONBAY_SESSION_KEY is required")
	}
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = 24 * time.Hour
	}
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = 30 * time.Second
	}

	for _, path := range []string{cfg.DBPath, cfg.DraftDBPath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}
		}
	}

	addons, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	defer func() {
		if err := addons.Close(); err != nil {
			log.Printf("close catalog store: %v", err)
		}
	}()

	drafts, err := draftbbolt.Open(cfg.DraftDBPath)
	if err != nil {
		return fmt.Errorf("open draft store: %w", err)
	}
	defer func() {
		if err := drafts.Close(); err != nil {
			log.Printf("close draft store: %v", err)
		}
	}()

	verifier, err := identity.NewVerifier([]byte(cfg.SessionKey))
	if err != nil {
		return fmt.Errorf("build identity verifier: %w", err)
	}

	wiz := wizard.New(
		wizard.Stores{Drafts: drafts, Addons: addons},
		importerFactory(),
		wizard.WithImportTimeout(cfg.ImportTimeout),
	)

	server, err := web.NewServer(web.Config{
		HTTPAddr:      cfg.HTTPAddr,
		UploadBaseURL: cfg.UploadBaseURL,
		Wizard:        wiz,
		Addons:        addons,
		Tags:          addons,
		Verifier:      verifier,
	})
	if err != nil {
		return fmt.Errorf("build web server: %w", err)
	}

	go sweepDrafts(ctx, drafts, cfg.DraftTTL)

	return server.ListenAndServe(ctx)
}

// importerFactory selects an importer backend by repository host. Only
// GitHub is supported today.
func importerFactory() importer.Factory {
	client := importer.NewBreakerClient(importer.NewClient())
	github := importer.NewGitHub(client)
	return importer.FactoryFunc(func(sourceURL string) (importer.RepositoryImporter, error) {
		normalized, err := importer.NormalizeRepositoryURL(sourceURL)
		if err != nil {
			return nil, err
		}
		parsed, err := url.Parse(normalized)
		if err != nil {
			return nil, fmt.Errorf("parse repository url: %w", importer.ErrFormatInvalid)
		}
		switch parsed.Host {
		case "github.com", "www.github.com":
			return github, nil
		}
		return nil, fmt.Errorf("no importer for host %q: %w", parsed.Host, importer.ErrFormatInvalid)
	})
}

// sweepDrafts evicts expired drafts on a fixed cadence until the context
// ends.
func sweepDrafts(ctx context.Context, drafts draft.Store, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	if interval > time.Hour {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := drafts.PruneExpired(ctx, ttl)
			if err != nil {
				log.Printf("prune drafts: %v", err)
				continue
			}
			if pruned > 0 {
				log.Printf("pruned %d expired drafts", pruned)
			}
		}
	}
}
