package app

import (
	"errors"
	"flag"
	"testing"
	"time"

	"github.com/addonbay/portal/internal/catalog/importer"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.DraftTTL != 24*time.Hour {
		t.Fatalf("draft ttl = %v, want %v", cfg.DraftTTL, 24*time.Hour)
	}
	if cfg.ImportTimeout != 30*time.Second {
		t.Fatalf("import timeout = %v, want %v", cfg.ImportTimeout, 30*time.Second)
	}
}

func TestParseConfigFlagOverridesEnv(t *testing.T) {
	t.Setenv("ADDONBAY_HTTP_ADDR", ":9999")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", ":7777"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":7777" {
		t.Fatalf("http addr = %q, want flag value", cfg.HTTPAddr)
	}
}

func TestImporterFactorySelectsGitHub(t *testing.T) {
	t.Parallel()

	factory := importerFactory()
	if _, err := factory.ImporterFor("https://github.com/acme/widget"); err != nil {
		t.Fatalf("importer for github: %v", err)
	}
}

func TestImporterFactoryRejectsUnknownHost(t *testing.T) {
	t.Parallel()

	factory := importerFactory()
	_, err := factory.ImporterFor("https://bitbucket.org/acme/widget")
	if !errors.Is(err, importer.ErrFormatInvalid) {
		t.Fatalf("error = %v, want %v", err, importer.ErrFormatInvalid)
	}
}
