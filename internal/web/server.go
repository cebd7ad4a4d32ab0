package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/addonbay/portal/internal/catalog/storage"
	"github.com/addonbay/portal/internal/identity"
)

// Config defines the inputs for the web server.
type Config struct {
	HTTPAddr      string
	UploadBaseURL string
	Wizard        WizardService
	Addons        storage.AddonStore
	Tags          storage.TagStore
	Verifier      *identity.Verifier
}

// Server hosts the portal HTTP server.
type Server struct {
	httpAddr   string
	httpServer *http.Server
}

// NewHandler builds the HTTP handler for the portal routes.
func NewHandler(config Config) http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, handlers{
		wizard:        config.Wizard,
		addons:        config.Addons,
		tags:          config.Tags,
		verifier:      config.Verifier,
		uploadBaseURL: config.UploadBaseURL,
	})
	return mux
}

// NewServer builds a configured web server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.Wizard == nil {
		return nil, errors.New("wizard service is required")
	}
	if config.Addons == nil {
		return nil, errors.New("addon store is required")
	}
	if config.Tags == nil {
		return nil, errors.New("tag store is required")
	}
	if config.Verifier == nil {
		return nil, errors.New("identity verifier is required")
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           NewHandler(config),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{httpAddr: httpAddr, httpServer: httpServer}, nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("web server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("web listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
