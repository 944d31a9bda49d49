// Package server assembles the HTTP service from configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"repodeck/internal/api"
	"repodeck/internal/archive"
	"repodeck/internal/config"
	"repodeck/internal/git"
	"repodeck/internal/history"
	historystorage "repodeck/internal/history/storage"
	"repodeck/internal/logging"
	"repodeck/internal/middleware"
	"repodeck/internal/session"
	sessionstorage "repodeck/internal/session/storage"
	"repodeck/internal/squash"
	"repodeck/internal/stager"
	"repodeck/internal/storage"
	"repodeck/internal/watch"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Core is the non-HTTP part of the service, shared with the CLI
type Core struct {
	Backend  git.Backend
	Stager   *stager.Stager
	Squasher *squash.Service
	History  history.Box
	DB       *badger.DB
}

// NewBackend picks the git backend named in cfg
func NewBackend(cfg *config.Config) git.Backend {
	exec := git.NewExecBackend(cfg.Git.Binary, cfg.GitTimeout())
	if cfg.Git.Backend == config.BackendGoGit {
		return git.NewGoGitBackend(exec)
	}
	return exec
}

func NewCore(cfg *config.Config, logger *zap.Logger) (*Core, error) {
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	arch, err := archive.New(archive.DefaultOptions())
	if err != nil {
		db.Close()
		return nil, err
	}

	backend := NewBackend(cfg)
	st := stager.New(backend, cfg.Git.PatchDir, logger.Named("stager"))
	hist := historystorage.NewStore(db, arch)
	svc := squash.NewService(backend, st, logger.Named("squash")).WithRecorder(history.NewRecorder(hist))

	return &Core{
		Backend:  backend,
		Stager:   st,
		Squasher: svc,
		History:  hist,
		DB:       db,
	}, nil
}

func (c *Core) Close() error {
	return c.DB.Close()
}

type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	core    *Core
	watcher *watch.Watcher
	handler http.Handler
}

func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	core, err := NewCore(cfg, logger.Logger)
	if err != nil {
		return nil, err
	}

	sessions, err := sessionstorage.NewStore(core.DB, cfg.Session.CacheSize)
	if err != nil {
		core.Close()
		return nil, err
	}

	var manager *session.Manager
	watcher, err := watch.New(logger.Named("watch"), func(path string) { manager.MarkStale(path) })
	if err != nil {
		core.Close()
		return nil, err
	}
	manager = session.NewManager(sessions, core.Backend, core.Squasher, watcher, logger.Named("session"), cfg.Git.LogLimit)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", api.Health)
	api.NewRepoHandler(core.Backend, core.Stager, core.Squasher, core.History, logger, cfg.Git.LogLimit).Register(mux)
	api.NewSessionHandler(manager, logger).Register(mux)

	handler := middleware.Chain(
		mux,
		middleware.Logger(logger),
		middleware.Recover(logger),
		middleware.RequestID,
	)

	return &Server{cfg: cfg, logger: logger, core: core, watcher: watcher, handler: handler}, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("address", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) Close() error {
	werr := s.watcher.Close()
	if err := s.core.Close(); err != nil {
		return err
	}
	return werr
}
