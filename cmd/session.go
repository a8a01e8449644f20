package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jywlabs/prdforge/internal/config"
	"github.com/jywlabs/prdforge/internal/conversation"
	"github.com/jywlabs/prdforge/internal/logging"
	"github.com/jywlabs/prdforge/internal/metrics"
	"github.com/jywlabs/prdforge/internal/template"
)

// session holds what the document commands share: configuration, the log
// file, metrics and the conversation store.
type session struct {
	dir     string
	cfg     *config.Config
	log     *logging.Logger
	metrics *metrics.Metrics
	store   conversation.Store
	closer  func() error
}

// openSession loads the project in dir. Without a .prdforge/ directory the
// defaults apply, nothing is logged and conversations are not kept.
func openSession(ctx context.Context, dir string) (*session, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	s := &session{dir: dir, cfg: cfg, metrics: metrics.New()}

	if !initialized(dir) {
		return s, nil
	}

	s.log, err = logging.New(dir, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if err := s.openStore(ctx); err != nil {
		_ = s.log.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) openStore(ctx context.Context) error {
	switch s.cfg.Store.Backend {
	case config.BackendFile:
		s.store = conversation.NewFileStore(filepath.Join(s.dir, template.ProjectDir, template.ConversationsDir))
	default:
		store, err := conversation.OpenSQL(ctx, s.cfg.Store.Backend, s.cfg.Store.DSN)
		if err != nil {
			return err
		}
		s.store = store
		s.closer = store.Close
	}
	return nil
}

func (s *session) logger() *slog.Logger {
	if s.log == nil {
		return logging.Discard()
	}
	return s.log.Logger
}

// requireStore fails when conversations are not kept for this project.
func (s *session) requireStore() (conversation.Store, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%s/ not found. Run 'prdforge init' first", template.ProjectDir)
	}
	return s.store, nil
}

// close writes the metrics file and releases the store and the log.
func (s *session) close() error {
	var errs []error
	if initialized(s.dir) {
		path := filepath.Join(s.dir, template.ProjectDir, template.MetricsFile)
		if err := s.metrics.WriteFile(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if s.closer != nil {
		errs = append(errs, s.closer())
	}
	errs = append(errs, s.log.Close())
	return errors.Join(errs...)
}

func initialized(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, template.ProjectDir))
	return err == nil && info.IsDir()
}
