package application

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eugenenazirov/signcfg/internal/buildenv"
	"github.com/eugenenazirov/signcfg/internal/config"
	"github.com/eugenenazirov/signcfg/internal/signing"
	"github.com/eugenenazirov/signcfg/internal/storage"
)

// Service resolves signing configuration from a configuration snapshot and
// keeps the latest resolution alive until it is replaced or closed.
type Service struct {
	resolver *signing.Resolver
	env      buildenv.Environment
	sources  signing.Sources
	store    storage.Storage
	logger   *zap.Logger
	clock    func() time.Time

	// refreshMu serializes Refresh so the recorded snapshot always describes current.
	refreshMu sync.Mutex

	mu      sync.Mutex
	current *signing.Resolution
}

// NewService creates a Service for cfg. A nil store disables snapshot recording.
func NewService(cfg config.Config, store storage.Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resolver: signing.NewResolver(logger.Named("signing"), cfg.ResolverOptions()...),
		env:      cfg.Environment,
		sources:  cfg.Sources,
		store:    store,
		logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Resolve performs a one-shot resolution. The caller owns the result and must Close it.
func (s *Service) Resolve() (*signing.Resolution, error) {
	res, err := s.resolver.Resolve(s.env, s.sources)
	if err != nil {
		return nil, fmt.Errorf("resolve signing configuration: %w", err)
	}
	return res, nil
}

// Refresh re-resolves, replaces the held resolution and records a snapshot.
// A failed resolution is recorded too, and the previous one is released.
func (s *Service) Refresh() (storage.Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	res, resolveErr := s.Resolve()

	snapshot := storage.Snapshot{ResolvedAt: s.clock()}
	if resolveErr != nil {
		snapshot.Summary = signing.Summary{Environment: s.env.String()}
		snapshot.Error = resolveErr.Error()
	} else {
		snapshot.Summary = res.Summary()
	}

	s.mu.Lock()
	previous := s.current
	s.current = res
	s.mu.Unlock()

	if err := previous.Close(); err != nil {
		s.logger.Warn("failed to release previous keystore", zap.Error(err))
	}

	if s.store != nil {
		if err := s.store.SetSnapshot(snapshot); err != nil {
			return snapshot, multierr.Append(resolveErr, fmt.Errorf("record snapshot: %w", err))
		}
	}

	if resolveErr != nil {
		s.logger.Error("signing configuration resolution failed", zap.Error(resolveErr))
		return snapshot, resolveErr
	}

	s.logger.Info("signing configuration resolved",
		zap.String("environment", snapshot.Summary.Environment),
		zap.Bool("complete", snapshot.Summary.Complete),
		zap.Strings("missing", snapshot.Summary.Missing),
	)
	return snapshot, nil
}

// Close releases the held resolution.
func (s *Service) Close() error {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()

	return current.Close()
}
