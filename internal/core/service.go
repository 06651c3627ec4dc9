package core

import (
	"context"
	"fmt"
	"time"
)

// Default page sizes for list queries.
const (
	DefaultPageSize = 10
	MaxPageSize     = 500
)

// DefaultImportTimeout bounds a single import run.
var DefaultImportTimeout = 5 * time.Minute

// Service provides the inventory operations used by the HTTP server and CLI.
type Service struct {
	store   Store
	limiter *ImportLimiter
	now     func() time.Time

	maxRows         int
	importTimeout   time.Duration
	defaultPageSize int
	maxPageSize     int
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for date validation and export file names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithImportLimiter sets the limiter shared by all imports.
func WithImportLimiter(l *ImportLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithMaxRows caps the data rows accepted in one file. Zero means no cap.
func WithMaxRows(n int) Option {
	return func(s *Service) { s.maxRows = n }
}

// WithImportTimeout bounds each import run.
func WithImportTimeout(d time.Duration) Option {
	return func(s *Service) { s.importTimeout = d }
}

// WithPageSizes sets the default and maximum list page sizes.
func WithPageSizes(def, max int) Option {
	return func(s *Service) {
		if def > 0 {
			s.defaultPageSize = def
		}
		if max > 0 {
			s.maxPageSize = max
		}
	}
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		now:             time.Now,
		importTimeout:   DefaultImportTimeout,
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultImportWait)
	}
	if s.defaultPageSize > s.maxPageSize {
		s.defaultPageSize = s.maxPageSize
	}
	return s
}

// Entities returns information about all registered entities.
func (s *Service) Entities() []EntityInfo {
	defs := All()
	infos := make([]EntityInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// Definition returns the registered definition for an entity key.
func (s *Service) Definition(entity string) (EntityDefinition, error) {
	def, ok := Get(entity)
	if !ok {
		return EntityDefinition{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return def, nil
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ImportStatus reports import slot usage.
func (s *Service) ImportStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// Drain waits for running imports to finish, for graceful shutdown.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Vocabulary returns the controlled vocabularies in effect.
func (s *Service) Vocabulary() *Vocabulary {
	return CurrentVocabulary()
}

// Today returns the service clock's current date, used in export file names.
func (s *Service) Today() time.Time {
	return s.now()
}
