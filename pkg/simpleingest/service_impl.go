package simpleingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// service implements the Service interface
type service struct {
	repository Repository
	objects    ObjectStore
	quota      QuotaStore
	registry   *Registry
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	backfills singleflight.Group
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the content repository
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithObjectStore sets the content-addressed object store
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.objects = store
	}
}

// WithQuotaStore sets the quota collaborator. Without one every owner is
// unlimited.
func WithQuotaStore(quota QuotaStore) Option {
	return func(s *service) {
		s.quota = quota
	}
}

// WithRegistry sets the driver registry
func WithRegistry(registry *Registry) Option {
	return func(s *service) {
		s.registry = registry
	}
}

// WithHTTPClient sets the client used for generic URL fetches
func WithHTTPClient(client *http.Client) Option {
	return func(s *service) {
		s.httpClient = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for records and quota periods
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		now:        time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.registry == nil {
		s.registry = MustRegistry()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("service", "simpleingest")

	return s, nil
}

func (s *service) Registry() *Registry {
	return s.registry
}

func (s *service) Remaining(ctx context.Context, ownerID uuid.UUID) (int64, bool, error) {
	return Remaining(ctx, s.quota, ownerID, s.now().UTC())
}
