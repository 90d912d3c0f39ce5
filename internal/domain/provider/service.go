package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var ErrInvalidInput = errors.New("invalid input")

// Seeder writes a new provider's default availability.
type Seeder interface {
	Seed(ctx context.Context, providerID int64) error
}

// Transactor runs fn atomically.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type invalidator interface {
	Invalidate(ctx context.Context, businessID int64)
}

type Service struct {
	repo   Repository
	tx     Transactor
	seeder Seeder
	cache  invalidator
	logger zerolog.Logger
}

func NewService(repo Repository, tx Transactor, seeder Seeder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, seeder: seeder, logger: logger}
}

// SetCache attaches the directory cache to invalidate on writes.
func (s *Service) SetCache(c *CachedDirectory) {
	s.cache = c
}

// Create onboards a provider. The default working week is written in the same
// transaction, so a provider never exists without its schedule unless the
// caller opts out.
func (s *Service) Create(ctx context.Context, businessID int64, in CreateInput) (*Provider, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	p := &Provider{BusinessID: businessID, Name: name, IsActive: true}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create provider: %w", err)
		}
		if in.SkipDefaultSchedule {
			return nil
		}
		return s.seeder.Seed(ctx, p.ID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, businessID)
	s.logger.Info().Int64("business_id", businessID).Int64("provider_id", p.ID).Msg("provider created")
	return p, nil
}

func (s *Service) Get(ctx context.Context, businessID, id int64) (*Provider, error) {
	return s.repo.GetByID(ctx, businessID, id)
}

func (s *Service) List(ctx context.Context, businessID int64, activeOnly bool, limit, offset int) ([]*Provider, int, error) {
	return s.repo.List(ctx, businessID, activeOnly, limit, offset)
}

// SetActive toggles whether the provider appears in calendar views. Existing
// appointments and schedules are kept.
func (s *Service) SetActive(ctx context.Context, businessID, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, businessID, id, active); err != nil {
		return err
	}
	s.invalidate(ctx, businessID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, businessID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, businessID)
	}
}
