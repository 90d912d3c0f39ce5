package provider

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("provider not found")

type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, businessID, id int64) (*Provider, error)
	List(ctx context.Context, businessID int64, activeOnly bool, limit, offset int) ([]*Provider, int, error)
	SetActive(ctx context.Context, businessID, id int64, active bool) error

	ActiveProviderIDs(ctx context.Context, businessID int64) ([]int64, error)
	ProviderBelongs(ctx context.Context, businessID, providerID int64) (bool, error)
}
