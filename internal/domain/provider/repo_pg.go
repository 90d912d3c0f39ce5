package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotbook/scheduler/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const providerCols = `id, business_id, name, is_active, created_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.IsActive, &p.CreatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Provider) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO providers (business_id, name, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		p.BusinessID, p.Name, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("business %d does not exist", p.BusinessID)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, businessID, id int64) (*Provider, error) {
	p, err := scanProvider(r.conn(ctx).QueryRow(ctx,
		`SELECT `+providerCols+` FROM providers WHERE id = $1 AND business_id = $2`, id, businessID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context, businessID int64, activeOnly bool, limit, offset int) ([]*Provider, int, error) {
	where := ` WHERE business_id = $1`
	if activeOnly {
		where += ` AND is_active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM providers`+where, businessID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+providerCols+` FROM providers`+where+` ORDER BY name, id LIMIT $2 OFFSET $3`,
		businessID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) SetActive(ctx context.Context, businessID, id int64, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE providers SET is_active = $3 WHERE id = $1 AND business_id = $2`, id, businessID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ActiveProviderIDs(ctx context.Context, businessID int64) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id FROM providers WHERE business_id = $1 AND is_active ORDER BY id`, businessID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *repoPG) ProviderBelongs(ctx context.Context, businessID, providerID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1 AND business_id = $2)`, providerID, businessID).Scan(&ok)
	return ok, err
}
