package propertyrepo

import (
	"context"
	"errors"
	"time"

	"github.com/Nganga02/nexus/model"
	"github.com/Nganga02/nexus/util/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("property not found")

type Repo interface {
	Create(ctx context.Context, p *model.Property) error
	List(ctx context.Context) ([]model.Property, error)
	Get(ctx context.Context, id string) (*model.Property, error)
	UpdatePrice(ctx context.Context, id string, priceCents int64) error
	Delete(ctx context.Context, id string) error
}

type repo struct{ db *database.DB }

func New(db *database.DB) Repo { return &repo{db} }

func (r *repo) Create(ctx context.Context, p *model.Property) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO properties (id, owner_id, name, description, location, amenities, price_per_night_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.OwnerID, p.Name, p.Description, p.Location, p.Amenities, p.PricePerNightCents, p.CreatedAt,
	)
	return err
}

func (r *repo) List(ctx context.Context) ([]model.Property, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, owner_id, name, description, location, amenities, price_per_night_cents, created_at
		FROM properties
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Property
	for rows.Next() {
		var p model.Property
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Location,
			&p.Amenities, &p.PricePerNightCents, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repo) Get(ctx context.Context, id string) (*model.Property, error) {
	p := &model.Property{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, location, amenities, price_per_night_cents, created_at
		FROM properties
		WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Location,
		&p.Amenities, &p.PricePerNightCents, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *repo) UpdatePrice(ctx context.Context, id string, priceCents int64) error {
	ct, err := r.db.Pool.Exec(ctx, `
		UPDATE properties SET price_per_night_cents = $2 WHERE id = $1`,
		id, priceCents,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Pool.Exec(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
