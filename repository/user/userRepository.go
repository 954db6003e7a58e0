package userrepo

import (
	"context"
	"errors"

	"github.com/Nganga02/nexus/model"
	"github.com/Nganga02/nexus/util/database"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("user not found")

// Repo is a read-only lookup surface. User lifecycle belongs to the identity
// service; we only resolve guests and payer contacts.
type Repo interface {
	Get(ctx context.Context, id string) (*model.User, error)
	AllExist(ctx context.Context, tx pgx.Tx, ids []string) (bool, error)
}

type repo struct{ db *database.DB }

func New(db *database.DB) Repo { return &repo{db} }

func (r *repo) Get(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, phone_number, COALESCE(email, ''), role, created_at
		FROM users
		WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.PhoneNumber, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// AllExist reports whether every id resolves to a user. Runs on the caller's
// transaction so booking creation sees a consistent snapshot.
func (r *repo) AllExist(ctx context.Context, tx pgx.Tx, ids []string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	uniq := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}
	distinct := make([]string, 0, len(uniq))
	for id := range uniq {
		distinct = append(distinct, id)
	}

	var n int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE id = ANY($1::uuid[])`, distinct).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == len(distinct), nil
}
