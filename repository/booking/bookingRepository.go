package bookingrepo

import (
	"context"
	"errors"
	"time"

	"github.com/Nganga02/nexus/model"
	"github.com/Nganga02/nexus/util/database"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("booking not found")

type Repo interface {
	// LockProperty takes a transaction-scoped advisory lock on the property
	// so the overlap check and the insert/update behave as one serialized
	// unit per property. Released automatically at commit/rollback.
	LockProperty(ctx context.Context, tx pgx.Tx, propertyID string) error

	// PropertyPriceCents reads the current nightly price inside the same
	// transaction that will snapshot it onto the booking.
	PropertyPriceCents(ctx context.Context, tx pgx.Tx, propertyID string) (int64, error)

	// HasOverlap answers whether any live booking on the property intersects
	// the half-open [checkIn, checkOut) range. excludeID, when non-nil, skips
	// that booking (update-in-place checks).
	HasOverlap(ctx context.Context, tx pgx.Tx, propertyID string, checkIn, checkOut time.Time, excludeID *string) (bool, error)

	Insert(ctx context.Context, tx pgx.Tx, b *model.Booking) error
	Get(ctx context.Context, id string) (*model.Booking, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error)
	UpdateRange(ctx context.Context, tx pgx.Tx, b *model.Booking) error
	ApplyBalance(ctx context.Context, tx pgx.Tx, id string, balanceCents int64, status model.BookingStatus) error
	SetCanceled(ctx context.Context, tx pgx.Tx, id string) error
	ReplaceGuests(ctx context.Context, tx pgx.Tx, bookingID string, guestIDs []string) error
	ListByGuest(ctx context.Context, guestID string) ([]model.Booking, error)
}

type repo struct{ db *database.DB }

func New(db *database.DB) Repo { return &repo{db} }

func (r *repo) LockProperty(ctx context.Context, tx pgx.Tx, propertyID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, propertyID)
	return err
}

func (r *repo) PropertyPriceCents(ctx context.Context, tx pgx.Tx, propertyID string) (int64, error) {
	const q = `SELECT price_per_night_cents FROM properties WHERE id = $1`
	var cents int64
	err := tx.QueryRow(ctx, q, propertyID).Scan(&cents)
	return cents, err
}

func (r *repo) HasOverlap(ctx context.Context, tx pgx.Tx, propertyID string, checkIn, checkOut time.Time, excludeID *string) (bool, error) {
	// Half-open interval test: [a,b) and [c,d) overlap iff a < d and c < b.
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM bookings
			WHERE property_id = $1
			  AND status <> 'canceled'
			  AND check_in < $3
			  AND check_out > $2
			  AND ($4::uuid IS NULL OR id <> $4::uuid)
		)`
	var exists bool
	err := tx.QueryRow(ctx, q, propertyID, checkIn, checkOut, excludeID).Scan(&exists)
	return exists, err
}

func (r *repo) Insert(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	const q = `
		INSERT INTO bookings (id, property_id, status, check_in, check_out,
			price_per_night_cents, total_price_cents, balance_due_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := tx.Exec(ctx, q,
		b.ID, b.PropertyID, b.Status, b.CheckIn, b.CheckOut,
		b.PricePerNightCents, b.TotalPriceCents, b.BalanceDueCents, b.CreatedAt,
	); err != nil {
		return err
	}
	return insertGuests(ctx, tx, b.ID, b.GuestIDs)
}

func insertGuests(ctx context.Context, tx pgx.Tx, bookingID string, guestIDs []string) error {
	for _, gid := range guestIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_guests (booking_id, guest_id)
			VALUES ($1,$2)
			ON CONFLICT (booking_id, guest_id) DO NOTHING`,
			bookingID, gid,
		); err != nil {
			return err
		}
	}
	return nil
}

const bookingCols = `id, property_id, status, check_in, check_out,
	price_per_night_cents, total_price_cents, balance_due_cents, created_at,
	(SELECT COALESCE(array_agg(guest_id::text ORDER BY guest_id), '{}')
	   FROM booking_guests WHERE booking_id = bookings.id)`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	b := &model.Booking{}
	err := row.Scan(&b.ID, &b.PropertyID, &b.Status, &b.CheckIn, &b.CheckOut,
		&b.PricePerNightCents, &b.TotalPriceCents, &b.BalanceDueCents, &b.CreatedAt, &b.GuestIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *repo) Get(ctx context.Context, id string) (*model.Booking, error) {
	return scanBooking(r.db.Pool.QueryRow(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id))
}

func (r *repo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
	// FOR UPDATE serializes balance mutations per booking: two concurrent
	// payments cannot both validate against a stale balance.
	return scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
}

func (r *repo) UpdateRange(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	const q = `
		UPDATE bookings
		SET check_in = $2,
			check_out = $3,
			total_price_cents = $4,
			balance_due_cents = $5,
			status = $6
		WHERE id = $1`
	ct, err := tx.Exec(ctx, q, b.ID, b.CheckIn, b.CheckOut, b.TotalPriceCents, b.BalanceDueCents, b.Status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) ApplyBalance(ctx context.Context, tx pgx.Tx, id string, balanceCents int64, status model.BookingStatus) error {
	const q = `
		UPDATE bookings
		SET balance_due_cents = $2,
			status = $3
		WHERE id = $1`
	ct, err := tx.Exec(ctx, q, id, balanceCents, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) SetCanceled(ctx context.Context, tx pgx.Tx, id string) error {
	const q = `UPDATE bookings SET status = 'canceled' WHERE id = $1`
	ct, err := tx.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) ReplaceGuests(ctx context.Context, tx pgx.Tx, bookingID string, guestIDs []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM booking_guests WHERE booking_id = $1`, bookingID); err != nil {
		return err
	}
	return insertGuests(ctx, tx, bookingID, guestIDs)
}

func (r *repo) ListByGuest(ctx context.Context, guestID string) ([]model.Booking, error) {
	const q = `
		SELECT ` + bookingCols + `
		FROM bookings
		WHERE id IN (SELECT booking_id FROM booking_guests WHERE guest_id = $1)
		ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.PropertyID, &b.Status, &b.CheckIn, &b.CheckOut,
			&b.PricePerNightCents, &b.TotalPriceCents, &b.BalanceDueCents, &b.CreatedAt, &b.GuestIDs); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
