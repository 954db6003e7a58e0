package paymentrepo

import (
	"context"
	"errors"
	"time"

	"github.com/Nganga02/nexus/model"
	"github.com/Nganga02/nexus/util/database"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound        = errors.New("payment not found")
	ErrAlreadyAssigned = errors.New("checkout request id already assigned")
)

type Repo interface {
	Insert(ctx context.Context, tx pgx.Tx, p *model.Payment) error
	Get(ctx context.Context, id string) (*model.Payment, error)

	// AttachCheckoutRequestID binds the gateway correlation token to the
	// payment. Fails with ErrAlreadyAssigned if the payment already holds one;
	// a unique-violation from the partial index means another payment holds
	// this token globally (mapped by the service).
	AttachCheckoutRequestID(ctx context.Context, paymentID, checkoutRequestID string) error

	// GetByCheckoutRequestIDForUpdate locks the payment row for the duration
	// of settlement, so no two settlement attempts for one token run
	// concurrently.
	GetByCheckoutRequestIDForUpdate(ctx context.Context, tx pgx.Tx, checkoutRequestID string) (*model.Payment, error)

	SetStatus(ctx context.Context, tx pgx.Tx, id string, status model.PaymentStatus, mpesaRef string) error
	MarkFailed(ctx context.Context, id string) error
}

type repo struct{ db *database.DB }

func New(db *database.DB) Repo { return &repo{db} }

func (r *repo) Insert(ctx context.Context, tx pgx.Tx, p *model.Payment) error {
	p.CreatedAt = time.Now().UTC()
	const q = `
		INSERT INTO payments (id, booking_id, payer_id, amount_cents, checkout_request_id,
			status, mpesa_ref, payment_method, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := tx.Exec(ctx, q,
		p.ID, p.BookingID, p.PayerID, p.AmountCents, p.CheckoutRequestID,
		p.Status, p.MpesaRef, p.PaymentMethod, p.CreatedAt,
	)
	return err
}

const paymentCols = `id, booking_id, payer_id, amount_cents, checkout_request_id,
	status, mpesa_ref, payment_method, created_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(&p.ID, &p.BookingID, &p.PayerID, &p.AmountCents, &p.CheckoutRequestID,
		&p.Status, &p.MpesaRef, &p.PaymentMethod, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *repo) Get(ctx context.Context, id string) (*model.Payment, error) {
	return scanPayment(r.db.Pool.QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE id = $1`, id))
}

func (r *repo) AttachCheckoutRequestID(ctx context.Context, paymentID, checkoutRequestID string) error {
	const q = `
		UPDATE payments
		SET checkout_request_id = $2
		WHERE id = $1 AND checkout_request_id IS NULL`
	ct, err := r.db.Pool.Exec(ctx, q, paymentID, checkoutRequestID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// Either the payment does not exist or a token is already bound.
		var n int
		if err := r.db.Pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM payments WHERE id = $1`, paymentID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrAlreadyAssigned
	}
	return nil
}

func (r *repo) GetByCheckoutRequestIDForUpdate(ctx context.Context, tx pgx.Tx, checkoutRequestID string) (*model.Payment, error) {
	return scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE checkout_request_id = $1 FOR UPDATE`,
		checkoutRequestID))
}

func (r *repo) SetStatus(ctx context.Context, tx pgx.Tx, id string, status model.PaymentStatus, mpesaRef string) error {
	const q = `
		UPDATE payments
		SET status = $2,
			mpesa_ref = $3
		WHERE id = $1`
	ct, err := tx.Exec(ctx, q, id, status, mpesaRef)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed fails a payment outside any settlement transaction. Used when the
// gateway rejects the outbound push, so no callback will ever arrive.
func (r *repo) MarkFailed(ctx context.Context, id string) error {
	const q = `
		UPDATE payments
		SET status = 'failed'
		WHERE id = $1 AND status = 'processing'`
	_, err := r.db.Pool.Exec(ctx, q, id)
	return err
}
