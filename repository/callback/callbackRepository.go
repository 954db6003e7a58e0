package callbackrepo

import (
	"context"
	"time"

	"github.com/Nganga02/nexus/model"
	"github.com/Nganga02/nexus/util/database"
)

type Repo interface {
	// Enqueue durably records one gateway notification. The webhook handler
	// commits this row before acknowledging the sender.
	Enqueue(ctx context.Context, t *model.CallbackTask, rawPayload []byte) error

	// ClaimDue picks up to limit due pending tasks, bumps their attempt count
	// and pushes next_attempt_at forward by lease so a crashed worker's tasks
	// become claimable again. SKIP LOCKED keeps concurrent workers off each
	// other's rows.
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]model.CallbackTask, error)

	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastErr string) error
	Reschedule(ctx context.Context, id int64, at time.Time, lastErr string) error
}

type repo struct{ db *database.DB }

func New(db *database.DB) Repo { return &repo{db} }

func (r *repo) Enqueue(ctx context.Context, t *model.CallbackTask, rawPayload []byte) error {
	const q = `
		INSERT INTO callback_tasks (checkout_request_id, result_code, result_desc,
			mpesa_ref, amount_cents, raw_payload, status, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',now())
		RETURNING id, created_at`
	return r.db.Pool.QueryRow(ctx, q,
		t.CheckoutRequestID, t.ResultCode, t.ResultDesc, t.MpesaRef, t.AmountCents, rawPayload,
	).Scan(&t.ID, &t.CreatedAt)
}

func (r *repo) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]model.CallbackTask, error) {
	const q = `
		UPDATE callback_tasks
		SET attempts = attempts + 1,
			next_attempt_at = now() + $2::interval
		WHERE id IN (
			SELECT id FROM callback_tasks
			WHERE status = 'pending' AND next_attempt_at <= now()
			ORDER BY id
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		RETURNING id, checkout_request_id, result_code, result_desc, mpesa_ref,
			amount_cents, status, attempts, next_attempt_at, last_error, created_at`
	rows, err := r.db.Pool.Query(ctx, q, limit, lease.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CallbackTask
	for rows.Next() {
		var t model.CallbackTask
		if err := rows.Scan(&t.ID, &t.CheckoutRequestID, &t.ResultCode, &t.ResultDesc,
			&t.MpesaRef, &t.AmountCents, &t.Status, &t.Attempts, &t.NextAttemptAt,
			&t.LastError, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repo) MarkDone(ctx context.Context, id int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE callback_tasks SET status = 'done', last_error = NULL WHERE id = $1`, id)
	return err
}

func (r *repo) MarkFailed(ctx context.Context, id int64, lastErr string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE callback_tasks SET status = 'failed', last_error = $2 WHERE id = $1`, id, lastErr)
	return err
}

func (r *repo) Reschedule(ctx context.Context, id int64, at time.Time, lastErr string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE callback_tasks SET next_attempt_at = $2, last_error = $3 WHERE id = $1`,
		id, at, lastErr)
	return err
}
