package callbacksvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Nganga02/nexus/model"
	notifyrepo "github.com/Nganga02/nexus/repository/notify"
	paymentsvc "github.com/Nganga02/nexus/service/payment"
)

const (
	pollInterval   = time.Second
	claimBatch     = 10
	claimLease     = time.Minute
	maxAttempts    = 3
	backoffBase    = 500 * time.Millisecond
	maxNotifyTries = 3
)

type TaskQueue interface {
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]model.CallbackTask, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastErr string) error
	Reschedule(ctx context.Context, id int64, at time.Time, lastErr string) error
}

type Payments interface {
	Settle(ctx context.Context, checkoutRequestID string, success bool, mpesaRef string, settledCents int64) (*paymentsvc.SettlementResult, error)
}

type Users interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// Worker drains the callback queue. Many workers may run concurrently:
// SKIP LOCKED keeps them off each other's tasks and the payment row lock
// inside Settle serializes attempts per correlation token.
type Worker struct {
	tasks    TaskQueue
	payments Payments
	users    Users
	notifier notifyrepo.Repo
	log      *slog.Logger
}

func NewWorker(tasks TaskQueue, payments Payments, users Users, notifier notifyrepo.Repo, log *slog.Logger) *Worker {
	return &Worker{tasks: tasks, payments: payments, users: users, notifier: notifier, log: log}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tasks, err := w.tasks.ClaimDue(ctx, claimBatch, claimLease)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Error("claim callback tasks", "err", err)
			}
			continue
		}
		for _, t := range tasks {
			w.process(ctx, t)
		}
	}
}

func (w *Worker) process(ctx context.Context, t model.CallbackTask) {
	res, err := w.payments.Settle(ctx, t.CheckoutRequestID, t.ResultCode == 0, t.MpesaRef, t.AmountCents)
	if err != nil {
		if paymentsvc.Code(err) == paymentsvc.ErrUnknownToken {
			// The gateway's own retry policy is the source of truth for
			// redelivery; nothing to retry on our side.
			w.log.Warn("callback for unknown checkout request id",
				"task_id", t.ID, "checkout_request_id", t.CheckoutRequestID)
			w.markDone(ctx, t.ID)
			return
		}
		w.retryLater(ctx, t, fmt.Sprintf("settle: %v", err))
		return
	}

	if res.AlreadySettled {
		w.log.Info("settlement replayed, no-op",
			"task_id", t.ID,
			"payment_id", res.PaymentID,
			"payment_status", res.PaymentStatus)
		w.markDone(ctx, t.ID)
		return
	}

	w.log.Info("payment settled",
		"task_id", t.ID,
		"payment_id", res.PaymentID,
		"booking_id", res.BookingID,
		"payment_status", res.PaymentStatus,
		"booking_status", res.BookingStatus)

	if res.PaymentStatus != model.PaymentSuccessful {
		w.markDone(ctx, t.ID)
		return
	}

	if t.AmountCents != 0 && t.AmountCents != res.AmountCents {
		w.log.Warn("settled amount differs from payment amount",
			"task_id", t.ID,
			"payment_id", res.PaymentID,
			"callback_cents", t.AmountCents,
			"payment_cents", res.AmountCents)
	}

	// Settlement is committed; from here on only the notification side effect
	// may be retried.
	if err := w.notifyWithRetry(ctx, t, res); err != nil {
		w.log.Error("payment notification exhausted retries, manual follow-up required",
			"task_id", t.ID, "payment_id", res.PaymentID, "err", err)
		if ferr := w.tasks.MarkFailed(ctx, t.ID, fmt.Sprintf("notify: %v", err)); ferr != nil {
			w.log.Error("mark callback task failed", "task_id", t.ID, "err", ferr)
		}
		return
	}
	w.markDone(ctx, t.ID)
}

func (w *Worker) notifyWithRetry(ctx context.Context, t model.CallbackTask, res *paymentsvc.SettlementResult) error {
	payer, err := w.users.Get(ctx, res.PayerID)
	if err != nil {
		return fmt.Errorf("resolve payer: %w", err)
	}

	note := notifyrepo.PaymentResultNote{
		Email:       payer.Email,
		BookingID:   res.BookingID,
		AmountCents: res.AmountCents,
		Outcome:     string(res.PaymentStatus),
		MpesaRef:    t.MpesaRef,
	}

	for attempt := 0; attempt < maxNotifyTries; attempt++ {
		if attempt > 0 {
			if serr := sleepCtx(ctx, backoffBase<<uint(attempt-1)); serr != nil {
				return serr
			}
		}
		if err = w.notifier.NotifyPaymentResult(ctx, note); err == nil {
			return nil
		}
		w.log.Warn("payment notification failed",
			"task_id", t.ID, "attempt", attempt+1, "err", err)
	}
	return err
}

func (w *Worker) retryLater(ctx context.Context, t model.CallbackTask, reason string) {
	// Attempts was already bumped by the claim.
	if t.Attempts >= maxAttempts {
		w.log.Error("callback task exhausted retries, manual follow-up required",
			"task_id", t.ID, "checkout_request_id", t.CheckoutRequestID, "reason", reason)
		if err := w.tasks.MarkFailed(ctx, t.ID, reason); err != nil {
			w.log.Error("mark callback task failed", "task_id", t.ID, "err", err)
		}
		return
	}
	delay := backoffBase << uint(t.Attempts)
	if err := w.tasks.Reschedule(ctx, t.ID, time.Now().UTC().Add(delay), reason); err != nil {
		w.log.Error("reschedule callback task", "task_id", t.ID, "err", err)
	}
}

func (w *Worker) markDone(ctx context.Context, id int64) {
	if err := w.tasks.MarkDone(ctx, id); err != nil {
		w.log.Error("mark callback task done", "task_id", id, "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
