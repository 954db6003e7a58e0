package notifyrepo

import "context"

type PaymentResultNote struct {
	Email       string
	BookingID   string
	AmountCents int64
	Outcome     string
	MpesaRef    string
}

// Repo is the downstream notification boundary. Delivery is fire-and-forget
// from the ledger's point of view; the callback worker owns the retries.
type Repo interface {
	NotifyPaymentResult(ctx context.Context, n PaymentResultNote) error
}
