// model/callback.go
package model

import "time"

type CallbackTaskStatus string

const (
	CallbackPending CallbackTaskStatus = "pending"
	CallbackDone    CallbackTaskStatus = "done"
	CallbackFailed  CallbackTaskStatus = "failed"
)

// CallbackTask is one durably queued gateway notification. The webhook
// handler only inserts rows; the worker claims and settles them.
type CallbackTask struct {
	ID                int64              `json:"id"`
	CheckoutRequestID string             `json:"checkout_request_id"`
	ResultCode        int                `json:"result_code"`
	ResultDesc        string             `json:"result_desc"`
	MpesaRef          string             `json:"mpesa_ref"`
	AmountCents       int64              `json:"amount_cents"`
	Status            CallbackTaskStatus `json:"status"`
	Attempts          int                `json:"attempts"`
	NextAttemptAt     time.Time          `json:"next_attempt_at"`
	LastError         *string            `json:"last_error,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}
