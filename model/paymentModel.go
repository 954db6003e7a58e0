// model/payment.go
package model

import "time"

type PaymentStatus string

const (
	PaymentProcessing PaymentStatus = "processing"
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
)

// Terminal reports whether the payment has settled. A settled payment never
// transitions again.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccessful || s == PaymentFailed
}

type Payment struct {
	ID                string        `json:"id"`
	BookingID         string        `json:"booking_id"`
	PayerID           string        `json:"payer_id"`
	AmountCents       int64         `json:"amount_cents"`
	CheckoutRequestID *string       `json:"checkout_request_id,omitempty"`
	Status            PaymentStatus `json:"status"`
	MpesaRef          string        `json:"mpesa_ref,omitempty"`
	PaymentMethod     string        `json:"payment_method"`
	CreatedAt         time.Time     `json:"created_at"`
}
