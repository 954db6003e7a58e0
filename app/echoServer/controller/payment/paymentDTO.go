package payment

type CreatePaymentReq struct {
	BookingID     string `json:"booking_id" validate:"required,uuid"`
	AmountCents   int64  `json:"amount_cents" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=mpesa"`
}
