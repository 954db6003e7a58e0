package mpesarepo

import "context"

type StkPushReq struct {
	PhoneNumber      string
	AmountCents      int64
	AccountReference string
	Description      string
}

type StkPushResp struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResponseCode      string
	CustomerMessage   string
}

// Repo is the outbound push-payment boundary. The core only consumes the
// CheckoutRequestID and correlates the eventual callback against it.
type Repo interface {
	InitiateStkPush(ctx context.Context, req StkPushReq) (*StkPushResp, error)
}
