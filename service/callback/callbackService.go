package callbacksvc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/Nganga02/nexus/model"
	"github.com/Nganga02/nexus/util/redisx"
)

// errors used by controllers

type ErrCode string

const ErrMalformed ErrCode = "MALFORMED_CALLBACK"

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// Daraja STK callback envelope. Metadata items arrive as a Name/Value list;
// Amount comes as a JSON number of shillings.
type stkEnvelope struct {
	Body struct {
		StkCallback stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []metaItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type metaItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

type Tasks interface {
	Enqueue(ctx context.Context, t *model.CallbackTask, rawPayload []byte) error
}

// Dedup marks callback deliveries already seen. Advisory only: the settle
// path stays idempotent on the payment row without it.
type Dedup interface {
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

type Service interface {
	// HandleCallback parses and durably enqueues one gateway notification.
	// The HTTP controller acknowledges the sender either way; a parse
	// failure is an anomaly to record, never a reason to make the gateway
	// retry harder.
	HandleCallback(ctx context.Context, raw []byte) error
}

type service struct {
	tasks Tasks
	dedup Dedup
	log   *slog.Logger
}

func New(tasks Tasks, dedup Dedup, log *slog.Logger) Service {
	return &service{tasks: tasks, dedup: dedup, log: log}
}

func parseCallback(raw []byte) (*model.CallbackTask, error) {
	var env stkEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, makeErr(ErrMalformed)
	}
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, makeErr(ErrMalformed)
	}

	t := &model.CallbackTask{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	if cb.ResultCode != 0 {
		return t, nil
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			if s, ok := item.Value.(string); ok {
				t.MpesaRef = s
			}
		case "Amount":
			if f, ok := item.Value.(float64); ok {
				t.AmountCents = int64(math.Round(f * 100))
			}
		}
	}
	// A success without a receipt cannot be reconciled.
	if t.MpesaRef == "" {
		return nil, makeErr(ErrMalformed)
	}
	return t, nil
}

func (s *service) HandleCallback(ctx context.Context, raw []byte) error {
	t, err := parseCallback(raw)
	if err != nil {
		s.log.Error("malformed gateway callback", "err", err, "payload_bytes", len(raw))
		return err
	}

	// Fast duplicate-delivery short-circuit. Redis being down only costs the
	// shortcut: the settle path stays idempotent on the payment row.
	var dedupKey string
	if s.dedup != nil {
		key := redisx.CallbackDedupKey(t.CheckoutRequestID, t.ResultCode)
		fresh, derr := s.dedup.SetNX(ctx, key, redisx.TTLDedup)
		if derr == nil {
			if !fresh {
				s.log.Info("duplicate callback delivery skipped",
					"checkout_request_id", t.CheckoutRequestID, "result_code", t.ResultCode)
				return nil
			}
			dedupKey = key
		}
	}

	if err := s.tasks.Enqueue(ctx, t, raw); err != nil {
		// Release the marker: the sender will redeliver after our error
		// response, and that redelivery must not be skipped as a duplicate.
		if dedupKey != "" {
			if derr := s.dedup.Del(ctx, dedupKey); derr != nil {
				s.log.Error("release callback dedup key", "key", dedupKey, "err", derr)
			}
		}
		return err
	}
	s.log.Info("callback enqueued",
		"task_id", t.ID,
		"checkout_request_id", t.CheckoutRequestID,
		"result_code", t.ResultCode)
	return nil
}
