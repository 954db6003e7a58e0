package paymentsvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nganga02/nexus/model"
	bookingrepo "github.com/Nganga02/nexus/repository/booking"
	mpesarepo "github.com/Nganga02/nexus/repository/mpesa"
	paymentrepo "github.com/Nganga02/nexus/repository/payment"
	userrepo "github.com/Nganga02/nexus/repository/user"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// errors used by controllers and the callback worker

type ErrCode string

const (
	ErrBookingNotFound      ErrCode = "BOOKING_NOT_FOUND"
	ErrBookingNotPayable    ErrCode = "BOOKING_NOT_PAYABLE"
	ErrPayerNotGuest        ErrCode = "PAYER_NOT_GUEST"
	ErrInvalidAmount        ErrCode = "INVALID_AMOUNT"
	ErrAmountExceedsBalance ErrCode = "AMOUNT_EXCEEDS_BALANCE"
	ErrTokenAlreadyAssigned ErrCode = "TOKEN_ALREADY_ASSIGNED"
	ErrDuplicateToken       ErrCode = "DUPLICATE_TOKEN"
	ErrUnknownToken         ErrCode = "UNKNOWN_CORRELATION_TOKEN"
	ErrPushFailed           ErrCode = "PAYMENT_INITIATION_FAILED"
	ErrPaymentNotFound      ErrCode = "PAYMENT_NOT_FOUND"
)

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

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repo interface {
	Insert(ctx context.Context, tx pgx.Tx, p *model.Payment) error
	Get(ctx context.Context, id string) (*model.Payment, error)
	AttachCheckoutRequestID(ctx context.Context, paymentID, checkoutRequestID string) error
	GetByCheckoutRequestIDForUpdate(ctx context.Context, tx pgx.Tx, checkoutRequestID string) (*model.Payment, error)
	SetStatus(ctx context.Context, tx pgx.Tx, id string, status model.PaymentStatus, mpesaRef string) error
	MarkFailed(ctx context.Context, id string) error
}

// BookingReader reads the booking under its row lock so the amount check
// cannot race a concurrent payment.
type BookingReader interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error)
}

// Settler is the booking lifecycle manager's settlement contract.
type Settler interface {
	ApplySettlement(ctx context.Context, tx pgx.Tx, bookingID string, amountCents int64) (model.BookingStatus, error)
}

type Users interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// Created is what a successful payment initiation returns to the caller.
type Created struct {
	Payment         *model.Payment
	CustomerMessage string
}

// SettlementResult reports what Settle did. AlreadySettled marks the
// idempotence short-circuit: the payment was terminal and nothing mutated.
type SettlementResult struct {
	AlreadySettled bool
	PaymentID      string
	BookingID      string
	PayerID        string
	AmountCents    int64
	PaymentStatus  model.PaymentStatus
	BookingStatus  model.BookingStatus
}

type Service interface {
	// Create validates against the booking under its row lock, persists a
	// processing payment, then pushes the payment request to the gateway and
	// binds the returned CheckoutRequestID.
	Create(ctx context.Context, bookingID, payerID string, amountCents int64, method string) (*Created, error)

	Get(ctx context.Context, id string) (*model.Payment, error)

	// Settle is the idempotent reconciliation entry point, invoked by the
	// callback worker. Settling an already-terminal payment is a no-op.
	Settle(ctx context.Context, checkoutRequestID string, success bool, mpesaRef string, settledCents int64) (*SettlementResult, error)
}

// ----- Service implementation -----

type service struct {
	db       DB
	p        Repo
	bookings BookingReader
	ledger   Settler
	gateway  mpesarepo.Repo
	users    Users
}

func New(db DB, p Repo, bookings BookingReader, ledger Settler, gateway mpesarepo.Repo, users Users) Service {
	return &service{db: db, p: p, bookings: bookings, ledger: ledger, gateway: gateway, users: users}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (s *service) Create(ctx context.Context, bookingID, payerID string, amountCents int64, method string) (*Created, error) {
	if amountCents <= 0 {
		return nil, makeErr(ErrInvalidAmount)
	}
	if method == "" {
		method = "mpesa"
	}

	payer, err := s.users.Get(ctx, payerID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, makeErr(ErrPayerNotGuest)
		}
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, bookingrepo.ErrNotFound) {
			err = makeErr(ErrBookingNotFound)
		}
		return nil, err
	}
	if !b.Status.AcceptsPayment() {
		err = makeErr(ErrBookingNotPayable)
		return nil, err
	}
	if !b.HasGuest(payerID) {
		err = makeErr(ErrPayerNotGuest)
		return nil, err
	}
	// Balance check happens under the booking row lock taken above, so two
	// concurrent payments cannot jointly overpay against a stale balance.
	if amountCents > b.BalanceDueCents {
		err = makeErr(ErrAmountExceedsBalance)
		return nil, err
	}

	p := &model.Payment{
		ID:            uuid.NewString(),
		BookingID:     bookingID,
		PayerID:       payerID,
		AmountCents:   amountCents,
		Status:        model.PaymentProcessing,
		PaymentMethod: method,
	}
	if err = s.p.Insert(ctx, tx, p); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	// The payment row is durable before the outbound push, so the callback
	// can never reference a payment we might lose.
	stk, err := s.gateway.InitiateStkPush(ctx, mpesarepo.StkPushReq{
		PhoneNumber:      payer.PhoneNumber,
		AmountCents:      amountCents,
		AccountReference: "nexus",
		Description:      fmt.Sprintf("booking payment %s", bookingID),
	})
	if err != nil {
		// No callback will ever arrive for a rejected push.
		_ = s.p.MarkFailed(ctx, p.ID)
		return nil, makeErr(ErrPushFailed)
	}

	if err := s.attachToken(ctx, p.ID, stk.CheckoutRequestID); err != nil {
		return nil, err
	}
	p.CheckoutRequestID = &stk.CheckoutRequestID

	return &Created{Payment: p, CustomerMessage: stk.CustomerMessage}, nil
}

func (s *service) attachToken(ctx context.Context, paymentID, token string) error {
	err := s.p.AttachCheckoutRequestID(ctx, paymentID, token)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, paymentrepo.ErrAlreadyAssigned):
		return makeErr(ErrTokenAlreadyAssigned)
	case errors.Is(err, paymentrepo.ErrNotFound):
		return makeErr(ErrPaymentNotFound)
	case isUniqueViolation(err):
		return makeErr(ErrDuplicateToken)
	default:
		return err
	}
}

func (s *service) Get(ctx context.Context, id string) (*model.Payment, error) {
	p, err := s.p.Get(ctx, id)
	if err != nil {
		if errors.Is(err, paymentrepo.ErrNotFound) {
			return nil, makeErr(ErrPaymentNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (s *service) Settle(ctx context.Context, checkoutRequestID string, success bool, mpesaRef string, settledCents int64) (*SettlementResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// The payment row lock serializes settlement attempts per token.
	p, err := s.p.GetByCheckoutRequestIDForUpdate(ctx, tx, checkoutRequestID)
	if err != nil {
		if errors.Is(err, paymentrepo.ErrNotFound) {
			err = makeErr(ErrUnknownToken)
		}
		return nil, err
	}

	res := &SettlementResult{
		PaymentID:   p.ID,
		BookingID:   p.BookingID,
		PayerID:     p.PayerID,
		AmountCents: p.AmountCents,
	}

	if p.Status.Terminal() {
		// Duplicate or replayed callback: nothing to do, nothing mutated.
		_ = tx.Rollback(ctx)
		res.AlreadySettled = true
		res.PaymentStatus = p.Status
		return res, nil
	}

	if success {
		if err = s.p.SetStatus(ctx, tx, p.ID, model.PaymentSuccessful, mpesaRef); err != nil {
			return nil, err
		}
		// The booking's amount comes from the payment row, validated at
		// creation; the callback's settled amount is advisory.
		bst, serr := s.ledger.ApplySettlement(ctx, tx, p.BookingID, p.AmountCents)
		if serr != nil {
			err = serr
			return nil, err
		}
		res.PaymentStatus = model.PaymentSuccessful
		res.BookingStatus = bst
	} else {
		if err = s.p.SetStatus(ctx, tx, p.ID, model.PaymentFailed, ""); err != nil {
			return nil, err
		}
		res.PaymentStatus = model.PaymentFailed
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}
