package bookingsvc

import (
	"context"
	"errors"
	"time"

	"github.com/Nganga02/nexus/model"
	bookingrepo "github.com/Nganga02/nexus/repository/booking"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// errors used by controllers

type ErrCode string

const (
	ErrDateRangeInvalid       ErrCode = "DATE_RANGE_INVALID"
	ErrCheckInPast            ErrCode = "CHECK_IN_PAST"
	ErrPropertyUnavailable    ErrCode = "PROPERTY_UNAVAILABLE"
	ErrPropertyNotFound       ErrCode = "PROPERTY_NOT_FOUND"
	ErrBookingNotFound        ErrCode = "BOOKING_NOT_FOUND"
	ErrBookingNotUpdatable    ErrCode = "BOOKING_NOT_UPDATABLE"
	ErrGuestsRequired         ErrCode = "GUESTS_REQUIRED"
	ErrGuestNotFound          ErrCode = "GUEST_NOT_FOUND"
	ErrNotGuest               ErrCode = "NOT_GUEST"
	ErrCancellationNotAllowed ErrCode = "CANCELLATION_NOT_ALLOWED"
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

// DateRange is a half-open [CheckIn, CheckOut) stay.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repo interface {
	LockProperty(ctx context.Context, tx pgx.Tx, propertyID string) error
	PropertyPriceCents(ctx context.Context, tx pgx.Tx, propertyID string) (int64, error)
	HasOverlap(ctx context.Context, tx pgx.Tx, propertyID string, checkIn, checkOut time.Time, excludeID *string) (bool, error)
	Insert(ctx context.Context, tx pgx.Tx, b *model.Booking) error
	Get(ctx context.Context, id string) (*model.Booking, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error)
	UpdateRange(ctx context.Context, tx pgx.Tx, b *model.Booking) error
	ApplyBalance(ctx context.Context, tx pgx.Tx, id string, balanceCents int64, status model.BookingStatus) error
	SetCanceled(ctx context.Context, tx pgx.Tx, id string) error
	ReplaceGuests(ctx context.Context, tx pgx.Tx, bookingID string, guestIDs []string) error
	ListByGuest(ctx context.Context, guestID string) ([]model.Booking, error)
}

type Users interface {
	AllExist(ctx context.Context, tx pgx.Tx, ids []string) (bool, error)
}

type Service interface {
	// Create validates dates and guests, then runs the availability check and
	// the insert as one serialized unit per property. Under concurrent
	// requests for overlapping ranges at most one succeeds.
	Create(ctx context.Context, propertyID string, guestIDs []string, checkIn, checkOut time.Time) (*model.Booking, error)

	// Update re-validates dates and availability excluding the booking's own
	// row. A changed range recomputes the total and preserves the amount
	// already paid: newBalance = newTotal - paidSoFar.
	Update(ctx context.Context, bookingID string, newRange *DateRange, newGuests []string) (*model.Booking, error)

	// Cancel releases the date range. Allowed only from pending/processing
	// while check-in is still in the future, and only by a guest on the
	// booking.
	Cancel(ctx context.Context, bookingID, actingGuestID string) (*model.Booking, error)

	// IsAvailable answers whether the property has no live booking
	// overlapping [checkIn, checkOut). Pure read.
	IsAvailable(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (bool, error)

	// ApplySettlement decrements the balance inside the caller's settlement
	// transaction. The only path by which balance and payment-driven status
	// change after creation; invoked solely by the payment ledger.
	ApplySettlement(ctx context.Context, tx pgx.Tx, bookingID string, amountCents int64) (model.BookingStatus, error)

	Get(ctx context.Context, id string) (*model.Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]model.Booking, error)
}

// ----- Service implementation -----

type service struct {
	db    DB
	r     Repo
	users Users
}

func New(db DB, r Repo, users Users) Service {
	return &service{db: db, r: r, users: users}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func today() time.Time { return dateOnly(time.Now()) }

func nightsBetween(checkIn, checkOut time.Time) int64 {
	return int64(checkOut.Sub(checkIn) / (24 * time.Hour))
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation
}

func (s *service) Create(ctx context.Context, propertyID string, guestIDs []string, checkIn, checkOut time.Time) (*model.Booking, error) {
	ci, co := dateOnly(checkIn), dateOnly(checkOut)
	if !co.After(ci) {
		return nil, makeErr(ErrDateRangeInvalid)
	}
	if ci.Before(today()) {
		return nil, makeErr(ErrCheckInPast)
	}
	if len(guestIDs) == 0 {
		return nil, makeErr(ErrGuestsRequired)
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

	// Serialize check+insert per property for the rest of the transaction.
	if err = s.r.LockProperty(ctx, tx, propertyID); err != nil {
		return nil, err
	}

	priceCents, err := s.r.PropertyPriceCents(ctx, tx, propertyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = makeErr(ErrPropertyNotFound)
		}
		return nil, err
	}

	ok, err := s.users.AllExist(ctx, tx, guestIDs)
	if err != nil {
		return nil, err
	}
	if !ok {
		err = makeErr(ErrGuestNotFound)
		return nil, err
	}

	overlap, err := s.r.HasOverlap(ctx, tx, propertyID, ci, co, nil)
	if err != nil {
		return nil, err
	}
	if overlap {
		err = makeErr(ErrPropertyUnavailable)
		return nil, err
	}

	nights := nightsBetween(ci, co)
	total := nights * priceCents
	b := &model.Booking{
		ID:                 uuid.NewString(),
		PropertyID:         propertyID,
		GuestIDs:           guestIDs,
		Status:             model.BookingPending,
		CheckIn:            ci,
		CheckOut:           co,
		PricePerNightCents: priceCents,
		TotalPriceCents:    total,
		BalanceDueCents:    total,
		CreatedAt:          time.Now().UTC(),
	}

	if err = s.r.Insert(ctx, tx, b); err != nil {
		// The exclusion constraint backstops a racing commit from another
		// instance that this process's advisory lock cannot see.
		if isExclusionViolation(err) {
			err = makeErr(ErrPropertyUnavailable)
		}
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			err = makeErr(ErrPropertyUnavailable)
		}
		return nil, err
	}
	return b, nil
}

func (s *service) Update(ctx context.Context, bookingID string, newRange *DateRange, newGuests []string) (*model.Booking, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	b, err := s.r.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, bookingrepo.ErrNotFound) {
			err = makeErr(ErrBookingNotFound)
		}
		return nil, err
	}
	if b.Status == model.BookingCanceled {
		err = makeErr(ErrBookingNotUpdatable)
		return nil, err
	}

	if newRange != nil {
		ci, co := dateOnly(newRange.CheckIn), dateOnly(newRange.CheckOut)
		if !co.After(ci) {
			err = makeErr(ErrDateRangeInvalid)
			return nil, err
		}
		if ci.Before(today()) {
			err = makeErr(ErrCheckInPast)
			return nil, err
		}

		if err = s.r.LockProperty(ctx, tx, b.PropertyID); err != nil {
			return nil, err
		}
		overlap, oerr := s.r.HasOverlap(ctx, tx, b.PropertyID, ci, co, &b.ID)
		if oerr != nil {
			err = oerr
			return nil, err
		}
		if overlap {
			err = makeErr(ErrPropertyUnavailable)
			return nil, err
		}

		if !ci.Equal(b.CheckIn) || !co.Equal(b.CheckOut) {
			paid := b.TotalPriceCents - b.BalanceDueCents
			b.CheckIn, b.CheckOut = ci, co
			b.TotalPriceCents = nightsBetween(ci, co) * b.PricePerNightCents
			b.BalanceDueCents = b.TotalPriceCents - paid
			if b.BalanceDueCents <= 0 {
				b.BalanceDueCents = 0
				if paid > 0 {
					b.Status = model.BookingConfirmed
				}
			} else if paid > 0 {
				b.Status = model.BookingProcessing
			}
			if err = s.r.UpdateRange(ctx, tx, b); err != nil {
				if isExclusionViolation(err) {
					err = makeErr(ErrPropertyUnavailable)
				}
				return nil, err
			}
		}
	}

	if newGuests != nil {
		if len(newGuests) == 0 {
			err = makeErr(ErrGuestsRequired)
			return nil, err
		}
		ok, uerr := s.users.AllExist(ctx, tx, newGuests)
		if uerr != nil {
			err = uerr
			return nil, err
		}
		if !ok {
			err = makeErr(ErrGuestNotFound)
			return nil, err
		}
		if err = s.r.ReplaceGuests(ctx, tx, b.ID, newGuests); err != nil {
			return nil, err
		}
		b.GuestIDs = newGuests
	}

	if err = tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			err = makeErr(ErrPropertyUnavailable)
		}
		return nil, err
	}
	return b, nil
}

func (s *service) Cancel(ctx context.Context, bookingID, actingGuestID string) (*model.Booking, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	b, err := s.r.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, bookingrepo.ErrNotFound) {
			err = makeErr(ErrBookingNotFound)
		}
		return nil, err
	}
	if !b.HasGuest(actingGuestID) {
		err = makeErr(ErrNotGuest)
		return nil, err
	}
	// Only pending/processing bookings with a future check-in may cancel;
	// check-in today is already too late.
	if !b.Status.AcceptsPayment() || !b.CheckIn.After(today()) {
		err = makeErr(ErrCancellationNotAllowed)
		return nil, err
	}

	if err = s.r.SetCanceled(ctx, tx, b.ID); err != nil {
		return nil, err
	}
	b.Status = model.BookingCanceled

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) IsAvailable(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	overlap, err := s.r.HasOverlap(ctx, tx, propertyID, dateOnly(checkIn), dateOnly(checkOut), nil)
	if err != nil {
		return false, err
	}
	return !overlap, nil
}

func (s *service) ApplySettlement(ctx context.Context, tx pgx.Tx, bookingID string, amountCents int64) (model.BookingStatus, error) {
	b, err := s.r.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, bookingrepo.ErrNotFound) {
			return "", makeErr(ErrBookingNotFound)
		}
		return "", err
	}
	// A booking canceled between payment creation and the callback keeps its
	// terminal status; the money question (refunds) is outside this service.
	if b.Status == model.BookingCanceled {
		return b.Status, nil
	}

	balance := b.BalanceDueCents - amountCents
	status := model.BookingProcessing
	if balance <= 0 {
		balance = 0
		status = model.BookingConfirmed
	}
	if err := s.r.ApplyBalance(ctx, tx, b.ID, balance, status); err != nil {
		return "", err
	}
	return status, nil
}

func (s *service) Get(ctx context.Context, id string) (*model.Booking, error) {
	b, err := s.r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, bookingrepo.ErrNotFound) {
			return nil, makeErr(ErrBookingNotFound)
		}
		return nil, err
	}
	return b, nil
}

func (s *service) ListByGuest(ctx context.Context, guestID string) ([]model.Booking, error) {
	return s.r.ListByGuest(ctx, guestID)
}
