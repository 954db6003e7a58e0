package bookingsvc_test

import (
	"context"
	"testing"
	"time"

	"github.com/Nganga02/nexus/model"
	bookingsvc "github.com/Nganga02/nexus/service/booking"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// fakeTx satisfies pgx.Tx through the embedded interface; anything the
// service should not touch in a unit test panics on a nil method call.
type fakeTx struct {
	pgx.Tx
	commits   int
	rollbacks int
}

func (t *fakeTx) Commit(ctx context.Context) error   { t.commits++; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { t.rollbacks++; return nil }

type dbMock struct{ tx *fakeTx }

func (d *dbMock) Begin(ctx context.Context) (pgx.Tx, error) { return d.tx, nil }

type repoMock struct {
	lockFn          func(ctx context.Context, tx pgx.Tx, propertyID string) error
	priceFn         func(ctx context.Context, tx pgx.Tx, propertyID string) (int64, error)
	hasOverlapFn    func(ctx context.Context, tx pgx.Tx, propertyID string, checkIn, checkOut time.Time, excludeID *string) (bool, error)
	insertFn        func(ctx context.Context, tx pgx.Tx, b *model.Booking) error
	getFn           func(ctx context.Context, id string) (*model.Booking, error)
	getForUpdateFn  func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error)
	updateRangeFn   func(ctx context.Context, tx pgx.Tx, b *model.Booking) error
	applyBalanceFn  func(ctx context.Context, tx pgx.Tx, id string, balanceCents int64, status model.BookingStatus) error
	setCanceledFn   func(ctx context.Context, tx pgx.Tx, id string) error
	replaceGuestsFn func(ctx context.Context, tx pgx.Tx, bookingID string, guestIDs []string) error
	listByGuestFn   func(ctx context.Context, guestID string) ([]model.Booking, error)
}

func (m *repoMock) LockProperty(ctx context.Context, tx pgx.Tx, propertyID string) error {
	if m.lockFn == nil {
		return nil
	}
	return m.lockFn(ctx, tx, propertyID)
}
func (m *repoMock) PropertyPriceCents(ctx context.Context, tx pgx.Tx, propertyID string) (int64, error) {
	return m.priceFn(ctx, tx, propertyID)
}
func (m *repoMock) HasOverlap(ctx context.Context, tx pgx.Tx, propertyID string, checkIn, checkOut time.Time, excludeID *string) (bool, error) {
	if m.hasOverlapFn == nil {
		return false, nil
	}
	return m.hasOverlapFn(ctx, tx, propertyID, checkIn, checkOut, excludeID)
}
func (m *repoMock) Insert(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	if m.insertFn == nil {
		return nil
	}
	return m.insertFn(ctx, tx, b)
}
func (m *repoMock) Get(ctx context.Context, id string) (*model.Booking, error) {
	return m.getFn(ctx, id)
}
func (m *repoMock) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
	return m.getForUpdateFn(ctx, tx, id)
}
func (m *repoMock) UpdateRange(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	if m.updateRangeFn == nil {
		return nil
	}
	return m.updateRangeFn(ctx, tx, b)
}
func (m *repoMock) ApplyBalance(ctx context.Context, tx pgx.Tx, id string, balanceCents int64, status model.BookingStatus) error {
	return m.applyBalanceFn(ctx, tx, id, balanceCents, status)
}
func (m *repoMock) SetCanceled(ctx context.Context, tx pgx.Tx, id string) error {
	if m.setCanceledFn == nil {
		return nil
	}
	return m.setCanceledFn(ctx, tx, id)
}
func (m *repoMock) ReplaceGuests(ctx context.Context, tx pgx.Tx, bookingID string, guestIDs []string) error {
	if m.replaceGuestsFn == nil {
		return nil
	}
	return m.replaceGuestsFn(ctx, tx, bookingID, guestIDs)
}
func (m *repoMock) ListByGuest(ctx context.Context, guestID string) ([]model.Booking, error) {
	return m.listByGuestFn(ctx, guestID)
}

type usersMock struct {
	allExistFn func(ctx context.Context, tx pgx.Tx, ids []string) (bool, error)
}

func (m *usersMock) AllExist(ctx context.Context, tx pgx.Tx, ids []string) (bool, error) {
	if m.allExistFn == nil {
		return true, nil
	}
	return m.allExistFn(ctx, tx, ids)
}

var _ bookingsvc.Repo = (*repoMock)(nil)
var _ bookingsvc.Users = (*usersMock)(nil)

func futureDate(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, days).Truncate(24 * time.Hour)
}

func newSvc(r *repoMock, u *usersMock) (bookingsvc.Service, *fakeTx) {
	tx := &fakeTx{}
	return bookingsvc.New(&dbMock{tx: tx}, r, u), tx
}

// --- create ---

func TestCreate_DateValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newSvc(&repoMock{}, &usersMock{})
	guests := []string{"g1"}

	_, err := s.Create(ctx, "p1", guests, futureDate(5), futureDate(5))
	require.Equal(t, bookingsvc.ErrDateRangeInvalid, bookingsvc.Code(err))

	_, err = s.Create(ctx, "p1", guests, futureDate(5), futureDate(3))
	require.Equal(t, bookingsvc.ErrDateRangeInvalid, bookingsvc.Code(err))

	_, err = s.Create(ctx, "p1", guests, futureDate(-1), futureDate(3))
	require.Equal(t, bookingsvc.ErrCheckInPast, bookingsvc.Code(err))

	_, err = s.Create(ctx, "p1", nil, futureDate(1), futureDate(3))
	require.Equal(t, bookingsvc.ErrGuestsRequired, bookingsvc.Code(err))
}

func TestCreate_Success(t *testing.T) {
	ctx := context.Background()
	var inserted *model.Booking
	r := &repoMock{
		priceFn: func(ctx context.Context, tx pgx.Tx, propertyID string) (int64, error) {
			return 10_000, nil
		},
		insertFn: func(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
			inserted = b
			return nil
		},
	}
	s, tx := newSvc(r, &usersMock{})

	b, err := s.Create(ctx, "p1", []string{"g1", "g2"}, futureDate(10), futureDate(13))
	require.NoError(t, err)
	require.NotNil(t, inserted)
	require.Equal(t, model.BookingPending, b.Status)
	require.Equal(t, int64(30_000), b.TotalPriceCents)
	require.Equal(t, int64(30_000), b.BalanceDueCents)
	require.Equal(t, 1, tx.commits)
	require.Equal(t, 0, tx.rollbacks)
}

func TestCreate_Unavailable(t *testing.T) {
	ctx := context.Background()
	r := &repoMock{
		priceFn: func(ctx context.Context, tx pgx.Tx, propertyID string) (int64, error) {
			return 10_000, nil
		},
		hasOverlapFn: func(ctx context.Context, tx pgx.Tx, propertyID string, ci, co time.Time, ex *string) (bool, error) {
			require.Nil(t, ex)
			return true, nil
		},
	}
	s, tx := newSvc(r, &usersMock{})

	_, err := s.Create(ctx, "p1", []string{"g1"}, futureDate(1), futureDate(4))
	require.Equal(t, bookingsvc.ErrPropertyUnavailable, bookingsvc.Code(err))
	require.Equal(t, 0, tx.commits)
	require.Equal(t, 1, tx.rollbacks)
}

func TestCreate_RacingCommitMapsExclusionViolation(t *testing.T) {
	ctx := context.Background()
	// Another instance committed an overlapping booking between our overlap
	// check and the insert; the gist constraint is the backstop.
	r := &repoMock{
		priceFn: func(ctx context.Context, tx pgx.Tx, propertyID string) (int64, error) {
			return 10_000, nil
		},
		insertFn: func(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
			return &pgconn.PgError{Code: pgerrcode.ExclusionViolation}
		},
	}
	s, tx := newSvc(r, &usersMock{})

	_, err := s.Create(ctx, "p1", []string{"g1"}, futureDate(1), futureDate(4))
	require.Equal(t, bookingsvc.ErrPropertyUnavailable, bookingsvc.Code(err))
	require.Equal(t, 0, tx.commits)
	require.Equal(t, 1, tx.rollbacks)
}

func TestCreate_PropertyNotFound(t *testing.T) {
	ctx := context.Background()
	r := &repoMock{
		priceFn: func(ctx context.Context, tx pgx.Tx, propertyID string) (int64, error) {
			return 0, pgx.ErrNoRows
		},
	}
	s, _ := newSvc(r, &usersMock{})

	_, err := s.Create(ctx, "missing", []string{"g1"}, futureDate(1), futureDate(2))
	require.Equal(t, bookingsvc.ErrPropertyNotFound, bookingsvc.Code(err))
}

func TestCreate_GuestNotFound(t *testing.T) {
	ctx := context.Background()
	r := &repoMock{
		priceFn: func(ctx context.Context, tx pgx.Tx, propertyID string) (int64, error) {
			return 10_000, nil
		},
	}
	u := &usersMock{
		allExistFn: func(ctx context.Context, tx pgx.Tx, ids []string) (bool, error) {
			return false, nil
		},
	}
	s, _ := newSvc(r, u)

	_, err := s.Create(ctx, "p1", []string{"ghost"}, futureDate(1), futureDate(2))
	require.Equal(t, bookingsvc.ErrGuestNotFound, bookingsvc.Code(err))
}

// --- update ---

func bookingFixture(status model.BookingStatus, nights int, priceCents, balanceCents int64) *model.Booking {
	ci := futureDate(10)
	return &model.Booking{
		ID:                 "b1",
		PropertyID:         "p1",
		GuestIDs:           []string{"g1"},
		Status:             status,
		CheckIn:            ci,
		CheckOut:           ci.AddDate(0, 0, nights),
		PricePerNightCents: priceCents,
		TotalPriceCents:    int64(nights) * priceCents,
		BalanceDueCents:    balanceCents,
	}
}

func TestUpdate_CanceledNotUpdatable(t *testing.T) {
	ctx := context.Background()
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return bookingFixture(model.BookingCanceled, 3, 10_000, 30_000), nil
		},
	}
	s, _ := newSvc(r, &usersMock{})

	_, err := s.Update(ctx, "b1", &bookingsvc.DateRange{CheckIn: futureDate(1), CheckOut: futureDate(2)}, nil)
	require.Equal(t, bookingsvc.ErrBookingNotUpdatable, bookingsvc.Code(err))
}

func TestUpdate_ShrinkRangePreservesPaid(t *testing.T) {
	ctx := context.Background()
	// 5 nights at 10000, 20000 already settled.
	b := bookingFixture(model.BookingProcessing, 5, 10_000, 30_000)
	var saved *model.Booking
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return b, nil
		},
		updateRangeFn: func(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
			saved = b
			return nil
		},
	}
	s, tx := newSvc(r, &usersMock{})

	// Down to 2 nights: new total 20000, all of it already paid.
	got, err := s.Update(ctx, "b1", &bookingsvc.DateRange{CheckIn: futureDate(10), CheckOut: futureDate(12)}, nil)
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Equal(t, int64(20_000), got.TotalPriceCents)
	require.Equal(t, int64(0), got.BalanceDueCents)
	require.Equal(t, model.BookingConfirmed, got.Status)
	require.Equal(t, 1, tx.commits)
}

func TestUpdate_GrowRangeReopensBalance(t *testing.T) {
	ctx := context.Background()
	// 2 nights at 10000, fully paid and confirmed.
	b := bookingFixture(model.BookingConfirmed, 2, 10_000, 0)
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return b, nil
		},
	}
	s, _ := newSvc(r, &usersMock{})

	// Up to 4 nights: 20000 paid against a 40000 total.
	got, err := s.Update(ctx, "b1", &bookingsvc.DateRange{CheckIn: futureDate(10), CheckOut: futureDate(14)}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(40_000), got.TotalPriceCents)
	require.Equal(t, int64(20_000), got.BalanceDueCents)
	require.Equal(t, model.BookingProcessing, got.Status)
}

func TestUpdate_OverlapExcludesOwnRow(t *testing.T) {
	ctx := context.Background()
	b := bookingFixture(model.BookingPending, 3, 10_000, 30_000)
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return b, nil
		},
		hasOverlapFn: func(ctx context.Context, tx pgx.Tx, propertyID string, ci, co time.Time, ex *string) (bool, error) {
			require.NotNil(t, ex)
			require.Equal(t, "b1", *ex)
			return true, nil
		},
	}
	s, _ := newSvc(r, &usersMock{})

	_, err := s.Update(ctx, "b1", &bookingsvc.DateRange{CheckIn: futureDate(20), CheckOut: futureDate(22)}, nil)
	require.Equal(t, bookingsvc.ErrPropertyUnavailable, bookingsvc.Code(err))
}

// --- cancel ---

func TestCancel_NotGuest(t *testing.T) {
	ctx := context.Background()
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return bookingFixture(model.BookingPending, 3, 10_000, 30_000), nil
		},
	}
	s, _ := newSvc(r, &usersMock{})

	_, err := s.Cancel(ctx, "b1", "stranger")
	require.Equal(t, bookingsvc.ErrNotGuest, bookingsvc.Code(err))
}

func TestCancel_CheckInTodayRejected(t *testing.T) {
	ctx := context.Background()
	b := bookingFixture(model.BookingPending, 3, 10_000, 30_000)
	b.CheckIn = futureDate(0)
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return b, nil
		},
	}
	s, _ := newSvc(r, &usersMock{})

	_, err := s.Cancel(ctx, "b1", "g1")
	require.Equal(t, bookingsvc.ErrCancellationNotAllowed, bookingsvc.Code(err))
}

func TestCancel_ConfirmedRejected(t *testing.T) {
	ctx := context.Background()
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return bookingFixture(model.BookingConfirmed, 3, 10_000, 0), nil
		},
	}
	s, _ := newSvc(r, &usersMock{})

	_, err := s.Cancel(ctx, "b1", "g1")
	require.Equal(t, bookingsvc.ErrCancellationNotAllowed, bookingsvc.Code(err))
}

func TestCancel_Success(t *testing.T) {
	ctx := context.Background()
	canceled := false
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return bookingFixture(model.BookingProcessing, 3, 10_000, 10_000), nil
		},
		setCanceledFn: func(ctx context.Context, tx pgx.Tx, id string) error {
			canceled = true
			return nil
		},
	}
	s, tx := newSvc(r, &usersMock{})

	b, err := s.Cancel(ctx, "b1", "g1")
	require.NoError(t, err)
	require.True(t, canceled)
	require.Equal(t, model.BookingCanceled, b.Status)
	require.Equal(t, 1, tx.commits)
}

// --- availability ---

func TestIsAvailable(t *testing.T) {
	ctx := context.Background()
	overlap := false
	r := &repoMock{
		hasOverlapFn: func(ctx context.Context, tx pgx.Tx, propertyID string, ci, co time.Time, ex *string) (bool, error) {
			return overlap, nil
		},
	}
	s, _ := newSvc(r, &usersMock{})

	ok, err := s.IsAvailable(ctx, "p1", futureDate(1), futureDate(3))
	require.NoError(t, err)
	require.True(t, ok)

	overlap = true
	ok, err = s.IsAvailable(ctx, "p1", futureDate(1), futureDate(3))
	require.NoError(t, err)
	require.False(t, ok)
}

// --- settlement ---

func TestApplySettlement_PartialThenFull(t *testing.T) {
	ctx := context.Background()
	b := bookingFixture(model.BookingPending, 2, 10_000, 20_000)
	var gotBalance int64
	var gotStatus model.BookingStatus
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return b, nil
		},
		applyBalanceFn: func(ctx context.Context, tx pgx.Tx, id string, balanceCents int64, status model.BookingStatus) error {
			gotBalance, gotStatus = balanceCents, status
			return nil
		},
	}
	s, _ := newSvc(r, &usersMock{})

	st, err := s.ApplySettlement(ctx, &fakeTx{}, "b1", 12_000)
	require.NoError(t, err)
	require.Equal(t, model.BookingProcessing, st)
	require.Equal(t, int64(8_000), gotBalance)

	b.BalanceDueCents = 8_000
	st, err = s.ApplySettlement(ctx, &fakeTx{}, "b1", 8_000)
	require.NoError(t, err)
	require.Equal(t, model.BookingConfirmed, st)
	require.Equal(t, int64(0), gotBalance)
	require.Equal(t, model.BookingConfirmed, gotStatus)
}

func TestApplySettlement_OverpayClampsToZero(t *testing.T) {
	ctx := context.Background()
	b := bookingFixture(model.BookingProcessing, 2, 10_000, 5_000)
	var gotBalance int64
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return b, nil
		},
		applyBalanceFn: func(ctx context.Context, tx pgx.Tx, id string, balanceCents int64, status model.BookingStatus) error {
			gotBalance = balanceCents
			return nil
		},
	}
	s, _ := newSvc(r, &usersMock{})

	st, err := s.ApplySettlement(ctx, &fakeTx{}, "b1", 9_000)
	require.NoError(t, err)
	require.Equal(t, model.BookingConfirmed, st)
	require.Equal(t, int64(0), gotBalance)
}

func TestApplySettlement_CanceledBookingUntouched(t *testing.T) {
	ctx := context.Background()
	r := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
			return bookingFixture(model.BookingCanceled, 2, 10_000, 20_000), nil
		},
		applyBalanceFn: func(ctx context.Context, tx pgx.Tx, id string, balanceCents int64, status model.BookingStatus) error {
			t.Fatal("balance must not change on a canceled booking")
			return nil
		},
	}
	s, _ := newSvc(r, &usersMock{})

	st, err := s.ApplySettlement(ctx, &fakeTx{}, "b1", 20_000)
	require.NoError(t, err)
	require.Equal(t, model.BookingCanceled, st)
}
