package propertysvc_test

import (
	"context"
	"testing"

	"github.com/Nganga02/nexus/model"
	propertyrepo "github.com/Nganga02/nexus/repository/property"
	propertysvc "github.com/Nganga02/nexus/service/property"

	"github.com/stretchr/testify/require"
)

type repoMock struct {
	createFn      func(ctx context.Context, p *model.Property) error
	listFn        func(ctx context.Context) ([]model.Property, error)
	getFn         func(ctx context.Context, id string) (*model.Property, error)
	updatePriceFn func(ctx context.Context, id string, priceCents int64) error
	deleteFn      func(ctx context.Context, id string) error
}

func (m *repoMock) Create(ctx context.Context, p *model.Property) error { return m.createFn(ctx, p) }
func (m *repoMock) List(ctx context.Context) ([]model.Property, error)  { return m.listFn(ctx) }
func (m *repoMock) Get(ctx context.Context, id string) (*model.Property, error) {
	return m.getFn(ctx, id)
}
func (m *repoMock) UpdatePrice(ctx context.Context, id string, priceCents int64) error {
	return m.updatePriceFn(ctx, id, priceCents)
}
func (m *repoMock) Delete(ctx context.Context, id string) error { return m.deleteFn(ctx, id) }

var _ propertysvc.Repo = (*repoMock)(nil)

func TestCreate_Validation(t *testing.T) {
	s := propertysvc.New(&repoMock{})

	_, err := s.Create(context.Background(), "o1", "", "", "Nairobi", "", 10_000)
	require.Equal(t, propertysvc.ErrNameRequired, propertysvc.Code(err))

	_, err = s.Create(context.Background(), "o1", "Loft", "", "Nairobi", "", -1)
	require.Equal(t, propertysvc.ErrInvalidPrice, propertysvc.Code(err))
}

func TestCreate_Success(t *testing.T) {
	m := &repoMock{
		createFn: func(ctx context.Context, p *model.Property) error {
			p.ID = "p1"
			return nil
		},
	}
	s := propertysvc.New(m)

	p, err := s.Create(context.Background(), "o1", "Loft", "Sunny loft", "Nairobi", "wifi,pool", 10_000)
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
	require.Equal(t, int64(10_000), p.PricePerNightCents)
}

func TestGet_NotFound(t *testing.T) {
	m := &repoMock{
		getFn: func(ctx context.Context, id string) (*model.Property, error) {
			return nil, propertyrepo.ErrNotFound
		},
	}
	s := propertysvc.New(m)

	_, err := s.Get(context.Background(), "missing")
	require.Equal(t, propertysvc.ErrNotFound, propertysvc.Code(err))
}

func TestUpdatePrice(t *testing.T) {
	var got int64
	m := &repoMock{
		updatePriceFn: func(ctx context.Context, id string, priceCents int64) error {
			got = priceCents
			return nil
		},
	}
	s := propertysvc.New(m)

	require.NoError(t, s.UpdatePrice(context.Background(), "p1", 12_500))
	require.Equal(t, int64(12_500), got)

	err := s.UpdatePrice(context.Background(), "p1", -5)
	require.Equal(t, propertysvc.ErrInvalidPrice, propertysvc.Code(err))
}
