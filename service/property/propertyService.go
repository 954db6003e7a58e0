package propertysvc

import (
	"context"
	"errors"

	"github.com/Nganga02/nexus/model"
	propertyrepo "github.com/Nganga02/nexus/repository/property"
)

// errors used by controllers

type ErrCode string

const (
	ErrNotFound     ErrCode = "PROPERTY_NOT_FOUND"
	ErrInvalidPrice ErrCode = "INVALID_PRICE"
	ErrNameRequired ErrCode = "NAME_REQUIRED"
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

type Repo interface {
	Create(ctx context.Context, p *model.Property) error
	List(ctx context.Context) ([]model.Property, error)
	Get(ctx context.Context, id string) (*model.Property, error)
	UpdatePrice(ctx context.Context, id string, priceCents int64) error
	Delete(ctx context.Context, id string) error
}

type Service interface {
	Create(ctx context.Context, ownerID, name, description, location, amenities string, priceCents int64) (*model.Property, error)
	List(ctx context.Context) ([]model.Property, error)
	Get(ctx context.Context, id string) (*model.Property, error)
	UpdatePrice(ctx context.Context, id string, priceCents int64) error
	Delete(ctx context.Context, id string) error
}

type service struct {
	r Repo
}

func New(r Repo) Service { return &service{r: r} }

func (s *service) Create(ctx context.Context, ownerID, name, description, location, amenities string, priceCents int64) (*model.Property, error) {
	if name == "" {
		return nil, makeErr(ErrNameRequired)
	}
	if priceCents < 0 {
		return nil, makeErr(ErrInvalidPrice)
	}
	p := &model.Property{
		OwnerID:            ownerID,
		Name:               name,
		Description:        description,
		Location:           location,
		Amenities:          amenities,
		PricePerNightCents: priceCents,
	}
	if err := s.r.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) List(ctx context.Context) ([]model.Property, error) { return s.r.List(ctx) }

func (s *service) Get(ctx context.Context, id string) (*model.Property, error) {
	p, err := s.r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, propertyrepo.ErrNotFound) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (s *service) UpdatePrice(ctx context.Context, id string, priceCents int64) error {
	if priceCents < 0 {
		return makeErr(ErrInvalidPrice)
	}
	err := s.r.UpdatePrice(ctx, id, priceCents)
	if errors.Is(err, propertyrepo.ErrNotFound) {
		return makeErr(ErrNotFound)
	}
	return err
}

func (s *service) Delete(ctx context.Context, id string) error {
	err := s.r.Delete(ctx, id)
	if errors.Is(err, propertyrepo.ErrNotFound) {
		return makeErr(ErrNotFound)
	}
	return err
}
