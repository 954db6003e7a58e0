package property

type CreatePropertyReq struct {
	Name               string `json:"name" validate:"required"`
	Description        string `json:"description"`
	Location           string `json:"location" validate:"required"`
	Amenities          string `json:"amenities"`
	PricePerNightCents int64  `json:"price_per_night_cents" validate:"required,gte=0"`
}

type UpdatePriceReq struct {
	PricePerNightCents int64 `json:"price_per_night_cents" validate:"gte=0"`
}
