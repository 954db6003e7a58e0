package booking

type CreateBookingReq struct {
	PropertyID string   `json:"property_id" validate:"required,uuid"`
	GuestIDs   []string `json:"guest_ids" validate:"required,min=1,dive,uuid"`
	CheckIn    string   `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut   string   `json:"check_out" validate:"required,datetime=2006-01-02"`
}

// UpdateBookingReq changes the stay range and/or the guest set. Both dates
// must be given together.
type UpdateBookingReq struct {
	CheckIn  *string  `json:"check_in" validate:"omitempty,datetime=2006-01-02"`
	CheckOut *string  `json:"check_out" validate:"omitempty,datetime=2006-01-02"`
	GuestIDs []string `json:"guest_ids" validate:"omitempty,min=1,dive,uuid"`
}
