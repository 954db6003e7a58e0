// model/booking.go
package model

import "time"

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingProcessing BookingStatus = "processing"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingCanceled   BookingStatus = "canceled"
)

// AcceptsPayment reports whether a booking in this status may take a payment.
func (s BookingStatus) AcceptsPayment() bool {
	return s == BookingPending || s == BookingProcessing
}

// Booking holds a half-open [CheckIn, CheckOut) claim on a property.
// PricePerNightCents is snapshotted at creation so later property price
// changes never alter an existing booking.
type Booking struct {
	ID                 string        `json:"id"`
	PropertyID         string        `json:"property_id"`
	GuestIDs           []string      `json:"guest_ids"`
	Status             BookingStatus `json:"status"`
	CheckIn            time.Time     `json:"check_in"`
	CheckOut           time.Time     `json:"check_out"`
	PricePerNightCents int64         `json:"price_per_night_cents"`
	TotalPriceCents    int64         `json:"total_price_cents"`
	BalanceDueCents    int64         `json:"balance_due_cents"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Nights is the length of the half-open stay in whole days.
func (b *Booking) Nights() int64 {
	return int64(b.CheckOut.Sub(b.CheckIn) / (24 * time.Hour))
}

// HasGuest reports whether id is one of the booking's guests.
func (b *Booking) HasGuest(id string) bool {
	for _, g := range b.GuestIDs {
		if g == id {
			return true
		}
	}
	return false
}
