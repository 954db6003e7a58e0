// model/property.go
package model

import "time"

type Property struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"owner_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Location           string    `json:"location"`
	Amenities          string    `json:"amenities"`
	PricePerNightCents int64     `json:"price_per_night_cents"`
	CreatedAt          time.Time `json:"created_at"`
}
