package models

import (
	"hols/src/types"
)

type Property struct {
	ID            uint    `gorm:"primarykey" json:"id"`
	Name          string  `json:"name,omitempty"`
	Location      string  `json:"location,omitempty"`
	Description   *string `json:"description,omitempty"`
	PricePerNight float64 `json:"price_per_night,omitempty"`
	Currency      string  `gorm:"default:'usd'" json:"currency,omitempty"`
	MaxGuests     uint    `json:"max_guests,omitempty"`
	Active        bool    `gorm:"default:true" json:"active"`
	OwnerID       uint    `json:"owner_id,omitempty"`
	// BookingsCount is incremented inside the confirm transaction, never
	// recomputed from rows.
	BookingsCount uint `json:"bookings_count,omitempty"`

	Owner    *User     `gorm:"foreignKey:owner_id" json:"owner,omitempty"`
	Bookings []Booking `gorm:"foreignKey:property_id" json:"bookings,omitempty"`

	types.Timestamps
}
