package models

import (
	"hols/src/types"
)

type User struct {
	ID            uint   `gorm:"primarykey" json:"id"`
	Name          string `json:"name,omitempty"`
	Email         string `gorm:"uniqueIndex" json:"email,omitempty"`
	Role          string `gorm:"default:'guest'" json:"role,omitempty"`
	UID           string `json:"uid,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`

	Bookings   []Booking  `gorm:"foreignKey:user_id" json:"bookings,omitempty"`
	Properties []Property `gorm:"foreignKey:owner_id" json:"properties,omitempty"`

	types.Timestamps
}
