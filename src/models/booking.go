package models

import (
	"hols/src/lib"
	"hols/src/types"
	"log"
	"time"
)

// Booking is the aggregate root of the reconciliation subsystem. Status and
// PaymentStatus are written only by the helpers in src/utils; bookings are
// never deleted, only transitioned.
type Booking struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	PropertyID uint      `json:"property_id,omitempty"`
	UserID     uint      `json:"user_id,omitempty"`
	CheckIn    time.Time `json:"check_in,omitempty"`
	CheckOut   time.Time `json:"check_out,omitempty"`
	GuestCount uint      `json:"guest_count,omitempty"`
	Nights     uint      `json:"nights,omitempty"`

	// Amounts are computed once at creation and never recomputed.
	BaseAmount  float64 `json:"base_amount,omitempty"`
	ServiceFee  float64 `json:"service_fee,omitempty"`
	TotalAmount float64 `json:"total_amount,omitempty"`
	Currency    string  `gorm:"default:'usd'" json:"currency,omitempty"`

	PaymentMethod types.PaymentMethod `json:"payment_method,omitempty"`
	PaymentStatus types.PaymentStatus `gorm:"default:'pending'" json:"payment_status,omitempty"`
	Status        types.BookingStatus `gorm:"default:'pending'" json:"status,omitempty"`

	// PaymentReference is the idempotency token correlating this booking
	// with exactly one payment attempt lineage. Reissued when a gateway
	// attempt is retried; unique for all time.
	PaymentReference string `gorm:"uniqueIndex" json:"payment_reference,omitempty"`
	// GatewayReference is the provider-side id, set only for gateway
	// bookings and cleared when a stale attempt is abandoned.
	GatewayReference *string `gorm:"index" json:"gateway_reference,omitempty"`

	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	Property     *Property           `gorm:"foreignKey:property_id" json:"property,omitempty"`
	User         *User               `gorm:"foreignKey:user_id" json:"user,omitempty"`
	BankTransfer *BankTransferDetail `gorm:"foreignKey:booking_id" json:"bank_transfer,omitempty"`
	Onsite       *OnsiteDetail       `gorm:"foreignKey:booking_id" json:"onsite,omitempty"`

	types.Timestamps
}

func BookingEventProducer(id uint, event types.BookingEvent, payload map[string]any) error {
	err := lib.KafkaProduceMessage("booking_events_producer", "booking-events", payload)
	if err != nil {
		log.Printf("Error producing %s event for Booking [%d]: %s\n", event, id, err.Error())
		return err
	}
	return nil
}

func PaymentAlertProducer(payload map[string]any) error {
	err := lib.KafkaProduceMessage("payment_alerts_producer", "payment-alerts", payload)
	if err != nil {
		log.Printf("Error producing payment alert: %s\n", err.Error())
		return err
	}
	return nil
}
