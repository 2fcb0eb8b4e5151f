package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Metadata map[string]any

type PaymentMethod string

const (
	PAYMENT_METHOD_GATEWAY  PaymentMethod = "gateway"
	PAYMENT_METHOD_TRANSFER PaymentMethod = "bank_transfer"
	PAYMENT_METHOD_ONSITE   PaymentMethod = "onsite"
)

type PaymentStatus string

const (
	PAYMENT_PENDING  PaymentStatus = "pending"
	PAYMENT_PAID     PaymentStatus = "paid"
	PAYMENT_FAILED   PaymentStatus = "failed"
	PAYMENT_REFUNDED PaymentStatus = "refunded"
)

type BookingStatus string

const (
	BOOKING_PENDING   BookingStatus = "pending"
	BOOKING_CONFIRMED BookingStatus = "confirmed"
	BOOKING_CANCELLED BookingStatus = "cancelled"
	BOOKING_COMPLETED BookingStatus = "completed"
)

type TransferStatus string

const (
	TRANSFER_PENDING  TransferStatus = "pending"
	TRANSFER_VERIFIED TransferStatus = "verified"
	TRANSFER_REJECTED TransferStatus = "rejected"
)

type OnsiteStatus string

const (
	ONSITE_PENDING   OnsiteStatus = "pending"
	ONSITE_COLLECTED OnsiteStatus = "collected"
)

// BookingEvent values are produced to the booking-events topic and mailed
// out where relevant. Delivery is best-effort and never blocks a booking
// state transition.
type BookingEvent string

const (
	BOOKING_EVENT_CREATED        BookingEvent = "created"
	BOOKING_EVENT_CONFIRMED      BookingEvent = "confirmed"
	BOOKING_EVENT_REJECTED       BookingEvent = "rejected"
	BOOKING_EVENT_PROOF_UPLOADED BookingEvent = "proof_uploaded"
)

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type CreateBookingRequestBody struct {
	PropertyID    uint          `json:"property_id" binding:"required"`
	CheckIn       string        `json:"check_in" binding:"required,bookabledate"`
	CheckOut      string        `json:"check_out" binding:"required,bookabledate,gtdate=CheckIn"`
	Guests        uint          `json:"guests" binding:"required,min=1"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required,oneof=gateway bank_transfer onsite"`
}

type CancelBookingRequestBody struct {
	Reason string `json:"reason,omitempty"`
}

type SubmitProofRequestBody struct {
	TransferReference string `json:"transfer_reference,omitempty"`
	ProofRef          string `json:"proof_ref" binding:"required"`
}

type VerifyTransferRequestBody struct {
	Decision TransferStatus `json:"decision" binding:"required,oneof=verified rejected"`
}

type CollectOnsiteRequestBody struct {
	ReceiptNumber string `json:"receipt_number" binding:"required"`
	CollectedAt   string `json:"collected_at,omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
}

type CreatePropertyRequestBody struct {
	Name          string  `json:"name" binding:"required"`
	Location      string  `json:"location" binding:"required"`
	Description   string  `json:"description,omitempty"`
	PricePerNight float64 `json:"price_per_night" binding:"required,gt=0"`
	Currency      string  `json:"currency,omitempty"`
	MaxGuests     uint    `json:"max_guests" binding:"required,min=1"`
}

type BookingQueryFilters struct {
	Status     string `form:"status,omitempty" binding:"omitempty,oneof=pending confirmed cancelled completed"`
	PropertyID uint   `form:"property,omitempty"`
	From       string `form:"from,omitempty" binding:"omitempty"`
	To         string `form:"to,omitempty" binding:"omitempty"`
	Page       int    `form:"page,omitempty" binding:"omitempty,min=1"`
	Limit      int    `form:"limit,omitempty" binding:"omitempty,min=1,max=100"`
}

type RegisterUserRequestBody struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required"`
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
