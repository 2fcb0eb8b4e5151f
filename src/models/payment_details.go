package models

import (
	"hols/src/types"
	"time"
)

// BankTransferDetail exists only for bank_transfer bookings. The funds are
// claimed by the guest and verified by an admin; this system never captures
// them, so there is no refund path.
type BankTransferDetail struct {
	ID                uint                 `gorm:"primarykey" json:"id"`
	BookingID         uint                 `gorm:"index" json:"booking_id,omitempty"`
	TransferReference *string              `json:"transfer_reference,omitempty"`
	ProofOfPaymentRef *string              `json:"proof_of_payment_ref,omitempty"`
	Status            types.TransferStatus `gorm:"default:'pending'" json:"status,omitempty"`
	VerifiedBy        *uint                `json:"verified_by,omitempty"`
	VerifiedAt        *time.Time           `json:"verified_at,omitempty"`

	types.Timestamps
}

// OnsiteDetail exists only for onsite bookings; cash is collected at
// check-in by staff.
type OnsiteDetail struct {
	ID             uint               `gorm:"primarykey" json:"id"`
	BookingID      uint               `gorm:"index" json:"booking_id,omitempty"`
	ExpectedAmount float64            `json:"expected_amount,omitempty"`
	Status         types.OnsiteStatus `gorm:"default:'pending'" json:"status,omitempty"`
	CollectedBy    *uint              `json:"collected_by,omitempty"`
	CollectedAt    *time.Time         `json:"collected_at,omitempty"`
	ReceiptNumber  *string            `json:"receipt_number,omitempty"`

	types.Timestamps
}
