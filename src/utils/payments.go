package utils

import (
	"context"
	"errors"
	"fmt"
	"hols/src/db"
	"hols/src/lib"
	"hols/src/models"
	"hols/src/types"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"gorm.io/gorm"
)

func getBooking(d *gorm.DB, bookingId uint, preloads ...string) (*models.Booking, error) {
	q := d.Model(&models.Booking{})
	for _, p := range preloads {
		q = q.Preload(p)
	}
	var booking models.Booking
	if err := q.Where("id = ?", bookingId).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// InitializeGatewayPayment starts (or restarts) a hosted-payment-page
// transaction for a gateway booking and returns the redirect URL. A
// retried attempt gets a brand new payment reference and the stale gateway
// reference is cleared, so an old checkout page can never settle against
// the new lineage. Gateway failures leave the booking untouched.
func InitializeGatewayPayment(bookingId uint, email string) (string, *models.Booking, error) {
	d := db.GetDb()
	booking, err := getBooking(d, bookingId, "Property")
	if err != nil {
		return "", nil, err
	}
	if booking.PaymentMethod != types.PAYMENT_METHOD_GATEWAY {
		return "", nil, types.ErrWrongMethod
	}
	if booking.PaymentStatus == types.PAYMENT_PAID {
		return "", nil, types.ErrAlreadyPaid
	}
	if booking.Status != types.BOOKING_PENDING {
		return "", nil, types.ErrNotPending
	}

	if booking.GatewayReference != nil {
		reference := NewPaymentReference()
		err := d.
			Model(&models.Booking{}).
			Where("id = ?", booking.ID).
			Updates(map[string]any{
				"payment_reference": reference,
				"gateway_reference": nil,
			}).
			Error
		if err != nil {
			return "", nil, err
		}
		booking.PaymentReference = reference
		booking.GatewayReference = nil
	}

	amount := int64(math.Round(booking.TotalAmount * 100))
	callbackURL := fmt.Sprintf("%s/api/v1/payments/verify", os.Getenv("APP_HOST"))
	gw := lib.GetPaymentGateway()
	res, err := gw.Initialize(context.Background(), &lib.GatewayInitParams{
		Email:       email,
		Amount:      amount,
		Currency:    booking.Currency,
		Reference:   booking.PaymentReference,
		CallbackURL: callbackURL,
		Metadata: map[string]string{
			"booking_id": strconv.FormatUint(uint64(booking.ID), 10),
		},
	})
	if err != nil {
		return "", nil, &types.GatewayError{Op: "initialize", Err: err}
	}
	err = d.
		Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Update("gateway_reference", res.GatewayReference).
		Error
	if err != nil {
		return "", nil, err
	}
	booking.GatewayReference = &res.GatewayReference
	return res.RedirectURL, booking, nil
}

// VerifyGatewayPayment settles a gateway transaction by its gateway
// reference. Both the redirect callback and the webhook land here; redis
// dedupes redeliveries best-effort and the confirm CAS is the real guard.
//
// A success report after the dates were taken (or after the reaper
// cancelled the booking) refunds the charge and cancels the booking; the
// returned error is ErrUnavailable. A refund failure is alerted but never
// leaves the booking in limbo.
func VerifyGatewayPayment(reference string) (*models.Booking, error) {
	d := db.GetDb()
	var booking models.Booking
	err := d.
		Model(&models.Booking{}).
		Where("gateway_reference = ?", reference).
		First(&booking).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrBookingNotFound
		}
		return nil, err
	}
	if booking.Status == types.BOOKING_CONFIRMED {
		return &booking, nil
	}
	if !lib.MarkReferenceSeen(context.Background(), reference) && booking.PaymentStatus != types.PAYMENT_PENDING {
		return &booking, nil
	}

	gw := lib.GetPaymentGateway()
	result, err := gw.Verify(context.Background(), reference)
	if err != nil {
		return nil, &types.GatewayError{Op: "verify", Err: err}
	}
	if !result.Succeeded {
		err := d.
			Model(&models.Booking{}).
			Where("id = ? AND payment_status = ?", booking.ID, types.PAYMENT_PENDING).
			Update("payment_status", types.PAYMENT_FAILED).
			Error
		if err != nil {
			return nil, err
		}
		booking.PaymentStatus = types.PAYMENT_FAILED
		log.Printf("Gateway verification failed for Booking [%d], reference %s\n", booking.ID, reference)
		return &booking, nil
	}

	confirmed, err := ConfirmBooking(booking.ID, nil)
	if err == nil {
		return confirmed, nil
	}
	if !errors.Is(err, types.ErrUnavailable) {
		return nil, err
	}

	// The CAS can also fail because a concurrent delivery of the same
	// reference won; that is a success, not a lost race.
	if fresh, ferr := getBooking(d, booking.ID); ferr == nil && fresh.Status == types.BOOKING_CONFIRMED {
		return fresh, nil
	}

	// Lost the race with funds captured: roll back our own payment.
	if refundErr := gw.Refund(context.Background(), reference, 0); refundErr != nil {
		rf := &types.RefundFailure{BookingID: booking.ID, Reference: reference, Err: refundErr}
		log.Printf("[ALERT] %s\n", rf.Error())
		go models.PaymentAlertProducer(map[string]any{
			"booking_id": booking.ID,
			"reference":  reference,
			"error":      refundErr.Error(),
			"at":         time.Now().UTC().Format(time.RFC3339),
		})
	}
	reason := "property no longer available"
	now := time.Now()
	err = d.Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, types.BOOKING_PENDING).
			Updates(map[string]any{
				"status":              types.BOOKING_CANCELLED,
				"payment_status":      types.PAYMENT_REFUNDED,
				"cancellation_reason": reason,
				"cancelled_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Reaper got there first; the charge still happened, record
			// the refund on the already-cancelled booking.
			return tx.
				Model(&models.Booking{}).
				Where("id = ? AND status = ?", booking.ID, types.BOOKING_CANCELLED).
				Update("payment_status", types.PAYMENT_REFUNDED).
				Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	NotifyBookingEvent(booking.ID, types.BOOKING_EVENT_REJECTED)
	booking.Status = types.BOOKING_CANCELLED
	booking.PaymentStatus = types.PAYMENT_REFUNDED
	booking.CancellationReason = &reason
	booking.CancelledAt = &now
	return &booking, types.ErrUnavailable
}

// SubmitTransferProof attaches a proof-of-payment reference to a
// bank-transfer booking and queues it for admin review. Resubmission after
// a rejection resets the sub-record to pending.
func SubmitTransferProof(bookingId uint, params *types.SubmitProofRequestBody, userId uint) (*models.Booking, error) {
	d := db.GetDb()
	booking, err := getBooking(d, bookingId, "BankTransfer")
	if err != nil {
		return nil, err
	}
	if booking.UserID != userId {
		return nil, types.ErrBookingNotFound
	}
	if booking.PaymentMethod != types.PAYMENT_METHOD_TRANSFER {
		return nil, types.ErrWrongMethod
	}
	if booking.PaymentStatus == types.PAYMENT_PAID {
		return nil, types.ErrAlreadyPaid
	}
	if booking.Status != types.BOOKING_PENDING {
		return nil, types.ErrNotPending
	}

	err = d.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"proof_of_payment_ref": params.ProofRef,
			"status":               types.TRANSFER_PENDING,
			"verified_by":          nil,
			"verified_at":          nil,
		}
		if params.TransferReference != "" {
			updates["transfer_reference"] = params.TransferReference
		}
		if booking.BankTransfer == nil {
			detail := models.BankTransferDetail{
				BookingID:         booking.ID,
				ProofOfPaymentRef: &params.ProofRef,
				Status:            types.TRANSFER_PENDING,
			}
			if params.TransferReference != "" {
				detail.TransferReference = &params.TransferReference
			}
			if err := tx.Create(&detail).Error; err != nil {
				return err
			}
		} else {
			if err := tx.
				Model(&models.BankTransferDetail{}).
				Where("booking_id = ?", booking.ID).
				Updates(updates).
				Error; err != nil {
				return err
			}
		}
		// A resubmission after a rejection puts the payment back under
		// review.
		return tx.
			Model(&models.Booking{}).
			Where("id = ? AND payment_status = ?", booking.ID, types.PAYMENT_FAILED).
			Update("payment_status", types.PAYMENT_PENDING).
			Error
	})
	if err != nil {
		return nil, err
	}
	NotifyBookingEvent(booking.ID, types.BOOKING_EVENT_PROOF_UPLOADED)
	return getBooking(d, booking.ID, "BankTransfer")
}

// VerifyBankTransfer is the admin decision on a submitted proof. Verified
// runs the confirm CAS; a lost race returns ErrUnavailable and leaves the
// booking pending — no refund, the funds were only ever claimed, never
// captured here. Rejected marks the payment failed and keeps the booking
// pending so the guest can resubmit.
func VerifyBankTransfer(bookingId uint, decision types.TransferStatus, adminId uint) (*models.Booking, error) {
	d := db.GetDb()
	booking, err := getBooking(d, bookingId, "BankTransfer")
	if err != nil {
		return nil, err
	}
	if booking.PaymentMethod != types.PAYMENT_METHOD_TRANSFER {
		return nil, types.ErrWrongMethod
	}
	if booking.PaymentStatus == types.PAYMENT_PAID {
		return nil, types.ErrAlreadyPaid
	}
	if booking.BankTransfer == nil || booking.BankTransfer.ProofOfPaymentRef == nil {
		return nil, types.ErrProofMissing
	}
	now := time.Now()

	if decision == types.TRANSFER_REJECTED {
		err = d.Transaction(func(tx *gorm.DB) error {
			err := tx.
				Model(&models.BankTransferDetail{}).
				Where("booking_id = ?", booking.ID).
				Updates(map[string]any{
					"status":      types.TRANSFER_REJECTED,
					"verified_by": adminId,
					"verified_at": now,
				}).
				Error
			if err != nil {
				return err
			}
			return tx.
				Model(&models.Booking{}).
				Where("id = ? AND payment_status = ?", booking.ID, types.PAYMENT_PENDING).
				Update("payment_status", types.PAYMENT_FAILED).
				Error
		})
		if err != nil {
			return nil, err
		}
		NotifyBookingEvent(booking.ID, types.BOOKING_EVENT_REJECTED)
		return getBooking(d, booking.ID, "BankTransfer")
	}

	confirmed, err := ConfirmBooking(booking.ID, func(tx *gorm.DB, b *models.Booking) error {
		return tx.
			Model(&models.BankTransferDetail{}).
			Where("booking_id = ?", b.ID).
			Updates(map[string]any{
				"status":      types.TRANSFER_VERIFIED,
				"verified_by": adminId,
				"verified_at": now,
			}).
			Error
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// MarkOnsiteCollected records a cash collection at check-in and confirms
// the booking through the same CAS as the other methods. No money was
// pre-captured, so a lost race is just ErrUnavailable for the admin to
// resolve.
func MarkOnsiteCollected(bookingId uint, params *types.CollectOnsiteRequestBody, adminId uint) (*models.Booking, error) {
	d := db.GetDb()
	booking, err := getBooking(d, bookingId, "Onsite")
	if err != nil {
		return nil, err
	}
	if booking.PaymentMethod != types.PAYMENT_METHOD_ONSITE {
		return nil, types.ErrWrongMethod
	}
	if booking.PaymentStatus == types.PAYMENT_PAID {
		return nil, types.ErrAlreadyPaid
	}

	collectedAt := time.Now()
	if params.CollectedAt != "" {
		if t, err := time.Parse("2006-01-02 15:04:05 -07:00", params.CollectedAt); err == nil {
			collectedAt = t
		}
	}
	confirmed, err := ConfirmBooking(booking.ID, func(tx *gorm.DB, b *models.Booking) error {
		return tx.
			Model(&models.OnsiteDetail{}).
			Where("booking_id = ?", b.ID).
			Updates(map[string]any{
				"status":         types.ONSITE_COLLECTED,
				"collected_by":   adminId,
				"collected_at":   collectedAt,
				"receipt_number": params.ReceiptNumber,
			}).
			Error
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}
