package utils

import (
	"database/sql"
	"errors"
	"fmt"
	"hols/src/config"
	"hols/src/db"
	"hols/src/lib/mailer"
	"hols/src/models"
	"hols/src/types"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewPaymentReference generates a fresh idempotency token. UUID entropy
// instead of a row count keeps references unique under concurrent writers.
func NewPaymentReference() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:12]
	return fmt.Sprintf("%s-%d-%s", config.PAYMENT_REFERENCE_PREFIX, time.Now().UnixMilli(), suffix)
}

// CreateNewBooking validates the request against the property catalog,
// prices the stay once, and persists the booking in pending/pending with
// its method-specific sub-record. The availability check here is advisory:
// pending bookings never hold inventory, conflicts are resolved at
// confirmation time.
func CreateNewBooking(params *types.CreateBookingRequestBody, userId uint) (*models.Booking, error) {
	checkIn, err := time.Parse(config.DATE_PARSE_FORMAT, params.CheckIn)
	if err != nil {
		return nil, types.ErrInvalidDateRange
	}
	checkOut, err := time.Parse(config.DATE_PARSE_FORMAT, params.CheckOut)
	if err != nil {
		return nil, types.ErrInvalidDateRange
	}
	if !checkOut.After(checkIn) {
		return nil, types.ErrInvalidDateRange
	}

	d := db.GetDb()
	var property models.Property
	err = d.
		Model(&models.Property{}).
		Where("id = ? AND active = ?", params.PropertyID, true).
		First(&property).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrPropertyNotFound
		}
		return nil, err
	}
	if params.Guests > property.MaxGuests {
		return nil, types.ErrGuestLimit
	}
	available, err := IsPropertyAvailable(d, property.ID, checkIn, checkOut, 0)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, types.ErrUnavailable
	}

	nights := uint(math.Round(checkOut.Sub(checkIn).Hours() / 24))
	baseAmount := property.PricePerNight * float64(nights)
	serviceFee := math.Round(baseAmount*config.SERVICE_FEE_RATE*100) / 100

	booking := models.Booking{
		PropertyID:       property.ID,
		UserID:           userId,
		CheckIn:          checkIn,
		CheckOut:         checkOut,
		GuestCount:       params.Guests,
		Nights:           nights,
		BaseAmount:       baseAmount,
		ServiceFee:       serviceFee,
		TotalAmount:      baseAmount + serviceFee,
		Currency:         property.Currency,
		PaymentMethod:    params.PaymentMethod,
		PaymentStatus:    types.PAYMENT_PENDING,
		Status:           types.BOOKING_PENDING,
		PaymentReference: NewPaymentReference(),
	}
	switch params.PaymentMethod {
	case types.PAYMENT_METHOD_TRANSFER:
		booking.BankTransfer = &models.BankTransferDetail{Status: types.TRANSFER_PENDING}
	case types.PAYMENT_METHOD_ONSITE:
		booking.Onsite = &models.OnsiteDetail{
			ExpectedAmount: booking.TotalAmount,
			Status:         types.ONSITE_PENDING,
		}
	}

	err = d.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("CreateNewBooking failed: %s\n", err.Error())
		return nil, err
	}
	NotifyBookingEvent(booking.ID, types.BOOKING_EVENT_CREATED)
	return &booking, nil
}

// ConfirmBooking is the compare-and-set at the heart of reconciliation:
// mark the booking confirmed+paid only if its dates are still free. The
// availability re-check and the guarded status update run in one
// serializable transaction, so two confirmations for overlapping ranges
// cannot both commit. A booking the reaper already cancelled fails the
// status guard and surfaces as ErrUnavailable, never as a resurrection.
//
// extra runs inside the same transaction after the status flip, for
// method-specific sub-record updates.
func ConfirmBooking(bookingId uint, extra func(tx *gorm.DB, booking *models.Booking) error) (*models.Booking, error) {
	d := db.GetDb()
	var booking models.Booking
	err := d.Transaction(func(tx *gorm.DB) error {
		err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingId).
			First(&booking).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ErrBookingNotFound
			}
			return err
		}
		if booking.Status != types.BOOKING_PENDING {
			return types.ErrUnavailable
		}
		available, err := IsPropertyAvailable(tx, booking.PropertyID, booking.CheckIn, booking.CheckOut, booking.ID)
		if err != nil {
			return err
		}
		if !available {
			return types.ErrUnavailable
		}
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, types.BOOKING_PENDING).
			Updates(map[string]any{
				"status":         types.BOOKING_CONFIRMED,
				"payment_status": types.PAYMENT_PAID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrUnavailable
		}
		if err := tx.
			Model(&models.Property{}).
			Where("id = ?", booking.PropertyID).
			UpdateColumn("bookings_count", gorm.Expr("bookings_count + ?", 1)).
			Error; err != nil {
			return err
		}
		if extra != nil {
			if err := extra(tx, &booking); err != nil {
				return err
			}
		}
		booking.Status = types.BOOKING_CONFIRMED
		booking.PaymentStatus = types.PAYMENT_PAID
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	NotifyBookingEvent(booking.ID, types.BOOKING_EVENT_CONFIRMED)
	var full models.Booking
	if err := d.Preload("Property").Preload("User").First(&full, booking.ID).Error; err == nil {
		if full.User != nil && full.Property != nil && full.User.Email != "" {
			go mailer.SendBookingConfirmedMail(
				full.User.Email,
				full.PaymentReference,
				full.Property.Name,
				full.CheckIn.Format(config.DATE_PARSE_FORMAT),
				full.CheckOut.Format(config.DATE_PARSE_FORMAT),
			)
		}
	}
	return &booking, nil
}

// CancelBooking moves a pending booking to cancelled. Completed is
// terminal; confirmed stays are not cancellable through this path.
func CancelBooking(bookingId uint, reason string, actor string) (*models.Booking, error) {
	d := db.GetDb()
	var booking models.Booking
	err := d.Transaction(func(tx *gorm.DB) error {
		err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingId).
			First(&booking).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ErrBookingNotFound
			}
			return err
		}
		switch booking.Status {
		case types.BOOKING_CANCELLED:
			return types.ErrAlreadyCancelled
		case types.BOOKING_COMPLETED, types.BOOKING_CONFIRMED:
			return types.ErrNotCancellable
		}
		now := time.Now()
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, types.BOOKING_PENDING).
			Updates(map[string]any{
				"status":              types.BOOKING_CANCELLED,
				"cancellation_reason": reason,
				"cancelled_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrAlreadyCancelled
		}
		booking.Status = types.BOOKING_CANCELLED
		booking.CancellationReason = &reason
		booking.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Booking [%d] cancelled by %s: %s\n", booking.ID, actor, reason)
	NotifyBookingEvent(booking.ID, types.BOOKING_EVENT_REJECTED)
	return &booking, nil
}

// ExpirePendingBookings is the reaper sweep: cancel bookings that have sat
// in pending/pending past the payment window. Safe to run repeatedly; a
// booking cancelled by an earlier sweep is skipped silently.
func ExpirePendingBookings() {
	d := db.GetDb()
	cutoff := time.Now().Add(-config.PENDING_PAYMENT_WINDOW * time.Minute)
	var ids []uint
	err := d.
		Model(&models.Booking{}).
		Where("status = ? AND payment_status = ? AND created_at < ?",
			types.BOOKING_PENDING, types.PAYMENT_PENDING, cutoff).
		Pluck("id", &ids).
		Error
	if err != nil {
		log.Printf("Error selecting expired bookings: %s\n", err.Error())
		return
	}
	for _, id := range ids {
		if _, err := CancelBooking(id, "payment window expired", "system"); err != nil {
			if errors.Is(err, types.ErrAlreadyCancelled) {
				continue
			}
			log.Printf("Error expiring Booking [%d]: %s\n", id, err.Error())
		}
	}
	if len(ids) > 0 {
		log.Printf("Reaper swept %d expired bookings\n", len(ids))
	}
}

// NotifyBookingEvent dispatches a booking lifecycle event to the
// booking-events topic. Fire-and-forget: failures are logged and never
// reach the caller.
func NotifyBookingEvent(bookingId uint, event types.BookingEvent) {
	payload := map[string]any{
		"booking_id": bookingId,
		"event":      string(event),
		"at":         time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		if err := models.BookingEventProducer(bookingId, event, payload); err != nil {
			log.Printf("Notification for Booking [%d] dropped: %s\n", bookingId, err.Error())
		}
	}()
}
