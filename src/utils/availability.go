package utils

import (
	"hols/src/models"
	"hols/src/types"
	"time"

	"gorm.io/gorm"
)

// IsPropertyAvailable reports whether no confirmed booking overlaps the
// half-open range [checkIn, checkOut) for the property. Pending, cancelled
// and completed bookings never block availability. excludeBookingId skips
// the booking being re-verified during its own confirmation; pass 0 to
// check all bookings.
//
// This is a read-then-decide check. At creation time it is advisory only;
// the authoritative check runs inside the confirm transaction (see
// ConfirmBooking).
func IsPropertyAvailable(tx *gorm.DB, propertyId uint, checkIn time.Time, checkOut time.Time, excludeBookingId uint) (bool, error) {
	var count int64
	q := tx.
		Model(&models.Booking{}).
		Where("property_id = ? AND status = ?", propertyId, types.BOOKING_CONFIRMED).
		Where("check_in < ? AND check_out > ?", checkOut, checkIn)
	if excludeBookingId != 0 {
		q = q.Where("id <> ?", excludeBookingId)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}
