package utils

import (
	"context"
	"fmt"
	"hols/src/config"
	"hols/src/db"
	"hols/src/lib"
	"hols/src/models"
	"hols/src/types"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu      sync.Mutex
	succeed bool
	inits   []string
	refunds []string
}

func (f *fakeGateway) Initialize(ctx context.Context, params *lib.GatewayInitParams) (*lib.GatewayInitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits = append(f.inits, params.Reference)
	return &lib.GatewayInitResult{
		RedirectURL:      "https://pay.example.com/" + params.Reference,
		GatewayReference: "cs_test_" + params.Reference,
	}, nil
}

func (f *fakeGateway) Verify(ctx context.Context, reference string) (*lib.GatewayVerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &lib.GatewayVerifyResult{Succeeded: f.succeed}, nil
}

func (f *fakeGateway) Refund(ctx context.Context, reference string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, reference)
	return nil
}

func (f *fakeGateway) refundCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refunds)
}

type BookingsTestSuite struct {
	suite.Suite
	DB       *gorm.DB
	Gateway  *fakeGateway
	Property models.Property
	Guest    models.User
	Admin    models.User
}

var testDbSeq int

// Named shared-cache DSN so every pooled connection sees the same
// in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	testDbSeq++
	dsn := fmt.Sprintf("file:bookings_test_%d?mode=memory&cache=shared", testDbSeq)
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("error opening test database: %s", err.Error())
	}
	err = d.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Booking{},
		&models.BankTransferDetail{},
		&models.OnsiteDetail{},
	)
	if err != nil {
		t.Fatalf("error migration: %s", err.Error())
	}
	return d
}

func (s *BookingsTestSuite) SetupTest() {
	d := newTestDB(s.T())
	db.NewDB(d)
	s.DB = d

	s.Gateway = &fakeGateway{succeed: true}
	lib.NewPaymentGateway(s.Gateway)

	s.Guest = models.User{Name: "Guest User", Email: "guest@example.com"}
	s.Admin = models.User{Name: "Admin User", Email: "admin@example.com", Role: "admin"}
	s.Property = models.Property{
		Name:          "Seaside Villa",
		Location:      "Batangas",
		PricePerNight: 100,
		Currency:      "usd",
		MaxGuests:     4,
		Active:        true,
	}
	if err := d.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&s.Guest).Error; err != nil {
			return err
		}
		if err := tx.Create(&s.Admin).Error; err != nil {
			return err
		}
		return tx.Create(&s.Property).Error
	}); err != nil {
		log.Fatalf("Could not seed test data: %s\n", err.Error())
	}
}

func futureDate(daysAhead int) string {
	return time.Now().AddDate(0, 0, daysAhead).Format(config.DATE_PARSE_FORMAT)
}

func (s *BookingsTestSuite) createBooking(method types.PaymentMethod, checkInDays, checkOutDays int) *models.Booking {
	booking, err := CreateNewBooking(&types.CreateBookingRequestBody{
		PropertyID:    s.Property.ID,
		CheckIn:       futureDate(checkInDays),
		CheckOut:      futureDate(checkOutDays),
		Guests:        2,
		PaymentMethod: method,
	}, s.Guest.ID)
	s.Require().Nil(err)
	return booking
}

func (s *BookingsTestSuite) reload(id uint) *models.Booking {
	var booking models.Booking
	err := s.DB.
		Model(&models.Booking{}).
		Preload("BankTransfer").
		Preload("Onsite").
		Where("id = ?", id).
		First(&booking).
		Error
	s.Require().Nil(err)
	return &booking
}

func (s *BookingsTestSuite) TestCreateBookingPricing() {
	booking := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)

	assert.Equal(s.T(), uint(3), booking.Nights)
	assert.Equal(s.T(), 300.0, booking.BaseAmount)
	assert.Equal(s.T(), 30.0, booking.ServiceFee)
	assert.Equal(s.T(), 330.0, booking.TotalAmount)
	assert.Equal(s.T(), types.BOOKING_PENDING, booking.Status)
	assert.Equal(s.T(), types.PAYMENT_PENDING, booking.PaymentStatus)
	assert.True(s.T(), strings.HasPrefix(booking.PaymentReference, config.PAYMENT_REFERENCE_PREFIX+"-"))
	assert.Nil(s.T(), booking.GatewayReference)
}

func (s *BookingsTestSuite) TestCreateBookingValidation() {
	_, err := CreateNewBooking(&types.CreateBookingRequestBody{
		PropertyID:    s.Property.ID,
		CheckIn:       futureDate(13),
		CheckOut:      futureDate(10),
		Guests:        2,
		PaymentMethod: types.PAYMENT_METHOD_GATEWAY,
	}, s.Guest.ID)
	assert.ErrorIs(s.T(), err, types.ErrInvalidDateRange)

	_, err = CreateNewBooking(&types.CreateBookingRequestBody{
		PropertyID:    s.Property.ID,
		CheckIn:       futureDate(10),
		CheckOut:      futureDate(13),
		Guests:        10,
		PaymentMethod: types.PAYMENT_METHOD_GATEWAY,
	}, s.Guest.ID)
	assert.ErrorIs(s.T(), err, types.ErrGuestLimit)

	_, err = CreateNewBooking(&types.CreateBookingRequestBody{
		PropertyID:    s.Property.ID + 100,
		CheckIn:       futureDate(10),
		CheckOut:      futureDate(13),
		Guests:        2,
		PaymentMethod: types.PAYMENT_METHOD_GATEWAY,
	}, s.Guest.ID)
	assert.ErrorIs(s.T(), err, types.ErrPropertyNotFound)
}

func (s *BookingsTestSuite) TestOverlappingPendingBookingsAllowed() {
	first := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)
	second := s.createBooking(types.PAYMENT_METHOD_TRANSFER, 11, 12)

	assert.NotEqual(s.T(), first.ID, second.ID)
	assert.NotEqual(s.T(), first.PaymentReference, second.PaymentReference)
	assert.Equal(s.T(), types.BOOKING_PENDING, first.Status)
	assert.Equal(s.T(), types.BOOKING_PENDING, second.Status)
}

func (s *BookingsTestSuite) TestBackToBackStaysDoNotOverlap() {
	first := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)
	_, err := ConfirmBooking(first.ID, nil)
	s.Require().Nil(err)

	// Half-open ranges: a stay checking in on the previous check-out day
	// is bookable and confirmable.
	second := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 13, 15)
	confirmed, err := ConfirmBooking(second.ID, nil)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), types.BOOKING_CONFIRMED, confirmed.Status)
}

func (s *BookingsTestSuite) TestGatewayInitializeReissuesReference() {
	booking := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)
	originalRef := booking.PaymentReference

	url, booking, err := InitializeGatewayPayment(booking.ID, s.Guest.Email)
	s.Require().Nil(err)
	assert.Contains(s.T(), url, "https://pay.example.com/")
	assert.Equal(s.T(), originalRef, booking.PaymentReference)
	s.Require().NotNil(booking.GatewayReference)
	firstGatewayRef := *booking.GatewayReference

	// Retry abandons the old attempt: fresh reference, fresh session.
	_, booking, err = InitializeGatewayPayment(booking.ID, s.Guest.Email)
	s.Require().Nil(err)
	assert.NotEqual(s.T(), originalRef, booking.PaymentReference)
	s.Require().NotNil(booking.GatewayReference)
	assert.NotEqual(s.T(), firstGatewayRef, *booking.GatewayReference)

	// The abandoned session no longer resolves to any booking.
	_, err = VerifyGatewayPayment(firstGatewayRef)
	assert.ErrorIs(s.T(), err, types.ErrBookingNotFound)
}

func (s *BookingsTestSuite) TestInitializeWrongMethod() {
	booking := s.createBooking(types.PAYMENT_METHOD_TRANSFER, 10, 13)
	_, _, err := InitializeGatewayPayment(booking.ID, s.Guest.Email)
	assert.ErrorIs(s.T(), err, types.ErrWrongMethod)
}

func (s *BookingsTestSuite) TestVerifyConfirmsBooking() {
	booking := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)
	_, booking, err := InitializeGatewayPayment(booking.ID, s.Guest.Email)
	s.Require().Nil(err)

	confirmed, err := VerifyGatewayPayment(*booking.GatewayReference)
	s.Require().Nil(err)
	assert.Equal(s.T(), types.BOOKING_CONFIRMED, confirmed.Status)
	assert.Equal(s.T(), types.PAYMENT_PAID, confirmed.PaymentStatus)

	var property models.Property
	s.DB.First(&property, s.Property.ID)
	assert.Equal(s.T(), uint(1), property.BookingsCount)

	// Redelivery of the same reference is a no-op success.
	again, err := VerifyGatewayPayment(*booking.GatewayReference)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), types.BOOKING_CONFIRMED, again.Status)
	assert.Equal(s.T(), 0, s.Gateway.refundCount())
}

func (s *BookingsTestSuite) TestVerifyFailedPayment() {
	booking := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)
	_, booking, err := InitializeGatewayPayment(booking.ID, s.Guest.Email)
	s.Require().Nil(err)

	s.Gateway.succeed = false
	result, err := VerifyGatewayPayment(*booking.GatewayReference)
	s.Require().Nil(err)
	assert.Equal(s.T(), types.PAYMENT_FAILED, result.PaymentStatus)
	// A failed charge does not kill the booking; the guest can retry
	// inside the payment window.
	assert.Equal(s.T(), types.BOOKING_PENDING, result.Status)
}

func (s *BookingsTestSuite) TestVerifyLoserIsRefunded() {
	winner := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)
	loser := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 11, 14)

	_, winner, err := InitializeGatewayPayment(winner.ID, s.Guest.Email)
	s.Require().Nil(err)
	_, loser, err = InitializeGatewayPayment(loser.ID, s.Guest.Email)
	s.Require().Nil(err)

	_, err = VerifyGatewayPayment(*winner.GatewayReference)
	s.Require().Nil(err)

	result, err := VerifyGatewayPayment(*loser.GatewayReference)
	assert.ErrorIs(s.T(), err, types.ErrUnavailable)
	assert.Equal(s.T(), types.BOOKING_CANCELLED, result.Status)
	assert.Equal(s.T(), types.PAYMENT_REFUNDED, result.PaymentStatus)
	assert.Equal(s.T(), 1, s.Gateway.refundCount())

	fresh := s.reload(winner.ID)
	assert.Equal(s.T(), types.BOOKING_CONFIRMED, fresh.Status)
}

func (s *BookingsTestSuite) TestBankTransferRejectAndResubmit() {
	booking := s.createBooking(types.PAYMENT_METHOD_TRANSFER, 10, 13)

	_, err := VerifyBankTransfer(booking.ID, types.TRANSFER_VERIFIED, s.Admin.ID)
	assert.ErrorIs(s.T(), err, types.ErrProofMissing)

	_, err = SubmitTransferProof(booking.ID, &types.SubmitProofRequestBody{
		TransferReference: "TRF-001",
		ProofRef:          "proofs/slip-001.jpg",
	}, s.Guest.ID)
	s.Require().Nil(err)

	rejected, err := VerifyBankTransfer(booking.ID, types.TRANSFER_REJECTED, s.Admin.ID)
	s.Require().Nil(err)
	assert.Equal(s.T(), types.PAYMENT_FAILED, rejected.PaymentStatus)
	assert.Equal(s.T(), types.BOOKING_PENDING, rejected.Status)
	s.Require().NotNil(rejected.BankTransfer)
	assert.Equal(s.T(), types.TRANSFER_REJECTED, rejected.BankTransfer.Status)
	assert.Equal(s.T(), s.Admin.ID, *rejected.BankTransfer.VerifiedBy)

	resubmitted, err := SubmitTransferProof(booking.ID, &types.SubmitProofRequestBody{
		ProofRef: "proofs/slip-002.jpg",
	}, s.Guest.ID)
	s.Require().Nil(err)
	assert.Equal(s.T(), types.PAYMENT_PENDING, resubmitted.PaymentStatus)
	s.Require().NotNil(resubmitted.BankTransfer)
	assert.Equal(s.T(), types.TRANSFER_PENDING, resubmitted.BankTransfer.Status)
	assert.Equal(s.T(), "proofs/slip-002.jpg", *resubmitted.BankTransfer.ProofOfPaymentRef)
	assert.Nil(s.T(), resubmitted.BankTransfer.VerifiedBy)

	verified, err := VerifyBankTransfer(booking.ID, types.TRANSFER_VERIFIED, s.Admin.ID)
	s.Require().Nil(err)
	assert.Equal(s.T(), types.BOOKING_CONFIRMED, verified.Status)
	assert.Equal(s.T(), types.PAYMENT_PAID, verified.PaymentStatus)

	detail := s.reload(booking.ID).BankTransfer
	s.Require().NotNil(detail)
	assert.Equal(s.T(), types.TRANSFER_VERIFIED, detail.Status)
}

func (s *BookingsTestSuite) TestBankTransferOwnership() {
	booking := s.createBooking(types.PAYMENT_METHOD_TRANSFER, 10, 13)
	_, err := SubmitTransferProof(booking.ID, &types.SubmitProofRequestBody{
		ProofRef: "proofs/slip-001.jpg",
	}, s.Admin.ID)
	assert.ErrorIs(s.T(), err, types.ErrBookingNotFound)
}

func (s *BookingsTestSuite) TestTransferVerifyLosesRace() {
	winner := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)
	_, err := ConfirmBooking(winner.ID, nil)
	s.Require().Nil(err)

	loser := s.createBooking(types.PAYMENT_METHOD_TRANSFER, 12, 14)
	_, err = SubmitTransferProof(loser.ID, &types.SubmitProofRequestBody{
		ProofRef: "proofs/slip-003.jpg",
	}, s.Guest.ID)
	s.Require().Nil(err)

	_, err = VerifyBankTransfer(loser.ID, types.TRANSFER_VERIFIED, s.Admin.ID)
	assert.ErrorIs(s.T(), err, types.ErrUnavailable)

	// No funds were captured, so nothing to refund; the booking stays
	// pending for the admin to resolve.
	fresh := s.reload(loser.ID)
	assert.Equal(s.T(), types.BOOKING_PENDING, fresh.Status)
	assert.Equal(s.T(), types.PAYMENT_PENDING, fresh.PaymentStatus)
	assert.Equal(s.T(), 0, s.Gateway.refundCount())
}

func (s *BookingsTestSuite) TestOnsiteCollection() {
	booking := s.createBooking(types.PAYMENT_METHOD_ONSITE, 10, 13)

	detail := s.reload(booking.ID).Onsite
	s.Require().NotNil(detail)
	assert.Equal(s.T(), booking.TotalAmount, detail.ExpectedAmount)

	collected, err := MarkOnsiteCollected(booking.ID, &types.CollectOnsiteRequestBody{
		ReceiptNumber: "OR-12345",
	}, s.Admin.ID)
	s.Require().Nil(err)
	assert.Equal(s.T(), types.BOOKING_CONFIRMED, collected.Status)
	assert.Equal(s.T(), types.PAYMENT_PAID, collected.PaymentStatus)

	detail = s.reload(booking.ID).Onsite
	s.Require().NotNil(detail)
	assert.Equal(s.T(), types.ONSITE_COLLECTED, detail.Status)
	assert.Equal(s.T(), "OR-12345", *detail.ReceiptNumber)
	assert.Equal(s.T(), s.Admin.ID, *detail.CollectedBy)

	_, err = MarkOnsiteCollected(booking.ID, &types.CollectOnsiteRequestBody{
		ReceiptNumber: "OR-12346",
	}, s.Admin.ID)
	assert.ErrorIs(s.T(), err, types.ErrAlreadyPaid)
}

func (s *BookingsTestSuite) TestCancelTransitions() {
	booking := s.createBooking(types.PAYMENT_METHOD_ONSITE, 10, 13)

	cancelled, err := CancelBooking(booking.ID, "changed plans", "guest@example.com")
	s.Require().Nil(err)
	assert.Equal(s.T(), types.BOOKING_CANCELLED, cancelled.Status)
	s.Require().NotNil(cancelled.CancellationReason)
	assert.Equal(s.T(), "changed plans", *cancelled.CancellationReason)
	assert.NotNil(s.T(), cancelled.CancelledAt)

	_, err = CancelBooking(booking.ID, "again", "guest@example.com")
	assert.ErrorIs(s.T(), err, types.ErrAlreadyCancelled)

	confirmed := s.createBooking(types.PAYMENT_METHOD_ONSITE, 20, 22)
	_, err = ConfirmBooking(confirmed.ID, nil)
	s.Require().Nil(err)
	_, err = CancelBooking(confirmed.ID, "too late", "guest@example.com")
	assert.ErrorIs(s.T(), err, types.ErrNotCancellable)

	_, err = CancelBooking(9999, "missing", "guest@example.com")
	assert.ErrorIs(s.T(), err, types.ErrBookingNotFound)
}

func (s *BookingsTestSuite) backdate(bookingId uint, age time.Duration) {
	err := s.DB.
		Model(&models.Booking{}).
		Where("id = ?", bookingId).
		Update("created_at", time.Now().Add(-age)).
		Error
	s.Require().Nil(err)
}

func (s *BookingsTestSuite) TestReaperExpiresStalePendings() {
	stale := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)
	fresh := s.createBooking(types.PAYMENT_METHOD_ONSITE, 20, 22)
	s.backdate(stale.ID, 45*time.Minute)

	ExpirePendingBookings()

	assert.Equal(s.T(), types.BOOKING_CANCELLED, s.reload(stale.ID).Status)
	assert.Equal(s.T(), types.BOOKING_PENDING, s.reload(fresh.ID).Status)

	// Running the sweep again changes nothing.
	ExpirePendingBookings()
	swept := s.reload(stale.ID)
	assert.Equal(s.T(), types.BOOKING_CANCELLED, swept.Status)
	s.Require().NotNil(swept.CancellationReason)
	assert.Equal(s.T(), "payment window expired", *swept.CancellationReason)
}

func (s *BookingsTestSuite) TestReaperSkipsConfirmedAndFailed() {
	confirmed := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)
	_, err := ConfirmBooking(confirmed.ID, nil)
	s.Require().Nil(err)
	s.backdate(confirmed.ID, 2*time.Hour)

	failed := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 20, 22)
	s.Require().Nil(s.DB.
		Model(&models.Booking{}).
		Where("id = ?", failed.ID).
		Update("payment_status", types.PAYMENT_FAILED).
		Error)
	s.backdate(failed.ID, 2*time.Hour)

	ExpirePendingBookings()

	assert.Equal(s.T(), types.BOOKING_CONFIRMED, s.reload(confirmed.ID).Status)
	assert.Equal(s.T(), types.BOOKING_PENDING, s.reload(failed.ID).Status)
}

func (s *BookingsTestSuite) TestVerifyAfterReaperCancellation() {
	booking := s.createBooking(types.PAYMENT_METHOD_GATEWAY, 10, 13)
	_, booking, err := InitializeGatewayPayment(booking.ID, s.Guest.Email)
	s.Require().Nil(err)

	s.backdate(booking.ID, 45*time.Minute)
	ExpirePendingBookings()
	s.Require().Equal(types.BOOKING_CANCELLED, s.reload(booking.ID).Status)

	// The charge settled after the reaper gave up on the booking. The
	// booking stays cancelled and the money goes back.
	result, err := VerifyGatewayPayment(*booking.GatewayReference)
	assert.ErrorIs(s.T(), err, types.ErrUnavailable)
	assert.Equal(s.T(), types.PAYMENT_REFUNDED, result.PaymentStatus)
	assert.Equal(s.T(), 1, s.Gateway.refundCount())

	fresh := s.reload(booking.ID)
	assert.Equal(s.T(), types.BOOKING_CANCELLED, fresh.Status)
	assert.Equal(s.T(), types.PAYMENT_REFUNDED, fresh.PaymentStatus)
}

func (s *BookingsTestSuite) TestPaymentReferencesUnique() {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref := NewPaymentReference()
		assert.False(s.T(), seen[ref])
		seen[ref] = true
	}
}

func TestBookingsRunner(t *testing.T) {
	suite.Run(t, new(BookingsTestSuite))
}
