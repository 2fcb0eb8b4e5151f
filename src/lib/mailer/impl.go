package mailer

import (
	"fmt"
	"hols/src/lib"
	"log"
	"os"
)

// SendBookingConfirmedMail emails the guest after a booking is confirmed.
// Callers run it from a goroutine; a mail failure never affects the
// booking.
func SendBookingConfirmedMail(to string, reference string, propertyName string, checkIn string, checkOut string) {
	if os.Getenv("SMTP_HOST") == "" {
		return
	}
	from := os.Getenv("MAIL_FROM")
	body := fmt.Sprintf(
		"Your booking %s at %s is confirmed.\nCheck-in: %s\nCheck-out: %s\n",
		reference, propertyName, checkIn, checkOut,
	)
	input := &lib.SendMailInput{
		From:     from,
		FromName: "Hols Bookings",
		To:       []string{to},
		Subject:  fmt.Sprintf("Booking confirmed: %s", propertyName),
		Body:     body,
	}
	if err := lib.SendMail(input); err != nil {
		log.Printf("Error sending confirmation mail for %s: %s\n", reference, err.Error())
	}
}
