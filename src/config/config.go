package config

import (
	"fmt"
	"os"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// DATE_PARSE_FORMAT is used for check-in/check-out dates. Stays are priced
// per night so the time component is never stored.
const DATE_PARSE_FORMAT = "2006-01-02"

// PENDING_PAYMENT_WINDOW is how long a booking may sit with both statuses
// pending before the reaper cancels it (minutes).
const PENDING_PAYMENT_WINDOW = 30

// SERVICE_FEE_RATE is applied to the base amount once, at creation.
const SERVICE_FEE_RATE = 0.10

const PAYMENT_REFERENCE_PREFIX = "HOLS"
