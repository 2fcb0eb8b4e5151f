package boot

import (
	"hols/src/db"
	"hols/src/lib"
	"hols/src/models"
	"hols/src/utils"
	"log"
	"time"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Booking{},
		&models.BankTransferDetail{},
		&models.OnsiteDetail{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler starts the expiry reaper. The sweep itself is idempotent,
// so the interval only bounds how stale a pending booking can get past the
// 30 minute payment window.
func InitScheduler() {
	id, err := lib.CreateCronJob(utils.ExpirePendingBookings, 5*time.Minute)
	if err != nil {
		log.Printf("Error scheduling reaper job: %s\n", err.Error())
		return
	}
	log.Printf("Reaper job scheduled: %s\n", *id)
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}

func InitBroker() {
	go lib.KafkaCreateTopics("booking-events", "payment-alerts")
}
