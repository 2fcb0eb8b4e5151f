package main

import (
	"errors"
	"hols/src/config"
	"hols/src/db"
	"hols/src/models"
	"hols/src/types"
	"hols/src/utils"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			booking, err := utils.CreateNewBooking(&body, userId)
			if err != nil {
				log.Printf("Could not create Booking: %s\n", err.Error())
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": booking})
		}).
		GET("/bookings", func(ctx *gin.Context) {
			var filters types.BookingQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			d := db.GetDb()
			q := d.Model(&models.Booking{})
			if ctx.GetString("role") != "admin" {
				q = q.Where("user_id = ?", ctx.GetUint("id"))
			}
			if filters.Status != "" {
				q = q.Where("status = ?", filters.Status)
			}
			if filters.PropertyID > 0 {
				q = q.Where("property_id = ?", filters.PropertyID)
			}
			if filters.From != "" {
				from, err := time.Parse(config.DATE_PARSE_FORMAT, filters.From)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
					return
				}
				q = q.Where("check_out > ?", from)
			}
			if filters.To != "" {
				to, err := time.Parse(config.DATE_PARSE_FORMAT, filters.To)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
					return
				}
				q = q.Where("check_in < ?", to)
			}
			limit := filters.Limit
			if limit == 0 {
				limit = 20
			}
			page := filters.Page
			if page == 0 {
				page = 1
			}
			var bookings []models.Booking
			err := q.
				Preload("Property").
				Order("created_at DESC").
				Offset((page - 1) * limit).
				Limit(limit).
				Find(&bookings).
				Error
			if err != nil {
				log.Printf("Could not list Bookings: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			d := db.GetDb()
			q := d.
				Model(&models.Booking{}).
				Where("id = ?", params.ID)
			if ctx.GetString("role") != "admin" {
				q = q.Where("user_id = ?", ctx.GetUint("id"))
			}
			var booking models.Booking
			err := q.
				Preload("Property").
				Preload("BankTransfer").
				Preload("Onsite").
				First(&booking).
				Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": types.ErrBookingNotFound.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CancelBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			if ctx.GetString("role") != "admin" {
				d := db.GetDb()
				var count int64
				d.
					Model(&models.Booking{}).
					Where("id = ? AND user_id = ?", params.ID, userId).
					Count(&count)
				if count == 0 {
					ctx.JSON(http.StatusNotFound, gin.H{"error": types.ErrBookingNotFound.Error()})
					return
				}
			}
			reason := body.Reason
			if reason == "" {
				reason = "cancelled by guest"
			}
			booking, err := utils.CancelBooking(params.ID, reason, ctx.GetString("email"))
			if err != nil {
				log.Printf("Could not cancel Booking [%d]: %s\n", params.ID, err.Error())
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		})
	return g
}
