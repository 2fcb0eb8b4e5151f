package main

import (
	"encoding/json"
	"hols/src/db"
	"hols/src/models"
	"hols/src/types"
	"hols/src/utils"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// stripeWebhookRoute settles checkout sessions reported by the provider.
// Signature verification happens before anything touches the database;
// redeliveries are harmless because verification converges on the same
// booking state.
func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "checkout.session.completed", "checkout.session.async_payment_succeeded", "checkout.session.async_payment_failed":
			var cs stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				break
			}
			if _, err := utils.VerifyGatewayPayment(cs.ID); err != nil {
				log.Printf("[Stripe] Verification for session %s: %s\n", cs.ID, err.Error())
			}
		}
		ctx.Status(http.StatusOK)
	})
	return apiv1
}

// paymentCallbackRoutes is where the guest's browser lands after the hosted
// payment page. Unauthenticated: the gateway reference is the credential.
func paymentCallbackRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.GET("/payments/verify", func(ctx *gin.Context) {
		var query struct {
			Reference string `form:"reference" binding:"required"`
		}
		if err := ctx.ShouldBindQuery(&query); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		booking, err := utils.VerifyGatewayPayment(query.Reference)
		if err != nil {
			log.Printf("Verification failed for reference %s: %s\n", query.Reference, err.Error())
			ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error(), "data": booking})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": booking})
	})
	return apiv1
}

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings/:id/payments/initialize", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if ctx.GetString("role") != "admin" && !ownsBooking(params.ID, ctx.GetUint("id")) {
				ctx.JSON(http.StatusNotFound, gin.H{"error": types.ErrBookingNotFound.Error()})
				return
			}
			redirectURL, booking, err := utils.InitializeGatewayPayment(params.ID, ctx.GetString("email"))
			if err != nil {
				log.Printf("Could not initialize payment for Booking [%d]: %s\n", params.ID, err.Error())
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"data": gin.H{
					"redirect_url": redirectURL,
					"reference":    booking.PaymentReference,
				},
			})
		}).
		POST("/bookings/:id/transfer/proof", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.SubmitProofRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := utils.SubmitTransferProof(params.ID, &body, ctx.GetUint("id"))
			if err != nil {
				log.Printf("Could not submit proof for Booking [%d]: %s\n", params.ID, err.Error())
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		})
	return g
}

func adminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		PUT("/bookings/:id/transfer/verify", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.VerifyTransferRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := utils.VerifyBankTransfer(params.ID, body.Decision, ctx.GetUint("id"))
			if err != nil {
				log.Printf("Could not verify transfer for Booking [%d]: %s\n", params.ID, err.Error())
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/onsite/collect", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CollectOnsiteRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := utils.MarkOnsiteCollected(params.ID, &body, ctx.GetUint("id"))
			if err != nil {
				log.Printf("Could not collect payment for Booking [%d]: %s\n", params.ID, err.Error())
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		POST("/properties", func(ctx *gin.Context) {
			var body types.CreatePropertyRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, err := utils.CreateNewProperty(&body, ctx.GetUint("id"))
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		POST("/bookings/expire", func(ctx *gin.Context) {
			utils.ExpirePendingBookings()
			ctx.Status(http.StatusNoContent)
		})
	return g
}

func ownsBooking(bookingId, userId uint) bool {
	d := db.GetDb()
	var count int64
	d.
		Model(&models.Booking{}).
		Where("id = ? AND user_id = ?", bookingId, userId).
		Count(&count)
	return count > 0
}
