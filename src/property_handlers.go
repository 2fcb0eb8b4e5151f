package main

import (
	"hols/src/db"
	"hols/src/models"
	"hols/src/types"
	"hols/src/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// propertyRoutes exposes the catalog. Browsing is unauthenticated; only
// active listings are visible.
func propertyRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/properties", func(ctx *gin.Context) {
			d := db.GetDb()
			var properties []models.Property
			err := d.
				Model(&models.Property{}).
				Where("active = ?", true).
				Order("name ASC").
				Find(&properties).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": properties, "count": len(properties)})
		}).
		GET("/properties/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			property, err := utils.GetActiveProperty(params.ID)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": property})
		})
	return apiv1
}
