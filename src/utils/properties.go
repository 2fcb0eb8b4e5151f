package utils

import (
	"errors"
	"hols/src/db"
	"hols/src/models"
	"hols/src/types"
	"log"

	"gorm.io/gorm"
)

// GetActiveProperty is the catalog lookup the booking core depends on.
func GetActiveProperty(id uint) (*models.Property, error) {
	d := db.GetDb()
	var property models.Property
	err := d.
		Model(&models.Property{}).
		Where("id = ? AND active = ?", id, true).
		First(&property).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrPropertyNotFound
		}
		return nil, err
	}
	return &property, nil
}

func CreateNewProperty(params *types.CreatePropertyRequestBody, ownerId uint) (uint, error) {
	d := db.GetDb()
	property := models.Property{
		Name:          params.Name,
		Location:      params.Location,
		PricePerNight: params.PricePerNight,
		MaxGuests:     params.MaxGuests,
		Active:        true,
		OwnerID:       ownerId,
	}
	if params.Description != "" {
		property.Description = &params.Description
	}
	if params.Currency != "" {
		property.Currency = params.Currency
	}
	err := d.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&property).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("CreateNewProperty failed: %s\n", err.Error())
		return 0, err
	}
	return property.ID, nil
}
