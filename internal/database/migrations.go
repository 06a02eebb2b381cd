package database

import (
	"gorm.io/gorm"

	"github.com/contactly/contactly/internal/models"
)

// AutoMigrate applies the schema for every persistent model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Contact{},
	)
}
