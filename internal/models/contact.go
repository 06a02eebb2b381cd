package models

import "gorm.io/datatypes"

// Contact belongs to exactly one user. The email is unique across all
// contacts regardless of owner; ownership never changes after creation.
type Contact struct {
	BaseModel

	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`

	FirstName string         `gorm:"index;not null" json:"first_name"`
	LastName  string         `gorm:"index;not null" json:"last_name"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Phone     string         `gorm:"not null" json:"phone"`
	Birthday  datatypes.Date `gorm:"not null" json:"birthday"`
	Note      string         `json:"note,omitempty"`
}
