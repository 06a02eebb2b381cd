package models

// User is an account that owns contacts. The password digest never leaves the
// API surface and the verified flag gates every protected operation.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Verified bool   `gorm:"default:false" json:"verified"`

	AvatarURL      string `json:"avatar_url,omitempty"`
	AvatarPublicID string `json:"-"`

	// Deleting a user removes their contacts with it.
	Contacts []Contact `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}
