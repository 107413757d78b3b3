package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username     string `gorm:"unique;not null;size:25"`
	PasswordHash string `gorm:"not null" json:"-"`
	IsSuperuser  bool   `gorm:"default:false"`
	LastLogin    *time.Time
}

// UserSettings is created together with its user and never deleted on its own.
type UserSettings struct {
	gorm.Model
	UserID    uint   `gorm:"uniqueIndex;not null"`
	User      User   `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Timezone  string `gorm:"size:50;default:Default"`
	Avatar    string `gorm:"size:255"`
	Signature string `gorm:"size:256"`
}

// EmptyTimezone marks settings whose owner never picked a timezone.
const EmptyTimezone = "Default"
