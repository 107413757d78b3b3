package models

import "time"

// Review is a directed like/dislike edge from Reviewer to User.
// Feedback is nil until the first like or dislike is recorded.
type Review struct {
	ID         uint      `gorm:"primaryKey"`
	ReviewerID uint      `gorm:"not null;uniqueIndex:idx_review_pair"`
	Reviewer   User      `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_review_pair;index"`
	User       User      `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Feedback   *bool     `gorm:"default:null"`
	TimeAdded  time.Time `gorm:"autoCreateTime"`
}

// UserRating caches the sum of a user's reviews: +1 per like, -1 per dislike.
type UserRating struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"uniqueIndex;not null"`
	User   User `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Rating int  `gorm:"default:0;not null"`
}

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&UserSettings{},
		&UserRating{},
		&Review{},
		&Topic{},
		&Comment{},
	}
}
