// Package rating handles likes and dislikes between users.
package rating

import (
	"context"
	"errors"
	"fmt"

	"github.com/waflawe/Omenforcer/backend/errmsg"
	"github.com/waflawe/Omenforcer/backend/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Target identifies the reviewed user by id or, when ID is 0, by username.
type Target struct {
	ID       uint
	Username string
}

func ByID(id uint) Target { return Target{ID: id} }

func ByUsername(username string) Target { return Target{Username: username} }

// Info summarizes a user's rating as seen by a viewer.
type Info struct {
	Rating   int   `json:"rating"`
	Reviews  int64 `json:"reviews"`
	Feedback *bool `json:"feedback"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger.Named("rating")}
}

func weight(like bool) int {
	if like {
		return 1
	}
	return -1
}

func (s *Service) resolve(ctx context.Context, actorID uint, target Target) (*models.User, error) {
	var user models.User
	q := s.db.WithContext(ctx)
	var err error
	if target.ID != 0 {
		err = q.First(&user, target.ID).Error
	} else {
		err = q.Where("username = ?", target.Username).First(&user).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errmsg.New(errmsg.Ratings, errmsg.RatingUserNotFound)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if actorID == 0 || actorID == user.ID {
		return &user, errmsg.New(errmsg.Ratings, errmsg.RatingSelfOrAnonymous)
	}
	return &user, nil
}

// adjust applies delta to the user's rating in place.
func adjust(tx *gorm.DB, userID uint, delta int) error {
	res := tx.Model(&models.UserRating{}).Where("user_id = ?", userID).
		UpdateColumn("rating", gorm.Expr("rating + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.Create(&models.UserRating{UserID: userID, Rating: delta}).Error
	}
	return nil
}

// AddReview records a like or dislike from actorID. A new review moves the
// rating by 1, flipping an existing one by 2. Repeating the same feedback is
// reported as not changed.
func (s *Service) AddReview(ctx context.Context, actorID uint, target Target, like bool) (*models.User, error) {
	user, err := s.resolve(ctx, actorID, target)
	if err != nil {
		return user, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var review models.Review
		err := tx.Where("reviewer_id = ? AND user_id = ?", actorID, user.ID).First(&review).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			review = models.Review{ReviewerID: actorID, UserID: user.ID, Feedback: &like}
			if err := tx.Create(&review).Error; err != nil {
				return err
			}
			return adjust(tx, user.ID, weight(like))
		}
		if err != nil {
			return err
		}

		if review.Feedback != nil && *review.Feedback == like {
			return errmsg.New(errmsg.Ratings, errmsg.RatingNotChanged)
		}

		delta := weight(like)
		q := tx.Model(&models.Review{}).Where("id = ?", review.ID)
		if review.Feedback == nil {
			q = q.Where("feedback IS NULL")
		} else {
			q = q.Where("feedback = ?", *review.Feedback)
			delta *= 2
		}
		res := q.Update("feedback", like)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// a concurrent request already applied this feedback
			return errmsg.New(errmsg.Ratings, errmsg.RatingNotChanged)
		}
		return adjust(tx, user.ID, delta)
	})
	if err != nil {
		var coded *errmsg.Error
		if errors.As(err, &coded) {
			return user, err
		}
		return user, fmt.Errorf("failed to add review: %w", err)
	}

	s.logger.Debug("Review added", zap.Uint("reviewerID", actorID), zap.Uint("userID", user.ID), zap.Bool("like", like))
	return user, nil
}

// DropReview deletes actorID's review of the target and reverses its effect on the rating.
func (s *Service) DropReview(ctx context.Context, actorID uint, target Target) (*models.User, error) {
	user, err := s.resolve(ctx, actorID, target)
	if err != nil {
		return user, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var review models.Review
		err := tx.Where("reviewer_id = ? AND user_id = ?", actorID, user.ID).First(&review).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errmsg.New(errmsg.Ratings, errmsg.RatingEmpty)
		}
		if err != nil {
			return err
		}

		res := tx.Delete(&models.Review{}, review.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errmsg.New(errmsg.Ratings, errmsg.RatingEmpty)
		}
		if review.Feedback == nil {
			return nil
		}
		return adjust(tx, user.ID, -weight(*review.Feedback))
	})
	if err != nil {
		var coded *errmsg.Error
		if errors.As(err, &coded) {
			return user, err
		}
		return user, fmt.Errorf("failed to drop review: %w", err)
	}
	return user, nil
}

// Info returns the rating of userID and the viewer's own feedback, if any.
func (s *Service) Info(ctx context.Context, viewerID, userID uint) (Info, error) {
	var info Info
	db := s.db.WithContext(ctx)

	var r models.UserRating
	err := db.Where("user_id = ?", userID).First(&r).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return info, fmt.Errorf("failed to load rating: %w", err)
	}
	info.Rating = r.Rating

	if err := db.Model(&models.Review{}).Where("user_id = ? AND feedback IS NOT NULL", userID).Count(&info.Reviews).Error; err != nil {
		return info, fmt.Errorf("failed to count reviews: %w", err)
	}

	if viewerID != 0 && viewerID != userID {
		var review models.Review
		err := db.Where("reviewer_id = ? AND user_id = ?", viewerID, userID).First(&review).Error
		if err == nil {
			info.Feedback = review.Feedback
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return info, fmt.Errorf("failed to load review: %w", err)
		}
	}
	return info, nil
}
