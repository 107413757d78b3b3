// Package accounts registers users and checks their credentials.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waflawe/Omenforcer/backend/errmsg"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db            *gorm.DB
	defaultAvatar string
	cost          int
	logger        *zap.Logger
}

func NewService(db *gorm.DB, defaultAvatar string, logger *zap.Logger) *Service {
	return &Service{
		db:            db,
		defaultAvatar: defaultAvatar,
		cost:          bcrypt.DefaultCost,
		logger:        logger.Named("accounts"),
	}
}

// Register validates the payload and creates the user with its settings and rating rows.
func (s *Service) Register(ctx context.Context, data utils.FormData, src forms.Source) (*models.User, error) {
	res := forms.Run(forms.Pick(src, &forms.RegisterForm{}, &forms.RegisterSerializer{}), data)
	if !res.Valid {
		return nil, errmsg.FromField(errmsg.Auth, res.Field)
	}

	username := res.Cleaned.Value("username")
	var taken int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&taken).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken > 0 {
		return nil, &errmsg.Error{Domain: errmsg.Auth, Code: errmsg.AuthUsernameTaken, Field: "username"}
	}

	password := res.Cleaned.Value("password1")
	if src == forms.SourceAPI {
		password = res.Cleaned.Value("password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{Username: username, PasswordHash: string(hash)}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.UserSettings{
			UserID:   user.ID,
			Timezone: models.EmptyTimezone,
			Avatar:   s.defaultAvatar,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserRating{UserID: user.ID}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Uint("userID", user.ID), zap.String("username", user.Username))
	return &user, nil
}

// Authenticate checks the credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, data utils.FormData, src forms.Source) (*models.User, error) {
	res := forms.Run(forms.Pick(src, &forms.AuthForm{}, &forms.AuthSerializer{}), data)
	if !res.Valid {
		return nil, errmsg.New(errmsg.Auth, errmsg.AuthInvalidCredentials)
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", res.Cleaned.Value("username")).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errmsg.New(errmsg.Auth, errmsg.AuthInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(res.Cleaned.Value("password"))); err != nil {
		return nil, errmsg.New(errmsg.Auth, errmsg.AuthInvalidCredentials)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("last_login", now).Error; err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLogin = &now
	return &user, nil
}

// User loads a user by id or username. Missing users are reported as nil, nil.
func (s *Service) User(ctx context.Context, id uint, username string) (*models.User, error) {
	var user models.User
	q := s.db.WithContext(ctx)
	var err error
	if id != 0 {
		err = q.First(&user, id).Error
	} else {
		err = q.Where("username = ?", username).First(&user).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}
