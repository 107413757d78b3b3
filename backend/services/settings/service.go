package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/waflawe/Omenforcer/backend/cache"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	registry *Registry
	cache    *cache.Cache
	ttl      time.Duration
	storage  *utils.Storage

	defaultTimezone string
	defaultAvatar   string
	logger          *zap.Logger
}

type Options struct {
	CacheTTL        time.Duration
	DefaultTimezone string
	DefaultAvatar   string
}

func NewService(db *gorm.DB, registry *Registry, c *cache.Cache, storage *utils.Storage, opts Options, logger *zap.Logger) *Service {
	return &Service{
		db:              db,
		registry:        registry,
		cache:           c,
		ttl:             opts.CacheTTL,
		storage:         storage,
		defaultTimezone: opts.DefaultTimezone,
		defaultAvatar:   opts.DefaultAvatar,
		logger:          logger.Named("settings"),
	}
}

func cacheKey(userID uint) string {
	return fmt.Sprintf("%d:user_settings", userID)
}

// Update runs the handler of every submitted setting, stopping at the first error.
// success reports whether at least one setting was applied.
func (s *Service) Update(ctx context.Context, userID uint, data utils.FormData, src forms.Source) (success bool, err error) {
	var us models.UserSettings
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&us).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fiber.NewError(fiber.StatusNotFound, "Settings not found")
		}
		return false, fmt.Errorf("failed to load settings: %w", err)
	}

	defer func() {
		if success || err != nil {
			s.invalidate(ctx, userID)
		}
	}()

	for _, setting := range s.registry.Settings() {
		if !data.Has(setting.Field) {
			continue
		}
		if err := setting.Handler.Handle(ctx, setting, &us, data, src); err != nil {
			s.logger.Debug("Setting rejected",
				zap.Uint("userID", userID),
				zap.String("field", setting.Field),
				zap.Stringer("source", src),
				zap.Error(err))
			return false, err
		}
		success = true
	}
	return success, nil
}

func (s *Service) invalidate(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(userID)); err != nil {
		s.logger.Warn("Failed to invalidate settings cache", zap.Uint("userID", userID), zap.Error(err))
	}
}

// Get returns the settings of userID, served from the cache when possible.
func (s *Service) Get(ctx context.Context, userID uint) (*models.UserSettings, error) {
	load := func() (*models.UserSettings, error) {
		var us models.UserSettings
		if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&us).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fiber.NewError(fiber.StatusNotFound, "Settings not found")
			}
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		return &us, nil
	}
	if s.cache == nil {
		return load()
	}
	return cache.Remember(ctx, s.cache, cacheKey(userID), s.ttl, load)
}

// Timezone returns the zone name to render times in for userID.
// Anonymous users and users who never picked a zone get the default.
func (s *Service) Timezone(ctx context.Context, userID uint) string {
	if userID == 0 {
		return s.defaultTimezone
	}
	us, err := s.Get(ctx, userID)
	if err != nil || us.Timezone == "" || us.Timezone == models.EmptyTimezone {
		return s.defaultTimezone
	}
	return us.Timezone
}

// Location is Timezone resolved to a *time.Location.
func (s *Service) Location(ctx context.Context, userID uint) *time.Location {
	loc, err := time.LoadLocation(s.Timezone(ctx, userID))
	if err != nil {
		return time.UTC
	}
	return loc
}

// AvatarPath returns the cropped avatar, or the shared default avatar as is.
func (s *Service) AvatarPath(us *models.UserSettings) string {
	if us == nil || us.Avatar == "" || us.Avatar == s.defaultAvatar {
		return s.defaultAvatar
	}
	return utils.CropPath(us.Avatar)
}

// AvatarURL is AvatarPath as a public URL.
func (s *Service) AvatarURL(us *models.UserSettings) string {
	return s.storage.FileURL(s.AvatarPath(us))
}
