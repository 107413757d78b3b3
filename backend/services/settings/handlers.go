package settings

import (
	"context"
	"fmt"

	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Persister saves a settings record.
type Persister interface {
	SaveSettings(ctx context.Context, us *models.UserSettings) error
}

// CropQueue schedules the square crop of a stored image.
type CropQueue interface {
	Enqueue(ctx context.Context, path string) error
}

// GormPersister stores settings with gorm.
type GormPersister struct {
	DB *gorm.DB
}

func (p GormPersister) SaveSettings(ctx context.Context, us *models.UserSettings) error {
	if err := p.DB.WithContext(ctx).Save(us).Error; err != nil {
		return fmt.Errorf("failed to save settings of user %d: %w", us.UserID, err)
	}
	return nil
}

type TimezoneHandler struct {
	Persister Persister
}

func (h *TimezoneHandler) Handle(ctx context.Context, s Setting, us *models.UserSettings, data utils.FormData, _ forms.Source) error {
	tz := data.Value(s.Field)
	if !forms.ValidTimezone(tz) {
		return s.Err()
	}
	us.Timezone = tz
	return h.Persister.SaveSettings(ctx, us)
}

type AvatarHandler struct {
	Persister     Persister
	Storage       *utils.Storage
	Crops         CropQueue
	DefaultAvatar string
	Logger        *zap.Logger
}

func (h *AvatarHandler) RequiresValidation() bool { return true }

// Handle stores the new avatar and persists it before the previous file is removed.
func (h *AvatarHandler) Handle(ctx context.Context, s Setting, us *models.UserSettings, data utils.FormData, src forms.Source) error {
	res := forms.Run(s.Validation.For(src), data.Only(s.Field))
	if !res.Valid {
		return s.Err()
	}
	fh := res.Cleaned.File(s.Field)
	ext, err := utils.ImageExt(fh)
	if err != nil {
		return s.Err()
	}

	rel := utils.AvatarUploadPath(us.UserID, ext)
	if err := h.Storage.Save(fh, rel); err != nil {
		return err
	}
	old := us.Avatar
	us.Avatar = rel
	if err := h.Persister.SaveSettings(ctx, us); err != nil {
		us.Avatar = old
		return err
	}

	logger := h.logger()
	if old != "" && old != rel && old != h.DefaultAvatar {
		if err := h.Storage.Remove(old); err != nil {
			logger.Warn("Failed to remove old avatar", zap.Uint("userID", us.UserID), zap.String("path", old), zap.Error(err))
		}
	}
	if h.Crops != nil {
		if err := h.Crops.Enqueue(ctx, rel); err != nil {
			logger.Warn("Failed to enqueue crop", zap.String("path", rel), zap.Error(err))
		}
	}
	return nil
}

func (h *AvatarHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

type SignatureHandler struct {
	Persister Persister
}

func (h *SignatureHandler) RequiresValidation() bool { return true }

func (h *SignatureHandler) Handle(ctx context.Context, s Setting, us *models.UserSettings, data utils.FormData, src forms.Source) error {
	res := forms.Run(s.Validation.For(src), data.Only(s.Field))
	if !res.Valid {
		return s.Err()
	}
	us.Signature = res.Cleaned.Value(s.Field)
	return h.Persister.SaveSettings(ctx, us)
}
