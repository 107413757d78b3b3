// Package settings applies per-user settings through a registry of typed handlers.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/waflawe/Omenforcer/backend/errmsg"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/utils"
	"go.uber.org/zap"
)

// ValidationClasses pairs the site form and the API serializer for one setting.
type ValidationClasses struct {
	Site func() forms.Validator
	API  func() forms.Validator
}

// For returns a fresh validator for src.
func (vc *ValidationClasses) For(src forms.Source) forms.Validator {
	if src == forms.SourceAPI {
		return vc.API()
	}
	return vc.Site()
}

// Handler applies one setting to a settings record and persists it.
// It returns the setting's coded error when the submitted value is invalid.
type Handler interface {
	Handle(ctx context.Context, s Setting, us *models.UserSettings, data utils.FormData, src forms.Source) error
}

// validatedHandler is implemented by handlers that cannot run without validation classes.
type validatedHandler interface {
	RequiresValidation() bool
}

type Setting struct {
	Field      string
	Code       errmsg.Code
	Handler    Handler
	Validation *ValidationClasses
}

// Err is the coded error reported when this setting rejects its input.
func (s Setting) Err() *errmsg.Error {
	return &errmsg.Error{Domain: errmsg.Settings, Code: s.Code, Field: s.Field}
}

// Registry is the ordered list of settings checked when building the app.
type Registry struct {
	settings []Setting
}

func NewRegistry(settings ...Setting) (*Registry, error) {
	seen := make(map[string]bool, len(settings))
	for _, s := range settings {
		if s.Field == "" {
			return nil, errors.New("setting without field")
		}
		if seen[s.Field] {
			return nil, fmt.Errorf("setting %q registered twice", s.Field)
		}
		seen[s.Field] = true

		if s.Handler == nil {
			return nil, fmt.Errorf("setting %q has no handler", s.Field)
		}
		if vh, ok := s.Handler.(validatedHandler); ok && vh.RequiresValidation() {
			if s.Validation == nil || s.Validation.Site == nil || s.Validation.API == nil {
				return nil, fmt.Errorf("setting %q needs site and API validators", s.Field)
			}
		}
	}
	return &Registry{settings: settings}, nil
}

// Settings returns the registered settings in order.
func (r *Registry) Settings() []Setting {
	return r.settings
}

// Fields returns the registered field names in order.
func (r *Registry) Fields() []string {
	fields := make([]string, len(r.settings))
	for i, s := range r.settings {
		fields[i] = s.Field
	}
	return fields
}

// Deps are the collaborators of the built-in handlers.
type Deps struct {
	Persister Persister
	Storage   *utils.Storage
	Crops     CropQueue
	// DefaultAvatar is the relative path of the shared avatar; it is never deleted.
	DefaultAvatar string
	Logger        *zap.Logger
}

// DefaultRegistry registers timezone, avatar and signature.
func DefaultRegistry(d Deps) (*Registry, error) {
	return NewRegistry(
		Setting{
			Field:   "timezone",
			Code:    errmsg.SettingInvalidTimezone,
			Handler: &TimezoneHandler{Persister: d.Persister},
		},
		Setting{
			Field: "avatar",
			Code:  errmsg.SettingInvalidAvatar,
			Handler: &AvatarHandler{
				Persister:     d.Persister,
				Storage:       d.Storage,
				Crops:         d.Crops,
				DefaultAvatar: d.DefaultAvatar,
				Logger:        d.Logger,
			},
			Validation: &ValidationClasses{
				Site: func() forms.Validator { return &forms.AvatarForm{} },
				API:  func() forms.Validator { return &forms.AvatarSerializer{} },
			},
		},
		Setting{
			Field:   "signature",
			Code:    errmsg.SettingInvalidSignature,
			Handler: &SignatureHandler{Persister: d.Persister},
			Validation: &ValidationClasses{
				Site: func() forms.Validator { return &forms.SignatureForm{} },
				API:  func() forms.Validator { return &forms.SignatureSerializer{} },
			},
		},
	)
}
