package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/services/accounts"
	"github.com/waflawe/Omenforcer/backend/services/rating"
	"github.com/waflawe/Omenforcer/backend/services/settings"
	"github.com/waflawe/Omenforcer/backend/utils"
)

type UserController struct {
	Accounts *accounts.Service
	Settings *settings.Service
	Rating   *rating.Service
	Storage  *utils.Storage
}

func NewUserController(a *accounts.Service, s *settings.Service, r *rating.Service, storage *utils.Storage) *UserController {
	return &UserController{Accounts: a, Settings: s, Rating: r, Storage: storage}
}

// UpdateSettingsResponse reports whether any setting was applied
type UpdateSettingsResponse struct {
	Updated bool `json:"updated"`
}

func userID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusNotFound, "User not found")
	}
	return uint(id), nil
}

func (uc *UserController) profile(c *fiber.Ctx, id uint) error {
	user, err := uc.Accounts.User(c.UserContext(), id, "")
	if err != nil {
		return err
	}
	if user == nil {
		return utils.NotFound(c, "User not found")
	}

	info, err := uc.Rating.Info(c.UserContext(), utils.CurrentUserID(c), user.ID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, newPresenter(c, uc.Settings, uc.Storage).user(*user, info))
}

// GetUser godoc
// @Summary Get user profile
// @Description Returns a public profile. Dates are shown in the viewer's timezone.
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} utils.SuccessResponse{data=UserResponse}
// @Failure 404 {object} utils.ErrorResponse
// @Router /user/{id} [get]
func (uc *UserController) GetUser(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	return uc.profile(c, id)
}

func (uc *UserController) review(c *fiber.Ctx, apply func(actorID uint, target rating.Target) error) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	if err := apply(utils.CurrentUserID(c), rating.ByID(id)); err != nil {
		return err
	}
	return uc.profile(c, id)
}

// Like godoc
// @Summary Like user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} utils.SuccessResponse{data=UserResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /reviewuser/like/{id} [post]
func (uc *UserController) Like(c *fiber.Ctx) error {
	return uc.review(c, func(actorID uint, target rating.Target) error {
		_, err := uc.Rating.AddReview(c.UserContext(), actorID, target, true)
		return err
	})
}

// Dislike godoc
// @Summary Dislike user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} utils.SuccessResponse{data=UserResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /reviewuser/dislike/{id} [post]
func (uc *UserController) Dislike(c *fiber.Ctx) error {
	return uc.review(c, func(actorID uint, target rating.Target) error {
		_, err := uc.Rating.AddReview(c.UserContext(), actorID, target, false)
		return err
	})
}

// DropReview godoc
// @Summary Drop review
// @Description Removes the caller's like or dislike and reverses its effect on the rating
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} utils.SuccessResponse{data=UserResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /reviewuser/drop/{id} [post]
func (uc *UserController) DropReview(c *fiber.Ctx) error {
	return uc.review(c, func(actorID uint, target rating.Target) error {
		_, err := uc.Rating.DropReview(c.UserContext(), actorID, target)
		return err
	})
}

// UpdateSettings godoc
// @Summary Update settings
// @Description Applies every submitted setting in order and stops at the first invalid one
// @Tags users
// @Accept mpfd
// @Produce json
// @Param timezone formData string false "IANA timezone"
// @Param avatar formData file false "Avatar image"
// @Param signature formData string false "Signature, up to 256 characters"
// @Success 200 {object} utils.SuccessResponse{data=UpdateSettingsResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /updatesettings [post]
func (uc *UserController) UpdateSettings(c *fiber.Ctx) error {
	data, err := utils.ReadForm(c)
	if err != nil {
		return err
	}

	updated, err := uc.Settings.Update(c.UserContext(), utils.CurrentUserID(c), data, forms.SourceAPI)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, UpdateSettingsResponse{Updated: updated})
}
