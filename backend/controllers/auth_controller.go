package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/waflawe/Omenforcer/backend/config"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/services/accounts"
	"github.com/waflawe/Omenforcer/backend/utils"
)

type AuthController struct {
	Accounts *accounts.Service
	Cfg      *config.Config
}

func NewAuthController(accounts *accounts.Service, cfg *config.Config) *AuthController {
	return &AuthController{Accounts: accounts, Cfg: cfg}
}

// RegisterRequest defines the request body for registration
type RegisterRequest struct {
	Username  string `json:"username" example:"gopher" minLength:"5" maxLength:"25"`
	Password  string `json:"password" example:"correct-horse" minLength:"8" maxLength:"64"`
	Password2 string `json:"password2" example:"correct-horse"`
}

// LoginRequest defines the request body for login
type LoginRequest struct {
	Username string `json:"username" example:"gopher"`
	Password string `json:"password" example:"correct-horse"`
}

// TokenResponse is returned after a successful register or login
type TokenResponse struct {
	Token string         `json:"token"`
	User  AuthorResponse `json:"user"`
}

func (ac *AuthController) tokenFor(c *fiber.Ctx, status int, user *models.User) error {
	token, err := utils.GenerateJWTToken(user.ID, ac.Cfg)
	if err != nil {
		return utils.InternalServerError(c, "Could not generate token")
	}
	return utils.Success(c, status, TokenResponse{
		Token: token,
		User:  AuthorResponse{ID: user.ID, Username: user.Username},
	})
}

// Register godoc
// @Summary Register a new user
// @Description Creates a user together with its settings and rating
// @Tags auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "User registration data"
// @Success 201 {object} utils.SuccessResponse{data=TokenResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Router /auth/register [post]
func (ac *AuthController) Register(c *fiber.Ctx) error {
	data, err := utils.ReadForm(c)
	if err != nil {
		return err
	}

	user, err := ac.Accounts.Register(c.UserContext(), data, forms.SourceAPI)
	if err != nil {
		return err
	}
	return ac.tokenFor(c, fiber.StatusCreated, user)
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} utils.SuccessResponse{data=TokenResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Router /auth/login [post]
func (ac *AuthController) Login(c *fiber.Ctx) error {
	data, err := utils.ReadForm(c)
	if err != nil {
		return err
	}

	user, err := ac.Accounts.Authenticate(c.UserContext(), data, forms.SourceAPI)
	if err != nil {
		return err
	}
	return ac.tokenFor(c, fiber.StatusOK, user)
}
