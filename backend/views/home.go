package views

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/waflawe/Omenforcer/backend/errmsg"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/services/rating"
	"github.com/waflawe/Omenforcer/backend/utils"
)

// Timezones offered on the settings page. Any IANA name is accepted.
var Timezones = []string{
	"UTC",
	"Europe/London", "Europe/Berlin", "Europe/Paris", "Europe/Kyiv", "Europe/Minsk",
	"Europe/Moscow", "Europe/Samara", "Asia/Yekaterinburg", "Asia/Omsk", "Asia/Novosibirsk",
	"Asia/Krasnoyarsk", "Asia/Irkutsk", "Asia/Yakutsk", "Asia/Vladivostok", "Asia/Magadan",
	"Asia/Kamchatka", "Asia/Almaty", "Asia/Tashkent", "Asia/Tbilisi", "Asia/Dubai",
	"Asia/Kolkata", "Asia/Shanghai", "Asia/Tokyo", "Australia/Sydney",
	"America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles", "America/Sao_Paulo",
}

func (s *Site) Home(c *fiber.Ctx) error {
	info, err := s.Forum.Info(c.UserContext())
	if err != nil {
		return err
	}
	return s.render(c, "home", fiber.Map{"Info": info})
}

func (s *Site) AuthPage(c *fiber.Ctx) error {
	if utils.CurrentUserID(c) != 0 {
		return c.Redirect("/", fiber.StatusFound)
	}
	return s.render(c, "auth", fiber.Map{
		"Next":        c.Query("next"),
		"ShowSuccess": c.Query("show_success") != "",
	})
}

func (s *Site) Auth(c *fiber.Ctx) error {
	if utils.CurrentUserID(c) != 0 {
		return c.Redirect("/", fiber.StatusFound)
	}
	data, err := utils.ReadForm(c)
	if err != nil {
		return err
	}

	user, err := s.Accounts.Authenticate(c.UserContext(), data, forms.SourceSite)
	if err != nil {
		if msg := message(c, err); msg != "" {
			c.Status(fiber.StatusBadRequest)
			return s.render(c, "auth", fiber.Map{
				"Error":    msg,
				"Username": data.Value("username"),
				"Next":     c.Query("next"),
			})
		}
		return err
	}

	token, err := utils.GenerateJWTToken(user.ID, s.Cfg)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     utils.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.Cfg.JWTTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(safeNext(c.Query("next")), fiber.StatusFound)
}

func (s *Site) Logout(c *fiber.Ctx) error {
	c.ClearCookie(utils.TokenCookie)
	return c.Redirect(LoginURL, fiber.StatusFound)
}

func (s *Site) RegisterPage(c *fiber.Ctx) error {
	if utils.CurrentUserID(c) != 0 {
		return c.Redirect("/", fiber.StatusFound)
	}
	return s.render(c, "register", nil)
}

func (s *Site) Register(c *fiber.Ctx) error {
	if utils.CurrentUserID(c) != 0 {
		return c.Redirect("/", fiber.StatusFound)
	}
	data, err := utils.ReadForm(c)
	if err != nil {
		return err
	}

	if _, err := s.Accounts.Register(c.UserContext(), data, forms.SourceSite); err != nil {
		if msg := message(c, err); msg != "" {
			c.Status(fiber.StatusBadRequest)
			return s.render(c, "register", fiber.Map{
				"Error":    msg,
				"Username": data.Value("username"),
			})
		}
		return err
	}
	return c.Redirect(LoginURL+"?show_success=1", fiber.StatusFound)
}

func (s *Site) SettingsPage(c *fiber.Ctx) error {
	us, err := s.Settings.Get(c.UserContext(), utils.CurrentUserID(c))
	if err != nil {
		return err
	}
	return s.render(c, "settings", fiber.Map{
		"Timezones":   Timezones,
		"Current":     us,
		"Avatar":      s.Settings.AvatarURL(us),
		"ShowSuccess": c.Query("show_success") != "",
	})
}

func (s *Site) UpdateSettings(c *fiber.Ctx) error {
	data, err := utils.ReadForm(c)
	if err != nil {
		return err
	}

	userID := utils.CurrentUserID(c)
	if _, err := s.Settings.Update(c.UserContext(), userID, data, forms.SourceSite); err != nil {
		msg := message(c, err)
		if msg == "" {
			return err
		}
		us, gerr := s.Settings.Get(c.UserContext(), userID)
		if gerr != nil {
			return gerr
		}
		c.Status(fiber.StatusBadRequest)
		return s.render(c, "settings", fiber.Map{
			"Timezones": Timezones,
			"Current":   us,
			"Avatar":    s.Settings.AvatarURL(us),
			"Error":     msg,
		})
	}
	return c.Redirect("/settings/?show_success=1", fiber.StatusFound)
}

func (s *Site) Account(c *fiber.Ctx) error {
	username, err := url.PathUnescape(c.Params("username"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	}
	user, err := s.Accounts.User(c.UserContext(), 0, username)
	if err != nil {
		return err
	}
	if user == nil {
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	}

	us, err := s.Settings.Get(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	info, err := s.Rating.Info(c.UserContext(), utils.CurrentUserID(c), user.ID)
	if err != nil {
		return err
	}

	return s.render(c, "account", fiber.Map{
		"User":        user,
		"Avatar":      s.Settings.AvatarURL(us),
		"Signature":   us.Signature,
		"Rating":      info,
		"Liked":       info.Feedback != nil && *info.Feedback,
		"Disliked":    info.Feedback != nil && !*info.Feedback,
		"Own":         user.ID == utils.CurrentUserID(c),
		"Error":       c.Query("error"),
		"ShowSuccess": c.Query("show_success") != "",
	})
}

// review applies a rating action and returns to the profile, carrying a coded error in the query.
func (s *Site) review(c *fiber.Ctx, apply func(actorID uint, target rating.Target) error) error {
	username, err := url.PathUnescape(c.Params("username"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	}

	back := "/account/" + url.PathEscape(username) + "/"
	err = apply(utils.CurrentUserID(c), rating.ByUsername(username))
	switch {
	case err == nil:
		return c.Redirect(back+"?show_success=1", fiber.StatusFound)
	case errmsg.Is(err, errmsg.Ratings, errmsg.RatingUserNotFound):
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	default:
		var coded *errmsg.Error
		if errors.As(err, &coded) {
			return c.Redirect(back+"?error="+url.QueryEscape(message(c, err)), fiber.StatusFound)
		}
		return err
	}
}

func (s *Site) Like(c *fiber.Ctx) error {
	return s.review(c, func(actorID uint, target rating.Target) error {
		_, err := s.Rating.AddReview(c.UserContext(), actorID, target, true)
		return err
	})
}

func (s *Site) Dislike(c *fiber.Ctx) error {
	return s.review(c, func(actorID uint, target rating.Target) error {
		_, err := s.Rating.AddReview(c.UserContext(), actorID, target, false)
		return err
	})
}

func (s *Site) DropReview(c *fiber.Ctx) error {
	return s.review(c, func(actorID uint, target rating.Target) error {
		_, err := s.Rating.DropReview(c.UserContext(), actorID, target)
		return err
	})
}
