// Package views renders the server-side forum site.
package views

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/waflawe/Omenforcer/backend/config"
	"github.com/waflawe/Omenforcer/backend/errmsg"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/services/accounts"
	"github.com/waflawe/Omenforcer/backend/services/forum"
	"github.com/waflawe/Omenforcer/backend/services/rating"
	"github.com/waflawe/Omenforcer/backend/services/settings"
	"github.com/waflawe/Omenforcer/backend/utils"
	"go.uber.org/zap"
)

//go:embed templates
var templatesFS embed.FS

// Layout wraps every page.
const Layout = "layouts/main"

// LoginURL is where LoginRequired sends anonymous visitors.
const LoginURL = "/auth/"

// Site holds the page handlers of the server-rendered forum.
type Site struct {
	Accounts *accounts.Service
	Forum    *forum.Service
	Settings *settings.Service
	Rating   *rating.Service
	Storage  *utils.Storage
	Cfg      *config.Config
	logger   *zap.Logger
}

func NewSite(a *accounts.Service, f *forum.Service, s *settings.Service, r *rating.Service, storage *utils.Storage, cfg *config.Config, logger *zap.Logger) *Site {
	return &Site{
		Accounts: a,
		Forum:    f,
		Settings: s,
		Rating:   r,
		Storage:  storage,
		Cfg:      cfg,
		logger:   logger.Named("site"),
	}
}

// Engine builds the template engine over the embedded templates.
func (s *Site) Engine() *html.Engine {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}

	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("markdown", Markdown)
	engine.AddFunc("media", s.Storage.FileURL)
	engine.AddFunc("crop", func(rel string) string {
		if rel == "" {
			return ""
		}
		return s.Storage.FileURL(utils.CropPath(rel))
	})
	engine.AddFunc("sectionName", func(alias string) string {
		name, _ := models.SectionName(alias)
		return name
	})
	engine.AddFunc("add", func(a, b int) int { return a + b })
	return engine
}

// viewer is the visitor a page is rendered for.
type viewer struct {
	ID        uint
	Username  string
	Superuser bool
	Zone      string
	loc       *time.Location
}

func (v viewer) Authenticated() bool { return v.ID != 0 }

// Time formats t in the viewer's timezone.
func (v viewer) Time(t time.Time) string {
	return t.In(v.loc).Format(utils.DisplayTimeLayout)
}

// TimePtr is Time for optional timestamps.
func (v viewer) TimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return v.Time(*t)
}

func (s *Site) viewer(c *fiber.Ctx) viewer {
	ctx := c.UserContext()
	v := viewer{ID: utils.CurrentUserID(c)}
	v.Zone = s.Settings.Timezone(ctx, v.ID)
	v.loc = s.Settings.Location(ctx, v.ID)
	if v.ID != 0 {
		if u, err := s.Accounts.User(ctx, v.ID, ""); err == nil && u != nil {
			v.Username = u.Username
			v.Superuser = u.IsSuperuser
		} else {
			v.ID = 0
		}
	}
	return v
}

func (s *Site) render(c *fiber.Ctx, name string, bind fiber.Map) error {
	if bind == nil {
		bind = fiber.Map{}
	}
	bind["Viewer"] = s.viewer(c)
	bind["Sections"] = models.Sections
	return c.Render(name, bind, Layout)
}

// message localizes a coded error for the visitor.
func message(c *fiber.Ctx, err error) string {
	var coded *errmsg.Error
	if errors.As(err, &coded) {
		return coded.Localize(errmsg.PrinterFor(c.Get(fiber.HeaderAcceptLanguage)))
	}
	return ""
}

// ErrorHandler renders site errors as pages and leaves API errors to the JSON handler.
func (s *Site) ErrorHandler(c *fiber.Ctx, err error) error {
	if strings.HasPrefix(c.Path(), "/api/") {
		return utils.ErrorHandler(c, err)
	}

	status := fiber.StatusInternalServerError
	text := "Internal server error"
	var fe *fiber.Error
	var coded *errmsg.Error
	switch {
	case errors.As(err, &coded):
		status, text = fiber.StatusBadRequest, message(c, err)
	case errors.As(err, &fe):
		status, text = fe.Code, fe.Message
	}

	c.Status(status)
	if rerr := s.render(c, "error", fiber.Map{"Status": status, "Message": text}); rerr != nil {
		s.logger.Error("Failed to render error page", zap.Error(rerr))
		return c.SendString(text)
	}
	return nil
}

// pageLink keeps the current query string and replaces the offset.
func pageLink(c *fiber.Ctx, offset *int) string {
	if offset == nil {
		return ""
	}
	q := url.Values{}
	for k, v := range c.Queries() {
		q.Set(k, v)
	}
	q.Set("offset", strconv.Itoa(*offset))
	return c.Path() + "?" + q.Encode()
}

// Pager is the next/back navigation of a listing.
type Pager struct {
	Offset int
	Total  int64
	Next   string
	Back   string
}

func pager(c *fiber.Ctx, p forum.Page, total int64) Pager {
	return Pager{Offset: p.Offset, Total: total, Next: pageLink(c, p.Next), Back: pageLink(c, p.Back)}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusNotFound, "Not found")
	}
	return uint(id), nil
}

// safeNext accepts only local redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}
