package routes

import (
	"github.com/gofiber/fiber/v2"
	fiberSwagger "github.com/swaggo/fiber-swagger"
	"github.com/waflawe/Omenforcer/backend/config"
	"github.com/waflawe/Omenforcer/backend/controllers"
	"github.com/waflawe/Omenforcer/backend/middleware"
	"github.com/waflawe/Omenforcer/backend/services/accounts"
	"github.com/waflawe/Omenforcer/backend/services/forum"
	"github.com/waflawe/Omenforcer/backend/services/rating"
	"github.com/waflawe/Omenforcer/backend/services/settings"
	"github.com/waflawe/Omenforcer/backend/utils"
	"github.com/waflawe/Omenforcer/backend/views"
)

// Services is everything the handlers need.
type Services struct {
	Accounts *accounts.Service
	Forum    *forum.Service
	Settings *settings.Service
	Rating   *rating.Service
	Storage  *utils.Storage
}

func SetupRoutes(app *fiber.App, site *views.Site, s Services, cfg *config.Config) {
	app.Static(cfg.MediaURL, cfg.MediaRoot)

	setupAPI(app, s, cfg)
	setupSite(app, site, cfg)
}

func setupAPI(app *fiber.App, s Services, cfg *config.Config) {
	api := app.Group("/api/v1", middleware.OptionalAuth(cfg))
	authMiddleware := middleware.AuthMiddleware(cfg)

	// Schema
	api.Get("/schema", controllers.Schema)
	api.Get("/schema/docs/*", fiberSwagger.WrapHandler)

	// Auth routes
	authController := controllers.NewAuthController(s.Accounts, cfg)
	api.Post("/auth/register", authController.Register)
	api.Post("/auth/login", authController.Login)

	// Topic routes
	topicsController := controllers.NewTopicsController(s.Forum, s.Settings, s.Storage)
	api.Get("/topics", topicsController.GetTopics)
	api.Post("/topics", authMiddleware, topicsController.CreateTopic)
	api.Get("/topics/:id", topicsController.GetTopic)
	api.Delete("/topics/:id", authMiddleware, topicsController.DeleteTopic)
	api.Get("/sections", topicsController.GetSections)
	api.Get("/sections/:section", topicsController.GetSectionTopics)

	// Comment routes
	commentsController := controllers.NewCommentsController(s.Forum, s.Settings, s.Storage)
	api.Get("/topics/:id/comments", commentsController.GetTopicComments)
	api.Post("/addcomment", authMiddleware, commentsController.AddComment)

	// User routes
	userController := controllers.NewUserController(s.Accounts, s.Settings, s.Rating, s.Storage)
	api.Get("/user/:id", userController.GetUser)
	api.Post("/updatesettings", authMiddleware, userController.UpdateSettings)
	reviews := api.Group("/reviewuser", authMiddleware)
	reviews.Post("/like/:id", userController.Like)
	reviews.Post("/dislike/:id", userController.Dislike)
	reviews.Post("/drop/:id", userController.DropReview)
}

func setupSite(app *fiber.App, site *views.Site, cfg *config.Config) {
	web := app.Group("/", middleware.OptionalAuth(cfg))
	loginRequired := middleware.LoginRequired(views.LoginURL)

	web.Get("/", site.Home)
	web.Get("/auth/", site.AuthPage)
	web.Post("/auth/", site.Auth)
	web.Get("/register/", site.RegisterPage)
	web.Post("/register/", site.Register)
	web.Get("/logout/", site.Logout)
	web.Get("/settings/", loginRequired, site.SettingsPage)
	web.Post("/settings/", loginRequired, site.UpdateSettings)

	account := web.Group("/account")
	account.Get("/:username/", site.Account)
	account.Post("/like/:username/", loginRequired, site.Like)
	account.Post("/dislike/:username/", loginRequired, site.Dislike)
	account.Post("/drop-review/:username/", loginRequired, site.DropReview)

	board := web.Group("/forum")
	board.Get("/", site.ForumHome)
	board.Get("/add_topic/", loginRequired, site.AddTopicPage)
	board.Post("/add_topic/", loginRequired, site.AddTopic)
	board.Get("/my_topics/", loginRequired, site.MyTopics)
	board.Get("/search/", site.Search)
	board.Get("/:section/", site.Section)
	board.Get("/:section/:id/", site.Topic)
	board.Get("/:section/:id/add_comment/", loginRequired, site.AddCommentPage)
	board.Post("/:section/:id/add_comment/", loginRequired, site.AddComment)
	board.Get("/:section/:id/delete/", loginRequired, site.DeletePage)
	board.Post("/:section/:id/delete/", loginRequired, site.Delete)
}
