package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/urfave/cli/v3"
	"github.com/waflawe/Omenforcer/backend/cache"
	"github.com/waflawe/Omenforcer/backend/config"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/middleware"
	"github.com/waflawe/Omenforcer/backend/redis"
	"github.com/waflawe/Omenforcer/backend/routes"
	"github.com/waflawe/Omenforcer/backend/services/accounts"
	"github.com/waflawe/Omenforcer/backend/services/forum"
	"github.com/waflawe/Omenforcer/backend/services/rating"
	"github.com/waflawe/Omenforcer/backend/services/settings"
	"github.com/waflawe/Omenforcer/backend/tasks"
	"github.com/waflawe/Omenforcer/backend/utils"
	"github.com/waflawe/Omenforcer/backend/views"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// @title Omenforcer API
// @version 1.0
// @description Forum with sections, topics, comments, user ratings and per-user settings.
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "omenforcer",
		Usage: "Run the Omenforcer forum",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(ctx, serve)
				},
			},
			{
				Name:  "worker",
				Usage: "Start the image crop worker and the stats scheduler",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, a *application) error {
						return a.background(ctx)
					})
				},
			},
			{
				Name:  "migrate",
				Usage: "Create or update the database schema",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, a *application) error {
						if err := utils.Migrate(a.db); err != nil {
							return err
						}
						a.logger.Info("Schema migrated")
						return nil
					})
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx, os.Args)
}

// application is the wired dependency graph shared by every command.
type application struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	redis    *redis.Manager
	storage  *utils.Storage
	queue    *tasks.Queue
	services routes.Services
}

func withApp(ctx context.Context, fn func(ctx context.Context, a *application) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger, err := utils.InitLogger(utils.LoggerConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApplication(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", zap.Error(err))
		return err
	}
	defer a.redis.Close()

	return fn(ctx, a)
}

func newApplication(cfg *config.Config, logger *zap.Logger) (*application, error) {
	db, err := utils.InitDB(cfg)
	if err != nil {
		return nil, err
	}

	manager := redis.NewManager(cfg, logger)
	cacheClient, err := manager.Cache()
	if err != nil {
		return nil, err
	}
	brokerClient, err := manager.Broker()
	if err != nil {
		manager.Close()
		return nil, err
	}

	storage := utils.NewStorage(cfg.MediaRoot, cfg.MediaURL)
	queue := tasks.NewQueue(brokerClient, logger)
	c := cache.New(cacheClient, "omenforcer:")

	registry, err := settings.DefaultRegistry(settings.Deps{
		Persister:     settings.GormPersister{DB: db},
		Storage:       storage,
		Crops:         queue,
		DefaultAvatar: cfg.DefaultAvatar,
		Logger:        logger.Named("settings"),
	})
	if err != nil {
		manager.Close()
		return nil, err
	}

	return &application{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		redis:   manager,
		storage: storage,
		queue:   queue,
		services: routes.Services{
			Accounts: accounts.NewService(db, cfg.DefaultAvatar, logger),
			Forum:    forum.NewService(db, c, cfg.StatsCacheTTL, storage, queue, logger),
			Settings: settings.NewService(db, registry, c, storage, settings.Options{
				CacheTTL:        cfg.SettingsCacheTTL,
				DefaultTimezone: cfg.DefaultTimezone,
				DefaultAvatar:   cfg.DefaultAvatar,
			}, logger),
			Rating:  rating.NewService(db, logger),
			Storage: storage,
		},
	}, nil
}

// background runs the crop worker and the stats refresh job until ctx is done.
func (a *application) background(ctx context.Context) error {
	scheduler := tasks.NewScheduler(a.logger)
	if err := scheduler.Add(ctx, a.cfg.StatsRefreshSpec, "refresh_stats", a.services.Forum.RefreshStats); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	worker := tasks.NewWorker(a.queue, a.storage, a.cfg.CropWorkers, a.logger)
	return worker.Run(ctx)
}

func serve(ctx context.Context, a *application) error {
	site := views.NewSite(
		a.services.Accounts, a.services.Forum, a.services.Settings, a.services.Rating,
		a.storage, a.cfg, a.logger,
	)

	app := fiber.New(fiber.Config{
		Views:        site.Engine(),
		ErrorHandler: site.ErrorHandler,
		BodyLimit:    2 * forms.MaxUploadSize,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.LoggingMiddleware(a.logger))

	// Setup routes
	routes.SetupRoutes(app, site, a.services, a.cfg)

	errCh := make(chan error, 2)
	if a.cfg.CropWorkerInline {
		go func() { errCh <- a.background(ctx) }()
	}
	go func() {
		a.logger.Info("Server started", zap.String("port", a.cfg.ServerPort))
		errCh <- app.Listen(":" + a.cfg.ServerPort)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			a.logger.Error("Server stopped", zap.Error(err))
			_ = app.ShutdownWithTimeout(shutdownTimeout)
			return err
		}
	}

	a.logger.Info("Shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
