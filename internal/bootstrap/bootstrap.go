package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	appControllers "github.com/brightstar/portal/internal/app/controllers"
	appMigrations "github.com/brightstar/portal/internal/app/migrations"
	appRepos "github.com/brightstar/portal/internal/app/repositories"
	appRoutes "github.com/brightstar/portal/internal/app/routes"
	appServices "github.com/brightstar/portal/internal/app/services"
	"github.com/brightstar/portal/internal/config"
	"github.com/brightstar/portal/internal/db"
	appMiddleware "github.com/brightstar/portal/internal/middleware"
	pkgAuth "github.com/brightstar/portal/internal/pkg/auth"
	"github.com/brightstar/portal/internal/pkg/cache"
	"github.com/brightstar/portal/internal/pkg/filestorage"
	"github.com/brightstar/portal/internal/pkg/helpers"
	"github.com/brightstar/portal/internal/pkg/logger"
	"github.com/brightstar/portal/internal/seed"
)

// DefaultClassCacheTTL applies when redis.class_cache_ttl is unset or invalid
const DefaultClassCacheTTL = 10 * time.Minute

// Dependencies holds all the application dependencies
type Dependencies struct {
	Services          *appServices.Services
	AuthController    *appControllers.AuthController
	StudentController *appControllers.StudentController
	AuthMiddleware    *appMiddleware.AuthMiddleware
	Repos             *appRepos.Repositories
	JWTService        *pkgAuth.JWTService
	Hasher            *pkgAuth.PasswordHasher
	Photos            *filestorage.PhotoPipeline
	Redis             *redis.Client // nil when redis is not configured
	Logger            zerolog.Logger
}

// Close releases the connections owned by the dependencies
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.ParseLevel(cfg.Logging.Level)
	lgr := logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: strings.ToLower(cfg.Logging.Format) == "text",
	})

	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(database.Pool, lgr)
	if err := migrator.Migrate(ctx, appMigrations.Files()); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	return database, nil
}

// setupClassCache connects to redis when an address is configured. Any
// failure degrades to an uncached directory.
func setupClassCache(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (cache.ClassCache, *redis.Client) {
	if cfg.Redis.Addr == "" {
		lgr.Info().Msg("Redis not configured, class labels will not be cached")
		return cache.NoopClassCache{}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		lgr.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, class labels will not be cached")
		return cache.NoopClassCache{}, nil
	}

	ttl := helpers.ParseDuration(cfg.Redis.ClassCacheTTL, DefaultClassCacheTTL)
	lgr.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", ttl).Msg("Class label cache enabled")
	return cache.NewRedisClassCache(client, ttl, lgr), client
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(ctx context.Context, cfg *config.Config, store db.Store, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	deps.Repos = appRepos.NewRepositories(store)

	storage, err := filestorage.NewLocalStorage(cfg.Storage.PhotoPath, cfg.Storage.PhotoURL)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to initialize file storage")
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}
	deps.Photos = filestorage.NewPhotoPipeline(storage, filestorage.PhotoConfig{
		Prefix:            "student",
		AllowedExtensions: cfg.Storage.AllowedExtensions,
		MaxSize:           cfg.Storage.MaxPhotoSize,
	}, lgr)
	if cfg.Retention.Enabled && cfg.Retention.Path != "" {
		archive, err := filestorage.NewLocalStorage(cfg.Retention.Path, "")
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to initialize photo archive")
			return nil, fmt.Errorf("failed to initialize photo archive: %w", err)
		}
		deps.Photos.WithArchive(archive)
	}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 8*time.Hour),
		TokenIssuer:    cfg.JWT.Issuer,
	})
	deps.Hasher = pkgAuth.NewPasswordHasher(cfg.Auth.BcryptCost, cfg.Auth.LegacyPlaintextPasswords, lgr)

	classCache, redisClient := setupClassCache(ctx, cfg, lgr)
	deps.Redis = redisClient

	deps.Services = appServices.NewServices(appServices.Dependencies{
		Repos:            deps.Repos,
		Hasher:           deps.Hasher,
		JWT:              deps.JWTService,
		ClassCache:       classCache,
		IdentifierPrefix: cfg.Directory.IdentifierPrefix,
		Logger:           lgr,
	})

	if err := seed.CreateDefaultAdmin(ctx, deps.Repos.AdminRepository, deps.Hasher,
		cfg.Auth.BootstrapAdminUsername, cfg.Auth.BootstrapAdminPassword, lgr); err != nil {
		lgr.Error().Err(err).Msg("Failed to create bootstrap admin, proceeding anyway...")
	}

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)
	deps.AuthController = appControllers.NewAuthController(deps.Services.Auth, lgr)
	deps.StudentController = appControllers.NewStudentController(
		deps.Services.Students,
		deps.Services.Import,
		deps.Photos,
		appControllers.StudentControllerConfig{
			DefaultAvatar:      cfg.Storage.DefaultAvatar,
			MaxImportFileSize:  cfg.Directory.MaxImportFileSize,
			ImportErrorPreview: cfg.Directory.ImportErrorPreview,
		},
		lgr,
	)

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger())

	appRoutes.SetupRouter(router,
		deps.AuthController,
		deps.StudentController,
		deps.AuthMiddleware,
	)

	// Photo variants are public files; the URLs in student responses point here
	router.Static(cfg.Storage.PhotoURL, cfg.Storage.PhotoPath)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
