package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	echoapi "github.com/lunatv/authd/api/echo"
	"github.com/lunatv/authd/config"
	"github.com/lunatv/authd/internal/auth"
	"github.com/lunatv/authd/internal/federation"
	"github.com/lunatv/authd/internal/register"
	"github.com/lunatv/authd/internal/statestore"
	"github.com/lunatv/authd/mongodb"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db_name", cfg.MongoDBName).
		Bool("oauth_enabled", cfg.OAuthEnabled).
		Bool("registration_enabled", cfg.EnableRegistration).
		Msg("Starting authd server")

	ctx := context.Background()

	userRepo, err := mongodb.NewUserRepository(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize user repository")
	}

	states, stopStates := newStateStore(cfg)

	hasher := auth.NewBcryptPasswordHasher(bcrypt.DefaultCost)
	signer := auth.NewCookieSigner(cfg.AuthSecret)
	if !signer.Enabled() {
		log.Warn().Msg("AUTH_SECRET is not set, auth cookies will be issued unsigned")
	}

	fedService := federation.NewService(cfg, states, nil)
	reconciler := federation.NewReconciler(userRepo, hasher)
	regService := register.NewService(userRepo, hasher, cfg)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())
	echoapi.NewAuthAPI(fedService, reconciler, regService, signer, cfg).RegisterRoutes(e)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	stopStates()
	if err := userRepo.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("MongoDB disconnect error")
	}

	log.Info().Msg("Server stopped")
}

func initLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().Str("configured_log_level", cfg.LogLevel).Msg("Invalid LOG_LEVEL, defaulting to info")
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// newStateStore picks the ledger backing for OAuth states: Redis when an
// address is configured, in-process memory otherwise.
func newStateStore(cfg *config.ServerConfig) (statestore.Store, func()) {
	if cfg.RedisAddr == "" {
		mem := statestore.NewMemoryStore(federation.StateTTL)
		return mem, mem.Stop
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	log.Info().Str("redis_addr", cfg.RedisAddr).Msg("Using Redis for OAuth state storage")
	return statestore.NewRedisStore(client, cfg.RedisPrefix), func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Redis close error")
		}
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	})
}
