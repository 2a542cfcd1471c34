package http

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	apperrors "github.com/open-builders/giveaway-raffle/internal/common/errors"
	"github.com/open-builders/giveaway-raffle/internal/config"
	mw "github.com/open-builders/giveaway-raffle/internal/http/middleware"
	"github.com/open-builders/giveaway-raffle/internal/service/challenge"
	"github.com/open-builders/giveaway-raffle/internal/service/draw"
	gsvc "github.com/open-builders/giveaway-raffle/internal/service/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/service/participation"
	"github.com/open-builders/giveaway-raffle/internal/service/scheduler"
	usersvc "github.com/open-builders/giveaway-raffle/internal/service/user"
)

// Deps are the services the API exposes.
type Deps struct {
	Giveaways     *gsvc.Service
	Draws         *draw.Service
	Scheduler     *scheduler.Scheduler
	Participation *participation.Service
	Challenges    *challenge.Service
	Users         *usersvc.Service
	// Redis enables the GET response cache when ResponseCacheTTL > 0.
	Redis redis.Cmdable
	// Auth replaces init-data validation; nil uses InitDataMiddleware.
	Auth fiber.Handler
}

// NewFiberApp builds a Fiber application with routes and middlewares wired.
func NewFiberApp(deps Deps, cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "giveaway-raffle",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: ErrorHandler,
	})
	app.Use(recover.New())

	// CORS for frontends
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Telegram-Init-Data",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	// Public health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	auth := deps.Auth
	if auth == nil {
		auth = mw.InitDataMiddleware(cfg.TelegramBotToken, cfg.InitDataTTL)
	}
	handlers := []fiber.Handler{auth}
	if deps.Redis != nil && cfg.ResponseCacheTTL > 0 {
		handlers = append(handlers, mw.RedisCache(deps.Redis, cfg.ResponseCacheTTL))
	}

	v1 := app.Group("/api/v1", handlers...)
	NewGiveawayHandlersFiber(deps.Giveaways, deps.Draws, deps.Scheduler).RegisterFiber(v1)
	NewParticipationHandlersFiber(deps.Giveaways, deps.Participation, deps.Challenges, cfg.BotUsername).RegisterFiber(v1)
	if deps.Users != nil {
		NewUserHandlersFiber(deps.Users).RegisterFiber(v1)
	}
	return app
}

// ErrorHandler renders every error as {"error": {"code", "message"}}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := apperrors.ErrCodeBadRequest
		switch {
		case fe.Code == fiber.StatusNotFound:
			code = apperrors.ErrCodeNotFound
		case fe.Code == fiber.StatusUnauthorized:
			code = apperrors.ErrCodeUnauthorized
		case fe.Code >= fiber.StatusInternalServerError:
			code = apperrors.ErrCodeInternal
		}
		return c.Status(fe.Code).JSON(fiber.Map{"error": fiber.Map{"code": code, "message": fe.Message}})
	}

	appErr := apperrors.FromDomain(err)
	status := apperrors.HTTPStatus(appErr.Code)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	}
	body := fiber.Map{"code": appErr.Code, "message": appErr.Message}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	return c.Status(status).JSON(fiber.Map{"error": body})
}
