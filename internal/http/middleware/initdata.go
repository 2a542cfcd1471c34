package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	apperrors "github.com/open-builders/giveaway-raffle/internal/common/errors"
)

// Context keys to store Telegram init-data derived fields.
const (
	UserIdCtxParam       = "user_id"
	FirstNameCtxParam    = "first_name"
	LastNameCtxParam     = "last_name"
	UsernameCtxParam     = "username"
	IsPremiumCtxParam    = "is_premium"
	LanguageCodeCtxParam = "language_code"
	StartParamCtxParam   = "start_param"
)

// InitDataMiddleware validates Telegram Mini Apps init-data and stores parsed fields in context.
// It expects init-data in one of the following places (checked in order):
//  1. Header: "X-Telegram-Init-Data"
//  2. Query:  "init_data" (raw string)
func InitDataMiddleware(token string, expIn time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return apperrors.New(apperrors.ErrCodeInternal, "init-data validation is not configured")
		}

		raw := c.Get("X-Telegram-Init-Data")
		if raw == "" {
			raw = c.Query("init_data")
		}
		if raw == "" {
			return apperrors.NewUnauthorizedError("missing init_data")
		}

		// expIn == 0 disables the expiration check
		if err := initdata.Validate(raw, token, expIn); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid init_data")
		}
		parsed, err := initdata.Parse(raw)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid init_data format")
		}
		if parsed.User.ID == 0 {
			return apperrors.NewUnauthorizedError("init_data carries no user")
		}

		c.Locals(UserIdCtxParam, parsed.User.ID)
		c.Locals(FirstNameCtxParam, parsed.User.FirstName)
		c.Locals(LastNameCtxParam, parsed.User.LastName)
		c.Locals(UsernameCtxParam, parsed.User.Username)
		c.Locals(IsPremiumCtxParam, parsed.User.IsPremium)
		c.Locals(LanguageCodeCtxParam, parsed.User.LanguageCode)
		c.Locals(StartParamCtxParam, parsed.StartParam)
		return c.Next()
	}
}

// UserID returns the authenticated user id, or 0.
func UserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(UserIdCtxParam).(int64)
	return id
}

// LocalString reads a string local set by the middleware.
func LocalString(c *fiber.Ctx, key string) string {
	v, _ := c.Locals(key).(string)
	return v
}

// LocalBool reads a bool local set by the middleware.
func LocalBool(c *fiber.Ctx, key string) bool {
	v, _ := c.Locals(key).(bool)
	return v
}
