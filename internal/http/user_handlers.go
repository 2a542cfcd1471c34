package http

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/open-builders/giveaway-raffle/internal/common/errors"
	domain "github.com/open-builders/giveaway-raffle/internal/domain/user"
	"github.com/open-builders/giveaway-raffle/internal/http/middleware"
	usersvc "github.com/open-builders/giveaway-raffle/internal/service/user"
)

// UserHandlersFiber exposes the caller's stored profile.
type UserHandlersFiber struct {
	service *usersvc.Service
}

func NewUserHandlersFiber(svc *usersvc.Service) *UserHandlersFiber {
	return &UserHandlersFiber{service: svc}
}

func (h *UserHandlersFiber) RegisterFiber(r fiber.Router) {
	r.Get("/users/me", h.me)
}

// me returns the stored profile, recording the init-data identity first.
func (h *UserHandlersFiber) me(c *fiber.Ctx) error {
	u := &domain.User{
		ID:           middleware.UserID(c),
		Username:     middleware.LocalString(c, middleware.UsernameCtxParam),
		FirstName:    middleware.LocalString(c, middleware.FirstNameCtxParam),
		LastName:     middleware.LocalString(c, middleware.LastNameCtxParam),
		LanguageCode: middleware.LocalString(c, middleware.LanguageCodeCtxParam),
		IsPremium:    middleware.LocalBool(c, middleware.IsPremiumCtxParam),
	}
	if u.ID == 0 {
		return apperrors.NewUnauthorizedError("missing user")
	}
	if err := h.service.Upsert(c.UserContext(), u); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "Storage is temporarily unavailable")
	}
	stored, err := h.service.GetByID(c.UserContext(), u.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "Storage is temporarily unavailable")
	}
	if stored == nil {
		stored = u
	}
	return c.JSON(stored)
}
