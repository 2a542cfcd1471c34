package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/open-builders/giveaway-raffle/internal/common/errors"
	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/http/middleware"
	"github.com/open-builders/giveaway-raffle/internal/service/draw"
	gsvc "github.com/open-builders/giveaway-raffle/internal/service/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/service/scheduler"
)

// GiveawayHandlersFiber provides the administrator endpoints.
type GiveawayHandlersFiber struct {
	service   *gsvc.Service
	draws     *draw.Service
	scheduler *scheduler.Scheduler
}

func NewGiveawayHandlersFiber(svc *gsvc.Service, draws *draw.Service, sched *scheduler.Scheduler) *GiveawayHandlersFiber {
	return &GiveawayHandlersFiber{service: svc, draws: draws, scheduler: sched}
}

func (h *GiveawayHandlersFiber) RegisterFiber(r fiber.Router) {
	r.Post("/giveaways", h.create)
	r.Get("/giveaways/me", h.listMine)
	r.Get("/giveaways/:id", h.getByID)
	r.Delete("/giveaways/:id", h.delete)
	r.Post("/giveaways/:id/publish", h.publish)
	r.Post("/giveaways/:id/schedule", h.schedule)
	r.Delete("/giveaways/:id/schedule", h.cancelSchedule)
	r.Post("/giveaways/:id/draw", h.draw)
	r.Post("/giveaways/:id/redraw", h.redraw)
	r.Get("/giveaways/:id/winners", h.winners)
	r.Patch("/giveaways/:id/winners/:user_id", h.updateWinner)
	r.Get("/giveaways/:id/stats", h.stats)
}

type createGiveawayReq struct {
	Name                  string   `json:"name"`
	Description           string   `json:"description,omitempty"`
	PrizesCount           int      `json:"prizes_count"`
	MaxParticipants       int      `json:"max_participants,omitempty"`
	RequiredChannels      []string `json:"required_channels,omitempty"`
	ReferralEnabled       bool     `json:"referral_enabled"`
	ReferralMultiplier    float64  `json:"referral_multiplier,omitempty"`
	MaxReferralMultiplier float64  `json:"max_referral_multiplier,omitempty"`
	ChallengeEnabled      bool     `json:"challenge_enabled"`
}

type scheduleReq struct {
	PublishAt time.Time `json:"publish_at"`
}

type winnerFlagsReq struct {
	DataCollected *bool `json:"data_collected"`
	PrizeSent     *bool `json:"prize_sent"`
}

type giveawayResp struct {
	*dg.Giveaway
	PendingPublish *time.Time `json:"pending_publish,omitempty"`
}

func (h *GiveawayHandlersFiber) create(c *fiber.Ctx) error {
	var req createGiveawayReq
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid json")
	}
	g, err := h.service.Create(c.UserContext(), gsvc.CreateInput{
		AdminID:               middleware.UserID(c),
		Name:                  req.Name,
		Description:           req.Description,
		PrizesCount:           req.PrizesCount,
		MaxParticipants:       req.MaxParticipants,
		RequiredChannels:      req.RequiredChannels,
		ReferralEnabled:       req.ReferralEnabled,
		ReferralMultiplier:    req.ReferralMultiplier,
		MaxReferralMultiplier: req.MaxReferralMultiplier,
		ChallengeEnabled:      req.ChallengeEnabled,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(g)
}

func (h *GiveawayHandlersFiber) getByID(c *fiber.Ctx) error {
	g, err := h.service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	resp := giveawayResp{Giveaway: g}
	if h.scheduler != nil && g.AdminID == middleware.UserID(c) {
		if at, ok := h.scheduler.Pending(g.ID); ok {
			resp.PendingPublish = &at
		}
	}
	return c.JSON(resp)
}

func (h *GiveawayHandlersFiber) listMine(c *fiber.Ctx) error {
	list, err := h.service.ListByAdmin(c.UserContext(), middleware.UserID(c), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *GiveawayHandlersFiber) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *GiveawayHandlersFiber) publish(c *fiber.Ctx) error {
	g, err := h.service.Publish(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(g)
}

func (h *GiveawayHandlersFiber) schedule(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.service.GetOwned(c.UserContext(), id, middleware.UserID(c)); err != nil {
		return err
	}
	var req scheduleReq
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid json")
	}
	if req.PublishAt.IsZero() {
		return apperrors.NewValidationError("publish_at", "required")
	}
	if err := h.scheduler.Schedule(c.UserContext(), id, req.PublishAt); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id, "status": dg.StatusScheduled, "publish_at": req.PublishAt.UTC()})
}

func (h *GiveawayHandlersFiber) cancelSchedule(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.service.GetOwned(c.UserContext(), id, middleware.UserID(c)); err != nil {
		return err
	}
	if err := h.scheduler.Cancel(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "status": dg.StatusCreated})
}

func (h *GiveawayHandlersFiber) draw(c *fiber.Ctx) error {
	return h.runDraw(c, false)
}

func (h *GiveawayHandlersFiber) redraw(c *fiber.Ctx) error {
	return h.runDraw(c, true)
}

func (h *GiveawayHandlersFiber) runDraw(c *fiber.Ctx, redraw bool) error {
	id := c.Params("id")
	if _, err := h.service.GetOwned(c.UserContext(), id, middleware.UserID(c)); err != nil {
		return err
	}
	var (
		winners []dg.Winner
		err     error
	)
	if redraw {
		winners, err = h.draws.Redraw(c.UserContext(), id)
	} else {
		winners, err = h.draws.DrawWinners(c.UserContext(), id)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "status": dg.StatusFinished, "winners": winners})
}

func (h *GiveawayHandlersFiber) winners(c *fiber.Ctx) error {
	list, err := h.service.Winners(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *GiveawayHandlersFiber) updateWinner(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("user_id")
	if err != nil || userID <= 0 {
		return apperrors.NewValidationError("user_id", "must be a positive integer")
	}
	var req winnerFlagsReq
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid json")
	}
	flags := dg.WinnerFlags{DataCollected: req.DataCollected, PrizeSent: req.PrizeSent}
	if err := h.service.UpdateWinner(c.UserContext(), c.Params("id"), middleware.UserID(c), int64(userID), flags); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *GiveawayHandlersFiber) stats(c *fiber.Ctx) error {
	st, err := h.service.Stats(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(st)
}
