package http

import (
	"encoding/base64"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	apperrors "github.com/open-builders/giveaway-raffle/internal/common/errors"
	"github.com/open-builders/giveaway-raffle/internal/http/middleware"
	"github.com/open-builders/giveaway-raffle/internal/service/challenge"
	gsvc "github.com/open-builders/giveaway-raffle/internal/service/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/service/participation"
	"github.com/open-builders/giveaway-raffle/internal/utils/referral"
)

// ParticipationHandlersFiber provides the participant endpoints.
type ParticipationHandlersFiber struct {
	giveaways     *gsvc.Service
	participation *participation.Service
	challenges    *challenge.Service
	botUsername   string
}

func NewParticipationHandlersFiber(giveaways *gsvc.Service, p *participation.Service, ch *challenge.Service, botUsername string) *ParticipationHandlersFiber {
	return &ParticipationHandlersFiber{giveaways: giveaways, participation: p, challenges: ch, botUsername: botUsername}
}

func (h *ParticipationHandlersFiber) RegisterFiber(r fiber.Router) {
	r.Post("/giveaways/:id/join", h.join)
	r.Get("/giveaways/:id/participants", h.participants)
	r.Post("/giveaways/:id/challenge", h.issueChallenge)
	r.Post("/giveaways/:id/challenge/answer", h.answerChallenge)
	r.Get("/giveaways/:id/referral", h.referralLink)
}

type joinReq struct {
	ReferrerID *int64 `json:"referrer_id,omitempty"`
	StartParam string `json:"start_param,omitempty"`
}

type answerReq struct {
	Position *int `json:"position"`
}

func (h *ParticipationHandlersFiber) join(c *fiber.Ctx) error {
	id := c.Params("id")
	var req joinReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid json")
		}
	}
	referrer := req.ReferrerID
	if referrer == nil {
		referrer = referrerFromStart(id, req.StartParam, middleware.LocalString(c, middleware.StartParamCtxParam))
	}

	p, err := h.participation.Join(c.UserContext(), participation.JoinInput{
		GiveawayID:   id,
		UserID:       middleware.UserID(c),
		Username:     middleware.LocalString(c, middleware.UsernameCtxParam),
		FirstName:    middleware.LocalString(c, middleware.FirstNameCtxParam),
		LastName:     middleware.LocalString(c, middleware.LastNameCtxParam),
		LanguageCode: middleware.LocalString(c, middleware.LanguageCodeCtxParam),
		IsPremium:    middleware.LocalBool(c, middleware.IsPremiumCtxParam),
		ReferrerID:   referrer,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// referrerFromStart reads the referrer from the first start parameter that
// points at giveawayID.
func referrerFromStart(giveawayID string, params ...string) *int64 {
	for _, sp := range params {
		if sp == "" {
			continue
		}
		gid, ref, err := referral.Parse(sp)
		if err != nil {
			log.Debug().Err(err).Str("start_param", sp).Msg("ignoring start param")
			continue
		}
		if gid == giveawayID {
			return &ref
		}
	}
	return nil
}

func (h *ParticipationHandlersFiber) participants(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.giveaways.GetOwned(c.UserContext(), id, middleware.UserID(c)); err != nil {
		return err
	}
	list, err := h.participation.List(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"total": len(list), "participants": list})
}

func (h *ParticipationHandlersFiber) issueChallenge(c *fiber.Ctx) error {
	g, err := h.giveaways.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if !g.ChallengeEnabled {
		return apperrors.New(apperrors.ErrCodeBadRequest, "challenge is not enabled for this giveaway")
	}
	ch, err := h.challenges.Issue(middleware.UserID(c), g.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ch)
}

func (h *ParticipationHandlersFiber) answerChallenge(c *fiber.Ctx) error {
	var req answerReq
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid json")
	}
	if req.Position == nil {
		return apperrors.NewValidationError("position", "required")
	}
	v, err := h.challenges.Answer(middleware.UserID(c), c.Params("id"), *req.Position)
	if err != nil {
		return err
	}
	return c.JSON(v)
}

func (h *ParticipationHandlersFiber) referralLink(c *fiber.Ctx) error {
	g, err := h.giveaways.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if !g.ReferralEnabled {
		return apperrors.New(apperrors.ErrCodeBadRequest, "referrals are not enabled for this giveaway")
	}
	link, err := referral.Link(h.botUsername, g.ID, middleware.UserID(c))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "referral link unavailable")
	}
	png, err := referral.QRCode(link, c.QueryInt("size", referral.DefaultQRSize))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"link":    link,
		"qr_code": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}
