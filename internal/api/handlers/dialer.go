package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/predictive-dialer/internal/domain"
)

type queueRequest struct {
	Leads []domain.Lead `json:"leads"`
}

type queueResponse struct {
	Leads []domain.Lead `json:"leads"`
	Total int           `json:"total"`
}

func (h *HandlerSet) dialerState(ctx *fiber.Ctx) error {
	snap, err := h.dialer.State(ctx.UserContext())
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(snap)
}

func (h *HandlerSet) dialerQueue(ctx *fiber.Ctx) error {
	leads, err := h.dialer.Queue(ctx.UserContext())
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(queueResponse{Leads: leads, Total: len(leads)})
}

func (h *HandlerSet) replaceQueue(ctx *fiber.Ctx) error {
	var req queueRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.dialer.SetQueue(ctx.UserContext(), req.Leads); err != nil {
		return translateError(err)
	}
	return h.dialerQueue(ctx)
}

func (h *HandlerSet) startDialer(ctx *fiber.Ctx) error {
	if err := h.dialer.Start(ctx.UserContext()); err != nil {
		return translateError(err)
	}
	return h.dialerState(ctx)
}

func (h *HandlerSet) pauseDialer(ctx *fiber.Ctx) error {
	if err := h.dialer.Pause(ctx.UserContext()); err != nil {
		return translateError(err)
	}
	return h.dialerState(ctx)
}

func (h *HandlerSet) stopDialer(ctx *fiber.Ctx) error {
	if err := h.dialer.Stop(ctx.UserContext()); err != nil {
		return translateError(err)
	}
	return h.dialerState(ctx)
}

func (h *HandlerSet) skipWaiting(ctx *fiber.Ctx) error {
	skipped, err := h.dialer.SkipWaiting(ctx.UserContext())
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"skipped": skipped})
}
