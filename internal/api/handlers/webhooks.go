package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/telephony"
)

// providerWebhook accepts provider call notifications as JSON or form
// bodies. Uncorrelated events are still acknowledged so the provider does
// not retry them.
func (h *HandlerSet) providerWebhook(ctx *fiber.Ctx) error {
	var ev domain.ProviderEvent
	if strings.HasPrefix(ctx.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var payload map[string]any
		if err := ctx.BodyParser(&payload); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
		ev = telephony.EventFromPayload(payload)
	} else {
		fields := make(map[string]string)
		ctx.Request().PostArgs().VisitAll(func(key, value []byte) {
			fields[strings.ToLower(string(key))] = string(value)
		})
		ev = telephony.EventFromFields(fields)
	}

	kind, err := h.dialer.HandleProviderEvent(ctx.UserContext(), ev)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"status": "ok", "event": kind})
}
