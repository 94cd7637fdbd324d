package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/predictive-dialer/internal/service/leads"
)

type callResultRequest struct {
	Result  string `json:"result"`
	Comment string `json:"comment"`
}

type importLeadRequest struct {
	ID          string         `json:"id"`
	Phone       string         `json:"phone"`
	DisplayName string         `json:"display_name"`
	Link        string         `json:"link"`
	Priority    int            `json:"priority"`
	Payload     map[string]any `json:"payload"`
}

type importRequest struct {
	Leads []importLeadRequest `json:"leads"`
}

type callEventResponse struct {
	CallID     string    `json:"call_id,omitempty"`
	Event      string    `json:"event"`
	Status     string    `json:"status"`
	Phone      string    `json:"phone"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (h *HandlerSet) setCallResult(ctx *fiber.Ctx) error {
	var req callResultRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	lead, err := h.dialer.SetCallResult(ctx.UserContext(), ctx.Params("id"), req.Result, req.Comment)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(lead)
}

func (h *HandlerSet) listLeadCalls(ctx *fiber.Ctx) error {
	if h.history == nil {
		return fiber.NewError(http.StatusServiceUnavailable, "call history is disabled")
	}

	page, err := h.history.ListByLead(ctx.UserContext(), ctx.Params("id"), ctx.QueryInt("limit", 50), ctx.Query("page_token"))
	if err != nil {
		return translateError(err)
	}

	items := make([]callEventResponse, 0, len(page.Events))
	for _, ev := range page.Events {
		items = append(items, callEventResponse{
			CallID:     ev.CallID,
			Event:      ev.Event,
			Status:     ev.Status,
			Phone:      ev.Phone,
			Error:      ev.Error,
			OccurredAt: ev.OccurredAt,
		})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"items":           items,
		"next_page_token": page.NextToken,
	})
}

func (h *HandlerSet) leadStats(ctx *fiber.Ctx) error {
	if h.leads == nil {
		return fiber.NewError(http.StatusServiceUnavailable, "lead store is disabled")
	}
	stats, err := h.leads.Stats(ctx.UserContext())
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"total": stats.Total, "by_state": stats.ByState})
}

func (h *HandlerSet) importLeads(ctx *fiber.Ctx) error {
	if h.leads == nil {
		return fiber.NewError(http.StatusServiceUnavailable, "lead store is disabled")
	}

	var req importRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	inputs := make([]leads.ImportInput, 0, len(req.Leads))
	for _, l := range req.Leads {
		inputs = append(inputs, leads.ImportInput{
			ID:          l.ID,
			Phone:       l.Phone,
			DisplayName: l.DisplayName,
			Link:        l.Link,
			Priority:    l.Priority,
			Payload:     l.Payload,
		})
	}

	n, err := h.leads.Import(ctx.UserContext(), inputs)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{"imported": n})
}
