package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/repository"
	"github.com/acme/predictive-dialer/internal/service/history"
	"github.com/acme/predictive-dialer/internal/service/leads"
	"github.com/acme/predictive-dialer/pkg/logger"
)

// Dialer is the engine surface exposed over HTTP.
type Dialer interface {
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	SkipWaiting(ctx context.Context) (bool, error)
	SetQueue(ctx context.Context, leads []domain.Lead) error
	SetCallResult(ctx context.Context, leadID, result, comment string) (domain.Lead, error)
	HandleProviderEvent(ctx context.Context, ev domain.ProviderEvent) (domain.EventType, error)
	State(ctx context.Context) (domain.Snapshot, error)
	Queue(ctx context.Context) ([]domain.Lead, error)
}

// CallHistory pages through a lead's call log.
type CallHistory interface {
	ListByLead(ctx context.Context, leadID string, limit int, token string) (history.Page, error)
}

// LeadStore is the persistent lead store.
type LeadStore interface {
	Import(ctx context.Context, inputs []leads.ImportInput) (int, error)
	Stats(ctx context.Context) (repository.LeadStats, error)
}

// HealthChecker is a backend probed by /healthz.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// Dependencies collects what the handlers need. History, Leads and Checks
// are optional.
type Dependencies struct {
	Dialer  Dialer
	History CallHistory
	Leads   LeadStore
	Checks  []HealthChecker
	Logger  *logger.Logger
}

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	dialer  Dialer
	history CallHistory
	leads   LeadStore
	checks  []HealthChecker
	logger  *logger.Logger
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(deps Dependencies) *HandlerSet {
	lg := deps.Logger
	if lg == nil {
		lg = logger.NewNop()
	}
	return &HandlerSet{
		dialer:  deps.Dialer,
		history: deps.History,
		leads:   deps.Leads,
		checks:  deps.Checks,
		logger:  lg.Named("http"),
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	v1 := app.Group("/api").Group("/v1")

	dialer := v1.Group("/dialer")
	dialer.Get("/state", h.dialerState)
	dialer.Get("/queue", h.dialerQueue)
	dialer.Put("/queue", h.replaceQueue)
	dialer.Post("/start", h.startDialer)
	dialer.Post("/pause", h.pauseDialer)
	dialer.Post("/stop", h.stopDialer)
	dialer.Post("/skip-waiting", h.skipWaiting)

	leadRoutes := v1.Group("/leads")
	leadRoutes.Get("/stats", h.leadStats)
	leadRoutes.Post("/import", h.importLeads)
	leadRoutes.Post("/:id/result", h.setCallResult)
	leadRoutes.Get("/:id/calls", h.listLeadCalls)

	v1.Post("/webhooks/provider", h.providerWebhook)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code >= fiber.StatusInternalServerError {
		h.logger.WithContext(ctx.UserContext()).Error("request failed",
			zap.String("path", ctx.Path()), zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)
	for _, c := range h.checks {
		if err := c.Ping(healthCtx); err != nil {
			errs[c.Name()] = err.Error()
		}
	}

	status := fiber.StatusOK
	body := fiber.Map{"status": "ok", "errors": errs}
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
		body["status"] = "degraded"
	}

	return ctx.Status(status).JSON(body)
}
