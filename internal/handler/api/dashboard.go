package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"Wonderland/internal/agent"
	"Wonderland/internal/domain/models"
	domrepo "Wonderland/internal/domain/repository"
	"Wonderland/internal/service/ratelimit"
	"Wonderland/internal/usecase"
	xhttp "Wonderland/pkg/http"
	xlogger "Wonderland/pkg/logger"
	"Wonderland/pkg/util"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type EventEmitter interface {
	EmitEvent(ctx context.Context, evt models.Event)
}

type HealthReporter interface {
	Health() usecase.Health
}

type TaskLister interface {
	Tasks() []models.Task
}

type StatusReporter interface {
	Status() agent.Status
}

// DashboardHandler serves the read models and the two write endpoints.
type DashboardHandler struct {
	logger    *xlogger.Logger
	journal   domrepo.Journal
	instructs domrepo.InstructStore
	tasks     TaskLister
	bus       EventEmitter
	health    HealthReporter
	agent     StatusReporter
	limiter   *ratelimit.Limiter
}

func NewDashboardHandler(
	logger *xlogger.Logger,
	journal domrepo.Journal,
	instructs domrepo.InstructStore,
	tasks TaskLister,
	bus EventEmitter,
	health HealthReporter,
	status StatusReporter,
	limiter *ratelimit.Limiter,
) *DashboardHandler {
	return &DashboardHandler{
		logger:    logger.With(xlogger.Component("dashboard")),
		journal:   journal,
		instructs: instructs,
		tasks:     tasks,
		bus:       bus,
		health:    health,
		agent:     status,
		limiter:   limiter,
	}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/market", h.Market)
	g.GET("/insight", h.Insight)
	g.GET("/holding", h.Holding)
	g.GET("/actions", h.Actions)
	g.GET("/tasks", h.Tasks)
	g.GET("/events", h.Events)
	g.GET("/health", h.Health)
	g.GET("/agent", h.Agent)

	var limited []echo.MiddlewareFunc
	if h.limiter != nil {
		limited = append(limited, h.limiter.Middleware())
	}
	g.POST("/instruct", h.AddInstruct, limited...)
	g.POST("/trigger", h.Trigger, limited...)
}

func (h *DashboardHandler) latest(c echo.Context, what string, load func(context.Context) (interface{}, error)) error {
	v, err := load(c.Request().Context())
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no "+what+" yet"))
	}
	if err != nil {
		h.logger.Error("read "+what, xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, v)
}

func (h *DashboardHandler) Market(c echo.Context) error {
	return h.latest(c, "market snapshot", func(ctx context.Context) (interface{}, error) {
		return h.journal.LatestMarketSnapshot(ctx)
	})
}

func (h *DashboardHandler) Insight(c echo.Context) error {
	return h.latest(c, "insight", func(ctx context.Context) (interface{}, error) {
		return h.journal.LatestInsight(ctx)
	})
}

func (h *DashboardHandler) Holding(c echo.Context) error {
	return h.latest(c, "holding snapshot", func(ctx context.Context) (interface{}, error) {
		return h.journal.LatestHoldingSnapshot(ctx)
	})
}

func (h *DashboardHandler) Actions(c echo.Context) error {
	req := &models.ListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since, ok := sinceParam(req.Since)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid since timestamp"))
	}
	rows, err := h.journal.RecentActions(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("read actions", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	kept := rows[:0]
	for _, r := range rows {
		if !r.Timestamp.Before(since) {
			kept = append(kept, r)
		}
	}
	return xhttp.ListResponse(c, kept, int64(len(kept)))
}

func (h *DashboardHandler) Events(c echo.Context) error {
	req := &models.ListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since, ok := sinceParam(req.Since)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid since timestamp"))
	}
	rows, err := h.journal.RecentEvents(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("read events", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	kept := rows[:0]
	for _, r := range rows {
		if !r.Timestamp.Before(since) {
			kept = append(kept, r)
		}
	}
	return xhttp.ListResponse(c, kept, int64(len(kept)))
}

// sinceParam returns the zero time for an empty value.
func sinceParam(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	return util.ParseTime(raw)
}

// Tasks lists the in-memory history, newest first.
func (h *DashboardHandler) Tasks(c echo.Context) error {
	req := &models.ListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	all := h.tasks.Tasks()
	rows := make([]models.Task, 0, req.Limit)
	for i := len(all) - 1; i >= 0 && len(rows) < req.Limit; i-- {
		rows = append(rows, all[i])
	}
	return xhttp.ListResponse(c, rows, int64(len(all)))
}

func (h *DashboardHandler) Health(c echo.Context) error {
	report := h.health.Health()
	if report.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, report)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *DashboardHandler) Agent(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.agent.Status())
}

func (h *DashboardHandler) AddInstruct(c echo.Context) error {
	req := &models.InstructRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	in := &models.Instruct{
		ID:        uuid.NewString(),
		Kind:      models.InstructKind(req.Kind),
		Instruct:  strings.TrimSpace(req.Instruct),
		Timestamp: time.Now().UTC(),
	}
	if err := h.instructs.AddInstruct(c.Request().Context(), in); err != nil {
		h.logger.Error("add instruct", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.logger.Info("instruct added", xlogger.String("kind", req.Kind))
	return xhttp.DataResponse(c, http.StatusCreated, in)
}

func (h *DashboardHandler) Trigger(c echo.Context) error {
	req := &models.TriggerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	evt := models.NewEvent(models.EventType(req.Type), req.Description, map[string]interface{}{
		"source":    "http",
		"remote_ip": c.RealIP(),
	})
	h.bus.EmitEvent(c.Request().Context(), evt)
	h.logger.Info("event triggered", xlogger.String("type", req.Type), xlogger.String("event_id", evt.ID))
	return xhttp.AcceptedResponse(c, evt)
}
