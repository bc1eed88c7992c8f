package api

import (
	"encoding/json"
	"errors"
	"io"

	drepo "SigCast/internal/domain/repository"
	"SigCast/internal/handler/intake"
	"SigCast/internal/usecase"
	xhttp "SigCast/pkg/http"
	xlogger "SigCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SignalsEchoHandler exposes the webhook intake and the audit query
// endpoints over Echo.
type SignalsEchoHandler struct {
	logger      *xlogger.Logger
	coordinator *usecase.Coordinator
	audit       drepo.AuditReader
}

func NewSignalsEchoHandler(logger *xlogger.Logger, coordinator *usecase.Coordinator, audit drepo.AuditReader) *SignalsEchoHandler {
	return &SignalsEchoHandler{logger: logger, coordinator: coordinator, audit: audit}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/signals", h.Ingest)
	g.GET("/signals/:id/decision", h.Decision)
	g.GET("/signals/:id/attempts", h.Attempts)
	g.GET("/signals/:id/summary", h.Summary)
}

// Ingest accepts a webhook signal and runs it to completion. The raw
// body is kept verbatim for the audit trail.
func (h *SignalsEchoHandler) Ingest(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return xhttp.BadRequestResponse(c, "unreadable body")
	}

	var payload intake.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return xhttp.BadRequestResponse(c, "malformed JSON payload")
	}
	if verr := xhttp.ValidateStruct(c.Request().Context(), &payload); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	signal, err := intake.Normalize(payload, raw)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	summary, err := h.coordinator.Execute(c.Request().Context(), signal)
	if err != nil {
		if errors.Is(err, usecase.ErrDraining) {
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("shutting down, signal not accepted"))
		}
		h.logger.Error("signal execution failed",
			xlogger.Error(err), xlogger.String("signal_id", signal.ID))
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.SuccessResponse(c, summary)
}

func (h *SignalsEchoHandler) Decision(c echo.Context) error {
	id := c.Param("id")
	decision, err := h.audit.GateDecision(c.Request().Context(), id)
	if err != nil {
		return xhttp.NotFoundResponse(c, "no gate decision for signal "+id)
	}
	return xhttp.SuccessResponse(c, decision)
}

func (h *SignalsEchoHandler) Attempts(c echo.Context) error {
	id := c.Param("id")
	attempts, err := h.audit.Attempts(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("attempt query failed", xlogger.Error(err), xlogger.String("signal_id", id))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, attempts)
}

func (h *SignalsEchoHandler) Summary(c echo.Context) error {
	id := c.Param("id")
	summary, err := h.audit.Summary(c.Request().Context(), id)
	if err != nil {
		return xhttp.NotFoundResponse(c, "no execution summary for signal "+id)
	}
	return xhttp.SuccessResponse(c, summary)
}
