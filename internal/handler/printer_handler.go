// internal/handler/printer_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"card-print-service/internal/printer"
	"card-print-service/internal/service"
	"card-print-service/internal/utils"
)

// PrinterHandler handles card printing HTTP requests
type PrinterHandler struct {
	printService *service.PrintService
	logger       *utils.ServiceLogger
}

// NewPrinterHandler creates a new printer handler
func NewPrinterHandler(printService *service.PrintService, logger *zap.Logger) *PrinterHandler {
	return &PrinterHandler{
		printService: printService,
		logger:       utils.NewServiceLogger(logger, "printer-handler"),
	}
}

// RegisterRoutes registers printer routes
func (h *PrinterHandler) RegisterRoutes(router *gin.RouterGroup) {
	printerGroup := router.Group("/printer")
	{
		printerGroup.GET("/status", h.GetStatus)
		printerGroup.POST("/print/team-cards", h.PrintTeamCards)
		printerGroup.POST("/print/test", h.PrintTestCard)
		printerGroup.GET("/team/:teamId/players", h.GetTeamPlayers)
	}
}

// PrinterStatus is the per-backend status payload
type PrinterStatus struct {
	printer.BackendStatus
	Reason string `json:"reason,omitempty"`
}

// TestPrintRequest selects the backend for a test card
type TestPrintRequest struct {
	Backend string `json:"backend,omitempty"`
}

// GetStatus reports the connection state of every printer backend
// @Summary Printer status
// @Description Probe each printer backend and report connected, status and backend name
// @Tags Printer
// @Produce json
// @Success 200 {object} utils.APIResponse{data=map[string]PrinterStatus} "Printer status"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /printer/status [get]
func (h *PrinterHandler) GetStatus(c *gin.Context) {
	statuses, err := h.printService.Status(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get printer status", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get printer status", err)
		return
	}

	data := make(map[string]PrinterStatus, len(statuses))
	for _, s := range statuses {
		data[string(s.Backend)] = PrinterStatus{BackendStatus: s, Reason: s.ReasonCode()}
	}
	utils.SuccessResponse(c, http.StatusOK, "Printer status retrieved", data)
}

// PrintTeamCards prints a card for every player of a team
// @Summary Print team cards
// @Description Print one identification card per team player in roster order; the report lists every card's outcome.
// @Description The body accepts teamId/teamName as well as team_id/team_name.
// @Tags Printer
// @Accept json
// @Produce json
// @Param request body service.TeamPrintRequest true "Team print request"
// @Success 200 {object} utils.APIResponse{data=model.BatchReport} "Batch completed"
// @Failure 400 {object} utils.APIResponse "Invalid request or backend"
// @Failure 404 {object} utils.APIResponse "Team not found or has no players"
// @Failure 503 {object} utils.APIResponse "No printer found"
// @Failure 504 {object} utils.APIResponse "Printer found but not responding"
// @Router /printer/print/team-cards [post]
func (h *PrinterHandler) PrintTeamCards(c *gin.Context) {
	var req service.TeamPrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrorResponse(c, map[string]string{"teamId": "a positive teamId is required"})
		return
	}

	ctx, cancel := h.jobContext(c)
	defer cancel()

	report, err := h.printService.PrintTeamCards(ctx, req)
	if err != nil {
		h.respondPrintError(c, err)
		return
	}

	message := "Team cards printed"
	if report.Failed > 0 {
		message = "Team cards printed with failures"
	}
	h.logger.Info(message,
		zap.Int64("team_id", req.TeamID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	utils.SuccessResponse(c, http.StatusOK, message, report)
}

// PrintTestCard prints the synthetic test card
// @Summary Print test card
// @Description Print a synthetic card without touching roster data
// @Tags Printer
// @Accept json
// @Produce json
// @Param request body TestPrintRequest false "Backend selection"
// @Success 200 {object} utils.APIResponse{data=model.JobResult} "Test card printed"
// @Failure 400 {object} utils.APIResponse "Invalid backend"
// @Failure 502 {object} utils.APIResponse "Printer rejected the card"
// @Failure 503 {object} utils.APIResponse "No printer found"
// @Failure 504 {object} utils.APIResponse "Printer found but not responding"
// @Router /printer/print/test [post]
func (h *PrinterHandler) PrintTestCard(c *gin.Context) {
	var req TestPrintRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ValidationErrorResponse(c, map[string]string{"body": err.Error()})
			return
		}
	}

	ctx, cancel := h.jobContext(c)
	defer cancel()

	result, err := h.printService.PrintTestCard(ctx, req.Backend)
	if err != nil {
		h.respondPrintError(c, err)
		return
	}

	if !result.Success {
		h.logger.Warn("Test card failed", zap.String("error", result.Error))
		utils.ErrorResponse(c, http.StatusBadGateway, "Test card failed", errors.New(result.Error))
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Test card printed", result)
}

// GetTeamPlayers lists a team's players in print order
// @Summary Team players
// @Description List the players that a team batch would print, in print order
// @Tags Printer
// @Produce json
// @Param teamId path int true "Team ID"
// @Success 200 {object} utils.APIResponse{data=service.TeamRoster} "Team players"
// @Failure 400 {object} utils.APIResponse "Invalid team ID"
// @Failure 404 {object} utils.APIResponse "Team not found"
// @Router /printer/team/{teamId}/players [get]
func (h *PrinterHandler) GetTeamPlayers(c *gin.Context) {
	teamID, err := strconv.ParseInt(c.Param("teamId"), 10, 64)
	if err != nil || teamID <= 0 {
		utils.ValidationErrorResponse(c, map[string]string{"teamId": "must be a positive integer"})
		return
	}

	roster, err := h.printService.TeamPlayers(c.Request.Context(), teamID)
	if err != nil {
		h.respondPrintError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Team players retrieved", roster)
}

// jobContext keeps a print running to completion when the client goes away,
// so devices are always disconnected and artifacts released. The job carries
// its own deadline, so the server write timeout is lifted for this response.
func (h *PrinterHandler) jobContext(c *gin.Context) (context.Context, context.CancelFunc) {
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("Failed to lift write deadline", zap.Error(err))
	}
	return context.WithCancel(context.WithoutCancel(c.Request.Context()))
}

func (h *PrinterHandler) respondPrintError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidBackend):
		utils.ValidationErrorResponse(c, map[string]string{"backend": err.Error()})
	case errors.Is(err, service.ErrNoPlayers):
		utils.ErrorResponse(c, http.StatusNotFound, "Team has no players", err)
	case errors.Is(err, service.ErrTeamNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Team not found", err)
	case errors.Is(err, printer.ErrDeviceNotFound), errors.Is(err, printer.ErrNotConnected):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "No printer found", err)
	case errors.Is(err, printer.ErrHandshakeTimeout):
		utils.ErrorResponse(c, http.StatusGatewayTimeout, "Printer found but not responding", err)
	case errors.Is(err, context.DeadlineExceeded):
		utils.ErrorResponse(c, http.StatusGatewayTimeout, "Print request timed out", err)
	default:
		h.logger.Error("Print request failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Print request failed", err)
	}
}
