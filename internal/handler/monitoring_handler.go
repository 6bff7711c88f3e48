package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/daonbank/kcs/kcs-backend/internal/service"
)

const defaultEWSLookback = 7 * 24 * time.Hour

// MonitoringHandler serves the model risk dashboard: drift, calibration,
// vintage curves, portfolio composition, and the early-warning feed.
type MonitoringHandler struct {
	monitoring *service.MonitoringService
	ews        *service.EWSService
}

func NewMonitoringHandler(monitoring *service.MonitoringService, ews *service.EWSService) *MonitoringHandler {
	return &MonitoringHandler{monitoring: monitoring, ews: ews}
}

// PSISummary godoc
// @Summary Population stability report
// @Description Compares the current scoring window against a reference window. Thin windows fall back to a seeded demo sample, flagged per metric.
// @Tags monitoring
// @Produce json
// @Param modelVersion query string false "Model version label"
// @Param referenceDays query int false "Reference window in days (default 180)"
// @Param currentDays query int false "Current window in days (default 30)"
// @Param features query string false "Comma-separated feature names"
// @Success 200 {object} service.PSISummary
// @Router /monitoring/psi-summary [get]
func (h *MonitoringHandler) PSISummary(c echo.Context) error {
	input := service.PSISummaryInput{
		ModelVersion:  c.QueryParam("modelVersion"),
		ReferenceDays: intParam(c, "referenceDays"),
		CurrentDays:   intParam(c, "currentDays"),
		Features:      splitParam(c.QueryParam("features")),
	}

	summary, err := h.monitoring.PSISummary(c.Request().Context(), input)
	if err != nil {
		return FromDomainError(c, err, "Failed to compute stability report")
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *MonitoringHandler) Calibration(c echo.Context) error {
	report, err := h.monitoring.Calibration(
		c.Request().Context(),
		c.QueryParam("modelVersion"),
		intParam(c, "bins"),
		intParam(c, "lookbackDays"),
	)
	if err != nil {
		return FromDomainError(c, err, "Failed to compute calibration report")
	}
	return c.JSON(http.StatusOK, report)
}

// Vintage godoc
// @Summary Cumulative bad rates by origination cohort
// @Tags monitoring
// @Produce json
// @Param checkpoints query string false "Comma-separated months on book, e.g. 3,6,12"
// @Success 200 {object} service.VintageReport
// @Router /monitoring/vintage [get]
func (h *MonitoringHandler) Vintage(c echo.Context) error {
	var checkpoints []int
	for _, part := range splitParam(c.QueryParam("checkpoints")) {
		month, err := strconv.Atoi(part)
		if err != nil || month <= 0 {
			return NewValidationError(c, "Invalid checkpoint", []ValidationError{
				{Field: "checkpoints", Message: "checkpoints must be positive integers"},
			})
		}
		checkpoints = append(checkpoints, month)
	}

	report, err := h.monitoring.Vintage(c.Request().Context(), checkpoints)
	if err != nil {
		return FromDomainError(c, err, "Failed to compute vintage report")
	}
	return c.JSON(http.StatusOK, report)
}

func (h *MonitoringHandler) Portfolio(c echo.Context) error {
	summary, err := h.monitoring.Portfolio(c.Request().Context())
	if err != nil {
		return FromDomainError(c, err, "Failed to compute portfolio summary")
	}
	return c.JSON(http.StatusOK, summary)
}

// ListEWSEvents returns processed early-warning alerts, newest first.
// Without a since parameter the feed covers the last seven days.
func (h *MonitoringHandler) ListEWSEvents(c echo.Context) error {
	since := time.Now().UTC().Add(-defaultEWSLookback)
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return NewValidationError(c, "Invalid since timestamp", []ValidationError{
				{Field: "since", Message: "must be RFC 3339, e.g. 2026-01-02T15:04:05Z"},
			})
		}
		since = parsed
	}

	events, err := h.ews.ListRecent(c.Request().Context(), since, int32(intParam(c, "limit")))
	if err != nil {
		return FromDomainError(c, err, "Failed to list early-warning events")
	}
	return c.JSON(http.StatusOK, events)
}

func (h *MonitoringHandler) ListEWSEventsByApplicant(c echo.Context) error {
	applicantID, err := uuid.Parse(c.Param("applicantId"))
	if err != nil {
		return NewValidationError(c, "Invalid applicant ID", []ValidationError{
			{Field: "applicantId", Message: "must be a valid UUID"},
		})
	}

	events, err := h.ews.ListByApplicant(c.Request().Context(), applicantID, int32(intParam(c, "limit")))
	if err != nil {
		return FromDomainError(c, err, "Failed to list early-warning events")
	}
	return c.JSON(http.StatusOK, events)
}

// intParam reads an integer query parameter, returning zero when absent
// or malformed so the service applies its default.
func intParam(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
