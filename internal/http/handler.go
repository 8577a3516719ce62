package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gatehouse-analytics/internal/http/middleware"
	"gatehouse-analytics/internal/model"
	"gatehouse-analytics/internal/scope"
	"gatehouse-analytics/internal/service"
)

const customDateLayout = "2006-01-02"

type Handler struct {
	analytics *service.GatehouseService
	log       zerolog.Logger
}

func NewHandler(analytics *service.GatehouseService, log zerolog.Logger) *Handler {
	return &Handler{analytics: analytics, log: log}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := r.Group("/analytics")
	protected.Use(authMiddleware)

	protected.GET("/dashboard", h.getDashboard)
	protected.GET("/dashboard/stream", h.streamDashboard)
	protected.GET("/entries", h.listEntries)
	protected.GET("/tenants", h.listTenants)
}

func (h *Handler) getDashboard(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	query, err := h.parseDashboardQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	snapshot, err := h.analytics.GetDashboard(c.Request.Context(), principal, query)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(snapshot))
}

func (h *Handler) streamDashboard(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	query, err := h.parseDashboardQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	ctx := c.Request.Context()
	snapshots := make(chan model.MetricsSnapshot, 1)
	errCh := make(chan error, 1)

	go func() {
		errCh <- h.analytics.StreamDashboard(ctx, principal, query, func(snapshot model.MetricsSnapshot) {
			select {
			case snapshots <- snapshot:
			case <-ctx.Done():
			}
		})
	}()

	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot := <-snapshots:
			c.SSEvent("metrics", snapshot)
			return true
		case err := <-errCh:
			if err != nil {
				c.SSEvent("error", gin.H{"error": err.Error()})
			}
			return false
		case <-ctx.Done():
			return false
		}
	})
}

func (h *Handler) listEntries(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	query, err := h.parseDashboardQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	entries, err := h.analytics.ListEntries(c.Request.Context(), principal, query)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(entries))
}

func (h *Handler) listTenants(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	tenants, err := h.analytics.GetScope(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(tenants))
}

func (h *Handler) parseDashboardQuery(c *gin.Context) (service.DashboardQuery, error) {
	query := service.DashboardQuery{}

	if sel := strings.TrimSpace(c.Query("range")); sel != "" {
		query.Selector = model.RangeSelector(sel)
	}

	if fromStr := strings.TrimSpace(c.Query("from")); fromStr != "" {
		parsed, err := time.ParseInLocation(customDateLayout, fromStr, time.Local)
		if err != nil {
			return query, errors.New("invalid from date")
		}
		query.CustomFrom = parsed
	}
	if toStr := strings.TrimSpace(c.Query("to")); toStr != "" {
		parsed, err := time.ParseInLocation(customDateLayout, toStr, time.Local)
		if err != nil {
			return query, errors.New("invalid to date")
		}
		query.CustomTo = parsed
	}

	if companyStr := strings.TrimSpace(c.Query("company_id")); companyStr != "" && companyStr != "all" {
		id, err := uuid.Parse(companyStr)
		if err != nil {
			return query, errors.New("invalid company id")
		}
		query.ExplicitTenant = &id
	}

	query.Durations.ShortLimitHours = parseHours(c.Query("short_hours"))
	query.Durations.MediumLimitHours = parseHours(c.Query("medium_hours"))
	query.Durations.DelayedThresholdHours = parseHours(c.Query("delayed_hours"))

	return query, nil
}

func parseHours(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 {
		return 0
	}
	return value
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, scope.ErrResolution):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{"data": data}
}

func errorResponse(message string) gin.H {
	return gin.H{"error": message}
}
