package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	accumulatedomain "github.com/fiscalia/limits/internal/accumulate/domain"
	"github.com/fiscalia/limits/internal/limiterr"
	recalcdomain "github.com/fiscalia/limits/internal/recalc/domain"
	snapshotdomain "github.com/fiscalia/limits/internal/snapshot/domain"
	"github.com/shopspring/decimal"
)

func (s *Server) Accumulate(c *gin.Context) {
	var req accumulatedomain.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, limiterr.Newf(limiterr.ErrInvalidDelta, "", 0, 0, "malformed request body"))
		return
	}
	req.UserID = actorID(c)
	if req.TenantID == "" {
		req.TenantID = s.cfg.DefaultTenantID
	}

	result, err := s.accumulatesvc.Apply(c.Request.Context(), req)
	if err != nil && !errors.Is(err, limiterr.ErrPartialSuccess) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Upstream callers may still send a doc_ids hint with recalculation
// requests; it is ignored because a rebuild always folds the whole
// period's ledger.
type recalculateRequest struct {
	TenantID string `json:"tenant_id"`
	Year     int    `json:"year"`
	Month    *int   `json:"month"`
}

func (s *Server) Recalculate(c *gin.Context) {
	var req recalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, limiterr.Newf(limiterr.ErrInvalidDelta, "", 0, 0, "malformed request body"))
		return
	}
	if req.TenantID == "" {
		req.TenantID = s.cfg.DefaultTenantID
	}
	userID := actorID(c)

	if req.Month == nil {
		results, err := s.recalcsvc.RecalculateYear(c.Request.Context(), req.TenantID, req.Year, userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
		return
	}

	result, err := s.recalcsvc.Recalculate(c.Request.Context(), recalcdomain.Request{
		TenantID: req.TenantID,
		Year:     req.Year,
		Month:    *req.Month,
		UserID:   userID,
	})
	if err != nil && !errors.Is(err, limiterr.ErrPartialSuccess) {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) GetSnapshot(c *gin.Context) {
	key, ok := snapshotKeyFromPath(c)
	if !ok {
		return
	}

	snap, err := s.snapshots.Get(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type dashboardMonth struct {
	M     int             `json:"m"`
	Value decimal.Decimal `json:"value"`
}

type dashboardResponse struct {
	Accumulated decimal.Decimal      `json:"accumulated"`
	Forecast    decimal.Decimal      `json:"forecast"`
	State       snapshotdomain.State `json:"state"`
	Threshold   gin.H                `json:"threshold"`
	Months      []dashboardMonth     `json:"months"`
}

// Dashboard summarizes a tenant's year: the focus month's standing plus the
// full monthly series.
func (s *Server) Dashboard(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		AbortWithError(c, limiterr.Newf(limiterr.ErrNotFound, tenantID, 0, 0, "year must be numeric"))
		return
	}

	cfg, err := s.configsvc.Get(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	snaps, err := s.snapshots.ListYear(c.Request.Context(), tenantID, year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	byMonth := make(map[int]snapshotdomain.LimitSnapshot, len(snaps))
	for _, snap := range snaps {
		byMonth[snap.Month] = snap
	}

	months := make([]dashboardMonth, 0, 12)
	for m := 1; m <= 12; m++ {
		value := decimal.Zero
		if snap, ok := byMonth[m]; ok {
			value = snap.Accumulated
		}
		months = append(months, dashboardMonth{M: m, Value: value})
	}

	focus := s.focusMonth(year, snaps)
	resp := dashboardResponse{
		Accumulated: decimal.Zero,
		Forecast:    decimal.Zero,
		State:       snapshotdomain.StateOK,
		Threshold: gin.H{
			"warn":     cfg.WarnThreshold,
			"critical": cfg.CriticalThreshold,
		},
		Months: months,
	}
	if snap, ok := byMonth[focus]; ok {
		resp.Accumulated = snap.Accumulated
		resp.Forecast = snap.Forecast
		resp.State = snap.State
	}

	c.JSON(http.StatusOK, resp)
}

// focusMonth picks the month the dashboard headlines: the current month
// when browsing the current year, otherwise the latest recorded month.
func (s *Server) focusMonth(year int, snaps []snapshotdomain.LimitSnapshot) int {
	now := s.clock.Now()
	if now.Year() == year {
		return int(now.Month())
	}
	focus := 12
	if len(snaps) > 0 {
		focus = snaps[len(snaps)-1].Month
	}
	return focus
}

func snapshotKeyFromPath(c *gin.Context) (snapshotdomain.Key, bool) {
	tenantID := c.Param("tenant_id")
	year, yearErr := strconv.Atoi(c.Param("year"))
	month, monthErr := strconv.Atoi(c.Param("month"))
	if yearErr != nil || monthErr != nil {
		AbortWithError(c, limiterr.Newf(limiterr.ErrNotFound, tenantID, year, month, "year and month must be numeric"))
		return snapshotdomain.Key{}, false
	}
	key := snapshotdomain.Key{TenantID: tenantID, Year: year, Month: month}
	if err := key.Validate(); err != nil {
		AbortWithError(c, err)
		return snapshotdomain.Key{}, false
	}
	return key, true
}

func actorID(c *gin.Context) *string {
	actor := strings.TrimSpace(c.GetHeader("X-Actor-Id"))
	if actor == "" {
		return nil
	}
	return &actor
}
