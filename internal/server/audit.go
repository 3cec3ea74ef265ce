package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/railzwaylabs/agencyops/internal/audit/domain"
	"github.com/railzwaylabs/agencyops/internal/calendar"
)

const maxExportWindow = 90 * 24 * time.Hour

// ExportAuditLogs handles GET /api/audit/export?start_date=&end_date=. The end
// date is inclusive.
func (s *Server) ExportAuditLogs(c *gin.Context) {
	if s.auditSvc == nil {
		AbortWithError(c, ErrInternal)
		return
	}

	startDate, err := calendar.Parse(c.Query("start_date"))
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_date", "start_date must be YYYY-MM-DD"))
		return
	}
	endDate, err := calendar.Parse(c.Query("end_date"))
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_date", "end_date must be YYYY-MM-DD"))
		return
	}
	endDate = endDate.AddDate(0, 0, 1)
	if !endDate.After(startDate) || endDate.Sub(startDate) > maxExportWindow {
		AbortWithError(c, newValidationError("end_date", "invalid_range", "export range must be between 1 and 90 days"))
		return
	}

	var actions []string
	if raw := strings.TrimSpace(c.Query("actions")); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				actions = append(actions, a)
			}
		}
	}

	result, err := s.auditSvc.Export(c.Request.Context(), auditdomain.ExportRequest{
		StartDate:  startDate,
		EndDate:    endDate,
		TargetType: strings.TrimSpace(c.Query("target_type")),
		Actions:    actions,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("X-Audit-Export-Checksum", result.Checksum)
	c.Header("X-Audit-Export-Count", strconv.Itoa(result.Count))
	c.Header("Content-Disposition", "attachment; filename=\"audit_export_"+calendar.Format(startDate)+".json\"")
	c.Data(http.StatusOK, "application/json", result.Data)
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	if s.auditSvc == nil {
		respondData(c, []auditdomain.AuditLog{})
		return
	}
	logs, err := s.auditSvc.ListByTarget(c.Request.Context(), c.Param("target_type"), c.Param("target_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, logs)
}
