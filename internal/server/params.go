package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/agencyops/internal/calendar"
	"go.uber.org/zap"
)

func pathID(c *gin.Context, name string) (string, error) {
	id := strings.TrimSpace(c.Param(name))
	if parsed, err := snowflake.ParseString(id); err != nil || parsed == 0 {
		return "", newValidationError(name, "invalid_id", "invalid id")
	}
	return id, nil
}

// parseDate reads an optional YYYY-MM-DD field.
func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := calendar.Parse(*value)
	if err != nil {
		return nil, newValidationError(field, "invalid_date", field+" must be YYYY-MM-DD")
	}
	return &t, nil
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, newValidationError(name, "invalid_boolean", name+" must be true or false")
	}
	return v, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}

func (s *Server) audit(c *gin.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, action, targetType, &targetID, metadata); err != nil {
		logger(c).Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
