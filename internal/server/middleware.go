package server

import (
	"crypto/rand"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railzwaylabs/agencyops/internal/calendar"
	"github.com/railzwaylabs/agencyops/internal/clock"
	"github.com/railzwaylabs/agencyops/internal/orgcontext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	headerRequestID     = "X-Request-Id"
	headerOrgID         = "X-Org-Id"
	headerActorID       = "X-Actor-Id"
	headerRole          = "X-Agency-Role"
	headerSimulatedDate = "X-Simulated-Date"

	contextLoggerKey = "logger"
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// RequestID tags each request with a ULID, reusing a well-formed incoming one.
func (s *Server) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if _, err := ulid.ParseStrict(id); err != nil {
			id = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		}
		c.Header(headerRequestID, id)

		ctx := orgcontext.WithRequestMeta(c.Request.Context(), orgcontext.RequestMeta{
			RequestID: id,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextLoggerKey, s.log.With(zap.String("request_id", id)))
		c.Next()
	}
}

func (s *Server) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger(c).Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.tracer == nil {
			c.Next()
			return
		}
		ctx, span := s.tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("http.route", c.FullPath()),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// OrgContext resolves the tenant and the caller. Authentication happens in
// front of this service; the headers are trusted as given.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := snowflake.ID(s.cfg.DefaultOrgID)
		if raw := strings.TrimSpace(c.GetHeader(headerOrgID)); raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed == 0 {
				AbortWithError(c, newValidationError("org_id", "invalid_organization", "invalid organization id"))
				return
			}
			orgID = parsed
		}

		role := strings.ToLower(strings.TrimSpace(c.GetHeader(headerRole)))
		if role == "" {
			role = s.cfg.Authorization.DefaultRole
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		ctx = orgcontext.WithActor(ctx, orgcontext.Actor{
			ID:   strings.TrimSpace(c.GetHeader(headerActorID)),
			Role: role,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SimulatedDate lets callers outside production evaluate a request as of
// another day. Production ignores the header.
func (s *Server) SimulatedDate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(headerSimulatedDate))
		if raw == "" || s.cfg.IsProduction() {
			c.Next()
			return
		}
		day, err := calendar.Parse(raw)
		if err != nil {
			AbortWithError(c, newValidationError(headerSimulatedDate, "invalid_date", "simulated date must be YYYY-MM-DD"))
			return
		}
		c.Request = c.Request.WithContext(clock.WithSimulatedTime(c.Request.Context(), day))
		c.Next()
	}
}

func logger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(contextLoggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
