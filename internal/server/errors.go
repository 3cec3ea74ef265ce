package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	cascadedomain "github.com/railzwaylabs/agencyops/internal/cascade/domain"
	contractdomain "github.com/railzwaylabs/agencyops/internal/contract/domain"
	"github.com/railzwaylabs/agencyops/internal/errs"
	subscriptiondomain "github.com/railzwaylabs/agencyops/internal/subscription/domain"
	"go.uber.org/zap"
)

// APIError is the body of every failed response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`

	// Set for cascades that stopped part-way.
	Stage     string                `json:"stage,omitempty"`
	PlanID    string                `json:"plan_id,omitempty"`
	SubjectID string                `json:"subject_id,omitempty"`
	Partial   *cascadedomain.Result `json:"partial,omitempty"`
}

func (e *APIError) Error() string { return e.Code }

var (
	ErrInvalidRequest = &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "request body or parameters are malformed"}
	ErrInternal       = &APIError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "internal error"}
)

func invalidRequestError() error {
	return ErrInvalidRequest
}

func newValidationError(field, code, message string) error {
	return errs.NewValidation(field, code, message)
}

// AbortWithError writes err as an error envelope. The status comes from the
// error's kind; unknown errors are logged and reported as internal.
func AbortWithError(c *gin.Context, err error) {
	abortWithPartial(c, err, nil)
}

func abortWithPartial(c *gin.Context, err error, partial *cascadedomain.Result) {
	apiErr := toAPIError(err)
	apiErr.Partial = partial
	if apiErr.Status >= http.StatusInternalServerError {
		logger(c).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", apiErr.Code),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
}

func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		cp := *apiErr
		return &cp
	}

	if errors.Is(err, contractdomain.ErrIdempotencyConflict) || errors.Is(err, subscriptiondomain.ErrIdempotencyConflict) {
		return &APIError{Status: http.StatusConflict, Code: "idempotency_key_conflict", Message: "idempotency key was used with a different request"}
	}

	var stageErr *cascadedomain.StageError
	if errors.As(err, &stageErr) {
		return &APIError{
			Status:    http.StatusServiceUnavailable,
			Code:      "cascade_incomplete",
			Message:   "cascade stopped part-way, execute the same plan again to resume",
			Stage:     string(stageErr.Stage),
			PlanID:    stageErr.PlanID,
			SubjectID: stageErr.SubjectID.String(),
		}
	}

	switch errs.KindOf(err) {
	case errs.KindValidation:
		var v *errs.ValidationError
		errors.As(err, &v)
		return &APIError{Status: http.StatusUnprocessableEntity, Code: v.Code, Message: v.Message, Field: v.Field}
	case errs.KindNotFound:
		return &APIError{Status: http.StatusNotFound, Code: err.Error(), Message: "resource not found"}
	case errs.KindPermission:
		return &APIError{Status: http.StatusForbidden, Code: err.Error(), Message: "caller is not allowed to perform this change"}
	case errs.KindNetwork:
		return &APIError{Status: http.StatusServiceUnavailable, Code: "store_unavailable", Message: "store is unavailable, retry later"}
	default:
		cp := *ErrInternal
		return &cp
	}
}
