package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	cascadedomain "github.com/railzwaylabs/agencyops/internal/cascade/domain"
	contractdomain "github.com/railzwaylabs/agencyops/internal/contract/domain"
)

type contractDates struct {
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	SignedAt    *string `json:"signed_at"`
	CancelledAt *string `json:"cancelled_at"`
}

type createContractRequest struct {
	ClientID     string  `json:"client_id"`
	Name         *string `json:"name"`
	Status       string  `json:"status"`
	SigningState string  `json:"signing_state"`
	Notes        string  `json:"notes"`
	contractDates
}

type updateContractRequest struct {
	Name         *string `json:"name"`
	Status       *string `json:"status"`
	SigningState *string `json:"signing_state"`
	Notes        *string `json:"notes"`
	contractDates
}

type parsedDates struct {
	start, end, signed, cancelled *time.Time
}

func (d contractDates) parse() (parsedDates, error) {
	var (
		out parsedDates
		err error
	)
	if out.start, err = parseDate("start_date", d.StartDate); err != nil {
		return out, err
	}
	if out.end, err = parseDate("end_date", d.EndDate); err != nil {
		return out, err
	}
	if out.signed, err = parseDate("signed_at", d.SignedAt); err != nil {
		return out, err
	}
	if out.cancelled, err = parseDate("cancelled_at", d.CancelledAt); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Server) CreateContract(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	dates, err := req.parse()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	key, err := idempotencyKeyFromHeader(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	contract, err := s.contractSvc.Create(c.Request.Context(), contractdomain.CreateRequest{
		ClientID:       req.ClientID,
		Name:           trimmed(req.Name),
		Status:         req.Status,
		SigningState:   req.SigningState,
		StartDate:      dates.start,
		EndDate:        dates.end,
		SignedAt:       dates.signed,
		CancelledAt:    dates.cancelled,
		Notes:          req.Notes,
		IdempotencyKey: key,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "contract.create", "contract", contract.ID.String(), map[string]any{
		"client_id":     contract.ClientID.String(),
		"status":        string(contract.Status),
		"signing_state": string(contract.SigningState),
	})
	respondCreated(c, contract)
}

func (s *Server) GetContract(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	contract, err := s.contractSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, contract)
}

func (s *Server) UpdateContract(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req updateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	dates, err := req.parse()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	contract, err := s.contractSvc.Update(c.Request.Context(), contractdomain.UpdateRequest{
		ID:           id,
		Name:         req.Name,
		Status:       req.Status,
		SigningState: req.SigningState,
		StartDate:    dates.start,
		EndDate:      dates.end,
		SignedAt:     dates.signed,
		CancelledAt:  dates.cancelled,
		Notes:        req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "contract.update", "contract", contract.ID.String(), map[string]any{
		"status":        string(contract.Status),
		"signing_state": string(contract.SigningState),
	})
	respondData(c, contract)
}

func (s *Server) DeleteContract(c *gin.Context) {
	s.runContractCascade(c, s.contractSvc.Delete)
}

func (s *Server) CancelContract(c *gin.Context) {
	s.runContractCascade(c, s.contractSvc.Cancel)
}

func (s *Server) runContractCascade(c *gin.Context, run func(ctx context.Context, id string, cascade bool) (*cascadedomain.Result, error)) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	cascade, err := queryBool(c, "cascade")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	result, err := run(c.Request.Context(), id, cascade)
	if err != nil {
		abortWithPartial(c, err, result)
		return
	}
	respondData(c, result)
}

func (s *Server) ListClientContracts(c *gin.Context) {
	clientID, err := pathID(c, "client_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	contracts, err := s.contractSvc.ListByClient(c.Request.Context(), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, contracts)
}
