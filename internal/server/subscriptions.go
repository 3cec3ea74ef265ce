package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/agencyops/internal/orgcontext"
	subscriptiondomain "github.com/railzwaylabs/agencyops/internal/subscription/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type createSubscriptionRequest struct {
	Kind         string           `json:"kind"`
	ClientID     string           `json:"client_id"`
	CatalogRef   string           `json:"catalog_ref"`
	ContractID   *string          `json:"contract_id"`
	Value        *decimal.Decimal `json:"value"`
	Currency     string           `json:"currency"`
	Status       string           `json:"status"`
	SigningState string           `json:"signing_state"`
	Notes        string           `json:"notes"`
	contractDates
}

type updateSubscriptionRequest struct {
	Status       *string          `json:"status"`
	SigningState *string          `json:"signing_state"`
	Notes        *string          `json:"notes"`
	Value        *decimal.Decimal `json:"value"`
	Currency     *string          `json:"currency"`
	contractDates
}

type propagateEndDateRequest struct {
	Overwrite bool `json:"overwrite"`
}

func (s *Server) capabilities(c *gin.Context) subscriptiondomain.Capabilities {
	actor, _ := orgcontext.ActorFromContext(c.Request.Context())
	return s.authorizer.Capabilities(actor.Role)
}

func (s *Server) SuggestSubscriptionDates(c *gin.Context) {
	suggestion, err := s.subscriptionSvc.SuggestDates(c.Request.Context(), subscriptiondomain.SuggestDatesRequest{
		Kind:       c.Query("kind"),
		CatalogRef: c.Query("catalog_ref"),
		ContractID: c.Query("contract_id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, suggestion)
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
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

	result, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateRequest{
		Kind:           req.Kind,
		ClientID:       req.ClientID,
		CatalogRef:     req.CatalogRef,
		ContractID:     trimmed(req.ContractID),
		Value:          req.Value,
		Currency:       req.Currency,
		StartDate:      dates.start,
		EndDate:        dates.end,
		Status:         req.Status,
		SigningState:   req.SigningState,
		SignedAt:       dates.signed,
		CancelledAt:    dates.cancelled,
		Notes:          req.Notes,
		IdempotencyKey: key,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub := result.Subscription
	s.audit(c, "subscription.create", "subscription", sub.ID.String(), map[string]any{
		"client_id":    sub.ClientID.String(),
		"kind":         string(sub.Kind),
		"value":        sub.Value.StringFixed(2),
		"installments": result.InstallmentCount,
	})

	if result.InstallmentsErr != nil {
		logger(c).Warn("subscription created without installments",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(result.InstallmentsErr),
		)
		respondWithWarning(c, http.StatusCreated, result, subscriptiondomain.ErrInstallmentsNotGenerated.Error(), "subscription saved but its installments were not generated")
		return
	}
	respondCreated(c, result)
}

func (s *Server) GetSubscription(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	sub, err := s.subscriptionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

func (s *Server) UpdateSubscription(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req updateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	dates, err := req.parse()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	caps := s.capabilities(c)
	result, err := s.subscriptionSvc.Update(c.Request.Context(), subscriptiondomain.UpdateRequest{
		ID:           id,
		Status:       req.Status,
		SigningState: req.SigningState,
		Notes:        req.Notes,
		Value:        req.Value,
		Currency:     req.Currency,
		StartDate:    dates.start,
		EndDate:      dates.end,
		SignedAt:     dates.signed,
		CancelledAt:  dates.cancelled,
	}, caps)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "subscription.update", "subscription", id, map[string]any{
		"status":        string(result.Subscription.Status),
		"signing_state": string(result.Subscription.SigningState),
		"billing_edit":  caps.CanEditBillingFields,
	})
	respondData(c, result)
}

func (s *Server) PropagateEndDate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req propagateEndDateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	contract, err := s.subscriptionSvc.PropagateEndDate(c.Request.Context(), subscriptiondomain.PropagateEndDateRequest{
		SubscriptionID: id,
		Overwrite:      req.Overwrite,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "contract.end_date.propagate", "contract", contract.ID.String(), map[string]any{
		"subscription_id": id,
		"overwrite":       req.Overwrite,
	})
	respondData(c, contract)
}

func (s *Server) DeleteSubscription(c *gin.Context) {
	s.runSubscriptionCascade(c, false)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	s.runSubscriptionCascade(c, true)
}

func (s *Server) runSubscriptionCascade(c *gin.Context, cancel bool) {
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

	run := s.subscriptionSvc.Delete
	if cancel {
		run = s.subscriptionSvc.Cancel
	}
	result, err := run(c.Request.Context(), id, cascade)
	if err != nil {
		abortWithPartial(c, err, result)
		return
	}
	respondData(c, result)
}

func (s *Server) ListClientSubscriptions(c *gin.Context) {
	clientID, err := pathID(c, "client_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	subs, err := s.subscriptionSvc.ListByClient(c.Request.Context(), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, subs)
}

func (s *Server) ListContractSubscriptions(c *gin.Context) {
	contractID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	subs, err := s.subscriptionSvc.ListByContract(c.Request.Context(), contractID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, subs)
}

func (s *Server) ListSubscriptionInstallments(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	sub, err := s.subscriptionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.installmentSvc.ListBySubscription(c.Request.Context(), id, sub.Kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}
