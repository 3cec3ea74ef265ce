package server

import (
	"github.com/gin-gonic/gin"
	cascadedomain "github.com/railzwaylabs/agencyops/internal/cascade/domain"
)

type planCascadeRequest struct {
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	Action     string `json:"action"`
}

type executeCascadeRequest struct {
	PlanID   string `json:"plan_id"`
	Decision string `json:"decision"`
}

// PlanCascade inspects a delete or cancel and returns the plan with the
// decisions the caller may choose from. Nothing is changed.
func (s *Server) PlanCascade(c *gin.Context) {
	var req planCascadeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.cascadeSvc.Plan(c.Request.Context(), cascadedomain.PlanRequest{
		TargetKind: req.TargetKind,
		TargetID:   req.TargetID,
		Action:     req.Action,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, plan)
}

// ExecuteCascade applies a stored plan. Executing a plan again after a
// partial failure resumes from the failed step.
func (s *Server) ExecuteCascade(c *gin.Context) {
	var req executeCascadeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	decision, err := cascadedomain.ParseDecision(req.Decision)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	plan, err := s.cascadeSvc.LoadPlan(ctx, req.PlanID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.cascadeSvc.Execute(ctx, plan, decision)
	if err != nil {
		abortWithPartial(c, err, result)
		return
	}
	respondData(c, result)
}
