package domain

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/errs"
)

var (
	ErrInvalidOrganization = errs.NewValidation("org_id", "invalid_organization", "organization is required")
	ErrInvalidTargetKind   = errs.NewValidation("target_kind", "invalid_target_kind", "target kind must be contract or subscription")
	ErrInvalidTargetID     = errs.NewValidation("target_id", "invalid_target_id", "invalid target id")
	ErrInvalidAction       = errs.NewValidation("action", "invalid_action", "action must be delete or cancel")
	ErrInvalidDecision     = errs.NewValidation("decision", "invalid_decision", "unknown decision")
	ErrDecisionNotOffered  = errs.NewValidation("decision", "decision_not_offered", "decision is not one of the plan options")
	ErrInvalidPlan         = errs.NewValidation("plan_id", "invalid_plan", "plan is missing or belongs to another organization")
	ErrPlanNotFound        = errs.NotFound("cascade_plan_not_found")
	ErrTargetNotFound      = errs.NotFound("cascade_target_not_found")
)

// Stage names the step of an execution that failed.
type Stage string

const (
	StageContract      Stage = "contract"
	StageSubscriptions Stage = "subscriptions"
	StageUnlink        Stage = "unlink"
	StageInstallments  Stage = "installments"
)

// StageError reports the step at which an execution stopped. Steps before it
// stay applied; executing the same plan again resumes at this stage.
type StageError struct {
	PlanID    string       `json:"plan_id"`
	Stage     Stage        `json:"stage"`
	SubjectID snowflake.ID `json:"subject_id"`
	Err       error        `json:"-"`
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cascade %s failed at %s %s: %v", e.PlanID, e.Stage, e.SubjectID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
