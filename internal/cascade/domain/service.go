package domain

import (
	"context"
	"time"
)

type Service interface {
	// Plan counts the target's children and returns the decisions on offer.
	// Nothing is mutated.
	Plan(ctx context.Context, req PlanRequest) (*Plan, error)
	// Execute runs a plan top-down with the chosen decision.
	Execute(ctx context.Context, plan *Plan, decision Decision) (*Result, error)
	LoadPlan(ctx context.Context, planID string) (*Plan, error)
	// Run plans and executes in one call: proceed when there are no children,
	// otherwise cascade or shallow as requested.
	Run(ctx context.Context, req PlanRequest, cascade bool) (*Result, error)
}

// Store keeps plans and per-step checkpoints between the plan and execute
// calls and across retries.
type Store interface {
	SavePlan(ctx context.Context, plan *Plan, ttl time.Duration) error
	LoadPlan(ctx context.Context, planID string) (*Plan, error)
	MarkStep(ctx context.Context, planID, step string, ttl time.Duration) error
	StepDone(ctx context.Context, planID, step string) (bool, error)
	Forget(ctx context.Context, planID string) error
}
