package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
)

type TargetKind string

const (
	TargetContract     TargetKind = "contract"
	TargetSubscription TargetKind = "subscription"
)

func ParseTargetKind(value string) (TargetKind, error) {
	switch k := TargetKind(strings.ToLower(strings.TrimSpace(value))); k {
	case TargetContract, TargetSubscription:
		return k, nil
	default:
		return "", ErrInvalidTargetKind
	}
}

type Action string

const (
	ActionDelete Action = "delete"
	ActionCancel Action = "cancel"
)

func ParseAction(value string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(value))); a {
	case ActionDelete, ActionCancel:
		return a, nil
	default:
		return "", ErrInvalidAction
	}
}

// Decision is the branch chosen for a planned cascade.
type Decision string

const (
	// DecisionProceed applies the action to a target that has no children.
	DecisionProceed Decision = "proceed"
	// DecisionCascade applies the action to the target and its children and
	// cancels every open installment below them.
	DecisionCascade Decision = "cascade"
	// DecisionShallow applies the action to the target only. Children of a
	// deleted contract are unlinked; installments are left for manual handling.
	DecisionShallow Decision = "shallow"
	DecisionAbort   Decision = "abort"
)

func ParseDecision(value string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(value))); d {
	case DecisionProceed, DecisionCascade, DecisionShallow, DecisionAbort:
		return d, nil
	default:
		return "", ErrInvalidDecision
	}
}

var (
	optionsWithoutChildren = []Decision{DecisionProceed, DecisionAbort}
	optionsWithChildren    = []Decision{DecisionCascade, DecisionShallow, DecisionAbort}
)

// OptionsFor lists the decisions offered for a target with or without children.
func OptionsFor(hasChildren bool) []Decision {
	if hasChildren {
		return slices.Clone(optionsWithChildren)
	}
	return slices.Clone(optionsWithoutChildren)
}

// SubscriptionRef is a subscription reached by a cascade together with the
// open installments counted for it when the plan was made.
type SubscriptionRef struct {
	ID               snowflake.ID       `json:"id"`
	Kind             catalogdomain.Kind `json:"kind"`
	OpenInstallments int64              `json:"open_installments"`
}

// Plan is the decision object returned before any mutation happens. Counts are
// a snapshot; they may be stale by the time the plan is executed.
type Plan struct {
	ID         string       `json:"id"`
	OrgID      snowflake.ID `json:"org_id"`
	TargetKind TargetKind   `json:"target_kind"`
	TargetID   snowflake.ID `json:"target_id"`
	Action     Action       `json:"action"`

	// Subscriptions holds the contract's linked subscriptions, or the target
	// itself when the target is a subscription.
	Subscriptions    []SubscriptionRef `json:"subscriptions"`
	OpenInstallments int64             `json:"open_installments"`
	Options          []Decision        `json:"options"`
	PlannedAt        time.Time         `json:"planned_at"`
}

// HasChildren reports whether the plan offers the cascade/shallow branch.
func (p *Plan) HasChildren() bool {
	if p.TargetKind == TargetContract {
		return len(p.Subscriptions) > 0
	}
	return p.OpenInstallments > 0
}

func (p *Plan) Allows(d Decision) bool {
	return slices.Contains(p.Options, d)
}

// Result counts what an execution changed. Installments are only ever
// cancelled.
type Result struct {
	PlanID                 string   `json:"plan_id"`
	Decision               Decision `json:"decision"`
	Aborted                bool     `json:"aborted"`
	ContractsDeleted       int64    `json:"contracts_deleted"`
	ContractsCancelled     int64    `json:"contracts_cancelled"`
	SubscriptionsDeleted   int64    `json:"subscriptions_deleted"`
	SubscriptionsCancelled int64    `json:"subscriptions_cancelled"`
	SubscriptionsUnlinked  int64    `json:"subscriptions_unlinked"`
	InstallmentsCancelled  int64    `json:"installments_cancelled"`
	StepsSkipped           int      `json:"steps_skipped"`
}

type PlanRequest struct {
	TargetKind string
	TargetID   string
	Action     string
}
