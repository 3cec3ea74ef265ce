// Package lifecycle defines the two independent state dimensions carried by
// contracts and subscriptions: operational status and signing state.
package lifecycle

import (
	"strings"
	"time"

	"github.com/railzwaylabs/agencyops/internal/errs"
)

type Status string

const (
	StatusAtivo      Status = "ativo"
	StatusPausado    Status = "pausado"
	StatusCancelado  Status = "cancelado"
	StatusFinalizado Status = "finalizado"
)

type SigningState string

const (
	SigningNaoAssinado SigningState = "nao_assinado"
	SigningAssinado    SigningState = "assinado"
	SigningCancelado   SigningState = "cancelado"
)

var (
	ErrInvalidStatus            = errs.NewValidation("status", "invalid_status", "unknown status")
	ErrInvalidSigningState      = errs.NewValidation("signing_state", "invalid_signing_state", "unknown signing state")
	ErrInvalidStatusTransition  = errs.NewValidation("status", "invalid_status_transition", "status transition not allowed")
	ErrInvalidSigningTransition = errs.NewValidation("signing_state", "invalid_signing_transition", "signing state transition not allowed")
)

func ParseStatus(value string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(value))); s {
	case StatusAtivo, StatusPausado, StatusCancelado, StatusFinalizado:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

func ParseSigningState(value string) (SigningState, error) {
	switch s := SigningState(strings.ToLower(strings.TrimSpace(value))); s {
	case SigningNaoAssinado, SigningAssinado, SigningCancelado:
		return s, nil
	default:
		return "", ErrInvalidSigningState
	}
}

// CanTransition reports whether status may move from current to target.
// Reopening a cancelled record is a manual edit; finalizado is terminal.
func CanTransition(current, target Status) bool {
	if current == target {
		return true
	}
	switch current {
	case StatusAtivo:
		return target == StatusPausado || target == StatusCancelado || target == StatusFinalizado
	case StatusPausado:
		return target == StatusAtivo || target == StatusCancelado || target == StatusFinalizado
	case StatusCancelado:
		return target == StatusAtivo
	case StatusFinalizado:
		return false
	default:
		return false
	}
}

// CanCancel is the automatic (cascade) variant: it never reopens and never
// leaves a terminal state.
func CanCancel(current Status) bool {
	switch current {
	case StatusAtivo, StatusPausado, StatusCancelado:
		return true
	case StatusFinalizado:
		return false
	default:
		return false
	}
}

func CanTransitionSigning(current, target SigningState) bool {
	if current == target {
		return true
	}
	switch current {
	case SigningNaoAssinado:
		return target == SigningAssinado || target == SigningCancelado
	case SigningAssinado:
		return target == SigningCancelado
	case SigningCancelado:
		return false
	default:
		return false
	}
}

// SigningDates fills the date that the target signing state requires when the
// caller did not supply one: assinado needs signedAt, cancelado needs cancelledAt.
func SigningDates(state SigningState, signedAt, cancelledAt *time.Time, today time.Time) (*time.Time, *time.Time) {
	switch state {
	case SigningAssinado:
		if signedAt == nil {
			t := today
			signedAt = &t
		}
	case SigningCancelado:
		if cancelledAt == nil {
			t := today
			cancelledAt = &t
		}
	case SigningNaoAssinado:
	}
	return signedAt, cancelledAt
}
