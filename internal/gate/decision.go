// Package gate decides what a status change needs before it may commit and
// turns a committed change into primary-store writes plus ledger calls. The
// rules are fixed business policy; nothing here is configurable.
package gate

import (
	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// Outcome classifies a requested status change.
type Outcome string

const (
	OutcomeNoOp          Outcome = "noop"
	OutcomeImmediate     Outcome = "immediate"
	OutcomeRequiresInput Outcome = "requires_input"
)

// InputKind is the kind of supplemental value a transition collects.
type InputKind string

const (
	InputAppointment     InputKind = "appointment"
	InputTechnicalReason InputKind = "technical_reason"
	InputResolution      InputKind = "resolution"
	InputBudget          InputKind = "budget"
)

// Requirement names the supplemental input. ReasonSet is set only for
// InputResolution.
type Requirement struct {
	Kind      InputKind        `json:"kind"`
	ReasonSet domain.ReasonSet `json:"reason_set,omitempty"`
}

// Decision is the result of Decide.
type Decision struct {
	Outcome     Outcome
	Requirement Requirement
}

// RequiresInput reports whether a supplemental value must be collected.
func (d Decision) RequiresInput() bool {
	return d.Outcome == OutcomeRequiresInput
}

func noop() Decision      { return Decision{Outcome: OutcomeNoOp} }
func immediate() Decision { return Decision{Outcome: OutcomeImmediate} }

func requires(kind InputKind) Decision {
	return Decision{Outcome: OutcomeRequiresInput, Requirement: Requirement{Kind: kind}}
}

func requiresResolution(set domain.ReasonSet) Decision {
	return Decision{Outcome: OutcomeRequiresInput, Requirement: Requirement{Kind: InputResolution, ReasonSet: set}}
}

// Policy holds the variant-specific rule switches.
type Policy struct {
	variant domain.Variant
	// budgetIsResolution folds BudgetSent into the resolution rule with the
	// budget-rejection vocabulary instead of asking for a catalog budget.
	budgetIsResolution bool
	// processingFlag enables the tramitado/ipartner rule.
	processingFlag bool
	binding        *binding
}

// PolicyFor returns the rules for a work order variant.
func PolicyFor(variant domain.Variant) (Policy, error) {
	if !variant.Valid() {
		return Policy{}, apperrors.NewValidationError("unknown work order variant", map[string]any{"variant": string(variant)})
	}
	p := Policy{variant: variant}
	switch variant {
	case domain.VariantCollection:
		p.budgetIsResolution = true
	case domain.VariantInstallation:
		p.processingFlag = true
	}
	if b, ok := bindings[variant]; ok {
		p.binding = &b
	}
	return p, nil
}

// Variant returns the variant the policy applies to.
func (p Policy) Variant() domain.Variant {
	return p.variant
}

// Decide applies the transition rules in order; the first match wins.
func (p Policy) Decide(current, target domain.WorkOrderStatus) Decision {
	switch {
	case target == "" || target == current:
		return noop()
	case target == domain.StatusScheduled:
		return requires(InputAppointment)
	case target == domain.StatusPendingAssignment || target == domain.StatusMaterialSent:
		return requires(InputTechnicalReason)
	case target == domain.StatusCancelled:
		return requiresResolution(domain.ReasonSetCancellation)
	case target == domain.StatusCompleted:
		return requiresResolution(domain.ReasonSetCompletion)
	case target == domain.StatusBudgetSent && p.budgetIsResolution:
		return requiresResolution(domain.ReasonSetBudgetRejection)
	case target == domain.StatusBudgetSent:
		return requires(InputBudget)
	default:
		return immediate()
	}
}
