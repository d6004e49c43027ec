package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

var now = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func policy(t *testing.T, v domain.Variant) Policy {
	t.Helper()
	p, err := PolicyFor(v)
	require.NoError(t, err)
	return p
}

func strPtr(s string) *string { return &s }

func order(v domain.Variant, status domain.WorkOrderStatus) domain.WorkOrder {
	return domain.WorkOrder{
		ID:              "id-1",
		Key:             "WO-100",
		Variant:         v,
		Status:          status,
		StatusChangedAt: now.Add(-6 * time.Hour),
		CreatedAt:       now.Add(-72 * time.Hour),
	}
}

func commit(t *testing.T, p Policy, o domain.WorkOrder, target domain.WorkOrderStatus, s Supplement, budget ...string) (*Plan, error) {
	t.Helper()
	pending, err := p.Begin(o, target)
	require.NoError(t, err)
	return p.Commit(o, CommitInput{Pending: pending, Supplement: s, BudgetOptions: budget, Now: now})
}

func TestDecideRules(t *testing.T) {
	repair := policy(t, domain.VariantRepair)
	collection := policy(t, domain.VariantCollection)

	cases := []struct {
		name    string
		p       Policy
		current domain.WorkOrderStatus
		target  domain.WorkOrderStatus
		want    Decision
	}{
		{"accepted to scheduled", repair, domain.StatusAccepted, domain.StatusScheduled, requires(InputAppointment)},
		{"scheduled to scheduled", repair, domain.StatusScheduled, domain.StatusScheduled, noop()},
		{"empty target", repair, domain.StatusScheduled, "", noop()},
		{"pending assignment", repair, domain.StatusAccepted, domain.StatusPendingAssignment, requires(InputTechnicalReason)},
		{"material sent", repair, domain.StatusAccepted, domain.StatusMaterialSent, requires(InputTechnicalReason)},
		{"cancelled", repair, domain.StatusAccepted, domain.StatusCancelled, requiresResolution(domain.ReasonSetCancellation)},
		{"completed", repair, domain.StatusInProgress, domain.StatusCompleted, requiresResolution(domain.ReasonSetCompletion)},
		{"budget from catalog", repair, domain.StatusAccepted, domain.StatusBudgetSent, requires(InputBudget)},
		{"budget folded into resolution", collection, domain.StatusAccepted, domain.StatusBudgetSent, requiresResolution(domain.ReasonSetBudgetRejection)},
		{"in progress", repair, domain.StatusScheduled, domain.StatusInProgress, immediate()},
		{"accepted", repair, domain.StatusPending, domain.StatusAccepted, immediate()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.p.Decide(tc.current, tc.target))
		})
	}
}

func TestReasonVocabulariesAreDisjoint(t *testing.T) {
	sets := []domain.ReasonSet{domain.ReasonSetCancellation, domain.ReasonSetCompletion, domain.ReasonSetBudgetRejection}
	seen := map[string]domain.ReasonSet{}
	for _, set := range sets {
		for _, reason := range set.Reasons() {
			owner, dup := seen[reason]
			assert.False(t, dup, "%q in %s and %s", reason, owner, set)
			seen[reason] = set
		}
	}
}

func TestPolicyForRejectsUnknownVariant(t *testing.T) {
	_, err := PolicyFor("boat")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestBeginBuildsPendingTransition(t *testing.T) {
	p := policy(t, domain.VariantRepair)
	o := order(domain.VariantRepair, domain.StatusAccepted)

	pending, err := p.Begin(o, domain.StatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, "id-1", pending.WorkOrderID)
	assert.Equal(t, domain.StatusAccepted, pending.From)
	assert.Equal(t, OutcomeRequiresInput, pending.Outcome)
	require.NotNil(t, pending.Requirement)
	assert.Equal(t, InputAppointment, pending.Requirement.Kind)

	pending, err = p.Begin(o, domain.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, OutcomeImmediate, pending.Outcome)
	assert.Nil(t, pending.Requirement)

	_, err = p.Begin(o, "Perdido")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestCommitScheduledSetsAppointmentAndClearsResolution(t *testing.T) {
	p := policy(t, domain.VariantRepair)
	o := order(domain.VariantRepair, domain.StatusAccepted)
	o.Resolution = strPtr("Duplicado")
	appt := now.Add(48 * time.Hour)

	plan, err := commit(t, p, o, domain.StatusScheduled, Supplement{Appointment: &appt})
	require.NoError(t, err)

	assert.Equal(t, domain.FieldMutations{
		domain.FieldStatus:          domain.StatusScheduled,
		domain.FieldStatusChangedAt: now,
		domain.FieldAppointment:     appt,
		domain.FieldResolution:      nil,
	}, plan.Mutations)
	assert.Empty(t, plan.Ledger)
}

func TestCommitCancelledClearsTechnicalReason(t *testing.T) {
	p := policy(t, domain.VariantRepair)
	o := order(domain.VariantRepair, domain.StatusMaterialSent)
	o.TechnicalReason = strPtr("Falta pieza")

	plan, err := commit(t, p, o, domain.StatusCancelled, Supplement{Value: "Cliente desiste"})
	require.NoError(t, err)

	assert.Equal(t, "Cliente desiste", plan.Mutations[domain.FieldResolution])
	value, present := plan.Mutations[domain.FieldTechnicalReason]
	assert.True(t, present)
	assert.Nil(t, value)
}

func TestCommitTechnicalReasonClearsResolution(t *testing.T) {
	p := policy(t, domain.VariantRepair)
	o := order(domain.VariantRepair, domain.StatusAccepted)

	plan, err := commit(t, p, o, domain.StatusPendingAssignment, Supplement{Value: "  Sin técnico en zona "})
	require.NoError(t, err)
	assert.Equal(t, "Sin técnico en zona", plan.Mutations[domain.FieldTechnicalReason])
	_, cleared := plan.Mutations[domain.FieldResolution]
	assert.True(t, cleared)
}

func TestCommitValidation(t *testing.T) {
	p := policy(t, domain.VariantRepair)
	collection := policy(t, domain.VariantCollection)

	cases := []struct {
		name   string
		p      Policy
		status domain.WorkOrderStatus
		target domain.WorkOrderStatus
		s      Supplement
		budget []string
	}{
		{"missing appointment", p, domain.StatusAccepted, domain.StatusScheduled, Supplement{}, nil},
		{"blank technical reason", p, domain.StatusAccepted, domain.StatusMaterialSent, Supplement{Value: "   "}, nil},
		{"completion reason used for cancel", p, domain.StatusAccepted, domain.StatusCancelled, Supplement{Value: "Reparado"}, nil},
		{"empty budget", p, domain.StatusAccepted, domain.StatusBudgetSent, Supplement{Value: ""}, []string{"B-100"}},
		{"budget outside catalog", p, domain.StatusAccepted, domain.StatusBudgetSent, Supplement{Value: "B-999"}, []string{"B-100"}},
		{"rejection reason required", collection, domain.StatusAccepted, domain.StatusBudgetSent, Supplement{Value: "B-100"}, []string{"B-100"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := order(tc.p.Variant(), tc.status)
			_, err := commit(t, tc.p, o, tc.target, tc.s, tc.budget...)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed), "got %v", err)
		})
	}
}

func TestCommitBudget(t *testing.T) {
	p := policy(t, domain.VariantRepair)
	plan, err := commit(t, p, order(domain.VariantRepair, domain.StatusAccepted), domain.StatusBudgetSent,
		Supplement{Value: "B-100"}, "B-100", "B-200")
	require.NoError(t, err)
	assert.Equal(t, "B-100", plan.Mutations[domain.FieldBudget])

	collection := policy(t, domain.VariantCollection)
	plan, err = commit(t, collection, order(domain.VariantCollection, domain.StatusAccepted), domain.StatusBudgetSent,
		Supplement{Value: "Precio elevado"})
	require.NoError(t, err)
	assert.Equal(t, "Precio elevado", plan.Mutations[domain.FieldResolution])
	_, cleared := plan.Mutations[domain.FieldTechnicalReason]
	assert.True(t, cleared)
}

func TestCommitRejectsStalePending(t *testing.T) {
	p := policy(t, domain.VariantRepair)
	o := order(domain.VariantRepair, domain.StatusAccepted)
	pending, err := p.Begin(o, domain.StatusScheduled)
	require.NoError(t, err)

	// The order moved on before the appointment was supplied.
	o.Status = domain.StatusMaterialSent
	appt := now.Add(time.Hour)
	_, err = p.Commit(o, CommitInput{Pending: pending, Supplement: Supplement{Appointment: &appt}, Now: now})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	other := o
	other.ID = "id-2"
	other.Status = domain.StatusAccepted
	_, err = p.Commit(other, CommitInput{Pending: pending, Supplement: Supplement{Appointment: &appt}, Now: now})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestCommitNoOpIsEmptyPlan(t *testing.T) {
	p := policy(t, domain.VariantInstallation)
	plan, err := commit(t, p, order(domain.VariantInstallation, domain.StatusScheduled), domain.StatusScheduled, Supplement{})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestCommitDoesNotMutateOrder(t *testing.T) {
	p := policy(t, domain.VariantRepair)
	o := order(domain.VariantRepair, domain.StatusMaterialSent)
	o.TechnicalReason = strPtr("Falta pieza")
	before := o

	_, err := commit(t, p, o, domain.StatusCompleted, Supplement{Value: "Reparado"})
	require.NoError(t, err)
	assert.Equal(t, before, o)
}

func TestInstallationResetsProcessedOnEveryStatusChange(t *testing.T) {
	p := policy(t, domain.VariantInstallation)
	o := order(domain.VariantInstallation, domain.StatusAccepted)
	o.Processed = true

	plan, err := commit(t, p, o, domain.StatusInProgress, Supplement{})
	require.NoError(t, err)
	assert.Equal(t, false, plan.Mutations[domain.FieldProcessed])
	assert.Equal(t, []LedgerAction{{Op: LedgerOpen, Process: domain.ProcessProcessing, Key: "WO-100"}}, plan.Ledger)

	repair := policy(t, domain.VariantRepair)
	plan, err = commit(t, repair, order(domain.VariantRepair, domain.StatusAccepted), domain.StatusInProgress, Supplement{})
	require.NoError(t, err)
	_, touched := plan.Mutations[domain.FieldProcessed]
	assert.False(t, touched)
}

func TestAssignPartner(t *testing.T) {
	p := policy(t, domain.VariantInstallation)
	o := order(domain.VariantInstallation, domain.StatusInProgress)

	plan := p.AssignPartner(o, " P-77 ", now)
	assert.Equal(t, domain.FieldMutations{
		domain.FieldPartner:   "P-77",
		domain.FieldProcessed: true,
	}, plan.Mutations)
	assert.Equal(t, []LedgerAction{{
		Op:               LedgerClose,
		Process:          domain.ProcessProcessing,
		Key:              "WO-100",
		ClosedAt:         now,
		BackfillOpenedAt: o.StatusChangedAt,
	}}, plan.Ledger)

	o.Partner = strPtr("P-77")
	assert.True(t, p.AssignPartner(o, "P-77", now).Empty())

	plan = p.AssignPartner(o, "", now)
	assert.Equal(t, domain.FieldMutations{domain.FieldPartner: nil}, plan.Mutations)
	assert.Empty(t, plan.Ledger)

	processed := o
	processed.Processed = true
	plan = p.AssignPartner(processed, "P-88", now)
	assert.Equal(t, domain.FieldMutations{domain.FieldPartner: "P-88"}, plan.Mutations)
	assert.Empty(t, plan.Ledger, "processing time is not measured twice")

	processed.Partner = nil
	plan = p.AssignPartner(processed, "P-88", now)
	assert.Equal(t, true, plan.Mutations[domain.FieldProcessed])
	require.Len(t, plan.Ledger, 1)
	assert.Equal(t, LedgerClose, plan.Ledger[0].Op)

	repair := policy(t, domain.VariantRepair)
	plan = repair.AssignPartner(order(domain.VariantRepair, domain.StatusInProgress), "P-1", now)
	assert.Equal(t, domain.FieldMutations{domain.FieldPartner: "P-1"}, plan.Mutations)
	assert.Empty(t, plan.Ledger)
}

func TestCollectionLedgerBinding(t *testing.T) {
	p := policy(t, domain.VariantCollection)
	appt := now.Add(24 * time.Hour)

	plan, err := commit(t, p, order(domain.VariantCollection, domain.StatusAccepted), domain.StatusScheduled, Supplement{Appointment: &appt})
	require.NoError(t, err)
	assert.Equal(t, []LedgerAction{{Op: LedgerOpen, Process: domain.ProcessCollection, Key: "WO-100"}}, plan.Ledger)

	// Rescheduled out of the tracked status before completion.
	plan, err = commit(t, p, order(domain.VariantCollection, domain.StatusScheduled), domain.StatusPendingAssignment, Supplement{Value: "Sin vehículo"})
	require.NoError(t, err)
	assert.Equal(t, []LedgerAction{{Op: LedgerCancel, Process: domain.ProcessCollection, Key: "WO-100"}}, plan.Ledger)

	o := order(domain.VariantCollection, domain.StatusScheduled)
	plan, err = commit(t, p, o, domain.StatusCompleted, Supplement{Value: "Recogido"})
	require.NoError(t, err)
	assert.Equal(t, []LedgerAction{{
		Op:               LedgerClose,
		Process:          domain.ProcessCollection,
		Key:              "WO-100",
		ClosedAt:         now,
		BackfillOpenedAt: o.StatusChangedAt,
	}}, plan.Ledger)

	plan, err = commit(t, p, order(domain.VariantCollection, domain.StatusPending), domain.StatusAccepted, Supplement{})
	require.NoError(t, err)
	assert.Empty(t, plan.Ledger)
}

func TestAdvisoryKeepsIntervalAcrossTrackedStatuses(t *testing.T) {
	p := policy(t, domain.VariantAdvisory)
	appt := now.Add(time.Hour)

	plan, err := commit(t, p, order(domain.VariantAdvisory, domain.StatusAccepted), domain.StatusScheduled, Supplement{Appointment: &appt})
	require.NoError(t, err)
	assert.Equal(t, LedgerOpen, plan.Ledger[0].Op, "open is idempotent so re-entering a tracked status is safe")

	plan, err = commit(t, p, order(domain.VariantAdvisory, domain.StatusInProgress), domain.StatusCancelled, Supplement{Value: "Duplicado"})
	require.NoError(t, err)
	assert.Equal(t, []LedgerAction{{Op: LedgerCancel, Process: domain.ProcessAdvisory, Key: "WO-100"}}, plan.Ledger)
}

func TestBackfillFallsBackToCreatedAt(t *testing.T) {
	p := policy(t, domain.VariantRemoteResolution)
	o := order(domain.VariantRemoteResolution, domain.StatusMaterialSent)
	o.StatusChangedAt = time.Time{}

	plan, err := commit(t, p, o, domain.StatusCompleted, Supplement{Value: "Resuelto en remoto"})
	require.NoError(t, err)
	require.Len(t, plan.Ledger, 1)
	assert.Equal(t, o.CreatedAt, plan.Ledger[0].BackfillOpenedAt)
}

func TestCoverageFor(t *testing.T) {
	cov, ok := CoverageFor(domain.ProcessCollection)
	require.True(t, ok)
	assert.Equal(t, domain.VariantCollection, cov.Variant)
	assert.Equal(t, []domain.WorkOrderStatus{domain.StatusScheduled}, cov.Statuses)

	cov, ok = CoverageFor(domain.ProcessRemoteResolution)
	require.True(t, ok)
	assert.Equal(t, []domain.WorkOrderStatus{domain.StatusInProgress, domain.StatusPendingAssignment, domain.StatusMaterialSent}, cov.Statuses)

	cov, ok = CoverageFor(domain.ProcessProcessing)
	require.True(t, ok)
	assert.True(t, cov.Unprocessed)
	assert.Equal(t, domain.VariantInstallation, cov.Variant)

	_, ok = CoverageFor("unknown")
	assert.False(t, ok)
}
