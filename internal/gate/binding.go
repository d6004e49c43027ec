package gate

import "github.com/spec-kit/workorder-service/internal/domain"

// binding ties a variant to the status-driven ledger of one tracked process.
// The interval is open while the work order sits in a tracked status, closes
// on completion and is cancelled when the order leaves the tracked statuses
// any other way.
type binding struct {
	process domain.TrackedProcess
	tracked map[domain.WorkOrderStatus]struct{}
}

func (b binding) tracks(status domain.WorkOrderStatus) bool {
	_, ok := b.tracked[status]
	return ok
}

func statusSet(statuses ...domain.WorkOrderStatus) map[domain.WorkOrderStatus]struct{} {
	out := make(map[domain.WorkOrderStatus]struct{}, len(statuses))
	for _, s := range statuses {
		out[s] = struct{}{}
	}
	return out
}

var bindings = map[domain.Variant]binding{
	domain.VariantCollection: {
		process: domain.ProcessCollection,
		tracked: statusSet(domain.StatusScheduled),
	},
	domain.VariantAdvisory: {
		process: domain.ProcessAdvisory,
		tracked: statusSet(domain.StatusAccepted, domain.StatusScheduled, domain.StatusInProgress),
	},
	domain.VariantRemoteResolution: {
		process: domain.ProcessRemoteResolution,
		tracked: statusSet(domain.StatusPendingAssignment, domain.StatusMaterialSent, domain.StatusInProgress),
	},
}

// Coverage describes which work orders should hold an open interval for a
// process. The coverage sweep uses it to drive EnsureOpen.
type Coverage struct {
	Process  domain.TrackedProcess
	Variant  domain.Variant
	Statuses []domain.WorkOrderStatus
	// Unprocessed selects orders with tramitado = false instead of statuses.
	Unprocessed bool
}

// CoverageFor returns the coverage rule for a process.
func CoverageFor(process domain.TrackedProcess) (Coverage, bool) {
	if process == domain.ProcessProcessing {
		return Coverage{Process: process, Variant: domain.VariantInstallation, Unprocessed: true}, true
	}
	for variant, b := range bindings {
		if b.process != process {
			continue
		}
		cov := Coverage{Process: process, Variant: variant}
		for _, status := range orderedStatuses {
			if b.tracks(status) {
				cov.Statuses = append(cov.Statuses, status)
			}
		}
		return cov, true
	}
	return Coverage{}, false
}

var orderedStatuses = []domain.WorkOrderStatus{
	domain.StatusPending,
	domain.StatusAccepted,
	domain.StatusScheduled,
	domain.StatusInProgress,
	domain.StatusPendingAssignment,
	domain.StatusMaterialSent,
	domain.StatusBudgetSent,
	domain.StatusCancelled,
	domain.StatusCompleted,
}
