package domain

// WorkOrderStatus enumerates lifecycle states for work orders. Values match
// the ones stored in the primary record store.
type WorkOrderStatus string

const (
	StatusPending           WorkOrderStatus = "Pendiente"
	StatusAccepted          WorkOrderStatus = "Aceptado"
	StatusScheduled         WorkOrderStatus = "Citado"
	StatusInProgress        WorkOrderStatus = "En curso"
	StatusPendingAssignment WorkOrderStatus = "Pendiente de asignación"
	StatusMaterialSent      WorkOrderStatus = "Material enviado"
	StatusBudgetSent        WorkOrderStatus = "Presupuesto enviado"
	StatusCancelled         WorkOrderStatus = "Cancelado"
	StatusCompleted         WorkOrderStatus = "Finalizado"
)

var knownStatuses = map[WorkOrderStatus]struct{}{
	StatusPending:           {},
	StatusAccepted:          {},
	StatusScheduled:         {},
	StatusInProgress:        {},
	StatusPendingAssignment: {},
	StatusMaterialSent:      {},
	StatusBudgetSent:        {},
	StatusCancelled:         {},
	StatusCompleted:         {},
}

// Valid reports whether the status is part of the fixed lifecycle.
func (s WorkOrderStatus) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// Variant selects the business flavour of a work order. Some gate rules and
// all ledger bindings differ per variant.
type Variant string

const (
	VariantInstallation     Variant = "instalacion"
	VariantRepair           Variant = "reparacion"
	VariantCollection       Variant = "recogida"
	VariantAdvisory         Variant = "asesoramiento"
	VariantRemoteResolution Variant = "resolucion_remota"
)

// Valid reports whether the variant is known.
func (v Variant) Valid() bool {
	switch v {
	case VariantInstallation, VariantRepair, VariantCollection, VariantAdvisory, VariantRemoteResolution:
		return true
	}
	return false
}
