package domain

import "time"

// Field names a writable column of the primary record store.
type Field string

const (
	FieldStatus          Field = "estado"
	FieldStatusChangedAt Field = "estado_cambiado_en"
	FieldAppointment     Field = "cita"
	FieldResolution      Field = "motivo_resolucion"
	FieldTechnicalReason Field = "motivo_tecnico"
	FieldBudget          Field = "presupuesto"
	FieldProcessed       Field = "tramitado"
	FieldPartner         Field = "ipartner"
)

// WritableFields lists every field the gate may write.
var WritableFields = []Field{
	FieldStatus,
	FieldStatusChangedAt,
	FieldAppointment,
	FieldResolution,
	FieldTechnicalReason,
	FieldBudget,
	FieldProcessed,
	FieldPartner,
}

// FieldMutations is the set of primary-store writes produced by one commit.
// A nil value clears the field.
type FieldMutations map[Field]any

// WorkOrder is the subset of the field-service entity that the status gate
// reads and writes.
type WorkOrder struct {
	ID              string
	Key             string
	Variant         Variant
	Status          WorkOrderStatus
	StatusChangedAt time.Time
	Appointment     *time.Time
	Resolution      *string
	TechnicalReason *string
	Budget          *string
	Processed       bool
	Partner         *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Apply returns a copy of the work order with the mutations applied. The
// receiver is left untouched.
func (w WorkOrder) Apply(m FieldMutations) WorkOrder {
	out := w
	for field, value := range m {
		switch field {
		case FieldStatus:
			if s, ok := value.(WorkOrderStatus); ok {
				out.Status = s
			}
		case FieldStatusChangedAt:
			if t, ok := value.(time.Time); ok {
				out.StatusChangedAt = t
			}
		case FieldAppointment:
			out.Appointment = timePtr(value)
		case FieldResolution:
			out.Resolution = stringPtr(value)
		case FieldTechnicalReason:
			out.TechnicalReason = stringPtr(value)
		case FieldBudget:
			out.Budget = stringPtr(value)
		case FieldProcessed:
			if b, ok := value.(bool); ok {
				out.Processed = b
			}
		case FieldPartner:
			out.Partner = stringPtr(value)
		}
	}
	return out
}

func timePtr(value any) *time.Time {
	if t, ok := value.(time.Time); ok {
		return &t
	}
	return nil
}

func stringPtr(value any) *string {
	if s, ok := value.(string); ok {
		return &s
	}
	return nil
}
