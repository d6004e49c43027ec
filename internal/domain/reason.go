package domain

// ReasonSet names one of the closed resolution vocabularies.
type ReasonSet string

const (
	ReasonSetCancellation    ReasonSet = "cancellation"
	ReasonSetCompletion      ReasonSet = "completion"
	ReasonSetBudgetRejection ReasonSet = "budget_rejection"
)

var reasonVocabularies = map[ReasonSet][]string{
	ReasonSetCancellation: {
		"Cliente desiste",
		"Duplicado",
		"Fuera de cobertura",
		"Sin respuesta del cliente",
	},
	ReasonSetCompletion: {
		"Instalado",
		"Reparado",
		"Sustituido",
		"Recogido",
		"Resuelto en remoto",
		"Sin avería",
	},
	ReasonSetBudgetRejection: {
		"Precio elevado",
		"Reparación no rentable",
		"Cliente no acepta plazo",
	},
}

// Reasons returns a copy of the vocabulary for the set.
func (r ReasonSet) Reasons() []string {
	src := reasonVocabularies[r]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Contains reports whether value belongs to the vocabulary.
func (r ReasonSet) Contains(value string) bool {
	for _, candidate := range reasonVocabularies[r] {
		if candidate == value {
			return true
		}
	}
	return false
}

// Valid reports whether r names a known vocabulary.
func (r ReasonSet) Valid() bool {
	_, ok := reasonVocabularies[r]
	return ok
}
