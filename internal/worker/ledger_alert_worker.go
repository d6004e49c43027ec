package worker

import (
	"github.com/spec-kit/workorder-service/internal/service"
)

// StartLedgerAlertWorker registers the ledger alert handlers.
func StartLedgerAlertWorker(alerts *service.LedgerAlertService) {
	if alerts == nil {
		return
	}
	alerts.RegisterHandlers()
}
