package components

import (
	"log/slog"

	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/reconciliation/service"
)

// VOPGateImpl holds credits whose payee verification is anything but MATCH.
// Events without a VOP status pass.
type VOPGateImpl struct {
	logger *slog.Logger
}

func NewVOPGate(logger *slog.Logger) service.VOPGate {
	return &VOPGateImpl{logger: logger}
}

func (g *VOPGateImpl) Evaluate(event *payment.Event) (bool, string) {
	if event.VOPStatus == "" || event.VOPStatus == payment.VOPMatch {
		return false, ""
	}

	g.logger.Warn("Holding payment for payee verification review",
		"provider_transaction_id", event.ProviderTransactionID,
		"vop_status", event.VOPStatus,
	)
	return true, "payee verification returned " + string(event.VOPStatus)
}
