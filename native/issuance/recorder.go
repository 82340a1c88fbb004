package issuance

import (
	"log/slog"

	"curvemint/core/events"
)

// Recorder is an events.Emitter that persists settled trades into the audit
// ledger. Persistence errors are logged and never propagate back into the
// engine: the trade has already committed by the time the event fires.
type Recorder struct {
	ledger *AuditLedger
	log    *slog.Logger
}

// NewRecorder binds a recorder to the audit ledger.
func NewRecorder(ledger *AuditLedger, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{ledger: ledger, log: log}
}

// Emit implements events.Emitter.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || r.ledger == nil || evt == nil {
		return
	}
	switch payload := evt.(type) {
	case events.TokenMinted:
		record := &TradeRecord{
			Kind:         TradeKindMint,
			Account:      payload.Buyer,
			Reserve:      payload.Deposited,
			Tokens:       payload.TotalMinted,
			BuyerShare:   payload.BuyerShare,
			FounderShare: payload.FounderShare,
		}
		if err := r.ledger.Put(record); err != nil {
			r.log.Error("record mint", "error", err)
		}
	case events.TokenBurned:
		record := &TradeRecord{
			Kind:    TradeKindBurn,
			Account: payload.Seller,
			Reserve: payload.Reimbursed,
			Tokens:  payload.Burned,
		}
		if err := r.ledger.Put(record); err != nil {
			r.log.Error("record burn", "error", err)
		}
	}
}
