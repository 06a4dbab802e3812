package config

import (
	"os"
	"strings"
)

// TransferCreditOnComplete defers the destination credit of a warehouse transfer
// from initiation to completion.
//
// Set via env:
// - TRANSFER_CREDIT_ON_COMPLETE=true
func TransferCreditOnComplete() bool {
	return envBool("TRANSFER_CREDIT_ON_COMPLETE", false)
}

// OutboxDispatchEnabled controls the background ledger event publisher.
//
// Set via env:
// - OUTBOX_DISPATCH_ENABLED=false
func OutboxDispatchEnabled() bool {
	return envBool("OUTBOX_DISPATCH_ENABLED", true)
}

// LedgerReconcileSchedule is the cron spec of the projection drift check, empty when disabled.
//
// Set via env:
// - LEDGER_RECONCILE_SCHEDULE="@every 15m"
func LedgerReconcileSchedule() string {
	return strings.TrimSpace(os.Getenv("LEDGER_RECONCILE_SCHEDULE"))
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	default:
		return def
	}
}
