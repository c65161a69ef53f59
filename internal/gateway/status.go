package gateway

import (
	"strings"

	"github.com/rajasatyajit/balanca-checkout/internal/logger"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

// StatusTable maps one gateway's status vocabulary onto the proxy's. Only
// listed paid values become SUCCESS; unlisted values stay PENDING.
type StatusTable struct {
	provider string
	entries  map[string]models.Status
}

func newStatusTable(provider string, paid, pending []string) StatusTable {
	t := StatusTable{provider: provider, entries: make(map[string]models.Status, len(paid)+len(pending))}
	for _, s := range paid {
		t.entries[strings.ToUpper(s)] = models.StatusSuccess
	}
	for _, s := range pending {
		t.entries[strings.ToUpper(s)] = models.StatusPending
	}
	return t
}

// Normalize maps raw onto PENDING or SUCCESS. known is false for values
// outside the table.
func (t StatusTable) Normalize(raw string) (status models.Status, known bool) {
	s, ok := t.entries[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		logger.Warn("Unrecognized gateway status treated as pending", "provider", t.provider, "status", raw)
		return models.StatusPending, false
	}
	return s, true
}

var (
	abacateLegacyStatuses = newStatusTable("abacatepay",
		[]string{"PAID", "APPROVED"},
		[]string{"PENDING", "PENDING_PAYMENT", "WAITING_PAYMENT"},
	)
	abacateV1Statuses = newStatusTable("abacatepay",
		[]string{"PAID", "COMPLETED"},
		[]string{"PENDING", "EXPIRED", "CANCELLED", "REFUNDED"},
	)
	stripeStatuses = newStatusTable("stripe",
		[]string{"succeeded"},
		[]string{"requires_payment_method", "requires_confirmation", "requires_action", "processing", "requires_capture", "canceled"},
	)
	sandboxStatuses = newStatusTable("sandbox",
		[]string{"PAID"},
		[]string{"PENDING"},
	)
)
