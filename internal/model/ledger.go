package model

// LedgerKind names one of the three persisted ledger pools.
type LedgerKind string

// Ledger kinds. Primary and auxiliary are replaced wholesale on load; the
// incremental pool is merged block-by-block so earlier submissions survive.
const (
	LedgerPrimary     LedgerKind = "primary"
	LedgerAuxiliary   LedgerKind = "auxiliary"
	LedgerIncremental LedgerKind = "incremental"
)

// LedgerKinds lists every pool, in load order.
func LedgerKinds() []LedgerKind {
	return []LedgerKind{LedgerPrimary, LedgerAuxiliary, LedgerIncremental}
}

// ParseLedgerKind converts a string to a LedgerKind, reporting whether it is
// known.
func ParseLedgerKind(s string) (LedgerKind, bool) {
	switch LedgerKind(s) {
	case LedgerPrimary, LedgerAuxiliary, LedgerIncremental:
		return LedgerKind(s), true
	default:
		return "", false
	}
}
