package engine

import "github.com/ethereum/go-ethereum/common"

// orderLedger is the source of truth for order state. Purged references
// are tombstoned so a settled-and-removed order stays distinguishable
// from one that never existed.
type orderLedger struct {
	orders map[common.Hash]*Order
	purged map[common.Hash]struct{}
}

func newOrderLedger() *orderLedger {
	return &orderLedger{
		orders: make(map[common.Hash]*Order),
		purged: make(map[common.Hash]struct{}),
	}
}

func (l *orderLedger) put(o *Order) {
	l.orders[o.Ref] = o
}

func (l *orderLedger) get(ref common.Hash) (*Order, error) {
	if o, ok := l.orders[ref]; ok {
		return o, nil
	}
	if _, ok := l.purged[ref]; ok {
		return nil, statef("order %s settled and purged", ref)
	}
	return nil, statef("unknown order %s", ref)
}

// lookup is get without the error, for the matching loop's stale-node
// checks.
func (l *orderLedger) lookup(ref common.Hash) (*Order, bool) {
	o, ok := l.orders[ref]
	return o, ok
}

func (l *orderLedger) purge(ref common.Hash) {
	delete(l.orders, ref)
	l.purged[ref] = struct{}{}
}
