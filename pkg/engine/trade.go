package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Trade records one side of a matched execution. Two records share a
// sequence number, one keyed under each party, so each party can query
// its own history independently. Sequence numbers are globally increasing
// and double as a coarse timestamp.
type Trade struct {
	Party        common.Address `json:"party"`
	Counterparty common.Address `json:"counterparty"`
	OrderRef     common.Hash    `json:"orderRef"`
	CounterRef   common.Hash    `json:"counterRef"`
	SecurityQty  *uint256.Int   `json:"securityQty"`
	CurrencyQty  *uint256.Int   `json:"currencyQty"`
	Price        *uint256.Int   `json:"price"`
	Seq          uint64         `json:"seq"`
	Reversal     bool           `json:"reversal,omitempty"`
}

func (t *Trade) clone() *Trade {
	cp := *t
	cp.SecurityQty = new(uint256.Int).Set(t.SecurityQty)
	cp.CurrencyQty = new(uint256.Int).Set(t.CurrencyQty)
	cp.Price = new(uint256.Int).Set(t.Price)
	return &cp
}

// tradeLedger maps (party, seq) to trades, plus a per-party ordered seq
// index so history removal does not scan every trade.
type tradeLedger struct {
	byParty map[common.Address]map[uint64]*Trade
	seqs    map[common.Address][]uint64
}

func newTradeLedger() *tradeLedger {
	return &tradeLedger{
		byParty: make(map[common.Address]map[uint64]*Trade),
		seqs:    make(map[common.Address][]uint64),
	}
}

func (l *tradeLedger) put(t *Trade) {
	m, ok := l.byParty[t.Party]
	if !ok {
		m = make(map[uint64]*Trade)
		l.byParty[t.Party] = m
	}
	m[t.Seq] = t
	l.seqs[t.Party] = append(l.seqs[t.Party], t.Seq)
}

func (l *tradeLedger) get(party common.Address, seq uint64) (*Trade, error) {
	if t, ok := l.byParty[party][seq]; ok {
		return t, nil
	}
	return nil, statef("no trade %d for party %s", seq, party)
}

func (l *tradeLedger) remove(party common.Address, seq uint64) error {
	if _, ok := l.byParty[party][seq]; !ok {
		return statef("no trade %d for party %s", seq, party)
	}
	delete(l.byParty[party], seq)
	ss := l.seqs[party]
	for i, s := range ss {
		if s == seq {
			l.seqs[party] = append(ss[:i], ss[i+1:]...)
			break
		}
	}
	return nil
}

// list returns a copy of the party's trade sequences in report order.
func (l *tradeLedger) list(party common.Address) []uint64 {
	out := make([]uint64, len(l.seqs[party]))
	copy(out, l.seqs[party])
	return out
}
