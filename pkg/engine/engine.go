// Package engine implements the order ledger, trade ledger and matching
// engine for a single tokenized security traded against one settlement
// currency. Every entry point is atomic: it either completes all of its
// bookkeeping or fails without mutating state. Callers are serialized by
// the surrounding environment; the engine holds one lock per operation
// and emits events only after its state is consistent.
package engine

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/veritrade/secbook/pkg/book"
)

// Config carries the capability identities checked at each entry point:
// the contract owner and the settlement manager (in practice the pool
// facade acting for the settlement layer).
type Config struct {
	Owner   common.Address
	Manager common.Address
}

type Option func(*Engine)

// WithJournal persists ledger mutations through j.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithNotifier forwards engine events to n.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notify = n }
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(e *Engine) { e.log = log }
}

// SetNotifier installs the event sink after construction, for wiring
// where the sink itself needs the engine first.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notify = n
}

type Engine struct {
	mu sync.Mutex

	cfg    Config
	book   *book.Book
	orders *orderLedger
	trades *tradeLedger
	seq    Sequencer

	journal Journal
	notify  Notifier
	log     *zap.SugaredLogger
}

func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		book:   book.New(),
		orders: newOrderLedger(),
		trades: newTradeLedger(),
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewOrderResult reports what happened to an incoming order. Filled and
// Received are denominated in the order's token-in and token-out units
// respectively; LastSeq is the sequence of the last trade written, zero
// when nothing matched.
type NewOrderResult struct {
	Ref      common.Hash
	Filled   *uint256.Int
	Received *uint256.Int
	LastSeq  uint64
}

// NewOrder records an incoming order, rests it in its heap and matches it
// against the opposite side. The reference is minted from the submitter
// and an engine-owned monotonic sequence, so it is unique even for many
// orders from one owner in one batch.
func (e *Engine) NewOrder(owner common.Address, side Side, typ OrderType, price, qty *uint256.Int) (*NewOrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if typ != Market && typ != Limit {
		return nil, validationf("unsupported order type %d", typ)
	}
	if side != Buy && side != Sell {
		return nil, validationf("unsupported side %d", side)
	}
	if qty == nil || qty.IsZero() {
		return nil, validationf("zero quantity")
	}
	limit := new(uint256.Int)
	if typ == Limit {
		if price == nil || price.IsZero() {
			return nil, validationf("limit order needs a price")
		}
		limit.Set(price)
	} else if price != nil && !price.IsZero() {
		return nil, validationf("market order carries a price")
	}

	nonce := e.seq.Next()
	o := &Order{
		Ref:       mintRef(owner, nonce),
		Side:      side,
		Type:      typ,
		Status:    Open,
		Price:     limit,
		Remaining: new(uint256.Int).Set(qty),
		Owner:     owner,
		Nonce:     nonce,
	}
	e.orders.put(o)
	if side == Buy {
		e.book.InsertBuyOrder(o.Price, o.Ref)
	} else {
		e.book.InsertSellOrder(o.Price, o.Ref)
	}

	res, trades := e.match(o)
	e.persistOrder(o)

	if e.notify != nil {
		e.notify.OrderPlaced(OrderPlacedEvent{
			Ref:   o.Ref,
			Owner: o.Owner,
			Side:  o.Side.String(),
			Type:  o.Type.String(),
			Price: new(uint256.Int).Set(o.Price),
			Qty:   new(uint256.Int).Set(qty),
			Nonce: o.Nonce,
		})
		for _, t := range trades {
			e.notify.TradeExecuted(t)
		}
	}
	e.log.Infow("order_placed",
		"ref", o.Ref, "owner", o.Owner, "side", o.Side.String(),
		"type", o.Type.String(), "price", o.Price, "qty", qty,
		"status", o.Status.String(), "fills", len(trades))
	return res, nil
}

// match runs the taker against the opposite heap. Counter-orders owned by
// the taker, dust counters and zero-against-zero price crosses are set
// aside and reinserted afterwards; stale heap nodes whose orders are no
// longer resting are dropped.
func (e *Engine) match(taker *Order) (*NewOrderResult, []TradeExecutedEvent) {
	res := &NewOrderResult{
		Ref:      taker.Ref,
		Filled:   new(uint256.Int),
		Received: new(uint256.Int),
	}
	var events []TradeExecutedEvent
	var skipped []book.Node

	counterIsBuy := taker.Side == Sell
	pop := e.book.RemoveBestSell
	if counterIsBuy {
		pop = e.book.RemoveBestBuy
	}

	for !taker.Remaining.IsZero() {
		n, ok := pop()
		if !ok {
			break
		}
		maker, ok := e.orders.lookup(n.Ref)
		if !ok || !maker.resting() {
			continue // stale node
		}
		if maker.Owner == taker.Owner {
			skipped = append(skipped, n) // self-trade prevention
			continue
		}

		// Discovery price: the maker's limit, falling back to the
		// taker's own limit for unpriced makers. Two unpriced orders
		// cannot discover a price and never cross.
		px := n.Price
		if px.IsZero() {
			px = taker.Price
		}
		if px.IsZero() {
			skipped = append(skipped, n)
			continue
		}
		if taker.Type == Limit && !n.Price.IsZero() && !crosses(taker, n.Price) {
			// Priced counters arrive best-first, so nothing later
			// can cross either.
			e.book.Reinsert(n, counterIsBuy)
			break
		}

		secFill, curFill, ok := fillQuantities(taker, maker, px)
		if !ok {
			skipped = append(skipped, n)
			continue
		}

		if taker.Side == Sell {
			taker.Remaining.Sub(taker.Remaining, secFill)
			maker.Remaining.Sub(maker.Remaining, curFill)
			res.Filled.Add(res.Filled, secFill)
			res.Received.Add(res.Received, curFill)
		} else {
			taker.Remaining.Sub(taker.Remaining, curFill)
			maker.Remaining.Sub(maker.Remaining, secFill)
			res.Filled.Add(res.Filled, curFill)
			res.Received.Add(res.Received, secFill)
		}

		if maker.Remaining.IsZero() {
			maker.Status = Filled
		} else {
			maker.Status = PartlyFilled
			e.book.Reinsert(n, counterIsBuy)
		}
		e.persistOrder(maker)

		seq := e.reportTrade(taker, maker, secFill, curFill, px)
		res.LastSeq = seq
		events = append(events, TradeExecutedEvent{
			Seq:         seq,
			TakerRef:    taker.Ref,
			MakerRef:    maker.Ref,
			Taker:       taker.Owner,
			Maker:       maker.Owner,
			Price:       new(uint256.Int).Set(px),
			SecurityQty: secFill,
			CurrencyQty: curFill,
		})
	}

	for _, n := range skipped {
		e.book.Reinsert(n, counterIsBuy)
	}

	if taker.Remaining.IsZero() {
		taker.Status = Filled
		// Inserted pre-emptively before matching; a filled order must
		// not rest.
		e.book.Cancel(taker.Ref, taker.Side == Buy)
	} else if !res.Filled.IsZero() {
		taker.Status = PartlyFilled
	}
	return res, events
}

// crosses reports whether a counter limit price is acceptable to a limit
// taker: a buyer pays at most its limit, a seller receives at least its.
func crosses(taker *Order, counterPrice *uint256.Int) bool {
	if taker.Side == Buy {
		return !counterPrice.Gt(taker.Price)
	}
	return !counterPrice.Lt(taker.Price)
}

// fillQuantities computes the security and currency legs of a fill at
// price px, rounding down, clamped to both orders' remaining quantities.
// ok is false when the crossing would be pure dust.
func fillQuantities(taker, maker *Order, px *uint256.Int) (secFill, curFill *uint256.Int, ok bool) {
	var security, currency *uint256.Int
	if taker.Side == Sell {
		security, currency = taker.Remaining, maker.Remaining
	} else {
		security, currency = maker.Remaining, taker.Remaining
	}
	maxSec, err := divDown(currency, px)
	if err != nil || maxSec.IsZero() {
		return nil, nil, false
	}
	secFill = minU256(security, maxSec)
	curFill, err = mulDown(secFill, px)
	if err != nil || secFill.IsZero() || curFill.IsZero() {
		return nil, nil, false
	}
	return secFill, curFill, true
}

// reportTrade assigns the next sequence and writes one trade record per
// party referencing the same execution.
func (e *Engine) reportTrade(taker, maker *Order, secQty, curQty, px *uint256.Int) uint64 {
	seq := e.seq.Next()
	takerSide := &Trade{
		Party:        taker.Owner,
		Counterparty: maker.Owner,
		OrderRef:     taker.Ref,
		CounterRef:   maker.Ref,
		SecurityQty:  new(uint256.Int).Set(secQty),
		CurrencyQty:  new(uint256.Int).Set(curQty),
		Price:        new(uint256.Int).Set(px),
		Seq:          seq,
	}
	makerSide := &Trade{
		Party:        maker.Owner,
		Counterparty: taker.Owner,
		OrderRef:     maker.Ref,
		CounterRef:   taker.Ref,
		SecurityQty:  new(uint256.Int).Set(secQty),
		CurrencyQty:  new(uint256.Int).Set(curQty),
		Price:        new(uint256.Int).Set(px),
		Seq:          seq,
	}
	e.trades.put(takerSide)
	e.trades.put(makerSide)
	e.persistTrade(takerSide)
	e.persistTrade(makerSide)
	return seq
}

// EditOrder changes the price and quantity of a resting order that has
// not yet been touched by a fill. Owner only.
func (e *Engine) EditOrder(ref common.Hash, newPrice, newQty *uint256.Int, requester common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.orders.get(ref)
	if err != nil {
		return err
	}
	if requester != o.Owner {
		return unauthorizedf("%s does not own order %s", requester, ref)
	}
	if o.Status != Open {
		return statef("cannot edit %s order %s", o.Status, ref)
	}
	if newQty == nil || newQty.IsZero() {
		return validationf("zero quantity")
	}
	if o.Type == Limit && (newPrice == nil || newPrice.IsZero()) {
		return validationf("limit order needs a price")
	}
	if o.Type == Market && newPrice != nil && !newPrice.IsZero() {
		return validationf("market order carries a price")
	}

	price := new(uint256.Int)
	if newPrice != nil {
		price.Set(newPrice)
	}
	o.Price = price
	o.Remaining = new(uint256.Int).Set(newQty)
	if !e.book.Edit(o.Price, ref, o.Side == Buy) {
		// An Open order should always be resting; tolerate the miss.
		e.log.Warnw("edit_missed_heap", "ref", ref)
	}
	e.persistOrder(o)
	e.log.Infow("order_edited", "ref", ref, "price", o.Price, "qty", o.Remaining)
	return nil
}

// CancelOrder removes a resting order from its heap and marks it
// Cancelled, returning the unfilled remainder. Owner or manager.
func (e *Engine) CancelOrder(ref common.Hash, requester common.Address) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.orders.get(ref)
	if err != nil {
		return nil, err
	}
	if requester != o.Owner && !e.privileged(requester) {
		return nil, unauthorizedf("%s may not cancel order %s", requester, ref)
	}
	if !o.resting() {
		return nil, statef("cannot cancel %s order %s", o.Status, ref)
	}
	if _, ok := e.book.Cancel(ref, o.Side == Buy); !ok {
		e.log.Warnw("cancel_missed_heap", "ref", ref)
	}
	o.Status = Cancelled
	e.persistOrder(o)
	e.log.Infow("order_cancelled", "ref", ref, "remaining", o.Remaining)
	return new(uint256.Int).Set(o.Remaining), nil
}

// GetOrder returns a copy of the order record. Restricted to the order's
// owner, the contract owner and the manager.
func (e *Engine) GetOrder(ref common.Hash, requester common.Address) (*Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.orders.get(ref)
	if err != nil {
		return nil, err
	}
	if requester != o.Owner && !e.privileged(requester) {
		return nil, unauthorizedf("%s may not read order %s", requester, ref)
	}
	return o.clone(), nil
}

// GetTrade returns a copy of one trade record. Restricted to the party
// itself, the contract owner and the manager.
func (e *Engine) GetTrade(party common.Address, seq uint64, requester common.Address) (*Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if requester != party && !e.privileged(requester) {
		return nil, unauthorizedf("%s may not read trades of %s", requester, party)
	}
	t, err := e.trades.get(party, seq)
	if err != nil {
		return nil, err
	}
	return t.clone(), nil
}

// GetTrades returns the caller's own trade sequences in report order.
func (e *Engine) GetTrades(requester common.Address) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trades.list(requester)
}

// SettleTrade removes a matched trade from the party's history once the
// external settlement has consumed it, returning the record. Manager or
// owner only.
func (e *Engine) SettleTrade(party common.Address, seq uint64, requester common.Address) (*Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.privileged(requester) {
		return nil, unauthorizedf("%s may not settle trades", requester)
	}
	t, err := e.trades.get(party, seq)
	if err != nil {
		return nil, err
	}
	if err := e.trades.remove(party, seq); err != nil {
		return nil, err
	}
	if e.journal != nil {
		if err := e.journal.DeleteTrade(party, seq); err != nil {
			e.log.Errorw("journal_delete_trade", "party", party, "seq", seq, "err", err)
		}
	}
	if e.notify != nil {
		e.notify.TradeSettled(TradeSettledEvent{
			Party:        t.Party,
			Counterparty: t.Counterparty,
			Seq:          t.Seq,
			SecurityQty:  new(uint256.Int).Set(t.SecurityQty),
			CurrencyQty:  new(uint256.Int).Set(t.CurrencyQty),
		})
	}
	e.log.Infow("trade_settled", "party", party, "seq", seq)
	return t.clone(), nil
}

// RevertTrade unwinds a match whose external settlement failed: it
// restores qty to the order, reopens it, rests it again at price and
// writes a compensating trade at the next sequence. The original trade is
// not deleted. Manager or owner only.
func (e *Engine) RevertTrade(ref common.Hash, qty, price *uint256.Int, requester common.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.privileged(requester) {
		return 0, unauthorizedf("%s may not revert trades", requester)
	}
	o, err := e.orders.get(ref)
	if err != nil {
		return 0, err
	}
	if qty == nil || qty.IsZero() {
		return 0, validationf("zero revert quantity")
	}
	restored := new(uint256.Int)
	if price != nil {
		restored.Set(price)
	}

	o.Remaining.Add(o.Remaining, qty)
	o.Status = Open
	o.Price = restored
	if !e.book.Edit(o.Price, ref, o.Side == Buy) {
		if o.Side == Buy {
			e.book.InsertBuyOrder(o.Price, ref)
		} else {
			e.book.InsertSellOrder(o.Price, ref)
		}
	}

	seq := e.seq.Next()
	rev := &Trade{
		Party:       o.Owner,
		OrderRef:    ref,
		SecurityQty: new(uint256.Int),
		CurrencyQty: new(uint256.Int),
		Price:       new(uint256.Int).Set(restored),
		Seq:         seq,
		Reversal:    true,
	}
	if o.Side == Sell {
		rev.SecurityQty.Set(qty)
	} else {
		rev.CurrencyQty.Set(qty)
	}
	e.trades.put(rev)
	e.persistTrade(rev)
	e.persistOrder(o)

	if e.notify != nil {
		e.notify.TradeReverted(TradeRevertedEvent{
			Ref:   ref,
			Owner: o.Owner,
			Seq:   seq,
			Qty:   new(uint256.Int).Set(qty),
			Price: new(uint256.Int).Set(restored),
		})
	}
	e.log.Infow("trade_reverted", "ref", ref, "qty", qty, "price", restored, "seq", seq)
	return seq, nil
}

// FinalizeFill garbage-collects both order records and both parties'
// trade entries at seq once external settlement is confirmed complete.
// Manager or owner only.
func (e *Engine) FinalizeFill(partyRef, counterRef common.Hash, seq uint64, requester common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.privileged(requester) {
		return unauthorizedf("%s may not finalize fills", requester)
	}
	po, err := e.orders.get(partyRef)
	if err != nil {
		return err
	}
	co, err := e.orders.get(counterRef)
	if err != nil {
		return err
	}
	if po.Status != Filled || co.Status != Filled {
		return statef("finalize needs both orders filled, got %s and %s", po.Status, co.Status)
	}
	// Check both entries up front so the purge below cannot go halfway.
	if _, err := e.trades.get(po.Owner, seq); err != nil {
		return err
	}
	if _, err := e.trades.get(co.Owner, seq); err != nil {
		return err
	}

	_ = e.trades.remove(po.Owner, seq)
	_ = e.trades.remove(co.Owner, seq)
	e.orders.purge(partyRef)
	e.orders.purge(counterRef)
	if e.journal != nil {
		for _, ref := range []common.Hash{partyRef, counterRef} {
			if err := e.journal.DeleteOrder(ref); err != nil {
				e.log.Errorw("journal_delete_order", "ref", ref, "err", err)
			}
		}
		if err := e.journal.DeleteTrade(po.Owner, seq); err != nil {
			e.log.Errorw("journal_delete_trade", "party", po.Owner, "seq", seq, "err", err)
		}
		if err := e.journal.DeleteTrade(co.Owner, seq); err != nil {
			e.log.Errorw("journal_delete_trade", "party", co.Owner, "seq", seq, "err", err)
		}
	}
	e.log.Infow("fill_finalized", "partyRef", partyRef, "counterRef", counterRef, "seq", seq)
	return nil
}

// BestBuyPrice returns the top resting bid, zero when no bids rest.
func (e *Engine) BestBuyPrice() *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.BestBuyPrice()
}

// BestSellPrice returns the top resting ask, zero when no asks rest.
func (e *Engine) BestSellPrice() *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.BestSellPrice()
}

// Level aggregates resting quantity at one price.
type Level struct {
	Price  *uint256.Int `json:"price"`
	Qty    *uint256.Int `json:"qty"`
	Orders int          `json:"orders"`
}

// Depth returns aggregated bid and ask levels best-first, joining heap
// nodes with ledger quantities.
func (e *Engine) Depth() (bids, asks []Level) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels(e.book.BuyNodes()), e.levels(e.book.SellNodes())
}

func (e *Engine) levels(nodes []book.Node) []Level {
	var out []Level
	for _, n := range nodes {
		o, ok := e.orders.lookup(n.Ref)
		if !ok || !o.resting() {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Price.Eq(n.Price) {
			last := &out[len(out)-1]
			last.Qty.Add(last.Qty, o.Remaining)
			last.Orders++
			continue
		}
		out = append(out, Level{
			Price:  new(uint256.Int).Set(n.Price),
			Qty:    new(uint256.Int).Set(o.Remaining),
			Orders: 1,
		})
	}
	return out
}

// Restore reloads journaled state after a restart: orders are put back in
// the ledger (resting ones re-enter their heap in nonce order) and the
// sequencer is advanced past everything seen.
func (e *Engine) Restore(orders []*Order, trades []*Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sort.Slice(orders, func(i, j int) bool { return orders[i].Nonce < orders[j].Nonce })
	for _, o := range orders {
		e.orders.put(o)
		if o.resting() {
			if o.Side == Buy {
				e.book.InsertBuyOrder(o.Price, o.Ref)
			} else {
				e.book.InsertSellOrder(o.Price, o.Ref)
			}
		}
		if o.Nonce > e.seq.next {
			e.seq.next = o.Nonce
		}
	}
	for _, t := range trades {
		e.trades.put(t)
		if t.Seq > e.seq.next {
			e.seq.next = t.Seq
		}
	}
	e.log.Infow("state_restored", "orders", len(orders), "trades", len(trades))
}

func (e *Engine) privileged(requester common.Address) bool {
	return requester == e.cfg.Owner || requester == e.cfg.Manager
}

func (e *Engine) persistOrder(o *Order) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SaveOrder(o); err != nil {
		e.log.Errorw("journal_save_order", "ref", o.Ref, "err", err)
	}
}

func (e *Engine) persistTrade(t *Trade) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SaveTrade(t); err != nil {
		e.log.Errorw("journal_save_trade", "party", t.Party, "seq", t.Seq, "err", err)
	}
}
