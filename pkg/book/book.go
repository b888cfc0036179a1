// Package book maintains the two resting sides of a single
// security/currency pair: a max-heap of buy orders (highest
// currency-per-security price first) and a min-heap of sell orders
// (lowest first). Nodes carry a price and an order reference; order
// state itself lives in the engine's ledger.
package book

import (
	"container/heap"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Book struct {
	bids *priceHeap
	asks *priceHeap

	arrivals uint64
}

func New() *Book {
	return &Book{
		bids: newPriceHeap(bidLess),
		asks: newPriceHeap(askLess),
	}
}

// InsertBuyOrder rests a buy order at price. Returns the node so the
// caller can reinsert it later without losing time priority.
func (b *Book) InsertBuyOrder(price *uint256.Int, ref common.Hash) Node {
	return b.insert(b.bids, price, ref)
}

// InsertSellOrder rests a sell order at price.
func (b *Book) InsertSellOrder(price *uint256.Int, ref common.Hash) Node {
	return b.insert(b.asks, price, ref)
}

func (b *Book) insert(h *priceHeap, price *uint256.Int, ref common.Hash) Node {
	b.arrivals++
	n := Node{
		Price:   new(uint256.Int).Set(price),
		Ref:     ref,
		Arrival: b.arrivals,
	}
	heap.Push(h, n)
	return n
}

// Reinsert puts a previously removed node back with its original arrival,
// so a partly filled resting order keeps its place at its price level.
func (b *Book) Reinsert(n Node, isBuy bool) {
	if isBuy {
		heap.Push(b.bids, n)
	} else {
		heap.Push(b.asks, n)
	}
}

// RemoveBestBuy pops the highest-priority buy node. ok is false when the
// side is empty.
func (b *Book) RemoveBestBuy() (Node, bool) {
	return removeBest(b.bids)
}

// RemoveBestSell pops the highest-priority sell node.
func (b *Book) RemoveBestSell() (Node, bool) {
	return removeBest(b.asks)
}

func removeBest(h *priceHeap) (Node, bool) {
	if h.Len() == 0 {
		return Node{}, false
	}
	return heap.Pop(h).(Node), true
}

// BestBuyPrice returns the top resting bid price, zero when the side is
// empty or the top bid is unpriced.
func (b *Book) BestBuyPrice() *uint256.Int {
	return bestPrice(b.bids)
}

// BestSellPrice returns the top resting ask price, zero when empty.
func (b *Book) BestSellPrice() *uint256.Int {
	return bestPrice(b.asks)
}

func bestPrice(h *priceHeap) *uint256.Int {
	if h.Len() == 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(h.nodes[0].Price)
}

// Edit updates the resting price of ref and restores the heap invariant.
// Editing a reference that is not resting is a no-op and returns false.
func (b *Book) Edit(price *uint256.Int, ref common.Hash, isBuy bool) bool {
	h := b.side(isBuy)
	i, ok := h.pos[ref]
	if !ok {
		return false
	}
	h.nodes[i].Price = new(uint256.Int).Set(price)
	heap.Fix(h, i)
	return true
}

// Cancel removes ref from the given side. Removing an absent reference is
// a no-op and returns false.
func (b *Book) Cancel(ref common.Hash, isBuy bool) (Node, bool) {
	h := b.side(isBuy)
	i, ok := h.pos[ref]
	if !ok {
		return Node{}, false
	}
	return heap.Remove(h, i).(Node), true
}

// Contains reports whether ref is resting on either side.
func (b *Book) Contains(ref common.Hash) bool {
	if _, ok := b.bids.pos[ref]; ok {
		return true
	}
	_, ok := b.asks.pos[ref]
	return ok
}

func (b *Book) BuyLen() int  { return b.bids.Len() }
func (b *Book) SellLen() int { return b.asks.Len() }

// BuyNodes returns a copy of the resting buy side sorted best-first.
func (b *Book) BuyNodes() []Node { return sorted(b.bids) }

// SellNodes returns a copy of the resting sell side sorted best-first.
func (b *Book) SellNodes() []Node { return sorted(b.asks) }

func sorted(h *priceHeap) []Node {
	out := make([]Node, len(h.nodes))
	for i, n := range h.nodes {
		out[i] = Node{Price: new(uint256.Int).Set(n.Price), Ref: n.Ref, Arrival: n.Arrival}
	}
	sort.Slice(out, func(i, j int) bool { return h.less(out[i], out[j]) })
	return out
}

func (b *Book) side(isBuy bool) *priceHeap {
	if isBuy {
		return b.bids
	}
	return b.asks
}
