package book

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Node is a resting entry on one side of the book: a limit price and the
// reference of the order resting at it. Price zero means unpriced (market).
// Arrival is the engine sequence assigned at insertion and breaks price
// ties so earlier orders keep priority.
type Node struct {
	Price   *uint256.Int
	Ref     common.Hash
	Arrival uint64
}

// priceHeap is a binary heap of nodes with a ref->index map so arbitrary
// cancels and edits stay O(log n). Implements heap.Interface; the ordering
// relation is injected (bidLess for buys, askLess for sells).
type priceHeap struct {
	nodes []Node
	pos   map[common.Hash]int
	less  func(a, b Node) bool
}

func newPriceHeap(less func(a, b Node) bool) *priceHeap {
	return &priceHeap{
		pos:  make(map[common.Hash]int),
		less: less,
	}
}

func (h *priceHeap) Len() int           { return len(h.nodes) }
func (h *priceHeap) Less(i, j int) bool { return h.less(h.nodes[i], h.nodes[j]) }

func (h *priceHeap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.pos[h.nodes[i].Ref] = i
	h.pos[h.nodes[j].Ref] = j
}

func (h *priceHeap) Push(x interface{}) {
	n := x.(Node)
	h.pos[n.Ref] = len(h.nodes)
	h.nodes = append(h.nodes, n)
}

func (h *priceHeap) Pop() interface{} {
	old := h.nodes
	n := old[len(old)-1]
	h.nodes = old[:len(old)-1]
	delete(h.pos, n.Ref)
	return n
}

// bidLess serves the highest bid first. An unpriced bid accepts any ask,
// so it ranks above every priced bid. Equal keys fall back to arrival.
func bidLess(a, b Node) bool {
	az, bz := a.Price.IsZero(), b.Price.IsZero()
	if az != bz {
		return az
	}
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return a.Arrival < b.Arrival
}

// askLess serves the lowest ask first. Unpriced asks are zero and sort
// first naturally.
func askLess(a, b Node) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.Arrival < b.Arrival
}
