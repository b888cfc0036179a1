package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema:
//   ord:<ref>            → Order
//   trade:<address>:<seq> → Trade
//
// Trade sequences are zero-padded so a prefix scan over one party yields
// report order.
const (
	prefixOrder = "ord:"
	prefixTrade = "trade:"
)

func orderKey(ref common.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixOrder, ref.Hex()))
}

func tradeKey(party common.Address, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixTrade, party.Hex(), seq))
}

func tradePrefix(party common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, party.Hex()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
