package pool

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// Swap requests carry an optional opaque payload selecting the book
// operation: empty means a plain market order, a limit payload carries
// the resting price, a settle payload carries the sequence of a
// previously matched trade to consume.
const (
	tagLimit  = 0x01
	tagSettle = 0x02
)

// EncodeLimit builds the payload for a resting limit order at price
// (currency-per-security, 18-decimal fixed point).
func EncodeLimit(price *uint256.Int) []byte {
	out := make([]byte, 33)
	out[0] = tagLimit
	b := price.Bytes32()
	copy(out[1:], b[:])
	return out
}

// EncodeSettle builds the payload consuming the matched trade at seq.
func EncodeSettle(seq uint64) []byte {
	out := make([]byte, 9)
	out[0] = tagSettle
	binary.BigEndian.PutUint64(out[1:], seq)
	return out
}

type payload struct {
	limitPrice *uint256.Int // nil unless tagLimit
	settleSeq  uint64       // valid only with settle=true
	settle     bool
}

func decodePayload(data []byte) (payload, error) {
	if len(data) == 0 {
		return payload{}, nil
	}
	switch data[0] {
	case tagLimit:
		if len(data) != 33 {
			return payload{}, fmt.Errorf("limit payload wants 33 bytes, got %d", len(data))
		}
		p := new(uint256.Int).SetBytes(data[1:])
		return payload{limitPrice: p}, nil
	case tagSettle:
		if len(data) != 9 {
			return payload{}, fmt.Errorf("settle payload wants 9 bytes, got %d", len(data))
		}
		return payload{settleSeq: binary.BigEndian.Uint64(data[1:]), settle: true}, nil
	default:
		return payload{}, fmt.Errorf("unknown payload tag 0x%02x", data[0])
	}
}
