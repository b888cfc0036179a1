package engine

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Side is named after the token the order pays in: a seller sends the
// security, a buyer sends the currency.
type Side int8

const (
	Buy  Side = 1  // currency-in, rests on the bid side
	Sell Side = -1 // security-in, rests on the ask side
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Unknown"
	}
}

type OrderType int8

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "Market"
	case Limit:
		return "Limit"
	default:
		return "Unknown"
	}
}

type Status int8

const (
	Open Status = iota
	PartlyFilled
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Open:
		return "Open"
	case PartlyFilled:
		return "PartlyFilled"
	case Filled:
		return "Filled"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Order is the ledger record behind a 32-byte reference. Remaining is
// denominated in the token the order pays in: security units for sells,
// currency units for buys, both 18-decimal fixed point. Remaining is
// monotonically non-increasing while the order rests; only an explicit
// reversal restores it.
type Order struct {
	Ref       common.Hash     `json:"ref"`
	Side      Side            `json:"side"`
	Type      OrderType       `json:"type"`
	Status    Status          `json:"status"`
	Price     *uint256.Int    `json:"price"` // currency-per-security WAD, zero = unpriced
	Remaining *uint256.Int    `json:"remaining"`
	Owner     common.Address  `json:"owner"`
	Nonce     uint64          `json:"nonce"`
}

// resting reports whether the order is live in a heap.
func (o *Order) resting() bool {
	return o.Status == Open || o.Status == PartlyFilled
}

func (o *Order) clone() *Order {
	cp := *o
	cp.Price = new(uint256.Int).Set(o.Price)
	cp.Remaining = new(uint256.Int).Set(o.Remaining)
	return &cp
}

// mintRef derives a unique order reference from the submitter and the
// engine sequence assigned to the order.
func mintRef(owner common.Address, nonce uint64) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	return crypto.Keccak256Hash(owner.Bytes(), buf[:])
}
