package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Notifier receives structured engine events for off-chain indexers.
// Events are emitted only after all bookkeeping for the operation is
// consistent; implementations must not call back into the engine.
type Notifier interface {
	OrderPlaced(OrderPlacedEvent)
	TradeExecuted(TradeExecutedEvent)
	TradeReverted(TradeRevertedEvent)
	TradeSettled(TradeSettledEvent)
}

type OrderPlacedEvent struct {
	Ref   common.Hash    `json:"ref"`
	Owner common.Address `json:"owner"`
	Side  string         `json:"side"`
	Type  string         `json:"type"`
	Price *uint256.Int   `json:"price"`
	Qty   *uint256.Int   `json:"qty"`
	Nonce uint64         `json:"nonce"`
}

type TradeExecutedEvent struct {
	Seq         uint64         `json:"seq"`
	TakerRef    common.Hash    `json:"takerRef"`
	MakerRef    common.Hash    `json:"makerRef"`
	Taker       common.Address `json:"taker"`
	Maker       common.Address `json:"maker"`
	Price       *uint256.Int   `json:"price"`
	SecurityQty *uint256.Int   `json:"securityQty"`
	CurrencyQty *uint256.Int   `json:"currencyQty"`
}

type TradeRevertedEvent struct {
	Ref   common.Hash    `json:"ref"`
	Owner common.Address `json:"owner"`
	Seq   uint64         `json:"seq"`
	Qty   *uint256.Int   `json:"qty"`
	Price *uint256.Int   `json:"price"`
}

type TradeSettledEvent struct {
	Party        common.Address `json:"party"`
	Counterparty common.Address `json:"counterparty"`
	Seq          uint64         `json:"seq"`
	SecurityQty  *uint256.Int   `json:"securityQty"`
	CurrencyQty  *uint256.Int   `json:"currencyQty"`
}

// Journal persists ledger mutations so state survives a restart and
// off-chain settlement workers can replay it. A nil journal disables
// persistence.
type Journal interface {
	SaveOrder(*Order) error
	DeleteOrder(common.Hash) error
	SaveTrade(*Trade) error
	DeleteTrade(party common.Address, seq uint64) error
}
