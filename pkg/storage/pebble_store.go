// Package storage journals engine state in Pebble so orders and trades
// survive a restart and off-chain settlement workers can replay them.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/veritrade/secbook/pkg/engine"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveOrder persists an order record. Order state is the book's source
// of truth, so writes are synced.
func (s *PebbleStore) SaveOrder(o *engine.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(o.Ref), data, pebble.Sync); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// DeleteOrder removes a purged order record.
func (s *PebbleStore) DeleteOrder(ref common.Hash) error {
	if err := s.db.Delete(orderKey(ref), pebble.Sync); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// LoadOrders returns every persisted order record.
func (s *PebbleStore) LoadOrders() ([]*engine.Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var orders []*engine.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o engine.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // skip invalid entries
		}
		orders = append(orders, &o)
	}
	return orders, nil
}

// SaveTrade appends a trade record. Trades are recoverable from order
// state plus the settlement layer, so appends skip the sync.
func (s *PebbleStore) SaveTrade(t *engine.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	if err := s.db.Set(tradeKey(t.Party, t.Seq), data, pebble.NoSync); err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

// DeleteTrade removes a consumed trade record.
func (s *PebbleStore) DeleteTrade(party common.Address, seq uint64) error {
	if err := s.db.Delete(tradeKey(party, seq), pebble.Sync); err != nil {
		return fmt.Errorf("delete trade: %w", err)
	}
	return nil
}

// LoadTrades returns one party's trade records in report order.
func (s *PebbleStore) LoadTrades(party common.Address) ([]*engine.Trade, error) {
	return s.scanTrades(tradePrefix(party))
}

// LoadAllTrades returns every persisted trade record, for engine restore.
func (s *PebbleStore) LoadAllTrades() ([]*engine.Trade, error) {
	return s.scanTrades([]byte(prefixTrade))
}

func (s *PebbleStore) scanTrades(prefix []byte) ([]*engine.Trade, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var trades []*engine.Trade
	for iter.First(); iter.Valid(); iter.Next() {
		var t engine.Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		trades = append(trades, &t)
	}
	return trades, nil
}

var _ engine.Journal = (*PebbleStore)(nil)
