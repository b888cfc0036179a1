package pool

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Vault is the balance provider the facade validates against. It exposes
// current pool token balances in native decimals; actual token movement
// happens in the settlement layer, never here.
type Vault interface {
	BalanceOf(token common.Address) (*uint256.Int, error)
	Decimals(token common.Address) (uint8, error)
}

// MemVault is an in-memory Vault for the node binary and tests.
type MemVault struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
	decimals map[common.Address]uint8
}

func NewMemVault() *MemVault {
	return &MemVault{
		balances: make(map[common.Address]*uint256.Int),
		decimals: make(map[common.Address]uint8),
	}
}

// SetToken registers a token with its decimals and current pool balance.
func (v *MemVault) SetToken(token common.Address, decimals uint8, balance *uint256.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.decimals[token] = decimals
	v.balances[token] = new(uint256.Int).Set(balance)
}

func (v *MemVault) BalanceOf(token common.Address) (*uint256.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	b, ok := v.balances[token]
	if !ok {
		return nil, fmt.Errorf("token %s not registered", token)
	}
	return new(uint256.Int).Set(b), nil
}

func (v *MemVault) Decimals(token common.Address) (uint8, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	d, ok := v.decimals[token]
	if !ok {
		return 0, fmt.Errorf("token %s not registered", token)
	}
	return d, nil
}
