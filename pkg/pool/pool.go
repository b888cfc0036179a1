// Package pool is the swap-callback facade in front of the matching
// engine. It validates the token pair, rescales amounts between each
// token's native decimals and the engine's 18-decimal fixed point, and
// translates a swap into a market order, a resting limit order or the
// settlement of a previously matched trade. It reads pool balances for
// validation; moving tokens is the settlement layer's job.
package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/veritrade/secbook/pkg/engine"
)

// Config pins the single security/currency pair served by this facade.
// Self is the identity the facade presents to the engine; it must be the
// engine's configured manager for settlement calls to pass.
type Config struct {
	Security     common.Address
	Currency     common.Address
	MinOrderSize *uint256.Int // 18-decimal, applied to the token-in amount
	Self         common.Address
}

type Pool struct {
	cfg    Config
	engine *engine.Engine
	vault  Vault
	log    *zap.SugaredLogger
}

func New(cfg Config, eng *engine.Engine, vault Vault, log *zap.SugaredLogger) *Pool {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.MinOrderSize == nil {
		cfg.MinOrderSize = new(uint256.Int)
	}
	return &Pool{cfg: cfg, engine: eng, vault: vault, log: log}
}

// SwapRequest is the generic swap callback. Amount is denominated in
// TokenIn's native decimals. UserData selects the operation; see
// EncodeLimit and EncodeSettle.
type SwapRequest struct {
	TokenIn  common.Address
	TokenOut common.Address
	Amount   *uint256.Int
	From     common.Address
	UserData []byte
}

// OnSwap services a swap callback and returns the amount of TokenOut due
// to the caller, in TokenOut's native decimals. Limit placements return
// zero: their proceeds settle through later settlement swaps.
func (p *Pool) OnSwap(req SwapRequest) (*uint256.Int, error) {
	side, err := p.sideOf(req.TokenIn, req.TokenOut)
	if err != nil {
		return nil, err
	}
	pl, err := decodePayload(req.UserData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}

	if pl.settle {
		return p.settle(req, pl.settleSeq)
	}

	if pl.limitPrice != nil {
		_, err := p.PlaceLimit(LimitRequest{
			TokenIn: req.TokenIn,
			Amount:  req.Amount,
			Price:   pl.limitPrice,
			From:    req.From,
		})
		if err != nil {
			return nil, err
		}
		return new(uint256.Int), nil
	}

	// Plain swap: a brand-new market order.
	amtIn, err := p.upscaleIn(req.TokenIn, req.Amount)
	if err != nil {
		return nil, err
	}
	res, err := p.engine.NewOrder(req.From, side, engine.Market, nil, amtIn)
	if err != nil {
		return nil, err
	}
	decOut, err := p.vault.Decimals(req.TokenOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}
	out := downscale(res.Received, decOut)
	p.log.Infow("swap_matched", "from", req.From, "side", side.String(),
		"ref", res.Ref, "filled", res.Filled, "received", res.Received, "lastSeq", res.LastSeq)
	return out, nil
}

// settle consumes a previously matched trade: the swap delivers one leg
// and the facade reports the other leg back, scaled for the caller.
func (p *Pool) settle(req SwapRequest, seq uint64) (*uint256.Int, error) {
	t, err := p.engine.SettleTrade(req.From, seq, p.cfg.Self)
	if err != nil {
		return nil, err
	}
	var out *uint256.Int
	if req.TokenOut == p.cfg.Security {
		out = t.SecurityQty
	} else {
		out = t.CurrencyQty
	}
	decOut, err := p.vault.Decimals(req.TokenOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}
	p.log.Infow("swap_settled", "party", req.From, "counterparty", t.Counterparty, "seq", seq)
	return downscale(out, decOut), nil
}

// LimitRequest places a resting limit order directly, bypassing swap
// semantics. Price is currency-per-security, 18-decimal fixed point.
type LimitRequest struct {
	TokenIn common.Address
	Amount  *uint256.Int
	Price   *uint256.Int
	From    common.Address
}

// PlaceLimit validates the order against pool balances and rests it in
// the book, returning its reference.
func (p *Pool) PlaceLimit(req LimitRequest) (common.Hash, error) {
	var side engine.Side
	switch req.TokenIn {
	case p.cfg.Security:
		side = engine.Sell
	case p.cfg.Currency:
		side = engine.Buy
	default:
		return common.Hash{}, fmt.Errorf("%w: token %s not in pair", engine.ErrValidation, req.TokenIn)
	}
	amtIn, err := p.upscaleIn(req.TokenIn, req.Amount)
	if err != nil {
		return common.Hash{}, err
	}
	bal, err := p.vault.BalanceOf(req.TokenIn)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}
	dec, err := p.vault.Decimals(req.TokenIn)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}
	if amtIn.Gt(upscale(bal, dec)) {
		return common.Hash{}, fmt.Errorf("%w: order exceeds pool balance", engine.ErrValidation)
	}
	res, err := p.engine.NewOrder(req.From, side, engine.Limit, req.Price, amtIn)
	if err != nil {
		return common.Hash{}, err
	}
	p.log.Infow("limit_placed", "from", req.From, "side", side.String(),
		"ref", res.Ref, "price", req.Price, "qty", amtIn)
	return res.Ref, nil
}

func (p *Pool) sideOf(tokenIn, tokenOut common.Address) (engine.Side, error) {
	switch {
	case tokenIn == p.cfg.Security && tokenOut == p.cfg.Currency:
		return engine.Sell, nil
	case tokenIn == p.cfg.Currency && tokenOut == p.cfg.Security:
		return engine.Buy, nil
	default:
		return 0, fmt.Errorf("%w: pair %s/%s not served", engine.ErrValidation, tokenIn, tokenOut)
	}
}

// upscaleIn rescales a token-in amount to 18 decimals and enforces the
// minimum order size.
func (p *Pool) upscaleIn(tokenIn common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: zero amount", engine.ErrValidation)
	}
	dec, err := p.vault.Decimals(tokenIn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}
	amt := upscale(amount, dec)
	if amt.Lt(p.cfg.MinOrderSize) {
		return nil, fmt.Errorf("%w: amount below minimum order size", engine.ErrValidation)
	}
	return amt, nil
}
