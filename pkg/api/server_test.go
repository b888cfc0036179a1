package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/veritrade/secbook/pkg/engine"
	"github.com/veritrade/secbook/pkg/pool"
)

const (
	ownerHex   = "0x00000000000000000000000000000000000000a1"
	managerHex = "0x00000000000000000000000000000000000000a2"
	sellerHex  = "0x00000000000000000000000000000000000000b1"
	buyerHex   = "0x00000000000000000000000000000000000000b2"
	secHex     = "0x00000000000000000000000000000000000000e1"
	curHex     = "0x00000000000000000000000000000000000000e2"
)

// amt renders a whole-unit amount as an 18-decimal fixed-point string.
func amt(n uint64) string {
	return fmt.Sprintf("%d000000000000000000", n)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := zap.NewNop().Sugar()
	eng := engine.New(engine.Config{
		Owner:   common.HexToAddress(ownerHex),
		Manager: common.HexToAddress(managerHex),
	})
	vault := pool.NewMemVault()
	big := new(uint256.Int).Mul(uint256.NewInt(1_000_000), uint256.NewInt(1e18))
	vault.SetToken(common.HexToAddress(secHex), 18, big)
	vault.SetToken(common.HexToAddress(curHex), 18, big)
	p := pool.New(pool.Config{
		Security: common.HexToAddress(secHex),
		Currency: common.HexToAddress(curHex),
		Self:     common.HexToAddress(managerHex),
	}, eng, vault, log)
	return NewServer(eng, p, []string{"*"}, log)
}

func doJSON(t *testing.T, s *Server, method, path string, body, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func placeOrder(t *testing.T, s *Server, owner, side, typ, price, qty string) PlaceOrderResponse {
	t.Helper()
	var res PlaceOrderResponse
	rec := doJSON(t, s, "POST", "/api/v1/orders", PlaceOrderRequest{
		Owner: owner, Side: side, Type: typ, Price: price, Qty: qty,
	}, &res)
	if rec.Code != http.StatusOK {
		t.Fatalf("place order: status %d body %s", rec.Code, rec.Body.String())
	}
	return res
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, "GET", "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestPlaceAndGetOrder(t *testing.T) {
	s := newTestServer(t)
	res := placeOrder(t, s, sellerHex, "sell", "limit", amt(10), amt(100))
	if res.Status != "Open" {
		t.Errorf("status = %q, want Open", res.Status)
	}

	var info OrderInfo
	rec := doJSON(t, s, "GET", "/api/v1/orders/"+res.Ref+"?requester="+sellerHex, nil, &info)
	if rec.Code != http.StatusOK {
		t.Fatalf("get order: status %d body %s", rec.Code, rec.Body.String())
	}
	if info.Side != "Sell" || info.Type != "Limit" || info.Remaining != amt(100) {
		t.Errorf("order info = %+v", info)
	}

	// Order records are private to their owner and the operators.
	rec = doJSON(t, s, "GET", "/api/v1/orders/"+res.Ref+"?requester="+buyerHex, nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger read status = %d, want 403", rec.Code)
	}
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	placeOrder(t, s, sellerHex, "sell", "limit", amt(10), amt(100))
	buy := placeOrder(t, s, buyerHex, "buy", "market", "", amt(1000))

	if buy.Status != "Filled" || buy.Filled != amt(1000) || buy.Received != amt(100) {
		t.Errorf("market buy = %+v", buy)
	}

	var seqs struct {
		Seqs []uint64 `json:"seqs"`
	}
	rec := doJSON(t, s, "GET", "/api/v1/trades?requester="+buyerHex, nil, &seqs)
	if rec.Code != http.StatusOK || len(seqs.Seqs) != 1 {
		t.Fatalf("trades: status %d seqs %v", rec.Code, seqs.Seqs)
	}

	var trade TradeInfo
	path := fmt.Sprintf("/api/v1/trades/%s/%d?requester=%s", buyerHex, seqs.Seqs[0], buyerHex)
	rec = doJSON(t, s, "GET", path, nil, &trade)
	if rec.Code != http.StatusOK {
		t.Fatalf("get trade: status %d body %s", rec.Code, rec.Body.String())
	}
	if trade.SecurityQty != amt(100) || trade.CurrencyQty != amt(1000) || trade.Price != amt(10) {
		t.Errorf("trade = %+v", trade)
	}

	var book BookSnapshot
	doJSON(t, s, "GET", "/api/v1/book", nil, &book)
	if book.BestSell != "0" || book.BestBuy != "0" {
		t.Errorf("book after full fill = %+v", book)
	}
}

func TestCancelOrder(t *testing.T) {
	s := newTestServer(t)
	res := placeOrder(t, s, sellerHex, "sell", "limit", amt(10), amt(100))

	var cancel CancelOrderResponse
	rec := doJSON(t, s, "POST", "/api/v1/orders/cancel", CancelOrderRequest{
		Ref: res.Ref, Requester: sellerHex,
	}, &cancel)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status %d body %s", rec.Code, rec.Body.String())
	}
	if cancel.Remaining != amt(100) {
		t.Errorf("remaining = %s, want %s", cancel.Remaining, amt(100))
	}

	// Cancelling again conflicts with the order's state.
	rec = doJSON(t, s, "POST", "/api/v1/orders/cancel", CancelOrderRequest{
		Ref: res.Ref, Requester: sellerHex,
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("double cancel status = %d, want 409", rec.Code)
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{
			"bad side", "POST", "/api/v1/orders",
			PlaceOrderRequest{Owner: sellerHex, Side: "short", Type: "limit", Price: amt(10), Qty: amt(1)},
			http.StatusBadRequest,
		},
		{
			"bad owner address", "POST", "/api/v1/orders",
			PlaceOrderRequest{Owner: "nope", Side: "sell", Type: "limit", Price: amt(10), Qty: amt(1)},
			http.StatusBadRequest,
		},
		{
			"market with price", "POST", "/api/v1/orders",
			PlaceOrderRequest{Owner: sellerHex, Side: "sell", Type: "market", Price: amt(10), Qty: amt(1)},
			http.StatusBadRequest,
		},
		{
			"malformed ref", "POST", "/api/v1/orders/cancel",
			CancelOrderRequest{Ref: "0x01", Requester: sellerHex},
			http.StatusBadRequest,
		},
		{
			"unknown ref", "POST", "/api/v1/orders/cancel",
			CancelOrderRequest{
				Ref:       common.Hash{0xff}.Hex(),
				Requester: sellerHex,
			},
			http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, tt.method, tt.path, tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestSwapEndpoints(t *testing.T) {
	s := newTestServer(t)

	var limit LimitSwapResponse
	rec := doJSON(t, s, "POST", "/api/v1/limits", LimitSwapRequest{
		TokenIn: secHex, Amount: amt(100), Price: amt(10), From: sellerHex,
	}, &limit)
	if rec.Code != http.StatusOK {
		t.Fatalf("limit: status %d body %s", rec.Code, rec.Body.String())
	}

	var swap SwapResponse
	rec = doJSON(t, s, "POST", "/api/v1/swaps", SwapRequest{
		TokenIn: curHex, TokenOut: secHex, Amount: amt(1000), From: buyerHex,
	}, &swap)
	if rec.Code != http.StatusOK {
		t.Fatalf("swap: status %d body %s", rec.Code, rec.Body.String())
	}
	if swap.AmountOut != amt(100) {
		t.Errorf("amountOut = %s, want %s", swap.AmountOut, amt(100))
	}

	rec = doJSON(t, s, "POST", "/api/v1/swaps", SwapRequest{
		TokenIn: secHex, TokenOut: "0x00000000000000000000000000000000000000e9",
		Amount: amt(1), From: sellerHex,
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad pair status = %d, want 400", rec.Code)
	}
}

func TestRevertAndFinalizeEndpoints(t *testing.T) {
	s := newTestServer(t)
	sell := placeOrder(t, s, sellerHex, "sell", "limit", amt(10), amt(100))
	buy := placeOrder(t, s, buyerHex, "buy", "market", "", amt(1000))

	var rev RevertTradeResponse
	rec := doJSON(t, s, "POST", "/api/v1/trades/revert", RevertTradeRequest{
		Ref: sell.Ref, Qty: amt(100), Price: amt(10), Requester: managerHex,
	}, &rev)
	if rec.Code != http.StatusOK || rev.Seq == 0 {
		t.Fatalf("revert: status %d seq %d body %s", rec.Code, rev.Seq, rec.Body.String())
	}

	// The reopened order is resting again, so the fill cannot finalize.
	rec = doJSON(t, s, "POST", "/api/v1/fills/finalize", FinalizeFillRequest{
		PartyRef: sell.Ref, CounterRef: buy.Ref, Seq: buy.LastSeq, Requester: managerHex,
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("finalize after revert status = %d, want 409", rec.Code)
	}

	// Unprivileged revert is rejected.
	rec = doJSON(t, s, "POST", "/api/v1/trades/revert", RevertTradeRequest{
		Ref: sell.Ref, Qty: amt(1), Price: amt(10), Requester: buyerHex,
	}, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unprivileged revert status = %d, want 403", rec.Code)
	}
}
