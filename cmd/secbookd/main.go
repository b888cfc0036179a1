package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/veritrade/secbook/params"
	"github.com/veritrade/secbook/pkg/api"
	"github.com/veritrade/secbook/pkg/engine"
	"github.com/veritrade/secbook/pkg/pool"
	"github.com/veritrade/secbook/pkg/storage"
	"github.com/veritrade/secbook/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	store, err := storage.NewPebbleStore(cfg.Storage.Path)
	if err != nil {
		sugar.Fatalw("open_store", "path", cfg.Storage.Path, "err", err)
	}
	defer store.Close()

	owner := common.HexToAddress(cfg.Engine.Owner)
	manager := common.HexToAddress(cfg.Engine.Manager)
	security := common.HexToAddress(cfg.Tokens.Security)
	currency := common.HexToAddress(cfg.Tokens.Currency)

	minSize, err := uint256.FromDecimal(cfg.Engine.MinOrderSize)
	if err != nil {
		sugar.Fatalw("bad_min_order_size", "value", cfg.Engine.MinOrderSize, "err", err)
	}

	eng := engine.New(
		engine.Config{Owner: owner, Manager: manager},
		engine.WithJournal(store),
		engine.WithLogger(sugar),
	)

	// Reload journaled state before accepting traffic.
	orders, err := store.LoadOrders()
	if err != nil {
		sugar.Fatalw("load_orders", "err", err)
	}
	trades, err := store.LoadAllTrades()
	if err != nil {
		sugar.Fatalw("load_trades", "err", err)
	}
	eng.Restore(orders, trades)

	vault := pool.NewMemVault()
	vault.SetToken(security, cfg.Tokens.SecurityDecimals, new(uint256.Int))
	vault.SetToken(currency, cfg.Tokens.CurrencyDecimals, new(uint256.Int))

	p := pool.New(pool.Config{
		Security:     security,
		Currency:     currency,
		MinOrderSize: minSize,
		Self:         manager,
	}, eng, vault, sugar)

	server := api.NewServer(eng, p, cfg.API.AllowedOrigins, sugar)
	eng.SetNotifier(server)

	go func() {
		if err := server.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server", "err", err)
		}
	}()
	sugar.Infow("secbookd_started", "addr", cfg.API.Addr,
		"security", security, "currency", currency)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	sugar.Infow("shutting_down")
}
