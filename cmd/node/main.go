package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/minidex/params"
	"github.com/uhyunpark/minidex/pkg/api"
	"github.com/uhyunpark/minidex/pkg/exchange"
	"github.com/uhyunpark/minidex/pkg/storage"
	"github.com/uhyunpark/minidex/pkg/token"
	"github.com/uhyunpark/minidex/pkg/util"
)

// Devnet accounts pre-funded on both tokens at startup.
var devAccounts = []string{
	"0x1111111111111111111111111111111111111111",
	"0x2222222222222222222222222222222222222222",
}

const devSupply = 1_000_000_000_000

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	newLogger := util.NewLogger
	if cfg.Node.LogFile != "" {
		newLogger = func() (*zap.Logger, error) {
			return util.NewLoggerWithFile(cfg.Node.LogFile)
		}
	}
	logger, err := newLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	custody := common.HexToAddress(cfg.Node.CustodyAddr)

	// ---- Tokens: in-memory ERC20 pair with pre-funded dev accounts ----
	base := token.NewERC20()
	quote := token.NewERC20()
	for _, hex := range devAccounts {
		addr := common.HexToAddress(hex)
		base.Mint(addr, devSupply)
		quote.Mint(addr, devSupply)
		base.Approve(addr, custody, devSupply)
		quote.Approve(addr, custody, devSupply)
	}
	sugar.Infow("devnet_tokens_funded", "accounts", len(devAccounts), "supply", uint64(devSupply))

	// ---- Journal ----
	var journal storage.Journal = storage.NewNopJournal()
	if cfg.Node.JournalPath != "" {
		j, err := storage.NewPebbleJournal(cfg.Node.JournalPath)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "path", cfg.Node.JournalPath, "err", err)
		}
		journal = j
		sugar.Infow("journal_opened", "path", cfg.Node.JournalPath)
	}

	// ---- Exchange + API ----
	ex, err := exchange.New(exchange.Config{
		Base:    base.Bound(custody),
		Quote:   quote.Bound(custody),
		Custody: custody,
		Journal: journal,
		Logger:  sugar,
	})
	if err != nil {
		sugar.Fatalw("exchange_init_failed", "err", err)
	}

	// The server owns the websocket hub; route exchange events to it.
	srv := api.NewServer(ex, sugar)
	ex.SetEvents(api.NewWSink(srv.Hub()))

	go func() {
		if err := srv.Start(cfg.API.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	sugar.Infow("shutting_down", "signal", sig.String())

	if err := journal.Close(); err != nil {
		sugar.Errorw("journal_close_failed", "err", err)
	}
}
