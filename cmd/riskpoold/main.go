package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"riskpool/config"
	"riskpool/core/events"
	"riskpool/core/types"
	"riskpool/gateway"
	"riskpool/journal"
	"riskpool/native/bank"
	"riskpool/native/cooler"
	"riskpool/native/etoken"
	"riskpool/observability"
	"riskpool/observability/logging"
)

const envVar = "RISKPOOL_ENV"

// addressFor derives a stable in-process account address from a label, so
// every run of the daemon agrees on where the pool components live.
func addressFor(label string) types.Address {
	var addr types.Address
	copy(addr[:], ethcrypto.Keccak256([]byte(label))[12:])
	return addr
}

func main() {
	configFile := flag.String("config", "./riskpool.toml", "Path to the configuration file")
	listen := flag.String("listen", "127.0.0.1:8780", "Address for the HTTP read API and metrics")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("riskpoold", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	params, err := cfg.ETokenParams()
	if err != nil {
		panic(fmt.Sprintf("failed to parse pool parameters: %v", err))
	}

	eventLog, err := journal.Open(cfg.JournalPath)
	if err != nil {
		panic(fmt.Sprintf("failed to open event journal: %v", err))
	}
	eventLog.SetLogger(logging.Component(logger, "journal"))
	emitter := events.MultiEmitter{eventLog, observability.NewMetricsEmitter()}

	reserve := addressFor(cfg.PoolName + "/reserve")
	asset := bank.NewBookAsset(cfg.PoolName+" underlying", addressFor(cfg.PoolName+"/asset"), reserve, cfg.AssetDecimals)

	ledger := etoken.New(cfg.PoolName, addressFor(cfg.PoolName+"/etoken"), reserve, asset, params)
	ledger.SetEmitter(emitter)
	ledger.SetLogger(logging.Component(logger, "etoken"))

	queue := cooler.NewEngine(addressFor(cfg.PoolName + "/cooler"))
	queue.SetEmitter(emitter)
	queue.RegisterEToken(ledger.Address(), ledger)
	queue.SetCooldownPeriod(ledger.Address(), cfg.CooldownPeriod)
	ledger.SetCooler(queue, queue.Address())

	server := &http.Server{
		Addr:              *listen,
		Handler:           gateway.NewServer(ledger, queue, logging.Component(logger, "gateway")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("riskpoold listening",
			slog.String("addr", *listen),
			slog.String("pool", cfg.PoolName),
			slog.Int64("cooldown", cfg.CooldownPeriod))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", slog.Any("error", err))
	}
	logger.Info("riskpoold stopped")
}
