package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stablevault/config"
	"stablevault/core/events"
	"stablevault/native/vault"
	"stablevault/observability"
	"stablevault/observability/logging"
	"stablevault/observability/metrics"
	voinit "stablevault/observability/otel"
	"stablevault/oracle"
	"stablevault/rpc"
	"stablevault/settlement"
	"stablevault/storage"
)

func main() {
	configFile := flag.String("config", "./vaultd.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("vaultd", cfg.Environment)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.TrimSpace(cfg.OTLPEndpoint) != "" {
		shutdown, err := voinit.Init(ctx, voinit.Options{
			Service:     "vaultd",
			Environment: cfg.Environment,
			Endpoint:    cfg.OTLPEndpoint,
			Insecure:    cfg.OTLPInsecure,
			Headers:     voinit.ParseHeaders(cfg.OTLPHeaders),
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	client, err := oracle.Dial(cfg.EVMEndpoint)
	if err != nil {
		logger.Error("failed to dial EVM endpoint", slog.Any("error", err))
		os.Exit(1)
	}
	defer client.Close()

	feed, err := oracle.NewFeed(client, common.HexToAddress(cfg.PriceFeedAddress))
	if err != nil {
		logger.Error("failed to bind price feed", slog.Any("error", err))
		os.Exit(1)
	}

	hotKey, err := loadHotWalletKey(cfg.HotWalletKeyEnv)
	if err != nil {
		logger.Error("failed to load hot wallet key", slog.Any("error", err))
		os.Exit(1)
	}
	settler, err := settlement.NewEVMSettler(client, hotKey, common.HexToAddress(cfg.StableTokenAddress), big.NewInt(cfg.ChainID))
	if err != nil {
		logger.Error("failed to initialise settler", slog.Any("error", err))
		os.Exit(1)
	}

	adapter := vault.NewOracleAdapter(feed, time.Duration(cfg.OracleHeartbeatSeconds)*time.Second)
	ledger := vault.NewLedger(storage.NewKVStore(db))

	limits := vault.Limits{}
	if limits.GlobalDepositCeiling, err = cfg.Ceiling(cfg.GlobalDepositCeiling); err != nil {
		logger.Error("invalid global deposit ceiling", slog.Any("error", err))
		os.Exit(1)
	}
	if limits.BankCapitalCeiling, err = cfg.Ceiling(cfg.BankCapitalCeiling); err != nil {
		logger.Error("invalid bank capital ceiling", slog.Any("error", err))
		os.Exit(1)
	}
	if limits.PerWithdrawalCeiling, err = cfg.Ceiling(cfg.PerWithdrawalCeiling); err != nil {
		logger.Error("invalid per-withdrawal ceiling", slog.Any("error", err))
		os.Exit(1)
	}

	admin, err := parseAddress(cfg.AdminAddress)
	if err != nil {
		logger.Error("invalid admin address", slog.Any("error", err))
		os.Exit(1)
	}

	engine := vault.NewEngine(ledger, vault.NewPolicy(), adapter, settler, admin, limits)

	emitter := &events.MultiEmitter{}
	emitter.Subscribe(observability.NewAuditEmitter(logger))
	emitter.Subscribe(observability.NewMetricsEmitter())
	engine.SetEmitter(emitter)

	sampler := metrics.NewGaugeSampler(engine.OraclePrice, func() (*big.Int, error) {
		agg, err := engine.Aggregates()
		if err != nil {
			return nil, err
		}
		return agg.TotalDeposits, nil
	}, 30*time.Second)
	go sampler.Run(ctx)

	authToken := strings.TrimSpace(os.Getenv(cfg.RPCAuthTokenEnv))
	if authToken == "" {
		logger.Warn("RPC auth token not set; mutating methods are disabled",
			slog.String("env", cfg.RPCAuthTokenEnv))
	}
	factory := func(address string) (vault.PriceOracle, error) {
		return oracle.NewFeed(client, common.HexToAddress(address))
	}
	rpcServer := rpc.NewServer(engine, admin, authToken, cfg.RateLimitPerMinute, factory)

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Post("/", rpcServer.Handle)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("vaultd listening", slog.String("address", cfg.ListenAddress))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server terminated", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

func loadHotWalletKey(envName string) (*ecdsa.PrivateKey, error) {
	value, ok := os.LookupEnv(envName)
	if !ok {
		return nil, fmt.Errorf("environment variable %q not set", envName)
	}
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("empty private key material")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex private key: %w", err)
	}
	return ethcrypto.ToECDSA(raw)
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "0x") {
		return addr, fmt.Errorf("address must be 0x-prefixed")
	}
	raw, err := hex.DecodeString(trimmed[2:])
	if err != nil || len(raw) != len(addr) {
		return addr, fmt.Errorf("address must be 20 hex-encoded bytes")
	}
	copy(addr[:], raw)
	return addr, nil
}
