// Command pongbot is the process entrypoint: it loads configuration,
// initializes logging and telemetry, opens the exchange store, constructs
// the chain gateway and rate limiter, wires the planner/executor/reconciler
// into the run loop, and hands control to the CLI for signal-driven
// graceful shutdown.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pingpongbot/pongbot/internal/executor"
	"github.com/pingpongbot/pongbot/internal/gateway"
	"github.com/pingpongbot/pongbot/internal/handlers/cli"
	"github.com/pingpongbot/pongbot/internal/infra/blockchain/ethereum"
	"github.com/pingpongbot/pongbot/internal/infra/storage/pebble"
	redisstore "github.com/pingpongbot/pongbot/internal/infra/storage/redis"
	"github.com/pingpongbot/pongbot/internal/pkg/config"
	"github.com/pingpongbot/pongbot/internal/pkg/logger"
	"github.com/pingpongbot/pongbot/internal/pkg/ratelimit"
	"github.com/pingpongbot/pongbot/internal/pkg/telemetry"
	transporthttp "github.com/pingpongbot/pongbot/internal/pkg/transport/http"
	"github.com/pingpongbot/pongbot/internal/pkg/transport/jsonrpc"
	"github.com/pingpongbot/pongbot/internal/planner"
	"github.com/pingpongbot/pongbot/internal/reconciler"
	"github.com/pingpongbot/pongbot/internal/runloop"
)

func main() {
	ctx := context.Background()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "pongbot:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel), logger.WithDataPath(cfg.DataPath)); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	shutdownTelemetry := telemetry.ShutdownFunc(func(context.Context) error { return nil })
	if cfg.TelemetryEnabled() {
		shutdownTelemetry, err = telemetry.Init(ctx, "pongbot")
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
	}
	defer shutdownTelemetry(context.Background())

	store, err := pebble.Open(filepath.Join(cfg.DataPath, "db"))
	if err != nil {
		return fmt.Errorf("opening exchange store: %w", err)
	}

	limiterFactory, closeLimiter, err := newLimiterFactory(ctx, cfg)
	if err != nil {
		store.Close()
		return fmt.Errorf("initializing rate limiter: %w", err)
	}
	defer closeLimiter()

	gw, err := newGateway(ctx, cfg, limiterFactory)
	if err != nil {
		store.Close()
		return fmt.Errorf("initializing chain gateway: %w", err)
	}

	if err := gw.RefreshFeeData(ctx); err != nil {
		store.Close()
		return fmt.Errorf("priming fee data: %w", err)
	}

	rec := reconciler.New(store, gw, cfg.StalePongTimeout())
	exec := executor.New(store, gw, rec)
	params := planner.Params{
		ConfirmationBlocks: cfg.ConfirmationBlocks,
		MaxBlocksBatchSize: cfg.MaxBlocksBatchSize,
		StartingBlock:      cfg.StartingBlock,
	}
	rl := runloop.New(store, gw, exec, params, cfg.CooldownPeriod())

	// The gateway has no close step of its own; only the store is closed
	// here. The run loop (inside cli.Run) has already stopped by the time
	// this point is reached, so no in-flight iteration is touching it. The
	// Redis connection behind the rate limiters, when configured, is closed
	// afterwards by the deferred closeLimiter.
	if err := cli.Run(ctx, rl); err != nil {
		store.Close()
		return fmt.Errorf("running: %w", err)
	}

	return store.Close()
}

// newLimiterFactory returns a constructor for per-provider rate limiters
// and a cleanup function. When REDIS_ADDR is configured, every limiter it
// hands out coordinates spacing through that shared redis instance (spec
// §9's blue/green restart scenario); otherwise each provider gets its own
// in-process ticker-gated bucket.
func newLimiterFactory(ctx context.Context, cfg config.Config) (func(providerName string) ratelimit.Limiter, func(), error) {
	spacing := time.Duration(1000/max(cfg.ProvidersRPS, 1)) * time.Millisecond

	if !cfg.RedisEnabled() {
		return func(string) ratelimit.Limiter {
			return ratelimit.NewLocal(spacing)
		}, func() {}, nil
	}

	redisClient, err := redisstore.NewClient(ctx, cfg.RedisAddr, "", "", 0)
	if err != nil {
		return nil, nil, err
	}

	factory := func(providerName string) ratelimit.Limiter {
		return ratelimit.NewRedis(redisClient.Conn(), "pongbot:ratelimit:"+providerName, spacing)
	}
	return factory, func() { redisClient.Close() }, nil
}

// newGateway builds the concrete go-ethereum-backed gateway.Gateway,
// wiring up to three configured JSON-RPC providers behind a retryable HTTP
// transport and the rate limiter produced by limiterFactory.
func newGateway(ctx context.Context, cfg config.Config, limiterFactory func(string) ratelimit.Limiter) (gateway.Gateway, error) {
	urls := cfg.ProviderURLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("no chain providers configured")
	}

	var httpClient *http.Client = transporthttp.NewClient().StandardClient()

	providers := make([]ethereum.Provider, 0, len(urls))
	for i, url := range urls {
		name := fmt.Sprintf("provider-%d", i+1)
		conn := jsonrpc.NewClient(httpClient, url)
		providers = append(providers, ethereum.NewProvider(name, conn, limiterFactory(name)))
	}

	chainID, err := ethereum.FetchChainID(ctx, jsonrpc.NewClient(httpClient, urls[0]))
	if err != nil {
		return nil, fmt.Errorf("fetching chain id: %w", err)
	}

	return ethereum.NewClient(providers, cfg.ContractAddress, cfg.NormalizedPrivateKey(), big.NewInt(int64(chainID)))
}
