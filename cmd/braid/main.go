// Package main wires every Engine component into one running process:
// Policy Table, Tool Registry, Security Gate, Argument Canonicalizer,
// Cache Coordinator, Metrics Accumulator, Audit Sink, Field Filter,
// Dispatcher, Chain Executor, and Dependency Analyzer. The HTTP/REST
// transport, the backing business API, and the concrete Tool Executor
// are external collaborators injected at this boundary; this binary
// only assembles the Engine and waits for a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	braidcache "github.com/aishacrm/braid/infrastructure/cache"
	"github.com/aishacrm/braid/infrastructure/logging"
	"github.com/aishacrm/braid/infrastructure/metrics"
	"github.com/aishacrm/braid/infrastructure/serviceauth"
	"github.com/aishacrm/braid/internal/config"
	"github.com/aishacrm/braid/internal/engine/audit"
	"github.com/aishacrm/braid/internal/engine/cachecoord"
	"github.com/aishacrm/braid/internal/engine/canon"
	"github.com/aishacrm/braid/internal/engine/chain"
	"github.com/aishacrm/braid/internal/engine/core"
	"github.com/aishacrm/braid/internal/engine/counters"
	"github.com/aishacrm/braid/internal/engine/dispatch"
	"github.com/aishacrm/braid/internal/engine/gate"
	"github.com/aishacrm/braid/internal/engine/graph"
	"github.com/aishacrm/braid/internal/engine/policy"
	"github.com/aishacrm/braid/internal/engine/registry"
)

// unimplementedExecutor is the default Tool Executor: it logs and
// returns ExecutionError for every call. Real deployments inject a
// Tool Executor that calls the backing business API over HTTP.
type unimplementedExecutor struct {
	logger *logging.Logger
}

func (e *unimplementedExecutor) Execute(_ context.Context, sourceFile, functionName string, _ core.PolicyContext, _ core.Deps, _ []any, _ core.ExecOptions) core.Result {
	e.logger.Logger.WithField("function", functionName).WithField("source", sourceFile).
		Warn("braid: no Tool Executor configured, cannot reach the backing business API")
	return core.ErrResult(core.NewError(core.ErrExecutionError, "no tool executor configured for this deployment"))
}

// Engine is the fully wired composition, exposed so an embedding process
// (an HTTP handler, an LLM tool-call loop) can drive it directly.
type Engine struct {
	Registry   *registry.Registry
	Policies   *policy.Table
	Dispatcher *dispatch.Dispatcher
	Chains     *chain.Executor
	Analyzer   *graph.Analyzer
	Logger     *logging.Logger
}

func buildEngine(cfg *config.Config) (*Engine, error) {
	logger := logging.New("braid", cfg.LogLevel, cfg.LogFormat)

	reg := registry.Seed()
	pols := policy.New()

	cache := braidcache.NewCache(braidcache.CacheConfig{
		DefaultTTL:      cfg.CacheDefaultTTL,
		MaxSize:         cfg.CacheMaxEntries,
		CleanupInterval: cfg.CacheSweepInterval,
	})

	g := gate.New(pols, reg, cache, logger)
	canonicalizer := canon.New(logger)
	coord := cachecoord.New(cachecoord.NewMemoryBackend(cache), logger)
	ctrs := counters.New(cache, logger)

	var auditSink audit.Sink
	fanout := audit.NewFanout(logger, audit.NewRingSink(cfg.AuditRingSize))
	auditSink = fanout

	var tokens *serviceauth.ServiceTokenGenerator
	if pemPath := os.Getenv("SERVICE_TOKEN_PRIVATE_KEY_PATH"); pemPath != "" {
		pemBytes, err := os.ReadFile(pemPath)
		if err != nil {
			return nil, fmt.Errorf("reading service token private key: %w", err)
		}
		key, err := serviceauth.ParseRSAPrivateKeyFromPEM(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing service token private key: %w", err)
		}
		tokens = serviceauth.NewServiceTokenGenerator(key, cfg.ServiceTokenSubject, cfg.ServiceTokenExpiry)
	} else {
		logger.Logger.Warn("braid: SERVICE_TOKEN_PRIVATE_KEY_PATH not set, internal credential minting disabled")
	}

	executor := &unimplementedExecutor{logger: logger}

	d := dispatch.New(reg, pols, g, canonicalizer, coord, ctrs, auditSink, tokens, executor, logger)
	if cfg.MetricsEnabled {
		d.WithMetrics(metrics.New("braid"))
	}

	chainRegistry := chain.Seed()
	chains := chain.New(chainRegistry, reg, d, logger)

	var chainRefs []graph.ChainRef
	for _, def := range chainRegistry.List() {
		chainRefs = append(chainRefs, graph.NewChainRef(def.Name, def.Dynamic, def.Steps))
	}
	analyzer := graph.New(graph.Seed(), chainRefs)

	return &Engine{Registry: reg, Policies: pols, Dispatcher: d, Chains: chains, Analyzer: analyzer, Logger: logger}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "braid: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "braid: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "braid: failed to build engine: %v\n", err)
		os.Exit(1)
	}

	engine.Logger.Logger.WithField("env", string(cfg.Env)).WithField("tools", len(engine.Registry.List())).
		Info("braid: engine ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	engine.Logger.Logger.Info("braid: shutting down")
}
