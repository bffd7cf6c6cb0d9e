package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	orchestrator "github.com/tanpawarit/asic-salesbot/agent/agents/orchestrator"
	specialist "github.com/tanpawarit/asic-salesbot/agent/agents/specialist"
	catalogx "github.com/tanpawarit/asic-salesbot/agent/catalog"
	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	llmx "github.com/tanpawarit/asic-salesbot/agent/llm"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
	"github.com/tanpawarit/asic-salesbot/api"
	configx "github.com/tanpawarit/asic-salesbot/pkg/config"
	_ "github.com/tanpawarit/asic-salesbot/pkg/logger/autoload"
	qstashx "github.com/tanpawarit/asic-salesbot/pkg/qstash"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("salesbot stopped")
	}
}

func run(ctx context.Context) error {
	apiCfg := configx.MustNew[api.Config]("HTTP")
	orchCfg := configx.MustNew[orchestrator.Config]("BOT")
	stateCfg := configx.MustNew[statex.StoreConfig]("STATE")
	catalogCfg := configx.MustNew[catalogx.Config]("CATALOG")
	llmCfg := configx.MustNew[llmx.Config]("LLM")

	store, closeStore, err := openStateStore(ctx, *stateCfg)
	if err != nil {
		return err
	}
	defer closeStore()

	products, closeCatalog, err := openCatalogStore(ctx, *catalogCfg)
	if err != nil {
		return err
	}
	defer closeCatalog()

	registry, err := specialist.NewRegistry(ctx, *llmCfg)
	if err != nil {
		return err
	}

	opts := []catalogx.Option{
		catalogx.WithSchema(catalogCfg.Schema()),
		catalogx.WithGroupThreshold(catalogCfg.GroupThreshold),
	}
	if catalogCfg.Phrase {
		opts = append(opts, catalogx.WithPhraser(registry.CatalogPhraser()))
	}
	catalogAgent, err := catalogx.NewAgent(products, opts...)
	if err != nil {
		return err
	}

	bot, err := orchestrator.New(store, registry, catalogAgent, *orchCfg)
	if err != nil {
		return err
	}

	var verifier *qstashx.Verifier
	if apiCfg.VerifySignatures {
		verifier = qstashx.MustNew(*configx.MustNew[qstashx.Config]("QSTASH"))
	}

	server, err := api.New(bot, verifier, *apiCfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		if err := server.Shutdown(); err != nil {
			return err
		}
		return nil
	}
}

func openStateStore(ctx context.Context, cfg statex.StoreConfig) (statex.Store, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case statex.DriverUpstash:
		upstashCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS_REST")
		store, err := statex.NewUpstashRedisStore(*upstashCfg,
			statex.WithKeyPrefix(cfg.KeyPrefix),
			statex.WithTTL(cfg.TTL),
		)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case statex.DriverPostgres:
		pgCfg := configx.MustNew[statex.PostgresConfig]("POSTGRES")
		store, err := statex.OpenPostgresStore(ctx, *pgCfg)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	case statex.DriverMemory, "":
		log.Warn().Msg("session state is kept in process memory")
		return statex.NewCacheStore(cfg.TTL, cfg.CleanupInterval), noop, nil
	default:
		return nil, noop, errors.New("unsupported state driver: " + cfg.Driver)
	}
}

func openCatalogStore(ctx context.Context, cfg catalogx.Config) (contractx.CatalogStore, func(), error) {
	switch cfg.Driver {
	case catalogx.DriverFile:
		store, err := catalogx.LoadStaticFile(cfg.File)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() {}, nil
	default:
		store, err := catalogx.OpenRedisStore(ctx, cfg)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}
