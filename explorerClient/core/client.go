package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/tellor-io/layer-explorer/explorerClient/api"
	"github.com/tellor-io/layer-explorer/explorerClient/cache"
	"github.com/tellor-io/layer-explorer/explorerClient/config"
	"github.com/tellor-io/layer-explorer/explorerClient/datasource"
	"github.com/tellor-io/layer-explorer/explorerClient/explorer"
	"github.com/tellor-io/layer-explorer/explorerClient/fallback"
	"github.com/tellor-io/layer-explorer/explorerClient/monitoring"
	"github.com/tellor-io/layer-explorer/explorerClient/rpcpool"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// ExplorerClient owns every long-lived component of the explorer daemon
type ExplorerClient struct {
	cfg config.Config
	log zerolog.Logger

	pools    map[source.Type]*rpcpool.Manager
	monitor  *monitoring.Service
	sources  *datasource.Manager
	cache    *cache.Cache
	service  *explorer.Service
	fallback *fallback.Runner
	registry *prometheus.Registry
	server   *api.Server

	stopOnce sync.Once
}

// New builds the component graph from a validated config
func New(cfg config.Config, log zerolog.Logger) (*ExplorerClient, error) {
	c := &ExplorerClient{
		cfg:   cfg,
		log:   log,
		pools: make(map[source.Type]*rpcpool.Manager),
	}

	httpClient := cleanhttp.DefaultPooledClient()
	gqlBackend := explorer.NewGraphQLClient(httpClient)
	rpcBackend := explorer.NewRPCClient(httpClient)
	probers := map[source.Type]rpcpool.HealthChecker{
		source.GraphQL: explorer.GraphQLHealthChecker(gqlBackend),
		source.RPC:     explorer.RPCHealthChecker(rpcBackend),
	}

	c.monitor = monitoring.NewService(monitoring.NewConfig(&cfg), log)

	for _, src := range source.All() {
		opts := []rpcpool.Option{
			rpcpool.WithHealthChecker(probers[src]),
			rpcpool.WithHealthObserver(c.monitor),
		}
		poolCfg := rpcpool.NewPoolConfig(&cfg, src)
		var pool *rpcpool.Manager
		if src == source.RPC {
			pool = rpcpool.NewRPCManager(cfg.RPCEndpoints, poolCfg, log, opts...)
		} else {
			pool = rpcpool.NewGraphQLManager(cfg.GraphQLEndpoints, poolCfg, log, opts...)
		}
		if pool == nil {
			return nil, fmt.Errorf("no %s endpoints configured", src)
		}
		if custom := cfg.CustomEndpoint(src); custom != "" {
			pool.SetCustomEndpoint(custom)
			log.Info().Str("source", src.String()).Str("endpoint", custom).Msg("using custom endpoint")
		}
		c.pools[src] = pool
	}

	sources, err := datasource.NewManager(
		datasource.NewSettings(&cfg),
		[]*rpcpool.Manager{c.pools[source.GraphQL], c.pools[source.RPC]},
		log,
		datasource.WithRecorder(c.monitor),
		datasource.WithProber(source.GraphQL, probers[source.GraphQL]),
		datasource.WithProber(source.RPC, probers[source.RPC]),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create data source manager: %w", err)
	}
	c.sources = sources

	c.cache, err = cache.New(cfg.CacheSize, cfg.CacheTTL(), log)
	if err != nil {
		return nil, err
	}

	c.service = explorer.NewService(sources, gqlBackend, rpcBackend, c.cache, log, explorer.WithCacheRecorder(c.monitor))
	c.fallback = fallback.NewRunner(fallback.DefaultRegistry(c.service, cfg.Fallback()), cfg.FallbackTimeout(),
		cfg.Primary(), cfg.Fallback(), log, fallback.WithRecorder(c.monitor))

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		monitoring.NewCollector(c.monitor),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.server = api.NewServer(log, cfg.QueryServerPort, api.Deps{
		Service:  c.service,
		Sources:  c.sources,
		Monitor:  c.monitor,
		Fallback: c.fallback,
		Gatherer: c.registry,
	})
	return c, nil
}

// Service returns the explorer data service
func (c *ExplorerClient) Service() *explorer.Service { return c.service }

// Monitor returns the monitoring service
func (c *ExplorerClient) Monitor() *monitoring.Service { return c.monitor }

// Sources returns the data source manager
func (c *ExplorerClient) Sources() *datasource.Manager { return c.sources }

// Start runs every background loop and the query server, blocks until ctx
// is done, then shuts everything down.
func (c *ExplorerClient) Start(ctx context.Context) error {
	c.log.Info().
		Str("primary", c.cfg.PrimarySource).
		Str("fallback", c.cfg.FallbackSource).
		Msg("starting explorer client")

	if err := c.monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}
	for _, src := range source.All() {
		c.pools[src].Start(ctx)
	}
	if err := c.sources.Start(ctx); err != nil {
		c.Stop()
		return fmt.Errorf("failed to start data source manager: %w", err)
	}
	if err := c.server.Start(); err != nil {
		c.Stop()
		return fmt.Errorf("failed to start query server: %w", err)
	}

	c.log.Info().Int("port", c.cfg.QueryServerPort).Msg("initialization complete, serving")
	<-ctx.Done()

	c.log.Info().Msg("shutting down explorer client")
	c.Stop()
	return nil
}

// Stop shuts components down in reverse start order. It is safe to call
// on a partially started client and more than once.
func (c *ExplorerClient) Stop() {
	c.stopOnce.Do(c.stop)
}

func (c *ExplorerClient) stop() {
	if err := c.server.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("query server shutdown failed")
	}
	c.sources.Stop()
	for _, src := range source.All() {
		c.pools[src].Stop()
	}
	c.monitor.Stop()
	c.cache.Close()
}
