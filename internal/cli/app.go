package cli

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/ppiankov/veritas/internal/agent"
	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/cluster"
	"github.com/ppiankov/veritas/internal/collect"
	"github.com/ppiankov/veritas/internal/inference"
	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/logger"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
	"github.com/ppiankov/veritas/internal/similarity"
	"github.com/ppiankov/veritas/internal/store"
	"github.com/ppiankov/veritas/internal/worker"
)

// app holds the wired components shared by commands
type app struct {
	cfg     *model.Config
	log     logger.Logger
	store   *store.SQLiteStore
	gateway *llm.Gateway

	engine    *inference.Engine
	pipeline  *pipeline.Pipeline
	clusterer *cluster.Clusterer
}

// appOptions select which parts a command needs
type appOptions struct {
	noScrape bool
	noStore  bool
}

// newApp loads configuration and wires every component
func newApp(opts appOptions) (*app, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return buildApp(cfg, opts)
}

func buildApp(cfg *model.Config, opts appOptions) (_ *app, err error) {
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// A missing primary credential is fatal here
	a.gateway, err = llm.NewGatewayFromConfig(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}

	var gen inference.StructuredGenerator
	if a.gateway != nil {
		gen = a.gateway
		log.Debug("Language model providers enabled", logger.Strings("providers", a.gateway.Providers()))
	}
	a.engine, err = inference.NewDefaultEngine(cfg.Inference, gen, log)
	if err != nil {
		return nil, fmt.Errorf("inference engine: %w", err)
	}

	if !opts.noStore {
		a.store, err = store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
	}

	channels := []collect.Channel{collect.NoopAPISource{}}
	if !opts.noScrape && cfg.Scrape.Enabled {
		scraper, err := newScraper(cfg, log)
		if err != nil {
			return nil, err
		}
		channels = append(channels, scraper)
	}
	var saver pipeline.ClaimSaver
	if a.store != nil {
		channels = append(channels, collect.NewStoreSource(a.store, cfg.Collector.StoreSimilarity))
		saver = a.store
	}
	collector := collect.NewCollector(cfg.Collector.MaxResults, log, channels...)

	a.pipeline = pipeline.New(collector, a.engine, saver, cfg.Flags, log)

	if a.store != nil {
		var namer cluster.Namer = cluster.FallbackNamer{}
		if a.gateway != nil {
			namer = cluster.NewChatNamer(a.gateway, log)
		}
		a.clusterer = cluster.New(a.store, similarity.NewHashEmbedder(similarity.DefaultDimension), namer,
			cluster.Options{BatchSize: cfg.Cluster.BatchSize, Threshold: cfg.Cluster.Threshold}, log)
	}
	return a, nil
}

// newScraper builds the polite fetcher (cache, per-host limiter, robots) and the scraper over it
func newScraper(cfg *model.Config, log logger.Logger) (*collect.Scraper, error) {
	sources := collect.DefaultSources()
	if cfg.Scrape.SourcesFile != "" {
		loaded, err := collect.LoadSources(cfg.Scrape.SourcesFile)
		if err != nil {
			return nil, err
		}
		sources = loaded
	}

	limiter := worker.NewLimiter(cfg.Scrape.RequestsPerSecond, 1).
		WithJitter(cfg.Scrape.MinDelay, cfg.Scrape.MaxDelay)

	fetcher := collect.NewFetcher(collect.FetcherConfig{
		Timeout:       cfg.HTTP.Timeout,
		UserAgent:     cfg.HTTP.UserAgent,
		MaxBytes:      cfg.HTTP.MaxBodyBytes,
		RespectRobots: cfg.HTTP.RespectRobots,
		HTTPProxy:     cfg.HTTP.HTTPProxy,
		HTTPSProxy:    cfg.HTTP.HTTPSProxy,
		NoProxy:       cfg.HTTP.NoProxy,
		Cache:         cache.New(cfg.Scrape.CacheTTL, cfg.Scrape.CacheDir),
		CacheTTL:      cfg.Scrape.CacheTTL,
		Limiter:       limiter,
	}, log)

	return collect.NewScraper(sources, fetcher, collect.ScraperConfig{
		Concurrency:         cfg.Scrape.Concurrency,
		MaxResultsPerSource: cfg.Scrape.MaxResultsPerSource,
		DetailFetchCount:    cfg.Scrape.DetailFetchCount,
	}, log), nil
}

// scheduler registers the background agents on their configured cron specs
func (a *app) scheduler() (*agent.Scheduler, error) {
	if a.store == nil {
		return nil, fmt.Errorf("agents need a store")
	}
	sched := a.cfg.Schedule
	s := agent.NewScheduler(a.log)

	reverify := agent.ReverifyOptions{
		Window:   sched.ReverifyWindow,
		Limit:    sched.ReverifyLimit,
		Delay:    sched.ReverifyDelay,
		MinViews: a.cfg.Flags.UrgentViews,
	}
	tasks := []struct {
		task agent.Task
		spec string
	}{
		{agent.NewClusterTask(a.clusterer), sched.Cluster},
		{agent.NewReverifyTask(a.store, a.pipeline, reverify, a.log), sched.Reverify},
		{agent.NewPriorityTask(a.store, a.pipeline, reverify, a.log), sched.Priority},
	}
	for _, t := range tasks {
		if t.spec == "" {
			continue
		}
		if err := s.Register(agent.New(t.task.Name(), t.task, a.store, a.log), t.spec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases the store and flushes the logger
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("Failed to close store", logger.Error(err))
		}
	}
	_ = a.log.Sync()
}
