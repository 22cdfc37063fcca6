package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cryptostream/config"
	"cryptostream/internal/catalog"
	"cryptostream/internal/channel"
	"cryptostream/internal/feed"
	"cryptostream/internal/metrics"
	"cryptostream/internal/metrics/rate"
	"cryptostream/internal/model"
	"cryptostream/internal/pipeline"
	"cryptostream/internal/protocol"
	"cryptostream/internal/session"
	"cryptostream/internal/sink"
	"cryptostream/internal/snapshot"
	"cryptostream/internal/status"
	"cryptostream/internal/subscription"
	"cryptostream/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "Path to configuration file")
	shardPath := flag.String("shards", "config/ip_shards.yml", "Path to IP shard configuration file")
	flag.Parse()

	path := config.ResolvePath(*configPath, "config/config.yml", map[string]string{
		config.EnvironmentProduction: "config/config.production.yml",
		config.EnvironmentStaging:    "config/config.staging.yml",
	})
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	env := config.AppEnvironment()
	log.WithEnv(env).WithFields(logger.Fields{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
		"config":  path,
	}).Info("starting cryptostream")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Logging.DashboardName)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, cfg.Logging.ReportInterval)
	}
	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Metrics.Address)
	}

	statusServer := status.NewServer(cfg.Status, log)

	shards, err := loadShards(*shardPath, env)
	if err != nil {
		log.WithError(err).Error("failed to load shard configuration")
		os.Exit(1)
	}

	var cat *catalog.Catalog
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Load(cfg.Catalog.Path)
		if err != nil {
			log.WithError(err).Error("failed to load market catalog")
			os.Exit(1)
		}
		log.WithComponent("main").WithFields(logger.Fields{"markets": cat.Len()}).Info("market catalog loaded")
	}

	channels := channel.NewChannels(cfg.Channels.RawBuffer, cfg.Channels.NormBuffer)
	channels.DropWhenFull = cfg.Channels.DropWhenFull
	channels.StartSizeReporter(ctx, cfg.Channels.ReportInterval)

	sinks, err := buildSinks(cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to create sinks")
		os.Exit(1)
	}
	runner := sink.NewRunner(channels, cfg.Sink.BatchSize, cfg.Sink.FlushInterval, sinks...)
	if err := runner.Start(ctx); err != nil {
		log.WithError(err).Error("sink runner failed to start")
		os.Exit(1)
	}

	normalizer := pipeline.New(channels,
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithCatalog(cat),
		pipeline.WithSymbols(cfg.Pipeline.Symbols),
	)
	if err := normalizer.Start(ctx); err != nil {
		log.WithError(err).Error("normalizer failed to start")
		os.Exit(1)
	}

	statusServer.AddStatus("channels", func() interface{} { return channels.GetStats() })
	statusServer.AddStatus("normalizer", func() interface{} { return normalizer.Stats() })

	engines := startEngines(ctx, cfg, shards, statusServer, log)

	var wg sync.WaitGroup
	for _, e := range engines {
		f := feed.New(e, channels)
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Run(ctx)
		}()
	}

	pollers := startPollers(ctx, cfg, shards, channels, statusServer, log)

	var statusDone chan struct{}
	if statusServer != nil {
		statusDone = make(chan struct{})
		go func() {
			defer close(statusDone)
			if err := statusServer.Run(ctx, cfg.App.Name); err != nil {
				log.WithError(err).Error("status server stopped")
			}
		}()
	}

	log.WithFields(logger.Fields{
		"sessions": len(engines),
		"pollers":  len(pollers),
	}).Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		log.Info("closing sessions")
		for _, e := range engines {
			_ = e.Close()
		}
		wg.Wait()

		log.Info("stopping snapshot pollers")
		for _, p := range pollers {
			p.Stop()
		}

		log.Info("stopping normalizer")
		normalizer.Stop()

		log.Info("stopping sinks")
		runner.Stop()

		if statusDone != nil {
			<-statusDone
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("cryptostream stopped")
}

// loadShards reads the IP shard file. Outside production a missing file
// routes every symbol through the default interface.
func loadShards(path, env string) (*config.IPShards, error) {
	shards, err := config.LoadIPShards(path)
	if err == nil {
		return shards, nil
	}
	if !config.IsProductionLike(env) && errors.Is(err, os.ErrNotExist) {
		logger.GetLogger().WithComponent("main").WithFields(logger.Fields{"path": path}).Warn("no shard file, using the default route")
		return nil, nil
	}
	return nil, err
}

func buildSinks(cfg *config.Config, log *logger.Log) ([]sink.Sink, error) {
	var sinks []sink.Sink
	if cfg.Kafka.Enabled {
		k, err := sink.NewKafka(sink.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			RequiredAcks: cfg.Kafka.RequiredAcks,
			Compression:  cfg.Kafka.Compression,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, k)
	} else {
		log.WithComponent("main").Info("kafka disabled; records go to the log sink")
	}
	if cfg.Sink.Log || !cfg.Kafka.Enabled {
		sinks = append(sinks, sink.NewLog(log))
	}
	return sinks, nil
}

// startEngines opens one session per exchange entry and source IP. Symbols
// are routed to the IP their shard names; raw channels use the default route.
func startEngines(ctx context.Context, cfg *config.Config, shards *config.IPShards, st *status.Server, log *logger.Log) []*session.Engine {
	var engines []*session.Engine
	for _, ex := range cfg.Exchanges {
		mt, _ := model.ParseMarketType(ex.MarketType)
		elog := log.WithComponent("main").WithExchange(ex.Name, string(mt))

		var all []string
		for _, sub := range ex.Subscriptions {
			all = append(all, sub.Symbols...)
		}
		groups := shards.Split(ex.Name, all)
		if len(ex.Channels) > 0 {
			if _, ok := groups[""]; !ok {
				groups[""] = nil
			}
		}

		ips := make([]string, 0, len(groups))
		for ip := range groups {
			ips = append(ips, ip)
		}
		sort.Strings(ips)

		for _, ip := range ips {
			e, err := newEngine(cfg, ex, mt, ip)
			if err != nil {
				elog.WithError(err).Error("failed to create session")
				continue
			}
			if err := e.Start(ctx); err != nil {
				elog.WithError(err).Error("session failed to start")
				continue
			}
			subscribe(ctx, e, ex, groups[ip], ip == "", elog)
			engines = append(engines, e)
			st.AddStatus(statusName("session", ex.Name, mt, ip), sessionStatus(e, len(groups[ip])))
		}
	}
	return engines
}

func newEngine(cfg *config.Config, ex config.ExchangeConfig, mt model.MarketType, ip string) (*session.Engine, error) {
	var opts []protocol.Option
	if ex.URL != "" {
		opts = append(opts, protocol.WithURL(ex.URL))
	}
	if ex.MaxSymbols > 0 {
		opts = append(opts, protocol.WithMaxSymbols(ex.MaxSymbols))
	}
	if ex.Notification {
		opts = append(opts, protocol.WithNotification())
	}
	adapter, err := protocol.New(ex.Name, mt, opts...)
	if err != nil {
		return nil, err
	}

	localIP := ip
	if localIP == "" {
		localIP = ex.LocalIP
	}
	s := cfg.Session
	log := logger.GetLogger()
	return session.New(adapter,
		session.WithDialer(session.WSDialer{
			LocalIP:          localIP,
			HandshakeTimeout: s.HandshakeTimeout,
			ReadBufferSize:   s.ReadBufferBytes,
		}),
		session.WithBackoff(session.Backoff{
			Min:    s.Backoff.Min,
			Max:    s.Backoff.Max,
			Factor: s.Backoff.Factor,
			Jitter: s.Backoff.Jitter,
		}),
		session.WithMaxAttempts(s.MaxAttempts),
		session.WithReadTimeout(s.ReadTimeout),
		session.WithBufferSize(s.BufferSize),
		session.WithMiscHook(rate.MiscHook(log, adapter.Exchange(), string(mt))),
		session.WithStateHook(func(st session.State) {
			log.WithComponent("session").WithExchange(adapter.Exchange(), string(mt)).WithFields(logger.Fields{
				"state":    st.String(),
				"local_ip": localIP,
			}).Info("session state changed")
		}),
	), nil
}

// subscribe registers the subscriptions of ex restricted to symbols.
func subscribe(ctx context.Context, e *session.Engine, ex config.ExchangeConfig, symbols []string, defaultRoute bool, log *logger.Entry) {
	allowed := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		allowed[s] = struct{}{}
	}
	subCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, sub := range ex.Subscriptions {
		kind, _ := model.ParseMessageType(sub.Kind)
		var mine []string
		for _, s := range sub.Symbols {
			if _, ok := allowed[s]; ok {
				mine = append(mine, s)
			}
		}
		if len(mine) == 0 {
			continue
		}
		if err := e.Subscribe(subCtx, kind, mine); err != nil {
			log.WithError(err).WithFields(logger.Fields{"kind": sub.Kind, "symbols": mine}).Error("subscribe failed")
		}
	}

	if !defaultRoute || len(ex.Channels) == 0 {
		return
	}
	pairs := make([]subscription.Pair, 0, len(ex.Channels))
	for _, token := range ex.Channels {
		p, err := subscription.Decode(token)
		if err != nil {
			log.WithError(err).Warn("skipping raw channel")
			continue
		}
		pairs = append(pairs, p)
	}
	if len(pairs) == 0 {
		return
	}
	if err := e.SubscribeChannel(subCtx, pairs); err != nil {
		log.WithError(err).Error("raw channel subscribe failed")
	}
}

// startPollers creates one poller per snapshot target and source IP.
func startPollers(ctx context.Context, cfg *config.Config, shards *config.IPShards, ch *channel.Channels, st *status.Server, log *logger.Log) []*snapshot.Poller {
	if !cfg.Snapshots.Enabled {
		return nil
	}
	sc := cfg.Snapshots
	var pollers []*snapshot.Poller
	for _, t := range sc.Targets {
		mt, _ := model.ParseMarketType(t.MarketType)
		tlog := log.WithComponent("main").WithExchange(t.Exchange, string(mt))
		for ip, symbols := range shards.Split(t.Exchange, t.Symbols) {
			fetcher, err := snapshot.NewFetcher(t.Exchange, snapshot.Options{
				BaseURL: t.BaseURL,
				Timeout: sc.Timeout,
				Pool: snapshot.ConnectionPool{
					MaxIdleConns:    sc.ConnectionPool.MaxIdleConns,
					MaxConnsPerHost: sc.ConnectionPool.MaxConnsPerHost,
					IdleConnTimeout: sc.ConnectionPool.IdleConnTimeout,
				},
				LocalIP: ip,
			})
			if err != nil {
				tlog.WithError(err).Error("failed to create snapshot fetcher")
				break
			}
			p := snapshot.NewPoller(fetcher, ch, []snapshot.Target{{
				MarketType: mt,
				Symbols:    symbols,
				Interval:   t.Interval,
				Limit:      t.Limit,
			}}, sc.RateLimit.RequestsPerSecond, sc.RateLimit.BurstSize)
			if err := p.Start(ctx); err != nil {
				tlog.WithError(err).Error("snapshot poller failed to start")
				continue
			}
			pollers = append(pollers, p)
			st.AddStatus(statusName("snapshot", t.Exchange, mt, ip), func() interface{} {
				return map[string]interface{}{"symbols": len(symbols), "emitted": p.Emitted()}
			})
		}
	}
	return pollers
}

// statusName builds a route-safe component name such as
// "session.binance.spot.default".
func statusName(kind, exchange string, mt model.MarketType, ip string) string {
	if ip == "" {
		ip = "default"
	}
	return fmt.Sprintf("%s.%s.%s.%s", kind, strings.ToLower(exchange), mt, ip)
}

func sessionStatus(e *session.Engine, symbols int) status.Provider {
	return func() interface{} {
		out := map[string]interface{}{
			"state":   e.State().String(),
			"symbols": symbols,
		}
		if err := e.Err(); err != nil {
			out["error"] = err.Error()
		}
		return out
	}
}
