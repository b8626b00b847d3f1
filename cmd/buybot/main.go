package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"solana-buybot/config"
	"solana-buybot/internal/api"
	"solana-buybot/internal/botcmd"
	"solana-buybot/internal/feed"
	"solana-buybot/internal/gateway"
	"solana-buybot/internal/logger"
	"solana-buybot/internal/metrics"
	"solana-buybot/internal/model"
	"solana-buybot/internal/notification"
	"solana-buybot/internal/pipeline"
	"solana-buybot/internal/pricing"
	redisstore "solana-buybot/internal/store/redis"
	sqlitestore "solana-buybot/internal/store/sqlite"
	"solana-buybot/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("buybot", slog.LevelInfo).Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.Init("buybot", logger.ParseLevel(cfg.LogLevel))
	log.Info("starting", "port", cfg.Port, "dry_run", cfg.DryRun, "polling", cfg.BotPolling)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()

	// ---- Storage ----
	registry, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Error("sqlite open failed", "path", cfg.SQLitePath, "err", err)
		os.Exit(1)
	}
	defer registry.Close()

	var (
		rdb      *redisstore.Client
		sessions botcmd.SessionStore
		prices   model.PriceResolver
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			// Prices go uncached and sessions stay in memory.
			log.Warn("redis unavailable, continuing without it", "addr", cfg.RedisAddr, "err", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}
	if rdb != nil {
		health.StartLivenessChecker(ctx, rdb.Redis(), registry.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, registry.DB(), 10*time.Second)
	}

	// ---- Pricing ----
	dex := pricing.NewDexScreener(pricing.Config{
		BaseURL: cfg.DexScreenerURL,
		Timeout: cfg.PriceTimeout,
	})
	dex.Breaker().OnStateChange = func(from, to pricing.State) {
		prom.BreakerState.Set(float64(to))
		if to == pricing.StateOpen {
			prom.BreakerTrips.Inc()
		}
		log.Warn("price breaker state change", "from", from.String(), "to", to.String())
	}
	prices = dex
	if rdb != nil {
		prices = pricing.NewCached(dex, redisstore.NewPriceCache(rdb), cfg.PriceCacheTTL)
	}

	// ---- Delivery ----
	tg := notification.NewTelegram(cfg.BotToken, cfg.TelegramAPIURL, cfg.SendTimeout)
	var sender model.MessageSender = tg
	if cfg.DryRun {
		sender = notification.NewLogSender()
	}
	dispatcher := notification.NewDispatcher(sender, notification.DispatcherConfig{
		Concurrency: cfg.DispatchConcurrency,
		SendTimeout: cfg.SendTimeout,
	}, prom)

	// ---- Alert feeds ----
	hub := gateway.NewHub(cfg.FeedReplay, prom)
	defer hub.Close()

	feeds := feed.New(256, 5*time.Second)
	feeds.OnDrop = func(name string) { prom.FeedDrops.WithLabelValues(name).Inc() }
	feeds.Add("ws", hub)
	if cfg.KafkaBrokers != "" {
		kp := feed.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		feeds.Add("kafka", kp)
		log.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.AlertWebhookURL != "" {
		feeds.Add("webhook", notification.NewWebhookPublisher(cfg.AlertWebhookURL, cfg.SendTimeout))
		log.Info("webhook sink enabled")
	}

	// ---- Pipeline ----
	proc := pipeline.NewProcessor(pipeline.Deps{
		Registry:   registry,
		Prices:     prices,
		Dispatcher: dispatcher,
		Publisher:  feeds,
		Metrics:    prom,
		Health:     health,
	})
	queue := pipeline.NewQueue(pipeline.QueueConfig{
		Size:    cfg.QueueSize,
		Workers: cfg.Workers,
		Wait:    cfg.QueueWait,
	}, func(ctx context.Context, raw []byte) {
		proc.Process(ctx, raw)
	}, prom)

	// ---- Configuration bot ----
	botDone := make(chan struct{})
	if cfg.BotPolling && !cfg.DryRun {
		if rdb != nil {
			sessions = redisstore.NewSessionStore(rdb, cfg.SessionTTL)
		} else {
			mem := botcmd.NewMemorySessions(cfg.SessionTTL)
			go mem.RunSweeper(ctx, time.Minute)
			sessions = mem
		}
		bot := botcmd.NewBot(tg, registry, sessions, prom, health)
		go func() {
			defer close(botDone)
			if err := bot.Run(ctx); err != nil {
				log.Error("bot stopped", "err", err)
			}
		}()
	} else {
		close(botDone)
	}

	// ---- HTTP ----
	router := api.NewRouter(api.Deps{
		Webhook: webhook.NewHandler(webhook.Config{
			Secret:       cfg.Secret,
			SecretHeader: cfg.SecretHeader,
		}, queue).Handle,
		Health: health,
		Feed:   hub,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	// ---- Wait for shutdown signal ----
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	if err := queue.Close(shutdownCtx); err != nil {
		log.Warn("queue drain incomplete", "err", err)
	}
	feeds.Close()
	<-botDone

	log.Info("stopped")
}
