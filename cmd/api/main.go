package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"reviewradar/internal/adapters/events"
	"reviewradar/internal/adapters/gmb"
	"reviewradar/internal/adapters/googleauth"
	server "reviewradar/internal/adapters/http_server"
	"reviewradar/internal/adapters/llm"
	"reviewradar/internal/adapters/observability"
	redisad "reviewradar/internal/adapters/redis"
	"reviewradar/internal/app"
	"reviewradar/internal/domain"
	"reviewradar/internal/shared"
	mysqlrepo "reviewradar/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	tokens := googleauth.New(repo, cfg.GoogleTokenURL, cfg.GoogleClientID, cfg.GoogleClientSecret)
	source, err := gmb.New(cfg.GoogleAPIBase, tokens, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize reviews client")
	}
	scorer, err := llm.New(cfg.LLMBase, cfg.LLMKey, cfg.LLMModel, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize LLM client")
	}

	var notifier domain.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kn := events.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kn.Close()
		notifier = kn
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("event publishing enabled")
	}

	q := app.NewQueryService(repo, cache, int(cfg.CacheTTL.Seconds()))
	syncSvc := app.NewSyncService(source, repo, tokens, scorer, cache, cache, notifier, log.Logger)
	syncSvc.SetBatchSize(cfg.BatchSize)
	replies := app.NewReplyService(repo, source, scorer, cache)

	// scheduled sync
	c := cron.New()
	if _, err := c.AddFunc(cfg.SyncCron, func() {
		if _, err := syncSvc.Run(context.Background()); err != nil {
			log.Warn().Err(err).Msg("scheduled sync failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.SyncCron).Msg("invalid SYNC_CRON")
	}
	c.Start()
	defer c.Stop()
	log.Info().Str("spec", cfg.SyncCron).Msg("sync schedule registered")

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Sync: syncSvc, Replies: replies})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
