package main

import (
	"context"
	"database/sql"
	"flag"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"reviewradar/internal/adapters/events"
	"reviewradar/internal/adapters/gmb"
	"reviewradar/internal/adapters/googleauth"
	"reviewradar/internal/adapters/llm"
	"reviewradar/internal/adapters/observability"
	redisad "reviewradar/internal/adapters/redis"
	"reviewradar/internal/app"
	"reviewradar/internal/domain"
	"reviewradar/internal/shared"
	mysqlrepo "reviewradar/internal/storage/mysql"
)

func main() {
	backfill := flag.Bool("backfill", false, "score existing commented reviews that were never scored, then exit")
	backfillLimit := flag.Int("backfill-limit", 500, "max reviews to score in one backfill pass")
	flag.Parse()

	ctx := context.Background()
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	scorer, err := llm.New(cfg.LLMBase, cfg.LLMKey, cfg.LLMModel, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize LLM client")
	}

	if *backfill {
		runBackfill(ctx, cfg, repo, scorer, *backfillLimit)
		return
	}

	tokens := googleauth.New(repo, cfg.GoogleTokenURL, cfg.GoogleClientID, cfg.GoogleClientSecret)
	source, err := gmb.New(cfg.GoogleAPIBase, tokens, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize reviews client")
	}

	var notifier domain.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kn := events.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kn.Close()
		notifier = kn
	}

	svc := app.NewSyncService(source, repo, tokens, scorer, cache, cache, notifier, log.Logger)
	svc.SetBatchSize(cfg.BatchSize)

	sum, err := svc.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("sync failed")
	}
	log.Info().
		Str("run_id", sum.RunID).
		Int("total", sum.TotalReviews).
		Int("changed", sum.ChangedCount).
		Int("replies_changed", sum.ReplyChangedCount).
		Int("ai_errors", sum.AIErrorCount).
		Int("db_errors", sum.DBErrorCount).
		Msg("sync completed")
}

// runBackfill scores never-scored commented reviews with bounded
// concurrency. Unlike the sync run it has no ordering requirement, so
// the fan-out is safe.
func runBackfill(ctx context.Context, cfg shared.Config, repo *mysqlrepo.Repo, scorer domain.Scorer, limit int) {
	reviews, err := repo.ListUnscored(ctx, limit)
	if err != nil {
		log.Fatal().Err(err).Msg("list unscored failed")
	}
	log.Info().Int("count", len(reviews)).Int("workers", cfg.Workers).Msg("backfill starting")

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, rv := range reviews {
		rv := rv

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(rv domain.Review) {
			defer wg.Done()
			defer sem.Release(1)

			scores, err := scorer.Score(ctx, *rv.Comment)
			if err != nil {
				log.Warn().Str("review_id", rv.ReviewID).Err(err).Msg("backfill scoring failed")
				return
			}
			rv.Scores = scores
			if err := repo.UpsertReview(ctx, rv); err != nil {
				log.Warn().Str("review_id", rv.ReviewID).Err(err).Msg("backfill upsert failed")
				return
			}
			log.Info().Str("review_id", rv.ReviewID).Msg("backfill ok")
		}(rv)
	}

	wg.Wait()
	log.Info().Msg("backfill completed")
}
