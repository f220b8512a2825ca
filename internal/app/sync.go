package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reviewradar/internal/adapters/observability"
	"reviewradar/internal/domain"
)

const syncLockKey = "sync:run"

// SyncService reconciles the remote review set into local storage:
// fetch everything, diff against the local snapshot, rescore changed
// comments, upsert rows, and keep reply rows consistent with the
// remote state.
//
// Per-review failures are recorded in the summary and never abort the
// run; only credential, discovery, fetch and snapshot-load failures
// are fatal, because a partial remote view would make the reply
// reconciliation destructive.
type SyncService struct {
	source   domain.ReviewSource
	repo     domain.ReviewRepository
	tokens   domain.TokenProvider
	scorer   domain.Scorer
	cache    domain.Cache
	locker   domain.Locker
	notifier domain.Notifier
	log      zerolog.Logger

	batchSize     int
	retryAttempts int
	retryBase     time.Duration
	lockTTL       time.Duration
}

func NewSyncService(
	source domain.ReviewSource,
	repo domain.ReviewRepository,
	tokens domain.TokenProvider,
	scorer domain.Scorer,
	cache domain.Cache,
	locker domain.Locker,
	notifier domain.Notifier,
	log zerolog.Logger,
) *SyncService {
	return &SyncService{
		source:   source,
		repo:     repo,
		tokens:   tokens,
		scorer:   scorer,
		cache:    cache,
		locker:   locker,
		notifier: notifier,
		log:      log,

		batchSize:     10,
		retryAttempts: 3,
		retryBase:     time.Second,
		lockTTL:       10 * time.Minute,
	}
}

// SetBatchSize overrides the default reconciliation batch size.
func (s *SyncService) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// Run executes one full sync pass and returns its summary.
func (s *SyncService) Run(ctx context.Context) (domain.SyncSummary, error) {
	sum := domain.SyncSummary{RunID: uuid.NewString()}
	log := s.log.With().Str("run_id", sum.RunID).Logger()
	started := time.Now()

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, syncLockKey, s.lockTTL)
		if err != nil {
			log.Warn().Err(err).Msg("sync lock unavailable, proceeding without it")
		} else if !ok {
			observability.SyncRuns.WithLabelValues("locked").Inc()
			return sum, domain.ErrSyncInFlight
		} else {
			defer func() {
				if err := s.locker.Unlock(context.WithoutCancel(ctx), syncLockKey); err != nil {
					log.Warn().Err(err).Msg("sync unlock failed")
				}
			}()
		}
	}

	// Setup stages; any failure here aborts the whole run.
	t0 := time.Now()
	if _, err := s.tokens.Token(ctx); err != nil {
		observability.SyncRuns.WithLabelValues("fatal").Inc()
		return sum, fmt.Errorf("acquire token: %w", err)
	}
	sum.Timing.Token = time.Since(t0)
	observability.ObserveSyncStage("token", sum.Timing.Token)

	t0 = time.Now()
	remote, err := s.source.FetchAllReviews(ctx)
	if err != nil {
		observability.SyncRuns.WithLabelValues("fatal").Inc()
		return sum, fmt.Errorf("fetch reviews: %w", err)
	}
	sum.Timing.Fetch = time.Since(t0)
	observability.ObserveSyncStage("fetch", sum.Timing.Fetch)

	t0 = time.Now()
	local, err := s.repo.LoadReviews(ctx)
	if err != nil {
		observability.SyncRuns.WithLabelValues("fatal").Inc()
		return sum, fmt.Errorf("load reviews: %w", err)
	}
	replies, err := s.repo.LoadReplies(ctx)
	if err != nil {
		observability.SyncRuns.WithLabelValues("fatal").Inc()
		return sum, fmt.Errorf("load replies: %w", err)
	}
	sum.Timing.Load = time.Since(t0)
	observability.ObserveSyncStage("load", sum.Timing.Load)

	sum.TotalReviews = len(remote)
	log.Info().Int("remote", len(remote)).Int("local", len(local)).Msg("sync snapshot loaded")

	// Reconcile in fixed-size batches, sequentially: per-review order is
	// what makes "record errors, keep going" deterministic.
	t0 = time.Now()
	for start := 0; start < len(remote); start += s.batchSize {
		end := start + s.batchSize
		if end > len(remote) {
			end = len(remote)
		}
		for _, rr := range remote[start:end] {
			s.processOne(ctx, &sum, rr, local, replies)
		}
	}
	sum.Timing.Process = time.Since(t0)
	observability.ObserveSyncStage("process", sum.Timing.Process)

	sum.Timing.Total = time.Since(started)
	sum.Message = fmt.Sprintf("synced %d reviews: %d changed, %d replies changed, %d AI errors, %d DB errors",
		sum.TotalReviews, sum.ChangedCount, sum.ReplyChangedCount, sum.AIErrorCount, sum.DBErrorCount)

	observability.SyncRuns.WithLabelValues("ok").Inc()
	observability.SyncChangedReviews.Add(float64(sum.ChangedCount))
	observability.SyncChangedReplies.Add(float64(sum.ReplyChangedCount))
	observability.SyncAIErrors.Add(float64(sum.AIErrorCount))
	observability.SyncDBErrors.Add(float64(sum.DBErrorCount))

	log.Info().
		Int("changed", sum.ChangedCount).
		Int("replies_changed", sum.ReplyChangedCount).
		Int("ai_errors", sum.AIErrorCount).
		Int("db_errors", sum.DBErrorCount).
		Dur("took", sum.Timing.Total).
		Msg("sync finished")
	return sum, nil
}

func (s *SyncService) processOne(ctx context.Context, sum *domain.SyncSummary, rr domain.RemoteReview, local map[string]domain.Review, replies map[string]domain.Reply) {
	var prev *domain.Review
	if lv, ok := local[rr.ReviewID]; ok {
		prev = &lv
	}

	changed := NeedsUpsert(rr, prev)
	rescore := NeedsRescore(rr, prev)

	var fresh domain.Scores
	if rescore {
		scored, err := WithRetry(ctx, s.retryAttempts, s.retryBase, func(ctx context.Context) (domain.Scores, error) {
			return s.scorer.Score(ctx, rr.Comment)
		})
		if err != nil {
			sum.AIErrorCount++
			sum.Errors = append(sum.Errors, domain.SyncError{ReviewID: rr.ReviewID, Stage: "score", Detail: err.Error()})
			s.log.Warn().Err(err).Str("review_id", rr.ReviewID).Msg("scoring failed, keeping previous scores")
		} else {
			fresh = scored
		}
	}

	if changed || rescore {
		row := domain.Review{
			ReviewID:         rr.ReviewID,
			ResourceName:     rr.ResourceName,
			LocationID:       rr.LocationID,
			StarRating:       rr.StarRating,
			Comment:          sp(rr.Comment),
			CreateTime:       sp(rr.CreateTime),
			UpdateTime:       sp(rr.UpdateTime),
			ReviewerName:     sp(rr.ReviewerName),
			ReviewerPhotoURL: sp(rr.ReviewerPhotoURL),
		}
		if prev != nil {
			row.Scores = MergeScores(fresh, prev.Scores)
		} else {
			row.Scores = fresh
		}

		if err := s.repo.UpsertReview(ctx, row); err != nil {
			sum.DBErrorCount++
			sum.Errors = append(sum.Errors, domain.SyncError{ReviewID: rr.ReviewID, Stage: "persist", Detail: err.Error()})
			s.log.Error().Err(err).Str("review_id", rr.ReviewID).Msg("review upsert failed")
			return
		}
		sum.ChangedCount++
		s.invalidate(ctx, rr.ReviewID)

		if s.notifier != nil {
			ev := domain.ReviewChangedEvent{
				RunID:      sum.RunID,
				ReviewID:   rr.ReviewID,
				LocationID: rr.LocationID,
				Rescored:   rescore,
				OccurredAt: time.Now().UTC(),
			}
			if err := s.notifier.ReviewChanged(ctx, ev); err != nil {
				s.log.Warn().Err(err).Str("review_id", rr.ReviewID).Msg("change notification failed")
			}
		}
	}

	s.reconcileReply(ctx, sum, rr, replies)
}

// reconcileReply mirrors the remote reply state into review_replies.
// A remote reply counts as present only when it has a non-blank
// comment and an update time. Local drafts (sent_at IS NULL) are never
// deleted; they have not been pushed upstream, so remote absence says
// nothing about them.
func (s *SyncService) reconcileReply(ctx context.Context, sum *domain.SyncSummary, rr domain.RemoteReview, replies map[string]domain.Reply) {
	var localReply *domain.Reply
	if lv, ok := replies[rr.ReviewID]; ok {
		localReply = &lv
	}

	remoteHas := rr.Reply != nil && strings.TrimSpace(rr.Reply.Comment) != "" && rr.Reply.UpdateTime != ""

	switch {
	case remoteHas:
		if localReply != nil &&
			localReply.Comment == rr.Reply.Comment &&
			Eq(localReply.UpdateTime, sp(rr.Reply.UpdateTime)) &&
			localReply.SentAt != nil {
			return
		}
		row := domain.Reply{
			ReviewID:   rr.ReviewID,
			Comment:    rr.Reply.Comment,
			UpdateTime: sp(rr.Reply.UpdateTime),
			SentAt:     sp(rr.Reply.UpdateTime),
		}
		if err := s.repo.UpsertReply(ctx, row); err != nil {
			sum.DBErrorCount++
			sum.Errors = append(sum.Errors, domain.SyncError{ReviewID: rr.ReviewID, Stage: "reply", Detail: err.Error()})
			s.log.Error().Err(err).Str("review_id", rr.ReviewID).Msg("reply upsert failed")
			return
		}
		sum.ReplyChangedCount++
		s.invalidate(ctx, rr.ReviewID)

	case localReply != nil && localReply.SentAt != nil:
		// delivered locally but gone remotely: it was deleted upstream
		if err := s.repo.DeleteReply(ctx, rr.ReviewID); err != nil {
			sum.DBErrorCount++
			sum.Errors = append(sum.Errors, domain.SyncError{ReviewID: rr.ReviewID, Stage: "reply", Detail: err.Error()})
			s.log.Error().Err(err).Str("review_id", rr.ReviewID).Msg("reply delete failed")
			return
		}
		sum.ReplyChangedCount++
		s.invalidate(ctx, rr.ReviewID)
	}
}

func (s *SyncService) invalidate(ctx context.Context, reviewID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, "review:"+reviewID); err != nil {
		s.log.Debug().Err(err).Str("review_id", reviewID).Msg("cache invalidation failed")
	}
}
