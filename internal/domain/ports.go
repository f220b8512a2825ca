package domain

import (
	"context"
	"time"
)

type ReviewRepository interface {
	// Sync write paths
	LoadReviews(ctx context.Context) (map[string]Review, error)
	LoadReplies(ctx context.Context) (map[string]Reply, error)
	UpsertReview(ctx context.Context, r Review) error
	UpsertReply(ctx context.Context, rp Reply) error
	DeleteReply(ctx context.Context, reviewID string) error

	// Read paths
	GetReview(ctx context.Context, reviewID string) (ReviewWithReply, error)
	ListReviews(ctx context.Context, q ReviewsQuery) (ReviewsPage, error)
	ListUnscored(ctx context.Context, limit int) ([]Review, error)
}

type CredentialStore interface {
	LatestCredential(ctx context.Context) (Credential, error)
	UpdateCredential(ctx context.Context, id int64, accessToken string, expiresAt time.Time) error
}

// TokenProvider hands out a valid access token, refreshing through the
// identity provider when the stored one is absent or about to expire.
type TokenProvider interface {
	Token(ctx context.Context) (Token, error)
	// ForceRefresh bypasses the expiry check; used after a 401 mid-pagination.
	ForceRefresh(ctx context.Context) (Token, error)
}

// ReviewSource is the remote review platform.
type ReviewSource interface {
	// FetchAllReviews discovers the account/location and exhausts
	// pagination, materializing the full review set.
	FetchAllReviews(ctx context.Context) ([]RemoteReview, error)
	SendReply(ctx context.Context, resourceName, comment string) error
}

// Scorer rates a review comment across the five dimensions.
type Scorer interface {
	Score(ctx context.Context, comment string) (Scores, error)
}

// ReplyDrafter produces a suggested reply text for a review.
type ReplyDrafter interface {
	Draft(ctx context.Context, r Review) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Locker is a best-effort run-level mutex (idempotent upserts make a
// lost lock safe, so contention only avoids redundant work).
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Notifier publishes review-changed events after reconciliation.
type Notifier interface {
	ReviewChanged(ctx context.Context, ev ReviewChangedEvent) error
}
