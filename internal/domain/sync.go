package domain

import "time"

// SyncSummary is the transient result of one sync run. It is never
// persisted; per-item failures are collected in Errors while fatal
// setup failures abort the run instead.
type SyncSummary struct {
	RunID             string      `json:"run_id"`
	Message           string      `json:"message"`
	TotalReviews      int         `json:"total_reviews"`
	ChangedCount      int         `json:"changed_count"`
	ReplyChangedCount int         `json:"reply_changed_count"`
	AIErrorCount      int         `json:"ai_error_count"`
	DBErrorCount      int         `json:"db_error_count"`
	Timing            SyncTiming  `json:"timing"`
	Errors            []SyncError `json:"errors"`
}

type SyncTiming struct {
	Token   time.Duration `json:"token"`
	Fetch   time.Duration `json:"fetch"`
	Load    time.Duration `json:"load"`
	Process time.Duration `json:"process"`
	Total   time.Duration `json:"total"`
}

// SyncError records a per-review recoverable failure.
type SyncError struct {
	ReviewID string `json:"review_id"`
	Stage    string `json:"stage"` // score|persist|reply
	Detail   string `json:"detail"`
}

// ReviewChangedEvent is published after a review row was upserted,
// so downstream consumers can react without polling.
type ReviewChangedEvent struct {
	RunID      string    `json:"run_id"`
	ReviewID   string    `json:"review_id"`
	LocationID string    `json:"location_id"`
	Rescored   bool      `json:"rescored"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Credential is one stored OAuth credential record; the most recently
// updated row is the active one.
type Credential struct {
	ID           int64
	AccessToken  *string
	RefreshToken string
	ExpiresAt    *time.Time
}

// Token is a usable access/refresh token pair.
type Token struct {
	AccessToken  string
	RefreshToken string
}
