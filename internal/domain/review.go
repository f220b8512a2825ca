package domain

// Review is the locally persisted snapshot of one remote review,
// keyed by its stable ReviewID. Timestamps are kept as the RFC3339
// strings the remote API hands out; comparisons parse them (see app.Eq).
type Review struct {
	ReviewID         string  `json:"review_id"`
	ResourceName     string  `json:"resource_name"`
	LocationID       string  `json:"location_id"`
	StarRating       int     `json:"star_rating"` // 1..5, mapped from ONE..FIVE
	Comment          *string `json:"comment"`
	CreateTime       *string `json:"create_time"`
	UpdateTime       *string `json:"update_time"`
	ReviewerName     *string `json:"reviewer_name"`
	ReviewerPhotoURL *string `json:"reviewer_photo_url"`
	Scores           Scores  `json:"scores"`
}

// Scores holds the five AI-derived dimensions. Each is in [0,5]
// where 0 means "not mentioned"; nil means "never scored".
type Scores struct {
	Taste    *int `json:"taste"`
	Service  *int `json:"service"`
	Price    *int `json:"price"`
	Location *int `json:"location"`
	Hygiene  *int `json:"hygiene"`
}

// Reply is the business's answer to a review; at most one row per
// review. SentAt == nil marks a local draft that has not been pushed
// upstream yet.
type Reply struct {
	ReviewID   string  `json:"review_id"`
	Comment    string  `json:"comment"`
	UpdateTime *string `json:"update_time"`
	SentAt     *string `json:"sent_at"`
}

// RemoteReview is one review as listed by the remote platform.
type RemoteReview struct {
	ReviewID         string
	ResourceName     string
	LocationID       string
	StarRating       int
	Comment          string
	CreateTime       string
	UpdateTime       string
	ReviewerName     string
	ReviewerPhotoURL string
	Reply            *RemoteReply
}

type RemoteReply struct {
	Comment    string
	UpdateTime string
}

// Read models & queries

type ReviewWithReply struct {
	Review
	Reply *Reply `json:"reply"`
}

type ReviewsQuery struct {
	Limit      int
	Unanswered bool // only reviews without a delivered reply
}

type ReviewsPage struct {
	Items []ReviewWithReply `json:"items"`
	Total int               `json:"total"`
}
