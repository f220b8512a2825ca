package app

import (
	"context"
	"fmt"

	"reviewradar/internal/domain"
)

// QueryService serves the read endpoints with a cache-aside layer in
// front of the repository.
type QueryService struct {
	repo   domain.ReviewRepository
	cache  domain.Cache
	ttlSec int
}

func NewQueryService(repo domain.ReviewRepository, cache domain.Cache, ttlSec int) *QueryService {
	if ttlSec <= 0 {
		ttlSec = 300
	}
	return &QueryService{repo: repo, cache: cache, ttlSec: ttlSec}
}

func (s *QueryService) ListReviews(ctx context.Context, q domain.ReviewsQuery) (domain.ReviewsPage, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	key := fmt.Sprintf("reviews:%d:%t", q.Limit, q.Unanswered)

	var page domain.ReviewsPage
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &page); err == nil && ok {
			return page, nil
		}
	}

	page, err := s.repo.ListReviews(ctx, q)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, page, s.ttlSec)
	}
	return page, nil
}

func (s *QueryService) GetReview(ctx context.Context, reviewID string) (domain.ReviewWithReply, error) {
	key := "review:" + reviewID

	var out domain.ReviewWithReply
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &out); err == nil && ok {
			return out, nil
		}
	}

	out, err := s.repo.GetReview(ctx, reviewID)
	if err != nil {
		return domain.ReviewWithReply{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, s.ttlSec)
	}
	return out, nil
}
