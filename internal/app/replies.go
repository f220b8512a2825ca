package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reviewradar/internal/domain"
)

// ReplyService manages business replies: drafting suggestions locally
// and pushing final replies upstream.
type ReplyService struct {
	repo    domain.ReviewRepository
	source  domain.ReviewSource
	drafter domain.ReplyDrafter
	cache   domain.Cache
}

func NewReplyService(repo domain.ReviewRepository, source domain.ReviewSource, drafter domain.ReplyDrafter, cache domain.Cache) *ReplyService {
	return &ReplyService{repo: repo, source: source, drafter: drafter, cache: cache}
}

// Draft generates a suggested reply and stores it as a local draft
// (sent_at NULL). Drafts never leave the database until Send.
func (s *ReplyService) Draft(ctx context.Context, reviewID string) (domain.Reply, error) {
	rv, err := s.repo.GetReview(ctx, reviewID)
	if err != nil {
		return domain.Reply{}, err
	}
	text, err := s.drafter.Draft(ctx, rv.Review)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("draft reply: %w", err)
	}
	rp := domain.Reply{ReviewID: reviewID, Comment: text}
	if err := s.repo.UpsertReply(ctx, rp); err != nil {
		return domain.Reply{}, err
	}
	s.invalidate(ctx, reviewID)
	return rp, nil
}

// SaveDraft stores user-written reply text as a local draft.
func (s *ReplyService) SaveDraft(ctx context.Context, rp domain.Reply) error {
	if _, err := s.repo.GetReview(ctx, rp.ReviewID); err != nil {
		return err
	}
	rp.UpdateTime = nil
	rp.SentAt = nil
	if err := s.repo.UpsertReply(ctx, rp); err != nil {
		return err
	}
	s.invalidate(ctx, rp.ReviewID)
	return nil
}

// Send delivers a reply to the remote platform and records it as
// delivered. An empty comment falls back to the stored draft.
func (s *ReplyService) Send(ctx context.Context, reviewID, comment string) (domain.Reply, error) {
	rv, err := s.repo.GetReview(ctx, reviewID)
	if err != nil {
		return domain.Reply{}, err
	}
	if strings.TrimSpace(comment) == "" {
		if rv.Reply == nil || strings.TrimSpace(rv.Reply.Comment) == "" {
			return domain.Reply{}, fmt.Errorf("no reply text: %w", domain.ErrNotFound)
		}
		comment = rv.Reply.Comment
	}

	if err := s.source.SendReply(ctx, rv.ResourceName, comment); err != nil {
		return domain.Reply{}, fmt.Errorf("send reply: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	rp := domain.Reply{ReviewID: reviewID, Comment: comment, UpdateTime: &now, SentAt: &now}
	if err := s.repo.UpsertReply(ctx, rp); err != nil {
		return domain.Reply{}, err
	}
	s.invalidate(ctx, reviewID)
	return rp, nil
}

func (s *ReplyService) invalidate(ctx context.Context, reviewID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, "review:"+reviewID)
}
