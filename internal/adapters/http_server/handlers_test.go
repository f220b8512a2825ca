package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	httpserver "reviewradar/internal/adapters/http_server"
	"reviewradar/internal/app"
	"reviewradar/internal/domain"
)

type stubRepo struct {
	reviews map[string]domain.ReviewWithReply
	replies map[string]domain.Reply
}

func newStubRepo() *stubRepo {
	return &stubRepo{reviews: map[string]domain.ReviewWithReply{}, replies: map[string]domain.Reply{}}
}

func (s *stubRepo) LoadReviews(ctx context.Context) (map[string]domain.Review, error) {
	out := map[string]domain.Review{}
	for k, v := range s.reviews {
		out[k] = v.Review
	}
	return out, nil
}
func (s *stubRepo) LoadReplies(ctx context.Context) (map[string]domain.Reply, error) {
	return s.replies, nil
}
func (s *stubRepo) UpsertReview(ctx context.Context, r domain.Review) error {
	s.reviews[r.ReviewID] = domain.ReviewWithReply{Review: r}
	return nil
}
func (s *stubRepo) UpsertReply(ctx context.Context, rp domain.Reply) error {
	s.replies[rp.ReviewID] = rp
	return nil
}
func (s *stubRepo) DeleteReply(ctx context.Context, reviewID string) error {
	delete(s.replies, reviewID)
	return nil
}
func (s *stubRepo) GetReview(ctx context.Context, reviewID string) (domain.ReviewWithReply, error) {
	rv, ok := s.reviews[reviewID]
	if !ok {
		return domain.ReviewWithReply{}, domain.ErrNotFound
	}
	if rp, ok := s.replies[reviewID]; ok {
		rv.Reply = &rp
	}
	return rv, nil
}
func (s *stubRepo) ListReviews(ctx context.Context, q domain.ReviewsQuery) (domain.ReviewsPage, error) {
	items := []domain.ReviewWithReply{}
	for _, rv := range s.reviews {
		items = append(items, rv)
	}
	return domain.ReviewsPage{Items: items, Total: len(items)}, nil
}
func (s *stubRepo) ListUnscored(ctx context.Context, limit int) ([]domain.Review, error) {
	return nil, nil
}

type stubSource struct {
	reviews []domain.RemoteReview
	err     error
	sent    []string
}

func (s *stubSource) FetchAllReviews(ctx context.Context) ([]domain.RemoteReview, error) {
	return s.reviews, s.err
}
func (s *stubSource) SendReply(ctx context.Context, resourceName, comment string) error {
	s.sent = append(s.sent, comment)
	return nil
}

type stubTokens struct{}

func (stubTokens) Token(ctx context.Context) (domain.Token, error) {
	return domain.Token{AccessToken: "t"}, nil
}
func (stubTokens) ForceRefresh(ctx context.Context) (domain.Token, error) {
	return domain.Token{AccessToken: "t"}, nil
}

type stubScorer struct{}

func (stubScorer) Score(ctx context.Context, comment string) (domain.Scores, error) {
	n := 3
	return domain.Scores{Taste: &n}, nil
}

type stubDrafter struct{ text string }

func (d stubDrafter) Draft(ctx context.Context, r domain.Review) (string, error) {
	return d.text, nil
}

type stubLocker struct{ held bool }

func (l *stubLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return !l.held, nil
}
func (l *stubLocker) Unlock(ctx context.Context, key string) error { return nil }

func newTestServer(repo *stubRepo, src *stubSource, lk *stubLocker) *httptest.Server {
	var locker domain.Locker
	if lk != nil {
		locker = lk
	}
	syncSvc := app.NewSyncService(src, repo, stubTokens{}, stubScorer{}, nil, locker, nil, zerolog.Nop())
	h := &httpserver.Handlers{
		Q:       app.NewQueryService(repo, nil, 60),
		Sync:    syncSvc,
		Replies: app.NewReplyService(repo, src, stubDrafter{text: "suggested reply"}, nil),
	}
	srv := httpserver.New()
	srv.MountHandlers(h)
	return httptest.NewServer(srv.Mux())
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(newStubRepo(), &stubSource{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestListReviews_ETagRoundTrip(t *testing.T) {
	repo := newStubRepo()
	repo.reviews["rv-1"] = domain.ReviewWithReply{Review: domain.Review{ReviewID: "rv-1", StarRating: 5}}
	ts := newTestServer(repo, &stubSource{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/reviews")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	var page domain.ReviewsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("total = %d", page.Total)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/reviews", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional get: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp2.StatusCode)
	}
}

func TestListReviews_InvalidLimit(t *testing.T) {
	ts := newTestServer(newStubRepo(), &stubSource{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/reviews?limit=9999")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type = %s", ct)
	}
}

func TestGetReview_NotFound(t *testing.T) {
	ts := newTestServer(newStubRepo(), &stubSource{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/reviews/ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRunSync_ReturnsSummary(t *testing.T) {
	src := &stubSource{reviews: []domain.RemoteReview{{
		ReviewID: "rv-1", ResourceName: "accounts/1/locations/2/reviews/rv-1",
		LocationID: "accounts/1/locations/2", StarRating: 5, Comment: "nice",
	}}}
	ts := newTestServer(newStubRepo(), src, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var sum domain.SyncSummary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.TotalReviews != 1 || sum.ChangedCount != 1 || sum.RunID == "" {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestRunSync_Conflict(t *testing.T) {
	ts := newTestServer(newStubRepo(), &stubSource{}, &stubLocker{held: true})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestReply_DraftAndSend(t *testing.T) {
	repo := newStubRepo()
	repo.reviews["rv-1"] = domain.ReviewWithReply{Review: domain.Review{
		ReviewID: "rv-1", ResourceName: "accounts/1/locations/2/reviews/rv-1",
	}}
	src := &stubSource{}
	ts := newTestServer(repo, src, nil)
	defer ts.Close()

	// empty body: generate an AI draft
	resp, err := http.Post(ts.URL+"/v1/reviews/rv-1/reply", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var rp domain.Reply
	_ = json.NewDecoder(resp.Body).Decode(&rp)
	resp.Body.Close()
	if resp.StatusCode != 200 || rp.Comment != "suggested reply" || rp.SentAt != nil {
		t.Fatalf("unexpected draft response: %d %+v", resp.StatusCode, rp)
	}

	// send the draft upstream
	resp, err = http.Post(ts.URL+"/v1/reviews/rv-1/reply", "application/json",
		strings.NewReader(`{"send":true}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	_ = json.NewDecoder(resp.Body).Decode(&rp)
	resp.Body.Close()
	if resp.StatusCode != 200 || rp.SentAt == nil {
		t.Fatalf("unexpected send response: %d %+v", resp.StatusCode, rp)
	}
	if len(src.sent) != 1 || src.sent[0] != "suggested reply" {
		t.Fatalf("expected the draft delivered upstream, got %v", src.sent)
	}
}
