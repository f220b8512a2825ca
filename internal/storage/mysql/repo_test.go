package mysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewradar/internal/domain"
)

func pstr(s string) *string { return &s }
func pint(i int) *int       { return &i }

var reviewCols = []string{
	"review_id", "resource_name", "location_id", "star_rating", "comment",
	"create_time", "update_time", "reviewer_display_name", "reviewer_profile_photo_url",
	"taste_score", "service_score", "price_score", "location_score", "hygiene_score",
}

func TestUpsertReview(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WithArgs("rv-1", "accounts/1/locations/2/reviews/rv-1", "accounts/1/locations/2", 5,
			"great", "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", "Ana", nil,
			4, 3, nil, nil, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := New(db)
	err = repo.UpsertReview(context.Background(), domain.Review{
		ReviewID:     "rv-1",
		ResourceName: "accounts/1/locations/2/reviews/rv-1",
		LocationID:   "accounts/1/locations/2",
		StarRating:   5,
		Comment:      pstr("great"),
		CreateTime:   pstr("2024-01-01T00:00:00Z"),
		UpdateTime:   pstr("2024-01-02T00:00:00Z"),
		ReviewerName: pstr("Ana"),
		Scores:       domain.Scores{Taste: pint(4), Service: pint(3), Hygiene: pint(5)},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadReviews(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(reviewCols).
		AddRow("rv-1", "res/1", "loc", 5, "great", "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", "Ana", nil, 4, nil, nil, nil, nil).
		AddRow("rv-2", "res/2", "loc", 2, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reviews")).WillReturnRows(rows)

	got, err := New(db).LoadReviews(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "great", *got["rv-1"].Comment)
	assert.Equal(t, 4, *got["rv-1"].Scores.Taste)
	assert.Nil(t, got["rv-1"].Scores.Service)

	assert.Nil(t, got["rv-2"].Comment, "NULL comment maps to nil")
	assert.Nil(t, got["rv-2"].CreateTime)
}

func TestLoadReplies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"review_id", "comment", "update_time", "sent_at"}).
		AddRow("rv-1", "thanks", "2024-01-03T00:00:00Z", "2024-01-03T00:00:00Z").
		AddRow("rv-2", "draft", nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM review_replies")).WillReturnRows(rows)

	got, err := New(db).LoadReplies(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotNil(t, got["rv-1"].SentAt)
	assert.Nil(t, got["rv-2"].SentAt, "draft rows keep sent_at nil")
}

func TestGetReview_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN review_replies")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(append(reviewCols, "comment", "update_time", "sent_at")))

	_, err = New(db).GetReview(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetReview_WithReply(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(append(reviewCols, "rr_comment", "rr_update_time", "rr_sent_at")).
		AddRow("rv-1", "res/1", "loc", 5, "great", nil, nil, "Ana", nil, 4, nil, nil, nil, nil,
			"thank you", "2024-01-03T00:00:00Z", "2024-01-03T00:00:00Z")

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN review_replies")).
		WithArgs("rv-1").
		WillReturnRows(rows)

	got, err := New(db).GetReview(context.Background(), "rv-1")
	require.NoError(t, err)
	require.NotNil(t, got.Reply)
	assert.Equal(t, "thank you", got.Reply.Comment)
	assert.Equal(t, "rv-1", got.Reply.ReviewID)
}

func TestListReviews_UnansweredFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("WHERE rr.sent_at IS NULL").
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(append(reviewCols, "rr_comment", "rr_update_time", "rr_sent_at")).
			AddRow("rv-1", "res/1", "loc", 1, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	page, err := New(db).ListReviews(context.Background(), domain.ReviewsQuery{Limit: 20, Unanswered: true})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 7, page.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReply(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM review_replies WHERE review_id = ?")).
		WithArgs("rv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, New(db).DeleteReply(context.Background(), "rv-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCredential(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "access_token", "refresh_token", "expires_at"}).
		AddRow(3, "acc", "ref", exp)
	mock.ExpectQuery(regexp.QuoteMeta("FROM google_tokens")).WillReturnRows(rows)

	got, err := New(db).LatestCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, "acc", *got.AccessToken)
	assert.Equal(t, exp, *got.ExpiresAt)
}

func TestLatestCredential_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM google_tokens")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "access_token", "refresh_token", "expires_at"}))

	_, err = New(db).LatestCredential(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoCredential)
}

func TestUpdateCredential(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE google_tokens")).
		WithArgs("fresh", exp, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, New(db).UpdateCredential(context.Background(), 3, "fresh", exp))
	assert.NoError(t, mock.ExpectationsWereMet())
}
