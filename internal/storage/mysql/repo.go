package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reviewradar/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

// Repo implements domain.ReviewRepository and domain.CredentialStore
// over plain database/sql.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertReview(ctx context.Context, rv domain.Review) error {
	_, err := r.db.ExecContext(ctx, upsertReviewSQL,
		rv.ReviewID,
		rv.ResourceName,
		rv.LocationID,
		rv.StarRating,
		valStr(rv.Comment),
		valStr(rv.CreateTime),
		valStr(rv.UpdateTime),
		valStr(rv.ReviewerName),
		valStr(rv.ReviewerPhotoURL),
		valInt(rv.Scores.Taste),
		valInt(rv.Scores.Service),
		valInt(rv.Scores.Price),
		valInt(rv.Scores.Location),
		valInt(rv.Scores.Hygiene),
	)
	return err
}

func (r *Repo) UpsertReply(ctx context.Context, rp domain.Reply) error {
	_, err := r.db.ExecContext(ctx, upsertReplySQL,
		rp.ReviewID,
		rp.Comment,
		valStr(rp.UpdateTime),
		valStr(rp.SentAt),
	)
	return err
}

func (r *Repo) DeleteReply(ctx context.Context, reviewID string) error {
	_, err := r.db.ExecContext(ctx, deleteReplySQL, reviewID)
	return err
}

func scanReview(scan func(dest ...any) error) (domain.Review, error) {
	var rv domain.Review
	var comment, createTime, updateTime, reviewerName, photoURL sql.NullString
	var taste, service, price, location, hygiene sql.NullInt64
	err := scan(
		&rv.ReviewID, &rv.ResourceName, &rv.LocationID, &rv.StarRating, &comment,
		&createTime, &updateTime, &reviewerName, &photoURL,
		&taste, &service, &price, &location, &hygiene,
	)
	if err != nil {
		return domain.Review{}, err
	}
	rv.Comment = strPtr(comment)
	rv.CreateTime = strPtr(createTime)
	rv.UpdateTime = strPtr(updateTime)
	rv.ReviewerName = strPtr(reviewerName)
	rv.ReviewerPhotoURL = strPtr(photoURL)
	rv.Scores = domain.Scores{
		Taste:    intPtr(taste),
		Service:  intPtr(service),
		Price:    intPtr(price),
		Location: intPtr(location),
		Hygiene:  intPtr(hygiene),
	}
	return rv, nil
}

func (r *Repo) LoadReviews(ctx context.Context) (map[string]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, loadReviewsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[rv.ReviewID] = rv
	}
	return out, rows.Err()
}

func (r *Repo) LoadReplies(ctx context.Context) (map[string]domain.Reply, error) {
	rows, err := r.db.QueryContext(ctx, loadRepliesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]domain.Reply{}
	for rows.Next() {
		var rp domain.Reply
		var updateTime, sentAt sql.NullString
		if err := rows.Scan(&rp.ReviewID, &rp.Comment, &updateTime, &sentAt); err != nil {
			return nil, err
		}
		rp.UpdateTime = strPtr(updateTime)
		rp.SentAt = strPtr(sentAt)
		out[rp.ReviewID] = rp
	}
	return out, rows.Err()
}

func scanReviewWithReply(scan func(dest ...any) error) (domain.ReviewWithReply, error) {
	var out domain.ReviewWithReply
	var comment, createTime, updateTime, reviewerName, photoURL sql.NullString
	var taste, service, price, location, hygiene sql.NullInt64
	var rpComment, rpUpdateTime, rpSentAt sql.NullString

	err := scan(
		&out.ReviewID, &out.ResourceName, &out.LocationID, &out.StarRating, &comment,
		&createTime, &updateTime, &reviewerName, &photoURL,
		&taste, &service, &price, &location, &hygiene,
		&rpComment, &rpUpdateTime, &rpSentAt,
	)
	if err != nil {
		return domain.ReviewWithReply{}, err
	}
	out.Comment = strPtr(comment)
	out.CreateTime = strPtr(createTime)
	out.UpdateTime = strPtr(updateTime)
	out.ReviewerName = strPtr(reviewerName)
	out.ReviewerPhotoURL = strPtr(photoURL)
	out.Scores = domain.Scores{
		Taste:    intPtr(taste),
		Service:  intPtr(service),
		Price:    intPtr(price),
		Location: intPtr(location),
		Hygiene:  intPtr(hygiene),
	}
	if rpComment.Valid {
		out.Reply = &domain.Reply{
			ReviewID:   out.ReviewID,
			Comment:    rpComment.String,
			UpdateTime: strPtr(rpUpdateTime),
			SentAt:     strPtr(rpSentAt),
		}
	}
	return out, nil
}

func (r *Repo) GetReview(ctx context.Context, reviewID string) (domain.ReviewWithReply, error) {
	row := r.db.QueryRowContext(ctx, getReviewSQL, reviewID)
	out, err := scanReviewWithReply(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReviewWithReply{}, domain.ErrNotFound
	}
	return out, err
}

func (r *Repo) ListReviews(ctx context.Context, q domain.ReviewsQuery) (domain.ReviewsPage, error) {
	query := listReviewsSQL
	countQuery := countReviewsSQL
	if q.Unanswered {
		query += listUnansweredFilter
		countQuery = countUnansweredSQL
	}
	query += listReviewsOrder

	rows, err := r.db.QueryContext(ctx, query, q.Limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	page := domain.ReviewsPage{Items: []domain.ReviewWithReply{}}
	for rows.Next() {
		item, err := scanReviewWithReply(rows.Scan)
		if err != nil {
			return domain.ReviewsPage{}, err
		}
		page.Items = append(page.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, err
	}

	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&page.Total); err != nil {
		return domain.ReviewsPage{}, err
	}
	return page, nil
}

func (r *Repo) ListUnscored(ctx context.Context, limit int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, listUnscoredSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) LatestCredential(ctx context.Context) (domain.Credential, error) {
	row := r.db.QueryRowContext(ctx, latestCredentialSQL)

	var c domain.Credential
	var accessToken sql.NullString
	var expiresAt sql.NullTime
	err := row.Scan(&c.ID, &accessToken, &c.RefreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Credential{}, domain.ErrNoCredential
	}
	if err != nil {
		return domain.Credential{}, err
	}
	c.AccessToken = strPtr(accessToken)
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	return c, nil
}

func (r *Repo) UpdateCredential(ctx context.Context, id int64, accessToken string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, updateCredentialSQL, accessToken, expiresAt, id)
	return err
}
