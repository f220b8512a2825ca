package mysql

const upsertReviewSQL = `
INSERT INTO reviews
  (review_id, resource_name, location_id, star_rating, comment, create_time, update_time,
   reviewer_display_name, reviewer_profile_photo_url,
   taste_score, service_score, price_score, location_score, hygiene_score)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  resource_name              = VALUES(resource_name),
  location_id                = VALUES(location_id),
  star_rating                = VALUES(star_rating),
  comment                    = VALUES(comment),
  create_time                = VALUES(create_time),
  update_time                = VALUES(update_time),
  reviewer_display_name      = VALUES(reviewer_display_name),
  reviewer_profile_photo_url = VALUES(reviewer_profile_photo_url),
  taste_score                = VALUES(taste_score),
  service_score              = VALUES(service_score),
  price_score                = VALUES(price_score),
  location_score             = VALUES(location_score),
  hygiene_score              = VALUES(hygiene_score),
  updated_at                 = CURRENT_TIMESTAMP
`

const upsertReplySQL = `
INSERT INTO review_replies (review_id, comment, update_time, sent_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  comment     = VALUES(comment),
  update_time = VALUES(update_time),
  sent_at     = VALUES(sent_at),
  updated_at  = CURRENT_TIMESTAMP
`

const deleteReplySQL = `DELETE FROM review_replies WHERE review_id = ?`

const reviewColumns = `
  r.review_id, r.resource_name, r.location_id, r.star_rating, r.comment,
  r.create_time, r.update_time, r.reviewer_display_name, r.reviewer_profile_photo_url,
  r.taste_score, r.service_score, r.price_score, r.location_score, r.hygiene_score`

const loadReviewsSQL = `SELECT` + reviewColumns + ` FROM reviews r`

const loadRepliesSQL = `
SELECT review_id, comment, update_time, sent_at FROM review_replies`

// getReviewSQL joins the review with its reply, if any.
const getReviewSQL = `
SELECT` + reviewColumns + `,
  rr.comment, rr.update_time, rr.sent_at
FROM reviews r
LEFT JOIN review_replies rr ON rr.review_id = r.review_id
WHERE r.review_id = ?
`

const listReviewsSQL = `
SELECT` + reviewColumns + `,
  rr.comment, rr.update_time, rr.sent_at
FROM reviews r
LEFT JOIN review_replies rr ON rr.review_id = r.review_id
`

// only reviews without a delivered reply (drafts do not count as answered)
const listUnansweredFilter = `WHERE rr.sent_at IS NULL
`

const listReviewsOrder = `ORDER BY r.update_time DESC, r.review_id
LIMIT ?
`

const countReviewsSQL = `SELECT COUNT(*) FROM reviews`

const countUnansweredSQL = `
SELECT COUNT(*)
FROM reviews r
LEFT JOIN review_replies rr ON rr.review_id = r.review_id
WHERE rr.sent_at IS NULL
`

// Commented reviews that have never been scored.
const listUnscoredSQL = `
SELECT` + reviewColumns + `
FROM reviews r
WHERE r.comment IS NOT NULL AND r.comment <> ''
  AND r.taste_score IS NULL AND r.service_score IS NULL AND r.price_score IS NULL
  AND r.location_score IS NULL AND r.hygiene_score IS NULL
ORDER BY r.review_id
LIMIT ?
`

const latestCredentialSQL = `
SELECT id, access_token, refresh_token, expires_at
FROM google_tokens
ORDER BY updated_at DESC
LIMIT 1
`

const updateCredentialSQL = `
UPDATE google_tokens
SET access_token = ?, expires_at = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`
