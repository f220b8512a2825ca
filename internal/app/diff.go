package app

import (
	"strings"
	"time"

	"reviewradar/internal/domain"
)

// Field comparison for the sync diff. Remote payloads and local rows
// disagree on representation more often than on substance: absent
// fields arrive as "" or NULL, and timestamps drift in formatting
// ("2024-01-01T00:00:00.000Z" vs "2024-01-01T00:00:00Z") without the
// instant changing. Eq normalizes both sides before comparing so such
// noise does not count as a change.

type fieldKind int

const (
	kindNull fieldKind = iota
	kindStr
	kindInstant
)

type fieldValue struct {
	kind fieldKind
	raw  string
	t    time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func normalize(s *string) fieldValue {
	if s == nil || *s == "" {
		return fieldValue{kind: kindNull}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return fieldValue{kind: kindInstant, raw: *s, t: t}
		}
	}
	return fieldValue{kind: kindStr, raw: *s}
}

// Eq reports whether two optional field values are equivalent. nil and
// "" are the same; parseable timestamps compare as instants; everything
// else compares as the raw string.
func Eq(a, b *string) bool {
	va, vb := normalize(a), normalize(b)
	if va.kind != vb.kind {
		// one side parsed as a timestamp, the other did not
		if va.kind == kindNull || vb.kind == kindNull {
			return false
		}
		return va.raw == vb.raw
	}
	switch va.kind {
	case kindNull:
		return true
	case kindInstant:
		return va.t.Equal(vb.t)
	default:
		return va.raw == vb.raw
	}
}

// sp converts a remote string field to the local optional form;
// empty means absent.
func sp(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NeedsUpsert reports whether the remote review differs from the local
// snapshot. A nil local always needs an insert.
func NeedsUpsert(remote domain.RemoteReview, local *domain.Review) bool {
	if local == nil {
		return true
	}
	if remote.StarRating != local.StarRating {
		return true
	}
	if !Eq(sp(remote.ResourceName), sp(local.ResourceName)) {
		return true
	}
	if !Eq(sp(remote.Comment), local.Comment) {
		return true
	}
	if !Eq(sp(remote.CreateTime), local.CreateTime) {
		return true
	}
	if !Eq(sp(remote.UpdateTime), local.UpdateTime) {
		return true
	}
	if !Eq(sp(remote.ReviewerName), local.ReviewerName) {
		return true
	}
	if !Eq(sp(remote.ReviewerPhotoURL), local.ReviewerPhotoURL) {
		return true
	}
	return false
}

// NeedsRescore reports whether the comment changed in a way that
// invalidates the AI scores: the text differs AND the remote comment
// is non-empty. Star-only edits and comment removals keep old scores.
func NeedsRescore(remote domain.RemoteReview, local *domain.Review) bool {
	if strings.TrimSpace(remote.Comment) == "" {
		return false
	}
	if local == nil {
		return true
	}
	return !Eq(sp(remote.Comment), local.Comment)
}

// ChooseScore keeps a freshly computed score when present, otherwise
// the previous one; nil only when neither exists.
func ChooseScore(fresh, prev *int) *int {
	if fresh != nil {
		return fresh
	}
	return prev
}

// MergeScores applies ChooseScore per dimension.
func MergeScores(fresh, prev domain.Scores) domain.Scores {
	return domain.Scores{
		Taste:    ChooseScore(fresh.Taste, prev.Taste),
		Service:  ChooseScore(fresh.Service, prev.Service),
		Price:    ChooseScore(fresh.Price, prev.Price),
		Location: ChooseScore(fresh.Location, prev.Location),
		Hygiene:  ChooseScore(fresh.Hygiene, prev.Hygiene),
	}
}
