package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reviewradar/internal/domain"
)

func TestEq(t *testing.T) {
	s := func(v string) *string { return &v }
	cases := []struct {
		name string
		a, b *string
		want bool
	}{
		{"nil vs nil", nil, nil, true},
		{"nil vs empty", nil, s(""), true},
		{"nil vs value", nil, s("x"), false},
		{"same string", s("hello"), s("hello"), true},
		{"different string", s("a"), s("b"), false},
		{"same instant different format", s("2024-01-01T00:00:00.000Z"), s("2024-01-01T00:00:00Z"), true},
		{"instant with offset", s("2024-01-01T02:00:00+02:00"), s("2024-01-01T00:00:00Z"), true},
		{"different instants", s("2024-01-01T00:00:00Z"), s("2024-01-01T00:00:01Z"), false},
		{"bare datetime layout", s("2024-01-01T00:00:00"), s("2024-01-01 00:00:00"), true},
		{"instant vs plain string", s("2024-01-01T00:00:00Z"), s("yesterday"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Eq(tc.a, tc.b))
			assert.Equal(t, tc.want, Eq(tc.b, tc.a), "Eq must be symmetric")
		})
	}
}

func remoteFixture() domain.RemoteReview {
	return domain.RemoteReview{
		ReviewID:     "rv-1",
		ResourceName: "accounts/1/locations/2/reviews/rv-1",
		LocationID:   "accounts/1/locations/2",
		StarRating:   4,
		Comment:      "solid lunch",
		CreateTime:   "2024-01-01T00:00:00Z",
		UpdateTime:   "2024-01-02T00:00:00Z",
		ReviewerName: "Ana",
	}
}

func localFixture() domain.Review {
	r := remoteFixture()
	return domain.Review{
		ReviewID:     r.ReviewID,
		ResourceName: r.ResourceName,
		LocationID:   r.LocationID,
		StarRating:   r.StarRating,
		Comment:      sp(r.Comment),
		CreateTime:   sp(r.CreateTime),
		UpdateTime:   sp(r.UpdateTime),
		ReviewerName: sp(r.ReviewerName),
	}
}

func TestNeedsUpsert(t *testing.T) {
	local := localFixture()

	assert.True(t, NeedsUpsert(remoteFixture(), nil), "missing local row")
	assert.False(t, NeedsUpsert(remoteFixture(), &local), "identical snapshot")

	star := remoteFixture()
	star.StarRating = 5
	assert.True(t, NeedsUpsert(star, &local))

	comment := remoteFixture()
	comment.Comment = "edited"
	assert.True(t, NeedsUpsert(comment, &local))

	// timestamp formatting drift is not a change
	drift := remoteFixture()
	drift.UpdateTime = "2024-01-02T00:00:00.000Z"
	assert.False(t, NeedsUpsert(drift, &local))
}

func TestNeedsRescore(t *testing.T) {
	local := localFixture()

	same := remoteFixture()
	assert.False(t, NeedsRescore(same, &local), "unchanged comment")

	edited := remoteFixture()
	edited.Comment = "actually amazing"
	assert.True(t, NeedsRescore(edited, &local))

	// comment removed: no rescore, old scores stay
	removed := remoteFixture()
	removed.Comment = ""
	assert.False(t, NeedsRescore(removed, &local))

	blank := remoteFixture()
	blank.Comment = "   "
	assert.False(t, NeedsRescore(blank, &local))

	assert.True(t, NeedsRescore(remoteFixture(), nil), "new review with comment")

	empty := remoteFixture()
	empty.Comment = ""
	assert.False(t, NeedsRescore(empty, nil), "new review without comment")
}

func TestMergeScores(t *testing.T) {
	n := func(v int) *int { return &v }

	fresh := domain.Scores{Taste: n(4), Service: n(0)}
	prev := domain.Scores{Taste: n(2), Service: n(3), Price: n(5)}

	got := MergeScores(fresh, prev)
	assert.Equal(t, 4, *got.Taste, "fresh wins")
	assert.Equal(t, 0, *got.Service, "fresh zero still wins over previous")
	assert.Equal(t, 5, *got.Price, "previous fills gaps")
	assert.Nil(t, got.Location, "nil when neither exists")
}
