package app

import (
	"database/sql"
	"testing"

	"release_notification_bot/internal/domain/release"
	"release_notification_bot/internal/domain/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func vol(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: true}
}

func TestSelectCandidate(t *testing.T) {
	t.Run("empty input selects nothing", func(t *testing.T) {
		assert.Nil(t, SelectCandidate(nil, &tracking.Entry{}, ""))
	})

	t.Run("highest volume wins", func(t *testing.T) {
		got := SelectCandidate([]release.Candidate{
			{ISBN: "a", VolumeNumber: vol(12)},
			{ISBN: "b", VolumeNumber: vol(14)},
			{ISBN: "c", VolumeNumber: vol(13)},
		}, &tracking.Entry{}, "")
		require.NotNil(t, got)
		assert.Equal(t, "b", got.ISBN)
	})

	t.Run("volumes beat unnumbered results", func(t *testing.T) {
		got := SelectCandidate([]release.Candidate{
			{ISBN: "unnumbered"},
			{ISBN: "numbered", VolumeNumber: vol(2)},
		}, &tracking.Entry{}, "")
		require.NotNil(t, got)
		assert.Equal(t, "numbered", got.ISBN)
	})

	t.Run("falls back to the first result", func(t *testing.T) {
		got := SelectCandidate([]release.Candidate{{ISBN: "first"}, {ISBN: "second"}}, &tracking.Entry{}, "")
		require.NotNil(t, got)
		assert.Equal(t, "first", got.ISBN)
	})

	t.Run("owned volumes are dropped", func(t *testing.T) {
		entry := &tracking.Entry{LastPurchasedVolume: 14}
		assert.Nil(t, SelectCandidate([]release.Candidate{
			{ISBN: "a", VolumeNumber: vol(13)},
			{ISBN: "b", VolumeNumber: vol(14)},
			{ISBN: "c"},
		}, entry, ""))

		got := SelectCandidate([]release.Candidate{{ISBN: "d", VolumeNumber: vol(15)}}, entry, "")
		require.NotNil(t, got)
		assert.Equal(t, "d", got.ISBN)
	})

	t.Run("author filter is whitespace insensitive and two-way", func(t *testing.T) {
		candidates := []release.Candidate{
			{ISBN: "other", AuthorText: "別の 作者", VolumeNumber: vol(99)},
			{ISBN: "suffix", AuthorText: "芥見 下々／著", VolumeNumber: vol(26)},
		}
		got := SelectCandidate(candidates, &tracking.Entry{}, CompareKey("芥見　下々"))
		require.NotNil(t, got)
		assert.Equal(t, "suffix", got.ISBN)

		got = SelectCandidate([]release.Candidate{{ISBN: "short", AuthorText: "芥見"}}, &tracking.Entry{}, CompareKey("芥見下々"))
		require.NotNil(t, got)
		assert.Equal(t, "short", got.ISBN)

		assert.Nil(t, SelectCandidate([]release.Candidate{{ISBN: "anon"}}, &tracking.Entry{}, "芥見下々"))
	})
}

func TestSelectCandidateNeverReturnsOwnedVolumes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		purchased := rapid.IntRange(0, 40).Draw(t, "purchased")
		candidates := rapid.SliceOf(rapid.Custom(func(t *rapid.T) release.Candidate {
			c := release.Candidate{ISBN: rapid.StringMatching(`97840[0-9]{8}`).Draw(t, "isbn")}
			if rapid.Bool().Draw(t, "numbered") {
				c.VolumeNumber = vol(int64(rapid.IntRange(0, 50).Draw(t, "volume")))
			}
			return c
		})).Draw(t, "candidates")

		got := SelectCandidate(candidates, &tracking.Entry{LastPurchasedVolume: purchased}, "")
		if got == nil || purchased == 0 {
			return
		}
		if !got.VolumeNumber.Valid || got.VolumeNumber.Int64 <= int64(purchased) {
			t.Fatalf("selected volume %v with %d already purchased", got.VolumeNumber, purchased)
		}
	})
}
