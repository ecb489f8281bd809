// internal/app/candidate_selector.go
package app

import (
	"strings"

	"release_notification_bot/internal/domain/release"
	"release_notification_bot/internal/domain/tracking"
)

// SelectCandidate picks the single best candidate for an entry, or nil when
// nothing survives the filters. Nil is not an error: nothing new was found.
// authorKey is the entry's normalized author (see CompareKey); "" disables the
// author filter.
//
// Already-owned volumes are dropped, then candidates by other authors. The highest
// volume wins; when no candidate has a volume the provider's first result is trusted.
func SelectCandidate(candidates []release.Candidate, entry *tracking.Entry, authorKey string) *release.Candidate {
	if entry == nil {
		return nil
	}

	var best *release.Candidate
	var firstRemaining *release.Candidate
	for i := range candidates {
		c := &candidates[i]

		if entry.LastPurchasedVolume > 0 {
			if !c.VolumeNumber.Valid || c.VolumeNumber.Int64 <= int64(entry.LastPurchasedVolume) {
				continue
			}
		}
		if authorKey != "" && !authorsMatch(authorKey, CompareKey(c.AuthorText)) {
			continue
		}

		if firstRemaining == nil {
			firstRemaining = c
		}
		if c.VolumeNumber.Valid && (best == nil || c.VolumeNumber.Int64 > best.VolumeNumber.Int64) {
			best = c
		}
	}

	if best != nil {
		return best
	}
	return firstRemaining
}

// authorsMatch is a two-way substring test; providers differ in pen-name form
// and in suffixes such as "／著".
func authorsMatch(entryKey, candidateKey string) bool {
	if candidateKey == "" {
		return false
	}
	return strings.Contains(candidateKey, entryKey) || strings.Contains(entryKey, candidateKey)
}
