// internal/app/candidate_filter.go
package app

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"release_notification_bot/internal/domain/catalog"
	"release_notification_bot/internal/domain/release"
)

// salesDateLayouts are the complete-date forms the provider uses. Month-only and
// "上旬/中旬/下旬" style dates are deliberately absent: they stay unknown.
var salesDateLayouts = []string{
	"2006年01月02日",
	"2006年1月2日",
	"2006-01-02",
	"2006/01/02",
}

var ErrUnparsableSalesDate = fmt.Errorf("unparsable sales date")

// CandidateFilter turns raw search results into structured candidates.
type CandidateFilter struct {
	exclusionTokens []string
	volumePatterns  []*regexp.Regexp
	location        *time.Location
}

// NewCandidateFilter compiles the rule set. Sales dates are interpreted in loc.
func NewCandidateFilter(rules release.Rules, loc *time.Location) (*CandidateFilter, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := &CandidateFilter{location: loc}
	for _, token := range rules.ExclusionTokens {
		if token = strings.ToLower(foldWidth(strings.TrimSpace(token))); token != "" {
			f.exclusionTokens = append(f.exclusionTokens, token)
		}
	}
	for _, p := range rules.VolumePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid volume pattern %q: %w", p, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("volume pattern %q has no capture group", p)
		}
		f.volumePatterns = append(f.volumePatterns, re)
	}
	return f, nil
}

// Filter drops special editions and unusable items, keeping the provider's order.
func (f *CandidateFilter) Filter(raw []catalog.RawItem) []release.Candidate {
	candidates := make([]release.Candidate, 0, len(raw))
	for _, item := range raw {
		c, ok := f.toCandidate(item)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

func (f *CandidateFilter) toCandidate(item catalog.RawItem) (release.Candidate, bool) {
	isbn := strings.TrimSpace(item.ISBN)
	title := collapseSpaces(foldWidth(item.Title))
	if isbn == "" || title == "" {
		return release.Candidate{}, false
	}
	if f.IsExcluded(title) {
		return release.Candidate{}, false
	}

	c := release.Candidate{
		ISBN:         isbn,
		TitleText:    title,
		AuthorText:   strings.TrimSpace(item.Author),
		Publisher:    strings.TrimSpace(item.Publisher),
		VolumeNumber: f.ExtractVolume(title),
		ImageRef:     strings.TrimSpace(item.ImageURL),
		DetailRef:    strings.TrimSpace(item.ItemURL),
	}
	if d, err := ParseSalesDate(item.SalesDate, f.location); err == nil {
		c.SalesDate = sql.NullTime{Time: d, Valid: true}
	}
	return c, true
}

// IsExcluded reports whether a title carries a special/limited edition marker.
func (f *CandidateFilter) IsExcluded(title string) bool {
	lower := strings.ToLower(foldWidth(title))
	for _, token := range f.exclusionTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// ExtractVolume tries each volume pattern in order; the first match wins.
func (f *CandidateFilter) ExtractVolume(title string) sql.NullInt64 {
	folded := foldWidth(title)
	for _, re := range f.volumePatterns {
		m := re.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		return sql.NullInt64{Int64: n, Valid: true}
	}
	return sql.NullInt64{}
}

// ParseSalesDate parses a complete provider date. A trailing "頃" ("around") is tolerated.
func ParseSalesDate(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(foldWidth(raw))
	s = strings.TrimSuffix(s, "頃")
	s = strings.TrimSuffix(s, "以降")
	if s == "" {
		return time.Time{}, ErrUnparsableSalesDate
	}
	for _, layout := range salesDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableSalesDate, raw)
}
