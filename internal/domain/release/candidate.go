// internal/domain/release/candidate.go
package release

import "database/sql"

// Candidate is one filtered search result that may be the next volume of a tracked title.
// Candidates are rebuilt on every pass and never persisted directly.
type Candidate struct {
	ISBN         string
	TitleText    string
	AuthorText   string
	Publisher    string
	VolumeNumber sql.NullInt64 // Unknown when no volume pattern matched
	SalesDate    sql.NullTime  // Unknown release dates are legal
	ImageRef     string        // Cover image URL, "" if absent
	DetailRef    string        // Provider detail page URL, "" if absent
}
