package catalog

import "context"

// RawItem is one unprocessed search result as reported by the bibliographic provider.
type RawItem struct {
	Title     string
	Author    string
	Publisher string
	ISBN      string
	SalesDate string // Provider's locale-specific date text, e.g. "2024年05月02日"
	ImageURL  string
	ItemURL   string
}

// Lookup searches the bibliographic provider.
// Results keep the provider's own ordering.
type Lookup interface {
	Search(ctx context.Context, title, author string) ([]RawItem, error)
}
