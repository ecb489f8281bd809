package tracking

import "database/sql"

// Patch is a partial update of an Entry. Nil fields are left untouched.
type Patch struct {
	LastISBN            *string
	LastSalesDate       *sql.NullTime
	LastNotifiedDay     *sql.NullTime
	LastPurchasedVolume *int
	IsReserved          *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.LastISBN == nil &&
		p.LastSalesDate == nil &&
		p.LastNotifiedDay == nil &&
		p.LastPurchasedVolume == nil &&
		p.IsReserved == nil
}
