package tracking

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryIsMatched(t *testing.T) {
	assert.False(t, (&Entry{}).IsMatched())
	assert.False(t, (&Entry{LastISBN: "0"}).IsMatched())
	assert.True(t, (&Entry{LastISBN: "9784088820000"}).IsMatched())
}

func TestEntryApplyKeepsPurchasedVolumeMonotonic(t *testing.T) {
	e := &Entry{LastPurchasedVolume: 5, IsReserved: true}
	lower := 3
	e.Apply(Patch{LastPurchasedVolume: &lower})
	assert.Equal(t, 5, e.LastPurchasedVolume)

	higher := 6
	reserved := false
	e.Apply(Patch{LastPurchasedVolume: &higher, IsReserved: &reserved})
	assert.Equal(t, 6, e.LastPurchasedVolume)
	assert.False(t, e.IsReserved)
}

func TestPatchIsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())

	day := sql.NullTime{Time: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Valid: true}
	assert.False(t, Patch{LastNotifiedDay: &day}.IsEmpty())
}
