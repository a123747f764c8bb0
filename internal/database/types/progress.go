package types

import (
	"time"
)

// MemberProgress is the durable per-member progression record. A missing row
// is equivalent to the zero-value record and is materialized lazily on first
// read.
type MemberProgress struct {
	UserID       uint64    `bun:",pk"                json:"userId"`       // Discord user ID
	XP           int64     `bun:",notnull"           json:"xp"`           // Accumulated experience points
	LastActivity time.Time `bun:",nullzero"          json:"lastActivity"` // Last XP-earning activity
	StarsTotal   int64     `bun:",notnull,default:0" json:"starsTotal"`   // Sum of all rating stars received
	RatingsCount int64     `bun:",notnull,default:0" json:"ratingsCount"` // Number of ratings received
}

// AverageRating returns the mean star rating and whether any ratings exist.
func (p *MemberProgress) AverageRating() (float64, bool) {
	if p.RatingsCount == 0 {
		return 0, false
	}
	return float64(p.StarsTotal) / float64(p.RatingsCount), true
}
