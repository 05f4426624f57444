// Package activity indexes domain events per entity so the history of a
// producer, product, activity or profile can be read back newest first.
package activity

import "time"

// QueryOptions controls filtering and pagination for entity activity queries.
type QueryOptions struct {
	Since      *time.Time
	Until      *time.Time
	Categories []string // "registry", "form"
	MinWeight  string   // default: "info"
	Limit      int      // default 50, max 200
	Cursor     string   // OccurredAt of the last entry of the previous page
}

// SearchOptions controls filtering for summary search.
type SearchOptions struct {
	Collection string
	Since      *time.Time
	Categories []string
	Limit      int // default 20
}

// DefaultQueryOptions returns QueryOptions covering the last six months.
func DefaultQueryOptions() QueryOptions {
	since := time.Now().AddDate(0, -6, 0)
	return QueryOptions{
		Since:     &since,
		MinWeight: "info",
		Limit:     defaultLimit,
	}
}

const (
	defaultLimit       = 50
	maxLimit           = 200
	defaultSearchLimit = 20
)

var weightRank = map[string]int{"info": 0, "minor": 1, "major": 2}

// AtLeast reports whether weight is at least min. Unknown weights rank as info.
func AtLeast(weight, min string) bool {
	return weightRank[weight] >= weightRank[min]
}
