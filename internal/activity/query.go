// Package activity keeps the per-wizard activity log: every lifecycle event
// recorded while a listing is being edited.
package activity

import "time"

// QueryOptions controls filtering and pagination for wizard activity queries.
type QueryOptions struct {
	Since      *time.Time
	EventTypes []string // filter to specific event types
	Limit      int      // max results (default: 100, max: 500)
	Cursor     string   // occurred_at of the last entry of the previous page
}

// DefaultQueryOptions returns QueryOptions with sensible defaults.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Limit: 100}
}
