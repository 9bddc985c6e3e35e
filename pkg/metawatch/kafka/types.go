package kafka

import "time"

// TableUpdate is the wire event published whenever the batch pipeline
// finishes writing a new generation of a logical map's physical table.
// Logical is a stable name (e.g. "occurrence") the service's config
// refers to; Table is the physical table name to read from until the
// next update arrives.
type TableUpdate struct {
	Logical string    `json:"logical"`
	Table   string    `json:"table"`
	Version uint64    `json:"version"`
	TS      time.Time `json:"ts"`
}
