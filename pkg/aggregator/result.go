package aggregator

import (
	"fmt"
	"time"
)

// StatusBusy is returned when another run of the same kind is in flight.
const StatusBusy = "updating..."

// Result is the outcome of one aggregator invocation.
type Result struct {
	Kind     Kind          `json:"kind"`
	Busy     bool          `json:"busy"`
	Start    uint64        `json:"start,omitempty"`
	End      uint64        `json:"end,omitempty"`
	Inserted int           `json:"inserted"`
	Upserted int           `json:"upserted"`
	Modified int           `json:"modified"`
	Skipped  int           `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Status renders the result as "done in <ms>ms (<n> inserted, <n> upserted, <n> modified)".
func (r Result) Status() string {
	if r.Busy {
		return StatusBusy
	}
	return fmt.Sprintf("done in %dms (%d inserted, %d upserted, %d modified)",
		r.Duration.Milliseconds(), r.Inserted, r.Upserted, r.Modified)
}

// Written is the total number of rows written.
func (r Result) Written() int {
	return r.Inserted + r.Upserted + r.Modified
}
