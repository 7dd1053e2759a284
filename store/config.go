package store

import "time"

// Config holds configuration for store creation
type Config struct {
	// MemoryLimitPages sets the maximum linear memory per instance in
	// pages (64KB each). 0 means the engine default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CallBudget bounds the wall-clock time of one guest entry: an
	// exported call, a start function, or a synthesized entity module
	// run during allocation. A call that exceeds the budget aborts with
	// a trap and closes the instance it was running in. 0 means no limit.
	CallBudget time.Duration
}
