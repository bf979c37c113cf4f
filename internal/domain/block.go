package domain

import "time"

// BlockStatus tracks a retrieval block through its lifecycle.
type BlockStatus int

const (
	BlockPending BlockStatus = iota
	BlockInProgress
	BlockSucceeded
	BlockFailed
)

func (s BlockStatus) String() string {
	switch s {
	case BlockPending:
		return "pending"
	case BlockInProgress:
		return "in_progress"
	case BlockSucceeded:
		return "succeeded"
	case BlockFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Block is a one-day slice of the requested window, the atomic unit of retry.
// A block is failed only after its retry budget is exhausted with zero records.
type Block struct {
	Start    time.Time
	End      time.Time
	Status   BlockStatus
	Records  int
	Attempts int
}

// Window returns the block's interval as a TimeWindow.
func (b Block) Window() TimeWindow {
	return TimeWindow{Start: b.Start, End: b.End}
}

// Days returns the nominal block length in days. Blocks at the tail of a
// window can be shorter than the nominal day; they still count as one day
// for coverage accounting, matching the original downloader's report.
func (b Block) Days() int {
	return 1
}

// CoverageReport summarizes one ingestion run. Read-only after creation; it
// gates whether the rest of the pipeline proceeds.
type CoverageReport struct {
	RecordsTotal  int
	DaysRequested int
	FailedBlocks  []Block
	CoveragePct   float64
	Degraded      bool
}
