package domain

import "time"

// BatchReport describes one flushed batch.
type BatchReport struct {
	Index   int
	Rows    int
	Elapsed time.Duration
	Skipped bool
	Err     error
}

// IngestSummary describes one loader run.
type IngestSummary struct {
	RunID       string
	Source      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Lines       int
	Parsed      int
	Sentinels   int
	Rejected    map[string]int
	RowsWritten int
	RowsSkipped int
	RowsFailed  int
	Batches     []BatchReport
}

// RejectedTotal sums rejected lines across reasons.
func (s IngestSummary) RejectedTotal() int {
	total := 0
	for _, n := range s.Rejected {
		total += n
	}
	return total
}
