package pipeline

import (
	"time"
)

// Status is the position of a search in its run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPaginating Status = "paginating"
	StatusFiltering  Status = "filtering"
	StatusDiffing    Status = "diffing"
	StatusNotifying  Status = "notifying"
	StatusPersisting Status = "persisting"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// SearchReport is the outcome of one search in one run.
type SearchReport struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Pages     int           `json:"pages"`
	Found     int           `json:"found"`
	Excluded  int           `json:"excluded"`
	New       int           `json:"new"`
	Notified  bool          `json:"notified"`
	Partial   bool          `json:"partial,omitempty"`
	Warning   string        `json:"warning,omitempty"`
	Error     string        `json:"error,omitempty"`
	NotifyErr string        `json:"notify_error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Report summarises a run. Searches keep the configured order.
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Searches   []SearchReport `json:"searches"`
	Persisted  bool           `json:"persisted"`
	Pruned     []string       `json:"pruned,omitempty"`
}

// Count returns the number of searches that ended in status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, sr := range r.Searches {
		if sr.Status == s {
			n++
		}
	}
	return n
}

// NewAds returns the total number of new ads across searches.
func (r *Report) NewAds() int {
	n := 0
	for _, sr := range r.Searches {
		n += sr.New
	}
	return n
}

// Search returns the report of the named search.
func (r *Report) Search(name string) (SearchReport, bool) {
	for _, sr := range r.Searches {
		if sr.Name == name {
			return sr, true
		}
	}
	return SearchReport{}, false
}
