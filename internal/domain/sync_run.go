package domain

import "time"

// SyncRun is the per-run summary returned to callers and kept as history
type SyncRun struct {
	ID          string    `json:"id"`
	EntityType  string    `json:"entity_type"`
	DryRun      bool      `json:"dry_run"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Unchanged   int       `json:"unchanged"`
	Skipped     int       `json:"skipped"`
	MediaFailed int       `json:"media_failed"`
	Failed      int       `json:"failed"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Error       string    `json:"error,omitempty"`
}

// Duration returns how long the run took
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run finished without a fatal error
func (r *SyncRun) Succeeded() bool {
	return r.Error == ""
}
