package domain

import (
	"sort"
	"time"
)

// Entity is the local system-of-record object for one external record
type Entity struct {
	ID         int64
	Type       string
	ExternalID string
	Attributes map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UpsertAction describes what an upsert did or would do
type UpsertAction string

const (
	ActionCreated     UpsertAction = "created"
	ActionUpdated     UpsertAction = "updated"
	ActionUnchanged   UpsertAction = "unchanged"
	ActionWouldCreate UpsertAction = "would-create"
	ActionWouldUpdate UpsertAction = "would-update"
)

// IsCreate reports whether the action is (or would be) a creation
func (a UpsertAction) IsCreate() bool {
	return a == ActionCreated || a == ActionWouldCreate
}

// UpsertResult is returned by the entity reconciler
type UpsertResult struct {
	LocalID     int64 // zero for would-create
	Action      UpsertAction
	ChangedKeys []string
}

// DiffAttributes returns the keys whose value would change when next is merged
// into current. Empty values in next mean deletion.
func DiffAttributes(current, next map[string]string) []string {
	var changed []string
	for k, v := range next {
		old, ok := current[k]
		if v == "" {
			if ok {
				changed = append(changed, k)
			}
			continue
		}
		if !ok || old != v {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// MergeAttributes applies next onto current, deleting keys set to "".
func MergeAttributes(current, next map[string]string) map[string]string {
	merged := make(map[string]string, len(current)+len(next))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range next {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}
