// Package registry holds the coordinator's authoritative in-memory set of
// active alerts. One instance exists per process and is shared by every
// inbound call; all operations are serialized through a single mutex so a
// listing never observes a partially applied mutation.
package registry

import (
	"sync"

	"github.com/zackehh/corba-flood-warning-system/internal/domain"
)

// AlertRegistry is a mutex-guarded set of alerts, at most one per compound
// key. The backing slice keeps insertion order so matching is deterministic:
// the first entry with an equal key wins.
type AlertRegistry struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

// New creates an empty registry.
func New() *AlertRegistry {
	return &AlertRegistry{}
}

// Upsert inserts the alert, or replaces the payload of the first existing
// entry with the same key. Returns true when the alert was new.
func (r *AlertRegistry) Upsert(alert domain.Alert) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.alerts {
		if r.alerts[i].AlertKey == alert.AlertKey {
			r.alerts[i] = alert
			return false
		}
	}
	r.alerts = append(r.alerts, alert)
	return true
}

// Remove deletes the first entry matching the key. Returns whether a match
// was found.
func (r *AlertRegistry) Remove(key domain.AlertKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.alerts {
		if r.alerts[i].AlertKey == key {
			r.alerts = append(r.alerts[:i], r.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a snapshot of the current alerts ordered ascending by report
// time, oldest (most urgent) first. The returned slice is a copy; callers
// may hold or mutate it freely.
func (r *AlertRegistry) List() []domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Alert, len(r.alerts))
	copy(out, r.alerts)
	domain.SortByTime(out)
	return out
}

// Len returns the number of active alerts.
func (r *AlertRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}
