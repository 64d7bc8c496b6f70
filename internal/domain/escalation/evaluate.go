// Package escalation decides which escalation level is active for a
// stalled step. Evaluation is pure and stateless so poll loops can call
// it repeatedly as time advances.
package escalation

import (
	"sort"

	"github.com/docuflow/approval-engine/internal/domain/entity"
)

// Evaluate returns the highest level whose threshold has been exceeded,
// or nil if elapsedHours is below the smallest threshold.
//
// Malformed ladders (non-positive or non-increasing thresholds) fail
// closed: no escalation is reported rather than surfacing an error into
// a caller's timer loop.
func Evaluate(levels []entity.EscalationLevel, elapsedHours float64) *entity.EscalationLevel {
	if len(levels) == 0 || elapsedHours < 0 {
		return nil
	}

	sorted := make([]entity.EscalationLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimeThresholdHours < sorted[j].TimeThresholdHours
	})

	if !wellFormed(sorted) {
		return nil
	}

	var active *entity.EscalationLevel
	for i := range sorted {
		if sorted[i].TimeThresholdHours <= elapsedHours {
			active = &sorted[i]
		}
	}

	return active
}

// wellFormed checks that thresholds are positive and strictly increasing
// after sorting. Duplicate thresholds make level selection ambiguous, so
// they count as malformed.
func wellFormed(sorted []entity.EscalationLevel) bool {
	prev := 0.0
	for _, l := range sorted {
		if l.TimeThresholdHours <= prev {
			return false
		}
		prev = l.TimeThresholdHours
	}
	return true
}
