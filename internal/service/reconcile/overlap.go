package reconcile

import "github.com/evteam/tesla-charge-orchestrator/internal/domain"

// ResolveOverlaps implements §4.4.2 step 2: iterate windows in input order
// (leftmost = highest priority); for each, drop any later window whose
// interval intersects the accepted set. Implements P4: the accepted subset
// always contains the first element, and no two accepted windows intersect
// on the circular 24h axis.
func ResolveOverlaps(schedules []domain.Schedule) (accepted, dropped []domain.Schedule) {
	accepted = make([]domain.Schedule, 0, len(schedules))
	dropped = make([]domain.Schedule, 0)

	for _, candidate := range schedules {
		candidateInterval := domain.CircularInterval{StartMinutes: candidate.StartMinutes, EndMinutes: candidate.EndMinutes}
		overlaps := false
		for _, a := range accepted {
			acceptedInterval := domain.CircularInterval{StartMinutes: a.StartMinutes, EndMinutes: a.EndMinutes}
			if candidateInterval.Overlaps(acceptedInterval) {
				overlaps = true
				break
			}
		}
		if overlaps {
			dropped = append(dropped, candidate)
			continue
		}
		accepted = append(accepted, candidate)
	}
	return accepted, dropped
}
