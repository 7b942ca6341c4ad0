package planner

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

// Strategy names the strategy-cascade tier that produced a Plan (§4.5.1
// step 5), generalizing the teacher's peak/super-peak time-of-day checks
// (`internal/service/v2g/grid_price.go`) into a slot-avoidance search over
// configurable peak intervals.
type Strategy string

const (
	StrategyOptimal        Strategy = "S1"
	StrategyEarlier        Strategy = "S2"
	StrategyMinimalCollide Strategy = "S3"
	StrategyFallback       Strategy = "S4"
)

const (
	defaultSafetyBufferHours = 1.5
	fallbackSafetyBufferHours = 0.5
	searchStep                = time.Minute
	s1Lookback                = 6 * time.Hour
	s2Lookback                = 30 * time.Hour
)

// PeakInterval is a local-time-of-day range the planner prefers to avoid
// (§6: PEAK_INTERVALS, default 06:00-10:00 and 19:00-22:00).
type PeakInterval struct {
	StartMinutes int
	EndMinutes   int
}

func (p PeakInterval) toCircular() domain.CircularInterval {
	return domain.CircularInterval{StartMinutes: p.StartMinutes, EndMinutes: p.EndMinutes}
}

// Plan is the chosen charging window for a special-charging request.
type Plan struct {
	Strategy           Strategy
	ChargeStart        time.Time
	ChargeEnd          time.Time
	PeakCollisionFrac  float64
}

// Planner computes the chosen charging window for an ad-hoc "reach X% by
// time T" request (§4.5.1).
type Planner struct {
	log   *zap.Logger
	peaks []PeakInterval
}

func New(peaks []PeakInterval, log *zap.Logger) *Planner {
	return &Planner{log: log, peaks: peaks}
}

// RequiredHours computes the duration a charge of requiredKWh needs at
// chargingRateKW, plus a safety buffer.
func RequiredHours(requiredKWh, chargingRateKW, safetyBufferHours float64) float64 {
	return requiredKWh/chargingRateKW + safetyBufferHours
}

// RequiredKWh computes §4.5.1 step 2's required energy; a non-positive
// result means the target is already met.
func RequiredKWh(targetPercent, currentBatteryPercent int, batteryCapacityKWh float64) float64 {
	return float64(targetPercent-currentBatteryPercent) / 100 * batteryCapacityKWh
}

// Plan runs the strategy cascade (§4.5.1 step 5) and returns the first
// strategy that produces a usable window.
func (p *Planner) Plan(now, target time.Time, requiredKWh, chargingRateKW float64) (Plan, error) {
	duration := time.Duration(RequiredHours(requiredKWh, chargingRateKW, defaultSafetyBufferHours) * float64(time.Hour))
	latestStart := target.Add(-duration)

	// No S1-S3 window may start before now.
	notBefore := func(t time.Time) time.Time {
		if t.Before(now) {
			return now
		}
		return t
	}

	if plan, ok := p.search(notBefore(latestStart.Add(-s1Lookback)), latestStart, duration, 0); ok {
		plan.Strategy = StrategyOptimal
		p.log.Info("special-charging strategy chosen", zap.String("strategy", string(plan.Strategy)))
		return plan, nil
	}

	if plan, ok := p.search(notBefore(latestStart.Add(-s2Lookback)), latestStart.Add(-s1Lookback), duration, 0); ok {
		plan.Strategy = StrategyEarlier
		p.log.Info("special-charging strategy chosen", zap.String("strategy", string(plan.Strategy)))
		return plan, nil
	}

	if plan, ok := p.search(notBefore(latestStart.Add(-s2Lookback)), latestStart, duration, 0.5); ok {
		plan.Strategy = StrategyMinimalCollide
		p.log.Info("special-charging strategy chosen",
			zap.String("strategy", string(plan.Strategy)),
			zap.Float64("peak_collision_fraction", plan.PeakCollisionFrac),
		)
		return plan, nil
	}

	fallbackDuration := time.Duration(RequiredHours(requiredKWh, chargingRateKW, fallbackSafetyBufferHours) * float64(time.Hour))
	start := target.Add(-fallbackDuration)
	frac := p.collisionFraction(start, target)
	plan := Plan{Strategy: StrategyFallback, ChargeStart: start, ChargeEnd: target, PeakCollisionFrac: frac}
	p.log.Warn("special-charging fallback strategy S4 chosen, may collide with peaks",
		zap.Float64("peak_collision_fraction", frac),
	)
	return plan, nil
}

// search scans backward from searchTo (inclusive) to searchFrom at
// searchStep granularity for the latest-possible window of duration whose
// peak collision fraction is <= maxCollisionFrac, preferring the window
// closest to searchTo.
func (p *Planner) search(searchFrom, searchTo time.Time, duration time.Duration, maxCollisionFrac float64) (Plan, bool) {
	for start := searchTo.Add(-duration); !start.Before(searchFrom); start = start.Add(-searchStep) {
		end := start.Add(duration)
		frac := p.collisionFraction(start, end)
		if frac <= maxCollisionFrac {
			return Plan{ChargeStart: start, ChargeEnd: end, PeakCollisionFrac: frac}, true
		}
	}
	return Plan{}, false
}

// collisionFraction returns the fraction of [start,end) that falls inside
// any configured peak interval, sampled at minute granularity against each
// minute's local time-of-day.
func (p *Planner) collisionFraction(start, end time.Time) float64 {
	if len(p.peaks) == 0 || !end.After(start) {
		return 0
	}
	total := 0
	collided := 0
	for t := start; t.Before(end); t = t.Add(time.Minute) {
		total++
		minuteOfDay := t.Hour()*60 + t.Minute()
		sample := domain.CircularInterval{StartMinutes: minuteOfDay, EndMinutes: minuteOfDay + 1}
		for _, peak := range p.peaks {
			if sample.Overlaps(peak.toCircular()) {
				collided++
				break
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(collided) / float64(total)
}

// ParsePeakInterval parses an "HH:MM-HH:MM" local-time range into a
// PeakInterval.
func ParsePeakInterval(s string) (PeakInterval, error) {
	var startH, startM, endH, endM int
	_, err := fmt.Sscanf(s, "%d:%d-%d:%d", &startH, &startM, &endH, &endM)
	if err != nil {
		return PeakInterval{}, fmt.Errorf("invalid peak interval %q: %w", s, err)
	}
	return PeakInterval{StartMinutes: startH*60 + startM, EndMinutes: endH*60 + endM}, nil
}

// DefaultPeakIntervals returns the default peaks from §4.5.1: 06:00-10:00
// and 19:00-22:00 local.
func DefaultPeakIntervals() []PeakInterval {
	return []PeakInterval{
		{StartMinutes: 6 * 60, EndMinutes: 10 * 60},
		{StartMinutes: 19 * 60, EndMinutes: 22 * 60},
	}
}
