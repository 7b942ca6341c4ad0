package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustLocal(t *testing.T, layout, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)
	parsed, err := time.ParseInLocation(layout, value, loc)
	require.NoError(t, err)
	return parsed
}

func TestPlanner_S1OptimalAvoidsPeaks(t *testing.T) {
	p := New(DefaultPeakIntervals(), zap.NewNop())

	now := mustLocal(t, "2006-01-02 15:04", "2025-01-21 23:00")
	target := mustLocal(t, "2006-01-02 15:04", "2025-01-22 07:00")

	requiredKWh := RequiredKWh(85, 60, 75)
	duration := time.Duration(RequiredHours(requiredKWh, 11, defaultSafetyBufferHours) * float64(time.Hour))
	latestStart := target.Add(-duration)

	plan, err := p.Plan(now, target, requiredKWh, 11)
	require.NoError(t, err)
	require.Equal(t, StrategyOptimal, plan.Strategy)
	require.Zero(t, plan.PeakCollisionFrac)
	require.True(t, plan.ChargeStart.Before(plan.ChargeEnd))
	require.False(t, plan.ChargeEnd.After(latestStart))
	require.WithinDuration(t, plan.ChargeStart.Add(duration), plan.ChargeEnd, time.Second)
}

func TestPlanner_S4FallbackWhenNoPeaklessWindowFits(t *testing.T) {
	p := New(DefaultPeakIntervals(), zap.NewNop())

	now := mustLocal(t, "2006-01-02 15:04", "2025-01-21 23:00")
	target := mustLocal(t, "2006-01-02 15:04", "2025-01-22 05:30")

	requiredKWh := RequiredKWh(85, 20, 75)
	plan, err := p.Plan(now, target, requiredKWh, 11)
	require.NoError(t, err)
	require.Equal(t, StrategyFallback, plan.Strategy)
	require.Equal(t, target, plan.ChargeEnd)
	require.Greater(t, plan.PeakCollisionFrac, 0.0)
}

func TestPlanner_NoPeaksMeansNoCollision(t *testing.T) {
	p := New(nil, zap.NewNop())
	start := time.Date(2025, 1, 1, 19, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	require.Zero(t, p.collisionFraction(start, end))
}

func TestPlanner_CollisionFractionFullyInsidePeak(t *testing.T) {
	p := New(DefaultPeakIntervals(), zap.NewNop())
	start := time.Date(2025, 1, 1, 19, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	require.Equal(t, 1.0, p.collisionFraction(start, end))
}

func TestParsePeakInterval(t *testing.T) {
	pi, err := ParsePeakInterval("06:00-10:00")
	require.NoError(t, err)
	require.Equal(t, PeakInterval{StartMinutes: 360, EndMinutes: 600}, pi)
}

func TestRequiredKWh_NonPositiveMeansAlreadyMet(t *testing.T) {
	require.LessOrEqual(t, RequiredKWh(80, 85, 75), 0.0)
}
