package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

func window(start, end int) domain.Schedule {
	return domain.Schedule{StartMinutes: start, EndMinutes: end}
}

func TestResolveOverlaps_ScenarioThree(t *testing.T) {
	input := []domain.Schedule{
		window(12*60, 13*60+45),
		window(13*60, 15*60),
		window(20*60, 21*60),
	}

	accepted, dropped := ResolveOverlaps(input)

	require.Len(t, accepted, 2)
	require.Equal(t, 12*60, accepted[0].StartMinutes)
	require.Equal(t, 20*60, accepted[1].StartMinutes)
	require.Len(t, dropped, 1)
	require.Equal(t, 13*60, dropped[0].StartMinutes)
}

func TestResolveOverlaps_AlwaysKeepsFirst(t *testing.T) {
	input := []domain.Schedule{
		window(0, 1439),
		window(100, 200),
	}
	accepted, _ := ResolveOverlaps(input)
	require.Len(t, accepted, 1)
	require.Equal(t, 0, accepted[0].StartMinutes)
}

func TestResolveOverlaps_NoneIntersect(t *testing.T) {
	input := []domain.Schedule{
		window(0, 60),
		window(100, 200),
		window(300, 400),
	}
	accepted, dropped := ResolveOverlaps(input)
	require.Len(t, accepted, 3)
	require.Empty(t, dropped)

	for i := 0; i < len(accepted); i++ {
		for j := i + 1; j < len(accepted); j++ {
			a := domain.CircularInterval{StartMinutes: accepted[i].StartMinutes, EndMinutes: accepted[i].EndMinutes}
			b := domain.CircularInterval{StartMinutes: accepted[j].StartMinutes, EndMinutes: accepted[j].EndMinutes}
			require.False(t, a.Overlaps(b))
		}
	}
}

func TestResolveOverlaps_WrappingMidnight(t *testing.T) {
	input := []domain.Schedule{
		window(23*60, 2*60),
		window(1*60, 3*60),
	}
	accepted, dropped := ResolveOverlaps(input)
	require.Len(t, accepted, 1)
	require.Len(t, dropped, 1)
}
