package scout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

func readySnapshot(online bool, chargingState domain.ChargingState) domain.Snapshot {
	return domain.Snapshot{
		VIN:           "VIN1",
		Online:        online,
		ChargingState: chargingState,
		ReadAt:        time.Now(),
	}
}

func TestDecide_InitStateWhenNoPriorState(t *testing.T) {
	reason, trigger := decide(nil, readySnapshot(true, domain.ChargingStateCharging), true, true)
	require.True(t, trigger)
	require.Equal(t, ReasonInitState, reason)
}

func TestDecide_ReturnedHome(t *testing.T) {
	prior := &domain.ScoutState{AtHome: false, Online: true}
	reason, trigger := decide(prior, readySnapshot(true, domain.ChargingStateDisconnected), true, false)
	require.True(t, trigger)
	require.Equal(t, ReasonReturnedHome, reason)
}

func TestDecide_ConditionAReady(t *testing.T) {
	prior := &domain.ScoutState{AtHome: true, Online: true, IsChargingReady: false}
	reason, trigger := decide(prior, readySnapshot(true, domain.ChargingStateCharging), true, true)
	require.True(t, trigger)
	require.Equal(t, ReasonConditionAReady, reason)
}

func TestDecide_ConditionANotReTriggeredWhenAlreadyReady(t *testing.T) {
	prior := &domain.ScoutState{AtHome: true, Online: true, IsChargingReady: true}
	_, trigger := decide(prior, readySnapshot(true, domain.ChargingStateCharging), true, true)
	require.False(t, trigger)
}

func TestDecide_ConditionBOfflineEdge(t *testing.T) {
	prior := &domain.ScoutState{AtHome: true, Online: true, IsChargingReady: false}
	reason, trigger := decide(prior, readySnapshot(false, domain.ChargingStateDisconnected), true, false)
	require.True(t, trigger)
	require.Equal(t, ReasonConditionBOffline, reason)
}

func TestDecide_NoTriggerWhenNothingChanged(t *testing.T) {
	prior := &domain.ScoutState{AtHome: false, Online: false, IsChargingReady: false}
	_, trigger := decide(prior, readySnapshot(false, domain.ChargingStateDisconnected), false, false)
	require.False(t, trigger)
}
