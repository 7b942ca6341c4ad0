package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	appmongo "github.com/evteam/tesla-charge-orchestrator/internal/adapter/storage/mongo"
)

// TestDatabase_SessionCRUD exercises the Special-Charging Session repository
// against a real MongoDB instance.
func TestDatabase_SessionCRUD(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.DB == nil {
		t.Skip("database not available")
	}
	CleanDatabase(t, env.DB)

	ctx := env.ctx
	repo := appmongo.NewSessionRepo(env.DB)

	target := time.Date(2026, 8, 1, 21, 0, 0, 0, time.UTC)
	sessionID := domain.NewSessionID(3, target)

	session := domain.Session{
		SessionID:      sessionID,
		Row:            3,
		VIN:            "5YJ3E1EA1JF000001",
		State:          domain.SessionScheduled,
		TargetPercent:  90,
		TargetDatetime: target,
		PlannedChargeStart: target.Add(-2 * time.Hour),
		PlannedChargeEnd:   target,
		SendAt:             target.Add(-2*time.Hour - 30*time.Minute),
	}

	t.Run("CreateSession", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, session))
	})

	t.Run("ReadSession", func(t *testing.T) {
		got, err := repo.Get(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, session.VIN, got.VIN)
		require.Equal(t, session.State, got.State)
		require.Equal(t, session.TargetPercent, got.TargetPercent)
	})

	t.Run("UpdateSessionState", func(t *testing.T) {
		session.State = domain.SessionActive
		session.OriginalChargeLimit = 80
		require.NoError(t, repo.Put(ctx, session))

		got, err := repo.Get(ctx, sessionID)
		require.NoError(t, err)
		require.Equal(t, domain.SessionActive, got.State)
		require.Equal(t, 80, got.OriginalChargeLimit)
	})

	t.Run("ActiveForVIN", func(t *testing.T) {
		got, err := repo.ActiveForVIN(ctx, session.VIN)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, sessionID, got.SessionID)
	})

	t.Run("ExistsForRow", func(t *testing.T) {
		exists, err := repo.ExistsForRow(ctx, 3, target.Format("2006-01-02"))
		require.NoError(t, err)
		require.True(t, exists)

		exists, err = repo.ExistsForRow(ctx, 99, target.Format("2006-01-02"))
		require.NoError(t, err)
		require.False(t, exists)
	})
}

// TestDatabase_ActiveCaseCRUD exercises the Worker Active Case repository.
func TestDatabase_ActiveCaseCRUD(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.DB == nil {
		t.Skip("database not available")
	}
	CleanDatabase(t, env.DB)

	ctx := env.ctx
	repo := appmongo.NewCaseRepo(env.DB)
	vin := "5YJ3E1EA1JF000001"

	t.Run("CreateCase", func(t *testing.T) {
		err := repo.Put(ctx, domain.ActiveCase{
			VIN:            vin,
			StartTimestamp: time.Now().Truncate(time.Second),
			LastBattery:    55,
			LastReady:      true,
		})
		require.NoError(t, err)
	})

	t.Run("ReadCase", func(t *testing.T) {
		got, err := repo.Get(ctx, vin)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, 55, got.LastBattery)
		require.True(t, got.LastReady)
	})

	t.Run("UpdateCase", func(t *testing.T) {
		err := repo.Put(ctx, domain.ActiveCase{VIN: vin, LastBattery: 70, LastReady: false})
		require.NoError(t, err)

		got, err := repo.Get(ctx, vin)
		require.NoError(t, err)
		require.Equal(t, 70, got.LastBattery)
		require.False(t, got.LastReady)
	})

	t.Run("DeleteCase", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, vin))

		got, err := repo.Get(ctx, vin)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

// TestDatabase_FingerprintAndScoutState covers the two remaining small
// keyed-document repositories.
func TestDatabase_FingerprintAndScoutState(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.DB == nil {
		t.Skip("database not available")
	}
	CleanDatabase(t, env.DB)

	ctx := env.ctx
	vin := "5YJ3E1EA1JF000001"

	t.Run("FingerprintRoundTrip", func(t *testing.T) {
		repo := appmongo.NewFingerprintRepo(env.DB)

		_, found, err := repo.Get(ctx, vin)
		require.NoError(t, err)
		require.False(t, found)

		require.NoError(t, repo.Put(ctx, vin, domain.Fingerprint("abc123")))

		fp, found, err := repo.Get(ctx, vin)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, domain.Fingerprint("abc123"), fp)
	})

	t.Run("ScoutStateRoundTrip", func(t *testing.T) {
		repo := appmongo.NewScoutStateRepo(env.DB)
		lat, lon := 52.2297, 21.0122

		require.NoError(t, repo.Put(ctx, domain.ScoutState{
			VIN:             vin,
			Latitude:        &lat,
			Longitude:       &lon,
			AtHome:          true,
			Online:          true,
			BatteryPercent:  62,
			ChargingState:   domain.ChargingStateDisconnected,
			IsChargingReady: false,
			Timestamp:       time.Now().Truncate(time.Second),
		}))

		got, err := repo.Get(ctx, vin)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, 62, got.BatteryPercent)
		require.True(t, got.AtHome)
	})
}
