package domain

import "time"

// ScoutState is the per-VIN state Scout persists between invocations.
type ScoutState struct {
	VIN             string
	Latitude        *float64
	Longitude       *float64
	AtHome          bool
	Online          bool
	BatteryPercent  int
	ChargingState   ChargingState
	IsChargingReady bool
	Timestamp       time.Time
}

// ScoutStateFromSnapshot projects a Vehicle Snapshot into the subset Scout persists.
func ScoutStateFromSnapshot(snap Snapshot, atHome bool, now time.Time) ScoutState {
	return ScoutState{
		VIN:             snap.VIN,
		Latitude:        snap.Latitude,
		Longitude:       snap.Longitude,
		AtHome:          atHome,
		Online:          snap.Online,
		BatteryPercent:  snap.BatteryPercent,
		ChargingState:   snap.ChargingState,
		IsChargingReady: snap.IsChargingReady(),
		Timestamp:       now,
	}
}

// ActiveCase records Condition B monitoring in progress for a VIN.
type ActiveCase struct {
	VIN            string
	StartTimestamp time.Time
	LastBattery    int
	LastReady      bool
}

// TokenRecord is the single global OAuth token document, sole writer the
// Token Broker inside the Worker process.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	ObtainedAt   time.Time
}

// RemainingAt returns how long the record remains valid relative to now; it
// can be negative if already expired.
func (t TokenRecord) RemainingAt(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}

// Valid reports whether the record has at least minRemaining left at now.
func (t TokenRecord) Valid(now time.Time, minRemaining time.Duration) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.RemainingAt(now) >= minRemaining
}
