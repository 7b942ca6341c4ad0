package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// DaysOfWeek is either a literal keyword ("All", "Weekdays") accepted by the
// vehicle cloud on create, or a bitmask as reported back by reads.
type DaysOfWeek string

const (
	DaysAll      DaysOfWeek = "All"
	DaysWeekdays DaysOfWeek = "Weekdays"
)

// Schedule is a charge schedule, either desired (no ScheduleID yet) or as
// read back from the vehicle (ScheduleID populated).
type Schedule struct {
	ScheduleID    int
	Enabled       bool
	StartEnabled  bool
	StartMinutes  int
	EndEnabled    bool
	EndMinutes    int
	DaysOfWeek    DaysOfWeek
	Latitude      float64
	Longitude     float64
	OneTime       bool
}

// NewHomeSchedule builds a desired schedule for the given window anchored at
// the home coordinates, satisfying the create-time invariants of §3: both
// start_enabled/end_enabled true, both times present, days defaulting to All.
func NewHomeSchedule(startMinutes, endMinutes int, homeLat, homeLon float64) Schedule {
	return Schedule{
		Enabled:      true,
		StartEnabled: true,
		StartMinutes: normalizeMinutes(startMinutes),
		EndEnabled:   true,
		EndMinutes:   normalizeMinutes(endMinutes),
		DaysOfWeek:   DaysAll,
		Latitude:     homeLat,
		Longitude:    homeLon,
	}
}

func normalizeMinutes(m int) int {
	m %= 1440
	if m < 0 {
		m += 1440
	}
	return m
}

// IsHomeSchedule reports whether the schedule's coordinates fall within the
// configured home radius.
func (s Schedule) IsHomeSchedule(homeLat, homeLon, radius float64) bool {
	return IsHomeCoordinate(s.Latitude, s.Longitude, homeLat, homeLon, radius)
}

// roundCoord matches the fingerprint's coordinate rounding: six decimal
// places is sub-meter precision, enough to treat floating point noise from
// repeated reads as identical while still distinguishing real moves.
func roundCoord(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Fingerprint is a stable hash over a sorted set of home schedule tuples,
// used to skip reconciliation when the desired set is unchanged.
type Fingerprint string

// ComputeFingerprint implements the stable hash described in §3: it sorts
// the (start_enabled, start, end_enabled, end, lat, lon, days) tuples before
// hashing so that input order never affects the result.
func ComputeFingerprint(schedules []Schedule) Fingerprint {
	lines := make([]string, 0, len(schedules))
	for _, s := range schedules {
		lines = append(lines, fmt.Sprintf("%t|%d|%t|%d|%.6f|%.6f|%s",
			s.StartEnabled, s.StartMinutes, s.EndEnabled, s.EndMinutes,
			roundCoord(s.Latitude), roundCoord(s.Longitude), s.DaysOfWeek))
	}
	sort.Strings(lines)
	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{0})
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
