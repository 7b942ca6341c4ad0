package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

const (
	collectionScoutState  = "scout_state"
	collectionWorkerCases = "worker_cases"
	collectionSessions    = "special_charging_sessions"
	collectionFingerprint = "schedule_fingerprints"
)

// ScoutStateRepo persists the Scout State document keyed by VIN.
type ScoutStateRepo struct{ db *DB }

func NewScoutStateRepo(db *DB) *ScoutStateRepo { return &ScoutStateRepo{db: db} }

func (r *ScoutStateRepo) Get(ctx context.Context, vin string) (*domain.ScoutState, error) {
	doc, err := r.db.QueryFirst(ctx, collectionScoutState, bson.M{"vin": vin})
	if err != nil || doc == nil {
		return nil, err
	}
	return scoutStateFromDoc(doc), nil
}

func (r *ScoutStateRepo) Put(ctx context.Context, state domain.ScoutState) error {
	_, err := r.db.Merge(ctx, collectionScoutState,
		map[string]interface{}{"vin": state.VIN},
		nil,
		scoutStateToFields(state),
	)
	return err
}

func scoutStateToFields(s domain.ScoutState) map[string]interface{} {
	fields := map[string]interface{}{
		"vin":              s.VIN,
		"at_home":          s.AtHome,
		"online":           s.Online,
		"battery":          s.BatteryPercent,
		"charging_state":   string(s.ChargingState),
		"is_charging_ready": s.IsChargingReady,
		"timestamp":        s.Timestamp.Format(time.RFC3339),
	}
	if s.Latitude != nil {
		fields["latitude"] = *s.Latitude
	}
	if s.Longitude != nil {
		fields["longitude"] = *s.Longitude
	}
	return fields
}

func scoutStateFromDoc(doc map[string]interface{}) *domain.ScoutState {
	s := &domain.ScoutState{
		VIN:             GetString(doc, "vin"),
		AtHome:          GetBool(doc, "at_home"),
		Online:          GetBool(doc, "online"),
		BatteryPercent:  GetInt(doc, "battery"),
		ChargingState:   domain.ChargingState(GetString(doc, "charging_state")),
		IsChargingReady: GetBool(doc, "is_charging_ready"),
		Timestamp:       GetTime(doc, "timestamp"),
	}
	if _, ok := doc["latitude"]; ok {
		lat := GetFloat64(doc, "latitude")
		s.Latitude = &lat
	}
	if _, ok := doc["longitude"]; ok {
		lon := GetFloat64(doc, "longitude")
		s.Longitude = &lon
	}
	return s
}

// CaseRepo persists the Worker Active Case document keyed by VIN.
type CaseRepo struct{ db *DB }

func NewCaseRepo(db *DB) *CaseRepo { return &CaseRepo{db: db} }

func (r *CaseRepo) Get(ctx context.Context, vin string) (*domain.ActiveCase, error) {
	doc, err := r.db.QueryFirst(ctx, collectionWorkerCases, bson.M{"vin": vin})
	if err != nil || doc == nil {
		return nil, err
	}
	return &domain.ActiveCase{
		VIN:            GetString(doc, "vin"),
		StartTimestamp: GetTime(doc, "start_timestamp"),
		LastBattery:    GetInt(doc, "last_battery"),
		LastReady:      GetBool(doc, "last_ready"),
	}, nil
}

func (r *CaseRepo) Put(ctx context.Context, c domain.ActiveCase) error {
	_, err := r.db.Merge(ctx, collectionWorkerCases,
		map[string]interface{}{"vin": c.VIN},
		map[string]interface{}{"start_timestamp": c.StartTimestamp.Format(time.RFC3339)},
		map[string]interface{}{
			"last_battery": c.LastBattery,
			"last_ready":   c.LastReady,
		},
	)
	return err
}

func (r *CaseRepo) Delete(ctx context.Context, vin string) error {
	return r.db.DeleteOne(ctx, collectionWorkerCases, bson.M{"vin": vin})
}

// SessionRepo persists Special-Charging Session documents keyed by
// session_id.
type SessionRepo struct{ db *DB }

func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	doc, err := r.db.QueryFirst(ctx, collectionSessions, bson.M{"session_id": sessionID})
	if err != nil || doc == nil {
		return nil, err
	}
	return sessionFromDoc(doc), nil
}

// Put upserts a session by session_id: the planner inserts new SCHEDULED
// sessions with it, and dispatch/cleanup use the same method to persist
// state transitions on the existing document.
func (r *SessionRepo) Put(ctx context.Context, s domain.Session) error {
	_, err := r.db.Merge(ctx, collectionSessions,
		map[string]interface{}{"session_id": s.SessionID},
		sessionToFields(s),
		sessionToFields(s),
	)
	return err
}

func (r *SessionRepo) ActiveForVIN(ctx context.Context, vin string) (*domain.Session, error) {
	doc, err := r.db.QueryFirst(ctx, collectionSessions, bson.M{"vin": vin, "state": string(domain.SessionActive)})
	if err != nil || doc == nil {
		return nil, err
	}
	return sessionFromDoc(doc), nil
}

func (r *SessionRepo) ExistsForRow(ctx context.Context, row int, targetDate string) (bool, error) {
	docs, err := r.db.QueryAll(ctx, collectionSessions, bson.M{"row": row, "target_date": targetDate})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

func (r *SessionRepo) Stale(ctx context.Context, olderThanUnix int64) ([]domain.Session, error) {
	docs, err := r.db.QueryAll(ctx, collectionSessions, bson.M{"state": string(domain.SessionActive)})
	if err != nil {
		return nil, err
	}
	stale := make([]domain.Session, 0)
	for _, doc := range docs {
		s := sessionFromDoc(doc)
		if s.PlannedChargeEnd.Add(2 * time.Hour).Unix() < olderThanUnix {
			stale = append(stale, *s)
		}
	}
	return stale, nil
}

func sessionToFields(s domain.Session) map[string]interface{} {
	return map[string]interface{}{
		"session_id":            s.SessionID,
		"row":                   s.Row,
		"target_date":           s.TargetDatetime.Format("2006-01-02"),
		"vin":                   s.VIN,
		"state":                 string(s.State),
		"target_percent":        s.TargetPercent,
		"target_datetime":       s.TargetDatetime.Format(time.RFC3339),
		"planned_charge_start":  s.PlannedChargeStart.Format(time.RFC3339),
		"planned_charge_end":    s.PlannedChargeEnd.Format(time.RFC3339),
		"send_at":               s.SendAt.Format(time.RFC3339),
		"original_charge_limit": s.OriginalChargeLimit,
		"send_job_name":         s.SendJobName,
		"cleanup_job_name":      s.CleanupJobName,
	}
}

func sessionFromDoc(doc map[string]interface{}) *domain.Session {
	return &domain.Session{
		SessionID:           GetString(doc, "session_id"),
		Row:                 GetInt(doc, "row"),
		VIN:                 GetString(doc, "vin"),
		State:               domain.SessionState(GetString(doc, "state")),
		TargetPercent:       GetInt(doc, "target_percent"),
		TargetDatetime:      GetTime(doc, "target_datetime"),
		PlannedChargeStart:  GetTime(doc, "planned_charge_start"),
		PlannedChargeEnd:    GetTime(doc, "planned_charge_end"),
		SendAt:              GetTime(doc, "send_at"),
		OriginalChargeLimit: GetInt(doc, "original_charge_limit"),
		SendJobName:         GetString(doc, "send_job_name"),
		CleanupJobName:      GetString(doc, "cleanup_job_name"),
		CreatedAt:           GetTime(doc, "created_at"),
		UpdatedAt:           GetTime(doc, "updated_at"),
	}
}

// FingerprintRepo persists the last-applied Schedule Fingerprint per VIN.
type FingerprintRepo struct{ db *DB }

func NewFingerprintRepo(db *DB) *FingerprintRepo { return &FingerprintRepo{db: db} }

func (r *FingerprintRepo) Get(ctx context.Context, vin string) (domain.Fingerprint, bool, error) {
	doc, err := r.db.QueryFirst(ctx, collectionFingerprint, bson.M{"vin": vin})
	if err != nil {
		return "", false, err
	}
	if doc == nil {
		return "", false, nil
	}
	return domain.Fingerprint(GetString(doc, "fingerprint")), true, nil
}

func (r *FingerprintRepo) Put(ctx context.Context, vin string, fp domain.Fingerprint) error {
	_, err := r.db.Merge(ctx, collectionFingerprint,
		map[string]interface{}{"vin": vin},
		nil,
		map[string]interface{}{"fingerprint": string(fp)},
	)
	return err
}

var (
	_ ports.ScoutStateRepository  = (*ScoutStateRepo)(nil)
	_ ports.CaseRepository        = (*CaseRepo)(nil)
	_ ports.SessionRepository     = (*SessionRepo)(nil)
	_ ports.FingerprintRepository = (*FingerprintRepo)(nil)
)
