package worker

import (
	"context"
	"errors"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

type fakeGateway struct {
	snapshots   []domain.Snapshot
	snapshotIdx int
	wakeErr     error
	wakeCalls   int
	addCalls    []domain.Schedule
	addErr      error
	setLimitErr error
	setLimits   []int
}

func (f *fakeGateway) ListVehicles(ctx context.Context) ([]ports.VehicleRef, error) { return nil, nil }

func (f *fakeGateway) GetSnapshot(ctx context.Context, vin string, includeLocation bool) (domain.Snapshot, error) {
	if len(f.snapshots) == 0 {
		return domain.Snapshot{}, nil
	}
	if f.snapshotIdx >= len(f.snapshots) {
		return f.snapshots[len(f.snapshots)-1], nil
	}
	s := f.snapshots[f.snapshotIdx]
	f.snapshotIdx++
	return s, nil
}

func (f *fakeGateway) WakeUp(ctx context.Context, vin string) error {
	f.wakeCalls++
	return f.wakeErr
}

func (f *fakeGateway) AddChargeSchedule(ctx context.Context, vin string, sched domain.Schedule) (int, error) {
	f.addCalls = append(f.addCalls, sched)
	if f.addErr != nil {
		return 0, f.addErr
	}
	return len(f.addCalls), nil
}

func (f *fakeGateway) RemoveChargeSchedule(ctx context.Context, vin string, scheduleID int) error { return nil }

func (f *fakeGateway) SetChargeLimit(ctx context.Context, vin string, percent int) error {
	f.setLimits = append(f.setLimits, percent)
	return f.setLimitErr
}

func (f *fakeGateway) ChargeStart(ctx context.Context, vin string) error { return nil }
func (f *fakeGateway) ChargeStop(ctx context.Context, vin string) error  { return nil }

func (f *fakeGateway) ListChargeSchedules(ctx context.Context, vin string) ([]domain.Schedule, error) {
	return nil, nil
}

var _ ports.VehicleGateway = (*fakeGateway)(nil)

type fakeBroker struct {
	token        string
	getErr       error
	refreshCalls []string
	refreshErr   error
}

func (f *fakeBroker) GetAccessToken(ctx context.Context) (string, error) {
	return f.token, f.getErr
}

func (f *fakeBroker) ForceRefresh(ctx context.Context, reason string) error {
	f.refreshCalls = append(f.refreshCalls, reason)
	return f.refreshErr
}

var _ ports.TokenBroker = (*fakeBroker)(nil)

type fakeTokenStore struct {
	record domain.TokenRecord
	getErr error
}

func (f *fakeTokenStore) Get(ctx context.Context) (*domain.TokenRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	r := f.record
	return &r, nil
}

func (f *fakeTokenStore) Put(ctx context.Context, record domain.TokenRecord) error {
	f.record = record
	return nil
}

var _ ports.TokenStore = (*fakeTokenStore)(nil)

type fakeFingerprints struct {
	stored map[string]domain.Fingerprint
}

func newFakeFingerprints() *fakeFingerprints {
	return &fakeFingerprints{stored: make(map[string]domain.Fingerprint)}
}

func (f *fakeFingerprints) Get(ctx context.Context, vin string) (domain.Fingerprint, bool, error) {
	fp, ok := f.stored[vin]
	return fp, ok, nil
}

func (f *fakeFingerprints) Put(ctx context.Context, vin string, fp domain.Fingerprint) error {
	f.stored[vin] = fp
	return nil
}

var _ ports.FingerprintRepository = (*fakeFingerprints)(nil)

type fakePricing struct {
	windows []domain.Window
	err     error
}

func (f *fakePricing) GetSchedule(ctx context.Context, req ports.PricingRequest) ([]domain.Window, error) {
	return f.windows, f.err
}

var _ ports.PricingClient = (*fakePricing)(nil)

type fakeSheet struct {
	rows          []ports.SheetRow
	updatedStatus map[int]string
}

func newFakeSheet(rows ...ports.SheetRow) *fakeSheet {
	return &fakeSheet{rows: rows, updatedStatus: make(map[int]string)}
}

func (f *fakeSheet) ActiveRows(ctx context.Context) ([]ports.SheetRow, error) { return f.rows, nil }

func (f *fakeSheet) UpdateStatus(ctx context.Context, row int, status string) error {
	f.updatedStatus[row] = status
	return nil
}

var _ ports.SheetClient = (*fakeSheet)(nil)

type fakeScheduler struct {
	created []ports.SchedulerJob
	deleted []string
}

func (f *fakeScheduler) CreateJob(ctx context.Context, job ports.SchedulerJob) error {
	f.created = append(f.created, job)
	return nil
}

func (f *fakeScheduler) DeleteJob(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

var _ ports.SchedulerClient = (*fakeScheduler)(nil)

type fakeCases struct {
	stored map[string]domain.ActiveCase
}

func newFakeCases() *fakeCases {
	return &fakeCases{stored: make(map[string]domain.ActiveCase)}
}

func (f *fakeCases) Get(ctx context.Context, vin string) (*domain.ActiveCase, error) {
	c, ok := f.stored[vin]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCases) Put(ctx context.Context, c domain.ActiveCase) error {
	f.stored[c.VIN] = c
	return nil
}

func (f *fakeCases) Delete(ctx context.Context, vin string) error {
	delete(f.stored, vin)
	return nil
}

var _ ports.CaseRepository = (*fakeCases)(nil)

type fakeSessions struct {
	byID       map[string]domain.Session
	existsRows map[int]bool
	staleList  []domain.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: make(map[string]domain.Session), existsRows: make(map[int]bool)}
}

func (f *fakeSessions) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, ok := f.byID[sessionID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSessions) Put(ctx context.Context, s domain.Session) error {
	f.byID[s.SessionID] = s
	return nil
}

func (f *fakeSessions) ActiveForVIN(ctx context.Context, vin string) (*domain.Session, error) {
	for _, s := range f.byID {
		if s.VIN == vin && (s.State == domain.SessionActive || s.State == domain.SessionScheduled) {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSessions) ExistsForRow(ctx context.Context, row int, targetDate string) (bool, error) {
	return f.existsRows[row], nil
}

func (f *fakeSessions) Stale(ctx context.Context, olderThan int64) ([]domain.Session, error) {
	return f.staleList, nil
}

var _ ports.SessionRepository = (*fakeSessions)(nil)

type fakeEvents struct {
	published []ports.SessionEvent
	err       error
}

func (f *fakeEvents) Publish(ctx context.Context, event ports.SessionEvent) error {
	f.published = append(f.published, event)
	return f.err
}

func (f *fakeEvents) Close() error { return nil }

var _ ports.SessionEventPublisher = (*fakeEvents)(nil)

var errFake = errors.New("fake error")
