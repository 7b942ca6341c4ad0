package worker

import (
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/planner"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/reconcile"
)

const (
	testVIN        = "5YJ3E1EA1JF000001"
	testHomeLat    = 52.2297
	testHomeLon    = 21.0122
	testHomeRadius = 0.001
)

type testHarness struct {
	w           *Worker
	gateway     *fakeGateway
	broker      *fakeBroker
	tokenStore  *fakeTokenStore
	fingerprint *fakeFingerprints
	pricing     *fakePricing
	sheet       *fakeSheet
	scheduler   *fakeScheduler
	cases       *fakeCases
	sessions    *fakeSessions
	events      *fakeEvents
}

func newHarness() *testHarness {
	loc, _ := time.LoadLocation("Europe/Warsaw")
	gw := &fakeGateway{}
	fps := newFakeFingerprints()
	engine := reconcile.New(gw, fps, testHomeLat, testHomeLon, testHomeRadius, loc, zap.NewNop())
	pl := planner.New(planner.DefaultPeakIntervals(), zap.NewNop())

	h := &testHarness{
		gateway:     gw,
		broker:      &fakeBroker{token: "vehicle-access-token"},
		tokenStore:  &fakeTokenStore{},
		fingerprint: fps,
		pricing:     &fakePricing{},
		sheet:       newFakeSheet(),
		scheduler:   &fakeScheduler{},
		cases:       newFakeCases(),
		sessions:    newFakeSessions(),
		events:      &fakeEvents{},
	}

	cfg := Config{
		VIN:                testVIN,
		HomeLat:            testHomeLat,
		HomeLon:            testHomeLon,
		HomeRadius:         testHomeRadius,
		BatteryCapacityKWh: 75,
		ChargingRateKW:     11,
		Consumption:        0.18,
		DailyMileage:       40,
		ChargeLimits:       ports.ChargeLimits{OptimalUpper: 80, OptimalLower: 50, Emergency: 100, ChargingRate: 11},
		WorkerURL:          "https://worker.internal",
		SchedulerIdentity:  "worker-sa@project.iam.gserviceaccount.com",
		Location:           loc,
	}

	deps := Deps{
		Gateway:     gw,
		Broker:      h.broker,
		TokenStore:  h.tokenStore,
		Engine:      engine,
		Planner:     pl,
		Fingerprint: fps,
		Pricing:     h.pricing,
		Sheet:       h.sheet,
		Scheduler:   h.scheduler,
		Cases:       h.cases,
		Sessions:    h.sessions,
		Events:      h.events,
	}

	h.w = New(cfg, deps, zap.NewNop())
	return h
}
