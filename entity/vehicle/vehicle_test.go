package vehicle

import (
	"context"
	"math"
	"strconv"
	"testing"

	"connectrpc.com/connect"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/clock"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/lmrs"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
)

// testWorld 只包含车道与车辆的最小仿真
type testWorld struct {
	clock *clock.Clock
	lanes *lane.LaneManager
	vm    *VehicleManager
	rc    *config.RuntimeConfig
}

func (w *testWorld) Clock() *clock.Clock                    { return w.clock }
func (w *testWorld) LaneManager() entity.ILaneManager       { return w.lanes }
func (w *testWorld) TrafficLight() entity.ITrafficLight     { return nil }
func (w *testWorld) VehicleManager() entity.IVehicleManager { return w.vm }
func (w *testWorld) RuntimeConfig() *config.RuntimeConfig   { return w.rc }

func testRoad(lanes int, length float64) config.Config {
	return config.Config{
		Control: config.Control{Step: config.ControlStep{Start: 0, Total: 1000, Interval: 0.5}, Seed: 1},
		Road: config.Road{
			Length:      length,
			Lanes:       lanes,
			SpeedLimits: []config.SpeedSection{{Start: 0, Legal: 30}},
		},
		VehicleTypes: map[string]config.VehicleType{"car": {}},
	}
}

func testVehicle(id int32, laneIndex int, s, speed float64) *personv2.Person {
	return &personv2.Person{
		Id:               id,
		VehicleAttribute: &personv2.VehicleAttribute{Length: 4.5, Width: 2, MaxSpeed: 40},
		Home: &geov2.Position{LanePosition: &geov2.LanePosition{
			LaneId: int32(laneIndex),
			S:      s,
		}},
		Labels: map[string]string{labelSpeed: strconv.FormatFloat(speed, 'f', -1, 64)},
	}
}

// departingLater 推迟发车时刻，使同一步内的放行顺序确定
func departingLater(p *personv2.Person, t float64) *personv2.Person {
	p.Labels[labelDeparture] = strconv.FormatFloat(t, 'f', -1, 64)
	return p
}

func newTestWorld(t *testing.T, c config.Config, fleet ...*personv2.Person) *testWorld {
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	w := &testWorld{rc: rc, clock: clock.New(rc.C.Step), lanes: lane.NewManager()}
	w.lanes.Init(rc.All.Road)
	w.vm = NewManager(w)
	require.NoError(t, w.vm.Init(rc.All, fleet))
	return w
}

func (w *testWorld) prepare() {
	w.clock.Tick()
	w.vm.PrepareNode()
	w.lanes.Prepare()
	w.vm.Prepare()
}

func (w *testWorld) update() {
	w.vm.Update(w.clock.DT)
	w.lanes.Update()
}

func (w *testWorld) vehicle(id int32) *Vehicle {
	return w.vm.data[id]
}

func TestComputeVAndDistance(t *testing.T) {
	v, d := computeVAndDistance(10, 2, 0.5)
	assert.InDelta(t, 11, v, 1e-9)
	assert.InDelta(t, 5.25, d, 1e-9)

	// 步内停车
	v, d = computeVAndDistance(1, -4, 0.5)
	assert.Equal(t, 0., v)
	assert.InDelta(t, 0.125, d, 1e-9)

	v, d = computeVAndDistance(12, math.Inf(-1), 0.5)
	assert.Equal(t, 0., v)
	assert.Equal(t, 0., d)
}

func TestPerceptionNeighbors(t *testing.T) {
	w := newTestWorld(t, testRoad(3, 1000),
		testVehicle(0, 1, 100, 20),
		testVehicle(1, 1, 130, 20),
		testVehicle(2, 1, 80, 20),
		testVehicle(3, 0, 102, 20),
		testVehicle(4, 2, 60, 20),
	)
	w.prepare()
	running, pending, _ := w.vm.Stats()
	require.Equal(t, 5, running)
	require.Equal(t, 0, pending)

	p := w.vehicle(0).perception
	assert.Equal(t, int32(0), p.Ego().ID)
	assert.Equal(t, 20., p.Ego().Speed)

	leaders := p.Leaders(entity.LaneCurrent)
	require.Len(t, leaders, 1)
	assert.Equal(t, int32(1), leaders[0].ID)
	assert.InDelta(t, 25.5, leaders[0].Distance, 1e-9)

	followers := p.Followers(entity.LaneCurrent)
	require.Len(t, followers, 1)
	assert.Equal(t, int32(2), followers[0].ID)
	assert.InDelta(t, -15.5, followers[0].Distance, 1e-9)

	left := p.Leaders(entity.LaneLeft)
	require.Len(t, left, 1)
	assert.Equal(t, int32(3), left[0].ID)
	assert.True(t, left[0].Parallel)
	alongside := p.Alongside(entity.DirLeft)
	require.Len(t, alongside, 1)
	assert.Equal(t, int32(3), alongside[0].ID)
	assert.Empty(t, p.Alongside(entity.DirRight))

	right := p.Followers(entity.LaneRight)
	require.Len(t, right, 1)
	assert.Equal(t, int32(4), right[0].ID)
	assert.InDelta(t, -35.5, right[0].Distance, 1e-9)
	assert.Empty(t, p.Leaders(entity.LaneRight))

	assert.True(t, p.CrossSection(entity.LaneLeft))
	assert.True(t, p.CrossSection(entity.LaneRight))
	assert.False(t, p.CrossSection(entity.RelativeLane(2)))
	assert.False(t, p.CrossSection(entity.RelativeLane(-2)))
}

func TestLegalLaneChangePossibility(t *testing.T) {
	c := testRoad(2, 1000)
	c.Road.NoChange = []config.NoChangeZone{{Start: 200, End: 300}}
	w := newTestWorld(t, c, testVehicle(0, 0, 250, 10), testVehicle(1, 0, 100, 10))
	w.prepare()

	inside := w.vehicle(0).perception
	assert.InDelta(t, -50, inside.LegalLaneChangePossibility(entity.LaneCurrent, entity.DirRight), 1e-9)
	assert.InDelta(t, 750, inside.PhysicalLaneChangePossibility(entity.LaneCurrent, entity.DirRight), 1e-9)
	assert.Equal(t, 0., inside.LegalLaneChangePossibility(entity.LaneCurrent, entity.DirLeft))

	before := w.vehicle(1).perception
	assert.InDelta(t, 100, before.LegalLaneChangePossibility(entity.LaneCurrent, entity.DirRight), 1e-9)
}

func TestDeadEndLaneChangeInfo(t *testing.T) {
	c := testRoad(3, 1000)
	c.Road.LaneDrops = []config.LaneEnd{{Lane: 2, Position: 300}}
	w := newTestWorld(t, c, testVehicle(0, 2, 100, 10))
	w.prepare()

	p := w.vehicle(0).perception
	infos := p.LaneChangeInfo(entity.LaneCurrent)
	require.Len(t, infos, 1)
	assert.Equal(t, entity.LaneChangeInfo{RemainingDistance: 200, RequiredLaneChanges: 1, DeadEnd: true}, infos[0])
	assert.Empty(t, p.LaneChangeInfo(entity.LaneLeft))
	assert.InDelta(t, 200, p.PhysicalLaneChangePossibility(entity.LaneCurrent, entity.DirLeft), 1e-9)
}

func TestConflictStream(t *testing.T) {
	c := testRoad(1, 1000)
	c.Road.Conflicts = []config.Conflict{{
		ID: 7, Lane: 0, Position: 400, Length: 10, Type: "crossing", Rule: "yield",
		Stream: config.ConflictStream{Headway: 12, Speed: 10, Length: 4},
	}}
	w := newTestWorld(t, c, testVehicle(0, 0, 200, 10))
	w.prepare()

	conflicts := w.vehicle(0).perception.Conflicts(entity.LaneCurrent)
	require.Len(t, conflicts, 1)
	hc := conflicts[0]
	assert.InDelta(t, 200, hc.Distance, 1e-9)
	assert.Equal(t, entity.RuleYield, hc.Rule)
	// t=0.5：第1、2辆车分别在115米与235米外，第3辆超出前视距离
	require.Len(t, hc.Upstream, 2)
	assert.InDelta(t, 115, hc.Upstream[0].Distance, 1e-9)
	assert.Equal(t, int32(-7002), hc.Upstream[0].ID)
	require.Len(t, hc.Downstream, 1)
	assert.InDelta(t, 1, hc.Downstream[0].Distance, 1e-9)
}

func TestRunToRoadEnd(t *testing.T) {
	w := newTestWorld(t, testRoad(1, 200), testVehicle(0, 0, 10, 20))
	v := w.vehicle(0)
	for i := 0; i < 100 && !v.finished; i++ {
		w.prepare()
		w.update()
	}
	require.True(t, v.finished)
	assert.Equal(t, int32(1), w.vm.runtime.NumCompletedTrips)
	assert.Equal(t, int32(0), w.vm.runtime.NumFailures)
	assert.Greater(t, w.vm.runtime.TravelDistance, 189.)

	w.prepare()
	running, pending, stats := w.vm.Stats()
	assert.Equal(t, 0, running)
	assert.Equal(t, 0, pending)
	assert.Equal(t, int32(1), stats.NumCompletedTrips)
	assert.Equal(t, personv2.Status_STATUS_SLEEP, v.Status())
	assert.Nil(t, v.ToMotionPb().Position.LanePosition)
	assert.Nil(t, w.lanes.Get(0).FirstVehicle())
}

func TestPlanningFailureKeepsSpeed(t *testing.T) {
	w := newTestWorld(t, testRoad(1, 1000), testVehicle(0, 0, 10, 20))
	w.prepare()
	v := w.vehicle(0)
	v.snapshot.V = math.NaN()
	v.prepare()
	w.update()

	assert.Equal(t, int32(1), w.vm.runtime.NumFailures)
	assert.Equal(t, 0., v.runtime.A)
	assert.Equal(t, 20., v.runtime.V)
	assert.InDelta(t, 20, v.runtime.S, 1e-9)
	assert.Equal(t, entity.DirNone, v.runtime.LC.Direction)
}

func TestBlockedDeparture(t *testing.T) {
	w := newTestWorld(t, testRoad(1, 1000), testVehicle(0, 0, 10, 0), departingLater(testVehicle(1, 0, 12, 0), 0.5))
	w.prepare()
	running, pending, _ := w.vm.Stats()
	assert.Equal(t, 1, running)
	assert.Equal(t, 1, pending)
	assert.Equal(t, personv2.Status_STATUS_SLEEP, w.vehicle(1).Status())
	assert.NotNil(t, w.vehicle(1).ToMotionPb().Position.LanePosition)
}

func TestLaneChangeShadow(t *testing.T) {
	w := newTestWorld(t, testRoad(2, 1000), testVehicle(0, 0, 100, 10))
	w.prepare()
	v := w.vehicle(0)
	from, to := w.lanes.Get(0), w.lanes.Get(1)

	v.updateLaneChange(lmrs.Intent{Direction: entity.DirRight, Elapsed: 0.5, Duration: 3})
	w.prepare()
	assert.Equal(t, from, v.runtime.Lane)
	assert.Equal(t, to, v.runtime.LC.ShadowLane)
	require.NotNil(t, to.FirstVehicle())
	assert.Equal(t, int32(0), to.FirstVehicle().Value.ID())
	require.NotNil(t, from.FirstVehicle())

	v.updateLaneChange(lmrs.Intent{Direction: entity.DirRight, Elapsed: 1.5, Duration: 3})
	assert.Equal(t, to, v.runtime.Lane)
	assert.Equal(t, from, v.runtime.LC.ShadowLane)
	assert.True(t, v.runtime.LC.Switched)
	w.prepare()

	v.updateLaneChange(lmrs.Intent{Direction: entity.DirRight, Elapsed: 3, Duration: 3})
	assert.Equal(t, entity.DirNone, v.runtime.LC.Direction)
	w.prepare()
	assert.Nil(t, from.FirstVehicle())
	require.NotNil(t, to.FirstVehicle())
	assert.Equal(t, to, v.Lane())
}

func TestDemandFleet(t *testing.T) {
	c := testRoad(3, 1000)
	c.Demand = []config.Demand{{Type: "car", Count: 3, Interval: 2, Lane: -1, Speed: 10}}
	fleet := demandFleet(c, 0, func() int { return 1 })
	require.Len(t, fleet, 3)
	for i, p := range fleet {
		assert.Equal(t, int32(i), p.Id)
		assert.Equal(t, int32(1), p.Home.LanePosition.LaneId)
		assert.Equal(t, defaultLength, p.Home.LanePosition.S)
		_, _, _, departure, speed, err := parseLabels(p, 0)
		require.NoError(t, err)
		assert.Equal(t, float64(2*i), departure)
		assert.Equal(t, 10., speed)
	}

	w := newTestWorld(t, c)
	assert.Len(t, w.vm.data, 3)
}

func TestParseLabels(t *testing.T) {
	p := &personv2.Person{Id: 3, Labels: map[string]string{
		labelVehicleType: "bus",
		labelExit:        "true",
		labelBusStops:    "1, 2",
	}}
	typeName, exit, stops, departure, speed, err := parseLabels(p, 5)
	require.NoError(t, err)
	assert.Equal(t, "bus", typeName)
	assert.True(t, exit)
	assert.Equal(t, map[int32]bool{1: true, 2: true}, stops)
	assert.Equal(t, 5., departure)
	assert.Equal(t, 0., speed)

	p.Labels[labelExit] = "maybe"
	_, _, _, _, _, err = parseLabels(p, 0)
	assert.Error(t, err)
}

func TestApplyAttribute(t *testing.T) {
	params := lmrs.DefaultParameters()
	attr := &personv2.VehicleAttribute{
		Length: 12, Width: 2.5, MaxSpeed: 25,
		UsualAcceleration:        0.8,
		UsualBrakingAcceleration: -3,
		MaxBrakingAcceleration:   -6,
		Headway:                  1.5,
	}
	require.NoError(t, checkAttribute(1, attr))
	params, err := applyAttribute(params, attr)
	require.NoError(t, err)
	b, _ := params.Get(cf.B)
	assert.Equal(t, 3., b)
	bCrit, _ := params.Get(lmrs.BCRIT)
	assert.Equal(t, 6., bCrit)
	a, _ := params.Get(cf.A)
	assert.Equal(t, 0.8, a)
	tMax, _ := params.Get(lmrs.TMAX)
	assert.Equal(t, 1.5, tMax)

	assert.Error(t, checkAttribute(2, &personv2.VehicleAttribute{Length: 4, Width: 2, MaxSpeed: 30, MinGap: -1}))
	assert.Error(t, checkAttribute(3, nil))
}

func TestNewVehicleRejectsBadInput(t *testing.T) {
	c := testRoad(2, 1000)
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	w := &testWorld{rc: rc, clock: clock.New(rc.C.Step), lanes: lane.NewManager()}
	w.lanes.Init(rc.All.Road)
	w.vm = NewManager(w)

	assert.Error(t, w.vm.Init(rc.All, []*personv2.Person{testVehicle(0, 5, 100, 0)}))
	w.vm = NewManager(w)
	assert.Error(t, w.vm.Init(rc.All, []*personv2.Person{testVehicle(0, 0, 2, 0)}))
	w.vm = NewManager(w)
	exitBound := testVehicle(0, 0, 100, 0)
	exitBound.Labels[labelExit] = "true"
	assert.Error(t, w.vm.Init(rc.All, []*personv2.Person{exitBound}))
	w.vm = NewManager(w)
	assert.Error(t, w.vm.Init(rc.All, []*personv2.Person{testVehicle(0, 0, 100, 0), testVehicle(0, 1, 100, 0)}))
}

func TestPersonService(t *testing.T) {
	w := newTestWorld(t, testRoad(1, 1000), testVehicle(0, 0, 10, 0), departingLater(testVehicle(1, 0, 12, 0), 0.5))
	w.prepare()

	_, err := w.vm.GetPerson(context.Background(), connect.NewRequest(&personv2.GetPersonRequest{PersonId: 9}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	res, err := w.vm.GetPerson(context.Background(), connect.NewRequest(&personv2.GetPersonRequest{PersonId: 0}))
	require.NoError(t, err)
	assert.Equal(t, personv2.Status_STATUS_DRIVING, res.Msg.Person.Motion.Status)
	assert.Equal(t, int32(0), res.Msg.Person.Base.Id)

	persons, err := w.vm.GetPersons(context.Background(), connect.NewRequest(&personv2.GetPersonsRequest{
		ExcludeStatuses: []personv2.Status{personv2.Status_STATUS_SLEEP},
	}))
	require.NoError(t, err)
	require.Len(t, persons.Msg.Persons, 1)
	assert.Equal(t, int32(0), persons.Msg.Persons[0].Motion.Id)
	assert.Nil(t, persons.Msg.Persons[0].Base)

	_, err = w.vm.GetPersons(context.Background(), connect.NewRequest(&personv2.GetPersonsRequest{PersonIds: []int32{1, 5}}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}
