package lmrs

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
	"gonum.org/v1/gonum/floats"
)

func passiveComponents(mandatory ...MandatoryIncentive) Components {
	return Components{
		Mandatory:       mandatory,
		Synchronization: SyncPassive{},
		Cooperation:     CoopPassive{},
		GapAcceptance:   GapInformed{},
		Tailgating:      TailNone{},
	}
}

func newPlanner(t *testing.T, c Components) *Lmrs {
	l, err := New(cf.NewIdmPlus(), DefaultParameters(), c, 0.5)
	require.NoError(t, err)
	return l
}

func TestNewValidates(t *testing.T) {
	_, err := New(cf.NewIdmPlus(), parameter.NewSet(cf.Types()...), passiveComponents(), 0.5)
	assert.True(t, errors.Is(err, parameter.ErrMissingParameter), "err=%v", err)

	_, err = New(cf.NewIdmPlus(), DefaultParameters(), passiveComponents(), 0)
	assert.True(t, errors.Is(err, parameter.ErrInvalidParameter), "err=%v", err)

	_, err = New(cf.NewIdmPlus(), DefaultParameters(), Components{}, 0.5)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "err=%v", err)

	_, err = New(nil, DefaultParameters(), passiveComponents(), 0.5)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "err=%v", err)
}

func TestPlanRejectsInvalidSpeed(t *testing.T) {
	l := newPlanner(t, passiveComponents())
	_, err := l.Plan(newFake(math.NaN()))
	assert.True(t, errors.Is(err, entity.ErrInvalidGtuState), "err=%v", err)
	_, err = l.Plan(newFake(-1))
	assert.True(t, errors.Is(err, entity.ErrInvalidGtuState), "err=%v", err)
}

func TestPlanStateMachine(t *testing.T) {
	l := newPlanner(t, passiveComponents(fixedMandatory{Desire{Left: 0.7}}))
	p := newFake(20, entity.LaneLeft)
	p.leaders[entity.LaneLeft] = []*entity.HeadwayGtu{gtu(1, 40, 20)}
	p.followers[entity.LaneLeft] = []*entity.HeadwayGtu{gtu(2, -5, 25)}

	// 后车过近，先同步
	dec, err := l.Plan(p)
	require.NoError(t, err)
	assert.Equal(t, Synchronizing, dec.State)
	assert.Equal(t, Synchronizing, l.State())
	assert.Equal(t, entity.DirNone, dec.Intent.Direction)
	assert.Equal(t, 0., dec.Published.DLC)
	assert.Equal(t, 0.7, dec.Published.DLeft)

	// 空隙打开后开始变道
	p.followers[entity.LaneLeft] = []*entity.HeadwayGtu{gtu(2, -100, 20)}
	dec, err = l.Plan(p)
	require.NoError(t, err)
	assert.Equal(t, ChangingLane, dec.State)
	assert.Equal(t, Intent{Direction: entity.DirLeft, Elapsed: 0.5, Duration: 3}, dec.Intent)
	assert.Equal(t, entity.DirLeft, dec.Indicator)
	assert.Equal(t, 0.7, dec.Published.DLC)
	assert.True(t, floats.EqualWithinAbs(0.7*0.56+0.3*1.2, l.Headway(), 1e-12), "T=%v", l.Headway())

	// 变道持续lcDur
	for i := 0; i < 4; i++ {
		dec, err = l.Plan(p)
		require.NoError(t, err)
		assert.Equal(t, ChangingLane, dec.State)
		assert.False(t, dec.Intent.Finished())
		assert.Equal(t, ChangingLane, l.State())
	}
	dec, err = l.Plan(p)
	require.NoError(t, err)
	assert.True(t, dec.Intent.Finished())
	assert.Equal(t, 0.7, dec.Published.DLC)
	assert.Equal(t, Idle, l.State())
	assert.False(t, l.LaneChange().Active())
}

func TestPlanFollowsBothLanesWhileChanging(t *testing.T) {
	l := newPlanner(t, passiveComponents(fixedMandatory{Desire{Left: 0.7}}))
	p := newFake(20, entity.LaneLeft)
	dec, err := l.Plan(p)
	require.NoError(t, err)
	require.Equal(t, ChangingLane, dec.State)
	assert.Greater(t, dec.Acceleration, 0.)

	// 目标车道出现慢车
	p.leaders[entity.LaneLeft] = []*entity.HeadwayGtu{gtu(1, 8, 10)}
	dec, err = l.Plan(p)
	require.NoError(t, err)
	assert.Less(t, dec.Acceleration, -cf.B.Default)
}

func TestPlanIdleWithoutDesire(t *testing.T) {
	l := newPlanner(t, passiveComponents(fixedMandatory{Desire{Left: 0.2}}))
	dec, err := l.Plan(newFake(20, entity.LaneLeft))
	require.NoError(t, err)
	assert.Equal(t, Idle, dec.State)
	assert.Equal(t, entity.DirNone, dec.Indicator)
	free, err := cf.FreeAcceleration(cf.NewIdmPlus(), DefaultParameters(), 20, entity.SpeedLimitInfo{Legal: 30})
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(free, dec.Acceleration, 1e-12))
}

func TestPlanDeadEnd(t *testing.T) {
	l := newPlanner(t, passiveComponents(Route{}))
	p := newFake(15)
	p.infos[entity.LaneCurrent] = []entity.LaneChangeInfo{{RemainingDistance: 30, RequiredLaneChanges: 1, DeadEnd: true}}
	dec, err := l.Plan(p)
	require.NoError(t, err)
	assert.Less(t, dec.Acceleration, 0.)
}

func TestHeadwayRelaxation(t *testing.T) {
	l := newPlanner(t, passiveComponents())
	_, err := l.Plan(newFake(20))
	require.NoError(t, err)
	assert.Equal(t, 1.2, l.Headway())

	// 新前车以意愿1切入
	p := newFake(20)
	leader := gtu(5, 50, 20)
	leader.State = &entity.BehaviorState{DLC: 1}
	p.leaders[entity.LaneCurrent] = []*entity.HeadwayGtu{leader}
	_, err = l.Plan(p)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(0.56, l.Headway(), 1e-12), "T=%v", l.Headway())

	// 同一前车不再缩短车头时距，开始向Tmax松弛
	_, err = l.Plan(p)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(0.5728, l.Headway(), 1e-12), "T=%v", l.Headway())
}

func TestPlanSocioDesiredSpeed(t *testing.T) {
	c := passiveComponents()
	c.SocioDesiredSpeed = true
	l := newPlanner(t, c)
	p := newFake(20)
	follower := gtu(2, -10, 25)
	follower.State = &entity.BehaviorState{Rho: 1, DesiredSpeed: 40}
	p.followers[entity.LaneCurrent] = []*entity.HeadwayGtu{follower}
	dec, err := l.Plan(p)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(35, dec.Published.DesiredSpeed, 1e-12), "v0=%v", dec.Published.DesiredSpeed)

	// 未启用时不受影响
	l = newPlanner(t, passiveComponents())
	dec, err = l.Plan(p)
	require.NoError(t, err)
	assert.Equal(t, 30., dec.Published.DesiredSpeed)
}

func TestPlanAccelerationIncentiveOnTargetLane(t *testing.T) {
	c := passiveComponents(fixedMandatory{Desire{Left: 0.7}})
	c.Acceleration = []AccelerationIncentive{LaneChangers{}, SpeedLimitTransitions{}}
	l := newPlanner(t, c)
	p := newFake(30, entity.LaneLeft)
	// 目标车道前方限速降低
	p.limits[entity.LaneLeft] = entity.SpeedLimitProspect{
		Current: entity.SpeedLimitInfo{Legal: 30},
		Changes: []entity.SpeedLimitChange{{Distance: 100, Legal: 10}},
	}
	dec, err := l.Plan(p)
	require.NoError(t, err)
	require.Equal(t, ChangingLane, dec.State)
	assert.Less(t, dec.Acceleration, 0.)
}

var errAccelerate = errors.New("accelerate failed")

type failingAcceleration struct{ fail bool }

func (*failingAcceleration) Name() string { return "failing" }

func (f *failingAcceleration) Accelerate(*Context, entity.RelativeLane, float64, *Action) error {
	if f.fail {
		return errAccelerate
	}
	return nil
}

func TestPlanFailureKeepsState(t *testing.T) {
	m := &fixedMandatory{}
	inc := &failingAcceleration{}
	c := passiveComponents(m)
	c.Acceleration = []AccelerationIncentive{inc}
	l := newPlanner(t, c)
	p := newFake(20, entity.LaneLeft)
	_, err := l.Plan(p)
	require.NoError(t, err)
	headway := l.Headway()

	// 本步原本会开始变道并缩短车头时距
	m.d = Desire{Left: 0.7}
	inc.fail = true
	_, err = l.Plan(p)
	assert.ErrorIs(t, err, errAccelerate)
	assert.False(t, l.LaneChange().Active())
	assert.Equal(t, headway, l.Headway())
	assert.Equal(t, Idle, l.State())

	inc.fail = false
	dec, err := l.Plan(p)
	require.NoError(t, err)
	assert.Equal(t, ChangingLane, dec.State)
	assert.Equal(t, 0.5, dec.Intent.Elapsed)
}
