package carfollowing_test

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

const tol = 1e-9

func defaultParams() *parameter.Set {
	return parameter.NewSet(cf.Types()...)
}

func leader(distance, speed float64) *entity.HeadwayGtu {
	return &entity.HeadwayGtu{ID: 1, Distance: distance, Speed: speed, Length: 4.5}
}

func TestEquilibrium(t *testing.T) {
	p := defaultParams()
	// a=1.25, b=2.09, s0=3, T=1.2, delta=4
	const v = 25.
	headway := 3 + v*1.2
	leaders := []*entity.HeadwayGtu{leader(headway, v)}

	acc, err := cf.NewIdmPlus().Acceleration(p, v, v, headway, leaders)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(acc, 0, tol), "IDM+ acc=%v", acc)

	acc, err = cf.NewIdmPlusMulti().Acceleration(p, v, v, headway, leaders)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(acc, 0, tol), "IDM+Multi acc=%v", acc)

	// IDM把自由项与交互项相加，在该状态下为-a
	acc, err = cf.NewIdm().Acceleration(p, v, v, headway, leaders)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(acc, -1.25, tol), "IDM acc=%v", acc)
}

func TestEquilibriumFromSubModels(t *testing.T) {
	p, err := defaultParams().With(cf.FSPEED, 1)
	require.NoError(t, err)
	m := cf.NewIdmPlus()
	sli := entity.SpeedLimitInfo{Legal: 25, MaxVehicleSpeed: 40}
	v0, err := m.DesiredSpeed(p, sli)
	require.NoError(t, err)
	h, err := m.DesiredHeadway(p, v0)
	require.NoError(t, err)
	acc, err := cf.FollowingAcceleration(m, p, v0, sli, []*entity.HeadwayGtu{leader(h, v0)})
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(acc, 0, tol))
}

func TestCollisionGuard(t *testing.T) {
	p := defaultParams()
	models := []cf.Model{cf.NewIdm(), cf.NewIdmPlus(), cf.NewIdmPlusMulti()}
	guards := []*entity.HeadwayGtu{
		leader(0, 10),
		leader(-2, 10),
		leader(math.NaN(), 10),
		{ID: 2, Parallel: true, Speed: 10},
	}
	for _, m := range models {
		for _, g := range guards {
			acc, err := m.Acceleration(p, 10, 20, 15, []*entity.HeadwayGtu{g, leader(50, 10)})
			require.NoError(t, err)
			assert.True(t, math.IsInf(acc, -1), "%s %v", m.Name(), g)
		}
	}
	// 碰撞检查先于期望速度计算，不支持期望速度的模型也返回-Inf
	acc, err := cf.FollowingAcceleration(cf.NewFixed(1), p, 10, entity.SpeedLimitInfo{Legal: 20}, []*entity.HeadwayGtu{leader(0, 0)})
	require.NoError(t, err)
	assert.True(t, math.IsInf(acc, -1))
}

func TestFreeTermBound(t *testing.T) {
	p := defaultParams()
	b0, _ := p.Get(cf.B0)
	for _, m := range []cf.Model{cf.NewIdm(), cf.NewIdmPlus(), cf.NewIdmPlusMulti()} {
		for v := 0.; v <= 60; v += 2.5 {
			for v0 := 1.; v0 <= 40; v0 += 3 {
				acc, err := m.Acceleration(p, v, v0, 3+1.2*v, nil)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, acc, -b0, "%s v=%v v0=%v", m.Name(), v, v0)
			}
		}
	}
}

func TestFreeFlowFromStandstill(t *testing.T) {
	acc, err := cf.NewIdmPlus().Acceleration(defaultParams(), 0, 30, 3, nil)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(acc, 1.25, tol))
}

func TestDynamicHeadwayFloor(t *testing.T) {
	p := defaultParams()
	// 前车远快于本车时s*取s0，交互项不会消失
	acc, err := cf.NewIdmPlus().Acceleration(p, 5, 30, 3+5*1.2, []*entity.HeadwayGtu{leader(3, 40)})
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(acc, 0, tol), "acc=%v", acc)
}

func TestMultiLeaderMonotonicity(t *testing.T) {
	p := defaultParams()
	m := cf.NewIdmPlusMulti()
	const v, v0 = 20., 30.
	h := 3 + v*1.2
	first := leader(30, 20)
	single, err := m.Acceleration(p, v, v0, h, []*entity.HeadwayGtu{first})
	require.NoError(t, err)
	plus, err := cf.NewIdmPlus().Acceleration(p, v, v0, h, []*entity.HeadwayGtu{first})
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(single, plus, tol), "single leader equals IDM+")

	faster, err := m.Acceleration(p, v, v0, h, []*entity.HeadwayGtu{first, leader(70, 30)})
	require.NoError(t, err)
	assert.LessOrEqual(t, faster, single)

	slower, err := m.Acceleration(p, v, v0, h, []*entity.HeadwayGtu{first, leader(40, 5)})
	require.NoError(t, err)
	assert.LessOrEqual(t, slower, single)
	assert.Less(t, slower, faster)

	// nLeaders=1时只考虑第一辆前车
	p1, err := p.With(cf.NLEADERS, 1)
	require.NoError(t, err)
	only, err := m.Acceleration(p1, v, v0, h, []*entity.HeadwayGtu{first, leader(40, 5)})
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(only, single, tol))
}

func TestMissingParameter(t *testing.T) {
	p := parameter.NewSet(cf.A, cf.B, cf.S0, cf.T)
	_, err := cf.NewIdmPlus().Acceleration(p, 10, 20, 15, nil)
	assert.True(t, errors.Is(err, parameter.ErrMissingParameter))
	_, err = cf.NewIdmPlus().DesiredSpeed(p, entity.SpeedLimitInfo{Legal: 10})
	assert.True(t, errors.Is(err, parameter.ErrMissingParameter))
}

func TestDesiredSpeed(t *testing.T) {
	p, err := defaultParams().With(cf.FSPEED, 1.1)
	require.NoError(t, err)
	m := cf.NewIdm()

	v0, err := m.DesiredSpeed(p, entity.SpeedLimitInfo{Legal: 20, MaxVehicleSpeed: 40})
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(v0, 22, tol))

	v0, err = m.DesiredSpeed(p, entity.SpeedLimitInfo{Legal: 20, Enforced: true, MaxVehicleSpeed: 40})
	require.NoError(t, err)
	assert.Equal(t, 20.0, v0)

	v0, err = m.DesiredSpeed(p, entity.SpeedLimitInfo{Legal: 30, MaxVehicleSpeed: 25})
	require.NoError(t, err)
	assert.Equal(t, 25.0, v0)

	h, err := m.DesiredHeadway(p, 10)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(h, 15, tol))
}

func TestStopAndApproach(t *testing.T) {
	p := defaultParams()
	m := cf.NewIdmPlus()
	sli := entity.SpeedLimitInfo{Legal: 30, Enforced: true}

	acc, err := cf.Stop(m, p, 10, sli, 0)
	require.NoError(t, err)
	assert.True(t, math.IsInf(acc, -1))

	near, err := cf.Stop(m, p, 10, sli, 20)
	require.NoError(t, err)
	far, err := cf.Stop(m, p, 10, sli, 80)
	require.NoError(t, err)
	assert.Less(t, near, far)

	// 接近较低的目标速度：距离越近减速越强，远处几乎不受影响
	soon, err := cf.ApproachTargetSpeed(m, p, 25, sli, 10, 15)
	require.NoError(t, err)
	distant, err := cf.ApproachTargetSpeed(m, p, 25, sli, 500, 15)
	require.NoError(t, err)
	assert.Less(t, soon, distant)
	assert.Less(t, soon, 0.)

	zero, err := cf.ApproachTargetSpeed(m, p, 10, sli, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, near, zero)
}

func TestSampleFSpeedRange(t *testing.T) {
	e := newEngine()
	for i := 0; i < 500; i++ {
		f := cf.SampleFSpeed(e)
		assert.GreaterOrEqual(t, f, 0.8)
		assert.LessOrEqual(t, f, 1.2)
	}
}
