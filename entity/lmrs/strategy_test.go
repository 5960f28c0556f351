package lmrs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"gonum.org/v1/gonum/floats"
)

// gapScene 本车20米/秒，左侧车道有给定的前车与后车
func gapScene(leader, follower *entity.HeadwayGtu) *fakePerception {
	p := newFake(20, entity.LaneLeft)
	if leader != nil {
		p.leaders[entity.LaneLeft] = []*entity.HeadwayGtu{leader}
	}
	if follower != nil {
		p.followers[entity.LaneLeft] = []*entity.HeadwayGtu{follower}
	}
	return p
}

func TestGapAcceptance(t *testing.T) {
	open := gapScene(gtu(1, 80, 20), gtu(2, -80, 20))
	tight := gapScene(gtu(1, 80, 20), gtu(2, -5, 25))
	for _, name := range []string{"informed", "ego_headway"} {
		gap, ok := NewGapAcceptance(name)
		require.True(t, ok)
		accepted, err := gap.Accept(newContext(open), entity.DirLeft, 0.5, 0)
		require.NoError(t, err)
		assert.True(t, accepted, name)

		// 后车需要的减速度远超b*desire
		accepted, err = gap.Accept(newContext(tight), entity.DirLeft, 0.5, 0)
		require.NoError(t, err)
		assert.False(t, accepted, name)

		// 本车在当前车道已需要强烈制动
		accepted, err = gap.Accept(newContext(open), entity.DirLeft, 0.5, -3)
		require.NoError(t, err)
		assert.False(t, accepted, name)
	}
	_, ok := NewGapAcceptance("reckless")
	assert.False(t, ok)
}

func TestGapAcceptanceUsesFollowerParameters(t *testing.T) {
	// 后车更激进（更短的车头时距与更大的舒适减速度）时更容易接受
	follower := gtu(2, -30, 22)
	p := gapScene(nil, follower)
	accepted, err := GapInformed{}.Accept(newContext(p), entity.DirLeft, 0.2, 0)
	require.NoError(t, err)
	assert.False(t, accepted)

	params, err := DefaultParameters().WithOverrides(map[string]float64{"b": 3.4, "T": 0.6, "Tmax": 0.6, "Tmin": 0.5})
	require.NoError(t, err)
	follower.Parameters = params
	accepted, err = GapInformed{}.Accept(newContext(p), entity.DirLeft, 0.2, 0)
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestGapPassive(t *testing.T) {
	accepted, err := GapPassive{}.Accept(newContext(gapScene(gtu(1, 80, 20), nil)), entity.DirLeft, 1, 0)
	require.NoError(t, err)
	assert.True(t, accepted)

	accepted, err = GapPassive{}.Accept(newContext(gapScene(gtu(1, 15, 15), nil)), entity.DirLeft, 1, 0)
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestSynchronization(t *testing.T) {
	p := gapScene(gtu(1, 10, 15), nil)
	a, err := SyncNone{}.Synchronize(newContext(p), entity.DirLeft, 0.9)
	require.NoError(t, err)
	assert.True(t, math.IsInf(a, 1))

	// 意愿低于dCoop时减速度不超过b
	a, err = SyncPassive{}.Synchronize(newContext(p), entity.DirLeft, 0.6)
	require.NoError(t, err)
	assert.Less(t, a, 0.)
	assert.GreaterOrEqual(t, a, -cf.B.Default)

	// 意愿为1时可以使用bCrit
	a, err = SyncPassive{}.Synchronize(newContext(p), entity.DirLeft, 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, a, -BCRIT.Default)

	// 可开始变道的位置远在制动距离之外时不同步
	p.legal[entity.DirLeft] = -200
	a, err = SyncPassive{}.Synchronize(newContext(p), entity.DirLeft, 0.6)
	require.NoError(t, err)
	assert.True(t, math.IsInf(a, 1))
}

func TestSyncPassiveMovingStill(t *testing.T) {
	p := newFake(0, entity.LaneLeft)
	p.leaders[entity.LaneLeft] = []*entity.HeadwayGtu{gtu(1, 2, 0)}
	a, err := SyncPassiveMoving{}.Synchronize(newContext(p), entity.DirLeft, 0.9)
	require.NoError(t, err)
	assert.True(t, math.IsInf(a, 1))

	// 意愿达到dCoop时同步静止的前车
	a, err = SyncPassive{}.Synchronize(newContext(p), entity.DirLeft, 0.9)
	require.NoError(t, err)
	assert.False(t, math.IsInf(a, 1))
}

func TestSyncAlignGapNotStricterThanPassive(t *testing.T) {
	p := gapScene(gtu(1, 15, 18), gtu(2, -10, 18))
	passive, err := SyncPassive{}.Synchronize(newContext(p), entity.DirLeft, 0.7)
	require.NoError(t, err)
	align, err := SyncAlignGap{}.Synchronize(newContext(p), entity.DirLeft, 0.7)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, align, passive)
}

func TestSyncActiveYieldsToFollower(t *testing.T) {
	p := gapScene(nil, gtu(2, -3, 22))
	a, err := SyncActive{}.Synchronize(newContext(p), entity.DirLeft, 0.9)
	require.NoError(t, err)
	assert.Less(t, a, 0.)

	// 意愿低于dCoop时不主动让后车
	a, err = SyncActive{}.Synchronize(newContext(p), entity.DirLeft, 0.6)
	require.NoError(t, err)
	assert.True(t, math.IsInf(a, 1))
}

func TestCooperation(t *testing.T) {
	// 左侧车道的前车希望向右并入本车道
	merging := gtu(1, 10, 20)
	merging.State = &entity.BehaviorState{DRight: 0.9}
	p := newFake(20, entity.LaneLeft)
	p.leaders[entity.LaneLeft] = []*entity.HeadwayGtu{merging}

	a, err := CoopPassive{}.Cooperate(newContext(p), entity.DirLeft)
	require.NoError(t, err)
	assert.Less(t, a, 0.)
	assert.GreaterOrEqual(t, a, -cf.B.Default)

	// 右侧没有车道
	a, err = CoopPassive{}.Cooperate(newContext(p), entity.DirRight)
	require.NoError(t, err)
	assert.True(t, math.IsInf(a, 1))

	// courtesy限制合作减速度
	ctx := newContext(p)
	ctx.Params, err = ctx.Params.With(COURTESY, 0.2)
	require.NoError(t, err)
	a, err = CoopPassive{}.Cooperate(ctx, entity.DirLeft)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(-0.2*cf.B.Default, a, 1e-9), "a=%v", a)

	// courtesy为0时不合作
	ctx.Params, err = ctx.Params.With(COURTESY, 0)
	require.NoError(t, err)
	a, err = CoopPassive{}.Cooperate(ctx, entity.DirLeft)
	require.NoError(t, err)
	assert.True(t, math.IsInf(a, 1), "a=%v", a)

	// 意愿不足dCoop
	merging.State.DRight = 0.5
	a, err = CoopPassive{}.Cooperate(newContext(p), entity.DirLeft)
	require.NoError(t, err)
	assert.True(t, math.IsInf(a, 1))

	// 主动合作把向本车道打转向灯的车辆视为达到dCoop
	merging.Indicator = entity.DirRight
	a, err = CoopActive{}.Cooperate(newContext(p), entity.DirLeft)
	require.NoError(t, err)
	assert.Less(t, a, 0.)
}

func TestCoopPassiveMovingIgnoresStillVehicles(t *testing.T) {
	still := gtu(1, 8, 0)
	still.State = &entity.BehaviorState{DRight: 1}
	p := newFake(10, entity.LaneLeft)
	p.leaders[entity.LaneLeft] = []*entity.HeadwayGtu{still}

	a, err := CoopPassiveMoving{}.Cooperate(newContext(p), entity.DirLeft)
	require.NoError(t, err)
	assert.True(t, math.IsInf(a, 1))

	a, err = CoopPassive{}.Cooperate(newContext(p), entity.DirLeft)
	require.NoError(t, err)
	assert.False(t, math.IsInf(a, 1))
}

func TestSocialPressure(t *testing.T) {
	params := DefaultParameters()
	rho, err := SocialPressure(params, 30, 30, 10)
	require.NoError(t, err)
	assert.Equal(t, 0., rho)

	rho, err = SocialPressure(params, 30, 20, 400)
	require.NoError(t, err)
	assert.Equal(t, 0., rho)

	rho, err = SocialPressure(params, 30, 20, 10)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(10/19.33*(1-10./295), rho, 1e-9), "rho=%v", rho)

	rho, err = SocialPressure(params, 60, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1., rho)
}

func TestTailgating(t *testing.T) {
	p := newFake(25)
	p.leaders[entity.LaneCurrent] = []*entity.HeadwayGtu{gtu(1, 10, 20)}
	params := DefaultParameters()

	rho, out, err := TailNone{}.Tailgate(p, params, 30)
	require.NoError(t, err)
	assert.Equal(t, 0., rho)
	assert.Same(t, params, out)

	rho, out, err = TailRhoOnly{}.Tailgate(p, params, 30)
	require.NoError(t, err)
	assert.Greater(t, rho, 0.)
	assert.Same(t, params, out)

	rho, out, err = TailPressure{}.Tailgate(p, params, 30)
	require.NoError(t, err)
	tt, err := out.Get(cf.T)
	require.NoError(t, err)
	assert.True(t, floats.EqualWithinAbs(rho*0.56+(1-rho)*1.2, tt, 1e-9), "T=%v", tt)

	_, ok := NewTailgating("pressure")
	assert.True(t, ok)
	_, ok = NewTailgating("angry")
	assert.False(t, ok)
}
