package lmrs

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
)

// Synchronization 同步策略
// 功能：在无法立即变道时，调整本车速度以对齐目标车道的空隙
// 参数：lat-变道方向，desire-该方向意愿
// 返回：需要与其他来源取最小值的加速度，+Inf表示不同步
type Synchronization interface {
	Name() string
	Synchronize(ctx *Context, lat entity.LateralDirectionality, desire float64) (float64, error)
}

// NewSynchronization 按名称创建同步策略
func NewSynchronization(name string) (Synchronization, bool) {
	switch name {
	case "none":
		return SyncNone{}, true
	case "passive":
		return SyncPassive{}, true
	case "passive_moving":
		return SyncPassiveMoving{}, true
	case "align_gap":
		return SyncAlignGap{}, true
	case "active":
		return SyncActive{}, true
	default:
		return nil, false
	}
}

// syncHorizon 可开始变道位置在该距离以内时才进行同步：以b制动到静止的距离加s0
func syncHorizon(ctx *Context) (float64, error) {
	r := ctx.Params.Reader()
	b, s0 := r.Get(cf.B), r.Get(cf.S0)
	if err := r.Err(); err != nil {
		return 0, err
	}
	v := ctx.Ego.Speed
	return v*v/(2*b) + s0, nil
}

// withinHorizon 可开始变道的位置是否足够近
func withinHorizon(ctx *Context, lat entity.LateralDirectionality) (bool, error) {
	xMerge := mergeDistance(ctx.Perception, lat)
	if xMerge <= 0 {
		return true, nil
	}
	h, err := syncHorizon(ctx)
	if err != nil {
		return false, err
	}
	return xMerge <= h, nil
}

// syncLeader 被同步的目标车道前车
// 说明：意愿达到dCoop时同步第一辆前车，否则同步第一辆行驶中的前车
func syncLeader(ctx *Context, lat entity.LateralDirectionality, desire float64) (*entity.HeadwayGtu, error) {
	dCoop, err := ctx.Params.Get(DCOOP)
	if err != nil {
		return nil, err
	}
	for _, g := range ctx.Perception.Leaders(entity.RelativeLaneOf(lat, 1)) {
		if g.Parallel {
			continue
		}
		if desire >= dCoop || g.Speed > 0 {
			return g, nil
		}
	}
	return nil, nil
}

// passiveSync 跟随目标车道前车，减速度按意愿限制
func passiveSync(ctx *Context, lat entity.LateralDirectionality, desire float64) (float64, error) {
	if ok, err := withinHorizon(ctx, lat); err != nil || !ok {
		return mathutil.INF, err
	}
	leader, err := syncLeader(ctx, lat, desire)
	if err != nil || leader == nil {
		return mathutil.INF, err
	}
	a, err := singleAcceleration(ctx.Model, ctx.Params, ctx.Sli, leader.Distance, ctx.Ego.Speed, leader.Speed, desire)
	if err != nil {
		return 0, err
	}
	return gentleUrgency(ctx.Params, a, desire)
}

// SyncNone 不同步
type SyncNone struct{}

func (SyncNone) Name() string { return "none" }

func (SyncNone) Synchronize(*Context, entity.LateralDirectionality, float64) (float64, error) {
	return mathutil.INF, nil
}

// SyncPassive 被动同步：跟随目标车道前车
type SyncPassive struct{}

func (SyncPassive) Name() string { return "passive" }

func (SyncPassive) Synchronize(ctx *Context, lat entity.LateralDirectionality, desire float64) (float64, error) {
	return passiveSync(ctx, lat, desire)
}

// SyncPassiveMoving 被动同步，本车静止时不同步
type SyncPassiveMoving struct{}

func (SyncPassiveMoving) Name() string { return "passive_moving" }

func (SyncPassiveMoving) Synchronize(ctx *Context, lat entity.LateralDirectionality, desire float64) (float64, error) {
	if ctx.Ego.Speed < stillSpeed {
		return mathutil.INF, nil
	}
	return passiveSync(ctx, lat, desire)
}

// SyncAlignGap 对齐空隙：以目标车道前后车构成的空隙中点为目标
// 算法说明：
// 1. 没有后车时等同于被动同步
// 2. 虚拟前车位于空隙中点前方一个期望车距处，以空隙平均速度行驶
// 3. 与被动同步结果取较大值，避免比跟随前车更保守
type SyncAlignGap struct{}

func (SyncAlignGap) Name() string { return "align_gap" }

func (SyncAlignGap) Synchronize(ctx *Context, lat entity.LateralDirectionality, desire float64) (float64, error) {
	aPassive, err := passiveSync(ctx, lat, desire)
	if err != nil {
		return 0, err
	}
	if math.IsInf(aPassive, 1) {
		return aPassive, nil
	}
	leader, err := syncLeader(ctx, lat, desire)
	if err != nil {
		return 0, err
	}
	follower := firstNonParallel(ctx.Perception.Followers(entity.RelativeLaneOf(lat, 1)))
	if leader == nil || follower == nil {
		return aPassive, nil
	}
	// 本车居中于空隙时车头相对当前位置的偏移
	middle := (leader.Distance + follower.Distance) / 2
	gapSpeed := (leader.Speed + follower.Speed) / 2
	gap, err := ctx.Model.DesiredHeadway(ctx.Params, gapSpeed)
	if err != nil {
		return 0, err
	}
	aAlign, err := singleAcceleration(ctx.Model, ctx.Params, ctx.Sli,
		math.Max(middle, 0)+gap, ctx.Ego.Speed, gapSpeed, desire)
	if err != nil {
		return 0, err
	}
	aAlign, err = gentleUrgency(ctx.Params, aAlign, desire)
	if err != nil {
		return 0, err
	}
	return math.Max(aPassive, aAlign), nil
}

// SyncActive 主动同步
// 算法说明：
// 1. 先按被动同步跟随目标车道前车
// 2. 意愿达到dCoop且目标车道后车不愿接受本车（减速度超过b*desire）并且本车不比它快时，
// 本车减速让其通过，之后以其为前车
type SyncActive struct{}

func (SyncActive) Name() string { return "active" }

func (SyncActive) Synchronize(ctx *Context, lat entity.LateralDirectionality, desire float64) (float64, error) {
	a, err := passiveSync(ctx, lat, desire)
	if err != nil {
		return 0, err
	}
	r := ctx.Params.Reader()
	b, dCoop := r.Get(cf.B), r.Get(DCOOP)
	if err := r.Err(); err != nil {
		return 0, err
	}
	if desire < dCoop {
		return a, nil
	}
	if ok, err := withinHorizon(ctx, lat); err != nil || !ok {
		return a, err
	}
	follower := firstNonParallel(ctx.Perception.Followers(entity.RelativeLaneOf(lat, 1)))
	if follower == nil || ctx.Ego.Speed > follower.Speed {
		return a, nil
	}
	aFollower, err := singleAcceleration(ctx.Model, ctx.Params, ctx.Sli,
		-follower.Distance, follower.Speed, ctx.Ego.Speed, desire)
	if err != nil {
		return 0, err
	}
	if aFollower < -b*desire {
		yield, err := gentleUrgency(ctx.Params, -b, desire)
		if err != nil {
			return 0, err
		}
		a = math.Min(a, yield)
	}
	return a, nil
}

// deadEndAcceleration 车道尽头前停车
// 功能：当前车道存在尽头且尚未变道时，在尽头前停车
func deadEndAcceleration(ctx *Context) (float64, error) {
	a := mathutil.INF
	for _, info := range ctx.Perception.LaneChangeInfo(entity.LaneCurrent) {
		if !info.DeadEnd {
			continue
		}
		acc, err := cf.Stop(ctx.Model, ctx.Params, ctx.Ego.Speed, ctx.Sli, info.RemainingDistance)
		if err != nil {
			return 0, err
		}
		a = math.Min(a, acc)
	}
	return a, nil
}
