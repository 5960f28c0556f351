package lmrs

import (
	"errors"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// GapAcceptance 空隙接受策略
// 功能：判断插入目标车道的空隙是否安全
// 参数：lat-变道方向，desire-该方向意愿，ownAcc-本车在当前车道的跟车加速度
type GapAcceptance interface {
	Name() string
	Accept(ctx *Context, lat entity.LateralDirectionality, desire, ownAcc float64) (bool, error)
}

// NewGapAcceptance 按名称创建空隙接受策略
func NewGapAcceptance(name string) (GapAcceptance, bool) {
	switch name {
	case "informed":
		return GapInformed{}, true
	case "ego_headway":
		return GapEgoHeadway{}, true
	case "passive":
		return GapPassive{}, true
	default:
		return nil, false
	}
}

// gapThreshold 可接受的最大减速度：-b*desire
func gapThreshold(ctx *Context, desire float64) (float64, error) {
	b, err := ctx.Params.Get(cf.B)
	if err != nil {
		return 0, err
	}
	return -b * desire, nil
}

// newNeighbors 目标车道的新前车与新后车
func newNeighbors(ctx *Context, lat entity.LateralDirectionality) (leader, follower *entity.HeadwayGtu) {
	lane := entity.RelativeLaneOf(lat, 1)
	return firstNonParallel(ctx.Perception.Leaders(lane)), firstNonParallel(ctx.Perception.Followers(lane))
}

// followerAcceleration 新后车以本车为前车的加速度
// 说明：优先使用感知到的后车参数，参数不全时以本车参数推断
func followerAcceleration(
	ctx *Context, follower *entity.HeadwayGtu, desire float64, informed bool,
) (float64, error) {
	if informed && follower.Parameters != nil {
		a, err := singleAcceleration(ctx.Model, follower.Parameters, ctx.Sli,
			-follower.Distance, follower.Speed, ctx.Ego.Speed, desire)
		if !errors.Is(err, parameter.ErrMissingParameter) {
			return a, err
		}
	}
	return singleAcceleration(ctx.Model, ctx.Params, ctx.Sli,
		-follower.Distance, follower.Speed, ctx.Ego.Speed, desire)
}

// GapInformed 了解后车参数的空隙接受
// 算法说明：新后车、本车对新前车以及本车当前的加速度都不低于-b*desire时接受
type GapInformed struct{}

func (GapInformed) Name() string { return "informed" }

func (GapInformed) Accept(ctx *Context, lat entity.LateralDirectionality, desire, ownAcc float64) (bool, error) {
	threshold, err := gapThreshold(ctx, desire)
	if err != nil {
		return false, err
	}
	leader, follower := newNeighbors(ctx, lat)
	if follower != nil {
		aFollow, err := followerAcceleration(ctx, follower, desire, true)
		if err != nil {
			return false, err
		}
		if aFollow < threshold {
			log.Debugf("gtu %d reject gap %v: follower %d a=%.2f", ctx.Ego.ID, lat, follower.ID, aFollow)
			return false, nil
		}
	}
	if leader != nil {
		aSelf, err := singleAcceleration(ctx.Model, ctx.Params, ctx.Sli,
			leader.Distance, ctx.Ego.Speed, leader.Speed, desire)
		if err != nil {
			return false, err
		}
		if aSelf < threshold {
			log.Debugf("gtu %d reject gap %v: leader %d a=%.2f", ctx.Ego.ID, lat, leader.ID, aSelf)
			return false, nil
		}
	}
	return ownAcc >= threshold, nil
}

// GapEgoHeadway 以本车参数评估空隙（双加速度步）
type GapEgoHeadway struct{}

func (GapEgoHeadway) Name() string { return "ego_headway" }

func (GapEgoHeadway) Accept(ctx *Context, lat entity.LateralDirectionality, desire, ownAcc float64) (bool, error) {
	threshold, err := gapThreshold(ctx, desire)
	if err != nil {
		return false, err
	}
	t, err := headwayFromDesire(ctx.Params, desire)
	if err != nil {
		return false, err
	}
	params := ctx.Params
	if cur, err := params.Get(cf.T); err != nil {
		return false, err
	} else if t < cur {
		if params, err = params.With(cf.T, t); err != nil {
			return false, err
		}
	}
	var neighbors []*entity.HeadwayGtu
	leader, follower := newNeighbors(ctx, lat)
	if leader != nil {
		neighbors = append(neighbors, leader)
	}
	if follower != nil {
		neighbors = append(neighbors, follower)
	}
	dual, err := cf.ComputeDualAccelerationStep(ctx.Model, params, ctx.Sli, ctx.Ego.Speed, neighbors, ctx.Now(), ctx.Dt)
	if err != nil {
		return false, err
	}
	return dual.Leader.Acceleration >= threshold &&
		dual.Follower.Acceleration >= threshold &&
		ownAcc >= threshold, nil
}

// GapPassive 只接受新前车与新后车都无需制动的空隙
type GapPassive struct{}

func (GapPassive) Name() string { return "passive" }

func (GapPassive) Accept(ctx *Context, lat entity.LateralDirectionality, _, _ float64) (bool, error) {
	leader, follower := newNeighbors(ctx, lat)
	if follower != nil {
		aFollow, err := followerAcceleration(ctx, follower, 0, false)
		if err != nil {
			return false, err
		}
		if aFollow < 0 {
			return false, nil
		}
	}
	if leader != nil {
		aSelf, err := singleAcceleration(ctx.Model, ctx.Params, ctx.Sli,
			leader.Distance, ctx.Ego.Speed, leader.Speed, 0)
		if err != nil {
			return false, err
		}
		if aSelf < 0 {
			return false, nil
		}
	}
	return true, nil
}
