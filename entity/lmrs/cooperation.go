package lmrs

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
)

// Cooperation 合作策略
// 功能：为lat侧相邻车道上希望并入本车道的车辆减速让出空隙
// 返回：需要与其他来源取最小值的加速度，+Inf表示不合作；减速度不超过b*courtesy
type Cooperation interface {
	Name() string
	Cooperate(ctx *Context, lat entity.LateralDirectionality) (float64, error)
}

// NewCooperation 按名称创建合作策略
func NewCooperation(name string) (Cooperation, bool) {
	switch name {
	case "passive":
		return CoopPassive{}, true
	case "passive_moving":
		return CoopPassiveMoving{}, true
	case "active":
		return CoopActive{}, true
	default:
		return nil, false
	}
}

// cooperate 合作的公共实现
// 参数：consider-是否考虑某辆前车，desireOf-该车向本车道的意愿
func cooperate(
	ctx *Context, lat entity.LateralDirectionality,
	consider func(*entity.HeadwayGtu) bool,
	desireOf func(*entity.HeadwayGtu) float64,
) (float64, error) {
	lane := entity.RelativeLaneOf(lat, 1)
	if !ctx.Perception.CrossSection(lane) {
		return mathutil.INF, nil
	}
	r := ctx.Params.Reader()
	b, dCoop, courtesy := r.Get(cf.B), r.Get(DCOOP), r.Get(COURTESY)
	if err := r.Err(); err != nil {
		return 0, err
	}
	// 不礼让的车辆不提供合作
	if courtesy <= 0 {
		return mathutil.INF, nil
	}
	a := mathutil.INF
	for _, leader := range ctx.Perception.Leaders(lane) {
		if leader.Parallel || !consider(leader) {
			continue
		}
		d := desireOf(leader)
		if d < dCoop {
			continue
		}
		aSingle, err := singleAcceleration(ctx.Model, ctx.Params, ctx.Sli,
			leader.Distance, ctx.Ego.Speed, leader.Speed, d)
		if err != nil {
			return 0, err
		}
		a = math.Min(a, aSingle)
	}
	return math.Max(a, -b*courtesy), nil
}

// CoopPassive 被动合作：为公布意愿达到dCoop的相邻车道前车让行
type CoopPassive struct{}

func (CoopPassive) Name() string { return "passive" }

func (CoopPassive) Cooperate(ctx *Context, lat entity.LateralDirectionality) (float64, error) {
	toUs := lat.Flip()
	return cooperate(ctx, lat,
		func(g *entity.HeadwayGtu) bool { return g.Speed > 0 || g.Distance > 0 },
		func(g *entity.HeadwayGtu) float64 { return publishedDesire(g, toUs) },
	)
}

// CoopPassiveMoving 被动合作，只为行驶中的车辆让行
type CoopPassiveMoving struct{}

func (CoopPassiveMoving) Name() string { return "passive_moving" }

func (CoopPassiveMoving) Cooperate(ctx *Context, lat entity.LateralDirectionality) (float64, error) {
	toUs := lat.Flip()
	return cooperate(ctx, lat,
		func(g *entity.HeadwayGtu) bool { return g.Speed > stillSpeed },
		func(g *entity.HeadwayGtu) float64 { return publishedDesire(g, toUs) },
	)
}

// CoopActive 主动合作：向本车道打转向灯的车辆至少按dCoop对待
type CoopActive struct{}

func (CoopActive) Name() string { return "active" }

func (CoopActive) Cooperate(ctx *Context, lat entity.LateralDirectionality) (float64, error) {
	dCoop, err := ctx.Params.Get(DCOOP)
	if err != nil {
		return 0, err
	}
	toUs := lat.Flip()
	return cooperate(ctx, lat,
		func(g *entity.HeadwayGtu) bool { return g.Speed > 0 || g.Distance > 0 },
		func(g *entity.HeadwayGtu) float64 {
			d := publishedDesire(g, toUs)
			if g.Indicator == toUs {
				d = math.Max(d, dCoop)
			}
			return d
		},
	)
}
