package lmrs

import (
	"math"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
)

// SpeedLimitTransitions 限速变化预判
// 功能：前视距离内限速降低时，提前平缓减速，在变化点处达到新的期望速度
// 说明：非当前车道只考虑可开始变道位置之后的变化点
type SpeedLimitTransitions struct{}

func (SpeedLimitTransitions) Name() string { return "speed_limit_transitions" }

func (SpeedLimitTransitions) Accelerate(ctx *Context, lane entity.RelativeLane, mergeDistance float64, ac *Action) error {
	x0, err := ctx.Params.Get(LOOKAHEAD)
	if err != nil {
		return err
	}
	for _, c := range ctx.Perception.SpeedLimitProspect(lane).Upcoming(x0) {
		if !lane.IsCurrent() && c.Distance < mergeDistance {
			continue
		}
		target, err := ctx.Model.DesiredSpeed(ctx.Params, ctx.SliAt(lane, c.Distance))
		if err != nil {
			return err
		}
		if target >= ctx.Ego.Speed {
			continue
		}
		acc, err := cf.ApproachTargetSpeed(ctx.Model, ctx.Params, ctx.Ego.Speed, ctx.Sli, c.Distance, target)
		if err != nil {
			return err
		}
		ac.Update(acc)
	}
	return nil
}

// TrafficLights 信号灯停车
// 算法说明：
// 1. 只处理最近的停车线
// 2. 红灯停车；黄灯时若倒计时结束前无法通过停车线（remainingTime*v <= d）则停车
// 3. 停车减速度取IDM停车与匀减速停车（停在停车线前s0处）中较缓者
// 4. 该减速度超过bCrit时视为已无法安全停车，不减速
type TrafficLights struct{}

func (TrafficLights) Name() string { return "traffic_lights" }

func (TrafficLights) Accelerate(ctx *Context, lane entity.RelativeLane, mergeDistance float64, ac *Action) error {
	r := ctx.Params.Reader()
	bCrit, s0 := r.Get(BCRIT), r.Get(cf.S0)
	if err := r.Err(); err != nil {
		return err
	}
	v := ctx.Ego.Speed
	for _, light := range ctx.Perception.TrafficLights(lane) {
		if light.Distance < 0 || (!lane.IsCurrent() && light.Distance < mergeDistance) {
			continue
		}
		stop := false
		switch light.State {
		case mapv2.LightState_LIGHT_STATE_RED:
			stop = true
		case mapv2.LightState_LIGHT_STATE_YELLOW:
			stop = light.RemainingTime*v <= light.Distance
		default:
			// 绿灯或没灯，跳过
		}
		if !stop {
			return nil
		}
		aStop, err := cf.Stop(ctx.Model, ctx.Params, v, ctx.Sli, light.Distance)
		if err != nil {
			return err
		}
		a := math.Max(aStop, constantStop(v, light.Distance, s0))
		if a >= -bCrit {
			ac.Update(a)
		} else {
			log.Debugf("gtu %d passes light %d: stopping needs %.2f", ctx.Ego.ID, light.ID, a)
		}
		return nil
	}
	return nil
}

// constantStop 以匀减速在距离distance处停车所需的加速度，距离大于s0时停在s0之前
func constantStop(v, distance, s0 float64) float64 {
	if distance > s0 {
		distance -= s0
	}
	switch {
	case distance > 0:
		return -v * v / (2 * distance)
	case v <= 0:
		return 0
	default:
		return math.Inf(-1)
	}
}

// NoRightOvertake 禁止从右侧超车
// 功能：左侧车道未拥堵时跟随左侧前车，减速度不超过b0
// 说明：只作用于当前车道，变道中或强制意愿达到dFree时不生效
type NoRightOvertake struct{}

func (NoRightOvertake) Name() string { return "no_right_overtake" }

func (NoRightOvertake) Accelerate(ctx *Context, lane entity.RelativeLane, _ float64, ac *Action) error {
	if !lane.IsCurrent() || ctx.LaneChange.Active() || !ctx.Perception.CrossSection(entity.LaneLeft) {
		return nil
	}
	r := ctx.Params.Reader()
	dFree, vCong, b0 := r.Get(DFREE), r.Get(VCONG), r.Get(cf.B0)
	if err := r.Err(); err != nil {
		return err
	}
	if math.Max(ctx.Mandatory.Left, ctx.Mandatory.Right) >= dFree {
		return nil
	}
	leader := firstNonParallel(ctx.Perception.Leaders(entity.LaneLeft))
	if leader == nil || leader.Speed < vCong {
		return nil
	}
	acc, err := cf.FollowSingleLeader(ctx.Model, ctx.Params, ctx.Ego.Speed, ctx.Sli, leader.Distance, leader.Speed)
	if err != nil {
		return err
	}
	ac.Update(math.Max(acc, -b0))
	return nil
}

// LaneChangers 跟随正在并入本车道的相邻车道前车
type LaneChangers struct{}

func (LaneChangers) Name() string { return "lane_changers" }

func (LaneChangers) Accelerate(ctx *Context, lane entity.RelativeLane, _ float64, ac *Action) error {
	if !lane.IsCurrent() {
		return nil
	}
	for _, lat := range []entity.LateralDirectionality{entity.DirLeft, entity.DirRight} {
		adjacent := entity.RelativeLaneOf(lat, 1)
		if !ctx.Perception.CrossSection(adjacent) {
			continue
		}
		for _, g := range ctx.Perception.Leaders(adjacent) {
			if g.Parallel || g.LaneChange != lat.Flip() {
				continue
			}
			acc, err := cf.FollowSingleLeader(ctx.Model, ctx.Params, ctx.Ego.Speed, ctx.Sli, g.Distance, g.Speed)
			if err != nil {
				return err
			}
			ac.Update(acc)
			break
		}
	}
	return nil
}
