package lmrs

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// Tailgating 跟驰压力策略
// 功能：根据本车对前车的不满（速度差与距离）计算压力rho，并可能据此缩短车头时距
// 参数：params-本步参数（车头时距已松弛），desiredSpeed-本车期望速度
// 返回：rho与调整后的参数
type Tailgating interface {
	Name() string
	Tailgate(p entity.IPerception, params *parameter.Set, desiredSpeed float64) (float64, *parameter.Set, error)
}

// NewTailgating 按名称创建跟驰压力策略
func NewTailgating(name string) (Tailgating, bool) {
	switch name {
	case "none":
		return TailNone{}, true
	case "rho_only":
		return TailRhoOnly{}, true
	case "pressure":
		return TailPressure{}, true
	default:
		return nil, false
	}
}

// SocialPressure 本车对前车的压力
// 算法说明：rho = clamp((v0 - vLead)/vGain * (1 - s/x0), 0, 1)；前车更快或距离超过x0时为0
func SocialPressure(params *parameter.Set, desiredSpeed, leaderSpeed, headway float64) (float64, error) {
	r := params.Reader()
	vGain, x0 := r.Get(VGAIN), r.Get(LOOKAHEAD)
	if err := r.Err(); err != nil {
		return 0, err
	}
	if leaderSpeed >= desiredSpeed || headway > x0 {
		return 0, nil
	}
	return lo.Clamp((desiredSpeed-leaderSpeed)/vGain*(1-headway/x0), 0, 1), nil
}

func leaderPressure(p entity.IPerception, params *parameter.Set, desiredSpeed float64) (float64, error) {
	leader := firstNonParallel(p.Leaders(entity.LaneCurrent))
	if leader == nil {
		return 0, nil
	}
	return SocialPressure(params, desiredSpeed, leader.Speed, math.Max(leader.Distance, 0))
}

// TailNone 不计算压力
type TailNone struct{}

func (TailNone) Name() string { return "none" }

func (TailNone) Tailgate(_ entity.IPerception, params *parameter.Set, _ float64) (float64, *parameter.Set, error) {
	return 0, params, nil
}

// TailRhoOnly 只计算并公布压力，不改变驾驶行为
type TailRhoOnly struct{}

func (TailRhoOnly) Name() string { return "rho_only" }

func (TailRhoOnly) Tailgate(p entity.IPerception, params *parameter.Set, desiredSpeed float64) (float64, *parameter.Set, error) {
	rho, err := leaderPressure(p, params, desiredSpeed)
	return rho, params, err
}

// TailPressure 压力使车头时距向Tmin缩短：T = rho*Tmin + (1-rho)*T
type TailPressure struct{}

func (TailPressure) Name() string { return "pressure" }

func (TailPressure) Tailgate(p entity.IPerception, params *parameter.Set, desiredSpeed float64) (float64, *parameter.Set, error) {
	rho, err := leaderPressure(p, params, desiredSpeed)
	if err != nil || rho == 0 {
		return rho, params, err
	}
	r := params.Reader()
	t, tMin := r.Get(cf.T), r.Get(TMIN)
	if err := r.Err(); err != nil {
		return 0, nil, err
	}
	params, err = params.With(cf.T, rho*tMin+(1-rho)*t)
	if err != nil {
		return 0, nil, err
	}
	return rho, params, nil
}
