package carfollowing

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// Combination 自由项与交互项的组合方式
type Combination int

const (
	// Sum IDM：free - a*(s*/s)^2
	Sum Combination = iota
	// Minimum IDM+：min(free, a*(1-(s*/s)^2))
	Minimum
	// MultiMinimum IDM+Multi：对前nLeaders辆前车分别计算IDM+交互项后取最小
	MultiMinimum
)

func (c Combination) String() string {
	switch c {
	case Sum:
		return "IDM"
	case Minimum:
		return "IDM+"
	case MultiMinimum:
		return "IDM+Multi"
	default:
		return "unknown"
	}
}

// Idm 智能驾驶模型(IDM)族
// 功能：三种变体共用自由项与期望动态车距，仅交互项的组合方式不同
// 说明：https://en.wikipedia.org/wiki/Intelligent_driver_model
type Idm struct {
	combination Combination
	speedModel  DesiredSpeedModel
	gapModel    DesiredHeadwayModel
}

func newIdm(c Combination) *Idm {
	return &Idm{
		combination: c,
		speedModel:  IdmDesiredSpeed{},
		gapModel:    IdmDesiredHeadway{},
	}
}

// NewIdm 创建IDM模型
func NewIdm() *Idm { return newIdm(Sum) }

// NewIdmPlus 创建IDM+模型
func NewIdmPlus() *Idm { return newIdm(Minimum) }

// NewIdmPlusMulti 创建IDM+Multi模型
func NewIdmPlusMulti() *Idm { return newIdm(MultiMinimum) }

func (m *Idm) Name() string {
	return m.combination.String()
}

func (m *Idm) Combination() Combination {
	return m.combination
}

func (m *Idm) DesiredSpeed(params *parameter.Set, sli entity.SpeedLimitInfo) (float64, error) {
	return m.speedModel.DesiredSpeed(params, sli)
}

func (m *Idm) DesiredHeadway(params *parameter.Set, speed float64) (float64, error) {
	return m.gapModel.DesiredHeadway(params, speed)
}

// Acceleration IDM族加速度
// 功能：根据自由项与前车交互项计算加速度
// 参数：params-参数，speed-本车速度，desiredSpeed-期望速度，desiredHeadway-期望车距，leaders-前车（由近及远）
// 返回：加速度（米/秒²），第一辆前车距离非正或未定义时为-Inf
// 算法说明：
// 1. 碰撞检查先于其他任何计算
// 2. 自由项：a*(1-(v/v0)^δ)，下限为-b0
// 3. 期望动态车距：s* = max(s0, desiredHeadway + v*(v-vl)/(2*sqrt(a*b)))
// 4. 按组合方式合成交互项
func (m *Idm) Acceleration(
	params *parameter.Set,
	speed, desiredSpeed, desiredHeadway float64,
	leaders []*entity.HeadwayGtu,
) (float64, error) {
	if len(leaders) > 0 && collided(leaders[0]) {
		return -mathutil.INF, nil
	}
	r := params.Reader()
	a, b, b0, s0, delta := r.Get(A), r.Get(B), r.Get(B0), r.Get(S0), r.Get(DELTA)
	if err := r.Err(); err != nil {
		return 0, err
	}
	free := freeTerm(a, b0, delta, speed, desiredSpeed)
	if len(leaders) == 0 {
		return free, nil
	}
	dyn := func(gap, leaderSpeed float64) float64 {
		return math.Max(s0, gap+speed*(speed-leaderSpeed)/(2*math.Sqrt(a*b)))
	}
	leader := leaders[0]
	switch m.combination {
	case Sum:
		sRatio := dyn(desiredHeadway, leader.Speed) / leader.Distance
		return free - a*sRatio*sRatio, nil
	case Minimum:
		sRatio := dyn(desiredHeadway, leader.Speed) / leader.Distance
		return math.Min(free, a*(1-sRatio*sRatio)), nil
	default:
		nLeaders, err := params.Get(NLEADERS)
		if err != nil {
			return 0, err
		}
		interaction := mathutil.INF
		sumLength := 0.
		for i, l := range leaders {
			n := i + 1
			if float64(n) > nLeaders || l.Parallel || math.IsNaN(l.Distance) {
				break
			}
			// 净距离扣除中间车辆的车长
			s := l.Distance - sumLength
			if s <= 0 {
				return -mathutil.INF, nil
			}
			sRatio := dyn(float64(n)*desiredHeadway, l.Speed) / s
			interaction = math.Min(interaction, a*(1-sRatio*sRatio))
			sumLength += l.Length
		}
		return math.Min(free, interaction), nil
	}
}

// freeTerm 自由项，下限为-b0
func freeTerm(a, b0, delta, speed, desiredSpeed float64) float64 {
	if desiredSpeed <= 0 {
		if speed <= 0 {
			return 0
		}
		return -b0
	}
	return math.Max(-b0, a*(1-math.Pow(speed/desiredSpeed, delta)))
}

// collided 车辆已重叠（距离非正、并行或未定义）
func collided(leader *entity.HeadwayGtu) bool {
	return leader.Parallel || math.IsNaN(leader.Distance) || leader.Distance <= 0
}
