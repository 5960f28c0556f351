package lmrs

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

const (
	stillSpeed = 0.1 // 低于该速度视为静止（米/秒）
)

// Context 单步规划上下文
// 功能：汇集一次规划所需的只读信息，在各激励与策略之间传递
// 说明：Context只在一次Plan调用内有效，激励不得保存对它的引用
type Context struct {
	Params     *parameter.Set     // 本步参数（已包含车距松弛与跟驰压力的调整）
	Perception entity.IPerception // 感知快照
	Model      cf.Model           // 跟车模型（已包含社会性期望速度的调整）
	Ego        entity.EgoState    // 本车状态
	Sli        entity.SpeedLimitInfo
	Dt         float64 // 规划步长（秒）

	Mandatory    Desire           // 本步强制意愿
	Desire       Desire           // 本步总意愿
	LaneChange   *LaneChangeState // 变道状态（只读）
	DesiredSpeed float64          // 本步期望速度（米/秒）
}

// Now 当前仿真时间
func (c *Context) Now() float64 {
	return c.Ego.Time
}

// SliAt 指定车道、指定距离处的限速
func (c *Context) SliAt(lane entity.RelativeLane, distance float64) entity.SpeedLimitInfo {
	info := c.Perception.SpeedLimitProspect(lane).InfoAt(distance)
	if info.MaxVehicleSpeed <= 0 {
		info.MaxVehicleSpeed = c.Sli.MaxVehicleSpeed
	}
	return info
}

// headwayFromDesire 由意愿插值得到的车头时距：d*Tmin + (1-d)*Tmax
func headwayFromDesire(params *parameter.Set, desire float64) (float64, error) {
	r := params.Reader()
	tMin, tMax := r.Get(TMIN), r.Get(TMAX)
	if err := r.Err(); err != nil {
		return 0, err
	}
	d := lo.Clamp(desire, 0, 1)
	return d*tMin + (1-d)*tMax, nil
}

// singleAcceleration 以意愿调整车头时距后跟随单辆车的加速度
// 功能：意愿越强，接受的车头时距越接近Tmin
// 参数：distance-净距离，followerSpeed/leaderSpeed-跟随者与被跟随者速度，desire-意愿
// params-跟随者参数，model-跟随者的跟车模型，sli-限速
func singleAcceleration(
	model cf.Model, params *parameter.Set, sli entity.SpeedLimitInfo,
	distance, followerSpeed, leaderSpeed, desire float64,
) (float64, error) {
	t, err := headwayFromDesire(params, desire)
	if err != nil {
		return 0, err
	}
	cur, err := params.Get(cf.T)
	if err != nil {
		return 0, err
	}
	if t < cur {
		if params, err = params.With(cf.T, t); err != nil {
			return 0, err
		}
	}
	return cf.FollowSingleLeader(model, params, followerSpeed, sli, distance, leaderSpeed)
}

// gentleUrgency 按意愿限制减速度
// 算法说明：
// 1. 加速度大于-b时不处理
// 2. 意愿小于dCoop时减速度限制为b
// 3. 否则减速度上限随意愿从b线性增加到bCrit
func gentleUrgency(params *parameter.Set, a, desire float64) (float64, error) {
	r := params.Reader()
	b, bCrit, dCoop := r.Get(cf.B), r.Get(BCRIT), r.Get(DCOOP)
	if err := r.Err(); err != nil {
		return 0, err
	}
	if a > -b {
		return a, nil
	}
	if desire < dCoop {
		return -b, nil
	}
	f := 1.
	if dCoop < 1 {
		f = lo.Clamp((desire-dCoop)/(1-dCoop), 0, 1)
	}
	return math.Max(a, -(b + f*(bCrit-b))), nil
}

// mergeDistance 到可以开始变道位置的距离，已可变道时为0
func mergeDistance(p entity.IPerception, lat entity.LateralDirectionality) float64 {
	legal := p.LegalLaneChangePossibility(entity.LaneCurrent, lat)
	physical := p.PhysicalLaneChangePossibility(entity.LaneCurrent, lat)
	return math.Max(0, -math.Min(legal, physical))
}

// canChange 当前位置是否允许向lat变道
func canChange(p entity.IPerception, lat entity.LateralDirectionality) bool {
	if !p.CrossSection(entity.RelativeLaneOf(lat, 1)) {
		return false
	}
	return p.LegalLaneChangePossibility(entity.LaneCurrent, lat) > 0 &&
		p.PhysicalLaneChangePossibility(entity.LaneCurrent, lat) > 0
}

// firstNonParallel 第一辆有确定车距的车辆
func firstNonParallel(gtus []*entity.HeadwayGtu) *entity.HeadwayGtu {
	for _, g := range gtus {
		if !g.Parallel {
			return g
		}
	}
	return nil
}

// publishedDesire 邻车公布的向lat方向的变道意愿
func publishedDesire(g *entity.HeadwayGtu, lat entity.LateralDirectionality) float64 {
	if g.State == nil {
		return 0
	}
	switch lat {
	case entity.DirLeft:
		return g.State.DLeft
	case entity.DirRight:
		return g.State.DRight
	default:
		return 0
	}
}

// socialModel 叠加社会性期望速度的跟车模型
// 说明：后车施加的压力每步只计算一次，保存在车辆自己的规划器上
type socialModel struct {
	cf.Model
	pressure socialPressure
}

// socialPressure 后车对本车期望速度的影响
type socialPressure struct {
	factor        float64 // rho * sigma
	followerSpeed float64 // 后车期望速度
}

func (m *socialModel) DesiredSpeed(params *parameter.Set, sli entity.SpeedLimitInfo) (float64, error) {
	v0, err := m.Model.DesiredSpeed(params, sli)
	if err != nil {
		return 0, err
	}
	return m.pressure.apply(v0), nil
}

// apply v0 + rho*sigma*(vFollower - v0)，只会提高期望速度
func (p socialPressure) apply(v0 float64) float64 {
	if p.factor <= 0 || p.followerSpeed <= v0 {
		return v0
	}
	return v0 + p.factor*(p.followerSpeed-v0)
}
