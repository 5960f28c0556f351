package entity

import (
	"errors"
	"fmt"
	"math"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// ErrInvalidGtuState 车辆状态不一致（例如规划器引用了不可达的车辆状态）
var ErrInvalidGtuState = errors.New("invalid gtu state")

// EgoState 本车状态
type EgoState struct {
	ID           int32
	Time         float64 // 当前仿真时间（秒）
	Speed        float64 // 速度（米/秒）
	Acceleration float64 // 上一步的加速度（米/秒²）
	Length       float64 // 车长（米）
	Width        float64 // 车宽（米）
}

// BehaviorState 车辆每步对外公布的行为状态，供周边车辆的社会性模型读取
type BehaviorState struct {
	DLeft        float64 // 向左变道意愿
	DRight       float64 // 向右变道意愿
	DLC          float64 // 发起当前变道时的意愿
	Rho          float64 // 跟驰压力（tailgating）
	DesiredSpeed float64 // 期望速度
}

// HeadwayGtu 感知到的车辆
// 说明：Distance为净距离（本车车头到前车车尾、或后车车头到本车车尾），前方为正，后方为负；
// 纵向重叠（并行）时Parallel为true，此时Distance没有定义
type HeadwayGtu struct {
	ID           int32
	Distance     float64
	Parallel     bool
	Speed        float64
	Acceleration float64
	Length       float64
	LaneChange   LateralDirectionality // 正在进行的变道方向
	Indicator    LateralDirectionality // 转向灯
	Parameters   *parameter.Set        // 可感知的行为参数，可能为nil
	State        *BehaviorState        // 对外公布的行为状态，可能为nil
}

func (h *HeadwayGtu) String() string {
	if h.Parallel {
		return fmt.Sprintf("Gtu{%d parallel v=%.2f}", h.ID, h.Speed)
	}
	return fmt.Sprintf("Gtu{%d d=%.2f v=%.2f}", h.ID, h.Distance, h.Speed)
}

// Gap 不区分前后的净间距，并行时为NaN
func (h *HeadwayGtu) Gap() float64 {
	if h.Parallel {
		return math.NaN()
	}
	return math.Abs(h.Distance)
}

// SignedDistance 带符号距离，并行时为NaN
func (h *HeadwayGtu) SignedDistance() float64 {
	if h.Parallel {
		return math.NaN()
	}
	return h.Distance
}

// LaneChangeInfo 路线要求的变道信息
type LaneChangeInfo struct {
	RemainingDistance   float64 // 必须完成变道前的剩余距离（米）
	RequiredLaneChanges int     // 需要的变道次数
	DeadEnd             bool    // 车道尽头（而非分流点）
}

// HeadwayTrafficLight 感知到的信号灯（停车线）
type HeadwayTrafficLight struct {
	ID            int32
	Distance      float64          // 到停车线距离（米）
	State         mapv2.LightState // 灯色
	RemainingTime float64          // 当前灯色剩余时间（秒）
}

// ConflictType 冲突类型
type ConflictType int8

const (
	ConflictCrossing ConflictType = iota // 交叉
	ConflictMerge                        // 合流
	ConflictSplit                        // 分流
)

// ConflictRule 冲突优先规则（本车视角）
type ConflictRule int8

const (
	RulePriority ConflictRule = iota // 本车优先
	RuleYield                        // 让行
	RuleStop                         // 停车让行
)

// HeadwayConflict 感知到的冲突区域
type HeadwayConflict struct {
	ID         int32
	Distance   float64 // 到冲突区起点的距离（米）
	Length     float64 // 冲突区长度（米）
	Type       ConflictType
	Rule       ConflictRule
	Indicator  LateralDirectionality // 经过冲突时应打的转向灯
	Upstream   []*HeadwayGtu         // 冲突车道上驶向冲突区的车辆，Distance为其到冲突区起点的距离
	Downstream []*HeadwayGtu         // 冲突车道上已越过冲突区起点的车辆，Distance为其车尾到冲突区起点的距离
}

// HeadwayBusStop 感知到的公交站
// 说明：只包含本车线路需要停靠的站点
type HeadwayBusStop struct {
	ID            int32
	Distance      float64 // 到停车位置的距离（米）
	DwellTime     float64 // 停站时间（秒）
	DepartureTime float64 // 最早发车时刻（秒），非正数表示不限制
}

// IPerception 单车感知
// 功能：为单车的一次规划提供周边环境快照
// 说明：快照在规划前生成并保持不变，所有列表按距离由近及远排序
type IPerception interface {
	Ego() EgoState

	Leaders(lane RelativeLane) []*HeadwayGtu          // 前车
	Followers(lane RelativeLane) []*HeadwayGtu        // 后车（Distance为负）
	Alongside(lat LateralDirectionality) []*HeadwayGtu // 相邻车道与本车并行的车辆

	CrossSection(lane RelativeLane) bool // 相对车道是否存在
	// 合法变道可能性：正值为仍可变道的剩余距离，负值为距可变道位置的距离
	LegalLaneChangePossibility(lane RelativeLane, lat LateralDirectionality) float64
	// 物理变道可能性，含义同上
	PhysicalLaneChangePossibility(lane RelativeLane, lat LateralDirectionality) float64
	LaneChangeInfo(lane RelativeLane) []LaneChangeInfo

	SpeedLimitProspect(lane RelativeLane) SpeedLimitProspect
	TrafficLights(lane RelativeLane) []*HeadwayTrafficLight
	Conflicts(lane RelativeLane) []*HeadwayConflict
	BusStops(lane RelativeLane) []*HeadwayBusStop
}
