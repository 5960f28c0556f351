package lmrs

import (
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
)

// laneSwitchFraction 变道完成度达到该值时车辆归属目标车道
const laneSwitchFraction = 0.5

// LaneChangeState 变道状态
// 功能：记录进行中的变道，是规划器跨步保存的唯一变道状态
// 说明：变道完成度小于0.5时车辆仍属于原车道，第二车道为目标车道；
// 之后车辆属于目标车道，第二车道为原车道
type LaneChangeState struct {
	Direction entity.LateralDirectionality // 变道方向，DirNone表示未在变道
	Elapsed   float64                      // 已进行的时间（秒）
	Duration  float64                      // 总时长（秒）
	Desire    float64                      // 发起变道时的意愿
}

// Active 是否正在变道
func (s *LaneChangeState) Active() bool {
	return s != nil && s.Direction != entity.DirNone
}

// Fraction 变道完成度
func (s *LaneChangeState) Fraction() float64 {
	if !s.Active() || s.Duration <= 0 {
		return 0
	}
	return s.Elapsed / s.Duration
}

// SecondLane 变道过程中需要同时考虑的另一条车道
func (s *LaneChangeState) SecondLane() entity.RelativeLane {
	if !s.Active() {
		return entity.LaneCurrent
	}
	if s.Fraction() < laneSwitchFraction {
		return entity.RelativeLaneOf(s.Direction, 1)
	}
	return entity.RelativeLaneOf(s.Direction.Flip(), 1)
}

// start 开始变道
func (s *LaneChangeState) start(lat entity.LateralDirectionality, duration, desire float64) {
	if s.Active() {
		log.Panicf("start lane change %v while changing %v", lat, s.Direction)
	}
	*s = LaneChangeState{Direction: lat, Duration: duration, Desire: desire}
}

// advance 推进dt时间，返回本步结束时的意图；变道完成后状态复位
func (s *LaneChangeState) advance(dt float64) Intent {
	if !s.Active() {
		return Intent{}
	}
	s.Elapsed += dt
	intent := Intent{Direction: s.Direction, Elapsed: s.Elapsed, Duration: s.Duration}
	if s.Elapsed >= s.Duration {
		intent.Elapsed = s.Duration
		*s = LaneChangeState{}
	}
	return intent
}
