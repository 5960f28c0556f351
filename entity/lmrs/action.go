package lmrs

import (
	"fmt"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
)

// State 规划器状态
type State int

const (
	Idle          State = iota // 空闲
	Synchronizing              // 同步（为变道调整速度）
	ChangingLane               // 变道中
)

func (s State) String() string {
	switch s {
	case Synchronizing:
		return "synchronizing"
	case ChangingLane:
		return "changing-lane"
	default:
		return "idle"
	}
}

// Action 单步规划中累积的动作
// 功能：各来源的加速度取最小值，转向灯取距离最近的意图
type Action struct {
	A         float64                      // 加速度（米/秒²）
	Indicator entity.LateralDirectionality // 转向灯

	indicatorDistance float64
}

// NewAction 创建不受约束的动作
func NewAction() Action {
	return Action{A: mathutil.INF, indicatorDistance: mathutil.INF}
}

// Update 以取最小的方式更新加速度
func (a *Action) Update(acc ...float64) {
	for _, o := range acc {
		if o < a.A {
			a.A = o
		}
	}
}

// SetIndicatorIntent 设置转向灯意图，距离更近的意图优先
func (a *Action) SetIndicatorIntent(lat entity.LateralDirectionality, distance float64) {
	if lat == entity.DirNone {
		return
	}
	if distance < a.indicatorDistance {
		a.Indicator = lat
		a.indicatorDistance = distance
	}
}

// Intent 变道意图
type Intent struct {
	Direction entity.LateralDirectionality // 变道方向，DirNone表示不变道
	Elapsed   float64                      // 已进行的时间（秒），本步结束时的值
	Duration  float64                      // 变道总时长（秒）
}

// Fraction 变道完成度
func (i Intent) Fraction() float64 {
	if i.Direction == entity.DirNone || i.Duration <= 0 {
		return 0
	}
	return i.Elapsed / i.Duration
}

// Finished 本步结束时变道完成
func (i Intent) Finished() bool {
	return i.Direction != entity.DirNone && i.Elapsed >= i.Duration
}

func (i Intent) String() string {
	if i.Direction == entity.DirNone {
		return "Intent{none}"
	}
	return fmt.Sprintf("Intent{%v %.2f/%.2f}", i.Direction, i.Elapsed, i.Duration)
}

// Decision 单步规划结果
type Decision struct {
	Acceleration float64                      // 加速度（米/秒²），可能为-Inf
	Intent       Intent                       // 变道意图
	Indicator    entity.LateralDirectionality // 转向灯
	Desire       Desire                       // 本步总意愿
	State        State                        // 规划器状态
	Published    entity.BehaviorState         // 对外公布的行为状态
}

func (d Decision) String() string {
	return fmt.Sprintf("Decision{a=%.3f %v %v indicator=%v %v}",
		d.Acceleration, d.State, d.Intent, d.Indicator, d.Desire)
}
