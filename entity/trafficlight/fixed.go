package trafficlight

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
)

// fixedRuntime 信号灯运行时数据
type fixedRuntime struct {
	step       int32   // 当前相位
	totalT     float64 // 当前相位总时长
	remainingT float64 // 当前相位剩余时间
}

// FixedTrafficLight 固定配时信号灯
// 功能：按绿、黄、红相位循环，每步Prepare时把灯色与剩余时间写入停车线所在的车道
// 说明：没有信号灯程序时所有车道保持绿灯
type FixedTrafficLight struct {
	lanes []entity.ILaneTrafficLightSetter

	program          *mapv2.TrafficLight
	timeBeforeChange [][]float64 // [lane][phase] 当前相位结束后该车道灯色仍保持不变的时间
	snapshot         fixedRuntime
	runtime          fixedRuntime
}

// New 创建固定配时信号灯
// 参数：c-信号灯配置，nil表示没有信号灯；lanes-停车线所在的车道
func New(c *config.TrafficLight, lanes []entity.ILaneTrafficLightSetter) (*FixedTrafficLight, error) {
	l := &FixedTrafficLight{lanes: lanes}
	if c == nil {
		return l, nil
	}
	states := func(s mapv2.LightState) []mapv2.LightState {
		res := make([]mapv2.LightState, len(lanes))
		for i := range res {
			res[i] = s
		}
		return res
	}
	program := &mapv2.TrafficLight{}
	for _, p := range []struct {
		state    mapv2.LightState
		duration float64
	}{
		{mapv2.LightState_LIGHT_STATE_GREEN, c.Green},
		{mapv2.LightState_LIGHT_STATE_YELLOW, c.Yellow},
		{mapv2.LightState_LIGHT_STATE_RED, c.Red},
	} {
		if p.duration > 0 {
			program.Phases = append(program.Phases, &mapv2.Phase{Duration: p.duration, States: states(p.state)})
		}
	}
	if err := l.Set(program, c.Offset); err != nil {
		return nil, err
	}
	return l, nil
}

// Set 设置信号灯程序
// 参数：tl-信号灯程序，offset-t=0时程序已经运行的时间（秒）
// 算法说明：
// 1. 检查每个相位的灯色数与车道数一致、周期为正
// 2. 对每条车道从后往前计算每个相位结束后灯色保持不变的时间，首尾相位灯色相同时跨周期累加
// 3. 按offset定位初始相位与剩余时间
func (l *FixedTrafficLight) Set(tl *mapv2.TrafficLight, offset float64) error {
	if tl == nil || len(tl.Phases) == 0 {
		return fmt.Errorf("set with empty traffic light")
	}
	cycle := 0.
	for _, p := range tl.Phases {
		if len(p.States) != len(l.lanes) {
			return fmt.Errorf("number of lanes %d and traffic light states %d does not match", len(l.lanes), len(p.States))
		}
		cycle += p.Duration
	}
	if cycle <= 0 {
		return fmt.Errorf("traffic light cycle %v is not positive", cycle)
	}

	numPhases := len(tl.Phases)
	l.timeBeforeChange = make([][]float64, len(l.lanes))
	for laneIndex := range l.lanes {
		time := make([]float64, numPhases)
		allTheSame := true
		for phaseIndex := numPhases - 2; phaseIndex >= 0; phaseIndex-- {
			if tl.Phases[phaseIndex].States[laneIndex] == tl.Phases[phaseIndex+1].States[laneIndex] {
				time[phaseIndex] = time[phaseIndex+1] + tl.Phases[phaseIndex+1].Duration
			} else {
				allTheSame = false
			}
		}
		if allTheSame {
			for i := range time {
				time[i] = mathutil.INF
			}
		} else if first := tl.Phases[0].States[laneIndex]; first == tl.Phases[numPhases-1].States[laneIndex] {
			// 首尾相位灯色相同，尾部相位结束后还要加上首部连续同色相位的时长
			t0 := time[0] + tl.Phases[0].Duration
			for phaseIndex := numPhases - 1; phaseIndex >= 0; phaseIndex-- {
				if tl.Phases[phaseIndex].States[laneIndex] != first {
					break
				}
				time[phaseIndex] += t0
			}
		}
		l.timeBeforeChange[laneIndex] = time
	}

	l.program = tl
	elapsed := math.Mod(offset, cycle)
	if elapsed < 0 {
		elapsed += cycle
	}
	l.runtime = fixedRuntime{}
	for i, p := range tl.Phases {
		if elapsed < p.Duration {
			l.runtime = fixedRuntime{step: int32(i), totalT: p.Duration, remainingT: p.Duration - elapsed}
			break
		}
		elapsed -= p.Duration
	}
	return nil
}

// Prepare 准备阶段，将当前相位写入车道
func (l *FixedTrafficLight) Prepare() {
	l.snapshot = l.runtime
	if l.program == nil {
		for _, lane := range l.lanes {
			lane.SetLight(mapv2.LightState_LIGHT_STATE_GREEN, mathutil.INF, mathutil.INF)
		}
		return
	}
	p := l.program.Phases[l.snapshot.step]
	for i, lane := range l.lanes {
		lane.SetLight(
			p.States[i],
			l.snapshot.totalT+l.timeBeforeChange[i][l.snapshot.step],
			l.snapshot.remainingT+l.timeBeforeChange[i][l.snapshot.step],
		)
	}
}

// Update 更新阶段，推进相位
func (l *FixedTrafficLight) Update(dt float64) {
	if l.program == nil {
		return
	}
	l.runtime.remainingT -= dt
	for l.runtime.remainingT <= 0 {
		l.runtime.step = (l.runtime.step + 1) % int32(len(l.program.Phases))
		l.runtime.totalT = l.program.Phases[l.runtime.step].Duration
		l.runtime.remainingT += l.runtime.totalT
	}
}

// Program 当前信号灯程序，没有程序时为nil
func (l *FixedTrafficLight) Program() *mapv2.TrafficLight {
	return l.program
}

// Step 当前相位下标
func (l *FixedTrafficLight) Step() int32 {
	return l.snapshot.step
}

// RemainingTime 当前相位剩余时间
func (l *FixedTrafficLight) RemainingTime() float64 {
	return l.snapshot.remainingT
}
