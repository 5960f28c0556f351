package lmrs

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
)

const (
	conflictIndicatorTime     = 6.0  // 经过冲突前提前打转向灯的时间（秒）
	conflictIndicatorDistance = 30.0 // 提前打转向灯的最小距离（米）
	conflictStopTolerance     = 1.0  // 停车让行时视为已停在停车线的距离（米）
	conflictYieldHysteresis   = 1.5  // 已决定让行时，恢复通行所需的时间窗放大系数
)

// conflictPlan 对单个冲突的通行决定
type conflictPlan int8

const (
	planNone  conflictPlan = iota // 尚未决定
	planGo                        // 通行
	planYield                     // 让行
)

func (p conflictPlan) String() string {
	switch p {
	case planGo:
		return "go"
	case planYield:
		return "yield"
	default:
		return "none"
	}
}

// conflictMemory 单个冲突的跨步记忆
type conflictMemory struct {
	plan    conflictPlan
	stopped bool // 停车让行规则下是否已在停车线前停过车
}

// Conflicts 冲突区加速度激励
// 功能：对前视距离内的冲突区决定通行或让行，并跨步记住决定以避免来回摇摆
// 算法说明：
// 1. 经过冲突需要转向时，在 max(v*6秒, 30米) 以内打转向灯
// 2. 合流冲突跟随已越过冲突起点的车辆；交叉冲突区被占用时在冲突前停车
// 3. 本车优先或分流时通行
// 4. 停车让行规则下先在冲突前停车一次
// 5. 比较本车与冲突车辆到达、驶离冲突区的时间窗（外扩Tmin），重叠则让行
// 6. 已决定通行且无法以bCrit停车时保持通行；尚未决定时无法停车也选择通行
// 说明：每辆车各持有一个实例，冲突不再被感知到时清除其记忆
type Conflicts struct {
	memory map[int32]*conflictMemory
}

// NewConflicts 创建冲突区加速度激励
func NewConflicts() *Conflicts {
	return &Conflicts{memory: make(map[int32]*conflictMemory)}
}

func (*Conflicts) Name() string { return "conflicts" }

func (c *Conflicts) Accelerate(ctx *Context, lane entity.RelativeLane, _ float64, ac *Action) error {
	if !lane.IsCurrent() {
		return nil
	}
	conflicts := ctx.Perception.Conflicts(lane)
	c.forget(conflicts)
	x0, err := ctx.Params.Get(LOOKAHEAD)
	if err != nil {
		return err
	}
	v := ctx.Ego.Speed
	for _, conflict := range conflicts {
		if conflict.Distance > x0 {
			break
		}
		if conflict.Indicator != entity.DirNone &&
			conflict.Distance <= math.Max(v*conflictIndicatorTime, conflictIndicatorDistance) {
			ac.SetIndicatorIntent(conflict.Indicator, conflict.Distance)
		}
		if err := followDownstream(ctx, conflict, ac); err != nil {
			return err
		}
		mem, ok := c.memory[conflict.ID]
		if !ok {
			mem = &conflictMemory{}
			c.memory[conflict.ID] = mem
		}
		before := mem.plan
		yield, err := decideConflict(ctx, conflict, mem)
		if err != nil {
			return err
		}
		if mem.plan != before {
			log.Debugf("gtu %d conflict %d: %v -> %v", ctx.Ego.ID, conflict.ID, before, mem.plan)
		}
		if yield {
			acc, err := cf.Stop(ctx.Model, ctx.Params, v, ctx.Sli, conflict.Distance)
			if err != nil {
				return err
			}
			ac.Update(acc)
			return nil
		}
	}
	return nil
}

// forget 清除不再被感知到的冲突记忆
func (c *Conflicts) forget(conflicts []*entity.HeadwayConflict) {
	seen := lo.SliceToMap(conflicts, func(h *entity.HeadwayConflict) (int32, struct{}) {
		return h.ID, struct{}{}
	})
	for id := range c.memory {
		if _, ok := seen[id]; !ok {
			delete(c.memory, id)
		}
	}
}

// followDownstream 冲突下游车辆的约束
func followDownstream(ctx *Context, conflict *entity.HeadwayConflict, ac *Action) error {
	if conflict.Type == entity.ConflictSplit {
		return nil
	}
	for _, g := range conflict.Downstream {
		if g.Parallel {
			continue
		}
		switch conflict.Type {
		case entity.ConflictMerge:
			acc, err := cf.FollowSingleLeader(ctx.Model, ctx.Params, ctx.Ego.Speed, ctx.Sli,
				conflict.Distance+g.Distance, g.Speed)
			if err != nil {
				return err
			}
			ac.Update(acc)
			return nil
		case entity.ConflictCrossing:
			if g.Distance >= conflict.Length || conflict.Distance <= 0 {
				continue
			}
			acc, err := cf.Stop(ctx.Model, ctx.Params, ctx.Ego.Speed, ctx.Sli, conflict.Distance)
			if err != nil {
				return err
			}
			ac.Update(acc)
			return nil
		}
	}
	return nil
}

// decideConflict 决定是否让行，并更新冲突记忆
func decideConflict(ctx *Context, conflict *entity.HeadwayConflict, mem *conflictMemory) (bool, error) {
	if conflict.Rule == entity.RulePriority || conflict.Type == entity.ConflictSplit || conflict.Distance <= 0 {
		mem.plan = planGo
		return false, nil
	}
	v := ctx.Ego.Speed
	if conflict.Rule == entity.RuleStop && !mem.stopped {
		if conflict.Distance <= conflictStopTolerance && v < stillSpeed {
			mem.stopped = true
		} else {
			mem.plan = planYield
			return true, nil
		}
	}
	r := ctx.Params.Reader()
	a, bCrit, tMin, x0 := r.Get(cf.A), r.Get(BCRIT), r.Get(TMIN), r.Get(LOOKAHEAD)
	if err := r.Err(); err != nil {
		return false, err
	}
	aStop, err := cf.Stop(ctx.Model, ctx.Params, v, ctx.Sli, conflict.Distance)
	if err != nil {
		return false, err
	}
	canStop := aStop >= -bCrit
	if mem.plan == planGo && !canStop {
		return false, nil
	}
	margin := tMin
	if mem.plan == planYield {
		margin *= conflictYieldHysteresis
	}
	vMax := math.Max(ctx.DesiredSpeed, v)
	egoArrive := travelTime(conflict.Distance, v, a, vMax)
	egoClear := travelTime(conflict.Distance+conflict.Length+ctx.Ego.Length, v, a, vMax)
	overlap := false
	for _, g := range conflict.Upstream {
		if g.Parallel {
			continue
		}
		if g.Distance > x0 {
			break
		}
		gArrive := travelTime(g.Distance, g.Speed, 0, g.Speed)
		gClear := travelTime(g.Distance+conflict.Length+g.Length, g.Speed, 0, g.Speed)
		if egoArrive < gClear+margin && gArrive < egoClear+margin {
			overlap = true
			break
		}
	}
	switch {
	case !overlap:
		mem.plan = planGo
		return false, nil
	case mem.plan != planYield && !canStop:
		mem.plan = planGo
		return false, nil
	default:
		mem.plan = planYield
		return true, nil
	}
}

// travelTime 以加速度a从速度v加速（不超过vMax）行驶x所需的时间
// 说明：无法到达时返回+Inf
func travelTime(x, v, a, vMax float64) float64 {
	if x <= 0 {
		return 0
	}
	if a <= 0 || v >= vMax {
		if v <= 0 {
			return mathutil.INF
		}
		return x / v
	}
	t1 := (vMax - v) / a
	x1 := v*t1 + a*t1*t1/2
	if x <= x1 {
		return (-v + math.Sqrt(v*v+2*a*x)) / a
	}
	return t1 + (x-x1)/vMax
}
