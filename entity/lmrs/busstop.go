package lmrs

import (
	"math"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
)

const (
	busStopTolerance = 1.0 // 到停车位置的距离小于该值时视为到站（米）
)

// busStopVisit 单个站点的停靠记录
type busStopVisit struct {
	arrived   bool
	departure float64 // 发车时刻（秒）
	served    bool
}

// BusStopMemory 公交车的到站记忆
// 功能：记录到站时刻、发车时刻与是否已服务，由强制激励与加速度激励共享
// 说明：不再被感知到的站点记录会被清除；每辆车各持有一个实例
type BusStopMemory struct {
	visits map[int32]*busStopVisit
}

// NewBusStopMemory 创建空的到站记忆
func NewBusStopMemory() *BusStopMemory {
	return &BusStopMemory{visits: make(map[int32]*busStopVisit)}
}

// served 站点是否已服务（或已错过）
func (m *BusStopMemory) served(id int32) bool {
	v, ok := m.visits[id]
	return ok && v.served
}

// visit 获取或创建站点记录
func (m *BusStopMemory) visit(id int32) *busStopVisit {
	v, ok := m.visits[id]
	if !ok {
		v = &busStopVisit{}
		m.visits[id] = v
	}
	return v
}

// forget 清除不再被感知到的站点
func (m *BusStopMemory) forget(p entity.IPerception) {
	seen := make(map[int32]struct{}, len(m.visits))
	mark := func(lane entity.RelativeLane) {
		for _, s := range p.BusStops(lane) {
			seen[s.ID] = struct{}{}
		}
	}
	mark(entity.LaneCurrent)
	for _, lat := range []entity.LateralDirectionality{entity.DirLeft, entity.DirRight} {
		for n := 1; p.CrossSection(entity.RelativeLaneOf(lat, n)); n++ {
			mark(entity.RelativeLaneOf(lat, n))
		}
	}
	for id := range m.visits {
		if _, ok := seen[id]; !ok {
			delete(m.visits, id)
		}
	}
}

// BusStops 公交站加速度激励
// 算法说明：
// 1. 对当前车道最近的未服务站点减速停车
// 2. 到站（距离小于容差且静止）时记录发车时刻 max(到站时刻+停站时间, 最早发车时刻)
// 3. 发车前保持静止：a = min(0, -v/dt)
// 4. 发车后标记为已服务；未停靠就越过的站点标记为已错过
type BusStops struct {
	memory *BusStopMemory
}

// NewBusStops 创建公交站加速度激励，与强制激励共享到站记忆
func NewBusStops(memory *BusStopMemory) *BusStops {
	return &BusStops{memory: memory}
}

func (*BusStops) Name() string { return "bus_stops" }

func (b *BusStops) Accelerate(ctx *Context, lane entity.RelativeLane, _ float64, ac *Action) error {
	if !lane.IsCurrent() {
		return nil
	}
	b.memory.forget(ctx.Perception)
	now, speed := ctx.Now(), ctx.Ego.Speed
	for _, stop := range ctx.Perception.BusStops(lane) {
		if b.memory.served(stop.ID) {
			continue
		}
		v := b.memory.visit(stop.ID)
		if !v.arrived {
			switch {
			case stop.Distance < -busStopTolerance:
				log.Warnf("bus %d missed stop %d", ctx.Ego.ID, stop.ID)
				v.served = true
				continue
			case stop.Distance > busStopTolerance:
				acc, err := cf.Stop(ctx.Model, ctx.Params, speed, ctx.Sli, stop.Distance)
				if err != nil {
					return err
				}
				ac.Update(acc)
				ac.SetIndicatorIntent(entity.DirRight, stop.Distance)
				return nil
			case speed >= stillSpeed:
				ac.Update(math.Min(0, -speed/ctx.Dt))
				return nil
			}
			v.arrived = true
			v.departure = math.Max(now+stop.DwellTime, stop.DepartureTime)
			log.Debugf("bus %d arrived at stop %d, depart at %.1f", ctx.Ego.ID, stop.ID, v.departure)
		}
		if now < v.departure {
			ac.Update(math.Min(0, -speed/ctx.Dt))
			return nil
		}
		v.served = true
	}
	return nil
}
