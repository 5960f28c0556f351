package lmrs

import (
	"math"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
)

// Route 路线激励
// 功能：根据路线要求的变道次数与剩余距离产生强制意愿
// 算法说明：
// 1. 计算离开当前车道的意愿dCurr
// 2. 对每侧相邻车道计算离开该车道的意愿d：
//   - d < dCurr：该侧更接近路线，意愿为dCurr
//   - d > dCurr：该侧远离路线，意愿为-d
//   - 否则为0
type Route struct{}

func (Route) Name() string { return "route" }

func (Route) Desire(ctx *Context, _ Desire) (Desire, error) {
	r := ctx.Params.Reader()
	x0, t0 := r.Get(LOOKAHEAD), r.Get(T0)
	if err := r.Err(); err != nil {
		return Desire{}, err
	}
	leave := func(lane entity.RelativeLane) float64 {
		d := 0.
		for _, info := range ctx.Perception.LaneChangeInfo(lane) {
			d = math.Max(d, desireToLeave(x0, t0, info.RemainingDistance, info.RequiredLaneChanges, ctx.Ego.Speed))
		}
		return d
	}
	dCurr := leave(entity.LaneCurrent)
	side := func(lat entity.LateralDirectionality) float64 {
		lane := entity.RelativeLaneOf(lat, 1)
		if !ctx.Perception.CrossSection(lane) {
			return 0
		}
		d := leave(lane)
		switch {
		case d < dCurr:
			return dCurr
		case d > dCurr:
			return -d
		default:
			return 0
		}
	}
	return Desire{Left: side(entity.DirLeft), Right: side(entity.DirRight)}, nil
}

// BusStop 公交站激励
// 功能：公交车在到站前变道到站点所在车道，并在站点车道上不愿离开
type BusStop struct {
	memory *BusStopMemory
}

// NewBusStop 创建公交站激励，与加速度激励共享到站记忆
func NewBusStop(memory *BusStopMemory) *BusStop {
	return &BusStop{memory: memory}
}

func (*BusStop) Name() string { return "bus_stop" }

func (b *BusStop) Desire(ctx *Context, _ Desire) (Desire, error) {
	r := ctx.Params.Reader()
	x0, t0 := r.Get(LOOKAHEAD), r.Get(T0)
	if err := r.Err(); err != nil {
		return Desire{}, err
	}
	stop, lane := b.nextStop(ctx.Perception)
	if stop == nil {
		return Desire{}, nil
	}
	if lane.IsCurrent() {
		d := desireToLeave(x0, t0, stop.Distance, 1, ctx.Ego.Speed)
		return Desire{Left: -d, Right: -d}, nil
	}
	d := desireToLeave(x0, t0, stop.Distance, lane.NumLanes(), ctx.Ego.Speed)
	if lane.Lat() == entity.DirLeft {
		return Desire{Left: d, Right: -d}, nil
	}
	return Desire{Left: -d, Right: d}, nil
}

// nextStop 所有车道中最近的未服务站点
func (b *BusStop) nextStop(p entity.IPerception) (*entity.HeadwayBusStop, entity.RelativeLane) {
	var (
		best     *entity.HeadwayBusStop
		bestLane entity.RelativeLane
	)
	consider := func(lane entity.RelativeLane) {
		for _, s := range p.BusStops(lane) {
			if s.Distance < 0 || b.memory.served(s.ID) {
				continue
			}
			if best == nil || s.Distance < best.Distance {
				best, bestLane = s, lane
			}
			break
		}
	}
	consider(entity.LaneCurrent)
	for _, lat := range []entity.LateralDirectionality{entity.DirLeft, entity.DirRight} {
		for n := 1; p.CrossSection(entity.RelativeLaneOf(lat, n)); n++ {
			consider(entity.RelativeLaneOf(lat, n))
		}
	}
	return best, bestLane
}
