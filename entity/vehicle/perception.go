package vehicle

import (
	"cmp"
	"math"
	"slices"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/lmrs"
)

// perceivedLanes 感知车辆、信号灯等信息的相对车道范围
const perceivedLanes = 2

// lanePerception 某一相对车道上的感知结果
type lanePerception struct {
	lane      entity.ILane
	leaders   []*entity.HeadwayGtu
	followers []*entity.HeadwayGtu
	infos     []entity.LaneChangeInfo
	limits    entity.SpeedLimitProspect
	lights    []*entity.HeadwayTrafficLight
	conflicts []*entity.HeadwayConflict
	stops     []*entity.HeadwayBusStop
}

// perception 单车的感知快照
// 功能：在Prepare阶段根据snapshot生成，Update阶段只读
// 说明：相对车道超出±2时只回答车道是否存在
type perception struct {
	self      *Vehicle
	ego       entity.EgoState
	s         float64
	lane      entity.ILane
	lanes     map[entity.RelativeLane]*lanePerception
	alongside [2][]*entity.HeadwayGtu
}

var _ entity.IPerception = (*perception)(nil)

// newPerception 生成感知快照
// 算法说明：
// 1. 本车道沿链表向前后查找；相邻车道从支链出发，更远的车道在链表中定位
// 2. 与本车纵向重叠的相邻车道车辆标记为并行，同时记入Alongside
// 3. 静态信息（限速、信号灯、冲突区、公交站、路线要求）按前视距离x0截取
func newPerception(v *Vehicle) *perception {
	rt := &v.snapshot
	p := &perception{
		self: v,
		ego: entity.EgoState{
			ID:           v.id,
			Time:         v.ctx.Clock().T,
			Speed:        rt.V,
			Acceleration: rt.A,
			Length:       v.length,
			Width:        v.width,
		},
		s:     rt.S,
		lane:  rt.Lane,
		lanes: make(map[entity.RelativeLane]*lanePerception, 2*perceivedLanes+1),
	}
	x0 := v.params.GetOr(lmrs.LOOKAHEAD, lmrs.LOOKAHEAD.Default)
	for r := entity.RelativeLane(-perceivedLanes); r <= perceivedLanes; r++ {
		lane := p.resolve(r)
		if lane == nil {
			continue
		}
		lp := &lanePerception{lane: lane}
		lp.leaders, lp.followers = p.neighbors(r, lane, x0)
		lp.infos = p.laneChangeInfo(lane)
		lp.limits = lane.SpeedLimitProspect(p.s)
		lp.limits.Current.MaxVehicleSpeed = v.maxSpeed
		lp.lights = p.trafficLights(lane, x0)
		lp.conflicts = p.conflicts(lane, x0)
		lp.stops = p.busStops(lane, x0)
		p.lanes[r] = lp
	}
	for _, lat := range []entity.LateralDirectionality{entity.DirLeft, entity.DirRight} {
		if lp, ok := p.lanes[entity.RelativeLaneOf(lat, 1)]; ok {
			for _, g := range append(slices.Clone(lp.leaders), lp.followers...) {
				if g.Parallel {
					p.alongside[lat.Side()] = append(p.alongside[lat.Side()], g)
				}
			}
		}
	}
	return p
}

// resolve 相对车道对应的车道，不存在或在本车位置已结束时返回nil
func (p *perception) resolve(r entity.RelativeLane) entity.ILane {
	if r.IsCurrent() {
		return p.lane
	}
	lane, err := p.self.ctx.LaneManager().GetOrError(p.lane.Index() - int(r))
	if err != nil || lane.Length() <= p.s {
		return nil
	}
	return lane
}

// neighbors 相对车道r上的前车与后车
func (p *perception) neighbors(r entity.RelativeLane, lane entity.ILane, x0 float64) (leaders, followers []*entity.HeadwayGtu) {
	s, le := p.s, p.self.length
	var ahead, behind *entity.VehicleNode
	switch r.NumLanes() {
	case 0:
		ahead, behind = p.self.node.Next(), p.self.node.Prev()
	case 1:
		links := p.self.node.Extra.Links[r.Lat().Side()]
		ahead, behind = links[entity.AFTER], links[entity.BEFORE]
	default:
		ahead, behind = lane.Vehicles().FirstAfter(s), lane.Vehicles().LastBefore(s)
	}
	adjacent := !r.IsCurrent()
	for n := ahead; n != nil; n = n.Next() {
		if n.Value.ID() == p.self.id {
			continue
		}
		h := n.Value.Observe()
		if rear := n.S - n.L(); rear >= s || !adjacent {
			if rear-s > x0 {
				break
			}
			h.Distance = rear - s
		} else {
			h.Parallel = true
		}
		leaders = append(leaders, &h)
	}
	for n := behind; n != nil; n = n.Prev() {
		if n.Value.ID() == p.self.id {
			continue
		}
		h := n.Value.Observe()
		if gap := s - le - n.S; gap >= 0 || !adjacent {
			if gap > x0 {
				break
			}
			h.Distance = -gap
		} else {
			h.Parallel = true
		}
		followers = append(followers, &h)
	}
	return
}

// laneChangeInfo 车道尽头与出口产生的变道要求
func (p *perception) laneChangeInfo(lane entity.ILane) []entity.LaneChangeInfo {
	var infos []entity.LaneChangeInfo
	lm := p.self.ctx.LaneManager()
	if lane.DeadEnd() {
		n := math.MaxInt
		for _, other := range lm.Lanes() {
			if other.Length() > lane.Length() {
				n = min(n, abs(other.Index()-lane.Index()))
			}
		}
		infos = append(infos, entity.LaneChangeInfo{
			RemainingDistance:   lane.Length() - p.s,
			RequiredLaneChanges: n,
			DeadEnd:             true,
		})
	}
	if p.self.exit {
		if exit, s, ok := lm.Exit(); ok && s > p.s {
			if n := abs(exit.Index() - lane.Index()); n > 0 {
				infos = append(infos, entity.LaneChangeInfo{
					RemainingDistance:   s - p.s,
					RequiredLaneChanges: n,
				})
			}
		}
	}
	slices.SortFunc(infos, func(a, b entity.LaneChangeInfo) int {
		return cmp.Compare(a.RemainingDistance, b.RemainingDistance)
	})
	return infos
}

func (p *perception) trafficLights(lane entity.ILane, x0 float64) []*entity.HeadwayTrafficLight {
	stopLine, state, _, remaining, ok := lane.Light()
	if !ok || stopLine < p.s || stopLine-p.s > x0 {
		return nil
	}
	return []*entity.HeadwayTrafficLight{{
		ID:            lane.ID(),
		Distance:      stopLine - p.s,
		State:         state,
		RemainingTime: remaining,
	}}
}

// conflicts 前方冲突区及其冲突车流
// 说明：冲突车辆第k辆在Offset+k*Headway时刻到达冲突区起点，之后匀速通过
func (p *perception) conflicts(lane entity.ILane, x0 float64) []*entity.HeadwayConflict {
	var out []*entity.HeadwayConflict
	now := p.ego.Time
	for _, c := range lane.Conflicts() {
		d := c.S - p.s
		if d <= -(c.Length + p.self.length) {
			continue
		}
		if d > x0 {
			break
		}
		hc := &entity.HeadwayConflict{
			ID:        c.ID,
			Distance:  d,
			Length:    c.Length,
			Type:      c.Type,
			Rule:      c.Rule,
			Indicator: c.Indicator,
		}
		first := max(0, int(math.Ceil((now-c.Offset)/c.Headway)))
		for k := first; ; k++ {
			dist := (c.Offset + float64(k)*c.Headway - now) * c.StreamSpeed
			if dist > x0 {
				break
			}
			hc.Upstream = append(hc.Upstream, streamVehicle(c, k, dist))
		}
		for k := first - 1; k >= 0; k-- {
			rear := (now-c.Offset-float64(k)*c.Headway)*c.StreamSpeed - c.StreamLength
			if rear > x0 {
				break
			}
			hc.Downstream = append(hc.Downstream, streamVehicle(c, k, rear))
		}
		out = append(out, hc)
	}
	return out
}

// streamVehicle 冲突车流中的第k辆车，ID为负数
func streamVehicle(c *entity.Conflict, k int, distance float64) *entity.HeadwayGtu {
	return &entity.HeadwayGtu{
		ID:       -(c.ID*1000 + int32(k%1000) + 1),
		Distance: distance,
		Speed:    c.StreamSpeed,
		Length:   c.StreamLength,
	}
}

// busStops 本车需要停靠的站点
func (p *perception) busStops(lane entity.ILane, x0 float64) []*entity.HeadwayBusStop {
	var out []*entity.HeadwayBusStop
	for _, st := range lane.BusStops() {
		if !p.self.busStops[st.ID] {
			continue
		}
		d := st.S - p.s
		if d < -p.self.length {
			continue
		}
		if d > x0 {
			break
		}
		out = append(out, &entity.HeadwayBusStop{ID: st.ID, Distance: d, DwellTime: st.DwellTime})
	}
	return out
}

// entity.IPerception

func (p *perception) Ego() entity.EgoState {
	return p.ego
}

func (p *perception) Leaders(lane entity.RelativeLane) []*entity.HeadwayGtu {
	if lp, ok := p.lanes[lane]; ok {
		return lp.leaders
	}
	return nil
}

func (p *perception) Followers(lane entity.RelativeLane) []*entity.HeadwayGtu {
	if lp, ok := p.lanes[lane]; ok {
		return lp.followers
	}
	return nil
}

func (p *perception) Alongside(lat entity.LateralDirectionality) []*entity.HeadwayGtu {
	if lat == entity.DirNone {
		return nil
	}
	return p.alongside[lat.Side()]
}

func (p *perception) CrossSection(lane entity.RelativeLane) bool {
	if _, ok := p.lanes[lane]; ok {
		return true
	}
	return lane.NumLanes() > perceivedLanes && p.resolve(lane) != nil
}

// LegalLaneChangePossibility 禁止变道区段内返回到区段终点距离的相反数
func (p *perception) LegalLaneChangePossibility(lane entity.RelativeLane, lat entity.LateralDirectionality) float64 {
	from, to := p.resolve(lane), p.resolve(lane.Shift(lat))
	if from == nil || to == nil || lat == entity.DirNone {
		return 0
	}
	start, end, ok := from.NoChangeZone(p.s)
	if ok && start <= p.s {
		return -(end - p.s)
	}
	limit := math.Min(from.Length(), to.Length())
	if ok {
		limit = math.Min(limit, start)
	}
	return limit - p.s
}

func (p *perception) PhysicalLaneChangePossibility(lane entity.RelativeLane, lat entity.LateralDirectionality) float64 {
	from, to := p.resolve(lane), p.resolve(lane.Shift(lat))
	if from == nil || to == nil || lat == entity.DirNone {
		return 0
	}
	return math.Max(0, math.Min(from.Length(), to.Length())-p.s)
}

func (p *perception) LaneChangeInfo(lane entity.RelativeLane) []entity.LaneChangeInfo {
	if lp, ok := p.lanes[lane]; ok {
		return lp.infos
	}
	return nil
}

func (p *perception) SpeedLimitProspect(lane entity.RelativeLane) entity.SpeedLimitProspect {
	if lp, ok := p.lanes[lane]; ok {
		return lp.limits
	}
	return p.lanes[entity.LaneCurrent].limits
}

func (p *perception) TrafficLights(lane entity.RelativeLane) []*entity.HeadwayTrafficLight {
	if lp, ok := p.lanes[lane]; ok {
		return lp.lights
	}
	return nil
}

func (p *perception) Conflicts(lane entity.RelativeLane) []*entity.HeadwayConflict {
	if lp, ok := p.lanes[lane]; ok {
		return lp.conflicts
	}
	return nil
}

func (p *perception) BusStops(lane entity.RelativeLane) []*entity.HeadwayBusStop {
	if lp, ok := p.lanes[lane]; ok {
		return lp.stops
	}
	return nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
