package lmrs

import (
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
)

// fakePerception 按脚本返回的感知快照
type fakePerception struct {
	ego       entity.EgoState
	lanes     map[entity.RelativeLane]bool
	leaders   map[entity.RelativeLane][]*entity.HeadwayGtu
	followers map[entity.RelativeLane][]*entity.HeadwayGtu
	alongside map[entity.LateralDirectionality][]*entity.HeadwayGtu
	legal     map[entity.LateralDirectionality]float64
	physical  map[entity.LateralDirectionality]float64
	infos     map[entity.RelativeLane][]entity.LaneChangeInfo
	limits    map[entity.RelativeLane]entity.SpeedLimitProspect
	lights    map[entity.RelativeLane][]*entity.HeadwayTrafficLight
	conflicts map[entity.RelativeLane][]*entity.HeadwayConflict
	stops     map[entity.RelativeLane][]*entity.HeadwayBusStop
}

// newFake 本车速度为speed，除当前车道外还存在lanes中的车道，限速30米/秒
func newFake(speed float64, lanes ...entity.RelativeLane) *fakePerception {
	f := &fakePerception{
		ego:       entity.EgoState{ID: 7, Speed: speed, Length: 4.5, Width: 2},
		lanes:     map[entity.RelativeLane]bool{entity.LaneCurrent: true},
		leaders:   map[entity.RelativeLane][]*entity.HeadwayGtu{},
		followers: map[entity.RelativeLane][]*entity.HeadwayGtu{},
		alongside: map[entity.LateralDirectionality][]*entity.HeadwayGtu{},
		legal:     map[entity.LateralDirectionality]float64{},
		physical:  map[entity.LateralDirectionality]float64{},
		infos:     map[entity.RelativeLane][]entity.LaneChangeInfo{},
		limits:    map[entity.RelativeLane]entity.SpeedLimitProspect{},
		lights:    map[entity.RelativeLane][]*entity.HeadwayTrafficLight{},
		conflicts: map[entity.RelativeLane][]*entity.HeadwayConflict{},
		stops:     map[entity.RelativeLane][]*entity.HeadwayBusStop{},
	}
	for _, l := range lanes {
		f.lanes[l] = true
	}
	return f
}

func (f *fakePerception) Ego() entity.EgoState { return f.ego }

func (f *fakePerception) Leaders(lane entity.RelativeLane) []*entity.HeadwayGtu {
	return f.leaders[lane]
}

func (f *fakePerception) Followers(lane entity.RelativeLane) []*entity.HeadwayGtu {
	return f.followers[lane]
}

func (f *fakePerception) Alongside(lat entity.LateralDirectionality) []*entity.HeadwayGtu {
	return f.alongside[lat]
}

func (f *fakePerception) CrossSection(lane entity.RelativeLane) bool {
	return f.lanes[lane]
}

func (f *fakePerception) possibility(m map[entity.LateralDirectionality]float64, lane entity.RelativeLane, lat entity.LateralDirectionality) float64 {
	if !f.lanes[lane.Shift(lat)] {
		return 0
	}
	if v, ok := m[lat]; ok {
		return v
	}
	return 1000
}

func (f *fakePerception) LegalLaneChangePossibility(lane entity.RelativeLane, lat entity.LateralDirectionality) float64 {
	return f.possibility(f.legal, lane, lat)
}

func (f *fakePerception) PhysicalLaneChangePossibility(lane entity.RelativeLane, lat entity.LateralDirectionality) float64 {
	return f.possibility(f.physical, lane, lat)
}

func (f *fakePerception) LaneChangeInfo(lane entity.RelativeLane) []entity.LaneChangeInfo {
	return f.infos[lane]
}

func (f *fakePerception) SpeedLimitProspect(lane entity.RelativeLane) entity.SpeedLimitProspect {
	if p, ok := f.limits[lane]; ok {
		return p
	}
	return entity.SpeedLimitProspect{Current: entity.SpeedLimitInfo{Legal: 30}}
}

func (f *fakePerception) TrafficLights(lane entity.RelativeLane) []*entity.HeadwayTrafficLight {
	return f.lights[lane]
}

func (f *fakePerception) Conflicts(lane entity.RelativeLane) []*entity.HeadwayConflict {
	return f.conflicts[lane]
}

func (f *fakePerception) BusStops(lane entity.RelativeLane) []*entity.HeadwayBusStop {
	return f.stops[lane]
}

func gtu(id int32, distance, speed float64) *entity.HeadwayGtu {
	return &entity.HeadwayGtu{ID: id, Distance: distance, Speed: speed, Length: 4.5}
}

// newContext 以默认参数与IDM+构造单步上下文
func newContext(p *fakePerception) *Context {
	params := DefaultParameters()
	m := cf.NewIdmPlus()
	sli := p.SpeedLimitProspect(entity.LaneCurrent).Current
	v0, err := m.DesiredSpeed(params, sli)
	if err != nil {
		panic(err)
	}
	return &Context{
		Params:       params,
		Perception:   p,
		Model:        m,
		Ego:          p.Ego(),
		Sli:          sli,
		Dt:           0.5,
		LaneChange:   &LaneChangeState{},
		DesiredSpeed: v0,
	}
}

type fixedMandatory struct{ d Desire }

func (fixedMandatory) Name() string { return "fixed_mandatory" }

func (f fixedMandatory) Desire(*Context, Desire) (Desire, error) { return f.d, nil }

type fixedVoluntary struct{ d Desire }

func (fixedVoluntary) Name() string { return "fixed_voluntary" }

func (f fixedVoluntary) Desire(*Context, Desire, Desire) (Desire, error) { return f.d, nil }
