// LMRS变道模型：意愿融合、同步、合作、空隙接受与车头时距松弛
package lmrs

import (
	"errors"
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// ErrInvalidConfig 规划器配置错误
var ErrInvalidConfig = errors.New("invalid lmrs configuration")

// Components 规划器的组成部分
// 说明：激励按切片顺序求值，顺序会影响意愿融合中的抑制逻辑
type Components struct {
	Mandatory       []MandatoryIncentive
	Voluntary       []VoluntaryIncentive
	Acceleration    []AccelerationIncentive
	Synchronization Synchronization
	Cooperation     Cooperation
	GapAcceptance   GapAcceptance
	Tailgating      Tailgating
	// SocioDesiredSpeed 后车的跟驰压力提高本车期望速度
	SocioDesiredSpeed bool
}

// Lmrs 单车的LMRS规划器
// 功能：每步根据感知快照计算加速度与变道意图
// 说明：规划器持有本车唯一的可变状态（变道状态、车头时距、冲突与站点记忆），不得在车辆之间共享
type Lmrs struct {
	model  cf.Model
	params *parameter.Set
	dt     float64
	c      Components

	state      State
	laneChange LaneChangeState
	headway    float64        // 松弛中的车头时距（秒），0表示尚未初始化
	leaderID   int32          // 上一步的第一辆前车，-1表示没有
	pressure   socialPressure // 本步后车施加的社会性压力
}

// New 创建规划器
// 参数：model-跟车模型，params-车辆参数，c-组成部分，dt-规划步长（秒）
// 返回：规划器，参数缺失或组成部分不完整时返回错误
func New(model cf.Model, params *parameter.Set, c Components, dt float64) (*Lmrs, error) {
	if model == nil || params == nil {
		return nil, fmt.Errorf("%w: nil model or parameters", ErrInvalidConfig)
	}
	if !(dt > 0) {
		return nil, &parameter.Error{Kind: parameter.ErrInvalidParameter, ID: "dt", Value: dt, Reason: "must be positive"}
	}
	if c.Synchronization == nil || c.Cooperation == nil || c.GapAcceptance == nil || c.Tailgating == nil {
		return nil, fmt.Errorf("%w: missing strategy", ErrInvalidConfig)
	}
	// 规划中读取的参数必须全部存在，配置错误在创建时暴露
	r := params.Reader()
	for _, t := range Types() {
		r.Get(t)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return &Lmrs{
		model:    model,
		params:   params,
		dt:       dt,
		c:        c,
		leaderID: -1,
	}, nil
}

// State 上一步结束时的规划器状态
func (l *Lmrs) State() State {
	if l.laneChange.Active() {
		return ChangingLane
	}
	return l.state
}

// LaneChange 当前的变道状态
func (l *Lmrs) LaneChange() LaneChangeState {
	return l.laneChange
}

// Params 车辆参数
func (l *Lmrs) Params() *parameter.Set {
	return l.params
}

// Model 跟车模型
func (l *Lmrs) Model() cf.Model {
	return l.model
}

// Headway 松弛中的车头时距（秒）
func (l *Lmrs) Headway() float64 {
	return l.headway
}

// Dt 规划步长（秒）
func (l *Lmrs) Dt() float64 {
	return l.dt
}

// Plan 单步规划
// 功能：根据感知快照计算本步加速度、变道意图与对外公布的行为状态
// 参数：p-感知快照
// 返回：规划结果
// 算法说明：
// 1. 社会性期望速度、车头时距松弛与跟驰压力
// 2. 意愿融合
// 3. 当前车道跟车；变道中同时跟随第二车道
// 4. 未变道时：车道尽头停车；意愿达到dFree且空隙可接受时开始变道，
// 否则意愿达到dSync时同步，达到dCoop时打转向灯；并为相邻车道车辆提供合作
// 5. 对相关车道逐一应用加速度激励
// 6. 推进变道状态
// 说明：规划失败时规划器状态回到调用前，本步不产生任何副作用
func (l *Lmrs) Plan(p entity.IPerception) (dec Decision, err error) {
	saved := *l
	defer func() {
		if err != nil {
			*l = saved
		}
	}()
	ego := p.Ego()
	if math.IsNaN(ego.Speed) || ego.Speed < 0 {
		return Decision{}, fmt.Errorf("%w: gtu %d speed %v", entity.ErrInvalidGtuState, ego.ID, ego.Speed)
	}
	sli := p.SpeedLimitProspect(entity.LaneCurrent).Current

	model, err := l.socialModel(p)
	if err != nil {
		return Decision{}, err
	}
	desiredSpeed, err := model.DesiredSpeed(l.params, sli)
	if err != nil {
		return Decision{}, err
	}
	params, err := l.relaxHeadway(p)
	if err != nil {
		return Decision{}, err
	}
	rho, params, err := l.c.Tailgating.Tailgate(p, params, desiredSpeed)
	if err != nil {
		return Decision{}, fmt.Errorf("tailgating %s: %w", l.c.Tailgating.Name(), err)
	}
	ctx := &Context{
		Params:       params,
		Perception:   p,
		Model:        model,
		Ego:          ego,
		Sli:          sli,
		Dt:           l.dt,
		LaneChange:   &l.laneChange,
		DesiredSpeed: desiredSpeed,
	}

	mandatory, desire, err := fuseDesire(ctx, l.c.Mandatory, l.c.Voluntary)
	if err != nil {
		return Decision{}, err
	}
	ctx.Mandatory, ctx.Desire = mandatory, desire

	ac := NewAction()
	base, err := cf.FollowingAcceleration(model, params, ego.Speed, sli, p.Leaders(entity.LaneCurrent))
	if err != nil {
		return Decision{}, err
	}
	ac.Update(base)

	lanes := []laneMerge{{lane: entity.LaneCurrent}}
	state := Idle
	if l.laneChange.Active() {
		state = ChangingLane
		second := l.laneChange.SecondLane()
		if err := l.followLane(ctx, second, &ac); err != nil {
			return Decision{}, err
		}
		ac.SetIndicatorIntent(l.laneChange.Direction, 0)
		lanes = append(lanes, laneMerge{lane: second})
	} else {
		state, lanes, err = l.decide(ctx, base, &ac, lanes)
		if err != nil {
			return Decision{}, err
		}
	}

	for _, lm := range lanes {
		for _, inc := range l.c.Acceleration {
			if err := inc.Accelerate(ctx, lm.lane, lm.merge, &ac); err != nil {
				return Decision{}, fmt.Errorf("%s: %w", inc.Name(), err)
			}
		}
	}

	dlc := 0.
	if l.laneChange.Active() {
		dlc = l.laneChange.Desire
	}
	intent := l.laneChange.advance(l.dt)
	if state != l.state {
		log.Debugf("gtu %d: %v -> %v (%v)", ego.ID, l.state, state, desire)
	}
	l.state = state
	if intent.Finished() {
		l.state = Idle
	}
	return Decision{
		Acceleration: ac.A,
		Intent:       intent,
		Indicator:    ac.Indicator,
		Desire:       desire,
		State:        state,
		Published: entity.BehaviorState{
			DLeft:        desire.Left,
			DRight:       desire.Right,
			DLC:          dlc,
			Rho:          rho,
			DesiredSpeed: desiredSpeed,
		},
	}, nil
}

// laneMerge 需要应用加速度激励的车道及其可开始变道前的距离
type laneMerge struct {
	lane  entity.RelativeLane
	merge float64
}

// decide 未变道时的决策：开始变道、同步或保持
func (l *Lmrs) decide(ctx *Context, base float64, ac *Action, lanes []laneMerge) (State, []laneMerge, error) {
	p := ctx.Perception
	dead, err := deadEndAcceleration(ctx)
	if err != nil {
		return Idle, nil, err
	}
	ac.Update(dead)

	r := ctx.Params.Reader()
	dFree, dSync, dCoop, lcDur := r.Get(DFREE), r.Get(DSYNC), r.Get(DCOOP), r.Get(LCDUR)
	if err := r.Err(); err != nil {
		return Idle, nil, err
	}
	state := Idle
	lat, d := ctx.Desire.Strongest()
	if d >= dFree && canChange(p, lat) && len(p.Alongside(lat)) == 0 {
		ok, err := l.c.GapAcceptance.Accept(ctx, lat, d, base)
		if err != nil {
			return Idle, nil, fmt.Errorf("gap acceptance %s: %w", l.c.GapAcceptance.Name(), err)
		}
		if ok {
			ok, err = noConflictingChanger(ctx, lat)
			if err != nil {
				return Idle, nil, err
			}
		}
		if ok {
			l.laneChange.start(lat, lcDur, d)
			t, err := headwayFromDesire(ctx.Params, d)
			if err != nil {
				return Idle, nil, err
			}
			l.headway = math.Min(l.headway, t)
			target := entity.RelativeLaneOf(lat, 1)
			if err := l.followLane(ctx, target, ac); err != nil {
				return Idle, nil, err
			}
			ac.SetIndicatorIntent(lat, 0)
			return ChangingLane, append(lanes, laneMerge{lane: target}), nil
		}
	}
	if d >= dSync && p.CrossSection(entity.RelativeLaneOf(lat, 1)) {
		state = Synchronizing
		aSync, err := l.c.Synchronization.Synchronize(ctx, lat, d)
		if err != nil {
			return Idle, nil, fmt.Errorf("synchronization %s: %w", l.c.Synchronization.Name(), err)
		}
		ac.Update(aSync)
		merge := mergeDistance(p, lat)
		if d >= dCoop {
			ac.SetIndicatorIntent(lat, merge)
		}
		lanes = append(lanes, laneMerge{lane: entity.RelativeLaneOf(lat, 1), merge: merge})
	}
	for _, side := range []entity.LateralDirectionality{entity.DirLeft, entity.DirRight} {
		aCoop, err := l.c.Cooperation.Cooperate(ctx, side)
		if err != nil {
			return Idle, nil, fmt.Errorf("cooperation %s: %w", l.c.Cooperation.Name(), err)
		}
		ac.Update(aCoop)
	}
	return state, lanes, nil
}

// followLane 跟随指定车道的前车
func (l *Lmrs) followLane(ctx *Context, lane entity.RelativeLane, ac *Action) error {
	acc, err := cf.FollowingAcceleration(ctx.Model, ctx.Params, ctx.Ego.Speed,
		ctx.SliAt(lane, 0), ctx.Perception.Leaders(lane))
	if err != nil {
		return err
	}
	ac.Update(acc)
	return nil
}

// noConflictingChanger 隔一条车道的附近车辆没有正在并入同一目标车道
func noConflictingChanger(ctx *Context, lat entity.LateralDirectionality) (bool, error) {
	lane := entity.RelativeLaneOf(lat, 2)
	if !ctx.Perception.CrossSection(lane) {
		return true, nil
	}
	reach, err := ctx.Model.DesiredHeadway(ctx.Params, ctx.Ego.Speed)
	if err != nil {
		return false, err
	}
	toTarget := lat.Flip()
	near := func(gtus []*entity.HeadwayGtu) bool {
		for _, g := range gtus {
			if !g.Parallel && math.Abs(g.Distance) > reach {
				return false
			}
			if g.LaneChange == toTarget || g.Indicator == toTarget {
				return true
			}
		}
		return false
	}
	return !near(ctx.Perception.Leaders(lane)) && !near(ctx.Perception.Followers(lane)), nil
}

// socialModel 本步的跟车模型，启用社会性期望速度时叠加后车压力
func (l *Lmrs) socialModel(p entity.IPerception) (cf.Model, error) {
	l.pressure = socialPressure{}
	if !l.c.SocioDesiredSpeed {
		return l.model, nil
	}
	sigma, err := l.params.Get(SOCIO)
	if err != nil {
		return nil, err
	}
	if f := firstNonParallel(p.Followers(entity.LaneCurrent)); f != nil && f.State != nil && f.State.Rho > 0 {
		l.pressure = socialPressure{factor: f.State.Rho * sigma, followerSpeed: f.State.DesiredSpeed}
	}
	return &socialModel{Model: l.model, pressure: l.pressure}, nil
}

// relaxHeadway 车头时距松弛
// 算法说明：
// 1. 首步取Tmax
// 2. 此后每步向Tmax松弛：T += (Tmax - T) * min(1, dt/τ)
// 3. 新前车以意愿dLC切入时：T = min(T, dLC*Tmin + (1-dLC)*Tmax)
func (l *Lmrs) relaxHeadway(p entity.IPerception) (*parameter.Set, error) {
	r := l.params.Reader()
	tMax, tau := r.Get(TMAX), r.Get(TAU)
	if err := r.Err(); err != nil {
		return nil, err
	}
	if l.headway <= 0 {
		l.headway = tMax
	} else {
		l.headway += (tMax - l.headway) * math.Min(1, l.dt/tau)
	}
	id := int32(-1)
	if leader := firstNonParallel(p.Leaders(entity.LaneCurrent)); leader != nil {
		id = leader.ID
		if id != l.leaderID && leader.State != nil && leader.State.DLC > 0 {
			t, err := headwayFromDesire(l.params, leader.State.DLC)
			if err != nil {
				return nil, err
			}
			l.headway = math.Min(l.headway, t)
		}
	}
	l.leaderID = id
	return l.params.With(cf.T, l.headway)
}
