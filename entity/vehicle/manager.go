package vehicle

import (
	"fmt"
	"slices"
	"sync"

	"git.fiblab.net/general/common/v2/parallel"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"git.fiblab.net/sim/protos/v2/go/city/person/v2/personv2connect"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/lmrs"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/container"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/randengine"
)

// minEntryGap 上路时与同车道车辆之间至少保留的净距（米）
const minEntryGap = 2

// GlobalRuntime 全局运行时数据结构
// 功能：管理全局运行时数据，包括完成行程数、总行驶时间、总行驶距离与规划失败次数
type GlobalRuntime struct {
	NumCompletedTrips int32   // 已完成的行程
	TravelTime        float64 // 总行驶时间
	TravelDistance    float64 // 总行驶距离
	NumFailures       int32   // 规划失败的车辆步数
}

// VehicleManager 车辆管理器
// 功能：按车辆类型创建规划器，管理待发车辆与路上车辆，每步并行执行感知与规划
type VehicleManager struct {
	personv2connect.UnimplementedPersonServiceHandler

	ctx entity.ITaskContext

	factories map[string]*lmrs.Factory
	engine    *randengine.Engine

	data     map[int32]*Vehicle
	vehicles *container.IncrementalArray[*Vehicle] // 路上的车辆
	pending  *container.PriorityQueue[*Vehicle]    // 按发车时刻排列的待发车辆

	snapshot, runtime GlobalRuntime
	runtimeMtx        sync.Mutex
}

// NewManager 创建车辆管理器实例
func NewManager(ctx entity.ITaskContext) *VehicleManager {
	return &VehicleManager{
		ctx:       ctx,
		factories: make(map[string]*lmrs.Factory),
		data:      make(map[int32]*Vehicle),
		vehicles:  container.NewIncrementalArray[*Vehicle](),
		pending:   container.NewPriorityQueue[*Vehicle](),
	}
}

// Init 初始化所有车辆
// 功能：创建各车辆类型的规划器工厂，再由车队输入或需求生成车辆
// 参数：c-已校验的配置，fleet-车队输入，为空时按需求生成
// 返回：车辆类型、车辆属性或参数覆盖不合法时返回错误
// 说明：个体参数的采样顺序固定，同一随机种子得到相同的车队
func (m *VehicleManager) Init(c config.Config, fleet []*personv2.Person) error {
	m.engine = randengine.New(c.Control.Seed)
	names := lo.Keys(c.VehicleTypes)
	slices.Sort(names)
	for _, name := range names {
		f, err := lmrs.NewFactory(name, c.VehicleTypes[name])
		if err != nil {
			return err
		}
		m.factories[name] = f
	}
	startT := m.ctx.Clock().T
	if len(fleet) == 0 {
		weights := lo.Map(lo.Range(c.Road.Lanes), func(int, int) float64 { return 1 })
		fleet = demandFleet(c, startT, func() int { return int(m.engine.DiscreteDistribution(weights)) })
	}
	vehicles := make([]*Vehicle, 0, len(fleet))
	for _, pb := range fleet {
		v, err := m.newVehicle(pb, startT)
		if err != nil {
			return err
		}
		vehicles = append(vehicles, v)
		m.pending.Push(v, v.departure)
	}
	m.pending.Heapify()
	m.data = lo.SliceToMap(vehicles, func(v *Vehicle) (int32, *Vehicle) {
		return v.id, v
	})
	if len(m.data) != len(vehicles) {
		return fmt.Errorf("fleet has duplicated vehicle ids")
	}
	log.Infof("%d vehicles of %d types", len(vehicles), len(m.factories))
	return nil
}

// newVehicle 由车队记录创建车辆
func (m *VehicleManager) newVehicle(pb *personv2.Person, startT float64) (*Vehicle, error) {
	typeName, exit, stops, departure, speed, err := parseLabels(pb, startT)
	if err != nil {
		return nil, err
	}
	if typeName == "" && len(m.factories) == 1 {
		typeName = lo.Keys(m.factories)[0]
	}
	f, ok := m.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("vehicle %d: unknown vehicle type %q", pb.Id, typeName)
	}
	attr := pb.GetVehicleAttribute()
	if err := checkAttribute(pb.Id, attr); err != nil {
		return nil, err
	}
	pos := pb.GetHome().GetLanePosition()
	if pos == nil {
		return nil, fmt.Errorf("vehicle %d has no lane position", pb.Id)
	}
	lane, err := m.ctx.LaneManager().GetOrError(int(pos.LaneId))
	if err != nil {
		return nil, fmt.Errorf("vehicle %d: %w", pb.Id, err)
	}
	if pos.S < attr.Length || pos.S >= lane.Length() {
		return nil, fmt.Errorf("vehicle %d: position %v out of lane %d [%v, %v)", pb.Id, pos.S, lane.Index(), attr.Length, lane.Length())
	}
	if exit {
		if _, _, ok := m.ctx.LaneManager().Exit(); !ok {
			return nil, fmt.Errorf("vehicle %d heads for an exit but the road has none", pb.Id)
		}
	}
	params, err := f.SampleParams(m.engine)
	if err != nil {
		return nil, fmt.Errorf("vehicle %d: %w", pb.Id, err)
	}
	if params, err = applyAttribute(params, attr); err != nil {
		return nil, fmt.Errorf("vehicle %d: %w", pb.Id, err)
	}
	planner, err := f.Create(params, m.ctx.Clock().DT)
	if err != nil {
		return nil, fmt.Errorf("vehicle %d: %w", pb.Id, err)
	}
	return &Vehicle{
		ctx:       m.ctx,
		m:         m,
		id:        pb.Id,
		typeName:  typeName,
		length:    attr.Length,
		width:     attr.Width,
		maxSpeed:  attr.MaxSpeed,
		params:    params,
		planner:   planner,
		exit:      exit,
		busStops:  stops,
		departure: departure,
		start:     pb.Home,
		startV:    min(speed, attr.MaxSpeed),
		base:      pb,
		snapshot:  runtime{Status: personv2.Status_STATUS_SLEEP},
		runtime:   runtime{Status: personv2.Status_STATUS_SLEEP},
	}, nil
}

// Get 根据ID获取车辆，如果不存在则panic
func (m *VehicleManager) Get(id int32) entity.IVehicle {
	v, err := m.GetOrError(id)
	if err != nil {
		log.Panic(err)
	}
	return v
}

// GetOrError 根据ID获取车辆，如果不存在则返回错误
func (m *VehicleManager) GetOrError(id int32) (entity.IVehicle, error) {
	if v, ok := m.data[id]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no id %d in vehicle data", id)
}

// Stats 路上车辆数、待发车辆数与上一步的全局统计
func (m *VehicleManager) Stats() (running, pending int, stats GlobalRuntime) {
	return m.vehicles.Len(), m.pending.Len(), m.snapshot
}

// 准备阶段：链表节点更新
// 说明：先冻结路上车辆（含上一步离开的车辆）的snapshot，再按发车时刻放行待发车辆
func (m *VehicleManager) PrepareNode() {
	parallel.GoFor(m.vehicles.Data(), func(v *Vehicle) { v.prepareNode() })
	m.vehicles.Prepare()
	m.departPending()
	m.vehicles.Prepare()
}

// departPending 放行到达发车时刻的车辆
// 说明：发车位置被占用的车辆留在队列中下一步再试
func (m *VehicleManager) departPending() {
	now := m.ctx.Clock().T
	entered := make(map[entity.ILane][]*Vehicle)
	blocked := make([]*Vehicle, 0)
	for m.pending.Len() > 0 {
		v, t := m.pending.First()
		if t > now {
			break
		}
		m.pending.HeapPop()
		lane := m.ctx.LaneManager().Get(int(v.start.LanePosition.LaneId))
		if !m.canEnter(lane, v, entered[lane]) {
			blocked = append(blocked, v)
			continue
		}
		entered[lane] = append(entered[lane], v)
		v.depart(lane, now)
		m.vehicles.Add(v)
	}
	for _, v := range blocked {
		m.pending.HeapPush(v, v.departure)
	}
}

// canEnter 发车位置前后是否留有足够的净距
// 参数：lane-发车车道，v-待发车辆，entered-本步已在该车道放行的车辆（尚未进入链表）
// 说明：链表中的车辆按本步可能行驶的距离向前外推
func (m *VehicleManager) canEnter(lane entity.ILane, v *Vehicle, entered []*Vehicle) bool {
	s, dt := v.start.LanePosition.S, m.ctx.Clock().DT
	overlap := func(front, length float64) bool {
		return front+minEntryGap > s-v.length && front-length < s+minEntryGap
	}
	for n := lane.FirstVehicle(); n != nil; n = n.Next() {
		if n.S-n.L() > s+minEntryGap {
			break
		}
		if overlap(n.S+n.V()*dt, n.L()) {
			return false
		}
	}
	for _, o := range entered {
		if overlap(o.runtime.S, o.length) {
			return false
		}
	}
	return true
}

// 准备阶段：生成感知快照
func (m *VehicleManager) Prepare() {
	parallel.GoFor(m.vehicles.Data(), func(v *Vehicle) { v.prepare() })
	m.runtimeMtx.Lock()
	m.snapshot = m.runtime
	m.runtimeMtx.Unlock()
}

// 更新阶段
func (m *VehicleManager) Update(dt float64) {
	parallel.GoFor(m.vehicles.Data(), func(v *Vehicle) { v.update(dt) })
}

// recordRunning 记录在路上的车辆
func (m *VehicleManager) recordRunning(dt float64, ds float64) {
	m.runtimeMtx.Lock()
	defer m.runtimeMtx.Unlock()
	m.runtime.TravelTime += dt
	m.runtime.TravelDistance += ds
}

// recordTripEnd 记录行程结束
func (m *VehicleManager) recordTripEnd() {
	m.runtimeMtx.Lock()
	defer m.runtimeMtx.Unlock()
	m.runtime.NumCompletedTrips++
}

// recordFailure 记录规划失败
func (m *VehicleManager) recordFailure() {
	m.runtimeMtx.Lock()
	defer m.runtimeMtx.Unlock()
	m.runtime.NumFailures++
}
