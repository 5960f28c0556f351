package vehicle

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/protoutil"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/lmrs"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/container"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// laneChange 进行中的变道
type laneChange struct {
	Direction  entity.LateralDirectionality // 变道方向，DirNone表示未在变道
	ShadowLane entity.ILane                 // 变道过程中同时占用的另一条车道
	Switched   bool                         // 是否已归属目标车道
	Fraction   float64                      // 横向完成度
}

// runtime 车辆运行时数据
type runtime struct {
	Status    personv2.Status
	Lane      entity.ILane
	S         float64 // 车头位置（米）
	V         float64
	A         float64
	LC        laneChange
	Indicator entity.LateralDirectionality
	Published entity.BehaviorState
	Distance  float64 // 累计行驶距离（米）
}

func (rt *runtime) String() string {
	lane := "nil"
	if rt.Lane != nil {
		lane = rt.Lane.String()
	}
	return fmt.Sprintf("{%v %s s=%.2f v=%.2f a=%.2f lc=%v(%.2f)}", rt.Status, lane, rt.S, rt.V, rt.A, rt.LC.Direction, rt.LC.Fraction)
}

// Vehicle 直路上由LMRS规划器驱动的车辆
// 功能：维护车辆在车道链表中的节点，每步根据感知快照规划并积分运动学
// 说明：其他车辆只能通过snapshot读取本车状态，runtime只在本车Update中修改
type Vehicle struct {
	container.IncrementalItemBase

	ctx entity.ITaskContext
	m   *VehicleManager

	id       int32
	typeName string
	length   float64
	width    float64
	maxSpeed float64

	params  *parameter.Set
	planner *lmrs.Lmrs

	exit      bool             // 是否驶向出口
	busStops  map[int32]bool   // 需要停靠的站点
	departure float64          // 发车时刻（秒）
	start     *geov2.Position  // 发车位置
	startV    float64          // 发车速度
	base      *personv2.Person // 车队输入或由需求生成的基础数据

	node       *entity.VehicleNode // 所属车道上的链表节点
	shadowNode *entity.VehicleNode // 变道中另一条车道上的链表节点

	snapshot, runtime runtime
	perception        *perception

	departedAt float64
	finished   bool
}

// ID 车辆ID
func (v *Vehicle) ID() int32 {
	return v.id
}

// V 速度（snapshot）
func (v *Vehicle) V() float64 {
	return v.snapshot.V
}

// Length 车长
func (v *Vehicle) Length() float64 {
	return v.length
}

// S 车头位置（snapshot）
func (v *Vehicle) S() float64 {
	return v.snapshot.S
}

// Lane 所属车道（snapshot），未上路时为nil
func (v *Vehicle) Lane() entity.ILane {
	return v.snapshot.Lane
}

// Status 状态（snapshot）
func (v *Vehicle) Status() personv2.Status {
	return v.snapshot.Status
}

// Observe 周边车辆可以感知到的本车状态
func (v *Vehicle) Observe() entity.HeadwayGtu {
	state := v.snapshot.Published
	return entity.HeadwayGtu{
		ID:           v.id,
		Speed:        v.snapshot.V,
		Acceleration: v.snapshot.A,
		Length:       v.length,
		LaneChange:   v.snapshot.LC.Direction,
		Indicator:    v.snapshot.Indicator,
		Parameters:   v.params,
		State:        &state,
	}
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("Vehicle %d (%s) snapshot: %v runtime: %v", v.id, v.typeName, &v.snapshot, &v.runtime)
}

// depart 上路
func (v *Vehicle) depart(lane entity.ILane, now float64) {
	v.runtime = runtime{
		Status: personv2.Status_STATUS_DRIVING,
		Lane:   lane,
		S:      v.start.LanePosition.S,
		V:      v.startV,
	}
	v.snapshot = v.runtime
	v.node = &entity.VehicleNode{S: v.runtime.S, Value: v}
	lane.AddVehicle(v.node)
	v.departedAt = now
	log.Debugf("vehicle %d departs at lane %d s=%.1f", v.id, lane.Index(), v.runtime.S)
}

// prepareNode 准备阶段：冻结snapshot并更新链表节点的位置
func (v *Vehicle) prepareNode() {
	v.snapshot = v.runtime
	if v.node != nil {
		v.node.S = v.runtime.S
	}
	if v.shadowNode != nil {
		v.shadowNode.S = v.runtime.S
	}
}

// prepare 准备阶段：生成感知快照
func (v *Vehicle) prepare() {
	v.perception = newPerception(v)
}

// update 更新阶段
// 功能：规划、积分运动学、维护变道与车道归属、判断离开路段
// 算法说明：
// 1. 规划失败时本步加速度为0，变道状态不变
// 2. 变道完成度达到0.5时交换主节点与影子节点，变道结束时移除影子节点
// 3. 车道尽头处停车；驶过出口或道路终点时离开
func (v *Vehicle) update(dt float64) {
	rt := &v.runtime
	a := 0.
	dec, err := v.planner.Plan(v.perception)
	if err == nil && math.IsInf(dec.Acceleration, 1) {
		err = fmt.Errorf("unbounded acceleration %v", dec.Acceleration)
	}
	if err != nil {
		log.Warnf("vehicle %d: planning failed, keep speed in this step: %v", v.id, err)
		v.m.recordFailure()
	} else {
		a = dec.Acceleration
		rt.Indicator = dec.Indicator
		rt.Published = dec.Published
		v.updateLaneChange(dec.Intent)
	}

	speed, ds := computeVAndDistance(rt.V, a, dt)
	if math.IsInf(a, -1) {
		a = -rt.V / dt
	}
	rt.V = math.Min(speed, v.maxSpeed)
	rt.A = a
	rt.S += ds
	rt.Distance += ds
	v.m.recordRunning(dt, ds)

	if rt.Lane.DeadEnd() && rt.S > rt.Lane.Length() {
		log.Warnf("vehicle %d stopped at the end of lane %d", v.id, rt.Lane.Index())
		rt.S = rt.Lane.Length()
		rt.V = 0
	}

	if v.exit {
		if lane, s, ok := v.ctx.LaneManager().Exit(); ok && rt.S >= s {
			if rt.Lane == lane {
				v.finish("exit")
				return
			}
			log.Infof("vehicle %d missed the exit at lane %d", v.id, lane.Index())
			v.exit = false
		}
	}
	if rt.S >= v.ctx.LaneManager().RoadLength() {
		v.finish("road end")
	}
}

// updateLaneChange 根据规划意图维护车道归属
func (v *Vehicle) updateLaneChange(intent lmrs.Intent) {
	rt := &v.runtime
	if intent.Direction == entity.DirNone {
		if rt.LC.Direction != entity.DirNone {
			log.Panicf("vehicle %d: lane change %v dropped by planner", v.id, rt.LC.Direction)
		}
		return
	}
	if rt.LC.Direction == entity.DirNone {
		target := rt.Lane.NeighborLane(intent.Direction.Side())
		if target == nil {
			log.Panicf("vehicle %d: no lane to the %v of lane %d", v.id, intent.Direction, rt.Lane.Index())
		}
		if intent.Finished() {
			// 一步内完成变道
			rt.Lane.RemoveVehicle(v.node)
			v.node = &entity.VehicleNode{S: rt.S, Value: v}
			target.AddVehicle(v.node)
			rt.Lane = target
			return
		}
		v.shadowNode = &entity.VehicleNode{S: rt.S, Value: v}
		target.AddVehicle(v.shadowNode)
		rt.LC = laneChange{Direction: intent.Direction, ShadowLane: target}
	} else if rt.LC.Direction != intent.Direction {
		log.Panicf("vehicle %d: lane change %v turned into %v", v.id, rt.LC.Direction, intent.Direction)
	}
	rt.LC.Fraction = intent.Fraction()
	if !rt.LC.Switched && rt.LC.Fraction >= 0.5 {
		v.node, v.shadowNode = v.shadowNode, v.node
		rt.Lane, rt.LC.ShadowLane = rt.LC.ShadowLane, rt.Lane
		rt.LC.Switched = true
	}
	if intent.Finished() {
		rt.LC.ShadowLane.RemoveVehicle(v.shadowNode)
		v.shadowNode = nil
		rt.LC = laneChange{}
	}
}

// finish 离开路段
func (v *Vehicle) finish(reason string) {
	rt := &v.runtime
	rt.Lane.RemoveVehicle(v.node)
	v.node = nil
	if v.shadowNode != nil {
		rt.LC.ShadowLane.RemoveVehicle(v.shadowNode)
		v.shadowNode = nil
	}
	rt.LC = laneChange{}
	rt.Lane = nil
	rt.Status = personv2.Status_STATUS_SLEEP
	v.finished = true
	v.m.vehicles.Remove(v)
	v.m.recordTripEnd()
	log.Debugf("vehicle %d leaves by %s after %.1fs", v.id, reason, v.ctx.Clock().T-v.departedAt)
}

// ToMotionPb 产生车辆运动状态的Protobuf
func (v *Vehicle) ToMotionPb() *personv2.PersonMotion {
	rt := &v.snapshot
	pb := &personv2.PersonMotion{
		Id:       v.id,
		Status:   rt.Status,
		Position: &geov2.Position{},
		V:        rt.V,
		A:        rt.A,
		L:        v.length,
	}
	if rt.Lane != nil {
		pb.Position.LanePosition = &geov2.LanePosition{LaneId: rt.Lane.ID(), S: rt.S}
	} else if !v.finished {
		pb.Position = protoutil.Clone(v.start)
	}
	return pb
}

// ToPersonRuntimePb 产生车辆全量运行时Protobuf
func (v *Vehicle) ToPersonRuntimePb(returnBase bool) *personv2.PersonRuntime {
	pb := &personv2.PersonRuntime{Motion: v.ToMotionPb()}
	if returnBase {
		pb.Base = protoutil.Clone(v.base)
	}
	return pb
}
