package lane

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
)

// Lane 直路上的一条车道
// 功能：维护车道上按位置排序的车辆链表与左右车道支链，提供限速、信号灯、公交站与冲突区等静态与动态信息
// 说明：车道共享道路的纵向坐标，位置s在所有车道上含义相同
type Lane struct {
	id      int32
	index   int     // 从左到右的下标，0为最左侧车道
	length  float64 // 车道终点位置
	deadEnd bool    // 车道在道路终点之前结束
	width   float64
	road    *road

	sideLanes [2]*Lane // 左/右侧车道
	vehicles  laneList[entity.IVehicle, entity.VehicleSideLink]

	// 信号灯

	hasLight                bool
	stopLine                float64
	lightState              mapv2.LightState
	lightStateTotalTime     float64
	lightStateRemainingTime float64

	busStops  []*entity.BusStop
	conflicts []*entity.Conflict

	// 统计

	vehicleCount int
	meanSpeed    float64
}

func newLane(r *road, index int, width float64) *Lane {
	id := int32(index)
	return &Lane{
		id:         id,
		index:      index,
		length:     r.length,
		width:      width,
		road:       r,
		vehicles:   newLaneList[entity.IVehicle, entity.VehicleSideLink](fmt.Sprintf("lane %d vehicles", id)),
		lightState: mapv2.LightState_LIGHT_STATE_GREEN,
		busStops:   make([]*entity.BusStop, 0),
		conflicts:  make([]*entity.Conflict, 0),
	}
}

// prepare 维护本车道链表
func (l *Lane) prepare() {
	l.vehicles.prepare()
}

// prepare2 构建本车道链表支链
// 说明：等待相邻车道完成主链构建后进行，Links[side][BEFORE]为相邻车道上最后一辆位置小于本车的车辆，
// Links[side][AFTER]为第一辆位置大于等于本车的车辆
func (l *Lane) prepare2() {
	for _, side := range []int{entity.LEFT, entity.RIGHT} {
		neighbor := l.sideLanes[side]
		var nBack *entity.VehicleNode
		var nFront *entity.VehicleNode
		if neighbor != nil {
			nFront = neighbor.vehicles.list.First()
		}
		for node := l.vehicles.list.First(); node != nil; node = node.Next() {
			for nFront != nil && nFront.S < node.S {
				nBack = nFront
				nFront = nFront.Next()
			}
			node.Extra.Links[side][entity.BEFORE] = nBack
			node.Extra.Links[side][entity.AFTER] = nFront
		}
	}
}

// update 统计车道车辆数与平均车速
func (l *Lane) update() {
	values := l.vehicles.list.Values()
	l.vehicleCount = len(values)
	if l.vehicleCount == 0 {
		l.meanSpeed = 0
		return
	}
	l.meanSpeed = lo.SumBy(values, func(v entity.IVehicle) float64 { return v.V() }) / float64(l.vehicleCount)
}

func (l *Lane) String() string {
	return fmt.Sprintf("Lane %d", l.id)
}

// 获取Lane ID
func (l *Lane) ID() int32 {
	return l.id
}

// 从左到右的车道下标
func (l *Lane) Index() int {
	return l.index
}

// 车道终点位置
func (l *Lane) Length() float64 {
	return l.length
}

// 获取Lane宽度
func (l *Lane) Width() float64 {
	return l.width
}

// 车道在道路终点之前结束
func (l *Lane) DeadEnd() bool {
	return l.deadEnd
}

// 获取左侧的Lane
func (l *Lane) LeftLane() entity.ILane {
	return l.NeighborLane(entity.LEFT)
}

// 获取右侧的Lane
func (l *Lane) RightLane() entity.ILane {
	return l.NeighborLane(entity.RIGHT)
}

// 根据side获取左(side=0)/右(side=1)侧的Lane，不存在时返回nil
func (l *Lane) NeighborLane(side int) entity.ILane {
	if n := l.sideLanes[side]; n != nil {
		return n
	}
	return nil
}

// SpeedLimitProspect 位置s处的限速前景
func (l *Lane) SpeedLimitProspect(s float64) entity.SpeedLimitProspect {
	return l.road.speedLimitProspect(s)
}

// Light 停车线位置与信号灯状态
func (l *Lane) Light() (float64, mapv2.LightState, float64, float64, bool) {
	return l.stopLine, l.lightState, l.lightStateTotalTime, l.lightStateRemainingTime, l.hasLight
}

// 设置信号灯状态
func (l *Lane) SetLight(state mapv2.LightState, totalTime float64, remainingTime float64) {
	l.lightState = state
	l.lightStateTotalTime = totalTime
	l.lightStateRemainingTime = remainingTime
}

// NoChangeZone 位置s处或前方第一个禁止变道区段
func (l *Lane) NoChangeZone(s float64) (float64, float64, bool) {
	return l.road.noChangeZone(s)
}

func (l *Lane) BusStops() []*entity.BusStop {
	return l.busStops
}

func (l *Lane) Conflicts() []*entity.Conflict {
	return l.conflicts
}

// 获取第一辆车（位置最小）
func (l *Lane) FirstVehicle() *entity.VehicleNode {
	return l.vehicles.list.First()
}

// 获取最后一辆车（位置最大）
func (l *Lane) LastVehicle() *entity.VehicleNode {
	return l.vehicles.list.Last()
}

// 获取车道上的车辆
func (l *Lane) Vehicles() *entity.VehicleList {
	return l.vehicles.list
}

// 向Lane链表中添加车辆（Prepare后生效）
func (l *Lane) AddVehicle(node *entity.VehicleNode) {
	l.vehicles.add(node)
}

// 从Lane链表中移除车辆（Prepare后生效）
func (l *Lane) RemoveVehicle(node *entity.VehicleNode) {
	l.vehicles.remove(node)
}

// Stats 上一步更新后的车辆数与平均车速
func (l *Lane) Stats() (count int, meanSpeed float64) {
	return l.vehicleCount, l.meanSpeed
}
