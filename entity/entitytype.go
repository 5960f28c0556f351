package entity

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/container"
)

// entity/vehicle/vehicle.go的依赖倒置
// 说明：所有getter读取的都是Prepare阶段冻结的snapshot，Update阶段可以并发调用
type IVehicle interface {
	ID() int32
	V() float64      // 速度（米/秒）
	Length() float64 // 车长（米）
	S() float64      // 车头在道路上的位置（米）

	// Observe 周边车辆可以感知到的本车状态，Distance与Parallel由感知方填写
	Observe() HeadwayGtu

	String() string
}

// 车辆链表支链，记录左右车道的前后车辆
type VehicleSideLink struct {
	// [LEFT/RIGHT][BEFORE/AFTER]
	Links [2][2]*VehicleNode
}

func (l VehicleSideLink) String() string {
	name := func(n *VehicleNode) string {
		if n == nil {
			return "nil"
		}
		return fmt.Sprint(n.Value.ID())
	}
	return fmt.Sprintf("L-B: %s, L-F: %s, R-B: %s, R-F: %s",
		name(l.Links[LEFT][BEFORE]), name(l.Links[LEFT][AFTER]),
		name(l.Links[RIGHT][BEFORE]), name(l.Links[RIGHT][AFTER]),
	)
}

// 清空链表
func (l *VehicleSideLink) Clear() {
	l.Links = [2][2]*VehicleNode{}
}

// 车辆链表节点类型
type VehicleNode = container.ListNode[IVehicle, VehicleSideLink]

// 车辆链表类型
type VehicleList = container.List[IVehicle, VehicleSideLink]

// 车道上的公交站
type BusStop struct {
	ID        int32
	S         float64 // 停车位置（米）
	DwellTime float64 // 停站时间（秒）
}

// 车道上的冲突区，冲突车流按固定间隔到达
type Conflict struct {
	ID        int32
	S         float64 // 冲突区起点（米）
	Length    float64
	Type      ConflictType
	Rule      ConflictRule
	Indicator LateralDirectionality

	Headway      float64 // 冲突车流到达间隔（秒）
	StreamSpeed  float64 // 冲突车流速度（米/秒）
	StreamLength float64 // 冲突车流车长（米）
	Offset       float64 // 第一辆冲突车到达冲突区的时刻（秒）
}

// entity/lane/lane.go的依赖倒置
type ILane interface {
	ILaneTrafficLightSetter

	String() string

	// getter

	ID() int32       // 获取Lane ID
	Index() int      // 从左到右的车道下标
	Length() float64 // 车道终点位置（米），车道尽头时小于道路长度
	Width() float64  // 获取Lane宽度
	DeadEnd() bool   // 车道在道路终点之前结束

	LeftLane() ILane             // 获取左侧的Lane
	RightLane() ILane            // 获取右侧的Lane
	NeighborLane(side int) ILane // 根据side获取左(side=0)/右(side=1)侧的Lane

	// 车道状态

	SpeedLimitProspect(s float64) SpeedLimitProspect // 位置s处的限速前景
	// 信号灯停车线位置与状态，没有信号灯时ok为false
	Light() (stopLine float64, state mapv2.LightState, totalTime float64, remainingTime float64, ok bool)
	NoChangeZone(s float64) (start, end float64, ok bool) // 位置s处或前方第一个禁止变道区段
	BusStops() []*BusStop                                 // 按位置排序
	Conflicts() []*Conflict                               // 按位置排序

	// 获取特定位置车辆

	FirstVehicle() *VehicleNode // 获取第一辆车（位置最小）
	LastVehicle() *VehicleNode  // 获取最后一辆车（位置最大）
	Vehicles() *VehicleList     // 获取车道上的车辆

	// Lane链表操作

	AddVehicle(node *VehicleNode)    // 向Lane链表中添加车辆（Prepare后生效）
	RemoveVehicle(node *VehicleNode) // 从Lane链表中移除车辆（Prepare后生效）
}

// 车道的信控接口
type ILaneTrafficLightSetter interface {
	SetLight(state mapv2.LightState, totalTime float64, remainingTime float64) // 设置信号灯状态
}
