package entity

import (
	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
)

// Manager依赖倒置

// entity/lane/manager.go的依赖倒置
type ILaneManager interface {
	Init(road config.Road) // 初始化

	// 输入车道下标，查找Lane，如果不存在则panic
	Get(index int) ILane
	// 输入车道下标，查找Lane，如果不存在则返回error
	GetOrError(index int) (ILane, error)
	Lanes() []ILane      // 从左到右的所有车道
	RoadLength() float64 // 道路长度（米）
	// 出口所在车道与位置，没有出口时ok为false
	Exit() (lane ILane, s float64, ok bool)

	Prepare() // 准备阶段
	Update()  // 更新阶段
}

// entity/trafficlight的依赖倒置
type ITrafficLight interface {
	Prepare()          // 准备阶段：灯色写入车道
	Update(dt float64) // 更新阶段
}

// entity/vehicle/manager.go的依赖倒置
type IVehicleManager interface {
	// 注册到Sidecar
	Register(sidecar *syncer.Sidecar)

	// 输入车辆ID，查找车辆，如果不存在则panic
	Get(id int32) IVehicle
	// 输入车辆ID，查找车辆，如果不存在则返回error
	GetOrError(id int32) (IVehicle, error)

	PrepareNode()      // 准备阶段：snapshot与链表节点更新
	Prepare()          // 准备阶段：生成感知快照
	Update(dt float64) // 更新阶段
}
