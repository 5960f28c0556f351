package task

import (
	"fmt"
	"sync/atomic"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/clock"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/input"
)

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态
// 说明：管理时钟、车道、信号灯、车辆与配置，实现entity.ITaskContext
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，处理与syncer、其他服务的交互
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}

	// Lane管理器
	laneManager *lane.LaneManager
	// 信号灯
	trafficLight *trafficlight.FixedTrafficLight
	// 车辆管理器
	vehicleManager *vehicle.VehicleManager

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig

	// 用于初始化的输入
	initRes *input.Input
}

var _ entity.ITaskContext = (*Context)(nil)

// NewContext 创建新的仿真任务上下文
// 功能：校验配置、加载输入数据并创建各类模拟对象
// 参数：
//   - job: 任务名称
//   - cacheDir: 缓存目录
//   - c: 配置对象
//   - sidecar: sidecar实例，为nil时不注册RPC服务
//   - startSidecarServe: 是否启动sidecar服务
//
// 返回：Context实例，配置或输入数据不合法时返回错误
func NewContext(
	job string,
	cacheDir string,
	c config.Config,
	sidecar *syncer.Sidecar,
	startSidecarServe bool,
) (*Context, error) {
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ctx := &Context{
		job:            job,
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		runtimeConfig:  rc,
	}
	ctx.clock = clock.New(rc.C.Step)

	// 下载所有模拟器启动所需的数据
	if ctx.initRes, err = input.Init(rc.All, cacheDir); err != nil {
		return nil, err
	}

	// 新建各类模拟对象
	ctx.laneManager = lane.NewManager()
	ctx.vehicleManager = vehicle.NewManager(ctx)

	if sidecar != nil {
		ctx.clock.Register(sidecar)
		ctx.vehicleManager.Register(sidecar)
		// sidecar协程，用于提供RPC服务
		if startSidecarServe {
			go func() {
				if err := sidecar.Serve(); err != nil {
					log.Panicf("failed to serve: %v", err)
				}
				ctx.sidecarCloseCh <- struct{}{}
			}()
		}
	}
	return ctx, nil
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) LaneManager() entity.ILaneManager {
	return ctx.laneManager
}

func (ctx *Context) TrafficLight() entity.ITrafficLight {
	return ctx.trafficLight
}

func (ctx *Context) VehicleManager() entity.IVehicleManager {
	return ctx.vehicleManager
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// Init 初始化道路、信号灯与车辆
func (ctx *Context) Init() error {
	ctx.clock.Init()
	c := ctx.runtimeConfig.All
	fleet := ctx.initRes.Fleet.GetPersons()
	log.Infof("Lane: %v", c.Road.Lanes)
	log.Infof("Vehicle type: %v", len(c.VehicleTypes))
	log.Infof("Fleet: %v", len(fleet))

	ctx.laneManager.Init(c.Road)
	tl, err := trafficlight.New(c.Road.TrafficLight, lo.Map(ctx.laneManager.Lanes(), func(l entity.ILane, _ int) entity.ILaneTrafficLightSetter {
		return l
	}))
	if err != nil {
		return fmt.Errorf("traffic light: %w", err)
	}
	ctx.trafficLight = tl
	return ctx.vehicleManager.Init(c, fleet)
}

func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	if ctx.sidecar != nil {
		ctx.sidecar.Close()
		// wait for graceful stop
		<-ctx.sidecarCloseCh
	}
	ctx.closed.Store(true)
}
