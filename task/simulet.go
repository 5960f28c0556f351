package task

import (
	"flag"
	"sync"
)

const (
	SelfName = "lmrs" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：在每个仿真步骤开始时进行准备工作
// 算法说明：
// 1. 更新时钟：增加内部步数并计算当前时间
// 2. 心跳日志：定期输出车辆与车道状态
// 3. 准备：
//   - 车辆管理器：更新snapshot与链表节点，放行待发车辆
//   - 车道管理器：维护车道链表与支链
//   - 信号灯：灯色写入车道
//   - 车辆管理器：生成感知快照
//
// 说明：感知快照依赖链表与灯色，必须在最后生成
func (ctx *Context) prepare() {
	ctx.clock.InternalStep++
	ctx.clock.T = float64(ctx.clock.InternalStep) * ctx.clock.DT

	if ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		running, pending, stats := ctx.vehicleManager.Stats()
		count, meanSpeed := ctx.laneManager.Stats()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) running=%d pending=%d completed=%d failures=%d on_lanes=%d mean_v=%.2f",
			ctx.clock.InternalStep,
			hour, minute, second,
			running, pending, stats.NumCompletedTrips, stats.NumFailures,
			count, meanSpeed,
		)
	}

	ctx.vehicleManager.PrepareNode()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx.laneManager.Prepare() // lane
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx.trafficLight.Prepare() // traffic light
	}()
	wg.Wait()
	ctx.vehicleManager.Prepare()
}

// update 更新阶段，每步执行一次
// 功能：并行执行车辆规划与运动、信号灯相位推进与车道更新
// 说明：各部分只写自己的runtime，读取的都是Prepare阶段冻结的数据
func (ctx *Context) update() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx.vehicleManager.Update(ctx.clock.DT) // vehicle
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx.trafficLight.Update(ctx.clock.DT) // traffic light
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx.laneManager.Update() // lane
	}()
	wg.Wait()
}

// Run 运行
// 说明：每步由syncer驱动，准备阶段完成后通知syncer，其他服务可在此时查询状态
func (ctx *Context) Run() error {
	if err := ctx.Init(); err != nil {
		return err
	}
	// init syncer
	ctx.sidecar.Step(false)
	for {
		ctx.prepare()
		// 通知准备阶段完成
		log.Debugf("step %d: prepare complete and call NotifyStepReady", ctx.clock.InternalStep)
		ctx.sidecar.NotifyStepReady()
		ctx.update()
		log.Debugf("step %d: update complete", ctx.clock.InternalStep)
		close := false
		if ctx.clock.InternalStep+1 >= ctx.clock.END_STEP {
			close = ctx.sidecar.Step(true)
		} else {
			close = ctx.sidecar.Step(false)
		}
		if close || ctx.closed.Load() {
			break
		}
	}
	_, _, stats := ctx.vehicleManager.Stats()
	log.Infof("engine complete: %d trips completed, %d planning failures", stats.NumCompletedTrips, stats.NumFailures)
	ctx.Close()
	return nil
}
