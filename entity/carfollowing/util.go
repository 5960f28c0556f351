package carfollowing

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// FollowingAcceleration 跟车加速度
// 功能：依次计算期望速度、期望车距并调用模型
// 说明：第一辆前车已重叠时直接返回-Inf，不计算期望速度与车距
func FollowingAcceleration(
	m Model, params *parameter.Set, speed float64,
	sli entity.SpeedLimitInfo, leaders []*entity.HeadwayGtu,
) (float64, error) {
	if len(leaders) > 0 && collided(leaders[0]) {
		return -mathutil.INF, nil
	}
	desiredSpeed, err := m.DesiredSpeed(params, sli)
	if err != nil {
		return 0, err
	}
	desiredHeadway, err := m.DesiredHeadway(params, speed)
	if err != nil {
		return 0, err
	}
	return m.Acceleration(params, speed, desiredSpeed, desiredHeadway, leaders)
}

// FreeAcceleration 无前车时的加速度
func FreeAcceleration(m Model, params *parameter.Set, speed float64, sli entity.SpeedLimitInfo) (float64, error) {
	return FollowingAcceleration(m, params, speed, sli, nil)
}

// FollowSingleLeader 跟随单辆（可能是虚拟的）前车
// 参数：distance-净距离，leaderSpeed-前车速度
func FollowSingleLeader(
	m Model, params *parameter.Set, speed float64,
	sli entity.SpeedLimitInfo, distance, leaderSpeed float64,
) (float64, error) {
	return FollowingAcceleration(m, params, speed, sli, []*entity.HeadwayGtu{
		{ID: -1, Distance: distance, Speed: leaderSpeed},
	})
}

// Stop 在指定距离处停车
// 功能：以静止虚拟前车的方式计算停车所需的加速度
// 说明：距离非正时返回-Inf
func Stop(
	m Model, params *parameter.Set, speed float64,
	sli entity.SpeedLimitInfo, distance float64,
) (float64, error) {
	return FollowSingleLeader(m, params, speed, sli, distance, 0)
}

// ApproachTargetSpeed 在指定距离处达到目标速度
// 功能：在过渡点后方一个期望车距处放置以目标速度行驶的虚拟前车，提前平缓减速
// 参数：distance-到速度过渡点的距离，targetSpeed-目标速度
// 算法说明：
// 1. 目标速度为0时等价于停车
// 2. 虚拟前车距离为 max(distance, 0) + desiredHeadway(targetSpeed)
func ApproachTargetSpeed(
	m Model, params *parameter.Set, speed float64,
	sli entity.SpeedLimitInfo, distance, targetSpeed float64,
) (float64, error) {
	if targetSpeed <= 0 {
		return Stop(m, params, speed, sli, distance)
	}
	gap, err := m.DesiredHeadway(params, targetSpeed)
	if err != nil {
		return 0, err
	}
	return FollowSingleLeader(m, params, speed, sli, math.Max(distance, 0)+gap, targetSpeed)
}

// ComputeAccelerationStep 计算加速度步
// 参数：now-当前仿真时间，duration-有效时长
func ComputeAccelerationStep(
	m Model, params *parameter.Set, speed float64,
	sli entity.SpeedLimitInfo, leaders []*entity.HeadwayGtu,
	now, duration float64,
) (AccelerationStep, error) {
	acc, err := FollowingAcceleration(m, params, speed, sli, leaders)
	if err != nil {
		return AccelerationStep{}, err
	}
	return NewAccelerationStep(acc, now, duration), nil
}
