package carfollowing

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// AccelerationStep 加速度步：在ValidUntil之前保持该加速度
type AccelerationStep struct {
	Acceleration float64 // 加速度（米/秒²）
	ValidUntil   float64 // 有效截止时间（秒）
	Duration     float64 // 有效时长（秒）
}

// NewAccelerationStep 创建加速度步
func NewAccelerationStep(acc, now, duration float64) AccelerationStep {
	return AccelerationStep{
		Acceleration: acc,
		ValidUntil:   now + duration,
		Duration:     duration,
	}
}

func (s AccelerationStep) String() string {
	return fmt.Sprintf("AccelerationStep{a=%.3f until=%.2f}", s.Acceleration, s.ValidUntil)
}

// DualAccelerationStep 插入空隙时的双加速度步
type DualAccelerationStep struct {
	Leader   AccelerationStep // 本车作为跟随者时受新前车约束的加速度
	Follower AccelerationStep // 新后车以本车为前车时的加速度
}

// TooDangerous 不存在安全插入方式时的结果
func TooDangerous(now, duration float64) DualAccelerationStep {
	return DualAccelerationStep{
		Leader:   NewAccelerationStep(-mathutil.INF, now, duration),
		Follower: NewAccelerationStep(-mathutil.INF, now, duration),
	}
}

// Min 两个角色中更严格的加速度
func (d DualAccelerationStep) Min() float64 {
	return math.Min(d.Leader.Acceleration, d.Follower.Acceleration)
}

func (d DualAccelerationStep) String() string {
	return fmt.Sprintf("DualAccelerationStep{leader=%v follower=%v}", d.Leader, d.Follower)
}

// ComputeDualAccelerationStep 计算将本车插入一组邻车时的双加速度步
// 功能：评估插入空隙后本车与新后车各自所需的加速度
// 参数：m/params-本车的跟车模型与参数，sli-限速，speed-本车速度，neighbors-带符号距离的邻车（负数为后方）
// 返回：双加速度步
// 算法说明：
// 1. 任一邻车并行（距离未定义）时直接返回TooDangerous
// 2. 前方邻车：本车以其为前车计算加速度，取最小值
// 3. 后方邻车：假设后车也使用本车的跟车模型与参数，以本车为前车计算加速度，取最小值
// 4. 没有前车时本车取自由加速度；没有后车时后车加速度为0
func ComputeDualAccelerationStep(
	m Model, params *parameter.Set, sli entity.SpeedLimitInfo, speed float64,
	neighbors []*entity.HeadwayGtu, now, duration float64,
) (DualAccelerationStep, error) {
	for _, n := range neighbors {
		if n.Parallel || math.IsNaN(n.Distance) {
			return TooDangerous(now, duration), nil
		}
	}
	leaderAcc, followerAcc := mathutil.INF, mathutil.INF
	hasLeader, hasFollower := false, false
	for _, n := range neighbors {
		if n.Distance < 0 {
			self := []*entity.HeadwayGtu{{ID: -1, Distance: -n.Distance, Speed: speed}}
			acc, err := FollowingAcceleration(m, params, n.Speed, sli, self)
			if err != nil {
				return DualAccelerationStep{}, err
			}
			followerAcc = math.Min(followerAcc, acc)
			hasFollower = true
		} else {
			acc, err := FollowingAcceleration(m, params, speed, sli, []*entity.HeadwayGtu{n})
			if err != nil {
				return DualAccelerationStep{}, err
			}
			leaderAcc = math.Min(leaderAcc, acc)
			hasLeader = true
		}
	}
	if !hasLeader {
		acc, err := FreeAcceleration(m, params, speed, sli)
		if err != nil {
			return DualAccelerationStep{}, err
		}
		leaderAcc = acc
	}
	if !hasFollower {
		followerAcc = 0
	}
	return DualAccelerationStep{
		Leader:   NewAccelerationStep(leaderAcc, now, duration),
		Follower: NewAccelerationStep(followerAcc, now, duration),
	}, nil
}
