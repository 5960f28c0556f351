// 跟车模型：IDM族模型、期望速度与期望车距子模型、加速度步与最小车距求解
package carfollowing

import (
	"errors"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

var (
	// ErrNotSupported 该模型不支持此操作
	ErrNotSupported = errors.New("operation not supported by this car-following model")
	// ErrUnboundedSearch 最小车距搜索无法找到满足减速度约束的上界
	ErrUnboundedSearch = errors.New("minimum headway search is unbounded")
)

// Model 跟车模型
// 说明：leaders按距离由近及远排序，第一辆前车距离非正（或并行）时返回-Inf
type Model interface {
	Name() string
	// DesiredSpeed 期望速度（米/秒）
	DesiredSpeed(params *parameter.Set, sli entity.SpeedLimitInfo) (float64, error)
	// DesiredHeadway 期望车距（米）
	DesiredHeadway(params *parameter.Set, speed float64) (float64, error)
	// Acceleration 加速度（米/秒²）
	Acceleration(
		params *parameter.Set,
		speed, desiredSpeed, desiredHeadway float64,
		leaders []*entity.HeadwayGtu,
	) (float64, error)
}

// DesiredSpeedModel 期望速度子模型
type DesiredSpeedModel interface {
	DesiredSpeed(params *parameter.Set, sli entity.SpeedLimitInfo) (float64, error)
}

// DesiredHeadwayModel 期望车距子模型
type DesiredHeadwayModel interface {
	DesiredHeadway(params *parameter.Set, speed float64) (float64, error)
}
