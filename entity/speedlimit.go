package entity

import (
	"fmt"
	"math"
)

// SpeedLimitInfo 某一位置的限速信息
type SpeedLimitInfo struct {
	Legal           float64 // 法定限速（米/秒）
	Enforced        bool    // 是否严格执法（执法时驾驶员不会超出限速）
	MaxVehicleSpeed float64 // 车辆最大速度（米/秒），非正数表示不限制
}

func (s SpeedLimitInfo) String() string {
	return fmt.Sprintf("SpeedLimit{legal=%.2f enforced=%v vmax=%.2f}", s.Legal, s.Enforced, s.MaxVehicleSpeed)
}

// VehicleCap 车辆最大速度，未设置时返回+Inf
func (s SpeedLimitInfo) VehicleCap() float64 {
	if s.MaxVehicleSpeed <= 0 {
		return math.Inf(1)
	}
	return s.MaxVehicleSpeed
}

// SpeedLimitChange 前方限速变化点
type SpeedLimitChange struct {
	Distance float64 // 距离（米）
	Legal    float64
	Enforced bool
}

// SpeedLimitProspect 限速前景：当前限速与前方按距离排序的限速变化点
type SpeedLimitProspect struct {
	Current SpeedLimitInfo
	Changes []SpeedLimitChange
}

// InfoAt 获取指定距离处的限速信息
// 参数：distance-相对本车的距离（米），非正数时返回当前限速
func (p SpeedLimitProspect) InfoAt(distance float64) SpeedLimitInfo {
	info := p.Current
	for _, c := range p.Changes {
		if c.Distance > distance {
			break
		}
		info.Legal = c.Legal
		info.Enforced = c.Enforced
	}
	return info
}

// Upcoming 获取(0, maxDistance]范围内的限速变化点
func (p SpeedLimitProspect) Upcoming(maxDistance float64) []SpeedLimitChange {
	var out []SpeedLimitChange
	for _, c := range p.Changes {
		if c.Distance > maxDistance {
			break
		}
		if c.Distance > 0 {
			out = append(out, c)
		}
	}
	return out
}
