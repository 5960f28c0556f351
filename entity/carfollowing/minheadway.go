package carfollowing

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

const (
	minHeadwayInitial    = 1.0 // 指数搜索的初始车距（米）
	minHeadwayMaxDoubles = 20  // 指数搜索的最大翻倍次数
)

// MinimumHeadway 最小车距
// 功能：二分求解使本车减速度恰好为b的最小净车距
// 参数：m/params-跟车模型与参数，sli-限速，speed-本车速度，leaderSpeed-前车速度，
// b-可接受的最大减速度（正数），precision-求解精度（米），maxDistance-结果上限（米）
// 返回：最小车距，或ErrInvalidParameter/ErrUnboundedSearch错误
// 算法说明：
// 1. 车距为0时减速度已不超过b，直接返回0
// 2. 从1米开始翻倍（最多20次）直到减速度不超过b，否则返回ErrUnboundedSearch
// 3. 在[lo, hi]之间二分ceil(log2((hi-lo)/precision))次，结果取满足约束的上界hi
// 4. 结果不超过maxDistance
func MinimumHeadway(
	m Model, params *parameter.Set, sli entity.SpeedLimitInfo,
	speed, leaderSpeed, b, precision, maxDistance float64,
) (float64, error) {
	if precision <= 0 || math.IsNaN(precision) {
		return 0, &parameter.Error{
			Kind:   parameter.ErrInvalidParameter,
			ID:     "precision",
			Value:  precision,
			Reason: "must be positive",
		}
	}
	desiredSpeed, err := m.DesiredSpeed(params, sli)
	if err != nil {
		return 0, err
	}
	desiredHeadway, err := m.DesiredHeadway(params, speed)
	if err != nil {
		return 0, err
	}
	accAt := func(headway float64) (float64, error) {
		return m.Acceleration(params, speed, desiredSpeed, desiredHeadway, []*entity.HeadwayGtu{
			{ID: -1, Distance: headway, Speed: leaderSpeed},
		})
	}
	acceptable := func(headway float64) (bool, error) {
		acc, err := accAt(headway)
		if err != nil {
			return false, err
		}
		return acc >= -b, nil
	}

	if ok, err := acceptable(0); err != nil {
		return 0, err
	} else if ok {
		// 模型允许在该速度下以零车距行驶
		return 0, nil
	}
	lo, hi := 0., minHeadwayInitial
	for i := 0; ; i++ {
		ok, err := acceptable(hi)
		if err != nil {
			return 0, err
		}
		if ok {
			break
		}
		if i == minHeadwayMaxDoubles {
			return 0, fmt.Errorf("%w: speed=%v leaderSpeed=%v b=%v headway>%v",
				ErrUnboundedSearch, speed, leaderSpeed, b, hi)
		}
		lo, hi = hi, 2*hi
	}
	n := int(math.Ceil(math.Log2((hi - lo) / precision)))
	for i := 0; i < n; i++ {
		mid := (lo + hi) / 2
		ok, err := acceptable(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid
		}
	}
	return math.Min(hi, maxDistance), nil
}
