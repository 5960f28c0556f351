package carfollowing

import (
	"math"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/randengine"
)

// IdmDesiredSpeed 期望速度：限速乘以车辆对限速的遵从系数fSpeed
// 算法说明：
// 1. 非严格执法：min(限速*fSpeed, 车辆最大速度)
// 2. 严格执法：min(限速, 车辆最大速度)
type IdmDesiredSpeed struct{}

func (IdmDesiredSpeed) DesiredSpeed(params *parameter.Set, sli entity.SpeedLimitInfo) (float64, error) {
	if sli.Enforced {
		return math.Min(sli.Legal, sli.VehicleCap()), nil
	}
	fSpeed, err := params.Get(FSPEED)
	if err != nil {
		return 0, err
	}
	return math.Min(sli.Legal*fSpeed, sli.VehicleCap()), nil
}

// IdmDesiredHeadway 期望车距：s0 + v*T
type IdmDesiredHeadway struct{}

func (IdmDesiredHeadway) DesiredHeadway(params *parameter.Set, speed float64) (float64, error) {
	r := params.Reader()
	s0, t := r.Get(S0), r.Get(T)
	if err := r.Err(); err != nil {
		return 0, err
	}
	return s0 + speed*t, nil
}

// SampleFSpeed 采样车辆的限速遵从系数
// 功能：每辆车创建时采样一次，作为该车的个体特征写入参数集合
// 说明：服从N(123.7/120, 0.1)，与1的偏差限制在20%以内
func SampleFSpeed(e *randengine.Engine) float64 {
	return e.TruncatedNormal(FSpeedMean, FSpeedStd, 1-fSpeedMaxDeviation, 1+fSpeedMaxDeviation)
}
