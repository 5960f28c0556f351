package carfollowing

import "github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"

// 跟车模型参数
var (
	A        = parameter.NewType("a", "maximum desired acceleration (m/s2)", 1.25, parameter.Positive)
	B        = parameter.NewType("b", "maximum comfortable deceleration (m/s2)", 2.09, parameter.Positive)
	B0       = parameter.NewType("b0", "maximum adjustment deceleration when above desired speed (m/s2)", 0.5, parameter.Positive)
	S0       = parameter.NewType("s0", "stopping distance (m)", 3, parameter.NonNegative)
	T        = parameter.NewType("T", "desired time headway (s)", 1.2, parameter.Positive)
	DELTA    = parameter.NewType("delta", "acceleration exponent of the free term", 4, parameter.Positive)
	FSPEED   = parameter.NewType("fSpeed", "speed limit adherence factor", 1, parameter.Positive)
	NLEADERS = parameter.NewType("nLeaders", "number of leaders considered by IDM+Multi", 2, parameter.AtLeastOne)
)

const (
	// FSpeedMean fSpeed分布均值，123.7km/h的平均车速对应120km/h限速
	FSpeedMean = 123.7 / 120
	// FSpeedStd fSpeed分布标准差
	FSpeedStd = 0.1
	// fSpeed采样结果与1的偏差不超过20%
	fSpeedMaxDeviation = 0.2
)

// Types 跟车模型支持的全部参数类型
func Types() []*parameter.Type {
	return []*parameter.Type{A, B, B0, S0, T, DELTA, FSPEED, NLEADERS}
}
