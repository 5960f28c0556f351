package lmrs

import (
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// LMRS参数
var (
	DFREE     = parameter.NewType("dFree", "free lane change desire threshold", 0.365, parameter.Fraction)
	DSYNC     = parameter.NewType("dSync", "synchronized lane change desire threshold", 0.577, parameter.Fraction)
	DCOOP     = parameter.NewType("dCoop", "cooperative lane change desire threshold", 0.788, parameter.Fraction)
	TMIN      = parameter.NewType("Tmin", "minimum time headway (s)", 0.56, parameter.Positive)
	TMAX      = parameter.NewType("Tmax", "regular time headway (s)", 1.2, parameter.Positive)
	TAU       = parameter.NewType("tau", "headway relaxation time (s)", 25, parameter.Positive)
	BCRIT     = parameter.NewType("bCrit", "critical deceleration (m/s2)", 3.5, parameter.Positive)
	LOOKAHEAD = parameter.NewType("x0", "look-ahead distance (m)", 295, parameter.Positive)
	T0        = parameter.NewType("t0", "look-ahead time for mandatory lane changes (s)", 43, parameter.Positive)
	VGAIN     = parameter.NewType("vGain", "speed gain for full voluntary desire (m/s)", 19.33, parameter.Positive)
	VCONG     = parameter.NewType("vCong", "speed threshold below which traffic is congested (m/s)", 16.67, parameter.Positive)
	LCDUR     = parameter.NewType("lcDur", "lane change duration (s)", 3, parameter.Positive)
	SOCIO     = parameter.NewType("sigma", "sensitivity to social pressure", 0.5, parameter.Fraction)
	COURTESY  = parameter.NewType("courtesy", "share of comfortable deceleration spent on cooperation", 1, parameter.NonNegative)
)

// Types LMRS及其跟车模型支持的全部参数类型
func Types() []*parameter.Type {
	return append(cf.Types(),
		DFREE, DSYNC, DCOOP, TMIN, TMAX, TAU, BCRIT,
		LOOKAHEAD, T0, VGAIN, VCONG, LCDUR, SOCIO, COURTESY,
	)
}

// DefaultParameters 带有阈值有序约束的默认参数集合
// 说明：dFree <= dSync <= dCoop、Tmin <= Tmax与b <= bCrit在每次修改时都会检查
func DefaultParameters() *parameter.Set {
	s := parameter.NewSet(Types()...)
	s, err := s.Ordered(DFREE, DSYNC, DCOOP)
	if err != nil {
		log.Panicf("DefaultParameters: %v", err)
	}
	if s, err = s.Ordered(TMIN, TMAX); err != nil {
		log.Panicf("DefaultParameters: %v", err)
	}
	if s, err = s.Ordered(cf.B, BCRIT); err != nil {
		log.Panicf("DefaultParameters: %v", err)
	}
	return s
}
