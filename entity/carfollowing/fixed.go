package carfollowing

import (
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// Fixed 固定加速度模型（测试替身）
// 说明：期望速度与期望车距只有显式设置后才可用，否则返回ErrNotSupported
type Fixed struct {
	acc            float64
	desiredSpeed   *float64
	desiredHeadway *float64
}

// NewFixed 创建固定加速度模型
func NewFixed(acc float64) *Fixed {
	return &Fixed{acc: acc}
}

// WithDesired 设置期望速度与期望车距
func (f *Fixed) WithDesired(speed, headway float64) *Fixed {
	return &Fixed{acc: f.acc, desiredSpeed: &speed, desiredHeadway: &headway}
}

func (f *Fixed) Name() string {
	return fmt.Sprintf("Fixed(%v)", f.acc)
}

func (f *Fixed) DesiredSpeed(*parameter.Set, entity.SpeedLimitInfo) (float64, error) {
	if f.desiredSpeed == nil {
		return 0, fmt.Errorf("%w: %s desired speed", ErrNotSupported, f.Name())
	}
	return *f.desiredSpeed, nil
}

func (f *Fixed) DesiredHeadway(*parameter.Set, float64) (float64, error) {
	if f.desiredHeadway == nil {
		return 0, fmt.Errorf("%w: %s desired headway", ErrNotSupported, f.Name())
	}
	return *f.desiredHeadway, nil
}

func (f *Fixed) Acceleration(*parameter.Set, float64, float64, float64, []*entity.HeadwayGtu) (float64, error) {
	return f.acc, nil
}

// Sequential 按预设序列依次返回加速度的模型（测试替身）
// 说明：序列耗尽后重复最后一个值；非线程安全，只能由单个车辆持有
type Sequential struct {
	Fixed
	seq  []float64
	next int
}

// NewSequential 创建序列加速度模型
func NewSequential(seq ...float64) *Sequential {
	if len(seq) == 0 {
		log.Panic("NewSequential: empty sequence")
	}
	return &Sequential{seq: seq}
}

// WithDesired 设置期望速度与期望车距
func (s *Sequential) WithDesired(speed, headway float64) *Sequential {
	return &Sequential{Fixed: *s.Fixed.WithDesired(speed, headway), seq: s.seq, next: s.next}
}

func (s *Sequential) Name() string {
	return fmt.Sprintf("Sequential(%d)", len(s.seq))
}

func (s *Sequential) Acceleration(*parameter.Set, float64, float64, float64, []*entity.HeadwayGtu) (float64, error) {
	acc := s.seq[s.next]
	if s.next < len(s.seq)-1 {
		s.next++
	}
	return acc, nil
}
