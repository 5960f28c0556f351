package lane

import (
	"cmp"
	"slices"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
)

// road 所有车道共享的道路属性
type road struct {
	length      float64
	speedLimits []config.SpeedSection // 按起点排序，第一段覆盖道路起点
	noChange    []config.NoChangeZone // 按起点排序
}

func newRoad(c config.Road) *road {
	r := &road{
		length:      c.Length,
		speedLimits: slices.Clone(c.SpeedLimits),
		noChange:    slices.Clone(c.NoChange),
	}
	slices.SortFunc(r.noChange, func(a, b config.NoChangeZone) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return r
}

// speedLimitProspect 位置s处的限速前景
// 说明：限速变化点只列出道路范围内的，距离相对s计算
func (r *road) speedLimitProspect(s float64) entity.SpeedLimitProspect {
	next := slices.IndexFunc(r.speedLimits, func(sec config.SpeedSection) bool {
		return sec.Start > s
	})
	if next == -1 {
		next = len(r.speedLimits)
	}
	cur := r.speedLimits[max(next-1, 0)]
	p := entity.SpeedLimitProspect{
		Current: entity.SpeedLimitInfo{Legal: cur.Legal, Enforced: cur.Enforced},
	}
	for _, sec := range r.speedLimits[next:] {
		if sec.Start >= r.length {
			break
		}
		p.Changes = append(p.Changes, entity.SpeedLimitChange{
			Distance: sec.Start - s,
			Legal:    sec.Legal,
			Enforced: sec.Enforced,
		})
	}
	return p
}

// noChangeZone 包含s或位于s前方的第一个禁止变道区段
func (r *road) noChangeZone(s float64) (start, end float64, ok bool) {
	for _, z := range r.noChange {
		if z.End > s {
			return z.Start, z.End, true
		}
	}
	return 0, 0, false
}
