package parameter

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Set 参数集合
// 功能：保存一个车辆（或车辆类型）支持的全部参数及其取值
// 说明：
// 1. Set不可变，With等修改操作返回经过重新校验的新集合
// 2. 只有注册过的参数类型可以读取，否则返回ErrMissingParameter
// 3. 可以登记有序约束（例如dFree <= dSync <= dCoop），每次修改都会重新检查
type Set struct {
	values map[*Type]float64
	orders [][]*Type
}

// NewSet 以默认值注册参数类型
func NewSet(types ...*Type) *Set {
	s := &Set{values: make(map[*Type]float64, len(types))}
	for _, t := range types {
		s.values[t] = t.Default
	}
	return s
}

func (s *Set) clone() *Set {
	return &Set{
		values: maps.Clone(s.values),
		orders: slices.Clone(s.orders),
	}
}

// Ordered 登记有序约束：types中的取值必须单调不减
func (s *Set) Ordered(types ...*Type) (*Set, error) {
	for _, t := range types {
		if !s.Contains(t) {
			return nil, Missing(t)
		}
	}
	n := s.clone()
	n.orders = append(n.orders, types)
	if err := n.checkOrders(); err != nil {
		return nil, err
	}
	return n, nil
}

// Contains 是否注册了参数类型
func (s *Set) Contains(t *Type) bool {
	if s == nil {
		return false
	}
	_, ok := s.values[t]
	return ok
}

// Get 读取参数
func (s *Set) Get(t *Type) (float64, error) {
	if s == nil {
		return 0, Missing(t)
	}
	v, ok := s.values[t]
	if !ok {
		return 0, Missing(t)
	}
	return v, nil
}

// GetOr 读取参数，不存在时返回def
// 说明：只用于读取其他车辆可能不具备的参数（例如感知到的邻车参数）
func (s *Set) GetOr(t *Type, def float64) float64 {
	if v, err := s.Get(t); err == nil {
		return v
	}
	return def
}

// With 设置参数并返回新的集合
// 功能：修改参数取值，检查类型约束与有序约束
// 参数：t-参数类型，v-新取值
// 返回：新的参数集合或ErrMissingParameter/ErrInvalidParameter错误
func (s *Set) With(t *Type, v float64) (*Set, error) {
	if !s.Contains(t) {
		return nil, Missing(t)
	}
	if err := t.Validate(v); err != nil {
		return nil, err
	}
	n := s.clone()
	n.values[t] = v
	if err := n.checkOrders(); err != nil {
		return nil, err
	}
	return n, nil
}

// WithOverrides 按参数ID批量设置（来自配置文件）
func (s *Set) WithOverrides(overrides map[string]float64) (*Set, error) {
	byID := lo.KeyBy(lo.Keys(s.values), func(t *Type) string { return t.ID })
	n := s.clone()
	// 按ID排序，保证错误信息稳定
	for _, id := range slices.Sorted(maps.Keys(overrides)) {
		t, ok := byID[id]
		if !ok {
			return nil, &Error{Kind: ErrMissingParameter, ID: id}
		}
		v := overrides[id]
		if err := t.Validate(v); err != nil {
			return nil, err
		}
		n.values[t] = v
	}
	if err := n.checkOrders(); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Set) checkOrders() error {
	for _, order := range s.orders {
		for i := 1; i < len(order); i++ {
			prev, cur := s.values[order[i-1]], s.values[order[i]]
			if prev > cur {
				ids := lo.Map(order, func(t *Type, _ int) string { return t.ID })
				return &Error{
					Kind:   ErrInvalidParameter,
					ID:     strings.Join(ids, "<="),
					Value:  cur,
					Reason: fmt.Sprintf("violates ordering (%s=%v > %s=%v)", order[i-1].ID, prev, order[i].ID, cur),
				}
			}
		}
	}
	return nil
}

// Reader 创建带粘滞错误的读取器
func (s *Set) Reader() *Reader {
	return &Reader{set: s}
}

// Entry 参数表中的一项
type Entry struct {
	ID          string
	Value       float64
	Default     float64
	Constraint  Constraint
	Description string
}

// Table 以ID排序输出参数表
func (s *Set) Table() []Entry {
	entries := lo.MapToSlice(s.values, func(t *Type, v float64) Entry {
		return Entry{
			ID:          t.ID,
			Value:       v,
			Default:     t.Default,
			Constraint:  t.Constraint,
			Description: t.Description,
		}
	})
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.ID, b.ID)
	})
	return entries
}

// Reader 连续读取多个参数，只保留第一个错误
//
//	r := params.Reader()
//	a, b := r.Get(A), r.Get(B)
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	set *Set
	err error
}

// Get 读取参数，出错后返回0并保留第一个错误
func (r *Reader) Get(t *Type) float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.set.Get(t)
	if err != nil {
		r.err = err
		return 0
	}
	return v
}

// Err 返回第一个错误
func (r *Reader) Err() error {
	return r.err
}
