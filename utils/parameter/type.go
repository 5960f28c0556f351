// 行为参数：带默认值、约束与说明的具名浮点参数
package parameter

import (
	"fmt"
	"math"
)

// Constraint 参数取值约束
type Constraint int

const (
	None        Constraint = iota // 无约束（仍不允许NaN）
	Positive                      // > 0
	NonNegative                   // >= 0
	Fraction                      // [0, 1]
	AtLeastOne                    // >= 1
)

// String 约束的可读表示
func (c Constraint) String() string {
	switch c {
	case Positive:
		return "positive"
	case NonNegative:
		return "non-negative"
	case Fraction:
		return "in [0, 1]"
	case AtLeastOne:
		return ">= 1"
	default:
		return "any"
	}
}

// check 检查取值是否满足约束，不满足时返回原因
func (c Constraint) check(v float64) (string, bool) {
	if math.IsNaN(v) {
		return "NaN is not a valid value", false
	}
	switch c {
	case Positive:
		if v <= 0 {
			return "must be positive", false
		}
	case NonNegative:
		if v < 0 {
			return "must be non-negative", false
		}
	case Fraction:
		if v < 0 || v > 1 {
			return "must be in [0, 1]", false
		}
	case AtLeastOne:
		if v < 1 {
			return "must be at least 1", false
		}
	}
	return "", true
}

// Type 参数类型
// 功能：描述一个参数的标识、说明、默认值与约束
// 说明：Type在包级别声明一次，通过指针比较识别，Set中以*Type为键
type Type struct {
	ID          string     // 标识
	Description string     // 说明
	Default     float64    // 默认值
	Constraint  Constraint // 约束
}

// NewType 创建参数类型，默认值必须满足约束
func NewType(id, description string, def float64, c Constraint) *Type {
	if reason, ok := c.check(def); !ok {
		panic(fmt.Sprintf("parameter: default of %s %s", id, reason))
	}
	return &Type{
		ID:          id,
		Description: description,
		Default:     def,
		Constraint:  c,
	}
}

func (t *Type) String() string {
	return t.ID
}

// Validate 检查取值是否满足该类型的约束
func (t *Type) Validate(v float64) error {
	if reason, ok := t.Constraint.check(v); !ok {
		return &Error{Kind: ErrInvalidParameter, ID: t.ID, Value: v, Reason: reason}
	}
	return nil
}
