package parameter

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingParameter 参数不存在
	ErrMissingParameter = errors.New("missing parameter")
	// ErrInvalidParameter 参数违反约束
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Error 参数错误，Kind为ErrMissingParameter或ErrInvalidParameter
type Error struct {
	Kind   error
	ID     string
	Value  float64
	Reason string
}

func (e *Error) Error() string {
	if errors.Is(e.Kind, ErrMissingParameter) {
		return fmt.Sprintf("%v: %s", e.Kind, e.ID)
	}
	return fmt.Sprintf("%v: %s=%v %s", e.Kind, e.ID, e.Value, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Missing 构造缺失参数错误
func Missing(t *Type) error {
	return &Error{Kind: ErrMissingParameter, ID: t.ID}
}
