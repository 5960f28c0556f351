package lmrs

import "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"

// MandatoryIncentive 强制变道激励（路线、公交站等）
// 参数：mandatory-此前的强制激励已形成的意愿
type MandatoryIncentive interface {
	Name() string
	Desire(ctx *Context, mandatory Desire) (Desire, error)
}

// VoluntaryIncentive 自愿变道激励（速度收益、靠右行驶等）
// 参数：mandatory-强制意愿，voluntary-此前的自愿激励累加的意愿
type VoluntaryIncentive interface {
	Name() string
	Desire(ctx *Context, mandatory, voluntary Desire) (Desire, error)
}

// AccelerationIncentive 加速度激励
// 功能：对给定车道施加额外的减速约束，只能通过Action.Update降低加速度
// 参数：lane-相对车道，mergeDistance-该车道可开始变道前的距离，ac-累积中的动作
// 说明：带有跨步记忆的实现（冲突、公交站）每辆车各持有一个实例
type AccelerationIncentive interface {
	Name() string
	Accelerate(ctx *Context, lane entity.RelativeLane, mergeDistance float64, ac *Action) error
}
