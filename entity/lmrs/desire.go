package lmrs

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
)

// Desire 变道意愿
// 说明：正值表示希望向该侧变道，负值表示不希望，取值大致在[-1, 1]
type Desire struct {
	Left  float64
	Right float64
}

func (d Desire) String() string {
	return fmt.Sprintf("Desire{left=%.3f right=%.3f}", d.Left, d.Right)
}

// Get 指定方向的意愿
func (d Desire) Get(lat entity.LateralDirectionality) float64 {
	switch lat {
	case entity.DirLeft:
		return d.Left
	case entity.DirRight:
		return d.Right
	default:
		return 0
	}
}

// Strongest 意愿更强的方向及其意愿，相等时取左侧
func (d Desire) Strongest() (entity.LateralDirectionality, float64) {
	if d.Left >= d.Right {
		return entity.DirLeft, d.Left
	}
	return entity.DirRight, d.Right
}

// MaxMagnitude 两侧意愿绝对值的最大值
func (d Desire) MaxMagnitude() float64 {
	return math.Max(math.Abs(d.Left), math.Abs(d.Right))
}

// fuseDesire 意愿融合
// 功能：按顺序计算强制意愿与自愿意愿，并按阈值合成总意愿
// 参数：ctx-规划上下文
// 返回：mandatory-强制意愿，total-总意愿
// 算法说明：
// 1. 强制意愿：每侧保留绝对值最大的一项，后续激励可以看到已经形成的强制意愿
// 2. 自愿意愿：各项累加，后续激励可以看到强制意愿与已累加的自愿意愿
// 3. 每侧自愿意愿的权重θ：
//   - |强制| <= dSync或两者同号：θ = 1
//   - dSync < |强制| < dCoop且两者异号：θ = (dCoop-|强制|)/(dCoop-dSync)
//   - 否则θ = 0
//
// 4. 总意愿 = 强制 + θ * 自愿
// 说明：激励按配置顺序求值，顺序会影响抑制逻辑
func fuseDesire(
	ctx *Context, mandatory []MandatoryIncentive, voluntary []VoluntaryIncentive,
) (m, total Desire, err error) {
	for _, inc := range mandatory {
		d, err := inc.Desire(ctx, m)
		if err != nil {
			return Desire{}, Desire{}, fmt.Errorf("%s: %w", inc.Name(), err)
		}
		if math.Abs(d.Left) >= math.Abs(m.Left) {
			m.Left = d.Left
		}
		if math.Abs(d.Right) >= math.Abs(m.Right) {
			m.Right = d.Right
		}
	}
	var v Desire
	for _, inc := range voluntary {
		d, err := inc.Desire(ctx, m, v)
		if err != nil {
			return Desire{}, Desire{}, fmt.Errorf("%s: %w", inc.Name(), err)
		}
		v.Left += d.Left
		v.Right += d.Right
	}
	r := ctx.Params.Reader()
	dSync, dCoop := r.Get(DSYNC), r.Get(DCOOP)
	if err := r.Err(); err != nil {
		return Desire{}, Desire{}, err
	}
	total = Desire{
		Left:  m.Left + voluntaryWeight(m.Left, v.Left, dSync, dCoop)*v.Left,
		Right: m.Right + voluntaryWeight(m.Right, v.Right, dSync, dCoop)*v.Right,
	}
	return m, total, nil
}

// voluntaryWeight 自愿意愿的权重θ
func voluntaryWeight(mandatory, voluntary, dSync, dCoop float64) float64 {
	abs := math.Abs(mandatory)
	if abs <= dSync || mandatory*voluntary >= 0 {
		return 1
	}
	if abs < dCoop {
		return (dCoop - abs) / (dCoop - dSync)
	}
	return 0
}

// desireToLeave 离开车道的意愿
// 功能：根据剩余距离、剩余时间与所需变道次数计算离开当前车道的紧迫程度
// 参数：x0-前视距离，t0-前视时间，x-剩余距离，n-所需变道次数，v-本车速度
// 返回：[0, 1]的意愿，n为0时为0
// 算法说明：d = max(1 - x/(n*x0), 1 - (x/v)/(n*t0))
func desireToLeave(x0, t0, x float64, n int, v float64) float64 {
	if n <= 0 {
		return 0
	}
	nf := float64(n)
	d := 1 - x/(nf*x0)
	if v > 0 {
		d = math.Max(d, 1-(x/v)/(nf*t0))
	}
	return lo.Clamp(d, 0, 1)
}
