// 随机数引擎，包装了golang.org/x/exp/rand，连续分布通过gonum的distuv采样
package randengine

import (
	"flag"

	"github.com/samber/lo"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：为车辆生成与个体特征采样提供可复现的随机数
// 说明：*rand.Rand同时满足distuv所需的rand.Source接口，分布对象直接以引擎为随机源
// 非线程安全，只在初始化车队时使用
type Engine struct {
	*rand.Rand
}

// New 创建随机数引擎
// 参数：seed-随机数种子（会叠加命令行指定的种子偏移量）
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// Normal 正态分布采样
func (e *Engine) Normal(mean, std float64) float64 {
	return distuv.Normal{Mu: mean, Sigma: std, Src: e.Rand}.Rand()
}

// TruncatedNormal 正态分布采样并截断到[min, max]
// 说明：截断采用钳制而非拒绝采样，保证每次调用只消耗一次随机数
func (e *Engine) TruncatedNormal(mean, std, min, max float64) float64 {
	return lo.Clamp(e.Normal(mean, std), min, max)
}

// DiscreteDistribution 按给定权重生成随机下标
// 参数：weight-非负权重，至少有一个为正
// 返回：[0, len(weight))中的下标
func (e *Engine) DiscreteDistribution(weight []float64) int32 {
	random := .0
	for _, w := range weight {
		random += w
	}
	random *= e.Float64()
	sum := 0.
	for i, w := range weight {
		sum += w
		if sum > random {
			return int32(i)
		}
	}
	log.Panicf("randengine: DiscreteDistribution: sum: %f random: %f", sum, random)
	return -1
}
