package lmrs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
	"gonum.org/v1/gonum/floats"
)

func TestDesireStrongest(t *testing.T) {
	lat, d := Desire{Left: 0.3, Right: 0.3}.Strongest()
	assert.Equal(t, entity.DirLeft, lat)
	assert.Equal(t, 0.3, d)

	lat, d = Desire{Left: -0.2, Right: 0.1}.Strongest()
	assert.Equal(t, entity.DirRight, lat)
	assert.Equal(t, 0.1, d)

	assert.Equal(t, 0.7, Desire{Left: 0.2, Right: -0.7}.MaxMagnitude())
}

func TestVoluntaryWeight(t *testing.T) {
	const dSync, dCoop = 0.5, 0.8
	cases := []struct {
		m, v, want float64
	}{
		{0.3, -1, 1},    // 强制意愿较弱
		{0.9, 0.4, 1},   // 同号
		{-0.9, -0.4, 1}, // 同号
		{0.65, -0.2, 0.5},
		{-0.65, 0.2, 0.5},
		{0.8, -0.2, 0},
		{0.95, -0.2, 0},
	}
	for _, c := range cases {
		got := voluntaryWeight(c.m, c.v, dSync, dCoop)
		assert.True(t, floats.EqualWithinAbs(c.want, got, 1e-12), "m=%v v=%v got %v", c.m, c.v, got)
	}
}

func TestFuseDesireMandatoryKeepsLargestMagnitude(t *testing.T) {
	ctx := newContext(newFake(20, entity.LaneLeft, entity.LaneRight))
	m, total, err := fuseDesire(ctx, []MandatoryIncentive{
		fixedMandatory{Desire{Left: 0.3, Right: -0.1}},
		fixedMandatory{Desire{Left: -0.5, Right: 0.05}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, Desire{Left: -0.5, Right: -0.1}, m)
	assert.Equal(t, m, total)
}

func TestFuseDesireVoluntarySummedAndWeighted(t *testing.T) {
	ctx := newContext(newFake(20, entity.LaneLeft, entity.LaneRight))
	m, total, err := fuseDesire(ctx,
		[]MandatoryIncentive{fixedMandatory{Desire{Left: 0.7}}},
		[]VoluntaryIncentive{
			fixedVoluntary{Desire{Left: -0.1, Right: 0.2}},
			fixedVoluntary{Desire{Left: -0.1, Right: 0.1}},
		})
	require.NoError(t, err)
	assert.Equal(t, 0.7, m.Left)
	theta := (0.788 - 0.7) / (0.788 - 0.577)
	assert.True(t, floats.EqualWithinAbs(0.7-0.2*theta, total.Left, 1e-9), "left=%v", total.Left)
	assert.True(t, floats.EqualWithinAbs(0.3, total.Right, 1e-9), "right=%v", total.Right)
}

func TestFuseDesireKeepSuppressedByMandatory(t *testing.T) {
	ctx := newContext(newFake(20, entity.LaneRight))
	_, total, err := fuseDesire(ctx,
		[]MandatoryIncentive{fixedMandatory{Desire{Right: -0.4}}},
		[]VoluntaryIncentive{Keep{}})
	require.NoError(t, err)
	assert.Equal(t, -0.4, total.Right)

	_, total, err = fuseDesire(ctx, nil, []VoluntaryIncentive{Keep{}})
	require.NoError(t, err)
	assert.Equal(t, 0.365, total.Right)
}

func TestFuseDesireMissingParameter(t *testing.T) {
	ctx := newContext(newFake(20, entity.LaneLeft))
	ctx.Params = parameter.NewSet()
	_, _, err := fuseDesire(ctx, []MandatoryIncentive{Route{}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, parameter.ErrMissingParameter))
	assert.Contains(t, err.Error(), "route")
}

func TestDesireToLeave(t *testing.T) {
	assert.Equal(t, 0., desireToLeave(295, 43, 100, 0, 20))
	assert.Equal(t, 1., desireToLeave(295, 43, 0, 1, 20))
	assert.Equal(t, 0., desireToLeave(295, 43, 5000, 1, 20))
	// 距离项 1-100/295 与时间项 1-5/43 取大
	assert.True(t, floats.EqualWithinAbs(1-5./43, desireToLeave(295, 43, 100, 1, 20), 1e-12))
	// 变道次数越多越紧迫
	assert.Greater(t, desireToLeave(295, 43, 300, 2, 20), desireToLeave(295, 43, 300, 1, 20))
	// 静止时只有距离项
	assert.True(t, floats.EqualWithinAbs(1-100./295, desireToLeave(295, 43, 100, 1, 0), 1e-12))
}
