package lmrs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/randengine"
)

func TestFactoryDefaults(t *testing.T) {
	f, err := NewFactory("car", config.VehicleType{})
	require.NoError(t, err)
	assert.Equal(t, "car", f.Name())
	assert.Equal(t, "idm_plus", f.Config().CarFollowing)
	assert.Equal(t, defaultAcceleration, f.Config().Acceleration)

	l, err := f.Create(f.Params(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, Idle, l.State())
	assert.Equal(t, "IDM+", l.Model().Name())
	require.Len(t, l.c.Mandatory, 1)
	assert.Equal(t, "route", l.c.Mandatory[0].Name())
}

func TestFactoryRejectsUnknownNames(t *testing.T) {
	cases := []config.VehicleType{
		{CarFollowing: "gipps"},
		{Synchronization: "psychic"},
		{Cooperation: "never"},
		{GapAcceptance: "reckless"},
		{Tailgating: "angry"},
		{Mandatory: []string{"detour"}},
		{Voluntary: []string{"zigzag"}},
		{Acceleration: []string{"nitro"}},
	}
	for _, cfg := range cases {
		_, err := NewFactory("car", cfg)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "cfg=%+v err=%v", cfg, err)
	}
}

func TestFactoryValidatesOverrides(t *testing.T) {
	_, err := NewFactory("car", config.VehicleType{Parameters: map[string]float64{"dFree": 0.9}})
	assert.True(t, errors.Is(err, parameter.ErrInvalidParameter), "err=%v", err)

	_, err = NewFactory("car", config.VehicleType{Parameters: map[string]float64{"foo": 1}})
	assert.True(t, errors.Is(err, parameter.ErrMissingParameter), "err=%v", err)

	f, err := NewFactory("truck", config.VehicleType{Parameters: map[string]float64{"Tmax": 1.5, "a": 0.8}})
	require.NoError(t, err)
	a, err := f.Params().Get(cf.A)
	require.NoError(t, err)
	assert.Equal(t, 0.8, a)
}

func TestFactoryCreatesIndependentPlanners(t *testing.T) {
	f, err := NewFactory("bus", config.VehicleType{
		Mandatory:    []string{"route", "bus_stop"},
		Acceleration: []string{"conflicts", "bus_stops"},
	})
	require.NoError(t, err)
	first, err := f.Create(f.Params(), 0.5)
	require.NoError(t, err)
	second, err := f.Create(f.Params(), 0.5)
	require.NoError(t, err)

	assert.NotSame(t, first.c.Acceleration[0].(*Conflicts), second.c.Acceleration[0].(*Conflicts))
	// 同一辆车的强制激励与加速度激励共享到站记忆
	assert.Same(t, first.c.Mandatory[1].(*BusStop).memory, first.c.Acceleration[1].(*BusStops).memory)
	assert.NotSame(t, first.c.Mandatory[1].(*BusStop).memory, second.c.Mandatory[1].(*BusStop).memory)

	_, err = f.Create(f.Params(), -1)
	assert.True(t, errors.Is(err, parameter.ErrInvalidParameter), "err=%v", err)
}

func TestFactorySampleParams(t *testing.T) {
	f, err := NewFactory("car", config.VehicleType{})
	require.NoError(t, err)
	e := randengine.New(42)
	for i := 0; i < 100; i++ {
		params, err := f.SampleParams(e)
		require.NoError(t, err)
		fSpeed, err := params.Get(cf.FSPEED)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, fSpeed, 0.8)
		assert.LessOrEqual(t, fSpeed, 1.2)
	}

	f, err = NewFactory("car", config.VehicleType{Parameters: map[string]float64{"fSpeed": 1.1}})
	require.NoError(t, err)
	params, err := f.SampleParams(e)
	require.NoError(t, err)
	fSpeed, err := params.Get(cf.FSPEED)
	require.NoError(t, err)
	assert.Equal(t, 1.1, fSpeed)
}
