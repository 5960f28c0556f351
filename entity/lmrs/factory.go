package lmrs

import (
	"fmt"

	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/randengine"
)

// 未配置时使用的组成部分
var (
	defaultMandatory    = []string{"route"}
	defaultVoluntary    = []string{"speed_with_courtesy", "keep"}
	defaultAcceleration = []string{"speed_limit_transitions", "traffic_lights", "conflicts", "no_right_overtake", "lane_changers"}
)

// Factory 按车辆类型创建规划器
// 功能：在创建时校验全部名称与参数覆盖，之后为每辆车创建独立的有状态实例
type Factory struct {
	name   string
	cfg    config.VehicleType
	model  cf.Model
	params *parameter.Set
}

// NewFactory 创建车辆类型的规划器工厂
// 参数：name-类型名，cfg-类型配置
// 返回：工厂，名称未知或参数覆盖不合法时返回错误
func NewFactory(name string, cfg config.VehicleType) (*Factory, error) {
	if cfg.CarFollowing == "" {
		cfg.CarFollowing = "idm_plus"
	}
	if cfg.Synchronization == "" {
		cfg.Synchronization = "passive"
	}
	if cfg.Cooperation == "" {
		cfg.Cooperation = "passive"
	}
	if cfg.GapAcceptance == "" {
		cfg.GapAcceptance = "informed"
	}
	if cfg.Tailgating == "" {
		cfg.Tailgating = "none"
	}
	if cfg.Mandatory == nil {
		cfg.Mandatory = defaultMandatory
	}
	if cfg.Voluntary == nil {
		cfg.Voluntary = defaultVoluntary
	}
	if cfg.Acceleration == nil {
		cfg.Acceleration = defaultAcceleration
	}
	model, ok := NewCarFollowing(cfg.CarFollowing)
	if !ok {
		return nil, fmt.Errorf("%w: type %s: unknown car-following model %q", ErrInvalidConfig, name, cfg.CarFollowing)
	}
	params, err := DefaultParameters().WithOverrides(cfg.Parameters)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", name, err)
	}
	f := &Factory{name: name, cfg: cfg, model: model, params: params}
	// 按名称试建一次，未知名称在启动时暴露
	if _, err := f.components(); err != nil {
		return nil, err
	}
	return f, nil
}

// NewCarFollowing 按名称创建跟车模型
func NewCarFollowing(name string) (cf.Model, bool) {
	switch name {
	case "idm":
		return cf.NewIdm(), true
	case "idm_plus":
		return cf.NewIdmPlus(), true
	case "idm_plus_multi":
		return cf.NewIdmPlusMulti(), true
	default:
		return nil, false
	}
}

// Name 类型名
func (f *Factory) Name() string {
	return f.name
}

// Config 补全默认值后的类型配置
func (f *Factory) Config() config.VehicleType {
	return f.cfg
}

// Params 类型参数（不含个体差异）
func (f *Factory) Params() *parameter.Set {
	return f.params
}

// SampleParams 采样个体参数
// 说明：配置未覆盖fSpeed时为每辆车采样一次
func (f *Factory) SampleParams(e *randengine.Engine) (*parameter.Set, error) {
	if _, ok := f.cfg.Parameters[cf.FSPEED.ID]; ok {
		return f.params, nil
	}
	return f.params.With(cf.FSPEED, cf.SampleFSpeed(e))
}

// Create 创建单车的规划器
// 参数：params-车辆参数，dt-规划步长（秒）
// 说明：有跨步记忆的激励每次都会新建，保证车辆之间不共享状态
func (f *Factory) Create(params *parameter.Set, dt float64) (*Lmrs, error) {
	c, err := f.components()
	if err != nil {
		return nil, err
	}
	l, err := New(f.model, params, c, dt)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", f.name, err)
	}
	return l, nil
}

// components 按配置顺序创建组成部分
func (f *Factory) components() (Components, error) {
	unknown := func(kind, name string) error {
		return fmt.Errorf("%w: type %s: unknown %s %q", ErrInvalidConfig, f.name, kind, name)
	}
	c := Components{SocioDesiredSpeed: f.cfg.SocioDesiredSpeed}
	var ok bool
	if c.Synchronization, ok = NewSynchronization(f.cfg.Synchronization); !ok {
		return Components{}, unknown("synchronization", f.cfg.Synchronization)
	}
	if c.Cooperation, ok = NewCooperation(f.cfg.Cooperation); !ok {
		return Components{}, unknown("cooperation", f.cfg.Cooperation)
	}
	if c.GapAcceptance, ok = NewGapAcceptance(f.cfg.GapAcceptance); !ok {
		return Components{}, unknown("gap acceptance", f.cfg.GapAcceptance)
	}
	if c.Tailgating, ok = NewTailgating(f.cfg.Tailgating); !ok {
		return Components{}, unknown("tailgating", f.cfg.Tailgating)
	}
	busStops := NewBusStopMemory()
	for _, name := range f.cfg.Mandatory {
		switch name {
		case "route":
			c.Mandatory = append(c.Mandatory, Route{})
		case "bus_stop":
			c.Mandatory = append(c.Mandatory, NewBusStop(busStops))
		default:
			return Components{}, unknown("mandatory incentive", name)
		}
	}
	for _, name := range f.cfg.Voluntary {
		switch name {
		case "speed_with_courtesy":
			c.Voluntary = append(c.Voluntary, SpeedWithCourtesy{})
		case "keep":
			c.Voluntary = append(c.Voluntary, Keep{})
		case "socio_speed":
			c.Voluntary = append(c.Voluntary, SocioSpeed{})
		case "queue":
			c.Voluntary = append(c.Voluntary, Queue{})
		case "stay_right":
			c.Voluntary = append(c.Voluntary, StayRight{})
		default:
			return Components{}, unknown("voluntary incentive", name)
		}
	}
	for _, name := range f.cfg.Acceleration {
		switch name {
		case "speed_limit_transitions":
			c.Acceleration = append(c.Acceleration, SpeedLimitTransitions{})
		case "traffic_lights":
			c.Acceleration = append(c.Acceleration, TrafficLights{})
		case "conflicts":
			c.Acceleration = append(c.Acceleration, NewConflicts())
		case "bus_stops":
			c.Acceleration = append(c.Acceleration, NewBusStops(busStops))
		case "no_right_overtake":
			c.Acceleration = append(c.Acceleration, NoRightOvertake{})
		case "lane_changers":
			c.Acceleration = append(c.Acceleration, LaneChangers{})
		default:
			return Components{}, unknown("acceleration incentive", name)
		}
	}
	return c, nil
}
