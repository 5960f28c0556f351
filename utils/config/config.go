package config

import (
	"fmt"
	"slices"
)

const (
	defaultInterval  = 0.5 // 默认步长（秒）
	defaultLaneWidth = 3.5 // 默认车道宽度（米）
)

// RuntimeConfig 运行时配置
// 功能：存储经过校验并补全默认值的配置
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// NewRuntimeConfig 根据配置初始化全局变量
// 功能：补全默认值并校验配置，配置错误在启动时暴露
// 参数：config-原始配置对象
// 返回：运行时配置或错误
// 算法说明：
// 1. 设置默认值：步长0.5秒、车道宽度3.5米、限速区段按起点排序
// 2. 检查道路几何与各元素所在车道
// 3. 检查需求引用的车辆类型与站点
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	if config.Control.Step.Interval == 0 {
		config.Control.Step.Interval = defaultInterval
	}
	if config.Road.LaneWidth == 0 {
		config.Road.LaneWidth = defaultLaneWidth
	}
	slices.SortFunc(config.Road.SpeedLimits, func(a, b SpeedSection) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &RuntimeConfig{All: config, C: config.Control}, nil
}

func (c *Config) validate() error {
	if c.Control.Step.Interval < 0 {
		return fmt.Errorf("control.step.interval must be positive, got %v", c.Control.Step.Interval)
	}
	r := c.Road
	if r.Lanes <= 0 || r.Length <= 0 {
		return fmt.Errorf("road needs lanes > 0 and length > 0, got %d lanes and length %v", r.Lanes, r.Length)
	}
	if len(r.SpeedLimits) == 0 || r.SpeedLimits[0].Start > 0 {
		return fmt.Errorf("road.speed_limits must cover the road start")
	}
	checkLane := func(what string, lane int) error {
		if lane < 0 || lane >= r.Lanes {
			return fmt.Errorf("%s: lane %d out of range [0, %d)", what, lane, r.Lanes)
		}
		return nil
	}
	checkEnd := func(what string, e LaneEnd) error {
		if err := checkLane(what, e.Lane); err != nil {
			return err
		}
		if e.Position <= 0 || e.Position > r.Length {
			return fmt.Errorf("%s: position %v out of road (0, %v]", what, e.Position, r.Length)
		}
		return nil
	}
	if len(r.LaneDrops) >= r.Lanes {
		return fmt.Errorf("lane_drops: at least one lane must reach the road end")
	}
	for _, d := range r.LaneDrops {
		if err := checkEnd("lane_drops", d); err != nil {
			return err
		}
	}
	if r.Exit != nil {
		if err := checkEnd("exit", *r.Exit); err != nil {
			return err
		}
	}
	for _, z := range r.NoChange {
		if z.End <= z.Start {
			return fmt.Errorf("no_change: zone [%v, %v] is empty", z.Start, z.End)
		}
	}
	stops := make(map[int32]bool, len(r.BusStops))
	for _, s := range r.BusStops {
		if err := checkLane(fmt.Sprintf("bus stop %d", s.ID), s.Lane); err != nil {
			return err
		}
		stops[s.ID] = true
	}
	for _, cf := range r.Conflicts {
		if err := checkLane(fmt.Sprintf("conflict %d", cf.ID), cf.Lane); err != nil {
			return err
		}
		if !slices.Contains([]string{"crossing", "merge", "split"}, cf.Type) ||
			!slices.Contains([]string{"priority", "yield", "stop"}, cf.Rule) ||
			!slices.Contains([]string{"", "left", "right"}, cf.Indicator) {
			return fmt.Errorf("conflict %d: unknown type %q, rule %q or indicator %q", cf.ID, cf.Type, cf.Rule, cf.Indicator)
		}
		if cf.Stream.Headway <= 0 || cf.Stream.Speed <= 0 {
			return fmt.Errorf("conflict %d: stream needs positive headway and speed", cf.ID)
		}
	}
	if l := r.TrafficLight; l != nil && l.Green+l.Yellow+l.Red <= 0 {
		return fmt.Errorf("traffic_light: cycle length must be positive")
	}
	for i, d := range c.Demand {
		if _, ok := c.VehicleTypes[d.Type]; !ok {
			return fmt.Errorf("demand[%d]: unknown vehicle type %q", i, d.Type)
		}
		if d.Lane >= r.Lanes || d.Lane < -1 {
			return fmt.Errorf("demand[%d]: lane %d out of range", i, d.Lane)
		}
		if d.Exit && r.Exit == nil {
			return fmt.Errorf("demand[%d]: exit requested but road has no exit", i)
		}
		for _, id := range d.BusStops {
			if !stops[id] {
				return fmt.Errorf("demand[%d]: unknown bus stop %d", i, id)
			}
		}
	}
	return nil
}
