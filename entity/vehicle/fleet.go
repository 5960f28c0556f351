package vehicle

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/samber/lo"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/lmrs"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/parameter"
)

// 车队输入中使用的标签
const (
	labelVehicleType = "vehicle_type"   // 车辆类型名
	labelExit        = "exit"           // 是否驶向出口（true/false）
	labelBusStops    = "bus_stops"      // 需要停靠的站点ID，逗号分隔
	labelDeparture   = "departure_time" // 发车时刻（秒），缺省为仿真开始时刻
	labelSpeed       = "speed"          // 发车速度（米/秒）
)

// 未在车辆类型中配置时的车辆尺寸与性能
const (
	defaultLength   = 4.5
	defaultWidth    = 2
	defaultMaxSpeed = 41.67
)

// typeAttribute 车辆类型的尺寸与性能，未配置的项使用默认值
func typeAttribute(vt config.VehicleType) *personv2.VehicleAttribute {
	attr := &personv2.VehicleAttribute{
		Length:   vt.Length,
		Width:    vt.Width,
		MaxSpeed: vt.MaxSpeed,
	}
	if attr.Length == 0 {
		attr.Length = defaultLength
	}
	if attr.Width == 0 {
		attr.Width = defaultWidth
	}
	if attr.MaxSpeed == 0 {
		attr.MaxSpeed = defaultMaxSpeed
	}
	return attr
}

// demandFleet 根据需求生成车队
// 功能：按需求顺序分配ID，同一需求的车辆按间隔依次发车
// 参数：c-配置，startT-仿真开始时刻，pickLane-随机车道选择函数
func demandFleet(c config.Config, startT float64, pickLane func() int) []*personv2.Person {
	fleet := make([]*personv2.Person, 0)
	var id int32
	for _, d := range c.Demand {
		attr := typeAttribute(c.VehicleTypes[d.Type])
		for i := 0; i < d.Count; i++ {
			lane := d.Lane
			if lane < 0 {
				lane = pickLane()
			}
			labels := map[string]string{
				labelVehicleType: d.Type,
				labelExit:        strconv.FormatBool(d.Exit),
				labelDeparture:   strconv.FormatFloat(startT+float64(i)*d.Interval, 'f', -1, 64),
				labelSpeed:       strconv.FormatFloat(d.Speed, 'f', -1, 64),
			}
			if len(d.BusStops) > 0 {
				labels[labelBusStops] = strings.Join(lo.Map(d.BusStops, func(id int32, _ int) string {
					return strconv.Itoa(int(id))
				}), ",")
			}
			fleet = append(fleet, &personv2.Person{
				Id:               id,
				VehicleAttribute: &personv2.VehicleAttribute{Length: attr.Length, Width: attr.Width, MaxSpeed: attr.MaxSpeed},
				Home: &geov2.Position{LanePosition: &geov2.LanePosition{
					LaneId: int32(lane),
					S:      attr.Length,
				}},
				Labels: labels,
			})
			id++
		}
	}
	return fleet
}

// checkAttribute 检查车辆属性，可选项为0时表示未设置
func checkAttribute(id int32, attr *personv2.VehicleAttribute) error {
	switch {
	case attr == nil:
		return fmt.Errorf("vehicle %d has no vehicle attribute", id)
	case attr.Length <= 0:
		return fmt.Errorf("vehicle %d (vehicle_attr=%v) length is not positive", id, attr)
	case attr.Width <= 0:
		return fmt.Errorf("vehicle %d (vehicle_attr=%v) width is not positive", id, attr)
	case attr.MaxSpeed <= 0:
		return fmt.Errorf("vehicle %d (vehicle_attr=%v) max speed is not positive", id, attr)
	case attr.UsualAcceleration < 0:
		return fmt.Errorf("vehicle %d (vehicle_attr=%v) usual acceleration is negative", id, attr)
	case attr.UsualBrakingAcceleration > 0:
		return fmt.Errorf("vehicle %d (vehicle_attr=%v) usual braking acceleration is positive", id, attr)
	case attr.MaxBrakingAcceleration > 0:
		return fmt.Errorf("vehicle %d (vehicle_attr=%v) max braking acceleration is positive", id, attr)
	case attr.MinGap < 0:
		return fmt.Errorf("vehicle %d (vehicle_attr=%v) min gap is negative", id, attr)
	case attr.Headway < 0:
		return fmt.Errorf("vehicle %d (vehicle_attr=%v) headway is negative", id, attr)
	}
	return nil
}

// applyAttribute 用车辆属性覆盖行为参数
// 说明：a、b、s0、Tmax与bCrit分别来自常用加速度、常用减速度、最小间距、车头时距与最大减速度；
// bCrit先于b设置，保证b <= bCrit
func applyAttribute(params *parameter.Set, attr *personv2.VehicleAttribute) (*parameter.Set, error) {
	type override struct {
		t *parameter.Type
		v float64
	}
	var overrides []override
	if attr.MaxBrakingAcceleration < 0 {
		b := -attr.UsualBrakingAcceleration
		if b == 0 {
			b = params.GetOr(cf.B, cf.B.Default)
		}
		overrides = append(overrides, override{lmrs.BCRIT, math.Max(-attr.MaxBrakingAcceleration, b)})
	}
	if attr.UsualBrakingAcceleration < 0 {
		overrides = append(overrides, override{cf.B, -attr.UsualBrakingAcceleration})
	}
	if attr.UsualAcceleration > 0 {
		overrides = append(overrides, override{cf.A, attr.UsualAcceleration})
	}
	if attr.MinGap > 0 {
		overrides = append(overrides, override{cf.S0, attr.MinGap})
	}
	if attr.Headway > 0 {
		overrides = append(overrides, override{lmrs.TMAX, attr.Headway})
	}
	var err error
	for _, o := range overrides {
		if params, err = params.With(o.t, o.v); err != nil {
			return nil, err
		}
	}
	return params, nil
}

// parseLabels 解析车队标签中的类型、出口、站点、发车时刻与速度
func parseLabels(pb *personv2.Person, startT float64) (typeName string, exit bool, stops map[int32]bool, departure, speed float64, err error) {
	labels := pb.GetLabels()
	typeName = labels[labelVehicleType]
	departure = startT
	stops = make(map[int32]bool)
	if s, ok := labels[labelExit]; ok {
		if exit, err = strconv.ParseBool(s); err != nil {
			return "", false, nil, 0, 0, fmt.Errorf("vehicle %d: bad label %s=%q: %w", pb.Id, labelExit, s, err)
		}
	}
	if s, ok := labels[labelDeparture]; ok {
		if departure, err = strconv.ParseFloat(s, 64); err != nil {
			return "", false, nil, 0, 0, fmt.Errorf("vehicle %d: bad label %s=%q: %w", pb.Id, labelDeparture, s, err)
		}
	}
	if s, ok := labels[labelSpeed]; ok {
		if speed, err = strconv.ParseFloat(s, 64); err != nil || speed < 0 {
			return "", false, nil, 0, 0, fmt.Errorf("vehicle %d: bad label %s=%q", pb.Id, labelSpeed, s)
		}
	}
	if s, ok := labels[labelBusStops]; ok && s != "" {
		for _, part := range strings.Split(s, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
			if err != nil {
				return "", false, nil, 0, 0, fmt.Errorf("vehicle %d: bad label %s=%q: %w", pb.Id, labelBusStops, s, err)
			}
			stops[int32(id)] = true
		}
	}
	return typeName, exit, stops, departure, speed, nil
}
