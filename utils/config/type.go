package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义数据输入路径的配置结构，支持多种数据源
// 说明：支持MongoDB数据库和文件系统两种数据源，支持缓存机制
type InputPath struct {
	DB        string   `yaml:"db"`                   // 数据库名
	Col       string   `yaml:"col"`                  // 集合名
	Cache     string   `yaml:"cache,omitempty"`      // 缓存文件名，为空则采用默认路径{db}.{col}.pb
	OnlyCache bool     `yaml:"only_cache,omitempty"` // 只从缓存中获取
	File      string   `yaml:"file,omitempty"`       // 文件路径（优先级高于MongoDB）
	Files     []string `yaml:"files,omitempty"`      // 文件路径列表（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath 获取缓存文件路径
// 说明：未指定时使用默认命名规则：{数据库名}.{集合名}.pb
func (p InputPath) GetCachePath() string {
	if p.Cache != "" {
		return p.Cache
	}
	return p.DB + "." + p.Col + ".pb"
}

// Input 指定模拟器所有输入数据的配置项
// 说明：没有配置车队时按demand生成车辆
type Input struct {
	URI     string     `yaml:"uri,omitempty"`     // MongoDB连接字符串
	Vehicle *InputPath `yaml:"vehicle,omitempty"` // 车队（personv2.Persons）
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// Control 模拟器控制配置
type Control struct {
	Step ControlStep `yaml:"step"`
	Seed uint64      `yaml:"seed,omitempty"` // 随机数种子
}

// SpeedSection 限速区段，从Start开始直到下一个区段
type SpeedSection struct {
	Start    float64 `yaml:"start"`              // 起点（米）
	Legal    float64 `yaml:"legal"`              // 法定限速（米/秒）
	Enforced bool    `yaml:"enforced,omitempty"` // 严格执法
}

// LaneEnd 车道在某位置结束（车道尽头或出口）
type LaneEnd struct {
	Lane     int     `yaml:"lane"`     // 车道下标（从左到右）
	Position float64 `yaml:"position"` // 位置（米）
}

// NoChangeZone 禁止变道区段
type NoChangeZone struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// TrafficLight 固定配时信号灯
type TrafficLight struct {
	Position float64 `yaml:"position"`         // 停车线位置（米）
	Green    float64 `yaml:"green"`            // 绿灯时长（秒）
	Yellow   float64 `yaml:"yellow"`           // 黄灯时长（秒）
	Red      float64 `yaml:"red"`              // 红灯时长（秒）
	Offset   float64 `yaml:"offset,omitempty"` // 相位偏移（秒）
}

// BusStop 公交站
type BusStop struct {
	ID        int32   `yaml:"id"`
	Lane      int     `yaml:"lane"`
	Position  float64 `yaml:"position"`
	DwellTime float64 `yaml:"dwell_time"`
}

// ConflictStream 冲突车道上周期到达的车流
type ConflictStream struct {
	Headway float64 `yaml:"headway"`          // 到达间隔（秒）
	Speed   float64 `yaml:"speed"`            // 速度（米/秒）
	Length  float64 `yaml:"length"`           // 车长（米）
	Offset  float64 `yaml:"offset,omitempty"` // 第一辆车到达冲突区的时刻（秒）
}

// Conflict 冲突区
type Conflict struct {
	ID        int32          `yaml:"id"`
	Lane      int            `yaml:"lane"`
	Position  float64        `yaml:"position"`
	Length    float64        `yaml:"length"`
	Type      string         `yaml:"type"`                // crossing, merge, split
	Rule      string         `yaml:"rule"`                // priority, yield, stop
	Indicator string         `yaml:"indicator,omitempty"` // left, right
	Stream    ConflictStream `yaml:"stream"`
}

// Road 多车道直路
type Road struct {
	Length       float64        `yaml:"length"`                  // 长度（米）
	Lanes        int            `yaml:"lanes"`                   // 车道数
	LaneWidth    float64        `yaml:"lane_width,omitempty"`    // 车道宽度（米）
	SpeedLimits  []SpeedSection `yaml:"speed_limits"`            // 限速区段
	LaneDrops    []LaneEnd      `yaml:"lane_drops,omitempty"`    // 车道尽头
	Exit         *LaneEnd       `yaml:"exit,omitempty"`          // 出口
	NoChange     []NoChangeZone `yaml:"no_change,omitempty"`     // 禁止变道区段
	TrafficLight *TrafficLight  `yaml:"traffic_light,omitempty"` // 信号灯
	BusStops     []BusStop      `yaml:"bus_stops,omitempty"`
	Conflicts    []Conflict     `yaml:"conflicts,omitempty"`
}

// VehicleType 车辆类型
// 说明：激励按列表顺序求值；参数覆盖在创建类型时校验
type VehicleType struct {
	CarFollowing      string             `yaml:"car_following,omitempty"` // idm, idm_plus, idm_plus_multi
	Synchronization   string             `yaml:"synchronization,omitempty"`
	Cooperation       string             `yaml:"cooperation,omitempty"`
	GapAcceptance     string             `yaml:"gap_acceptance,omitempty"`
	Tailgating        string             `yaml:"tailgating,omitempty"`
	SocioDesiredSpeed bool               `yaml:"socio_desired_speed,omitempty"`
	Mandatory         []string           `yaml:"mandatory,omitempty"`
	Voluntary         []string           `yaml:"voluntary,omitempty"`
	Acceleration      []string           `yaml:"acceleration,omitempty"`
	Parameters        map[string]float64 `yaml:"parameters,omitempty"`
	Length            float64            `yaml:"length,omitempty"`    // 车长（米）
	Width             float64            `yaml:"width,omitempty"`     // 车宽（米）
	MaxSpeed          float64            `yaml:"max_speed,omitempty"` // 车辆最大速度（米/秒）
}

// Demand 生成车辆的需求
type Demand struct {
	Type     string  `yaml:"type"`                // 车辆类型
	Count    int     `yaml:"count"`               // 车辆数
	Interval float64 `yaml:"interval"`            // 发车间隔（秒）
	Lane     int     `yaml:"lane"`                // 发车车道，-1表示随机
	Speed    float64 `yaml:"speed"`               // 初始速度（米/秒）
	Exit     bool    `yaml:"exit,omitempty"`      // 是否驶向出口
	BusStops []int32 `yaml:"bus_stops,omitempty"` // 需要停靠的站点
}

// Config YAML配置文件的根结构
type Config struct {
	Input        Input                  `yaml:"input"`         // 输入
	Control      Control                `yaml:"control"`       // 模拟过程控制
	Road         Road                   `yaml:"road"`          // 道路
	VehicleTypes map[string]VehicleType `yaml:"vehicle_types"` // 车辆类型
	Demand       []Demand               `yaml:"demand,omitempty"`
}
