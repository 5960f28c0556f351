package lane

import (
	"cmp"
	"fmt"
	"slices"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
)

// LaneManager Lane管理器
// 功能：根据道路配置创建所有车道，负责每步的链表维护与统计
type LaneManager struct {
	road  *road
	lanes []*Lane

	exit  *Lane
	exitS float64
}

// NewManager 创建Lane管理器实例
func NewManager() *LaneManager {
	return &LaneManager{lanes: make([]*Lane, 0)}
}

// Init 初始化所有Lane
// 功能：创建车道并建立左右关系，再把车道尽头、信号灯、公交站与冲突区分配到各车道
// 参数：c-已经校验过的道路配置
func (m *LaneManager) Init(c config.Road) {
	m.road = newRoad(c)
	m.lanes = parallel.GoMap(lo.Range(c.Lanes), func(i int) *Lane {
		return newLane(m.road, i, c.LaneWidth)
	})
	for i, l := range m.lanes {
		if i > 0 {
			l.sideLanes[entity.LEFT] = m.lanes[i-1]
		}
		if i < len(m.lanes)-1 {
			l.sideLanes[entity.RIGHT] = m.lanes[i+1]
		}
	}
	for _, d := range c.LaneDrops {
		l := m.lanes[d.Lane]
		l.length = d.Position
		l.deadEnd = true
	}
	if c.Exit != nil {
		m.exit = m.lanes[c.Exit.Lane]
		m.exitS = c.Exit.Position
	}
	if tl := c.TrafficLight; tl != nil {
		for _, l := range m.lanes {
			if l.length >= tl.Position {
				l.hasLight = true
				l.stopLine = tl.Position
			}
		}
	}
	for _, s := range c.BusStops {
		l := m.lanes[s.Lane]
		l.busStops = append(l.busStops, &entity.BusStop{ID: s.ID, S: s.Position, DwellTime: s.DwellTime})
	}
	for _, cc := range c.Conflicts {
		l := m.lanes[cc.Lane]
		l.conflicts = append(l.conflicts, newConflict(cc))
	}
	parallel.GoFor(m.lanes, func(l *Lane) {
		slices.SortFunc(l.busStops, func(a, b *entity.BusStop) int { return cmp.Compare(a.S, b.S) })
		slices.SortFunc(l.conflicts, func(a, b *entity.Conflict) int { return cmp.Compare(a.S, b.S) })
	})
	log.Infof("road: %d lanes, length %.1fm, %d lane drops, exit=%v", len(m.lanes), c.Length, len(c.LaneDrops), c.Exit != nil)
}

func newConflict(c config.Conflict) *entity.Conflict {
	typ := map[string]entity.ConflictType{
		"crossing": entity.ConflictCrossing,
		"merge":    entity.ConflictMerge,
		"split":    entity.ConflictSplit,
	}
	rule := map[string]entity.ConflictRule{
		"priority": entity.RulePriority,
		"yield":    entity.RuleYield,
		"stop":     entity.RuleStop,
	}
	indicator := map[string]entity.LateralDirectionality{
		"":      entity.DirNone,
		"left":  entity.DirLeft,
		"right": entity.DirRight,
	}
	t, ok1 := typ[c.Type]
	r, ok2 := rule[c.Rule]
	ind, ok3 := indicator[c.Indicator]
	if !ok1 || !ok2 || !ok3 {
		log.Panicf("conflict %d: unchecked type %q rule %q indicator %q", c.ID, c.Type, c.Rule, c.Indicator)
	}
	return &entity.Conflict{
		ID:           c.ID,
		S:            c.Position,
		Length:       c.Length,
		Type:         t,
		Rule:         r,
		Indicator:    ind,
		Headway:      c.Stream.Headway,
		StreamSpeed:  c.Stream.Speed,
		StreamLength: c.Stream.Length,
		Offset:       c.Stream.Offset,
	}
}

// Get 根据车道下标获取Lane实例，如果不存在则panic
func (m *LaneManager) Get(index int) entity.ILane {
	lane, err := m.GetOrError(index)
	if err != nil {
		log.Panic(err)
	}
	return lane
}

// GetOrError 根据车道下标获取Lane实例，如果不存在则返回错误
func (m *LaneManager) GetOrError(index int) (entity.ILane, error) {
	if index < 0 || index >= len(m.lanes) {
		return nil, fmt.Errorf("no lane %d in road with %d lanes", index, len(m.lanes))
	}
	return m.lanes[index], nil
}

// Lanes 从左到右的所有车道
func (m *LaneManager) Lanes() []entity.ILane {
	return lo.Map(m.lanes, func(l *Lane, _ int) entity.ILane { return l })
}

// RoadLength 道路长度
func (m *LaneManager) RoadLength() float64 {
	return m.road.length
}

// Exit 出口所在车道与位置
func (m *LaneManager) Exit() (entity.ILane, float64, bool) {
	if m.exit == nil {
		return nil, 0, false
	}
	return m.exit, m.exitS, true
}

// Stats 全路段车辆数与平均车速
func (m *LaneManager) Stats() (count int, meanSpeed float64) {
	sum := 0.
	for _, l := range m.lanes {
		c, v := l.Stats()
		count += c
		sum += v * float64(c)
	}
	if count > 0 {
		meanSpeed = sum / float64(count)
	}
	return
}

// Prepare 准备阶段
// 说明：先并行维护所有车道主链，再并行构建支链
func (m *LaneManager) Prepare() {
	parallel.GoFor(m.lanes, func(l *Lane) { l.prepare() })
	parallel.GoFor(m.lanes, func(l *Lane) { l.prepare2() })
}

// Update 更新阶段
func (m *LaneManager) Update() {
	parallel.GoFor(m.lanes, func(l *Lane) { l.update() })
}
