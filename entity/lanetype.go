package entity

// 方位常量，用作[2]数组下标
const (
	LEFT   = 0 // 左侧
	RIGHT  = 1 // 右侧
	BEFORE = 0 // 后方，等价于prev/behind
	AFTER  = 1 // 前方，等价于next/ahead
)

// LateralDirectionality 横向方向
type LateralDirectionality int8

const (
	DirNone  LateralDirectionality = iota // 无
	DirLeft                               // 向左
	DirRight                              // 向右
)

func (d LateralDirectionality) String() string {
	switch d {
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "none"
	}
}

// Flip 反方向
func (d LateralDirectionality) Flip() LateralDirectionality {
	switch d {
	case DirLeft:
		return DirRight
	case DirRight:
		return DirLeft
	default:
		return DirNone
	}
}

// Side 转换为LEFT/RIGHT下标，DirNone时返回-1
func (d LateralDirectionality) Side() int {
	switch d {
	case DirLeft:
		return LEFT
	case DirRight:
		return RIGHT
	default:
		return -1
	}
}

// RelativeLane 相对车道，0为本车道，正数为左侧第n条，负数为右侧第n条
type RelativeLane int

const (
	LaneCurrent RelativeLane = 0
	LaneLeft    RelativeLane = 1
	LaneRight   RelativeLane = -1
)

// RelativeLaneOf 由方向与车道数构造相对车道
func RelativeLaneOf(d LateralDirectionality, n int) RelativeLane {
	switch d {
	case DirLeft:
		return RelativeLane(n)
	case DirRight:
		return RelativeLane(-n)
	default:
		return LaneCurrent
	}
}

func (l RelativeLane) IsCurrent() bool { return l == LaneCurrent }

// Lat 相对车道所在方向
func (l RelativeLane) Lat() LateralDirectionality {
	switch {
	case l > 0:
		return DirLeft
	case l < 0:
		return DirRight
	default:
		return DirNone
	}
}

// NumLanes 与本车道相隔的车道数
func (l RelativeLane) NumLanes() int {
	if l < 0 {
		return int(-l)
	}
	return int(l)
}

// Shift 沿方向d平移一条车道
func (l RelativeLane) Shift(d LateralDirectionality) RelativeLane {
	switch d {
	case DirLeft:
		return l + 1
	case DirRight:
		return l - 1
	default:
		return l
	}
}
