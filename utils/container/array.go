package container

import (
	"cmp"
	"slices"
	"sync"
)

// IIncrementalItem 可放入IncrementalArray的元素，需要记录自己在数组中的下标
type IIncrementalItem interface {
	Index() int
	SetIndex(index int)
}

// IncrementalItemBase 嵌入后即实现IIncrementalItem
type IncrementalItemBase struct {
	index int
}

func (b *IncrementalItemBase) Index() int {
	return b.index
}

func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray 延迟生效的无序数组
// 功能：Update阶段可以并发登记增删，Prepare时统一生效，其余时间Data()只读
// 说明：车辆管理器用它保存路上的车辆，遍历顺序不代表任何含义
type IncrementalArray[T IIncrementalItem] struct {
	data []T

	mtx    sync.Mutex
	add    []T
	remove []T
}

// NewIncrementalArray 创建空数组
func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make([]T, 0),
	}
}

// Len 已生效的元素数
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 获取原始数据
// 说明：返回内部数组本身，只包含已经Prepare生效的元素，调用方不得修改
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Add 登记新增元素，Prepare后生效
func (a *IncrementalArray[T]) Add(value T) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.add = append(a.add, value)
}

// Remove 登记删除元素，Prepare后生效
func (a *IncrementalArray[T]) Remove(value T) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.remove = append(a.remove, value)
}

// Prepare 执行登记的增删
// 算法说明：
// 1. 按下标从大到小处理删除，用数组末尾元素填补空位，保证被搬移的元素不是待删除元素
// 2. 新增元素追加到数组末尾
// 3. 重复删除同一元素只生效一次
func (a *IncrementalArray[T]) Prepare() {
	slices.SortFunc(a.remove, func(x, y T) int {
		return cmp.Compare(y.Index(), x.Index())
	})
	last := -1
	for _, x := range a.remove {
		ind := x.Index()
		if ind == last {
			continue
		}
		last = ind
		end := len(a.data) - 1
		if ind < 0 || ind > end {
			log.Panicf("remove item with index %d from array of length %d", ind, len(a.data))
		}
		a.data[ind] = a.data[end]
		a.data[ind].SetIndex(ind)
		a.data = a.data[:end]
	}
	for _, x := range a.add {
		x.SetIndex(len(a.data))
		a.data = append(a.data, x)
	}
	a.add = a.add[:0]
	a.remove = a.remove[:0]
}
