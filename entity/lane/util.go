package lane

import (
	"sync"

	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/container"
)

// laneList 车道上按车头位置排序的车辆链表
// 说明：Update阶段车辆并发登记上路、变道与离开，prepare时统一生效并恢复顺序
type laneList[T container.IHasVAndLength, E any] struct {
	list *container.List[T, E]

	mtx     sync.Mutex
	added   []*container.ListNode[T, E]
	removed []*container.ListNode[T, E]
}

func newLaneList[T container.IHasVAndLength, E any](id string) laneList[T, E] {
	return laneList[T, E]{list: &container.List[T, E]{ID: id}}
}

// prepare 先删除，再把位置逆序的节点与新增节点一起归并回链表
func (l *laneList[T, E]) prepare() {
	if l == nil || l.list == nil {
		return
	}
	for _, n := range l.removed {
		l.list.Remove(n)
	}
	l.list.Merge(append(l.added, l.list.PopUnsorted()...))
	l.added, l.removed = l.added[:0], l.removed[:0]
}

func (l *laneList[T, E]) add(node *container.ListNode[T, E]) {
	if node.Parent() != nil {
		log.Panicf("add node %v which already belongs to %v", node, node.Parent())
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.added = append(l.added, node)
}

func (l *laneList[T, E]) remove(node *container.ListNode[T, E]) {
	if node.Parent() != l.list {
		log.Panicf("remove node %v (parent=%v) from wrong list %v", node, node.Parent(), l.list)
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.removed = append(l.removed, node)
}
