package container

import (
	"cmp"
	"fmt"
	"slices"
)

// IHasVAndLength 链表元素需要提供速度与长度
type IHasVAndLength interface {
	V() float64      // 获取速度
	Length() float64 // 获取长度
}

// ListNode 有序双向链表的节点
// 说明：S为排序键，车道链表中为车头位置；Extra保存与相邻车道链表之间的支链
type ListNode[T IHasVAndLength, E any] struct {
	parent     *List[T, E]
	prev, next *ListNode[T, E]
	S          float64
	Value      T
	Extra      E
}

func (n *ListNode[T, E]) String() string {
	return fmt.Sprintf("Node{S:%v, Value:%+v, Extra:%+v}", n.S, n.Value, n.Extra)
}

// Prev 前驱节点（S更小），第一个节点返回nil
func (n *ListNode[T, E]) Prev() *ListNode[T, E] {
	return n.prev
}

// Next 后继节点（S更大），最后一个节点返回nil
func (n *ListNode[T, E]) Next() *ListNode[T, E] {
	return n.next
}

// Parent 节点所在的链表，不在任何链表中时为nil
func (n *ListNode[T, E]) Parent() *List[T, E] {
	return n.parent
}

// V 节点值的速度
func (n *ListNode[T, E]) V() float64 {
	return n.Value.V()
}

// L 节点值的长度
func (n *ListNode[T, E]) L() float64 {
	return n.Value.Length()
}

// List 按S升序排列的双向链表
// 说明：节点的S在链表外被修改后顺序可能被破坏，由PopUnsorted与Merge恢复
type List[T IHasVAndLength, E any] struct {
	ID         string
	head, tail *ListNode[T, E]
	length     int
}

func (l *List[T, E]) String() string {
	return fmt.Sprintf("List{ID:%v}", l.ID)
}

// link 把add接在prev与next之间，prev或next为nil表示链表头或尾
func (l *List[T, E]) link(add, prev, next *ListNode[T, E]) {
	if add.parent != nil {
		log.Panicf("insert node %v which is already in list %v", add, add.parent)
	}
	add.parent, add.prev, add.next = l, prev, next
	if prev != nil {
		prev.next = add
	} else {
		l.head = add
	}
	if next != nil {
		next.prev = add
	} else {
		l.tail = add
	}
	l.length++
}

// InsertBefore 在节点n之前插入add
func (n *ListNode[T, E]) InsertBefore(add *ListNode[T, E]) {
	n.parent.link(add, n.prev, n)
}

// PushBack 在链表尾部插入节点
func (l *List[T, E]) PushBack(add *ListNode[T, E]) {
	l.link(add, l.tail, nil)
}

// Remove 从链表中移除节点，节点不属于本链表时panic
func (l *List[T, E]) Remove(node *ListNode[T, E]) {
	if node.parent != l {
		log.Panicf("remove node %v from wrong list %v (parent=%v)", node, l, node.parent)
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.parent, node.prev, node.next = nil, nil, nil
	l.length--
}

func (l *List[T, E]) Len() int {
	return l.length
}

// First 第一个节点（S最小），链表为空时返回nil
func (l *List[T, E]) First() *ListNode[T, E] {
	return l.head
}

// Last 最后一个节点（S最大），链表为空时返回nil
func (l *List[T, E]) Last() *ListNode[T, E] {
	return l.tail
}

// Keys 按链表顺序的所有S
func (l *List[T, E]) Keys() []float64 {
	keys := make([]float64, 0, l.length)
	for node := l.head; node != nil; node = node.next {
		keys = append(keys, node.S)
	}
	return keys
}

// Values 按链表顺序的所有值
func (l *List[T, E]) Values() []T {
	values := make([]T, 0, l.length)
	for node := l.head; node != nil; node = node.next {
		values = append(values, node.Value)
	}
	return values
}

// PopUnsorted 移除所有S小于前驱的节点并返回
// 说明：剩下的节点保持升序，被移除的节点交给Merge重新插入
func (l *List[T, E]) PopUnsorted() (unsorted []*ListNode[T, E]) {
	for node := l.head; node != nil; {
		next := node.next
		if node.prev != nil && node.prev.S > node.S {
			l.Remove(node)
			unsorted = append(unsorted, node)
		}
		node = next
	}
	return unsorted
}

// Merge 批量插入节点
// 参数：adds-待插入的节点，函数内会被排序
// 算法说明：先按S排序，再与链表做一次归并，S相同时新节点排在已有节点之前
func (l *List[T, E]) Merge(adds []*ListNode[T, E]) {
	slices.SortStableFunc(adds, func(a, b *ListNode[T, E]) int {
		return cmp.Compare(a.S, b.S)
	})
	node := l.head
	for _, add := range adds {
		for node != nil && node.S < add.S {
			node = node.next
		}
		if node != nil {
			node.InsertBefore(add)
		} else {
			l.PushBack(add)
		}
	}
}

// FirstAfter 第一个S大于s的节点，不存在时返回nil
func (l *List[T, E]) FirstAfter(s float64) *ListNode[T, E] {
	for node := l.head; node != nil; node = node.next {
		if node.S > s {
			return node
		}
	}
	return nil
}

// LastBefore 最后一个S小于等于s的节点，不存在时返回nil
func (l *List[T, E]) LastBefore(s float64) *ListNode[T, E] {
	for node := l.tail; node != nil; node = node.prev {
		if node.S <= s {
			return node
		}
	}
	return nil
}
