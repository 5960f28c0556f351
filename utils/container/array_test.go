package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/container"
)

type arrayItem struct {
	container.IncrementalItemBase
	id int
}

func ids(a *container.IncrementalArray[*arrayItem]) []int {
	res := make([]int, 0, a.Len())
	for i, x := range a.Data() {
		if x.Index() != i {
			return nil
		}
		res = append(res, x.id)
	}
	return res
}

func TestIncrementalArray(t *testing.T) {
	a := container.NewIncrementalArray[*arrayItem]()
	items := make([]*arrayItem, 5)
	for i := range items {
		items[i] = &arrayItem{id: i}
		a.Add(items[i])
	}
	assert.Equal(t, 0, a.Len())
	a.Prepare()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ids(a))

	// 删除包括末尾元素，填补时不能搬移待删除元素
	a.Remove(items[1])
	a.Remove(items[4])
	a.Remove(items[3])
	a.Prepare()
	assert.ElementsMatch(t, []int{0, 2}, ids(a))

	extra := &arrayItem{id: 5}
	a.Add(extra)
	a.Remove(items[0])
	a.Remove(items[0])
	a.Prepare()
	assert.ElementsMatch(t, []int{2, 5}, ids(a))
}

func TestPriorityQueue(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	q.Push("c", 3)
	q.Push("a", 1)
	q.Push("b", 2)
	q.Heapify()
	q.HeapPush("z", 0.5)

	v, p := q.First()
	assert.Equal(t, "z", v)
	assert.Equal(t, 0.5, p)
	got := make([]string, 0)
	for q.Len() > 0 {
		v, _ := q.HeapPop()
		got = append(got, v)
	}
	assert.Equal(t, []string{"z", "a", "b", "c"}, got)
}
